package utils

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultReadTimeout     = 60 * time.Second
	DefaultWriteTimeout    = DefaultReadTimeout
	DefaultShutdownTimeout = 30 * time.Second

	inheritEnvKey   = "BLOG_INHERIT_LISTENER"
	inheritEnvValue = inheritEnvKey + "=1"
	inheritedFD     = 3
)

// Server is an http.Server that drains on SIGINT/SIGTERM, hands its listener to
// a fresh process on SIGUSR2 and then runs the registered shutdown hooks.
type Server struct {
	*http.Server

	// ShutdownTimeout bounds both the HTTP drain and the hooks.
	ShutdownTimeout time.Duration

	listener  net.Listener
	inherited bool
	signals   chan os.Signal
	done      chan struct{}
	hooks     []func(context.Context)
}

func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: readTimeout,
			WriteTimeout:      writeTimeout,
		},
		ShutdownTimeout: DefaultShutdownTimeout,
		inherited:       os.Getenv(inheritEnvKey) != "",
		signals:         make(chan os.Signal, 1),
		done:            make(chan struct{}),
	}
}

// OnShutdown registers fn to run after the server stopped accepting requests.
// Hooks run in registration order and share the shutdown deadline.
func (srv *Server) OnShutdown(fn func(context.Context)) {
	srv.hooks = append(srv.hooks, fn)
}

// ListenAndServe blocks until a shutdown signal was handled and every hook returned.
func (srv *Server) ListenAndServe() error {
	ln, err := srv.listen()
	if err != nil {
		return err
	}
	return srv.Serve(ln)
}

// Serve is ListenAndServe on an existing listener.
func (srv *Server) Serve(ln net.Listener) error {
	srv.listener = ln
	signal.Notify(srv.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2)
	defer signal.Stop(srv.signals)
	go srv.handleSignals()

	err := srv.Server.Serve(ln)
	<-srv.done
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (srv *Server) listen() (net.Listener, error) {
	if srv.inherited {
		ln, err := net.FileListener(os.NewFile(inheritedFD, "listener"))
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		return ln, nil
	}
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

func (srv *Server) handleSignals() {
	for sig := range srv.signals {
		switch sig {
		case syscall.SIGINT, syscall.SIGTERM:
			Logger.Info("shutting down", zap.String("signal", sig.String()))
			srv.shutdown()
			return
		case syscall.SIGUSR2:
			pid, err := srv.handOver()
			if err != nil {
				Logger.Error("restart failed, still serving", zap.Error(err))
				continue
			}
			Logger.Info("restarted, draining old process", zap.Int("new_pid", pid))
			srv.shutdown()
			return
		}
	}
}

// shutdown drains HTTP, runs the hooks and releases Serve.
func (srv *Server) shutdown() {
	timeout := srv.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		Logger.Error("http drain incomplete", zap.Error(err))
	}
	for _, fn := range srv.hooks {
		fn(ctx)
	}
	Logger.Info("shutdown complete")
	close(srv.done)
}

// handOver starts a copy of this binary that inherits the listening socket.
func (srv *Server) handOver() (int, error) {
	tcp, ok := srv.listener.(*net.TCPListener)
	if !ok {
		return 0, fmt.Errorf("listener is %T, not TCP", srv.listener)
	}
	file, err := tcp.File()
	if err != nil {
		return 0, fmt.Errorf("listener file: %w", err)
	}
	defer file.Close()

	env := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if e != inheritEnvValue {
			env = append(env, e)
		}
	}
	env = append(env, inheritEnvValue)

	pid, err := syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	})
	if err != nil {
		return 0, fmt.Errorf("fork: %w", err)
	}
	return pid, nil
}

// GraceServer serves handler on addr until signalled, then runs each hook once.
func GraceServer(addr string, handler http.Handler, hooks ...func(context.Context)) error {
	srv := NewServer(addr, handler, DefaultReadTimeout, DefaultWriteTimeout)
	for _, h := range hooks {
		srv.OnShutdown(h)
	}
	return srv.ListenAndServe()
}
