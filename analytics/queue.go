package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Dikshant-04/webapp/models"
)

// ViewRecorder persists a single view event.
type ViewRecorder interface {
	Record(ctx context.Context, in ViewInput) (*models.BlogView, error)
}

// QueueConfig sizes the asynchronous ingest queue.
type QueueConfig struct {
	Size        int
	Workers     int
	MaxAttempts int
	Backoff     time.Duration
	Logger      *zap.Logger
}

// ViewQueue takes view recording off the request path. Enqueue never blocks:
// when the buffer is full the event is dropped and counted.
type ViewQueue struct {
	rec    ViewRecorder
	cfg    QueueConfig
	ch     chan ViewInput
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	start  sync.Once
}

func NewViewQueue(rec ViewRecorder, cfg QueueConfig) *ViewQueue {
	if cfg.Size <= 0 {
		cfg.Size = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &ViewQueue{rec: rec, cfg: cfg, ch: make(chan ViewInput, cfg.Size)}
}

// Start launches the workers. Calling it more than once is a no-op.
func (q *ViewQueue) Start() {
	q.start.Do(func() {
		for i := 0; i < q.cfg.Workers; i++ {
			q.wg.Add(1)
			go q.worker()
		}
	})
}

// Enqueue hands a view to the workers and reports whether it was accepted.
func (q *ViewQueue) Enqueue(in ViewInput) bool {
	if in.ViewedAt.IsZero() {
		in.ViewedAt = time.Now().UTC()
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		viewsIngested.WithLabelValues("dropped").Inc()
		return false
	}
	select {
	case q.ch <- in:
		viewQueueDepth.Inc()
		return true
	default:
		viewsIngested.WithLabelValues("dropped").Inc()
		q.cfg.Logger.Warn("view queue full, dropping event", zap.Uint("blog_id", in.BlogID))
		return false
	}
}

// Stop refuses new events and waits for the buffered ones to be recorded or
// for ctx to expire.
func (q *ViewQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ViewQueue) worker() {
	defer q.wg.Done()
	for in := range q.ch {
		viewQueueDepth.Dec()
		q.process(in)
	}
}

func (q *ViewQueue) process(in ViewInput) {
	log := q.cfg.Logger.With(zap.Uint("blog_id", in.BlogID))
	for attempt := 1; attempt <= q.cfg.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := q.rec.Record(ctx, in)
		cancel()
		if err == nil {
			viewsIngested.WithLabelValues("recorded").Inc()
			return
		}
		if errors.Is(err, ErrNotFound) {
			viewsIngested.WithLabelValues("not_found").Inc()
			log.Info("view for missing blog discarded")
			return
		}
		log.Warn("record view failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < q.cfg.MaxAttempts {
			time.Sleep(q.cfg.Backoff << (attempt - 1))
		}
	}
	viewsIngested.WithLabelValues("failed").Inc()
	log.Error("view event dropped after retries", zap.Int("attempts", q.cfg.MaxAttempts))
}
