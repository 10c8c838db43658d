package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Dikshant-04/webapp/analytics"
	"github.com/Dikshant-04/webapp/config"
	"github.com/Dikshant-04/webapp/middleware"
	"github.com/Dikshant-04/webapp/models"
	"github.com/Dikshant-04/webapp/testsupport"
	"github.com/Dikshant-04/webapp/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	config.Set(config.AppConfig{
		JWTSecret:      "controllers-test-secret",
		AdminUsernames: []string{"chief"},
		SiteName:       "Test Blog",
		FrontendURL:    "https://blog.example.org",
	})
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type sentMail struct {
	to      []string
	subject string
	body    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(_ context.Context, to []string, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *fakeMailer) all() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

type captureViews struct {
	mu  sync.Mutex
	got []analytics.ViewInput
}

func (q *captureViews) Enqueue(in analytics.ViewInput) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.got = append(q.got, in)
	return true
}

func (q *captureViews) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.got)
}

type harness struct {
	t        *testing.T
	db       *gorm.DB
	r        *gin.Engine
	mail     *fakeMailer
	views    *captureViews
	notified chan uint
}

func (h *harness) ContactNotification(_ context.Context, sub *models.ContactSubmission) bool {
	h.notified <- sub.ID
	return true
}

func newHarness(t *testing.T, acfg analytics.Config) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		db:       testsupport.NewDB(t),
		mail:     &fakeMailer{},
		views:    &captureViews{},
		notified: make(chan uint, 8),
	}

	authC := NewAuthController(h.db)
	authC.mailer = h.mail
	blogC := NewBlogController(h.db)
	contactC := NewContactController(h.db, h)
	statsC := NewAnalyticsController(h.db, acfg)

	authed := middleware.AuthRequired()
	admin := middleware.RequireRole(models.RoleAdmin)
	staff := middleware.RequireRole(models.RoleStaff, models.RoleAdmin)

	r := gin.New()
	api := r.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/register", authC.Register)
	auth.POST("/login", authC.Login)
	auth.POST("/password/forgot", authC.ForgotPassword)
	auth.POST("/password/reset", authC.ResetPassword)
	auth.POST("/logout", authed, authC.Logout)
	auth.GET("/me", authed, authC.Me)
	auth.PATCH("/profile", authed, authC.UpdateProfile)

	users := api.Group("/users", authed, admin)
	users.GET("", authC.ListUsers)
	users.GET("/:id", authC.GetUser)
	users.PATCH("/:id", authC.PatchUser)
	users.DELETE("/:id", authC.DeleteUser)

	blogs := api.Group("/blogs")
	blogs.GET("", blogC.ListBlogs)
	blogs.GET("/mine", authed, staff, blogC.MyBlogs)
	blogs.GET("/:slug", middleware.OptionalAuth(), middleware.ViewTracker(h.views), blogC.GetBlog)
	blogs.GET("/:slug/comments", blogC.ListComments)
	blogs.POST("/:slug/comments", authed, blogC.CreateComment)
	blogs.POST("", authed, staff, blogC.CreateBlog)
	blogs.PUT("/:id", authed, staff, blogC.UpdateBlog)
	blogs.DELETE("/:id", authed, staff, blogC.DeleteBlog)
	api.GET("/categories", blogC.ListCategories)
	api.POST("/categories", authed, admin, blogC.CreateCategory)
	api.GET("/tags", blogC.ListTags)
	api.POST("/tags", authed, admin, blogC.CreateTag)
	api.PATCH("/comments/:id/approve", authed, admin, blogC.ApproveComment)
	api.DELETE("/comments/:id", authed, blogC.DeleteComment)

	contact := api.Group("/contact")
	contact.POST("", contactC.CreateSubmission)
	inbox := contact.Group("", authed, admin)
	inbox.GET("", contactC.ListSubmissions)
	inbox.GET("/stats", contactC.Stats)
	inbox.GET("/:id", contactC.GetSubmission)
	inbox.PATCH("/:id/replied", contactC.MarkReplied)
	inbox.DELETE("/:id", contactC.DeleteSubmission)

	stats := api.Group("/analytics", authed)
	stats.GET("/blogs/:id", statsC.BlogAnalytics)
	statsAdmin := stats.Group("", admin)
	statsAdmin.GET("/dashboard", statsC.Dashboard)
	statsAdmin.GET("/daily", statsC.Daily)
	statsAdmin.GET("/monthly", statsC.Monthly)
	statsAdmin.GET("/views", statsC.Views)
	statsAdmin.POST("/daily/run", statsC.RunDaily)
	statsAdmin.POST("/monthly/run", statsC.RunMonthly)
	statsAdmin.POST("/retention/run", statsC.RunRetention)

	h.r = r
	return h
}

// call performs a request and decodes the envelope. token may be empty.
func (h *harness) call(method, path, token string, body interface{}) (int, envelope) {
	h.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)

	var env envelope
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

type page[T any] struct {
	Items      []T `json:"items"`
	Pagination struct {
		Total int64 `json:"total"`
	} `json:"pagination"`
}

func bearer(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := utils.GenerateToken(u.ID, u.Username, u.Role, time.Hour)
	require.NoError(t, err)
	return tok
}

// userWithPassword inserts an active user whose password is known.
func userWithPassword(t *testing.T, db *gorm.DB, username, role, password string) *models.User {
	t.Helper()
	u := testsupport.CreateUser(t, db, username, role)
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, db.Model(u).UpdateColumn("password_hash", hash).Error)
	return u
}
