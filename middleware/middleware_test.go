package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dikshant-04/webapp/analytics"
	"github.com/Dikshant-04/webapp/config"
	"github.com/Dikshant-04/webapp/models"
	"github.com/Dikshant-04/webapp/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	config.Set(config.AppConfig{JWTSecret: "middleware-test-secret"})
}

func decodeCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var body utils.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func token(t *testing.T, id uint, role string) string {
	t.Helper()
	tok, err := utils.GenerateToken(id, "user", role, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestAuth(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthRequired(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.GetUint(ContextUserIDKey), "role": c.GetString(ContextRoleKey)})
	})
	r.GET("/admin", AuthRequired(), RequireRole(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/maybe", OptionalAuth(), func(c *gin.Context) {
		_, ok := c.Get(ContextUserIDKey)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})

	do := func(path, auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("rejects bad headers", func(t *testing.T) {
		cases := map[string]int{
			"":               40101,
			"Token abc":      40102,
			"Bearer ":        40103,
			"Bearer garbage": 40105,
		}
		for header, code := range cases {
			w := do("/me", header)
			assert.Equal(t, http.StatusUnauthorized, w.Code, header)
			assert.Equal(t, code, decodeCode(t, w), header)
		}
	})

	t.Run("accepts a valid token", func(t *testing.T) {
		w := do("/me", "Bearer "+token(t, 7, models.RoleStaff))
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":7,"role":"staff"}`, w.Body.String())
	})

	t.Run("revoked token", func(t *testing.T) {
		tok := token(t, 8, models.RoleCustomer)
		utils.BlacklistToken(tok, time.Now().Add(time.Hour))
		w := do("/me", "Bearer "+tok)
		assert.Equal(t, 40104, decodeCode(t, w))
	})

	t.Run("role gate", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, do("/admin", "Bearer "+token(t, 1, models.RoleStaff)).Code)
		assert.Equal(t, http.StatusNoContent, do("/admin", "Bearer "+token(t, 1, models.RoleAdmin)).Code)
	})

	t.Run("optional auth", func(t *testing.T) {
		assert.JSONEq(t, `{"authenticated":false}`, do("/maybe", "").Body.String())
		assert.JSONEq(t, `{"authenticated":false}`, do("/maybe", "Bearer garbage").Body.String())
		assert.JSONEq(t, `{"authenticated":true}`, do("/maybe", "Bearer "+token(t, 2, models.RoleCustomer)).Body.String())
	})
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"cloudflare wins", map[string]string{"CF-Connecting-IP": "203.0.113.5", "X-Real-IP": "198.51.100.2"}, "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "198.51.100.2"},
		{"first forwarded", map[string]string{"X-Forwarded-For": "198.51.100.9, 10.0.0.1"}, "198.51.100.9"},
		{"private header falls back to gin", map[string]string{"CF-Connecting-IP": "10.1.1.1"}, "192.0.2.1"},
		{"no headers", nil, "192.0.2.1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			c.Request = req
			assert.Equal(t, tc.want, ClientIP(c))
		})
	}
}

type captureQueue struct {
	mu  sync.Mutex
	got []analytics.ViewInput
}

func (q *captureQueue) Enqueue(in analytics.ViewInput) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.got = append(q.got, in)
	return true
}

func TestViewTracker(t *testing.T) {
	q := &captureQueue{}
	r := gin.New()
	r.Use(OptionalAuth(), ViewTracker(q))
	r.GET("/blogs/:slug", func(c *gin.Context) {
		if c.Param("slug") == "missing" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Set(ContextViewedBlogKey, uint(42))
		c.Status(http.StatusOK)
	})
	r.GET("/blogs", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/blogs/hello", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone) Mobile")
	req.Header.Set("Referer", "https://ref.example.org/")
	req.Header.Set("Authorization", "Bearer "+token(t, 5, models.RoleCustomer))
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/blogs/missing", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/blogs", nil))

	require.Len(t, q.got, 1)
	in := q.got[0]
	assert.Equal(t, uint(42), in.BlogID)
	assert.Equal(t, "192.0.2.1", in.IPAddress)
	assert.Equal(t, "https://ref.example.org/", in.Referrer)
	require.NotNil(t, in.UserID)
	assert.Equal(t, uint(5), *in.UserID)
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.POST("/contact", RateLimit("contact-test", 2), func(c *gin.Context) { c.Status(http.StatusCreated) })

	statuses := []int{}
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/contact", nil))
		statuses = append(statuses, w.Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusTooManyRequests, http.StatusTooManyRequests}, statuses)
}
