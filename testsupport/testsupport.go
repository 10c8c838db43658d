// Package testsupport provides an in-memory database and fixtures for package tests.
package testsupport

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Dikshant-04/webapp/models"
)

var dbSeq atomic.Int64

// NewDB returns a migrated in-memory SQLite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:test_%d_%d?mode=memory&cache=shared&_foreign_keys=1", time.Now().UnixNano(), dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps the shared in-memory database alive and serialises writes
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// FixedClock returns a Now func pinned to t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// CreateUser inserts a user with the given role.
func CreateUser(t *testing.T, db *gorm.DB, username, role string) *models.User {
	t.Helper()
	u := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateCategory inserts a category.
func CreateCategory(t *testing.T, db *gorm.DB, name string) *models.Category {
	t.Helper()
	c := &models.Category{Name: name, Slug: fmt.Sprintf("cat-%d", dbSeq.Add(1))}
	require.NoError(t, db.Create(c).Error)
	return c
}

// CreateBlog inserts a published blog by author, optionally in a category.
func CreateBlog(t *testing.T, db *gorm.DB, author *models.User, title string, category *models.Category) *models.Blog {
	t.Helper()
	now := time.Now().UTC()
	b := &models.Blog{
		Title:       title,
		Slug:        fmt.Sprintf("blog-%d", dbSeq.Add(1)),
		Content:     "content of " + title,
		AuthorID:    author.ID,
		Status:      models.BlogPublished,
		PublishedAt: &now,
	}
	if category != nil {
		b.CategoryID = &category.ID
	}
	require.NoError(t, db.Create(b).Error)
	return b
}

// View describes one fixture view event.
type View struct {
	IP         string
	UserID     *uint
	DeviceType string
	Duration   int
}

// CreateView inserts a raw view event at a fixed time without touching the
// blog's live counter.
func CreateView(t *testing.T, db *gorm.DB, blogID uint, at time.Time, v View) *models.BlogView {
	t.Helper()
	ev := &models.BlogView{
		BlogID:          blogID,
		UserID:          v.UserID,
		DeviceType:      v.DeviceType,
		SessionDuration: v.Duration,
		ViewedAt:        at.UTC(),
	}
	if v.IP != "" {
		ip := v.IP
		ev.IPAddress = &ip
	}
	require.NoError(t, db.Create(ev).Error)
	return ev
}
