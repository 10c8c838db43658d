package analytics

import (
	"context"

	"gorm.io/gorm"

	"github.com/Dikshant-04/webapp/models"
)

// ActivityCounts are the non-view figures a rollup reports.
type ActivityCounts struct {
	NewBlogs    int64
	NewComments int64
	NewUsers    int64
	ActiveUsers int64
}

// ActivityCounter reports blog, comment and user activity inside a window.
type ActivityCounter interface {
	CountActivity(ctx context.Context, w Window) (ActivityCounts, error)
}

// StoreActivity counts activity from the blog, comment and user tables.
type StoreActivity struct {
	db *gorm.DB
}

func NewStoreActivity(db *gorm.DB) *StoreActivity {
	return &StoreActivity{db: db}
}

func (s *StoreActivity) CountActivity(ctx context.Context, w Window) (ActivityCounts, error) {
	var c ActivityCounts
	db := s.db.WithContext(ctx)
	counts := []struct {
		model interface{}
		cond  string
		dst   *int64
	}{
		{&models.Blog{}, "created_at >= ? AND created_at < ?", &c.NewBlogs},
		{&models.BlogComment{}, "created_at >= ? AND created_at < ?", &c.NewComments},
		{&models.User{}, "created_at >= ? AND created_at < ?", &c.NewUsers},
		{&models.User{}, "last_login_at >= ? AND last_login_at < ?", &c.ActiveUsers},
	}
	for _, q := range counts {
		if err := db.Model(q.model).Where(q.cond, w.Start, w.End).Count(q.dst).Error; err != nil {
			return ActivityCounts{}, err
		}
	}
	return c, nil
}
