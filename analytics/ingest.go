package analytics

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Dikshant-04/webapp/models"
)

const maxReferrerLen = 1024

// ViewInput is what the request path knows about one page view.
type ViewInput struct {
	BlogID    uint
	UserID    *uint
	IPAddress string
	UserAgent string
	Referrer  string
	// ViewedAt defaults to the ingest time when zero.
	ViewedAt time.Time
}

// Recorder appends view events and bumps the live view counter of the blog.
type Recorder struct {
	db  *gorm.DB
	cfg Config
}

func NewRecorder(db *gorm.DB, cfg Config) *Recorder {
	return &Recorder{db: db, cfg: cfg.withDefaults()}
}

// Record stores one view. The event insert and the counter increment commit
// together; ErrNotFound is returned when the blog does not exist.
func (r *Recorder) Record(ctx context.Context, in ViewInput) (*models.BlogView, error) {
	agent := Classify(in.UserAgent)
	view := &models.BlogView{
		BlogID:     in.BlogID,
		UserID:     in.UserID,
		UserAgent:  in.UserAgent,
		Referrer:   truncate(in.Referrer, maxReferrerLen),
		DeviceType: agent.DeviceType,
		Browser:    agent.Browser,
		OS:         agent.OS,
		ViewedAt:   in.ViewedAt.UTC(),
	}
	if ip := strings.TrimSpace(in.IPAddress); ip != "" {
		view.IPAddress = &ip
	}
	if in.ViewedAt.IsZero() {
		view.ViewedAt = r.cfg.now()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Blog{}).
			Where("id = ?", in.BlogID).
			UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Create(view).Error
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
