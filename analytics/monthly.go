package analytics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Dikshant-04/webapp/models"
)

var monthlyColumns = []string{
	"total_views", "unique_visitors", "new_blogs", "total_comments", "new_users",
	"total_active_users", "avg_session_duration", "bounce_rate", "top_blogs",
	"top_authors", "top_categories", "updated_at",
}

type dailySums struct {
	TotalViews  int64
	NewBlogs    int64
	NewComments int64
	NewUsers    int64
}

type sessionEvent struct {
	UserID          *uint
	IPAddress       *string
	ViewedAt        time.Time
	SessionDuration int
}

// MonthlyAggregator builds the rollup for one calendar month. Additive figures
// come from the daily rollups; distinct counts, rankings and session figures
// are recomputed from raw events.
type MonthlyAggregator struct {
	db       *gorm.DB
	activity ActivityCounter
	cfg      Config
}

func NewMonthlyAggregator(db *gorm.DB, activity ActivityCounter, cfg Config) *MonthlyAggregator {
	return &MonthlyAggregator{db: db, activity: activity, cfg: cfg.withDefaults()}
}

// PreviousMonth returns the month before now in the reference timezone.
func (a *MonthlyAggregator) PreviousMonth() (int, time.Month) {
	y, m, _ := a.cfg.now().In(a.cfg.Location).Date()
	prev := time.Date(y, m, 1, 0, 0, 0, 0, a.cfg.Location).AddDate(0, -1, 0)
	return prev.Year(), prev.Month()
}

// AggregateMonth computes and upserts the rollup for (year, month). It refuses
// months whose raw events have already been partially swept.
func (a *MonthlyAggregator) AggregateMonth(ctx context.Context, year int, month time.Month) (*models.MonthlyAnalytics, error) {
	if month < time.January || month > time.December || year < 1 {
		return nil, fmt.Errorf("%w: %d-%02d", ErrInvalidPeriod, year, int(month))
	}
	w := MonthWindow(year, month, a.cfg.Location)
	horizon := a.cfg.now().Add(-time.Duration(a.cfg.RetentionDays) * 24 * time.Hour)
	if w.Start.Before(horizon) {
		return nil, fmt.Errorf("%w: %d-%02d", ErrRawEventsExpired, year, int(month))
	}

	key := fmt.Sprintf("analytics:monthly:%04d-%02d", year, int(month))
	log := a.cfg.Logger.With(zap.String("month", key[len("analytics:monthly:"):]))
	unlock, ok := a.cfg.Locker.TryLock(ctx, key, aggregationLockTTL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInFlight, key)
	}
	defer unlock()

	started := time.Now()
	activity, err := a.activity.CountActivity(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("count activity: %w", err)
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	row := &models.MonthlyAnalytics{
		Year:             year,
		Month:            int(month),
		TotalActiveUsers: activity.ActiveUsers,
	}
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sums dailySums
		if err := tx.Model(&models.DailyAnalytics{}).
			Select("COALESCE(SUM(total_views), 0) AS total_views, COALESCE(SUM(new_blogs), 0) AS new_blogs, "+
				"COALESCE(SUM(new_comments), 0) AS new_comments, COALESCE(SUM(new_users), 0) AS new_users").
			Where("date >= ? AND date < ?", first, first.AddDate(0, 1, 0)).
			Scan(&sums).Error; err != nil {
			return err
		}
		row.TotalViews = sums.TotalViews
		row.NewBlogs = sums.NewBlogs
		row.TotalComments = sums.NewComments
		row.NewUsers = sums.NewUsers

		var err error
		if row.UniqueVisitors, err = countUniqueIPs(tx, w, nil); err != nil {
			return err
		}
		if row.AvgSessionDuration, row.BounceRate, err = sessionFigures(tx, w); err != nil {
			return err
		}
		blogs, err := topBlogs(tx, w, topBlogsLimit)
		if err != nil {
			return err
		}
		authors, err := topAuthors(tx, w, topAuthorsLimit)
		if err != nil {
			return err
		}
		categories, err := topCategories(tx, w, topCategoriesLimit)
		if err != nil {
			return err
		}
		row.TopBlogs = blogs
		row.TopAuthors = authors
		row.TopCategories = categories

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "year"}, {Name: "month"}},
			DoUpdates: clause.AssignmentColumns(monthlyColumns),
		}).Create(row).Error; err != nil {
			return err
		}
		var saved models.MonthlyAnalytics
		if err := tx.Where("year = ? AND month = ?", year, int(month)).First(&saved).Error; err != nil {
			return err
		}
		*row = saved
		return nil
	})
	if err != nil {
		log.Error("monthly aggregation failed", zap.Error(err))
		return nil, fmt.Errorf("aggregate %s: %w", key, err)
	}
	log.Info("monthly aggregation done",
		zap.Int64("total_views", row.TotalViews),
		zap.Float64("bounce_rate", row.BounceRate),
		zap.Duration("took", time.Since(started)))
	return row, nil
}

func sessionFigures(tx *gorm.DB, w Window) (float64, float64, error) {
	rows, err := eventsIn(tx, w, nil).
		Select("blog_views.user_id, blog_views.ip_address, blog_views.viewed_at, blog_views.session_duration").
		Order("blog_views.viewed_at ASC").Order("blog_views.id ASC").
		Rows()
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	s := newSessionizer()
	for rows.Next() {
		var ev sessionEvent
		if err := tx.ScanRows(rows, &ev); err != nil {
			return 0, 0, err
		}
		s.add(visitorKey(ev.UserID, ev.IPAddress), ev.ViewedAt, ev.SessionDuration)
	}
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}
	avg, bounce := s.finish()
	return avg, bounce, nil
}
