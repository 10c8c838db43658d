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

var dailyColumns = []string{
	"total_views", "unique_visitors", "new_blogs", "new_comments", "new_users",
	"active_users", "top_blogs", "top_categories", "desktop_views", "mobile_views",
	"tablet_views", "updated_at",
}

// DailyAggregator builds the rollup for one calendar date.
type DailyAggregator struct {
	db       *gorm.DB
	activity ActivityCounter
	cfg      Config
}

func NewDailyAggregator(db *gorm.DB, activity ActivityCounter, cfg Config) *DailyAggregator {
	return &DailyAggregator{db: db, activity: activity, cfg: cfg.withDefaults()}
}

// Yesterday returns the calendar date before now in the reference timezone.
func (a *DailyAggregator) Yesterday() time.Time {
	return a.cfg.now().In(a.cfg.Location).AddDate(0, 0, -1)
}

// AggregateDay computes and upserts the rollup for the calendar date of day.
// Re-running for the same date overwrites the row with freshly computed values.
func (a *DailyAggregator) AggregateDay(ctx context.Context, day time.Time) (*models.DailyAnalytics, error) {
	loc := a.cfg.Location
	date := CalendarDate(day, loc)
	w := DayWindow(day, loc)
	key := "analytics:daily:" + date.Format("2006-01-02")
	log := a.cfg.Logger.With(zap.String("date", date.Format("2006-01-02")))

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

	row := &models.DailyAnalytics{
		Date:        date,
		NewBlogs:    activity.NewBlogs,
		NewComments: activity.NewComments,
		NewUsers:    activity.NewUsers,
		ActiveUsers: activity.ActiveUsers,
	}
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if row.TotalViews, err = countViews(tx, w, nil); err != nil {
			return err
		}
		if row.UniqueVisitors, err = countUniqueIPs(tx, w, nil); err != nil {
			return err
		}
		devices, err := deviceBreakdown(tx, w, nil)
		if err != nil {
			return err
		}
		row.DesktopViews = devices[models.DeviceDesktop]
		row.MobileViews = devices[models.DeviceMobile]
		row.TabletViews = devices[models.DeviceTablet]

		blogs, err := topBlogs(tx, w, topBlogsLimit)
		if err != nil {
			return err
		}
		categories, err := topCategories(tx, w, topCategoriesLimit)
		if err != nil {
			return err
		}
		row.TopBlogs = blogs
		row.TopCategories = categories

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			DoUpdates: clause.AssignmentColumns(dailyColumns),
		}).Create(row).Error; err != nil {
			return err
		}
		var saved models.DailyAnalytics
		if err := tx.Where("date = ?", date).First(&saved).Error; err != nil {
			return err
		}
		*row = saved
		return nil
	})
	if err != nil {
		log.Error("daily aggregation failed", zap.Error(err))
		return nil, fmt.Errorf("aggregate %s: %w", key, err)
	}
	log.Info("daily aggregation done",
		zap.Int64("total_views", row.TotalViews),
		zap.Int64("unique_visitors", row.UniqueVisitors),
		zap.Duration("took", time.Since(started)))
	return row, nil
}
