package analytics

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Dikshant-04/webapp/models"
)

const (
	sweepBatchSize = 1000
	sweepPause     = 50 * time.Millisecond
)

// Sweeper deletes raw view events older than the retention horizon. Rollups
// are never touched.
type Sweeper struct {
	db    *gorm.DB
	cfg   Config
	batch int
	pause time.Duration
}

func NewSweeper(db *gorm.DB, cfg Config) *Sweeper {
	return &Sweeper{db: db, cfg: cfg.withDefaults(), batch: sweepBatchSize, pause: sweepPause}
}

// Sweep removes every event whose age is at least horizonDays, in bounded
// batches. A non-positive horizon uses the configured retention.
func (s *Sweeper) Sweep(ctx context.Context, horizonDays int) (int64, error) {
	if horizonDays <= 0 {
		horizonDays = s.cfg.RetentionDays
	}
	cutoff := s.cfg.now().Add(-time.Duration(horizonDays) * 24 * time.Hour)
	log := s.cfg.Logger.With(zap.Time("cutoff", cutoff), zap.Int("horizon_days", horizonDays))
	db := s.db.WithContext(ctx)

	var pending int64
	if err := db.Model(&models.BlogView{}).Where("viewed_at <= ?", cutoff).Count(&pending).Error; err != nil {
		return 0, err
	}
	if pending == 0 {
		log.Info("retention sweep: nothing to delete")
		return 0, nil
	}

	var deleted int64
	for {
		var ids []uint
		if err := db.Model(&models.BlogView{}).
			Where("viewed_at <= ?", cutoff).
			Order("id").Limit(s.batch).
			Pluck("id", &ids).Error; err != nil {
			return deleted, err
		}
		if len(ids) == 0 {
			break
		}
		res := db.Where("id IN ?", ids).Delete(&models.BlogView{})
		if res.Error != nil {
			return deleted, res.Error
		}
		deleted += res.RowsAffected
		eventsSwept.Add(float64(res.RowsAffected))
		if len(ids) < s.batch {
			break
		}
		select {
		case <-ctx.Done():
			log.Warn("retention sweep interrupted", zap.Int64("deleted", deleted))
			return deleted, ctx.Err()
		case <-time.After(s.pause):
		}
	}
	log.Info("retention sweep done", zap.Int64("deleted", deleted), zap.Int64("matched", pending))
	return deleted, nil
}
