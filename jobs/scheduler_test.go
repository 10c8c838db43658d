package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Dikshant-04/webapp/analytics"
	"github.com/Dikshant-04/webapp/models"
	"github.com/Dikshant-04/webapp/testsupport"
)

func newTestScheduler(t *testing.T, now time.Time) (*Scheduler, *gorm.DB) {
	t.Helper()
	db := testsupport.NewDB(t)
	cfg := analytics.Config{Now: testsupport.FixedClock(now)}
	activity := analytics.NewStoreActivity(db)
	s := NewScheduler(Deps{
		Daily:   analytics.NewDailyAggregator(db, activity, cfg),
		Monthly: analytics.NewMonthlyAggregator(db, activity, cfg),
		Sweeper: analytics.NewSweeper(db, cfg),
	}, Specs{}, time.UTC, nil)
	return s, db
}

func TestScheduledJobs(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 30, 0, 0, time.UTC)

	t.Run("daily job rolls up yesterday", func(t *testing.T) {
		s, db := newTestScheduler(t, now)
		author := testsupport.CreateUser(t, db, "author", models.RoleStaff)
		blog := testsupport.CreateBlog(t, db, author, "Post", nil)
		testsupport.CreateView(t, db, blog.ID, time.Date(2026, 3, 31, 18, 0, 0, 0, time.UTC), testsupport.View{IP: "10.0.0.1"})

		s.runSafely(JobDaily, s.runDaily)

		var row models.DailyAnalytics
		require.NoError(t, db.First(&row).Error)
		assert.Equal(t, "2026-03-31", row.Date.Format("2006-01-02"))
		assert.Equal(t, int64(1), row.TotalViews)
	})

	t.Run("monthly job rolls up the previous month", func(t *testing.T) {
		s, db := newTestScheduler(t, now)
		s.runSafely(JobMonthly, s.runMonthly)

		var row models.MonthlyAnalytics
		require.NoError(t, db.First(&row).Error)
		assert.Equal(t, 2026, row.Year)
		assert.Equal(t, 3, row.Month)
	})

	t.Run("retention job sweeps old events", func(t *testing.T) {
		s, db := newTestScheduler(t, now)
		author := testsupport.CreateUser(t, db, "author", models.RoleStaff)
		blog := testsupport.CreateBlog(t, db, author, "Post", nil)
		testsupport.CreateView(t, db, blog.ID, now.AddDate(0, 0, -200), testsupport.View{})

		s.runSafely(JobRetention, s.runRetention)

		var n int64
		require.NoError(t, db.Model(&models.BlogView{}).Count(&n).Error)
		assert.Zero(t, n)
	})
}

func TestRunSafely(t *testing.T) {
	s := NewScheduler(Deps{}, Specs{}, nil, nil)

	t.Run("recovers from panics", func(t *testing.T) {
		assert.NotPanics(t, func() {
			s.runSafely("boom", func(context.Context) error { panic("boom") })
		})
		s.mu.Lock()
		defer s.mu.Unlock()
		assert.False(t, s.running["boom"], "flag is cleared after a panic")
	})

	t.Run("skips a job that is still running", func(t *testing.T) {
		release := make(chan struct{})
		started := make(chan struct{})
		go s.runSafely("slow", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
		<-started

		ran := false
		s.runSafely("slow", func(context.Context) error { ran = true; return nil })
		assert.False(t, ran)

		other := false
		s.runSafely("other", func(context.Context) error { other = true; return errors.New("fails") })
		assert.True(t, other, "different jobs run independently")
		close(release)
	})
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := NewScheduler(Deps{}, Specs{Daily: "not a cron spec"}, time.UTC, nil)
	assert.Error(t, s.Start())
}

func TestStartAndStop(t *testing.T) {
	s := NewScheduler(Deps{}, Specs{}, time.UTC, nil)
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 3, "digest is not scheduled without a reporter")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
