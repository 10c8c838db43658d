package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Dikshant-04/webapp/analytics"
	"github.com/Dikshant-04/webapp/config"
	"github.com/Dikshant-04/webapp/jobs"
	"github.com/Dikshant-04/webapp/models"
	"github.com/Dikshant-04/webapp/routes"
	"github.com/Dikshant-04/webapp/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer utils.Logger.Sync() //nolint:errcheck

	db := config.InitDatabase(models.All()...)

	acfg := analytics.Config{
		Location:      cfg.Location(),
		RetentionDays: cfg.RetentionDays,
		Logger:        utils.Logger.Named("analytics"),
		Locker:        utils.NewKeyLocker(utils.GetRedis()),
	}

	queue := analytics.NewViewQueue(analytics.NewRecorder(db, acfg), analytics.QueueConfig{
		Size:        cfg.ViewQueueSize,
		Workers:     cfg.ViewWorkers,
		MaxAttempts: cfg.ViewMaxAttempts,
		Backoff:     time.Duration(cfg.ViewRetryBackoffMs) * time.Millisecond,
		Logger:      utils.Logger.Named("views"),
	})
	queue.Start()

	reporter := analytics.NewReporter(db, utils.SMTPMailer{}, cfg.SiteName, acfg)

	hooks := []func(context.Context){
		func(ctx context.Context) {
			if err := queue.Stop(ctx); err != nil {
				utils.Logger.Warn("view queue did not drain", zap.Error(err))
			}
		},
	}

	if !cfg.DisableJobs {
		activity := analytics.NewStoreActivity(db)
		sched := jobs.NewScheduler(jobs.Deps{
			Daily:    analytics.NewDailyAggregator(db, activity, acfg),
			Monthly:  analytics.NewMonthlyAggregator(db, activity, acfg),
			Sweeper:  analytics.NewSweeper(db, acfg),
			Reporter: reporter,
		}, jobs.Specs{
			Daily:     cfg.DailyAggregateCron,
			Monthly:   cfg.MonthlyAggregateCron,
			Retention: cfg.RetentionCron,
			Digest:    cfg.WeeklyDigestCron,
		}, acfg.Location, utils.Logger.Named("jobs"))
		if err := sched.Start(); err != nil {
			utils.Sugar.Fatalf("scheduler: %v", err)
		}
		// Stop the scheduler before draining the queue
		hooks = append([]func(context.Context){func(ctx context.Context) {
			if err := sched.Stop(ctx); err != nil {
				utils.Logger.Warn("scheduler stop timed out", zap.Error(err))
			}
		}}, hooks...)
	}

	r := routes.SetupRouter(routes.Deps{
		DB:        db,
		Analytics: acfg,
		Views:     queue,
		Reporter:  reporter,
	})

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r, hooks...); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
