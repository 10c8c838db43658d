package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Dikshant-04/webapp/analytics"
	"github.com/Dikshant-04/webapp/models"
	"github.com/Dikshant-04/webapp/utils"
)

const dashboardCacheKey = "cache:analytics:dashboard"

// AnalyticsController serves rollups and the dashboard, and lets admins
// trigger the pipeline jobs by hand.
type AnalyticsController struct {
	db        *gorm.DB
	cfg       analytics.Config
	dashboard *analytics.Dashboard
	daily     *analytics.DailyAggregator
	monthly   *analytics.MonthlyAggregator
	sweeper   *analytics.Sweeper
}

// NewAnalyticsController wires the pipeline components over db. Passing the
// same Locker as the scheduler keeps manual and scheduled runs exclusive.
func NewAnalyticsController(db *gorm.DB, cfg analytics.Config) *AnalyticsController {
	cfg = cfg.Normalize()
	activity := analytics.NewStoreActivity(db)
	return &AnalyticsController{
		db:        db,
		cfg:       cfg,
		dashboard: analytics.NewDashboard(db, cfg),
		daily:     analytics.NewDailyAggregator(db, activity, cfg),
		monthly:   analytics.NewMonthlyAggregator(db, activity, cfg),
		sweeper:   analytics.NewSweeper(db, cfg),
	}
}

// analyticsError maps pipeline errors to responses.
func analyticsError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, analytics.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40470, "blog not found")
	case errors.Is(err, analytics.ErrPermissionDenied):
		utils.Error(ctx, http.StatusForbidden, 40370, "not allowed to view these analytics")
	case errors.Is(err, analytics.ErrInFlight):
		utils.Error(ctx, http.StatusConflict, 40970, "aggregation already running")
	case errors.Is(err, analytics.ErrRawEventsExpired):
		utils.Error(ctx, http.StatusBadRequest, 40071, "raw events for that period were already swept")
	case errors.Is(err, analytics.ErrInvalidPeriod):
		utils.Error(ctx, http.StatusBadRequest, 40072, "invalid period")
	default:
		utils.Logger.Error("analytics request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50070, "analytics query failed")
	}
}

func boundedInt(raw string, def, lo, hi int) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, false
	}
	return n, true
}

// Dashboard returns the site-wide summary.
func (a *AnalyticsController) Dashboard(ctx *gin.Context) {
	if utils.ServeCached(ctx, dashboardCacheKey) {
		return
	}
	summary, err := a.dashboard.Compose(ctx.Request.Context())
	if err != nil {
		analyticsError(ctx, err)
		return
	}
	utils.CacheSuccess(dashboardCacheKey, summary, time.Minute)
	utils.Success(ctx, summary)
}

// Daily lists daily rollups for the last ?days dates, newest first.
func (a *AnalyticsController) Daily(ctx *gin.Context) {
	days, ok := boundedInt(ctx.Query("days"), 30, 1, 366)
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40073, "days must be between 1 and 366")
		return
	}
	from := analytics.CalendarDate(a.cfg.Now(), a.cfg.Location).AddDate(0, 0, -days)

	rows := []models.DailyAnalytics{}
	if err := a.db.WithContext(ctx.Request.Context()).
		Where("date >= ?", from).Order("date DESC").Find(&rows).Error; err != nil {
		analyticsError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": rows, "days": days})
}

// Monthly lists the latest ?months monthly rollups.
func (a *AnalyticsController) Monthly(ctx *gin.Context) {
	months, ok := boundedInt(ctx.Query("months"), 12, 1, 120)
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40074, "months must be between 1 and 120")
		return
	}
	rows := []models.MonthlyAnalytics{}
	if err := a.db.WithContext(ctx.Request.Context()).
		Order("year DESC").Order("month DESC").Limit(months).Find(&rows).Error; err != nil {
		analyticsError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": rows, "months": months})
}

// Views returns the latest raw view events, optionally for one blog.
func (a *AnalyticsController) Views(ctx *gin.Context) {
	query := a.db.WithContext(ctx.Request.Context()).Model(&models.BlogView{})
	if raw := ctx.Query("blog_id"); raw != "" {
		id, ok := parseID(raw)
		if !ok {
			utils.Error(ctx, http.StatusBadRequest, 40075, "invalid blog_id")
			return
		}
		query = query.Where("blog_id = ?", id)
	}
	views := []models.BlogView{}
	if err := query.Order("viewed_at DESC").Order("id DESC").Limit(100).Find(&views).Error; err != nil {
		analyticsError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": views})
}

// BlogAnalytics returns per-blog figures to its author or an admin.
func (a *AnalyticsController) BlogAnalytics(ctx *gin.Context) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40076, "invalid blog id")
		return
	}
	uid, _ := getUserID(ctx)
	summary, err := a.dashboard.ContentSummary(ctx.Request.Context(), id, analytics.Requester{UserID: uid, Role: getRole(ctx)})
	if err != nil {
		analyticsError(ctx, err)
		return
	}
	utils.Success(ctx, summary)
}

// RunDaily aggregates ?date=YYYY-MM-DD, yesterday by default.
func (a *AnalyticsController) RunDaily(ctx *gin.Context) {
	day := a.daily.Yesterday()
	if raw := strings.TrimSpace(ctx.Query("date")); raw != "" {
		t, err := time.ParseInLocation("2006-01-02", raw, a.cfg.Location)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40077, "date must be YYYY-MM-DD")
			return
		}
		day = t
	}

	row, err := a.daily.AggregateDay(ctx.Request.Context(), day)
	if err != nil {
		analyticsError(ctx, err)
		return
	}
	utils.InvalidateByPrefix(dashboardCacheKey)
	utils.Logger.Info("manual daily aggregation", zap.String("date", row.Date.Format("2006-01-02")))
	utils.Success(ctx, row)
}

// RunMonthly aggregates ?year=&month=, the previous month by default.
func (a *AnalyticsController) RunMonthly(ctx *gin.Context) {
	year, month := a.monthly.PreviousMonth()
	rawYear, rawMonth := strings.TrimSpace(ctx.Query("year")), strings.TrimSpace(ctx.Query("month"))
	if rawYear != "" || rawMonth != "" {
		y, yerr := strconv.Atoi(rawYear)
		m, merr := strconv.Atoi(rawMonth)
		if yerr != nil || merr != nil {
			utils.Error(ctx, http.StatusBadRequest, 40072, "year and month must both be numbers")
			return
		}
		year, month = y, time.Month(m)
	}

	row, err := a.monthly.AggregateMonth(ctx.Request.Context(), year, month)
	if err != nil {
		analyticsError(ctx, err)
		return
	}
	utils.Logger.Info("manual monthly aggregation", zap.Int("year", row.Year), zap.Int("month", row.Month))
	utils.Success(ctx, row)
}

// RunRetention sweeps events older than ?days (the configured retention by default).
func (a *AnalyticsController) RunRetention(ctx *gin.Context) {
	days, ok := boundedInt(ctx.Query("days"), 0, 1, 3650)
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40078, "days must be between 1 and 3650")
		return
	}
	deleted, err := a.sweeper.Sweep(ctx.Request.Context(), days)
	if err != nil {
		analyticsError(ctx, err)
		return
	}
	if days == 0 {
		days = a.cfg.RetentionDays
	}
	utils.Success(ctx, gin.H{"deleted": deleted, "horizon_days": days})
}
