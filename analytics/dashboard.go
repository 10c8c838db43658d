package analytics

import (
	"context"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/Dikshant-04/webapp/models"
)

// Requester identifies who asks for a content-level summary.
type Requester struct {
	UserID uint
	Role   string
}

// Totals are the all-time counters shown on the dashboard.
type Totals struct {
	PublishedBlogs int64 `json:"total_blogs"`
	Users          int64 `json:"total_users"`
	Comments       int64 `json:"total_comments"`
	Views          int64 `json:"total_views"`
}

// Periods holds a figure for today, the last week and the last month.
type Periods struct {
	Today int64 `json:"today"`
	Week  int64 `json:"this_week"`
	Month int64 `json:"this_month"`
}

// RankedBlog is a blog ranked by its live view counter.
type RankedBlog struct {
	ID        uint   `json:"id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Author    string `json:"author"`
	ViewCount int64  `json:"view_count"`
}

type RecentBlog struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Status    string    `json:"status"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

type RecentUser struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// DailyPoint is one date of a views series.
type DailyPoint struct {
	Date           string `json:"date"`
	Views          int64  `json:"views"`
	UniqueVisitors int64  `json:"unique_visitors,omitempty"`
}

// Summary is the site-wide dashboard payload.
type Summary struct {
	Totals          Totals           `json:"summary"`
	Views           Periods          `json:"views"`
	NewUsers        Periods          `json:"new_users"`
	TopBlogs        []RankedBlog     `json:"top_blogs"`
	RecentBlogs     []RecentBlog     `json:"recent_blogs"`
	RecentUsers     []RecentUser     `json:"recent_users"`
	DeviceBreakdown map[string]int64 `json:"device_breakdown"`
	DailyViews      []DailyPoint     `json:"daily_views"`
}

// ContentSummary is the per-blog analytics payload.
type ContentSummary struct {
	BlogID             uint             `json:"blog_id"`
	Title              string           `json:"title"`
	Slug               string           `json:"slug"`
	TotalViews         int64            `json:"total_views"`
	ViewsWeek          int64            `json:"views_this_week"`
	ViewsMonth         int64            `json:"views_this_month"`
	UniqueVisitorsWeek int64            `json:"unique_visitors_this_week"`
	DeviceBreakdown    map[string]int64 `json:"device_breakdown"`
	DailyViews         []DailyPoint     `json:"daily_views"`
}

// Dashboard composes read-only views over live tables and rollups.
type Dashboard struct {
	db  *gorm.DB
	cfg Config
}

func NewDashboard(db *gorm.DB, cfg Config) *Dashboard {
	return &Dashboard{db: db, cfg: cfg.withDefaults()}
}

type periodWindows struct {
	today, week, month Window
}

func (d *Dashboard) windows() periodWindows {
	now := d.cfg.now()
	loc := d.cfg.Location
	return periodWindows{
		today: since(now, 0, loc),
		week:  since(now, 7, loc),
		month: since(now, 30, loc),
	}
}

// Compose builds the site-wide summary as of now.
func (d *Dashboard) Compose(ctx context.Context) (*Summary, error) {
	db := d.db.WithContext(ctx)
	pw := d.windows()
	out := &Summary{}

	if err := db.Model(&models.Blog{}).Where("status = ?", models.BlogPublished).Count(&out.Totals.PublishedBlogs).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.User{}).Count(&out.Totals.Users).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.BlogComment{}).Count(&out.Totals.Comments).Error; err != nil {
		return nil, err
	}
	// all-time views come from the live counters, which outlive swept events
	if err := db.Model(&models.Blog{}).Select("COALESCE(SUM(view_count), 0)").Scan(&out.Totals.Views).Error; err != nil {
		return nil, err
	}

	var err error
	if out.Views, err = d.viewPeriods(db, pw, nil); err != nil {
		return nil, err
	}
	for _, p := range []struct {
		w   Window
		dst *int64
	}{{pw.today, &out.NewUsers.Today}, {pw.week, &out.NewUsers.Week}, {pw.month, &out.NewUsers.Month}} {
		if err := db.Model(&models.User{}).Where("created_at >= ? AND created_at < ?", p.w.Start, p.w.End).Count(p.dst).Error; err != nil {
			return nil, err
		}
	}

	out.TopBlogs = []RankedBlog{}
	if err := db.Table("blogs").
		Select("blogs.id AS id, blogs.title AS title, blogs.slug AS slug, users.username AS author, blogs.view_count AS view_count").
		Joins("JOIN users ON users.id = blogs.author_id").
		Where("blogs.status = ?", models.BlogPublished).
		Order("blogs.view_count DESC").Order("blogs.id ASC").
		Limit(topBlogsLimit).
		Scan(&out.TopBlogs).Error; err != nil {
		return nil, err
	}
	out.RecentBlogs = []RecentBlog{}
	if err := db.Table("blogs").
		Select("blogs.id AS id, blogs.title AS title, blogs.slug AS slug, blogs.status AS status, users.username AS author, blogs.created_at AS created_at").
		Joins("JOIN users ON users.id = blogs.author_id").
		Order("blogs.created_at DESC").Order("blogs.id DESC").
		Limit(5).
		Scan(&out.RecentBlogs).Error; err != nil {
		return nil, err
	}
	out.RecentUsers = []RecentUser{}
	if err := db.Model(&models.User{}).
		Select("id, username, email, role, created_at").
		Order("created_at DESC").Order("id DESC").
		Limit(5).
		Scan(&out.RecentUsers).Error; err != nil {
		return nil, err
	}

	if out.DeviceBreakdown, err = deviceBreakdown(db, pw.month, nil); err != nil {
		return nil, err
	}

	var rollups []models.DailyAnalytics
	if err := db.Where("date >= ?", CalendarDate(pw.month.Start.In(d.cfg.Location), d.cfg.Location)).
		Order("date ASC").
		Find(&rollups).Error; err != nil {
		return nil, err
	}
	out.DailyViews = make([]DailyPoint, 0, len(rollups))
	for _, r := range rollups {
		out.DailyViews = append(out.DailyViews, DailyPoint{
			Date:           r.Date.Format("2006-01-02"),
			Views:          r.TotalViews,
			UniqueVisitors: r.UniqueVisitors,
		})
	}
	return out, nil
}

// ContentSummary reports analytics for one blog. Only admins and the blog's
// author may read it.
func (d *Dashboard) ContentSummary(ctx context.Context, blogID uint, who Requester) (*ContentSummary, error) {
	db := d.db.WithContext(ctx)
	var blog models.Blog
	if err := db.Select("id, title, slug, author_id, view_count").First(&blog, blogID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if who.Role != models.RoleAdmin && blog.AuthorID != who.UserID {
		return nil, ErrPermissionDenied
	}

	pw := d.windows()
	out := &ContentSummary{
		BlogID:     blog.ID,
		Title:      blog.Title,
		Slug:       blog.Slug,
		TotalViews: blog.ViewCount,
	}
	periods, err := d.viewPeriods(db, pw, &blog.ID)
	if err != nil {
		return nil, err
	}
	out.ViewsWeek = periods.Week
	out.ViewsMonth = periods.Month
	if out.UniqueVisitorsWeek, err = countUniqueIPs(db, pw.week, &blog.ID); err != nil {
		return nil, err
	}
	if out.DeviceBreakdown, err = deviceBreakdown(db, pw.month, &blog.ID); err != nil {
		return nil, err
	}

	var stamps []time.Time
	if err := eventsIn(db, pw.month, &blog.ID).Pluck("blog_views.viewed_at", &stamps).Error; err != nil {
		return nil, err
	}
	out.DailyViews = bucketByDate(stamps, d.cfg.Location)
	return out, nil
}

func (d *Dashboard) viewPeriods(db *gorm.DB, pw periodWindows, blogID *uint) (Periods, error) {
	var p Periods
	var err error
	if p.Today, err = countViews(db, pw.today, blogID); err != nil {
		return p, err
	}
	if p.Week, err = countViews(db, pw.week, blogID); err != nil {
		return p, err
	}
	p.Month, err = countViews(db, pw.month, blogID)
	return p, err
}

// bucketByDate counts timestamps per calendar date in loc, ascending.
func bucketByDate(stamps []time.Time, loc *time.Location) []DailyPoint {
	counts := map[string]int64{}
	for _, t := range stamps {
		counts[t.In(loc).Format("2006-01-02")]++
	}
	out := make([]DailyPoint, 0, len(counts))
	for date, n := range counts {
		out = append(out, DailyPoint{Date: date, Views: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
