package models

import (
	"time"

	"gorm.io/datatypes"
)

// Device types produced by the user agent classifier.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

// BlogView is one immutable page view of a blog. Rows are inserted by the
// ingest path and removed in bulk by the retention sweep; they are never
// updated in place.
type BlogView struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	BlogID          uint      `gorm:"index;not null" json:"blog_id"`
	UserID          *uint     `gorm:"index" json:"user_id"`
	IPAddress       *string   `gorm:"size:45;index" json:"ip_address"`
	UserAgent       string    `gorm:"type:text" json:"user_agent"`
	Referrer        string    `gorm:"size:1024" json:"referrer"`
	DeviceType      string    `gorm:"size:20" json:"device_type"`
	Browser         string    `gorm:"size:50" json:"browser"`
	OS              string    `gorm:"column:os;size:50" json:"os"`
	SessionDuration int       `gorm:"not null;default:0" json:"session_duration"`
	ViewedAt        time.Time `gorm:"index;not null;<-:create" json:"viewed_at"`
}

// TopBlog is one entry of a ranked blog list stored inside a rollup.
type TopBlog struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
	Views int64  `json:"views"`
}

// TopCategory is one entry of a ranked category list.
type TopCategory struct {
	Name  string `json:"name"`
	Views int64  `json:"views"`
}

// TopAuthor is one entry of a ranked author list.
type TopAuthor struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Views    int64  `json:"views"`
}

// DailyAnalytics is the rollup for one calendar date in the reference timezone.
type DailyAnalytics struct {
	ID             uint                             `gorm:"primaryKey" json:"id"`
	Date           time.Time                        `gorm:"type:date;not null;uniqueIndex" json:"date"`
	TotalViews     int64                            `gorm:"not null;default:0" json:"total_views"`
	UniqueVisitors int64                            `gorm:"not null;default:0" json:"unique_visitors"`
	NewBlogs       int64                            `gorm:"not null;default:0" json:"new_blogs"`
	NewComments    int64                            `gorm:"not null;default:0" json:"new_comments"`
	NewUsers       int64                            `gorm:"not null;default:0" json:"new_users"`
	ActiveUsers    int64                            `gorm:"not null;default:0" json:"active_users"`
	TopBlogs       datatypes.JSONSlice[TopBlog]     `json:"top_blogs"`
	TopCategories  datatypes.JSONSlice[TopCategory] `json:"top_categories"`
	DesktopViews   int64                            `gorm:"not null;default:0" json:"desktop_views"`
	MobileViews    int64                            `gorm:"not null;default:0" json:"mobile_views"`
	TabletViews    int64                            `gorm:"not null;default:0" json:"tablet_views"`
	CreatedAt      time.Time                        `json:"created_at"`
	UpdatedAt      time.Time                        `json:"updated_at"`
}

// MonthlyAnalytics is the rollup for one (year, month).
type MonthlyAnalytics struct {
	ID                 uint                             `gorm:"primaryKey" json:"id"`
	Year               int                              `gorm:"not null;uniqueIndex:idx_monthly_year_month" json:"year"`
	Month              int                              `gorm:"not null;uniqueIndex:idx_monthly_year_month" json:"month"`
	TotalViews         int64                            `gorm:"not null;default:0" json:"total_views"`
	UniqueVisitors     int64                            `gorm:"not null;default:0" json:"unique_visitors"`
	NewBlogs           int64                            `gorm:"not null;default:0" json:"new_blogs"`
	TotalComments      int64                            `gorm:"not null;default:0" json:"total_comments"`
	NewUsers           int64                            `gorm:"not null;default:0" json:"new_users"`
	TotalActiveUsers   int64                            `gorm:"not null;default:0" json:"total_active_users"`
	AvgSessionDuration float64                          `gorm:"not null;default:0" json:"avg_session_duration"`
	BounceRate         float64                          `gorm:"not null;default:0" json:"bounce_rate"`
	TopBlogs           datatypes.JSONSlice[TopBlog]     `json:"top_blogs"`
	TopAuthors         datatypes.JSONSlice[TopAuthor]   `json:"top_authors"`
	TopCategories      datatypes.JSONSlice[TopCategory] `json:"top_categories"`
	CreatedAt          time.Time                        `json:"created_at"`
	UpdatedAt          time.Time                        `json:"updated_at"`
}

// DeviceBreakdown returns the per-device counts as a map, omitting zero entries.
func (d *DailyAnalytics) DeviceBreakdown() map[string]int64 {
	out := map[string]int64{}
	if d.DesktopViews > 0 {
		out[DeviceDesktop] = d.DesktopViews
	}
	if d.MobileViews > 0 {
		out[DeviceMobile] = d.MobileViews
	}
	if d.TabletViews > 0 {
		out[DeviceTablet] = d.TabletViews
	}
	return out
}
