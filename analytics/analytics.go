// Package analytics turns raw blog view events into daily and monthly rollups,
// prunes old events and composes the read-side dashboard.
package analytics

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Dikshant-04/webapp/utils"
)

var (
	ErrNotFound         = errors.New("analytics: blog not found")
	ErrPermissionDenied = errors.New("analytics: permission denied")
	ErrInFlight         = errors.New("analytics: aggregation already running")
	ErrRawEventsExpired = errors.New("analytics: raw events for period already swept")
	ErrInvalidPeriod    = errors.New("analytics: invalid period")
)

const (
	// DefaultRetentionDays is the age after which raw view events are swept.
	DefaultRetentionDays = 90
	// Uncategorized labels views of blogs without a category.
	Uncategorized = "Uncategorized"

	topBlogsLimit      = 10
	topCategoriesLimit = 5
	topAuthorsLimit    = 5
	aggregationLockTTL = 10 * time.Minute
)

// Config carries the settings shared by the pipeline components.
type Config struct {
	// Location is the reference timezone for calendar days. Defaults to UTC.
	Location      *time.Location
	RetentionDays int
	Logger        *zap.Logger
	Locker        utils.KeyLocker
	Now           func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = DefaultRetentionDays
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Locker == nil {
		c.Locker = utils.NewMemoryLocker()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Normalize returns c with every unset field given its default.
func (c Config) Normalize() Config { return c.withDefaults() }

func (c Config) now() time.Time { return c.Now().UTC() }

// Window is a half-open [Start, End) time range in UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// DayWindow returns the bounds of the calendar date containing t in loc.
func DayWindow(t time.Time, loc *time.Location) Window {
	y, m, d := t.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return Window{Start: start.UTC(), End: start.AddDate(0, 0, 1).UTC()}
}

// MonthWindow returns the bounds of the calendar month in loc.
func MonthWindow(year int, month time.Month, loc *time.Location) Window {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return Window{Start: start.UTC(), End: start.AddDate(0, 1, 0).UTC()}
}

// since returns the window from the start of the day `days` days before now, up to now.
func since(now time.Time, days int, loc *time.Location) Window {
	today := DayWindow(now, loc)
	start := today.Start.In(loc).AddDate(0, 0, -days)
	return Window{Start: start.UTC(), End: now.UTC()}
}

// CalendarDate is the storage key for a rollup day: the date in loc at 00:00 UTC.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
