package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Dikshant-04/webapp/models"
)

// Mailer delivers plain-text mail.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// Digest is the weekly summary sent to administrators.
type Digest struct {
	From           string `json:"from"`
	To             string `json:"to"`
	Days           int    `json:"days"`
	TotalViews     int64  `json:"total_views"`
	UniqueVisitors int64  `json:"unique_visitors"`
	NewBlogs       int64  `json:"new_blogs"`
	NewComments    int64  `json:"new_comments"`
	NewUsers       int64  `json:"new_users"`
	Recipients     int    `json:"recipients"`
	Delivered      bool   `json:"delivered"`
}

// Reporter sends notification mail built from rollups and submissions.
// Delivery failures are logged, never propagated to the caller's flow.
type Reporter struct {
	db       *gorm.DB
	mailer   Mailer
	cfg      Config
	siteName string
}

func NewReporter(db *gorm.DB, mailer Mailer, siteName string, cfg Config) *Reporter {
	if siteName == "" {
		siteName = "Blog"
	}
	return &Reporter{db: db, mailer: mailer, cfg: cfg.withDefaults(), siteName: siteName}
}

// WeeklyDigest sums the daily rollups of the seven dates before end's date and
// mails them to active administrators.
func (r *Reporter) WeeklyDigest(ctx context.Context, end time.Time) (*Digest, error) {
	last := CalendarDate(end, r.cfg.Location).AddDate(0, 0, -1)
	first := last.AddDate(0, 0, -6)
	d := &Digest{From: first.Format("2006-01-02"), To: last.Format("2006-01-02")}

	var rows []models.DailyAnalytics
	if err := r.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", first, last).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	d.Days = len(rows)
	for _, row := range rows {
		d.TotalViews += row.TotalViews
		d.UniqueVisitors += row.UniqueVisitors
		d.NewBlogs += row.NewBlogs
		d.NewComments += row.NewComments
		d.NewUsers += row.NewUsers
	}

	to, err := r.adminEmails(ctx)
	if err != nil {
		return nil, err
	}
	d.Recipients = len(to)
	log := r.cfg.Logger.With(zap.String("from", d.From), zap.String("to", d.To))
	if len(to) == 0 || r.mailer == nil {
		log.Info("weekly digest has no recipients")
		return d, nil
	}

	subject := fmt.Sprintf("[%s] Weekly analytics %s to %s", r.siteName, d.From, d.To)
	var b strings.Builder
	fmt.Fprintf(&b, "Analytics for %s to %s (%d days with data)\n\n", d.From, d.To, d.Days)
	fmt.Fprintf(&b, "Views:           %d\n", d.TotalViews)
	fmt.Fprintf(&b, "Unique visitors: %d\n", d.UniqueVisitors)
	fmt.Fprintf(&b, "New blogs:       %d\n", d.NewBlogs)
	fmt.Fprintf(&b, "New comments:    %d\n", d.NewComments)
	fmt.Fprintf(&b, "New users:       %d\n", d.NewUsers)
	if err := r.mailer.Send(ctx, to, subject, b.String()); err != nil {
		log.Warn("weekly digest delivery failed", zap.Error(err))
		return d, nil
	}
	d.Delivered = true
	log.Info("weekly digest sent", zap.Int("recipients", len(to)))
	return d, nil
}

// ContactNotification tells administrators about a new contact submission.
// It reports whether the mail went out.
func (r *Reporter) ContactNotification(ctx context.Context, sub *models.ContactSubmission) bool {
	log := r.cfg.Logger.With(zap.Uint("contact_id", sub.ID))
	to, err := r.adminEmails(ctx)
	if err != nil {
		log.Warn("load admin recipients failed", zap.Error(err))
		return false
	}
	if len(to) == 0 || r.mailer == nil {
		return false
	}
	subject := fmt.Sprintf("[%s] New contact: %s", r.siteName, sub.Subject)
	body := fmt.Sprintf("From: %s <%s>\nPhone: %s\nSubject: %s\n\n%s\n",
		sub.Name, sub.Email, sub.Phone, sub.Subject, sub.Message)
	if err := r.mailer.Send(ctx, to, subject, body); err != nil {
		log.Warn("contact notification failed", zap.Error(err))
		return false
	}
	return true
}

func (r *Reporter) adminEmails(ctx context.Context) ([]string, error) {
	var to []string
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("role = ? AND is_active = ? AND email <> ''", models.RoleAdmin, true).
		Order("id").
		Pluck("email", &to).Error
	return to, err
}
