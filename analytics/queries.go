package analytics

import (
	"sort"

	"gorm.io/gorm"

	"github.com/Dikshant-04/webapp/models"
)

// eventsIn scopes a query to view events inside w, optionally for one blog.
func eventsIn(db *gorm.DB, w Window, blogID *uint) *gorm.DB {
	q := db.Table("blog_views").
		Where("blog_views.viewed_at >= ? AND blog_views.viewed_at < ?", w.Start, w.End)
	if blogID != nil {
		q = q.Where("blog_views.blog_id = ?", *blogID)
	}
	return q
}

func countViews(db *gorm.DB, w Window, blogID *uint) (int64, error) {
	var n int64
	err := eventsIn(db, w, blogID).Count(&n).Error
	return n, err
}

// countUniqueIPs counts distinct known addresses. Events without an address
// do not contribute.
func countUniqueIPs(db *gorm.DB, w Window, blogID *uint) (int64, error) {
	var n int64
	err := eventsIn(db, w, blogID).
		Where("blog_views.ip_address IS NOT NULL AND blog_views.ip_address <> ''").
		Select("COUNT(DISTINCT blog_views.ip_address)").
		Scan(&n).Error
	return n, err
}

type deviceCount struct {
	DeviceType string
	Views      int64
}

// deviceBreakdown maps device type to view count. Events with an empty
// device type are left out.
func deviceBreakdown(db *gorm.DB, w Window, blogID *uint) (map[string]int64, error) {
	var rows []deviceCount
	err := eventsIn(db, w, blogID).
		Where("blog_views.device_type <> ''").
		Select("blog_views.device_type AS device_type, COUNT(*) AS views").
		Group("blog_views.device_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.DeviceType] = r.Views
	}
	return out, nil
}

// topBlogs ranks blogs by views in w, ties broken by ascending id.
func topBlogs(db *gorm.DB, w Window, limit int) ([]models.TopBlog, error) {
	out := make([]models.TopBlog, 0, limit)
	err := eventsIn(db, w, nil).
		Joins("JOIN blogs ON blogs.id = blog_views.blog_id").
		Select("blogs.id AS id, blogs.title AS title, blogs.slug AS slug, COUNT(*) AS views").
		Group("blogs.id, blogs.title, blogs.slug").
		Order("views DESC").Order("blogs.id ASC").
		Limit(limit).
		Scan(&out).Error
	if out == nil {
		out = []models.TopBlog{}
	}
	return out, err
}

// topAuthors ranks authors by views of their blogs in w, ties broken by ascending id.
func topAuthors(db *gorm.DB, w Window, limit int) ([]models.TopAuthor, error) {
	out := make([]models.TopAuthor, 0, limit)
	err := eventsIn(db, w, nil).
		Joins("JOIN blogs ON blogs.id = blog_views.blog_id").
		Joins("JOIN users ON users.id = blogs.author_id").
		Select("users.id AS id, users.username AS username, COUNT(*) AS views").
		Group("users.id, users.username").
		Order("views DESC").Order("users.id ASC").
		Limit(limit).
		Scan(&out).Error
	if out == nil {
		out = []models.TopAuthor{}
	}
	return out, err
}

type categoryCount struct {
	Name  *string
	Views int64
}

// topCategories ranks category names by views in w, ties broken by ascending
// name. Blogs without a category count under Uncategorized.
func topCategories(db *gorm.DB, w Window, limit int) ([]models.TopCategory, error) {
	var rows []categoryCount
	err := eventsIn(db, w, nil).
		Joins("JOIN blogs ON blogs.id = blog_views.blog_id").
		Joins("LEFT JOIN categories ON categories.id = blogs.category_id").
		Select("categories.name AS name, COUNT(*) AS views").
		Group("categories.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	// A real category named Uncategorized folds into the null bucket.
	merged := make(map[string]int64, len(rows))
	for _, r := range rows {
		name := Uncategorized
		if r.Name != nil && *r.Name != "" {
			name = *r.Name
		}
		merged[name] += r.Views
	}
	out := make([]models.TopCategory, 0, len(merged))
	for name, views := range merged {
		out = append(out, models.TopCategory{Name: name, Views: views})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Views != out[j].Views {
			return out[i].Views > out[j].Views
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
