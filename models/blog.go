package models

import "time"

// Blog publication states.
const (
	BlogDraft     = "draft"
	BlogPublished = "published"
	BlogArchived  = "archived"
)

// Category groups blogs; a blog may have none.
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Slug        string    `gorm:"size:120;not null;uniqueIndex" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Tag is a free-form label attached to blogs.
type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:50;not null;uniqueIndex" json:"name"`
	Slug      string    `gorm:"size:60;not null;uniqueIndex" json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// Blog is a piece of published (or draft) content. ViewCount is the live
// denormalized counter bumped on every recorded view.
type Blog struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Slug        string     `gorm:"size:220;not null;uniqueIndex" json:"slug"`
	Excerpt     string     `gorm:"size:500" json:"excerpt"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	AuthorID    uint       `gorm:"index;not null" json:"author_id"`
	CategoryID  *uint      `gorm:"index" json:"category_id"`
	Status      string     `gorm:"size:16;not null;default:draft;index" json:"status"`
	IsFeatured  bool       `gorm:"not null;default:false" json:"is_featured"`
	ViewCount   int64      `gorm:"not null;default:0" json:"view_count"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Author   User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Category *Category `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"category,omitempty"`
	Tags     []Tag     `gorm:"many2many:blog_tags;" json:"tags"`

	Comments []BlogComment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Views    []BlogView    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// IsPublished reports whether the blog is publicly visible.
func (b *Blog) IsPublished() bool { return b.Status == BlogPublished }

// ValidBlogStatus reports whether s names a known status.
func ValidBlogStatus(s string) bool {
	switch s {
	case BlogDraft, BlogPublished, BlogArchived:
		return true
	}
	return false
}

// BlogComment is a reply to a blog, optionally nested under a parent comment.
type BlogComment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	BlogID     uint      `gorm:"index;not null" json:"blog_id"`
	AuthorID   uint      `gorm:"index;not null" json:"author_id"`
	ParentID   *uint     `gorm:"index" json:"parent_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	IsApproved bool      `gorm:"not null;default:true" json:"is_approved"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Author  User          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Replies []BlogComment `gorm:"-" json:"replies,omitempty"`
}
