package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Dikshant-04/webapp/middleware"
	"github.com/Dikshant-04/webapp/models"
	"github.com/Dikshant-04/webapp/utils"
)

const blogListCacheTTL = time.Minute

// BlogController exposes blogs, their comments, categories and tags.
type BlogController struct {
	db *gorm.DB
}

// NewBlogController creates a BlogController.
func NewBlogController(db *gorm.DB) *BlogController {
	return &BlogController{db: db}
}

func blogPayload(b models.Blog) gin.H {
	h := gin.H{
		"id":           b.ID,
		"title":        b.Title,
		"slug":         b.Slug,
		"excerpt":      b.Excerpt,
		"content":      b.Content,
		"status":       b.Status,
		"is_featured":  b.IsFeatured,
		"view_count":   b.ViewCount,
		"published_at": b.PublishedAt,
		"created_at":   b.CreatedAt,
		"updated_at":   b.UpdatedAt,
		"author":       publicUser(b.Author),
		"tags":         b.Tags,
	}
	if b.Tags == nil {
		h["tags"] = []models.Tag{}
	}
	if b.Category != nil {
		h["category"] = gin.H{"id": b.Category.ID, "name": b.Category.Name, "slug": b.Category.Slug}
	} else {
		h["category"] = nil
	}
	return h
}

func blogListPayload(blogs []models.Blog) []gin.H {
	items := make([]gin.H, 0, len(blogs))
	for _, b := range blogs {
		item := blogPayload(b)
		delete(item, "content")
		items = append(items, item)
	}
	return items
}

// ListBlogs returns published blogs filtered by category, tag, search and featured.
func (b *BlogController) ListBlogs(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	search := strings.TrimSpace(ctx.Query("search"))
	category := strings.TrimSpace(ctx.Query("category"))
	tag := strings.TrimSpace(ctx.Query("tag"))
	featured, hasFeatured := parseBoolQuery(ctx, "featured")

	// Searches are not cached to keep the key space bounded
	cacheKey := ""
	if search == "" {
		cacheKey = fmt.Sprintf("cache:blogs:list:cat=%s:tag=%s:featured=%s:page=%d:size=%d",
			category, tag, ctx.Query("featured"), page, pageSize)
		if utils.ServeCached(ctx, cacheKey) {
			return
		}
	}

	query := b.db.Model(&models.Blog{}).Where("blogs.status = ?", models.BlogPublished)
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("blogs.title LIKE ? OR blogs.excerpt LIKE ? OR blogs.content LIKE ?", like, like, like)
	}
	if category != "" {
		query = query.Where("blogs.category_id IN (?)", b.db.Model(&models.Category{}).Select("id").Where("slug = ?", category))
	}
	if tag != "" {
		query = query.Where("blogs.id IN (?)", b.db.Table("blog_tags").Select("blog_tags.blog_id").
			Joins("JOIN tags ON tags.id = blog_tags.tag_id").Where("tags.slug = ?", tag))
	}
	if hasFeatured {
		query = query.Where("blogs.is_featured = ?", featured)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to count blogs")
		return
	}

	var blogs []models.Blog
	err := query.Preload("Author").Preload("Category").Preload("Tags").
		Order("blogs.published_at DESC").Order("blogs.id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&blogs).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to list blogs")
		return
	}

	payload := utils.PageData(blogListPayload(blogs), page, pageSize, total)
	if cacheKey != "" {
		utils.CacheSuccess(cacheKey, payload, blogListCacheTTL)
	}
	utils.Success(ctx, payload)
}

// GetBlog returns a blog by slug. Unpublished blogs are visible only to their
// author and to admins. Serving a published blog records a view.
func (b *BlogController) GetBlog(ctx *gin.Context) {
	var blog models.Blog
	err := b.db.Preload("Author").Preload("Category").Preload("Tags").
		Where("slug = ?", strings.TrimSpace(ctx.Param("slug"))).First(&blog).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "blog not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load blog")
		return
	}

	if !blog.IsPublished() {
		uid, _ := getUserID(ctx)
		if uid != blog.AuthorID && !isAdmin(ctx) {
			utils.Error(ctx, http.StatusNotFound, 40401, "blog not found")
			return
		}
	} else {
		ctx.Set(middleware.ContextViewedBlogKey, blog.ID)
	}

	var comments int64
	b.db.Model(&models.BlogComment{}).Where("blog_id = ? AND is_approved = ?", blog.ID, true).Count(&comments)

	payload := blogPayload(blog)
	payload["comment_count"] = comments
	utils.Success(ctx, payload)
}

// MyBlogs lists the caller's own blogs in every status.
func (b *BlogController) MyBlogs(ctx *gin.Context) {
	uid, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	query := b.db.Model(&models.Blog{}).Where("author_id = ?", uid)
	if status := strings.TrimSpace(ctx.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to count blogs")
		return
	}
	var blogs []models.Blog
	if err := query.Preload("Author").Preload("Category").Preload("Tags").
		Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&blogs).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to list blogs")
		return
	}
	utils.Success(ctx, utils.PageData(blogListPayload(blogs), page, pageSize, total))
}

type blogRequest struct {
	Title      *string  `json:"title"`
	Content    *string  `json:"content"`
	Excerpt    *string  `json:"excerpt"`
	CategoryID *uint    `json:"category_id"`
	Tags       []string `json:"tags"`
	Status     *string  `json:"status"`
	IsFeatured *bool    `json:"is_featured"`
}

// uniqueSlug derives a slug from title, suffixing -2, -3... until unused.
func uniqueSlug(tx *gorm.DB, model interface{}, title string) string {
	base := utils.Slugify(title)
	candidate := base
	for i := 2; ; i++ {
		var count int64
		if err := tx.Model(model).Where("slug = ?", candidate).Count(&count).Error; err != nil || count == 0 {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// resolveTags returns the tags named, creating missing ones.
func resolveTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	seen := map[string]bool{}
	for _, raw := range names {
		name := truncateRunes(utils.SanitizeText(raw), 50)
		if name == "" {
			continue
		}
		slug := utils.Slugify(name)
		if seen[slug] {
			continue
		}
		seen[slug] = true

		var tag models.Tag
		err := tx.Where("slug = ?", slug).First(&tag).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tag = models.Tag{Name: name, Slug: slug}
			err = tx.Create(&tag).Error
		}
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (b *BlogController) categoryExists(id uint) bool {
	var count int64
	b.db.Model(&models.Category{}).Where("id = ?", id).Count(&count)
	return count > 0
}

// CreateBlog creates a blog authored by the caller.
func (b *BlogController) CreateBlog(ctx *gin.Context) {
	uid, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var req blogRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" || req.Content == nil || strings.TrimSpace(*req.Content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "title and content are required")
		return
	}
	status := models.BlogDraft
	if req.Status != nil {
		status = *req.Status
	}
	if !models.ValidBlogStatus(status) {
		utils.Error(ctx, http.StatusBadRequest, 40022, "unknown status")
		return
	}
	if req.CategoryID != nil && !b.categoryExists(*req.CategoryID) {
		utils.Error(ctx, http.StatusBadRequest, 40023, "unknown category")
		return
	}

	blog := models.Blog{
		Title:      truncateRunes(utils.SanitizeText(*req.Title), 200),
		Content:    utils.Sanitize(*req.Content),
		AuthorID:   uid,
		CategoryID: req.CategoryID,
		Status:     status,
	}
	if req.Excerpt != nil {
		blog.Excerpt = truncateRunes(utils.SanitizeText(*req.Excerpt), 500)
	}
	if req.IsFeatured != nil {
		blog.IsFeatured = *req.IsFeatured
	}
	if status == models.BlogPublished {
		now := time.Now().UTC()
		blog.PublishedAt = &now
	}

	err := b.db.Transaction(func(tx *gorm.DB) error {
		blog.Slug = uniqueSlug(tx, &models.Blog{}, blog.Title)
		tags, err := resolveTags(tx, req.Tags)
		if err != nil {
			return err
		}
		blog.Tags = tags
		return tx.Create(&blog).Error
	})
	if err != nil {
		utils.Logger.Error("create blog failed", zap.Uint("author_id", uid), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to create blog")
		return
	}

	b.db.Preload("Author").Preload("Category").Preload("Tags").First(&blog, blog.ID)
	utils.InvalidateByPrefix("cache:blogs:")
	utils.Respond(ctx, http.StatusCreated, 0, "success", blogPayload(blog))
}

// loadOwnedBlog fetches the blog named by :id and checks the caller is its
// author or an admin.
func (b *BlogController) loadOwnedBlog(ctx *gin.Context) (*models.Blog, bool) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid blog id")
		return nil, false
	}
	var blog models.Blog
	if err := b.db.First(&blog, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "blog not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load blog")
		return nil, false
	}
	uid, _ := getUserID(ctx)
	if blog.AuthorID != uid && !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40320, "not allowed to modify this blog")
		return nil, false
	}
	return &blog, true
}

// UpdateBlog applies a partial update. The slug is kept stable across title edits.
func (b *BlogController) UpdateBlog(ctx *gin.Context) {
	var req blogRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	blog, ok := b.loadOwnedBlog(ctx)
	if !ok {
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := truncateRunes(utils.SanitizeText(*req.Title), 200)
		if title == "" {
			utils.Error(ctx, http.StatusBadRequest, 40021, "title cannot be empty")
			return
		}
		updates["title"] = title
	}
	if req.Content != nil {
		updates["content"] = utils.Sanitize(*req.Content)
	}
	if req.Excerpt != nil {
		updates["excerpt"] = truncateRunes(utils.SanitizeText(*req.Excerpt), 500)
	}
	if req.CategoryID != nil {
		if !b.categoryExists(*req.CategoryID) {
			utils.Error(ctx, http.StatusBadRequest, 40023, "unknown category")
			return
		}
		updates["category_id"] = *req.CategoryID
	}
	if req.IsFeatured != nil {
		updates["is_featured"] = *req.IsFeatured
	}
	if req.Status != nil {
		if !models.ValidBlogStatus(*req.Status) {
			utils.Error(ctx, http.StatusBadRequest, 40022, "unknown status")
			return
		}
		updates["status"] = *req.Status
		if *req.Status == models.BlogPublished && blog.PublishedAt == nil {
			updates["published_at"] = time.Now().UTC()
		}
	}

	err := b.db.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			updates["updated_at"] = time.Now().UTC()
			if err := tx.Model(blog).UpdateColumns(updates).Error; err != nil {
				return err
			}
		}
		if req.Tags != nil {
			tags, err := resolveTags(tx, req.Tags)
			if err != nil {
				return err
			}
			if err := tx.Model(blog).Association("Tags").Replace(tags); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to update blog")
		return
	}

	var fresh models.Blog
	b.db.Preload("Author").Preload("Category").Preload("Tags").First(&fresh, blog.ID)
	utils.InvalidateByPrefix("cache:blogs:")
	utils.Success(ctx, blogPayload(fresh))
}

// deleteBlogRows removes blogs and everything hanging off them.
func deleteBlogRows(tx *gorm.DB, ids []uint) error {
	if err := tx.Where("blog_id IN ?", ids).Delete(&models.BlogView{}).Error; err != nil {
		return err
	}
	if err := tx.Where("blog_id IN ?", ids).Delete(&models.BlogComment{}).Error; err != nil {
		return err
	}
	if err := tx.Exec("DELETE FROM blog_tags WHERE blog_id IN ?", ids).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.Blog{}).Error
}

// DeleteBlog removes a blog with its comments and view events.
func (b *BlogController) DeleteBlog(ctx *gin.Context) {
	blog, ok := b.loadOwnedBlog(ctx)
	if !ok {
		return
	}
	if err := b.db.Transaction(func(tx *gorm.DB) error {
		return deleteBlogRows(tx, []uint{blog.ID})
	}); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to delete blog")
		return
	}
	utils.InvalidateByPrefix("cache:blogs:")
	utils.Success(ctx, gin.H{"id": blog.ID, "deleted": true})
}

func (b *BlogController) publishedBySlug(ctx *gin.Context) (*models.Blog, bool) {
	var blog models.Blog
	err := b.db.Where("slug = ? AND status = ?", strings.TrimSpace(ctx.Param("slug")), models.BlogPublished).First(&blog).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "blog not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load blog")
		return nil, false
	}
	return &blog, true
}

func commentPayload(c models.BlogComment) gin.H {
	replies := make([]gin.H, 0, len(c.Replies))
	for _, r := range c.Replies {
		replies = append(replies, commentPayload(r))
	}
	return gin.H{
		"id":          c.ID,
		"blog_id":     c.BlogID,
		"parent_id":   c.ParentID,
		"content":     c.Content,
		"is_approved": c.IsApproved,
		"created_at":  c.CreatedAt,
		"author":      publicUser(c.Author),
		"replies":     replies,
	}
}

// buildCommentTree nests comments under their parents. Input must be ordered
// oldest first; replies whose parent is missing are dropped.
func buildCommentTree(comments []models.BlogComment) []models.BlogComment {
	children := map[uint][]models.BlogComment{}
	var roots []models.BlogComment
	for _, c := range comments {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], c)
	}
	var attach func(c models.BlogComment) models.BlogComment
	attach = func(c models.BlogComment) models.BlogComment {
		for _, child := range children[c.ID] {
			c.Replies = append(c.Replies, attach(child))
		}
		return c
	}
	out := make([]models.BlogComment, 0, len(roots))
	for _, r := range roots {
		out = append(out, attach(r))
	}
	return out
}

// ListComments returns the approved comment tree of a published blog.
func (b *BlogController) ListComments(ctx *gin.Context) {
	blog, ok := b.publishedBySlug(ctx)
	if !ok {
		return
	}
	var comments []models.BlogComment
	if err := b.db.Preload("Author").Where("blog_id = ? AND is_approved = ?", blog.ID, true).
		Order("created_at ASC").Order("id ASC").Find(&comments).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to load comments")
		return
	}
	tree := buildCommentTree(comments)
	items := make([]gin.H, 0, len(tree))
	for _, c := range tree {
		items = append(items, commentPayload(c))
	}
	utils.Success(ctx, gin.H{"items": items, "total": len(comments)})
}

// CreateComment adds a comment, optionally replying to another comment on the same blog.
func (b *BlogController) CreateComment(ctx *gin.Context) {
	uid, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}
	var req struct {
		Content  string `json:"content" binding:"required"`
		ParentID *uint  `json:"parent_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40025, "invalid request payload")
		return
	}
	content := strings.TrimSpace(utils.SanitizeText(req.Content))
	if content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40026, "content cannot be empty")
		return
	}

	blog, ok := b.publishedBySlug(ctx)
	if !ok {
		return
	}
	if req.ParentID != nil {
		var parent models.BlogComment
		if err := b.db.Where("id = ? AND blog_id = ?", *req.ParentID, blog.ID).First(&parent).Error; err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40027, "parent comment not found")
			return
		}
	}

	comment := models.BlogComment{
		BlogID:     blog.ID,
		AuthorID:   uid,
		ParentID:   req.ParentID,
		Content:    content,
		IsApproved: true,
	}
	if err := b.db.Create(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to create comment")
		return
	}
	b.db.Preload("Author").First(&comment, comment.ID)
	utils.Respond(ctx, http.StatusCreated, 0, "success", commentPayload(comment))
}

func (b *BlogController) loadComment(ctx *gin.Context) (*models.BlogComment, bool) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40028, "invalid comment id")
		return nil, false
	}
	var comment models.BlogComment
	if err := b.db.First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40402, "comment not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to load comment")
		return nil, false
	}
	return &comment, true
}

// ApproveComment sets the moderation flag; the body may carry is_approved=false to hide.
func (b *BlogController) ApproveComment(ctx *gin.Context) {
	var req struct {
		IsApproved *bool `json:"is_approved"`
	}
	_ = ctx.ShouldBindJSON(&req)
	approved := true
	if req.IsApproved != nil {
		approved = *req.IsApproved
	}

	comment, ok := b.loadComment(ctx)
	if !ok {
		return
	}
	if err := b.db.Model(comment).UpdateColumn("is_approved", approved).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to update comment")
		return
	}
	utils.Success(ctx, gin.H{"id": comment.ID, "is_approved": approved})
}

// DeleteComment removes a comment and its replies. Allowed for the comment
// author and admins.
func (b *BlogController) DeleteComment(ctx *gin.Context) {
	comment, ok := b.loadComment(ctx)
	if !ok {
		return
	}
	uid, _ := getUserID(ctx)
	if comment.AuthorID != uid && !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40321, "not allowed to delete this comment")
		return
	}

	err := b.db.Transaction(func(tx *gorm.DB) error {
		ids := []uint{comment.ID}
		for frontier := ids; len(frontier) > 0; {
			var next []uint
			if err := tx.Model(&models.BlogComment{}).Where("parent_id IN ?", frontier).Pluck("id", &next).Error; err != nil {
				return err
			}
			ids = append(ids, next...)
			frontier = next
		}
		return tx.Where("id IN ?", ids).Delete(&models.BlogComment{}).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to delete comment")
		return
	}
	utils.Success(ctx, gin.H{"id": comment.ID, "deleted": true})
}

type categoryItem struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	BlogCount   int64  `json:"blog_count"`
}

// ListCategories returns every category with its published blog count.
func (b *BlogController) ListCategories(ctx *gin.Context) {
	const cacheKey = "cache:blogs:categories"
	if utils.ServeCached(ctx, cacheKey) {
		return
	}
	items := []categoryItem{}
	err := b.db.Model(&models.Category{}).
		Select("categories.id, categories.name, categories.slug, categories.description, COUNT(blogs.id) AS blog_count").
		Joins("LEFT JOIN blogs ON blogs.category_id = categories.id AND blogs.status = ?", models.BlogPublished).
		Group("categories.id, categories.name, categories.slug, categories.description").
		Order("categories.name ASC").
		Scan(&items).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to list categories")
		return
	}
	utils.CacheSuccess(cacheKey, items, blogListCacheTTL)
	utils.Success(ctx, items)
}

// CreateCategory adds a category; names are unique.
func (b *BlogController) CreateCategory(ctx *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required,max=100"`
		Description string `json:"description"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40029, "invalid request payload")
		return
	}
	name := utils.SanitizeText(req.Name)
	if name == "" {
		utils.Error(ctx, http.StatusBadRequest, 40029, "invalid category name")
		return
	}
	slug := utils.Slugify(name)
	var count int64
	b.db.Model(&models.Category{}).Where("name = ? OR slug = ?", name, slug).Count(&count)
	if count > 0 {
		utils.Error(ctx, http.StatusConflict, 40903, "category already exists")
		return
	}
	cat := models.Category{Name: name, Slug: slug, Description: utils.SanitizeText(req.Description)}
	if err := b.db.Create(&cat).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to create category")
		return
	}
	utils.InvalidateByPrefix("cache:blogs:")
	utils.Respond(ctx, http.StatusCreated, 0, "success", cat)
}

// ListTags returns all tags alphabetically.
func (b *BlogController) ListTags(ctx *gin.Context) {
	tags := []models.Tag{}
	if err := b.db.Order("name ASC").Find(&tags).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50034, "failed to list tags")
		return
	}
	utils.Success(ctx, tags)
}

// CreateTag adds a tag; names are unique.
func (b *BlogController) CreateTag(ctx *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required,max=50"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}
	name := utils.SanitizeText(req.Name)
	if name == "" {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid tag name")
		return
	}
	slug := utils.Slugify(name)
	var count int64
	b.db.Model(&models.Tag{}).Where("name = ? OR slug = ?", name, slug).Count(&count)
	if count > 0 {
		utils.Error(ctx, http.StatusConflict, 40904, "tag already exists")
		return
	}
	tag := models.Tag{Name: name, Slug: slug}
	if err := b.db.Create(&tag).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50035, "failed to create tag")
		return
	}
	utils.Respond(ctx, http.StatusCreated, 0, "success", tag)
}
