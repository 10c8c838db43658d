package controllers

import (
	"context"
	"errors"
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

type contactNotifier interface {
	ContactNotification(ctx context.Context, sub *models.ContactSubmission) bool
}

// ContactController stores contact form submissions and serves the admin inbox.
type ContactController struct {
	db       *gorm.DB
	notifier contactNotifier
}

// NewContactController creates a ContactController. notifier may be nil.
func NewContactController(db *gorm.DB, notifier contactNotifier) *ContactController {
	return &ContactController{db: db, notifier: notifier}
}

// CreateSubmission stores a contact message and notifies admins in the background.
func (c *ContactController) CreateSubmission(ctx *gin.Context) {
	var req struct {
		Name    string `json:"name" binding:"required,max=100"`
		Email   string `json:"email" binding:"required"`
		Phone   string `json:"phone" binding:"max=32"`
		Subject string `json:"subject" binding:"required,max=200"`
		Message string `json:"message" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid request payload")
		return
	}
	email, ok := normalizeEmail(req.Email)
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid email address")
		return
	}

	sub := models.ContactSubmission{
		Name:      utils.SanitizeText(req.Name),
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
		Subject:   utils.SanitizeText(req.Subject),
		Message:   utils.SanitizeText(req.Message),
		IPAddress: middleware.ClientIP(ctx),
		UserAgent: ctx.Request.UserAgent(),
	}
	if sub.Name == "" || sub.Subject == "" || sub.Message == "" {
		utils.Error(ctx, http.StatusBadRequest, 40061, "name, subject and message are required")
		return
	}
	if err := c.db.Create(&sub).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to save message")
		return
	}

	if c.notifier != nil {
		saved := sub
		go func() {
			nctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if !c.notifier.ContactNotification(nctx, &saved) {
				utils.Logger.Debug("contact notification not delivered", zap.Uint("contact_id", saved.ID))
			}
		}()
	}

	utils.Respond(ctx, http.StatusCreated, 0, "success", gin.H{"id": sub.ID, "message": "thank you, we will get back to you"})
}

// ListSubmissions returns submissions newest first, filterable by is_read and is_replied.
func (c *ContactController) ListSubmissions(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	query := c.db.Model(&models.ContactSubmission{})
	if v, ok := parseBoolQuery(ctx, "is_read"); ok {
		query = query.Where("is_read = ?", v)
	}
	if v, ok := parseBoolQuery(ctx, "is_replied"); ok {
		query = query.Where("is_replied = ?", v)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to count messages")
		return
	}
	items := []models.ContactSubmission{}
	if err := query.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&items).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50062, "failed to list messages")
		return
	}
	utils.Success(ctx, utils.PageData(items, page, pageSize, total))
}

func (c *ContactController) load(ctx *gin.Context) (*models.ContactSubmission, bool) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40062, "invalid message id")
		return nil, false
	}
	var sub models.ContactSubmission
	if err := c.db.First(&sub, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40460, "message not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50063, "failed to load message")
		return nil, false
	}
	return &sub, true
}

// GetSubmission returns one message and marks it read.
func (c *ContactController) GetSubmission(ctx *gin.Context) {
	sub, ok := c.load(ctx)
	if !ok {
		return
	}
	if !sub.IsRead {
		if err := c.db.Model(sub).UpdateColumn("is_read", true).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50064, "failed to update message")
			return
		}
		sub.IsRead = true
	}
	utils.Success(ctx, sub)
}

// MarkReplied flags a message as answered by the calling admin.
func (c *ContactController) MarkReplied(ctx *gin.Context) {
	sub, ok := c.load(ctx)
	if !ok {
		return
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"is_replied": true,
		"is_read":    true,
		"replied_at": now,
		"updated_at": now,
	}
	if uid, ok := getUserID(ctx); ok {
		updates["replied_by_id"] = uid
	}
	if err := c.db.Model(sub).UpdateColumns(updates).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50064, "failed to update message")
		return
	}
	c.db.First(sub, sub.ID)
	utils.Success(ctx, sub)
}

// Stats returns inbox counters.
func (c *ContactController) Stats(ctx *gin.Context) {
	var total, unread, unreplied, week int64
	m := func() *gorm.DB { return c.db.Model(&models.ContactSubmission{}) }
	if err := m().Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50065, "failed to load stats")
		return
	}
	m().Where("is_read = ?", false).Count(&unread)
	m().Where("is_replied = ?", false).Count(&unreplied)
	m().Where("created_at >= ?", time.Now().UTC().AddDate(0, 0, -7)).Count(&week)

	utils.Success(ctx, gin.H{
		"total":     total,
		"unread":    unread,
		"unreplied": unreplied,
		"this_week": week,
	})
}

// DeleteSubmission removes a message.
func (c *ContactController) DeleteSubmission(ctx *gin.Context) {
	sub, ok := c.load(ctx)
	if !ok {
		return
	}
	if err := c.db.Delete(sub).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50066, "failed to delete message")
		return
	}
	utils.Success(ctx, gin.H{"id": sub.ID, "deleted": true})
}
