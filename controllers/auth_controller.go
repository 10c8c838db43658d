package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Dikshant-04/webapp/config"
	"github.com/Dikshant-04/webapp/middleware"
	"github.com/Dikshant-04/webapp/models"
	"github.com/Dikshant-04/webapp/utils"
)

type mailSender interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// AuthController handles accounts: registration, sessions, profile, password
// reset and the admin user directory.
type AuthController struct {
	db     *gorm.DB
	mailer mailSender
}

// NewAuthController creates an AuthController that mails through SMTP.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db, mailer: utils.SMTPMailer{}}
}

func issueToken(user models.User) (string, error) {
	hours := config.Get().JWTExpireHours
	return utils.GenerateToken(user.ID, user.Username, user.Role, time.Duration(hours)*time.Hour)
}

// isAdminUsername checks whether given username is configured as an admin (case-insensitive)
func isAdminUsername(username string) bool {
	uname := strings.TrimSpace(username)
	if uname == "" {
		return false
	}
	for _, u := range config.Get().AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), uname) {
			return true
		}
	}
	return false
}

// Register creates a customer account (admin for configured usernames) and
// returns a token for it.
func (a *AuthController) Register(ctx *gin.Context) {
	type request struct {
		Username  string `json:"username" binding:"required,min=3,max=64"`
		Email     string `json:"email" binding:"required"`
		Password  string `json:"password" binding:"required"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}

	ip := middleware.ClientIP(ctx)
	if !utils.RegistrationAllowed(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42902, "too many registrations from this address, try again later")
		return
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.RegistrationFailed(ip)
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	email, ok := normalizeEmail(req.Email)
	if !ok {
		utils.RegistrationFailed(ip)
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid email address")
		return
	}
	req.Email = email

	if err := utils.ValidatePassword(req.Password); err != nil {
		utils.RegistrationFailed(ip)
		utils.Error(ctx, http.StatusBadRequest, 40002, err.Error())
		return
	}

	var count int64
	if err := a.db.Model(&models.User{}).Where("username = ? OR email = ?", req.Username, req.Email).Count(&count).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50000, "failed to check user")
		return
	}
	if count > 0 {
		utils.RegistrationFailed(ip)
		utils.Error(ctx, http.StatusConflict, 40901, "username or email already exists")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    utils.SanitizeText(req.FirstName),
		LastName:     utils.SanitizeText(req.LastName),
		Role:         models.RoleCustomer,
		RegisterIP:   ip,
	}
	if isAdminUsername(user.Username) {
		user.Role = models.RoleAdmin
	}

	if err := a.db.Create(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}

	token, err := issueToken(user)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to generate token")
		return
	}

	utils.RegistrationSucceeded(ip)
	utils.Logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("role", user.Role))
	utils.Respond(ctx, http.StatusCreated, 0, "success", gin.H{
		"token": token,
		"user":  sanitizeUserResponse(user),
	})
}

// Login verifies credentials, stamps last_login_at and issues a JWT. The
// identifier may be a username or an email address.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	ident := strings.TrimSpace(req.Username)
	var user models.User
	if err := a.db.Where("username = ? OR email = ?", ident, strings.ToLower(ident)).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}
	if !user.IsActive {
		utils.Error(ctx, http.StatusForbidden, 40302, "account disabled")
		return
	}

	now := time.Now().UTC()
	if err := a.db.Model(&user).UpdateColumn("last_login_at", now).Error; err != nil {
		utils.Logger.Warn("stamp last login failed", zap.Uint("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	token, err := issueToken(user)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  sanitizeUserResponse(user),
	})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}

	expiresAt := time.Now().Add(time.Duration(config.Get().JWTExpireHours) * time.Hour)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	utils.BlacklistToken(token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

func (a *AuthController) currentUser(ctx *gin.Context) (*models.User, bool) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return nil, false
	}
	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return nil, false
	}
	return &user, true
}

// Me returns the current authenticated user's information.
func (a *AuthController) Me(ctx *gin.Context) {
	user, ok := a.currentUser(ctx)
	if !ok {
		return
	}
	utils.Success(ctx, sanitizeUserResponse(*user))
}

// UpdateProfile allows the authenticated user to update basic profile fields.
// Omitted fields are left untouched.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	var req struct {
		Email     *string `json:"email"`
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		Phone     *string `json:"phone"`
		Bio       *string `json:"bio"`
		AvatarURL *string `json:"avatar_url"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	user, ok := a.currentUser(ctx)
	if !ok {
		return
	}

	updates := map[string]interface{}{}
	if req.Email != nil {
		email, ok := normalizeEmail(*req.Email)
		if !ok {
			utils.Error(ctx, http.StatusBadRequest, 40031, "invalid email")
			return
		}
		var taken int64
		a.db.Model(&models.User{}).Where("email = ? AND id <> ?", email, user.ID).Count(&taken)
		if taken > 0 {
			utils.Error(ctx, http.StatusConflict, 40902, "email already in use")
			return
		}
		updates["email"] = email
	}
	if req.FirstName != nil {
		updates["first_name"] = truncateRunes(utils.SanitizeText(*req.FirstName), 64)
	}
	if req.LastName != nil {
		updates["last_name"] = truncateRunes(utils.SanitizeText(*req.LastName), 64)
	}
	if req.Phone != nil {
		updates["phone"] = truncateRunes(strings.TrimSpace(*req.Phone), 32)
	}
	if req.Bio != nil {
		updates["bio"] = truncateRunes(utils.SanitizeText(*req.Bio), 500)
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = truncateRunes(strings.TrimSpace(*req.AvatarURL), 512)
	}

	if len(updates) > 0 {
		if err := a.db.Model(user).Updates(updates).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to update profile")
			return
		}
		a.db.First(user, user.ID)
		utils.InvalidateByPrefix("cache:blogs:")
	}

	utils.Success(ctx, sanitizeUserResponse(*user))
}

// ForgotPassword mails a one-time reset link. It answers the same way whether
// or not the address is known.
func (a *AuthController) ForgotPassword(ctx *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}
	email, ok := normalizeEmail(req.Email)
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid email address")
		return
	}

	reply := gin.H{"message": "if the address is registered, a reset link has been sent"}

	var user models.User
	if err := a.db.Where("email = ? AND is_active = ?", email, true).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Logger.Error("reset lookup failed", zap.Error(err))
		}
		utils.Success(ctx, reply)
		return
	}

	token, err := utils.GenerateResetToken()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to generate token")
		return
	}
	cfg := config.Get()
	ttl := time.Duration(cfg.PasswordResetTTLMinutes) * time.Minute
	utils.SaveResetToken(token, user.ID, ttl)

	link := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(cfg.FrontendURL, "/"), token)
	body := fmt.Sprintf("Hello %s,\n\nUse the link below to choose a new password. It expires in %d minutes.\n\n%s\n",
		user.Username, cfg.PasswordResetTTLMinutes, link)

	sendCtx, cancel := context.WithTimeout(ctx.Request.Context(), 10*time.Second)
	defer cancel()
	if err := a.mailer.Send(sendCtx, []string{user.Email}, fmt.Sprintf("[%s] Password reset", cfg.SiteName), body); err != nil {
		utils.Logger.Warn("reset mail failed", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	utils.Success(ctx, reply)
}

// ResetPassword consumes a reset token and sets the new password.
func (a *AuthController) ResetPassword(ctx *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40041, "invalid request payload")
		return
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40002, err.Error())
		return
	}

	userID, ok := utils.ConsumeResetToken(strings.TrimSpace(req.Token))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40042, "invalid or expired token")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}
	res := a.db.Model(&models.User{}).Where("id = ?", userID).UpdateColumn("password_hash", hash)
	if res.Error != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to update password")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}

	utils.Success(ctx, gin.H{"message": "password updated"})
}

// ListUsers returns paginated users filtered by role, is_active and search.
func (a *AuthController) ListUsers(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	query := a.db.Model(&models.User{})
	if role := strings.TrimSpace(ctx.Query("role")); role != "" {
		query = query.Where("role = ?", role)
	}
	if active, ok := parseBoolQuery(ctx, "is_active"); ok {
		query = query.Where("is_active = ?", active)
	}
	if search := strings.TrimSpace(ctx.Query("search")); search != "" {
		like := "%" + search + "%"
		query = query.Where("username LIKE ? OR email LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50000, "failed to count users")
		return
	}

	var users []models.User
	if err := query.Order("created_at DESC").Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to retrieve users")
		return
	}

	items := make([]gin.H, 0, len(users))
	for _, u := range users {
		item := sanitizeUserResponse(u)
		item["register_ip"] = u.RegisterIP
		items = append(items, item)
	}
	utils.Success(ctx, utils.PageData(items, page, pageSize, total))
}

func (a *AuthController) loadUser(ctx *gin.Context) (*models.User, bool) {
	id, ok := parseID(ctx.Param("id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid user id")
		return nil, false
	}
	var user models.User
	if err := a.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to get user")
		return nil, false
	}
	return &user, true
}

// GetUser returns one user with activity counters.
func (a *AuthController) GetUser(ctx *gin.Context) {
	user, ok := a.loadUser(ctx)
	if !ok {
		return
	}
	var blogs, comments, views int64
	a.db.Model(&models.Blog{}).Where("author_id = ?", user.ID).Count(&blogs)
	a.db.Model(&models.BlogComment{}).Where("author_id = ?", user.ID).Count(&comments)
	a.db.Model(&models.BlogView{}).Where("user_id = ?", user.ID).Count(&views)

	payload := sanitizeUserResponse(*user)
	payload["register_ip"] = user.RegisterIP
	payload["blog_count"] = blogs
	payload["comment_count"] = comments
	payload["view_count"] = views
	utils.Success(ctx, payload)
}

// PatchUser changes a user's role or active flag. Admins cannot demote or
// disable themselves.
func (a *AuthController) PatchUser(ctx *gin.Context) {
	var req struct {
		Role     *string `json:"role"`
		IsActive *bool   `json:"is_active"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40051, "invalid request payload")
		return
	}

	user, ok := a.loadUser(ctx)
	if !ok {
		return
	}
	self, _ := getUserID(ctx)

	updates := map[string]interface{}{}
	if req.Role != nil {
		if !models.ValidRole(*req.Role) {
			utils.Error(ctx, http.StatusBadRequest, 40052, "unknown role")
			return
		}
		if user.ID == self && *req.Role != models.RoleAdmin {
			utils.Error(ctx, http.StatusBadRequest, 40053, "cannot change your own role")
			return
		}
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		if user.ID == self && !*req.IsActive {
			utils.Error(ctx, http.StatusBadRequest, 40054, "cannot deactivate yourself")
			return
		}
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40055, "nothing to update")
		return
	}

	// UpdateColumns so that false is written rather than skipped.
	if err := a.db.Model(user).UpdateColumns(updates).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to update user")
		return
	}
	a.db.First(user, user.ID)

	utils.Logger.Info("user updated", zap.Uint("user_id", user.ID), zap.Uint("by", self), zap.Any("changes", updates))
	utils.Success(ctx, sanitizeUserResponse(*user))
}

// DeleteUser removes an account. Their view events stay for analytics with
// the user reference cleared; authored blogs and comments go with them.
func (a *AuthController) DeleteUser(ctx *gin.Context) {
	user, ok := a.loadUser(ctx)
	if !ok {
		return
	}
	if self, _ := getUserID(ctx); self == user.ID {
		utils.Error(ctx, http.StatusBadRequest, 40056, "cannot delete yourself")
		return
	}

	err := a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.BlogView{}).Where("user_id = ?", user.ID).UpdateColumn("user_id", nil).Error; err != nil {
			return err
		}
		var blogIDs []uint
		if err := tx.Model(&models.Blog{}).Where("author_id = ?", user.ID).Pluck("id", &blogIDs).Error; err != nil {
			return err
		}
		if len(blogIDs) > 0 {
			if err := deleteBlogRows(tx, blogIDs); err != nil {
				return err
			}
		}
		if err := tx.Where("author_id = ?", user.ID).Delete(&models.BlogComment{}).Error; err != nil {
			return err
		}
		return tx.Delete(user).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to delete user")
		return
	}

	utils.InvalidateByPrefix("cache:blogs:")
	utils.Logger.Info("user deleted", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	utils.Success(ctx, gin.H{"id": user.ID, "deleted": true})
}
