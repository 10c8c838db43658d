package controllers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/Dikshant-04/webapp/middleware"
	"github.com/Dikshant-04/webapp/models"
)

func parsePagination(pageStr, sizeStr string) (int, int) {
	page, size := 1, 10
	if v, err := strconv.Atoi(strings.TrimSpace(pageStr)); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(sizeStr)); err == nil && v > 0 {
		if v > 100 {
			v = 100
		}
		size = v
	}
	return page, size
}

// normalizeEmail trims and lowercases an address, then validates what is left.
func normalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	check := struct {
		Email string `binding:"required,email,max=254"`
	}{email}
	if err := binding.Validator.ValidateStruct(&check); err != nil {
		return "", false
	}
	return email, true
}

func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// parseBoolQuery reads an optional true/false filter. ok is false when the
// parameter is absent or unparseable.
func parseBoolQuery(ctx *gin.Context, key string) (value bool, ok bool) {
	raw := strings.TrimSpace(ctx.Query(key))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

func getRole(ctx *gin.Context) string {
	return ctx.GetString(middleware.ContextRoleKey)
}

func isAdmin(ctx *gin.Context) bool {
	return getRole(ctx) == models.RoleAdmin
}

func sanitizeUserResponse(user models.User) gin.H {
	return gin.H{
		"id":            user.ID,
		"username":      user.Username,
		"email":         user.Email,
		"first_name":    user.FirstName,
		"last_name":     user.LastName,
		"phone":         user.Phone,
		"bio":           user.Bio,
		"avatar_url":    user.AvatarURL,
		"role":          user.Role,
		"is_active":     user.IsActive,
		"is_admin":      user.IsAdmin(),
		"last_login_at": user.LastLoginAt,
		"created_at":    user.CreatedAt,
	}
}

// publicUser is the author block embedded in blog and comment payloads.
func publicUser(user models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"avatar_url": user.AvatarURL,
	}
}

func truncateRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
