package models

import (
	"time"

	"gorm.io/gorm"
)

// Roles recognised by the permission checks.
const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
	RoleAdmin    = "admin"
)

// User represents a platform account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email        string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string     `gorm:"size:255" json:"-"`
	FirstName    string     `gorm:"size:64" json:"first_name"`
	LastName     string     `gorm:"size:64" json:"last_name"`
	Phone        string     `gorm:"size:32" json:"phone"`
	Bio          string     `gorm:"size:500" json:"bio"`
	AvatarURL    string     `gorm:"size:512" json:"avatar_url"`
	Role         string     `gorm:"size:16;not null;default:customer;index" json:"role"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	RegisterIP   string     `gorm:"size:45" json:"-"`
	LastLoginAt  *time.Time `gorm:"index" json:"last_login_at"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Views []BlogView `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// IsStaff reports whether the user may manage content.
func (u *User) IsStaff() bool { return u.Role == RoleStaff || u.Role == RoleAdmin }

// BeforeCreate hook ensures timestamps and role are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = RoleCustomer
	}
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// ValidRole reports whether r names a known role.
func ValidRole(r string) bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleAdmin:
		return true
	}
	return false
}
