package models

import "time"

// ContactSubmission is a message left through the public contact form.
type ContactSubmission struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"size:100;not null" json:"name"`
	Email       string     `gorm:"size:255;not null" json:"email"`
	Phone       string     `gorm:"size:32" json:"phone"`
	Subject     string     `gorm:"size:200;not null" json:"subject"`
	Message     string     `gorm:"type:text;not null" json:"message"`
	IsRead      bool       `gorm:"not null;default:false;index" json:"is_read"`
	IsReplied   bool       `gorm:"not null;default:false;index" json:"is_replied"`
	RepliedAt   *time.Time `json:"replied_at"`
	RepliedByID *uint      `json:"replied_by_id"`
	IPAddress   string     `gorm:"size:45" json:"ip_address"`
	UserAgent   string     `gorm:"type:text" json:"user_agent"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
