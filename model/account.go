package model

import "time"

// Account is a registered account. The social directories never touch
// this table directly; they only see the opaque string ID that the
// identity provider resolves from a bearer credential.
type Account struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:32;not null" json:"username"`
	DisplayName  string     `gorm:"size:64" json:"display_name"`
	PasswordHash string     `json:"-"`
	Status       int        `gorm:"default:1" json:"status"` // 0=banned, 1=active
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP  string     `gorm:"size:45" json:"-"`
}
