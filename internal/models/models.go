package models

import (
	"time"
)

type Account struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string `gorm:"unique;not null"          json:"email"`
	Username     string `gorm:"unique;not null"          json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Salt         string `gorm:"not null"                 json:"-"`
	Verified     bool   `gorm:"default:false"            json:"verified"`
	Banned       bool   `gorm:"default:false"            json:"-"`
}

type Project struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string    `gorm:"not null"                 json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type Board struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID uint   `gorm:"index;not null"           json:"project_id"`
	Title     string `gorm:"not null"                 json:"title"`
}

type Task struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	BoardID     uint      `gorm:"index;not null"           json:"board_id"`
	ProjectID   uint      `gorm:"index;not null"           json:"project_id"`
	Title       string    `gorm:"not null"                 json:"title"`
	Description string    `json:"description"`
	Status      string    `gorm:"default:open"             json:"status"`
	AssigneeID  *uint     `gorm:"index"                    json:"assignee_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RoleGrant is one (project, account, role) row. An account may hold several
// rows on the same project; its authorization is the union of those grants.
type RoleGrant struct {
	ProjectID uint   `gorm:"primaryKey;autoIncrement:false" json:"project_id"`
	AccountID uint   `gorm:"primaryKey;autoIncrement:false" json:"account_id"`
	Role      string `gorm:"primaryKey"                     json:"role"`
}

// RefreshToken rows are only ever created or deleted, never updated. The
// token string is the lookup key and is unique across all live sessions.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"        json:"id"`
	AccountID uint      `gorm:"index;not null"    json:"account_id"`
	Token     string    `gorm:"unique;not null"   json:"token"`
	ExpiresAt int64     `gorm:"not null"          json:"expires_at"`
	IP        string    `json:"ip"`
	Device    string    `json:"device"`
	CreatedAt time.Time `json:"created_at"`
}
