package models

import (
	"time"
)

const (
	RoleUser      = "user"
	RoleDeveloper = "developer"
	RoleAdmin     = "admin"
)

type User struct {
	ID             string     `gorm:"primaryKey;size:128" json:"id" firestore:"-"` // 身份提供方的 uid
	Name           string     `gorm:"not null" json:"name" firestore:"name"`
	Email          string     `gorm:"index" json:"email" firestore:"email"`
	Avatar         string     `json:"avatar" firestore:"avatar"`
	Role           string     `gorm:"size:20;default:'user';not null" json:"role" firestore:"role"` // user, developer, admin
	PasswordHash   string     `json:"-" firestore:"passwordHash"`                                   // 仅本地管理员登录使用
	GoogleID       string     `gorm:"index" json:"-" firestore:"googleId"`
	CommentsCount  int64      `gorm:"default:0" json:"commentsCount" firestore:"commentsCount"`
	ReactionsGiven int64      `gorm:"default:0" json:"reactionsGiven" firestore:"reactionsGiven"`
	LastActiveAt   *time.Time `json:"lastActiveAt" firestore:"lastActiveAt"`
	CreatedAt      time.Time  `json:"createdAt" firestore:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt" firestore:"updatedAt"`
}

func ValidRole(role string) bool {
	return role == RoleUser || role == RoleDeveloper || role == RoleAdmin
}
