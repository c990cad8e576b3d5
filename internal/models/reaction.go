package models

import (
	"time"
)

// Reaction 每个 (用户, 项目, 类型) 一条记录
type Reaction struct {
	ID        string       `gorm:"primaryKey;size:240" json:"id" firestore:"-"`
	ProjectID string       `gorm:"size:36;not null;index" json:"projectId" firestore:"projectId"`
	UserID    string       `gorm:"size:128;not null;index" json:"userId" firestore:"userId"`
	Type      ReactionType `gorm:"size:20;not null" json:"type" firestore:"type"`
	CreatedAt time.Time    `json:"createdAt" firestore:"createdAt"`
}

// ReactionID 确定性 ID，保证同一用户同一项目同一类型只有一条
func ReactionID(projectID, userID string, t ReactionType) string {
	return projectID + "_" + userID + "_" + string(t)
}
