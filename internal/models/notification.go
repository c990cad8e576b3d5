package models

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeCommentProject NotificationType = "comment_project"
	NotificationTypeReplyComment   NotificationType = "reply_comment"
	NotificationTypeSystem         NotificationType = "system"
)

type Notification struct {
	ID        string           `gorm:"primaryKey;size:36" json:"id" firestore:"-"`
	UserID    string           `gorm:"size:128;not null;index" json:"userId" firestore:"userId"` // Receiver
	ActorID   string           `gorm:"size:128;index" json:"actorId" firestore:"actorId"`        // Sender
	Type      NotificationType `gorm:"type:varchar(20);not null" json:"type" firestore:"type"`
	ProjectID string           `gorm:"size:36" json:"projectId" firestore:"projectId"`
	CommentID string           `gorm:"size:36" json:"commentId" firestore:"commentId"`
	Reason    string           `gorm:"type:text" json:"reason" firestore:"reason"`
	IsRead    bool             `gorm:"default:false;index" json:"isRead" firestore:"isRead"`
	CreatedAt time.Time        `json:"createdAt" firestore:"createdAt"`
}
