package models

import (
	"time"
)

// DeletedCommentContent 软删除后替换的占位内容
const DeletedCommentContent = "[This comment has been deleted]"

const MaxCommentLength = 1000

type Comment struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id" firestore:"-"`
	ProjectID       string     `gorm:"size:36;not null;index" json:"projectId" firestore:"projectId"`
	UserID          string     `gorm:"size:128;not null;index" json:"userId" firestore:"userId"`
	Content         string     `gorm:"type:text;not null" json:"content" firestore:"content"`
	ParentCommentID *string    `gorm:"size:36;index" json:"parentCommentId" firestore:"parentCommentId"` // nil 表示顶层评论
	Likes           int64      `gorm:"default:0" json:"likes" firestore:"likes"`
	UserLikes       []string   `gorm:"-" json:"userLikes" firestore:"userLikes"` // SQL 下由 comment_likes 表填充
	RepliesCount    int64      `gorm:"default:0" json:"repliesCount" firestore:"repliesCount"`
	Deleted         bool       `gorm:"default:false;index" json:"deleted" firestore:"deleted"`
	DeletedAt       *time.Time `json:"deletedAt,omitempty" firestore:"deletedAt"`
	DeletedBy       *string    `gorm:"size:128" json:"deletedBy,omitempty" firestore:"deletedBy"`
	ArchivedContent string     `gorm:"type:text" json:"-" firestore:"archivedContent"`     // 软删除前的原文，恢复时写回
	CascadeParentID *string    `gorm:"size:36;index" json:"-" firestore:"cascadeParentId"` // 随父评论级联软删除时记录父评论
	CreatedAt       time.Time  `gorm:"index" json:"createdAt" firestore:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt" firestore:"updatedAt"`
}

func (c *Comment) IsReply() bool {
	return c.ParentCommentID != nil && *c.ParentCommentID != ""
}

func (c *Comment) LikedBy(userID string) bool {
	for _, id := range c.UserLikes {
		if id == userID {
			return true
		}
	}
	return false
}

// CommentLike 点赞关系（仅 SQL 后端使用）
type CommentLike struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	CommentID string    `gorm:"size:36;not null;uniqueIndex:idx_comment_like_user" json:"commentId"`
	UserID    string    `gorm:"size:128;not null;uniqueIndex:idx_comment_like_user" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}
