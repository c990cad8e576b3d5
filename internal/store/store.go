// Package store defines the storage contract the engagement core runs on.
// Two backends implement it: internal/db (gorm, postgres) and
// internal/firestore (Cloud Firestore).
package store

import (
	"context"
	"time"

	"portfolio/internal/models"
)

// Fields 以逻辑字段名（与 JSON / Firestore 字段同名，camelCase）为键的部分更新
type Fields map[string]any

// 计数字段
const (
	FieldCommentsCount  = "commentsCount"
	FieldRepliesCount   = "repliesCount"
	FieldTotalReactions = "totalReactions"
	FieldViewsCount     = "viewsCount"
	FieldSharesCount    = "sharesCount"
	FieldReactionsGiven = "reactionsGiven"
	FieldLikes          = "likes"
	FieldUserLikes      = "userLikes"
)

type CommentQuery struct {
	ProjectID      string
	ParentID       string // 非空时只查该评论的回复
	TopLevelOnly   bool
	UserID         string
	IncludeDeleted bool
	Ascending      bool // 按 createdAt 排序方向
	Limit          int
}

type ReactionQuery struct {
	ProjectID string
	UserID    string
}

type ProjectQuery struct {
	PublishedOnly bool
	AuthorID      string
	OrderByScore  bool // 否则按 createdAt DESC
	Limit         int
	Offset        int
}

// Store 非事务读取与单文档写入
type Store interface {
	// RunInTransaction 在一个原子事务中执行 fn。fn 必须先读后写（Firestore 的限制），
	// 返回错误时所有写入回滚。
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error)
	ListProjects(ctx context.Context, q ProjectQuery) ([]models.Project, error)
	CreateProject(ctx context.Context, p *models.Project) error
	UpdateProject(ctx context.Context, id string, f Fields) error
	IncrementProject(ctx context.Context, id, field string, delta int64) error

	GetComment(ctx context.Context, id string) (*models.Comment, error)
	ListComments(ctx context.Context, q CommentQuery) ([]models.Comment, error)
	ListReactions(ctx context.Context, q ReactionQuery) ([]models.Reaction, error)

	GetUser(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	// UpsertUser 写入资料字段（name/email/avatar/googleId，以及非空的 role/passwordHash），不触碰计数
	UpsertUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, id string, f Fields) error
	ListUserIDs(ctx context.Context) ([]string, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error

	CreateContactMessage(ctx context.Context, m *models.ContactMessage) error
	ListContactMessages(ctx context.Context, limit int) ([]models.ContactMessage, error)
	MarkContactHandled(ctx context.Context, id string, handled bool) error
	CreateLocationPing(ctx context.Context, p *models.LocationPing) error
	ListLocationPings(ctx context.Context, limit int) ([]models.LocationPing, error)

	Close() error
}

// Tx 事务内的操作。所有读取必须出现在第一次写入之前。
type Tx interface {
	GetProject(id string) (*models.Project, error)
	GetComment(id string) (*models.Comment, error)
	GetUser(id string) (*models.User, error)
	GetReaction(id string) (*models.Reaction, error)
	ListComments(q CommentQuery) ([]models.Comment, error)
	ListReactions(q ReactionQuery) ([]models.Reaction, error)

	CreateComment(c *models.Comment) error
	UpdateComment(id string, f Fields) error
	DeleteComment(id string) error
	AddCommentLike(commentID, userID string) error
	RemoveCommentLike(commentID, userID string) error

	CreateReaction(r *models.Reaction) error
	DeleteReaction(id string) error

	UpdateProject(id string, f Fields) error
	DeleteProject(id string) error
	IncrementProject(id, field string, delta int64) error
	IncrementProjectReaction(id string, t models.ReactionType, delta int64) error
	IncrementComment(id, field string, delta int64) error

	// BumpUser 对用户计数做原子增量并刷新 lastActiveAt；用户文档不存在时创建
	BumpUser(id string, deltas map[string]int64, at time.Time) error
	UpdateUser(id string, f Fields) error
}

// ChangeSource 由能原生推送变更的后端实现（Firestore Snapshots）
type ChangeSource interface {
	// WatchProjectComments 阻塞直到 ctx 结束；每次该项目评论集合变化时调用 notify
	WatchProjectComments(ctx context.Context, projectID string, notify func()) error
}
