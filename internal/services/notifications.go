package services

import (
	"context"
	"time"

	"portfolio/internal/identity"
	"portfolio/internal/models"
	"portfolio/internal/store"
	"portfolio/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const notificationExcerptLen = 140

type NotificationService struct {
	store   store.Store
	mail    *MailService
	siteURL string
	log     *zap.Logger
	now     func() time.Time
}

func NewNotificationService(st store.Store, mail *MailService, siteURL string, log *zap.Logger) *NotificationService {
	return &NotificationService{
		store:   st,
		mail:    mail,
		siteURL: siteURL,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CommentCreated 通知项目作者（顶层评论）或父评论作者（回复）。
// 发生在评论事务提交之后，失败只记录日志。
func (s *NotificationService) CommentCreated(ctx context.Context, actor *identity.Actor, project *models.Project, comment, parent *models.Comment) {
	receiver := project.AuthorID
	typ := models.NotificationTypeCommentProject
	if parent != nil {
		receiver = parent.UserID
		typ = models.NotificationTypeReplyComment
	}
	if receiver == "" || actor.Is(receiver) {
		return
	}

	excerpt := utils.PlainExcerpt(string(utils.RenderComment(comment.Content)), notificationExcerptLen)
	n := &models.Notification{
		ID:        uuid.NewString(),
		UserID:    receiver,
		ActorID:   actor.UserID,
		Type:      typ,
		ProjectID: project.ID,
		CommentID: comment.ID,
		Reason:    excerpt,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		s.log.Error("Failed to create notification",
			zap.String("side_effect", "notification"),
			zap.String("comment_id", comment.ID),
			zap.Error(err),
		)
	}

	if s.mail == nil || !s.mail.Enabled {
		return
	}
	u, err := s.store.GetUser(ctx, receiver)
	if err != nil {
		s.log.Warn("Notification receiver lookup failed",
			zap.String("side_effect", "mail"),
			zap.String("user_id", receiver),
			zap.Error(err),
		)
		return
	}
	link := s.siteURL + "/projects/" + project.Slug + "#comment-" + comment.ID
	s.mail.SendCommentNotification(u.Email, utils.DisplayName(actor.Name), project.Title, excerpt, link, parent != nil)
}

func (s *NotificationService) List(ctx context.Context, actor *identity.Actor, limit int) ([]models.Notification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.store.ListNotifications(ctx, actor.UserID, limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, actor *identity.Actor, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	return s.store.MarkNotificationRead(ctx, actor.UserID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor *identity.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	return s.store.MarkAllNotificationsRead(ctx, actor.UserID)
}

// UnreadCount 用于页面头部的未读角标
func (s *NotificationService) UnreadCount(ctx context.Context, actor *identity.Actor) int {
	if actor == nil {
		return 0
	}
	list, err := s.store.ListNotifications(ctx, actor.UserID, 100)
	if err != nil {
		return 0
	}
	count := 0
	for _, n := range list {
		if !n.IsRead {
			count++
		}
	}
	return count
}
