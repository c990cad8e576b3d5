package services

import (
	"context"
	"errors"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"portfolio/internal/identity"
	"portfolio/internal/models"
	"portfolio/internal/store"
	"portfolio/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Toucher 接收"项目有变化"的信号，ProjectFeed 实现
type Toucher interface {
	Touch(projectID string)
}

type nopToucher struct{}

func (nopToucher) Touch(string) {}

// CommentView 带作者信息的评论
type CommentView struct {
	models.Comment
	Author      Author        `json:"author"`
	ContentHTML template.HTML `json:"contentHtml"`
	LikedByMe   bool          `json:"likedByMe"`
}

type DeleteResult struct {
	CommentID string `json:"commentId"`
	Hard      bool   `json:"hard"`
	// Removed 本次从存活变为删除的评论数（含级联的回复）
	Removed int `json:"removed"`
}

type RestoreResult struct {
	Comment *models.Comment `json:"comment"`
	// ContentRecovered 原文是否从存档恢复；旧的墓碑数据没有存档，正文保持占位内容
	ContentRecovered bool `json:"contentRecovered"`
	RepliesRestored  int  `json:"repliesRestored"`
}

type LikeState struct {
	CommentID string `json:"commentId"`
	Liked     bool   `json:"liked"`
	Likes     int64  `json:"likes"`
}

type CommentService struct {
	store    store.Store
	authors  *AuthorDirectory
	feed     Toucher
	notifier *NotificationService
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

func NewCommentService(st store.Store, authors *AuthorDirectory, feed Toucher, notifier *NotificationService, log *zap.Logger) *CommentService {
	if feed == nil {
		feed = nopToucher{}
	}
	return &CommentService{
		store:    st,
		authors:  authors,
		feed:     feed,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// normalizeContent 去掉首尾空白后检查长度（按字符计）
func normalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", invalid("comment content is required")
	}
	if utf8.RuneCountInString(content) > models.MaxCommentLength {
		return "", invalid("comment content exceeds %d characters", models.MaxCommentLength)
	}
	return content, nil
}

func requireActor(actor *identity.Actor) error {
	if actor == nil || actor.UserID == "" {
		return ErrAuthRequired
	}
	return nil
}

// projectVisible 未发布的项目只对作者和管理员可见
func projectVisible(p *models.Project, actor *identity.Actor) bool {
	return p.Published || actor.Is(p.AuthorID) || actor.IsAdmin()
}

func canModerate(c *models.Comment, actor *identity.Actor) bool {
	return actor.Is(c.UserID) || actor.IsAdmin()
}

// Create 发表评论或回复。评论、项目计数、父评论回复数和作者计数在同一事务中写入。
func (s *CommentService) Create(ctx context.Context, actor *identity.Actor, projectID, content, parentID string) (*models.Comment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	content, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}

	now := s.now()
	comment := &models.Comment{
		ID:        s.newID(),
		ProjectID: projectID,
		UserID:    actor.UserID,
		Content:   content,
		UserLikes: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	var project *models.Project
	var parent *models.Comment
	err = s.store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetProject(projectID)
		if err != nil {
			return err
		}
		if !projectVisible(p, actor) {
			return store.ErrNotFound
		}
		project = p

		parent = nil
		comment.ParentCommentID = nil
		if parentID != "" {
			par, err := tx.GetComment(parentID)
			if err != nil {
				return err
			}
			switch {
			case par.ProjectID != projectID:
				return invalid("parent comment belongs to another project")
			case par.Deleted:
				return invalid("cannot reply to a deleted comment")
			case par.IsReply():
				return invalid("replies can only be one level deep")
			}
			parent = par
			comment.ParentCommentID = &par.ID
		}

		if err := tx.CreateComment(comment); err != nil {
			return err
		}
		if err := tx.IncrementProject(projectID, store.FieldCommentsCount, 1); err != nil {
			return err
		}
		if parent != nil {
			if err := tx.IncrementComment(parent.ID, store.FieldRepliesCount, 1); err != nil {
				return err
			}
		}
		return tx.BumpUser(actor.UserID, map[string]int64{store.FieldCommentsCount: 1}, now)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Comment created",
		zap.String("comment_id", comment.ID),
		zap.String("project_id", projectID),
		zap.Bool("reply", parent != nil),
	)
	s.feed.Touch(projectID)
	if s.notifier != nil {
		s.notifier.CommentCreated(ctx, actor, project, comment, parent)
	}
	return comment, nil
}

// Update 只有作者本人可以编辑，已删除的评论不可编辑
func (s *CommentService) Update(ctx context.Context, actor *identity.Actor, commentID, content string) (*models.Comment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	content, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var updated *models.Comment
	err = s.store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetComment(commentID)
		if err != nil {
			return err
		}
		if !actor.Is(c.UserID) {
			return ErrPermissionDenied
		}
		if c.Deleted {
			return invalid("deleted comments cannot be edited")
		}
		if err := tx.UpdateComment(commentID, store.Fields{"content": content, "updatedAt": now}); err != nil {
			return err
		}
		c.Content = content
		c.UpdatedAt = now
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.feed.Touch(updated.ProjectID)
	return updated, nil
}

func softDeleteFields(c *models.Comment, actorID string, now time.Time, cascadeParent string) store.Fields {
	f := store.Fields{
		"deleted":         true,
		"deletedAt":       now,
		"deletedBy":       actorID,
		"archivedContent": c.Content,
		"content":         models.DeletedCommentContent,
		"updatedAt":       now,
		"cascadeParentId": nil,
	}
	if cascadeParent != "" {
		f["cascadeParentId"] = cascadeParent
	}
	return f
}

// Delete 软删除或硬删除。删除顶层评论时先处理它的直接回复；
// 计数只对删除前仍存活的评论递减，全部在一个事务中完成。
func (s *CommentService) Delete(ctx context.Context, actor *identity.Actor, commentID string, hard bool) (*DeleteResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	now := s.now()
	var projectID string
	result := &DeleteResult{CommentID: commentID, Hard: hard}
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		result.Removed = 0

		c, err := tx.GetComment(commentID)
		if err != nil {
			return err
		}
		if !canModerate(c, actor) {
			return ErrPermissionDenied
		}
		if !hard && c.Deleted {
			return invalid("comment is already deleted")
		}
		projectID = c.ProjectID

		var parent *models.Comment
		var replies []models.Comment
		if c.IsReply() {
			parent, err = tx.GetComment(*c.ParentCommentID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
		} else {
			replies, err = tx.ListComments(store.CommentQuery{ParentID: c.ID, IncludeDeleted: true, Ascending: true})
			if err != nil {
				return err
			}
		}

		userDeltas := map[string]int64{}
		cascaded := int64(0)
		for i := range replies {
			r := &replies[i]
			wasLive := !r.Deleted
			switch {
			case hard:
				if err := tx.DeleteComment(r.ID); err != nil {
					return err
				}
			case wasLive:
				if err := tx.UpdateComment(r.ID, softDeleteFields(r, actor.UserID, now, c.ID)); err != nil {
					return err
				}
			}
			if wasLive {
				cascaded++
				userDeltas[r.UserID]--
			}
		}

		wasLive := !c.Deleted
		if hard {
			err = tx.DeleteComment(c.ID)
		} else {
			err = tx.UpdateComment(c.ID, softDeleteFields(c, actor.UserID, now, ""))
		}
		if err != nil {
			return err
		}

		removed := cascaded
		if wasLive {
			removed++
			userDeltas[c.UserID]--
			if parent != nil {
				if err := tx.IncrementComment(parent.ID, store.FieldRepliesCount, -1); err != nil {
					return err
				}
			}
		}
		if !hard && cascaded > 0 {
			if err := tx.IncrementComment(c.ID, store.FieldRepliesCount, -cascaded); err != nil {
				return err
			}
		}
		if removed > 0 {
			if err := tx.IncrementProject(c.ProjectID, store.FieldCommentsCount, -removed); err != nil {
				return err
			}
		}
		for uid, d := range userDeltas {
			if err := tx.BumpUser(uid, map[string]int64{store.FieldCommentsCount: d}, now); err != nil {
				return err
			}
		}
		result.Removed = int(removed)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Comment deleted",
		zap.String("comment_id", commentID),
		zap.Bool("hard", hard),
		zap.Int("removed", result.Removed),
		zap.String("actor", actor.UserID),
	)
	s.feed.Touch(projectID)
	return result, nil
}

// Restore 撤销软删除。顶层评论会一并恢复因它级联删除的回复；
// 父评论仍处于删除状态的回复不能单独恢复。
func (s *CommentService) Restore(ctx context.Context, actor *identity.Actor, commentID string) (*RestoreResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	now := s.now()
	result := &RestoreResult{}
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetComment(commentID)
		if err != nil {
			return err
		}
		if !canModerate(c, actor) {
			return ErrPermissionDenied
		}
		if !c.Deleted {
			return invalid("comment is not deleted")
		}

		var cascaded []models.Comment
		if c.IsReply() {
			parent, err := tx.GetComment(*c.ParentCommentID)
			if errors.Is(err, store.ErrNotFound) {
				return invalid("parent comment no longer exists")
			}
			if err != nil {
				return err
			}
			if parent.Deleted {
				return invalid("restore the parent comment first")
			}
		} else {
			replies, err := tx.ListComments(store.CommentQuery{ParentID: c.ID, IncludeDeleted: true, Ascending: true})
			if err != nil {
				return err
			}
			for _, r := range replies {
				if r.Deleted && r.CascadeParentID != nil && *r.CascadeParentID == c.ID {
					cascaded = append(cascaded, r)
				}
			}
		}

		userDeltas := map[string]int64{c.UserID: 1}
		if err := tx.UpdateComment(c.ID, restoreFields(c, now)); err != nil {
			return err
		}
		for i := range cascaded {
			r := &cascaded[i]
			if err := tx.UpdateComment(r.ID, restoreFields(r, now)); err != nil {
				return err
			}
			userDeltas[r.UserID]++
		}

		if c.IsReply() {
			if err := tx.IncrementComment(*c.ParentCommentID, store.FieldRepliesCount, 1); err != nil {
				return err
			}
		} else if len(cascaded) > 0 {
			if err := tx.IncrementComment(c.ID, store.FieldRepliesCount, int64(len(cascaded))); err != nil {
				return err
			}
		}
		if err := tx.IncrementProject(c.ProjectID, store.FieldCommentsCount, int64(1+len(cascaded))); err != nil {
			return err
		}
		for uid, d := range userDeltas {
			if err := tx.BumpUser(uid, map[string]int64{store.FieldCommentsCount: d}, now); err != nil {
				return err
			}
		}

		restored := *c
		result.ContentRecovered = restoreComment(&restored, now)
		restored.RepliesCount += int64(len(cascaded))
		result.Comment = &restored
		result.RepliesRestored = len(cascaded)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.ContentRecovered {
		s.log.Warn("Comment restored without archived content",
			zap.String("comment_id", commentID),
		)
	}
	s.feed.Touch(result.Comment.ProjectID)
	return result, nil
}

// restoreFields 恢复时写回的字段；没有存档的旧数据保留占位正文
func restoreFields(c *models.Comment, now time.Time) store.Fields {
	f := store.Fields{
		"deleted":         false,
		"deletedAt":       nil,
		"deletedBy":       nil,
		"cascadeParentId": nil,
		"updatedAt":       now,
	}
	if c.ArchivedContent != "" {
		f["content"] = c.ArchivedContent
		f["archivedContent"] = ""
	}
	return f
}

// restoreComment 在内存中应用 restoreFields，返回正文是否恢复
func restoreComment(c *models.Comment, now time.Time) bool {
	recovered := c.ArchivedContent != ""
	if recovered {
		c.Content = c.ArchivedContent
		c.ArchivedContent = ""
	}
	c.Deleted = false
	c.DeletedAt = nil
	c.DeletedBy = nil
	c.CascadeParentID = nil
	c.UpdatedAt = now
	return recovered
}

// ToggleLike isLiked 是调用方看到的状态，以存储中的点赞集合为准：
// 视图过期时不做任何修改，直接返回当前状态。
func (s *CommentService) ToggleLike(ctx context.Context, actor *identity.Actor, commentID string, isLiked bool) (*LikeState, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var state *LikeState
	var projectID string
	changed := false
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		changed = false
		c, err := tx.GetComment(commentID)
		if err != nil {
			return err
		}
		if c.Deleted {
			return invalid("deleted comments cannot be liked")
		}
		projectID = c.ProjectID

		has := c.LikedBy(actor.UserID)
		state = &LikeState{CommentID: commentID, Liked: has, Likes: c.Likes}
		switch {
		case !isLiked && !has:
			if err := tx.AddCommentLike(commentID, actor.UserID); err != nil {
				return err
			}
			state.Liked, state.Likes, changed = true, c.Likes+1, true
		case isLiked && has:
			if err := tx.RemoveCommentLike(commentID, actor.UserID); err != nil {
				return err
			}
			state.Liked, state.Likes, changed = false, c.Likes-1, true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.feed.Touch(projectID)
	}
	return state, nil
}

// ListReplies 按时间升序返回回复；只有管理员可以要求包含已删除的回复
func (s *CommentService) ListReplies(ctx context.Context, actor *identity.Actor, parentID string, includeDeleted bool) ([]CommentView, error) {
	parent, err := s.store.GetComment(ctx, parentID)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetProject(ctx, parent.ProjectID)
	if err != nil {
		return nil, err
	}
	if !projectVisible(p, actor) {
		return nil, store.ErrNotFound
	}
	replies, err := s.store.ListComments(ctx, store.CommentQuery{
		ParentID:       parentID,
		IncludeDeleted: includeDeleted && actor.IsAdmin(),
		Ascending:      true,
	})
	if err != nil {
		return nil, err
	}
	return buildViews(ctx, s.authors, replies, actor), nil
}

// ListProjectComments 按时间倒序返回项目下存活的顶层评论
func (s *CommentService) ListProjectComments(ctx context.Context, actor *identity.Actor, projectID string, limit int) ([]CommentView, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !projectVisible(p, actor) {
		return nil, store.ErrNotFound
	}
	comments, err := s.store.ListComments(ctx, store.CommentQuery{
		ProjectID:    projectID,
		TopLevelOnly: true,
		Limit:        limit,
	})
	if err != nil {
		return nil, err
	}
	return buildViews(ctx, s.authors, comments, actor), nil
}

func buildViews(ctx context.Context, authors *AuthorDirectory, comments []models.Comment, actor *identity.Actor) []CommentView {
	views := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		v := CommentView{Comment: c, Author: unknownAuthor}
		if authors != nil {
			v.Author = authors.Lookup(ctx, c.UserID)
		}
		if !c.Deleted {
			v.ContentHTML = utils.RenderComment(c.Content)
		}
		if actor != nil {
			v.LikedByMe = c.LikedBy(actor.UserID)
		}
		views = append(views, v)
	}
	return views
}
