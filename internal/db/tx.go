package db

import (
	"context"
	"time"

	"portfolio/internal/models"
	"portfolio/internal/store"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RunInTransaction 对应 gorm 的 Transaction，fn 的错误原样返回
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	var fnErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(ctx, &gormTx{db: tx, log: s.log})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return store.Wrap("transaction", err)
}

type gormTx struct {
	db  *gorm.DB
	log *zap.Logger
}

func (t *gormTx) GetProject(id string) (*models.Project, error) {
	return getProject(t.db, id)
}

func (t *gormTx) GetComment(id string) (*models.Comment, error) {
	return getComment(t.db, id)
}

func (t *gormTx) GetUser(id string) (*models.User, error) {
	return getUser(t.db, id)
}

func (t *gormTx) GetReaction(id string) (*models.Reaction, error) {
	var r models.Reaction
	if err := t.db.First(&r, "id = ?", id).Error; err != nil {
		return nil, store.Wrap("get reaction", notFound(err))
	}
	return &r, nil
}

func (t *gormTx) ListComments(q store.CommentQuery) ([]models.Comment, error) {
	return listComments(t.db, t.log, q)
}

func (t *gormTx) ListReactions(q store.ReactionQuery) ([]models.Reaction, error) {
	return listReactions(t.db, t.log, q)
}

func (t *gormTx) CreateComment(c *models.Comment) error {
	return store.Wrap("create comment", t.db.Create(c).Error)
}

func (t *gormTx) UpdateComment(id string, f store.Fields) error {
	return store.Wrap("update comment", t.db.Model(&models.Comment{}).Where("id = ?", id).UpdateColumns(columns(f)).Error)
}

func (t *gormTx) DeleteComment(id string) error {
	if err := t.db.Where("comment_id = ?", id).Delete(&models.CommentLike{}).Error; err != nil {
		return store.Wrap("delete comment likes", err)
	}
	return store.Wrap("delete comment", t.db.Delete(&models.Comment{}, "id = ?", id).Error)
}

func (t *gormTx) AddCommentLike(commentID, userID string) error {
	like := models.CommentLike{CommentID: commentID, UserID: userID}
	if err := t.db.Create(&like).Error; err != nil {
		return store.Wrap("add comment like", err)
	}
	return t.IncrementComment(commentID, store.FieldLikes, 1)
}

func (t *gormTx) RemoveCommentLike(commentID, userID string) error {
	res := t.db.Where("comment_id = ? AND user_id = ?", commentID, userID).Delete(&models.CommentLike{})
	if res.Error != nil {
		return store.Wrap("remove comment like", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}
	return t.IncrementComment(commentID, store.FieldLikes, -1)
}

func (t *gormTx) CreateReaction(r *models.Reaction) error {
	return store.Wrap("create reaction", t.db.Create(r).Error)
}

func (t *gormTx) DeleteReaction(id string) error {
	return store.Wrap("delete reaction", t.db.Delete(&models.Reaction{}, "id = ?", id).Error)
}

func (t *gormTx) UpdateProject(id string, f store.Fields) error {
	cols, err := projectColumns(f)
	if err != nil {
		return err
	}
	return store.Wrap("update project", t.db.Model(&models.Project{}).Where("id = ?", id).UpdateColumns(cols).Error)
}

func (t *gormTx) DeleteProject(id string) error {
	return store.Wrap("delete project", t.db.Delete(&models.Project{}, "id = ?", id).Error)
}

func (t *gormTx) IncrementProject(id, field string, delta int64) error {
	return incrementProject(t.db, id, field, delta)
}

func (t *gormTx) IncrementProjectReaction(id string, rt models.ReactionType, delta int64) error {
	col := rt.Column()
	err := t.db.Model(&models.Project{}).Where("id = ?", id).
		UpdateColumn(col, gorm.Expr(col+" + ?", delta)).Error
	return store.Wrap("increment project reaction", err)
}

func (t *gormTx) IncrementComment(id, field string, delta int64) error {
	col := column(field)
	err := t.db.Model(&models.Comment{}).Where("id = ?", id).
		UpdateColumn(col, gorm.Expr(col+" + ?", delta)).Error
	return store.Wrap("increment comment", err)
}

func (t *gormTx) BumpUser(id string, deltas map[string]int64, at time.Time) error {
	updates := map[string]interface{}{"last_active_at": at}
	for field, d := range deltas {
		col := column(field)
		updates[col] = gorm.Expr(col+" + ?", d)
	}

	res := t.db.Model(&models.User{}).Where("id = ?", id).UpdateColumns(updates)
	if res.Error != nil {
		return store.Wrap("bump user", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// 身份提供方的用户尚未落库，直接以增量作为初始值创建
	u := models.User{
		ID:             id,
		Role:           models.RoleUser,
		CommentsCount:  deltas[store.FieldCommentsCount],
		ReactionsGiven: deltas[store.FieldReactionsGiven],
		LastActiveAt:   &at,
	}
	return store.Wrap("create user", t.db.Create(&u).Error)
}

func (t *gormTx) UpdateUser(id string, f store.Fields) error {
	return store.Wrap("update user", t.db.Model(&models.User{}).Where("id = ?", id).UpdateColumns(columns(f)).Error)
}

func incrementProject(db *gorm.DB, id, field string, delta int64) error {
	col := column(field)
	res := db.Model(&models.Project{}).Where("id = ?", id).
		UpdateColumn(col, gorm.Expr(col+" + ?", delta))
	if res.Error != nil {
		return store.Wrap("increment project", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}
