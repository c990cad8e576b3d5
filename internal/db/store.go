package db

import (
	"context"
	"encoding/json"

	"portfolio/internal/models"
	"portfolio/internal/store"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func getProject(db *gorm.DB, id string) (*models.Project, error) {
	var p models.Project
	if err := db.First(&p, "id = ?", id).Error; err != nil {
		return nil, store.Wrap("get project", notFound(err))
	}
	if err := store.ValidateProject(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func getComment(db *gorm.DB, id string) (*models.Comment, error) {
	var c models.Comment
	if err := db.First(&c, "id = ?", id).Error; err != nil {
		return nil, store.Wrap("get comment", notFound(err))
	}
	if err := db.Model(&models.CommentLike{}).Where("comment_id = ?", id).
		Order("id ASC").Pluck("user_id", &c.UserLikes).Error; err != nil {
		return nil, store.Wrap("get comment likes", err)
	}
	if err := store.ValidateComment(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func getUser(db *gorm.DB, id string) (*models.User, error) {
	var u models.User
	if err := db.First(&u, "id = ?", id).Error; err != nil {
		return nil, store.Wrap("get user", notFound(err))
	}
	if err := store.ValidateUser(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

func listComments(db *gorm.DB, log *zap.Logger, q store.CommentQuery) ([]models.Comment, error) {
	query := db.Model(&models.Comment{})
	if q.ProjectID != "" {
		query = query.Where("project_id = ?", q.ProjectID)
	}
	if q.ParentID != "" {
		query = query.Where("parent_comment_id = ?", q.ParentID)
	} else if q.TopLevelOnly {
		query = query.Where("parent_comment_id IS NULL")
	}
	if q.UserID != "" {
		query = query.Where("user_id = ?", q.UserID)
	}
	if !q.IncludeDeleted {
		query = query.Where("deleted = ?", false)
	}
	if q.Ascending {
		query = query.Order("created_at ASC")
	} else {
		query = query.Order("created_at DESC")
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var rows []models.Comment
	if err := query.Find(&rows).Error; err != nil {
		return nil, store.Wrap("list comments", err)
	}
	if len(rows) == 0 {
		return rows, nil
	}

	// 批量填充点赞用户
	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	var likes []models.CommentLike
	if err := db.Where("comment_id IN ?", ids).Order("id ASC").Find(&likes).Error; err != nil {
		return nil, store.Wrap("list comment likes", err)
	}
	byComment := make(map[string][]string, len(rows))
	for _, l := range likes {
		byComment[l.CommentID] = append(byComment[l.CommentID], l.UserID)
	}

	out := make([]models.Comment, 0, len(rows))
	for _, c := range rows {
		c.UserLikes = byComment[c.ID]
		if err := store.ValidateComment(&c); err != nil {
			log.Warn("Skipping malformed comment", zap.String("comment_id", c.ID), zap.Error(err))
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func listReactions(db *gorm.DB, log *zap.Logger, q store.ReactionQuery) ([]models.Reaction, error) {
	query := db.Model(&models.Reaction{})
	if q.ProjectID != "" {
		query = query.Where("project_id = ?", q.ProjectID)
	}
	if q.UserID != "" {
		query = query.Where("user_id = ?", q.UserID)
	}

	var rows []models.Reaction
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, store.Wrap("list reactions", err)
	}
	out := rows[:0]
	for _, r := range rows {
		if err := store.ValidateReaction(&r); err != nil {
			log.Warn("Skipping malformed reaction", zap.String("reaction_id", r.ID), zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// projectColumns 与 columns 相同，另外把 []string 字段按 serializer:json 的格式编码
func projectColumns(f store.Fields) (map[string]interface{}, error) {
	out := columns(f)
	for k, v := range out {
		if list, ok := v.([]string); ok {
			b, err := json.Marshal(list)
			if err != nil {
				return nil, err
			}
			out[k] = string(b)
		}
	}
	return out, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return getProject(s.db.WithContext(ctx), id)
}

func (s *Store) GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error) {
	var p models.Project
	if err := s.db.WithContext(ctx).First(&p, "slug = ?", slug).Error; err != nil {
		return nil, store.Wrap("get project by slug", notFound(err))
	}
	if err := store.ValidateProject(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProjects(ctx context.Context, q store.ProjectQuery) ([]models.Project, error) {
	query := s.db.WithContext(ctx).Model(&models.Project{})
	if q.PublishedOnly {
		query = query.Where("published = ?", true)
	}
	if q.AuthorID != "" {
		query = query.Where("author_id = ?", q.AuthorID)
	}
	if q.OrderByScore {
		query = query.Order("score DESC").Order("created_at DESC")
	} else {
		query = query.Order("created_at DESC")
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}

	var rows []models.Project
	if err := query.Find(&rows).Error; err != nil {
		return nil, store.Wrap("list projects", err)
	}
	out := rows[:0]
	for _, p := range rows {
		if err := store.ValidateProject(&p); err != nil {
			s.log.Warn("Skipping malformed project", zap.String("project_id", p.ID), zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) CreateProject(ctx context.Context, p *models.Project) error {
	return store.Wrap("create project", s.db.WithContext(ctx).Create(p).Error)
}

func (s *Store) UpdateProject(ctx context.Context, id string, f store.Fields) error {
	cols, err := projectColumns(f)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).UpdateColumns(cols)
	if res.Error != nil {
		return store.Wrap("update project", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) IncrementProject(ctx context.Context, id, field string, delta int64) error {
	return incrementProject(s.db.WithContext(ctx), id, field, delta)
}

func (s *Store) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	return getComment(s.db.WithContext(ctx), id)
}

func (s *Store) ListComments(ctx context.Context, q store.CommentQuery) ([]models.Comment, error) {
	return listComments(s.db.WithContext(ctx), s.log, q)
}

func (s *Store) ListReactions(ctx context.Context, q store.ReactionQuery) ([]models.Reaction, error) {
	return listReactions(s.db.WithContext(ctx), s.log, q)
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	return getUser(s.db.WithContext(ctx), id)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).Order("created_at ASC").First(&u).Error; err != nil {
		return nil, store.Wrap("find user by email", notFound(err))
	}
	return &u, nil
}

func (s *Store) UpsertUser(ctx context.Context, u *models.User) error {
	update := []string{"name", "email", "avatar", "google_id", "updated_at"}
	if u.Role != "" {
		update = append(update, "role")
	} else {
		u.Role = models.RoleUser
	}
	if u.PasswordHash != "" {
		update = append(update, "password_hash")
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(update),
	}).Create(u).Error
	return store.Wrap("upsert user", err)
}

func (s *Store) UpdateUser(ctx context.Context, id string, f store.Fields) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).UpdateColumns(columns(f))
	if res.Error != nil {
		return store.Wrap("update user", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.User{}).Order("id ASC").Pluck("id", &ids).Error
	return ids, store.Wrap("list user ids", err)
}

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	return store.Wrap("create notification", s.db.WithContext(ctx).Create(n).Error)
}

func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	var list []models.Notification
	query := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&list).Error; err != nil {
		return nil, store.Wrap("list notifications", err)
	}
	return list, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return store.Wrap("mark notification read", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
	return store.Wrap("mark all notifications read", err)
}

func (s *Store) CreateContactMessage(ctx context.Context, m *models.ContactMessage) error {
	return store.Wrap("create contact message", s.db.WithContext(ctx).Create(m).Error)
}

func (s *Store) ListContactMessages(ctx context.Context, limit int) ([]models.ContactMessage, error) {
	var list []models.ContactMessage
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&list).Error; err != nil {
		return nil, store.Wrap("list contact messages", err)
	}
	return list, nil
}

func (s *Store) MarkContactHandled(ctx context.Context, id string, handled bool) error {
	res := s.db.WithContext(ctx).Model(&models.ContactMessage{}).Where("id = ?", id).Update("handled", handled)
	if res.Error != nil {
		return store.Wrap("mark contact handled", res.Error)
	}
	if res.RowsAffected == 0 {
		// 值未变化时部分驱动也返回 0 行，再确认一次是否存在
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.ContactMessage{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return store.Wrap("mark contact handled", err)
		}
		if n == 0 {
			return store.ErrNotFound
		}
	}
	return nil
}

func (s *Store) CreateLocationPing(ctx context.Context, p *models.LocationPing) error {
	return store.Wrap("create location ping", s.db.WithContext(ctx).Create(p).Error)
}

func (s *Store) ListLocationPings(ctx context.Context, limit int) ([]models.LocationPing, error) {
	var list []models.LocationPing
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&list).Error; err != nil {
		return nil, store.Wrap("list location pings", err)
	}
	return list, nil
}
