package firestore

import (
	"context"
	"errors"
	"fmt"

	"portfolio/internal/models"
	"portfolio/internal/store"

	fs "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// 集合名
const (
	colProjects      = "projects"
	colComments      = "comments"
	colReactions     = "reactions"
	colUsers         = "users"
	colNotifications = "notifications"
	colContacts      = "contactMessages"
	colLocations     = "locationPings"
)

type Store struct {
	client *fs.Client
	log    *zap.Logger
}

var (
	_ store.Store        = (*Store)(nil)
	_ store.ChangeSource = (*Store)(nil)
)

// Open 从 Firebase App 取得 Firestore 客户端
func Open(ctx context.Context, app *firebase.App, log *zap.Logger) (*Store, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return New(client, log), nil
}

func New(client *fs.Client, log *zap.Logger) *Store {
	return &Store{client: client, log: log}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// wrap 将 gRPC NotFound 映射为 store.ErrNotFound，其余包装为 BackendError
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	}
	return store.Wrap(op, err)
}

func decodeProject(snap *fs.DocumentSnapshot) (*models.Project, error) {
	var p models.Project
	if err := snap.DataTo(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrMalformed, err)
	}
	p.ID = snap.Ref.ID
	if err := store.ValidateProject(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func decodeComment(snap *fs.DocumentSnapshot) (*models.Comment, error) {
	var c models.Comment
	if err := snap.DataTo(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrMalformed, err)
	}
	c.ID = snap.Ref.ID
	if err := store.ValidateComment(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func decodeReaction(snap *fs.DocumentSnapshot) (*models.Reaction, error) {
	var r models.Reaction
	if err := snap.DataTo(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrMalformed, err)
	}
	r.ID = snap.Ref.ID
	if err := store.ValidateReaction(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

func decodeUser(snap *fs.DocumentSnapshot) (*models.User, error) {
	var u models.User
	if err := snap.DataTo(&u); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrMalformed, err)
	}
	u.ID = snap.Ref.ID
	if err := store.ValidateUser(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

func commentQuery(client *fs.Client, q store.CommentQuery) fs.Query {
	query := client.Collection(colComments).Query
	if q.ProjectID != "" {
		query = query.Where("projectId", "==", q.ProjectID)
	}
	if q.ParentID != "" {
		query = query.Where("parentCommentId", "==", q.ParentID)
	} else if q.TopLevelOnly {
		query = query.Where("parentCommentId", "==", nil)
	}
	if q.UserID != "" {
		query = query.Where("userId", "==", q.UserID)
	}
	if !q.IncludeDeleted {
		query = query.Where("deleted", "==", false)
	}
	dir := fs.Desc
	if q.Ascending {
		dir = fs.Asc
	}
	query = query.OrderBy("createdAt", dir)
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	return query
}

func reactionQuery(client *fs.Client, q store.ReactionQuery) fs.Query {
	query := client.Collection(colReactions).Query
	if q.ProjectID != "" {
		query = query.Where("projectId", "==", q.ProjectID)
	}
	if q.UserID != "" {
		query = query.Where("userId", "==", q.UserID)
	}
	return query
}

// decodeComments 跳过校验失败的文档并记录日志
func decodeComments(log *zap.Logger, it *fs.DocumentIterator) ([]models.Comment, error) {
	defer it.Stop()
	out := []models.Comment{}
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, wrap("list comments", err)
		}
		c, err := decodeComment(snap)
		if err != nil {
			log.Warn("Skipping malformed comment", zap.String("comment_id", snap.Ref.ID), zap.Error(err))
			continue
		}
		out = append(out, *c)
	}
}

func decodeReactions(log *zap.Logger, it *fs.DocumentIterator) ([]models.Reaction, error) {
	defer it.Stop()
	out := []models.Reaction{}
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, wrap("list reactions", err)
		}
		r, err := decodeReaction(snap)
		if err != nil {
			log.Warn("Skipping malformed reaction", zap.String("reaction_id", snap.Ref.ID), zap.Error(err))
			continue
		}
		out = append(out, *r)
	}
}

func toUpdates(f store.Fields) []fs.Update {
	ups := make([]fs.Update, 0, len(f))
	for path, v := range f {
		ups = append(ups, fs.Update{Path: path, Value: v})
	}
	return ups
}

func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	snap, err := s.client.Collection(colProjects).Doc(id).Get(ctx)
	if err != nil {
		return nil, wrap("get project", err)
	}
	return decodeProject(snap)
}

func (s *Store) GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error) {
	docs, err := s.client.Collection(colProjects).Where("slug", "==", slug).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, wrap("get project by slug", err)
	}
	if len(docs) == 0 {
		return nil, store.ErrNotFound
	}
	return decodeProject(docs[0])
}

func (s *Store) ListProjects(ctx context.Context, q store.ProjectQuery) ([]models.Project, error) {
	query := s.client.Collection(colProjects).Query
	if q.PublishedOnly {
		query = query.Where("published", "==", true)
	}
	if q.AuthorID != "" {
		query = query.Where("authorId", "==", q.AuthorID)
	}
	if q.OrderByScore {
		query = query.OrderBy("score", fs.Desc)
	}
	query = query.OrderBy("createdAt", fs.Desc)
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	it := query.Documents(ctx)
	defer it.Stop()
	out := []models.Project{}
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, wrap("list projects", err)
		}
		p, err := decodeProject(snap)
		if err != nil {
			s.log.Warn("Skipping malformed project", zap.String("project_id", snap.Ref.ID), zap.Error(err))
			continue
		}
		out = append(out, *p)
	}
}

func (s *Store) CreateProject(ctx context.Context, p *models.Project) error {
	_, err := s.client.Collection(colProjects).Doc(p.ID).Create(ctx, p)
	return wrap("create project", err)
}

func (s *Store) UpdateProject(ctx context.Context, id string, f store.Fields) error {
	_, err := s.client.Collection(colProjects).Doc(id).Update(ctx, toUpdates(f))
	return wrap("update project", err)
}

func (s *Store) IncrementProject(ctx context.Context, id, field string, delta int64) error {
	_, err := s.client.Collection(colProjects).Doc(id).Update(ctx, []fs.Update{
		{Path: field, Value: fs.Increment(delta)},
	})
	return wrap("increment project", err)
}

func (s *Store) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	snap, err := s.client.Collection(colComments).Doc(id).Get(ctx)
	if err != nil {
		return nil, wrap("get comment", err)
	}
	return decodeComment(snap)
}

func (s *Store) ListComments(ctx context.Context, q store.CommentQuery) ([]models.Comment, error) {
	return decodeComments(s.log, commentQuery(s.client, q).Documents(ctx))
}

func (s *Store) ListReactions(ctx context.Context, q store.ReactionQuery) ([]models.Reaction, error) {
	return decodeReactions(s.log, reactionQuery(s.client, q).Documents(ctx))
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	snap, err := s.client.Collection(colUsers).Doc(id).Get(ctx)
	if err != nil {
		return nil, wrap("get user", err)
	}
	return decodeUser(snap)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	docs, err := s.client.Collection(colUsers).Where("email", "==", email).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, wrap("find user by email", err)
	}
	if len(docs) == 0 {
		return nil, store.ErrNotFound
	}
	return decodeUser(docs[0])
}

// UpsertUser 不存在时整体创建，存在时只合并资料字段
func (s *Store) UpsertUser(ctx context.Context, u *models.User) error {
	ref := s.client.Collection(colUsers).Doc(u.ID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		_, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			doc := *u
			if doc.Role == "" {
				doc.Role = models.RoleUser
			}
			return tx.Create(ref, &doc)
		}
		if err != nil {
			return err
		}

		data := map[string]interface{}{
			"name":      u.Name,
			"email":     u.Email,
			"avatar":    u.Avatar,
			"googleId":  u.GoogleID,
			"updatedAt": u.UpdatedAt,
		}
		if u.Role != "" {
			data["role"] = u.Role
		}
		if u.PasswordHash != "" {
			data["passwordHash"] = u.PasswordHash
		}
		return tx.Set(ref, data, fs.MergeAll)
	})
	return wrap("upsert user", err)
}

func (s *Store) UpdateUser(ctx context.Context, id string, f store.Fields) error {
	_, err := s.client.Collection(colUsers).Doc(id).Update(ctx, toUpdates(f))
	return wrap("update user", err)
}

func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	it := s.client.Collection(colUsers).Select().Documents(ctx)
	defer it.Stop()
	var ids []string
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return ids, nil
		}
		if err != nil {
			return nil, wrap("list user ids", err)
		}
		ids = append(ids, snap.Ref.ID)
	}
}

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.client.Collection(colNotifications).Doc(n.ID).Create(ctx, n)
	return wrap("create notification", err)
}

func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	query := s.client.Collection(colNotifications).Where("userId", "==", userID).OrderBy("createdAt", fs.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, wrap("list notifications", err)
	}
	out := make([]models.Notification, 0, len(docs))
	for _, snap := range docs {
		var n models.Notification
		if err := snap.DataTo(&n); err != nil {
			s.log.Warn("Skipping malformed notification", zap.String("notification_id", snap.Ref.ID), zap.Error(err))
			continue
		}
		n.ID = snap.Ref.ID
		out = append(out, n)
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	ref := s.client.Collection(colNotifications).Doc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var n models.Notification
		if err := snap.DataTo(&n); err != nil {
			return err
		}
		if n.UserID != userID {
			return store.ErrNotFound
		}
		return tx.Update(ref, []fs.Update{{Path: "isRead", Value: true}})
	})
	return wrap("mark notification read", err)
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	docs, err := s.client.Collection(colNotifications).
		Where("userId", "==", userID).
		Where("isRead", "==", false).
		Documents(ctx).GetAll()
	if err != nil {
		return wrap("mark all notifications read", err)
	}
	if len(docs) == 0 {
		return nil
	}
	bw := s.client.BulkWriter(ctx)
	for _, snap := range docs {
		if _, err := bw.Update(snap.Ref, []fs.Update{{Path: "isRead", Value: true}}); err != nil {
			bw.End()
			return wrap("mark all notifications read", err)
		}
	}
	bw.End()
	return nil
}

func (s *Store) CreateContactMessage(ctx context.Context, m *models.ContactMessage) error {
	_, err := s.client.Collection(colContacts).Doc(m.ID).Create(ctx, m)
	return wrap("create contact message", err)
}

func (s *Store) ListContactMessages(ctx context.Context, limit int) ([]models.ContactMessage, error) {
	query := s.client.Collection(colContacts).OrderBy("createdAt", fs.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, wrap("list contact messages", err)
	}
	out := make([]models.ContactMessage, 0, len(docs))
	for _, snap := range docs {
		var m models.ContactMessage
		if err := snap.DataTo(&m); err != nil {
			s.log.Warn("Skipping malformed contact message", zap.String("message_id", snap.Ref.ID), zap.Error(err))
			continue
		}
		m.ID = snap.Ref.ID
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) MarkContactHandled(ctx context.Context, id string, handled bool) error {
	_, err := s.client.Collection(colContacts).Doc(id).Update(ctx, []fs.Update{{Path: "handled", Value: handled}})
	return wrap("mark contact handled", err)
}

func (s *Store) CreateLocationPing(ctx context.Context, p *models.LocationPing) error {
	_, err := s.client.Collection(colLocations).Doc(p.ID).Create(ctx, p)
	return wrap("create location ping", err)
}

func (s *Store) ListLocationPings(ctx context.Context, limit int) ([]models.LocationPing, error) {
	query := s.client.Collection(colLocations).OrderBy("createdAt", fs.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, wrap("list location pings", err)
	}
	out := make([]models.LocationPing, 0, len(docs))
	for _, snap := range docs {
		var p models.LocationPing
		if err := snap.DataTo(&p); err != nil {
			s.log.Warn("Skipping malformed location ping", zap.String("ping_id", snap.Ref.ID), zap.Error(err))
			continue
		}
		p.ID = snap.Ref.ID
		out = append(out, p)
	}
	return out, nil
}
