package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
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

const (
	maxTitleLength       = 120
	maxDescriptionLength = 20000
	maxProjectImages     = 12
	maxTechTags          = 20
)

// ProjectInput 创建/编辑项目的表单。指针字段为 nil 表示不修改。
type ProjectInput struct {
	Title       *string   `json:"title"`
	Slug        *string   `json:"slug"`
	Description *string   `json:"description"`
	Images      *[]string `json:"images"`
	TechTags    *[]string `json:"techTags"`
	Category    *string   `json:"category"`
	LiveURL     *string   `json:"liveUrl"`
	RepoURL     *string   `json:"repoUrl"`
	Published   *bool     `json:"published"`
}

type ProjectListOptions struct {
	Sort     string // hot | new
	Page     int
	PerPage  int
	AuthorID string
	// IncludeDrafts 只对管理员生效
	IncludeDrafts bool
}

type ProjectService struct {
	store store.Store
	feed  Toucher
	log   *zap.Logger
	now   func() time.Time
	newID func() string
}

func NewProjectService(st store.Store, feed Toucher, log *zap.Logger) *ProjectService {
	if feed == nil {
		feed = nopToucher{}
	}
	return &ProjectService{
		store: st,
		feed:  feed,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

func canEditProject(p *models.Project, actor *identity.Actor) bool {
	return actor.IsAdmin() || (actor.CanManageProjects() && actor.Is(p.AuthorID))
}

func cleanList(in []string, maxN int, what string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) > maxN {
		return nil, invalid("at most %d %s", maxN, what)
	}
	return out, nil
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// fields 校验输入并转换为部分更新字段
func (in *ProjectInput) fields() (store.Fields, error) {
	f := store.Fields{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, invalid("title is required")
		}
		if utf8.RuneCountInString(title) > maxTitleLength {
			return nil, invalid("title exceeds %d characters", maxTitleLength)
		}
		f["title"] = title
	}
	if in.Description != nil {
		if utf8.RuneCountInString(*in.Description) > maxDescriptionLength {
			return nil, invalid("description exceeds %d characters", maxDescriptionLength)
		}
		f["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Images != nil {
		images, err := cleanList(*in.Images, maxProjectImages, "images")
		if err != nil {
			return nil, err
		}
		for _, img := range images {
			if !validURL(img) {
				return nil, invalid("image %q is not an http(s) URL", img)
			}
		}
		f["images"] = images
	}
	if in.TechTags != nil {
		tags, err := cleanList(*in.TechTags, maxTechTags, "tech tags")
		if err != nil {
			return nil, err
		}
		f["techTags"] = tags
	}
	if in.Category != nil {
		f["category"] = strings.ToLower(strings.TrimSpace(*in.Category))
	}
	for key, v := range map[string]*string{"liveUrl": in.LiveURL, "repoUrl": in.RepoURL} {
		if v == nil {
			continue
		}
		raw := strings.TrimSpace(*v)
		if raw != "" && !validURL(raw) {
			return nil, invalid("%s is not an http(s) URL", key)
		}
		f[key] = raw
	}
	if in.Published != nil {
		f["published"] = *in.Published
	}
	return f, nil
}

// uniqueSlug 从 base 开始依次尝试 base-2、base-3 ...，跳过 selfID 自己
func (s *ProjectService) uniqueSlug(ctx context.Context, base, selfID string) (string, error) {
	slug := base
	for i := 2; i < 100; i++ {
		p, err := s.store.GetProjectBySlug(ctx, slug)
		if errors.Is(err, store.ErrNotFound) {
			return slug, nil
		}
		if err != nil {
			return "", err
		}
		if p.ID == selfID {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	return "", invalid("slug %q is taken", base)
}

func (s *ProjectService) Create(ctx context.Context, actor *identity.Actor, in ProjectInput) (*models.Project, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.CanManageProjects() {
		return nil, ErrPermissionDenied
	}
	if in.Title == nil {
		return nil, invalid("title is required")
	}
	f, err := in.fields()
	if err != nil {
		return nil, err
	}

	base := f["title"].(string)
	if in.Slug != nil && strings.TrimSpace(*in.Slug) != "" {
		base = *in.Slug
	}
	slug, err := s.uniqueSlug(ctx, utils.Slugify(base, "project"), "")
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &models.Project{
		ID:        s.newID(),
		Slug:      slug,
		AuthorID:  actor.UserID,
		Images:    []string{},
		TechTags:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyProjectFields(p, f)
	p.Score = utils.CalculateScore(utils.ProjectActivity{CreatedAt: now}, now)

	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("Project created",
		zap.String("project_id", p.ID),
		zap.String("slug", p.Slug),
		zap.String("author_id", actor.UserID),
	)
	return p, nil
}

func applyProjectFields(p *models.Project, f store.Fields) {
	for k, v := range f {
		switch k {
		case "title":
			p.Title = v.(string)
		case "slug":
			p.Slug = v.(string)
		case "description":
			p.Description = v.(string)
		case "images":
			p.Images = v.([]string)
		case "techTags":
			p.TechTags = v.([]string)
		case "category":
			p.Category = v.(string)
		case "liveUrl":
			p.LiveURL = v.(string)
		case "repoUrl":
			p.RepoURL = v.(string)
		case "published":
			p.Published = v.(bool)
		case "updatedAt":
			p.UpdatedAt = v.(time.Time)
		}
	}
}

func (s *ProjectService) Update(ctx context.Context, actor *identity.Actor, id string, in ProjectInput) (*models.Project, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canEditProject(p, actor) {
		return nil, ErrPermissionDenied
	}

	f, err := in.fields()
	if err != nil {
		return nil, err
	}
	if in.Slug != nil {
		slug, err := s.uniqueSlug(ctx, utils.Slugify(*in.Slug, p.Slug), p.ID)
		if err != nil {
			return nil, err
		}
		f["slug"] = slug
	}
	if len(f) == 0 {
		return p, nil
	}
	f["updatedAt"] = s.now()

	if err := s.store.UpdateProject(ctx, id, f); err != nil {
		return nil, err
	}
	applyProjectFields(p, f)
	s.feed.Touch(id)
	return p, nil
}

func (s *ProjectService) SetPublished(ctx context.Context, actor *identity.Actor, id string, published bool) (*models.Project, error) {
	return s.Update(ctx, actor, id, ProjectInput{Published: &published})
}

// Delete 硬删除项目及其全部评论、点赞和反应，并扣减相关用户的计数。
// Firestore 单个事务最多 500 次写入，评论和反应很多的项目需要先分批清理。
func (s *ProjectService) Delete(ctx context.Context, actor *identity.Actor, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	now := s.now()
	var removedComments, removedReactions int
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetProject(id)
		if err != nil {
			return err
		}
		if !canEditProject(p, actor) {
			return ErrPermissionDenied
		}
		comments, err := tx.ListComments(store.CommentQuery{ProjectID: id, IncludeDeleted: true, Ascending: true})
		if err != nil {
			return err
		}
		reactions, err := tx.ListReactions(store.ReactionQuery{ProjectID: id})
		if err != nil {
			return err
		}

		deltas := map[string]map[string]int64{}
		bump := func(uid, field string) {
			if deltas[uid] == nil {
				deltas[uid] = map[string]int64{}
			}
			deltas[uid][field]--
		}

		for _, c := range comments {
			if err := tx.DeleteComment(c.ID); err != nil {
				return err
			}
			if !c.Deleted {
				bump(c.UserID, store.FieldCommentsCount)
			}
		}
		for _, r := range reactions {
			if err := tx.DeleteReaction(r.ID); err != nil {
				return err
			}
			bump(r.UserID, store.FieldReactionsGiven)
		}
		if err := tx.DeleteProject(id); err != nil {
			return err
		}
		for uid, d := range deltas {
			if err := tx.BumpUser(uid, d, now); err != nil {
				return err
			}
		}
		removedComments, removedReactions = len(comments), len(reactions)
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("Project deleted",
		zap.String("project_id", id),
		zap.Int("comments", removedComments),
		zap.Int("reactions", removedReactions),
		zap.String("actor", actor.UserID),
	)
	s.feed.Touch(id)
	return nil
}

func (s *ProjectService) Get(ctx context.Context, actor *identity.Actor, id string) (*models.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if !projectVisible(p, actor) {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (s *ProjectService) GetBySlug(ctx context.Context, actor *identity.Actor, slug string) (*models.Project, error) {
	p, err := s.store.GetProjectBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !projectVisible(p, actor) {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (s *ProjectService) List(ctx context.Context, actor *identity.Actor, opts ProjectListOptions) ([]models.Project, error) {
	if opts.PerPage <= 0 {
		opts.PerPage = 20
	}
	if opts.Page <= 0 {
		opts.Page = 1
	}
	q := store.ProjectQuery{
		PublishedOnly: !(opts.IncludeDrafts && actor.IsAdmin()),
		AuthorID:      opts.AuthorID,
		OrderByScore:  opts.Sort != "new",
		Limit:         opts.PerPage,
		Offset:        (opts.Page - 1) * opts.PerPage,
	}
	return s.store.ListProjects(ctx, q)
}

// RecordView 浏览计数不走事务，失败只记录日志
func (s *ProjectService) RecordView(ctx context.Context, id string) {
	if err := s.store.IncrementProject(ctx, id, store.FieldViewsCount, 1); err != nil {
		s.log.Warn("Record view failed", zap.String("project_id", id), zap.String("side_effect", "view"), zap.Error(err))
		return
	}
	s.feed.Touch(id)
}

func (s *ProjectService) RecordShare(ctx context.Context, actor *identity.Actor, id string) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.IncrementProject(ctx, id, store.FieldSharesCount, 1); err != nil {
		return err
	}
	s.feed.Touch(id)
	return nil
}
