package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"portfolio/internal/db"
	"portfolio/internal/db/dbtest"
	"portfolio/internal/identity"
	"portfolio/internal/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	owner   = &identity.Actor{UserID: "owner", Name: "Owner", Role: models.RoleAdmin}
	alice   = &identity.Actor{UserID: "alice", Name: "Alice", Role: models.RoleUser}
	bob     = &identity.Actor{UserID: "bob", Name: "Bob", Role: models.RoleUser}
	carol   = &identity.Actor{UserID: "carol", Name: "Carol", Role: models.RoleUser}
	devDora = &identity.Actor{UserID: "dora", Name: "Dora", Role: models.RoleDeveloper}
)

// clock 每次调用前进一秒，保证排序稳定
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type env struct {
	store     *db.Store
	authors   *AuthorDirectory
	feed      *ProjectFeed
	comments  *CommentService
	reactions *ReactionService
	projects  *ProjectService
	recount   *RecountService
	users     *UserService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := dbtest.New(t)
	log := zaptest.NewLogger(t)
	clk := newClock()

	authors, err := NewAuthorDirectory(st, 100, time.Minute, log)
	require.NoError(t, err)
	feed := NewProjectFeed(st, authors, nil, time.Hour, log)
	feed.now = clk.Now

	e := &env{
		store:     st,
		authors:   authors,
		feed:      feed,
		comments:  NewCommentService(st, authors, feed, nil, log),
		reactions: NewReactionService(st, feed, log),
		projects:  NewProjectService(st, feed, log),
		recount:   NewRecountService(st, feed, log),
	}
	e.users, err = NewUserService(st, authors, log)
	require.NoError(t, err)

	e.comments.now = clk.Now
	e.reactions.now = clk.Now
	e.projects.now = clk.Now
	e.recount.now = clk.Now
	e.users.now = clk.Now
	return e
}

func (e *env) project(t *testing.T, slug string) *models.Project {
	t.Helper()
	title := "Project " + slug
	published := true
	p, err := e.projects.Create(context.Background(), owner, ProjectInput{
		Title:     &title,
		Slug:      &slug,
		Published: &published,
	})
	require.NoError(t, err)
	return p
}

func (e *env) comment(t *testing.T, actor *identity.Actor, projectID, content, parentID string) *models.Comment {
	t.Helper()
	c, err := e.comments.Create(context.Background(), actor, projectID, content, parentID)
	require.NoError(t, err)
	return c
}

func (e *env) getProject(t *testing.T, id string) *models.Project {
	t.Helper()
	p, err := e.store.GetProject(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (e *env) getComment(t *testing.T, id string) *models.Comment {
	t.Helper()
	c, err := e.store.GetComment(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (e *env) getUser(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := e.store.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u
}
