package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"portfolio/internal/db/dbtest"
	"portfolio/internal/models"
	"portfolio/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProject(t *testing.T, s store.Store, id string) {
	t.Helper()
	p := &models.Project{
		ID:        id,
		Title:     "Project " + id,
		Slug:      "project-" + id,
		AuthorID:  "owner",
		Published: true,
		TechTags:  []string{"go"},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateProject(context.Background(), p))
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	s := dbtest.New(t)
	ctx := context.Background()
	seedProject(t, s, "p1")

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.IncrementProject("p1", store.FieldCommentsCount, 1))
		return boom
	})
	assert.Same(t, boom, err)

	p, err := s.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.CommentsCount)
}

func TestIncrementProjectReaction(t *testing.T) {
	s := dbtest.New(t)
	ctx := context.Background()
	seedProject(t, s, "p1")

	err := s.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.IncrementProjectReaction("p1", models.ReactionFire, 2); err != nil {
			return err
		}
		return tx.IncrementProject("p1", "reactionsCount.love", 1)
	})
	require.NoError(t, err)

	p, err := s.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.ReactionsCount.Fire)
	assert.Equal(t, int64(1), p.ReactionsCount.Love)
	assert.Equal(t, []string{"go"}, p.TechTags)
}

func TestIncrementMissingProject(t *testing.T) {
	s := dbtest.New(t)
	err := s.IncrementProject(context.Background(), "nope", store.FieldViewsCount, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCommentLikes(t *testing.T) {
	s := dbtest.New(t)
	ctx := context.Background()
	seedProject(t, s, "p1")

	err := s.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		c := &models.Comment{ID: "c1", ProjectID: "p1", UserID: "u1", Content: "hi", CreatedAt: time.Now().UTC()}
		if err := tx.CreateComment(c); err != nil {
			return err
		}
		if err := tx.AddCommentLike("c1", "u2"); err != nil {
			return err
		}
		return tx.AddCommentLike("c1", "u3")
	})
	require.NoError(t, err)

	c, err := s.GetComment(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Likes)
	assert.Equal(t, []string{"u2", "u3"}, c.UserLikes)
	assert.Nil(t, c.ParentCommentID)

	err = s.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.RemoveCommentLike("c1", "u2"); err != nil {
			return err
		}
		// 不存在的点赞不改变计数
		return tx.RemoveCommentLike("c1", "u9")
	})
	require.NoError(t, err)

	c, err = s.GetComment(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Likes)
	assert.Equal(t, []string{"u3"}, c.UserLikes)
}

func TestListCommentsFiltersAndOrder(t *testing.T) {
	s := dbtest.New(t)
	ctx := context.Background()
	seedProject(t, s, "p1")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	parent := "c1"
	err := s.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		comments := []*models.Comment{
			{ID: "c1", ProjectID: "p1", UserID: "u1", Content: "top", CreatedAt: base},
			{ID: "c2", ProjectID: "p1", UserID: "u2", Content: "top 2", CreatedAt: base.Add(time.Minute)},
			{ID: "r1", ProjectID: "p1", UserID: "u2", Content: "reply", ParentCommentID: &parent, CreatedAt: base.Add(2 * time.Minute)},
			{ID: "r2", ProjectID: "p1", UserID: "u3", Content: "gone", ParentCommentID: &parent, Deleted: true, CreatedAt: base.Add(3 * time.Minute)},
		}
		for _, c := range comments {
			if err := tx.CreateComment(c); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	top, err := s.ListComments(ctx, store.CommentQuery{ProjectID: "p1", TopLevelOnly: true})
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "c2", top[0].ID)
	assert.Equal(t, "c1", top[1].ID)

	replies, err := s.ListComments(ctx, store.CommentQuery{ParentID: "c1", Ascending: true})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "r1", replies[0].ID)
	assert.Equal(t, []string{}, replies[0].UserLikes)

	all, err := s.ListComments(ctx, store.CommentQuery{ParentID: "c1", Ascending: true, IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestBumpUserCreatesMissingUser(t *testing.T) {
	s := dbtest.New(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	bump := func(d int64) {
		err := s.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.BumpUser("u1", map[string]int64{store.FieldCommentsCount: d}, at)
		})
		require.NoError(t, err)
	}
	bump(1)
	bump(1)

	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), u.CommentsCount)
	assert.Equal(t, models.RoleUser, u.Role)
	require.NotNil(t, u.LastActiveAt)
	assert.True(t, at.Equal(*u.LastActiveAt))
}

func TestUpsertUserKeepsCounters(t *testing.T) {
	s := dbtest.New(t)
	ctx := context.Background()

	err := s.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.BumpUser("u1", map[string]int64{store.FieldReactionsGiven: 3}, time.Now().UTC())
	})
	require.NoError(t, err)

	require.NoError(t, s.UpsertUser(ctx, &models.User{ID: "u1", Name: "Ada", Email: "ada@example.com"}))
	require.NoError(t, s.UpsertUser(ctx, &models.User{ID: "u1", Name: "Ada L.", Email: "ada@example.com"}))

	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", u.Name)
	assert.Equal(t, int64(3), u.ReactionsGiven)

	found, err := s.FindUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", found.ID)
}

func TestUpdateProjectSerializesLists(t *testing.T) {
	s := dbtest.New(t)
	ctx := context.Background()
	seedProject(t, s, "p1")

	require.NoError(t, s.UpdateProject(ctx, "p1", store.Fields{
		"techTags": []string{"go", "gin"},
		"title":    "Renamed",
	}))
	p, err := s.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "gin"}, p.TechTags)
	assert.Equal(t, "Renamed", p.Title)

	bySlug, err := s.GetProjectBySlug(ctx, "project-p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", bySlug.ID)

	assert.ErrorIs(t, s.UpdateProject(ctx, "missing", store.Fields{"title": "x"}), store.ErrNotFound)
}

func TestNotificationsReadState(t *testing.T) {
	s := dbtest.New(t)
	ctx := context.Background()

	for _, id := range []string{"n1", "n2"} {
		require.NoError(t, s.CreateNotification(ctx, &models.Notification{
			ID: id, UserID: "u1", Type: models.NotificationTypeSystem, CreatedAt: time.Now().UTC(),
		}))
	}
	require.NoError(t, s.MarkNotificationRead(ctx, "u1", "n1"))
	assert.ErrorIs(t, s.MarkNotificationRead(ctx, "u2", "n2"), store.ErrNotFound)

	require.NoError(t, s.MarkAllNotificationsRead(ctx, "u1"))
	list, err := s.ListNotifications(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, n := range list {
		assert.True(t, n.IsRead)
	}
}
