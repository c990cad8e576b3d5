package firestore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"portfolio/internal/firestore"
	"portfolio/internal/models"
	"portfolio/internal/store"

	fs "cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// newStore 需要 Firestore 模拟器（FIRESTORE_EMULATOR_HOST）
func newStore(t *testing.T) *firestore.Store {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := fs.NewClient(context.Background(), "demo-portfolio")
	require.NoError(t, err)
	s := firestore.New(client, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTransactionMergesWritesPerDocument(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	projectID := uuid.NewString()
	userID := "user-" + uuid.NewString()
	require.NoError(t, s.CreateProject(ctx, &models.Project{
		ID: projectID, Title: "Demo", Slug: projectID, AuthorID: "owner", Published: true,
		CreatedAt: time.Now().UTC(),
	}))

	commentID := uuid.NewString()
	err := s.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetProject(projectID); err != nil {
			return err
		}
		if err := tx.CreateComment(&models.Comment{
			ID: commentID, ProjectID: projectID, UserID: userID, Content: "hello", CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		// 同一文档的多次增量合并为一次写入
		if err := tx.IncrementProject(projectID, store.FieldCommentsCount, 1); err != nil {
			return err
		}
		if err := tx.IncrementProject(projectID, store.FieldCommentsCount, 1); err != nil {
			return err
		}
		if err := tx.IncrementProjectReaction(projectID, models.ReactionRocket, 1); err != nil {
			return err
		}
		return tx.BumpUser(userID, map[string]int64{store.FieldCommentsCount: 1}, time.Now().UTC())
	})
	require.NoError(t, err)

	p, err := s.GetProject(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.CommentsCount)
	assert.Equal(t, int64(1), p.ReactionsCount.Rocket)

	u, err := s.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.CommentsCount)
	assert.Equal(t, models.RoleUser, u.Role)

	c, err := s.GetComment(ctx, commentID)
	require.NoError(t, err)
	assert.Nil(t, c.ParentCommentID)
	assert.Equal(t, []string{}, c.UserLikes)
}

func TestCommentLikeArrayOps(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	commentID := uuid.NewString()
	err := s.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.CreateComment(&models.Comment{
			ID: commentID, ProjectID: "p", UserID: "u1", Content: "hi", CreatedAt: time.Now().UTC(),
		})
	})
	require.NoError(t, err)

	err = s.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.AddCommentLike(commentID, "u2")
	})
	require.NoError(t, err)

	c, err := s.GetComment(ctx, commentID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Likes)
	assert.Equal(t, []string{"u2"}, c.UserLikes)

	err = s.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.RemoveCommentLike(commentID, "u2")
	})
	require.NoError(t, err)

	c, err = s.GetComment(ctx, commentID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.Likes)
	assert.Empty(t, c.UserLikes)
}

func TestGetMissingDocument(t *testing.T) {
	s := newStore(t)
	_, err := s.GetComment(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, store.ErrNotFound)
}
