package services

import (
	"context"
	"testing"

	"portfolio/internal/models"
	"portfolio/internal/store"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 同一用户可以同时持有多种反应，每种类型独立计数
func TestReactionsAreIndependentPerType(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.project(t, "react")

	st, err := e.reactions.Add(ctx, alice, p.ID, models.ReactionLike)
	require.NoError(t, err)
	assert.True(t, st.Reacted)
	_, err = e.reactions.Add(ctx, alice, p.ID, models.ReactionLove)
	require.NoError(t, err)

	got := e.getProject(t, p.ID)
	assert.Equal(t, int64(1), got.ReactionsCount.Like)
	assert.Equal(t, int64(1), got.ReactionsCount.Love)
	assert.Equal(t, int64(2), got.TotalReactions)
	assert.Equal(t, int64(2), e.getUser(t, "alice").ReactionsGiven)

	summary, err := e.reactions.Summary(ctx, alice, p.ID)
	require.NoError(t, err)
	if diff := cmp.Diff([]models.ReactionType{models.ReactionLike, models.ReactionLove}, summary.Mine); diff != "" {
		t.Errorf("Mine mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, got.ReactionsCount.Total(), summary.Total)
}

func TestReactionAddRemoveIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.project(t, "idem")

	for i := 0; i < 3; i++ {
		st, err := e.reactions.Add(ctx, bob, p.ID, models.ReactionRocket)
		require.NoError(t, err)
		assert.Equal(t, int64(1), st.Count)
	}
	_, err := e.reactions.Add(ctx, carol, p.ID, models.ReactionRocket)
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.getProject(t, p.ID).ReactionsCount.Rocket)

	for i := 0; i < 2; i++ {
		st, err := e.reactions.Remove(ctx, bob, p.ID, models.ReactionRocket)
		require.NoError(t, err)
		assert.False(t, st.Reacted)
		assert.Equal(t, int64(1), st.Count)
	}
	got := e.getProject(t, p.ID)
	assert.Equal(t, int64(1), got.ReactionsCount.Rocket)
	assert.Equal(t, int64(1), got.TotalReactions)
	assert.Equal(t, int64(0), e.getUser(t, "bob").ReactionsGiven)
}

func TestReactionToggle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.project(t, "toggle")

	st, err := e.reactions.Toggle(ctx, alice, p.ID, models.ReactionClap)
	require.NoError(t, err)
	assert.True(t, st.Reacted)
	assert.Equal(t, int64(1), st.Total)

	st, err = e.reactions.Toggle(ctx, alice, p.ID, models.ReactionClap)
	require.NoError(t, err)
	assert.False(t, st.Reacted)
	assert.Equal(t, int64(0), st.Total)

	rs, err := e.store.ListReactions(ctx, store.ReactionQuery{ProjectID: p.ID})
	require.NoError(t, err)
	assert.Empty(t, rs)
}

func TestReactionValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.project(t, "invalid")

	_, err := e.reactions.Add(ctx, nil, p.ID, models.ReactionLike)
	assert.ErrorIs(t, err, ErrAuthRequired)

	_, err = e.reactions.Add(ctx, alice, p.ID, models.ReactionType("thumbsdown"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.reactions.Add(ctx, alice, "missing", models.ReactionLike)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.Equal(t, int64(0), e.getProject(t, p.ID).TotalReactions)
}

func TestReactionSummaryAnonymous(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.project(t, "anon")
	_, err := e.reactions.Add(ctx, alice, p.ID, models.ReactionIdea)
	require.NoError(t, err)

	summary, err := e.reactions.Summary(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.Empty(t, summary.Mine)
	assert.Equal(t, int64(1), summary.Counts.Idea)
}
