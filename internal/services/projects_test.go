package services

import (
	"context"
	"testing"

	"portfolio/internal/models"
	"portfolio/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestProjectCreateSlugs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a, err := e.projects.Create(ctx, owner, ProjectInput{Title: strPtr("Hello, World!")})
	require.NoError(t, err)
	assert.Equal(t, "hello-world", a.Slug)
	assert.Equal(t, "owner", a.AuthorID)
	assert.Empty(t, a.TechTags)

	b, err := e.projects.Create(ctx, devDora, ProjectInput{Title: strPtr("Hello World")})
	require.NoError(t, err)
	assert.Equal(t, "hello-world-2", b.Slug)

	_, err = e.projects.Create(ctx, alice, ProjectInput{Title: strPtr("Nope")})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = e.projects.Create(ctx, owner, ProjectInput{Title: strPtr("   ")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.projects.Create(ctx, owner, ProjectInput{
		Title:  strPtr("Bad image"),
		Images: &[]string{"javascript:alert(1)"},
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestProjectUpdate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p, err := e.projects.Create(ctx, devDora, ProjectInput{Title: strPtr("Mine")})
	require.NoError(t, err)

	other := *devDora
	other.UserID = "another-dev"
	_, err = e.projects.Update(ctx, &other, p.ID, ProjectInput{Title: strPtr("Theirs")})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	tags := []string{"go", " gin ", "go", ""}
	updated, err := e.projects.Update(ctx, devDora, p.ID, ProjectInput{
		TechTags: &tags,
		LiveURL:  strPtr("https://example.com"),
		Slug:     strPtr("My Slug"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "gin"}, updated.TechTags)
	assert.Equal(t, "my-slug", updated.Slug)

	stored, err := e.projects.GetBySlug(ctx, devDora, "my-slug")
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "gin"}, stored.TechTags)
	assert.Equal(t, "https://example.com", stored.LiveURL)
	assert.False(t, stored.Published)

	_, err = e.projects.GetBySlug(ctx, nil, "my-slug")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = e.projects.SetPublished(ctx, owner, p.ID, true)
	require.NoError(t, err)
	_, err = e.projects.GetBySlug(ctx, nil, "my-slug")
	require.NoError(t, err)
}

func TestProjectDeleteCascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.project(t, "doomed")
	keep := e.project(t, "keep")

	top := e.comment(t, alice, p.ID, "top", "")
	gone := e.comment(t, bob, p.ID, "reply", top.ID)
	e.comment(t, bob, keep.ID, "elsewhere", "")
	_, err := e.comments.Delete(ctx, bob, gone.ID, false)
	require.NoError(t, err)
	_, err = e.comments.ToggleLike(ctx, bob, top.ID, false)
	require.NoError(t, err)
	_, err = e.reactions.Add(ctx, carol, p.ID, models.ReactionWow)
	require.NoError(t, err)
	_, err = e.reactions.Add(ctx, carol, keep.ID, models.ReactionWow)
	require.NoError(t, err)

	assert.ErrorIs(t, e.projects.Delete(ctx, alice, p.ID), ErrPermissionDenied)
	require.NoError(t, e.projects.Delete(ctx, owner, p.ID))

	_, err = e.store.GetProject(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = e.store.GetComment(ctx, top.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	left, err := e.store.ListReactions(ctx, store.ReactionQuery{UserID: "carol"})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, keep.ID, left[0].ProjectID)

	assert.Equal(t, int64(0), e.getUser(t, "alice").CommentsCount)
	assert.Equal(t, int64(1), e.getUser(t, "bob").CommentsCount)
	assert.Equal(t, int64(1), e.getUser(t, "carol").ReactionsGiven)
	assertConsistent(t, e, keep.ID)
}

func TestProjectListAndCounters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pub := e.project(t, "public")
	draft, err := e.projects.Create(ctx, owner, ProjectInput{Title: strPtr("Draft")})
	require.NoError(t, err)

	list, err := e.projects.List(ctx, nil, ProjectListOptions{Sort: "new", IncludeDrafts: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pub.ID, list[0].ID)

	list, err = e.projects.List(ctx, owner, ProjectListOptions{Sort: "new", IncludeDrafts: true})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, draft.ID, list[0].ID)

	e.projects.RecordView(ctx, pub.ID)
	e.projects.RecordView(ctx, pub.ID)
	require.NoError(t, e.projects.RecordShare(ctx, nil, pub.ID))
	assert.ErrorIs(t, e.projects.RecordShare(ctx, nil, draft.ID), store.ErrNotFound)

	got := e.getProject(t, pub.ID)
	assert.Equal(t, int64(2), got.ViewsCount)
	assert.Equal(t, int64(1), got.SharesCount)
}
