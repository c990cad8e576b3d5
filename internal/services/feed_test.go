package services

import (
	"context"
	"testing"
	"time"

	"portfolio/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch <-chan Snapshot) []Snapshot {
	var out []Snapshot
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, s)
		default:
			return out
		}
	}
}

func TestFeedCoalescesBursts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.project(t, "live")

	ch, cancel := e.feed.Subscribe(p.ID, nil)
	defer cancel()

	top := e.comment(t, alice, p.ID, "one", "")
	e.comment(t, bob, p.ID, "two", top.ID)
	e.comment(t, carol, p.ID, "three", "")
	_, err := e.reactions.Add(ctx, bob, p.ID, models.ReactionLike)
	require.NoError(t, err)

	assert.Equal(t, 1, e.feed.flush(ctx))
	snaps := drain(ch)
	require.Len(t, snaps, 1)
	snap := snaps[0]
	assert.False(t, snap.Deleted)
	assert.Equal(t, int64(3), snap.Project.CommentsCount)
	assert.Equal(t, int64(1), snap.Project.TotalReactions)
	require.Len(t, snap.Comments, 2)
	assert.Equal(t, "three", snap.Comments[0].Content)
	assert.Greater(t, e.getProject(t, p.ID).Score, 0.0)

	assert.Equal(t, 0, e.feed.flush(ctx))
	assert.Empty(t, drain(ch))
}

func TestFeedKeepsLatestSnapshot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.project(t, "latest")

	ch, cancel := e.feed.Subscribe(p.ID, nil)
	defer cancel()
	e.feed.flush(ctx)

	e.comment(t, alice, p.ID, "new", "")
	e.feed.flush(ctx)

	snaps := drain(ch)
	require.Len(t, snaps, 1)
	assert.Equal(t, int64(1), snaps[0].Project.CommentsCount)
}

func TestFeedDeletedProjectAndCancel(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.project(t, "bye")

	ch, cancel := e.feed.Subscribe(p.ID, nil)
	e.feed.flush(ctx)
	drain(ch)

	require.NoError(t, e.projects.Delete(ctx, owner, p.ID))
	e.feed.flush(ctx)
	snaps := drain(ch)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].Deleted)

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.False(t, e.feed.hasSubscribers(p.ID))
}

func TestFeedStopsPushingUnpublishedProject(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.project(t, "pulled")
	e.comment(t, alice, p.ID, "hello", "")

	anon, cancelAnon := e.feed.Subscribe(p.ID, nil)
	defer cancelAnon()
	reader, cancelReader := e.feed.Subscribe(p.ID, bob)
	defer cancelReader()
	admin, cancelAdmin := e.feed.Subscribe(p.ID, owner)
	defer cancelAdmin()
	e.feed.flush(ctx)
	require.Len(t, drain(anon), 1)
	require.Len(t, drain(reader), 1)
	require.Len(t, drain(admin), 1)

	_, err := e.projects.SetPublished(ctx, owner, p.ID, false)
	require.NoError(t, err)
	e.feed.Touch(p.ID)
	e.feed.flush(ctx)

	for _, ch := range []<-chan Snapshot{anon, reader} {
		snaps := drain(ch)
		require.Len(t, snaps, 1)
		assert.True(t, snaps[0].Hidden)
		assert.True(t, snaps[0].Final())
		assert.Nil(t, snaps[0].Project)
		assert.Empty(t, snaps[0].Comments)
		_, ok := <-ch
		assert.False(t, ok, "hidden subscriber must be closed")
	}

	snaps := drain(admin)
	require.Len(t, snaps, 1)
	assert.False(t, snaps[0].Final())
	require.NotNil(t, snaps[0].Project)
	assert.False(t, snaps[0].Project.Published)
	assert.Len(t, snaps[0].Comments, 1)

	e.comment(t, owner, p.ID, "still drafting", "")
	e.feed.flush(ctx)
	assert.Len(t, drain(admin), 1)
	assert.True(t, e.feed.hasSubscribers(p.ID))
}

type fakeSource struct {
	started chan string
}

func (f *fakeSource) WatchProjectComments(ctx context.Context, projectID string, notify func()) error {
	f.started <- projectID
	notify()
	<-ctx.Done()
	return nil
}

func TestFeedStartsWatchOnFirstSubscriber(t *testing.T) {
	e := newEnv(t)
	p := e.project(t, "watched")
	src := &fakeSource{started: make(chan string, 2)}
	e.feed.source = src

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	e.feed.Start(ctx)

	_, cancel1 := e.feed.Subscribe(p.ID, nil)
	_, cancel2 := e.feed.Subscribe(p.ID, nil)
	defer cancel2()

	select {
	case id := <-src.started:
		assert.Equal(t, p.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("watch was not started")
	}
	cancel1()
	select {
	case <-src.started:
		t.Fatal("second subscriber started another watch")
	case <-time.After(50 * time.Millisecond):
	}
}
