package services

import (
	"context"
	"math"
	"strings"
	"testing"

	"portfolio/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestContactSubmit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewContactService(e.store, nil, "owner@example.com", zaptest.NewLogger(t))

	in := ContactInput{Name: "Eve\r\nBcc: x@y", Email: "Eve <eve@example.com>", Subject: "Hi", Message: " Hello there "}
	_, err := svc.Submit(ctx, nil, in, false)
	assert.ErrorIs(t, err, ErrValidation)

	m, err := svc.Submit(ctx, nil, in, true)
	require.NoError(t, err)
	assert.Equal(t, "Eve  Bcc: x@y", m.Name)
	assert.Equal(t, "eve@example.com", m.Email)
	assert.Equal(t, "Hello there", m.Message)

	_, err = svc.Submit(ctx, alice, ContactInput{Name: "A", Email: "not-an-email", Message: "x"}, false)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Submit(ctx, alice, ContactInput{Name: "A", Email: "a@example.com", Message: strings.Repeat("x", maxContactMessage+1)}, false)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.List(ctx, alice, 10)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	list, err := svc.List(ctx, owner, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, svc.MarkHandled(ctx, owner, m.ID, true))
	list, err = svc.List(ctx, owner, 10)
	require.NoError(t, err)
	assert.True(t, list[0].Handled)
	assert.ErrorIs(t, svc.MarkHandled(ctx, owner, "missing", true), store.ErrNotFound)
}

func TestLocationRecord(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewLocationService(e.store, zaptest.NewLogger(t))

	for _, in := range []LocationInput{
		{Latitude: 91},
		{Longitude: -180.5},
		{Accuracy: -1},
		{Latitude: math.NaN()},
	} {
		_, err := svc.Record(ctx, nil, in, "ua", "127.0.0.1")
		assert.ErrorIs(t, err, ErrValidation, "%+v", in)
	}

	p, err := svc.Record(ctx, bob, LocationInput{Latitude: 48.85, Longitude: 2.35, Accuracy: 12}, "Mozilla", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "bob", p.UserID)

	_, err = svc.List(ctx, nil, 10)
	assert.ErrorIs(t, err, ErrAuthRequired)
	list, err := svc.List(ctx, owner, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 48.85, list[0].Latitude)
}
