package identity

import (
	"testing"

	"portfolio/internal/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestActorFromClaims(t *testing.T) {
	got := actorFromClaims("uid-1", map[string]interface{}{
		"name":    "Ada",
		"email":   "ada@example.com",
		"picture": "https://img.example/ada.png",
		"role":    "developer",
	})
	want := &Actor{
		UserID: "uid-1",
		Name:   "Ada",
		Email:  "ada@example.com",
		Avatar: "https://img.example/ada.png",
		Role:   models.RoleDeveloper,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("actorFromClaims mismatch (-want +got):\n%s", diff)
	}
}

func TestActorFromClaimsUnknownRole(t *testing.T) {
	got := actorFromClaims("uid-2", map[string]interface{}{"role": "root", "name": 42})
	assert.Equal(t, models.RoleUser, got.Role)
	assert.Empty(t, got.Name)
}

func TestActorChecks(t *testing.T) {
	var anon *Actor
	assert.False(t, anon.IsAdmin())
	assert.False(t, anon.CanManageProjects())
	assert.False(t, anon.Is("u1"))

	dev := FromUser(&models.User{ID: "u1", Role: models.RoleDeveloper})
	assert.False(t, dev.IsAdmin())
	assert.True(t, dev.CanManageProjects())
	assert.True(t, dev.Is("u1"))
	assert.False(t, dev.Is(""))

	plain := FromUser(&models.User{ID: "u2"})
	assert.Equal(t, models.RoleUser, plain.Role)
}
