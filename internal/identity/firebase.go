package identity

import (
	"context"
	"fmt"

	"portfolio/internal/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
)

// TokenVerifier 校验 Bearer ID token
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*Actor, error)
}

type FirebaseVerifier struct {
	client *auth.Client
}

func NewFirebaseVerifier(ctx context.Context, app *firebase.App) (*FirebaseVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// Verify 角色来自自定义 claim "role"，缺省为普通用户
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*Actor, error) {
	tok, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return actorFromClaims(tok.UID, tok.Claims), nil
}

func actorFromClaims(uid string, claims map[string]interface{}) *Actor {
	str := func(key string) string {
		s, _ := claims[key].(string)
		return s
	}
	role := str("role")
	if !models.ValidRole(role) {
		role = models.RoleUser
	}
	return &Actor{
		UserID: uid,
		Name:   str("name"),
		Email:  str("email"),
		Avatar: str("picture"),
		Role:   role,
	}
}
