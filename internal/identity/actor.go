// Package identity describes who is acting on a request. An Actor is resolved
// once per request by the middleware and passed explicitly to every service call.
package identity

import (
	"portfolio/internal/models"
)

type Actor struct {
	UserID string
	Name   string
	Email  string
	Avatar string
	Role   string
}

func FromUser(u *models.User) *Actor {
	role := u.Role
	if role == "" {
		role = models.RoleUser
	}
	return &Actor{
		UserID: u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Avatar: u.Avatar,
		Role:   role,
	}
}

// IsAdmin nil 安全
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == models.RoleAdmin
}

// CanManageProjects 管理员与开发者可以维护项目
func (a *Actor) CanManageProjects() bool {
	return a != nil && (a.Role == models.RoleAdmin || a.Role == models.RoleDeveloper)
}

func (a *Actor) Is(userID string) bool {
	return a != nil && a.UserID != "" && a.UserID == userID
}
