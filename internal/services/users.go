package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"portfolio/internal/identity"
	"portfolio/internal/models"
	"portfolio/internal/store"
	"portfolio/internal/utils"

	"go.uber.org/zap"
)

// ErrInvalidCredentials 本地登录失败，不区分邮箱不存在和密码错误
var ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrAuthRequired)

// GoogleProfile OAuth userinfo 中需要的字段
type GoogleProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	Picture       string `json:"picture"`
}

type UserService struct {
	store   store.Store
	authors *AuthorDirectory
	seen    *utils.TTLCache[bool]
	log     *zap.Logger
	now     func() time.Time
}

func NewUserService(st store.Store, authors *AuthorDirectory, log *zap.Logger) (*UserService, error) {
	seen, err := utils.NewTTLCache[bool](10000, 30*time.Minute)
	if err != nil {
		return nil, err
	}
	return &UserService{
		store:   st,
		authors: authors,
		seen:    seen,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *UserService) upsert(ctx context.Context, u *models.User) error {
	now := s.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Avatar == "" {
		u.Avatar = utils.DefaultAvatar(u.ID)
	}
	if err := s.store.UpsertUser(ctx, u); err != nil {
		return err
	}
	if s.authors != nil {
		s.authors.Forget(u.ID)
	}
	return nil
}

// EnsureProfile 持有 Firebase token 的用户第一次出现时写入资料，之后一段时间内跳过
func (s *UserService) EnsureProfile(ctx context.Context, actor *identity.Actor) {
	if actor == nil || actor.UserID == "" {
		return
	}
	if _, ok := s.seen.Get(actor.UserID); ok {
		return
	}

	u := &models.User{
		ID:     actor.UserID,
		Name:   actor.Name,
		Email:  actor.Email,
		Avatar: actor.Avatar,
	}
	if err := s.upsert(ctx, u); err != nil {
		s.log.Warn("Ensure profile failed", zap.String("user_id", actor.UserID), zap.String("side_effect", "profile"), zap.Error(err))
		return
	}
	s.seen.Set(actor.UserID, true)
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.store.GetUser(ctx, id)
}

// Actor 根据 session 中的用户 ID 解析身份；用户已不存在时返回 nil
func (s *UserService) Actor(ctx context.Context, id string) (*identity.Actor, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return identity.FromUser(u), nil
}

func (s *UserService) LoginLocal(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.store.FindUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPasswordHash(password, u.PasswordHash) {
		s.log.Info("Local login rejected", zap.String("email", email))
		return nil, ErrInvalidCredentials
	}
	if err := s.store.UpdateUser(ctx, u.ID, store.Fields{"lastActiveAt": s.now()}); err != nil {
		s.log.Warn("Touch last active failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	return u, nil
}

// LoginGoogle 通过 Google 账号登录。邮箱已存在的账号（例如站长的本地账号）直接绑定。
func (s *UserService) LoginGoogle(ctx context.Context, p *GoogleProfile) (*models.User, error) {
	if p == nil || p.ID == "" {
		return nil, invalid("google profile is empty")
	}
	if !p.VerifiedEmail {
		return nil, invalid("google email is not verified")
	}

	name := p.Name
	if name == "" {
		name = p.GivenName
	}
	if name == "" {
		name, _, _ = strings.Cut(p.Email, "@")
	}
	email := strings.ToLower(p.Email)

	u := &models.User{
		ID:       "google:" + p.ID,
		Name:     name,
		Email:    email,
		Avatar:   p.Picture,
		GoogleID: p.ID,
	}
	existing, err := s.store.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		u.ID = existing.ID
		u.CreatedAt = existing.CreatedAt
		if existing.Name != "" {
			u.Name = existing.Name
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	if err := s.upsert(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("Google login", zap.String("user_id", u.ID))
	return s.store.GetUser(ctx, u.ID)
}

func (s *UserService) GrantRole(ctx context.Context, actor *identity.Actor, userID, role string) (*models.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	if !models.ValidRole(role) {
		return nil, invalid("unknown role %q", role)
	}
	if err := s.store.UpdateUser(ctx, userID, store.Fields{"role": role, "updatedAt": s.now()}); err != nil {
		return nil, err
	}
	s.log.Info("Role granted", zap.String("user_id", userID), zap.String("role", role), zap.String("actor", actor.UserID))
	return s.store.GetUser(ctx, userID)
}

// SeedOwner 创建站长管理员账号（已存在则跳过）
func (s *UserService) SeedOwner(ctx context.Context, email, name, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		s.log.Info("Owner credentials not configured, skipping seed")
		return nil
	}

	_, err := s.store.FindUserByEmail(ctx, email)
	if err == nil {
		s.log.Info("Owner already seeded, skipping", zap.String("email", email))
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	owner := &models.User{
		ID:           "local:" + email,
		Name:         name,
		Email:        email,
		Role:         models.RoleAdmin,
		PasswordHash: hash,
	}
	if err := s.upsert(ctx, owner); err != nil {
		return fmt.Errorf("seed owner: %w", err)
	}
	s.log.Info("Owner account created", zap.String("email", email))
	return nil
}
