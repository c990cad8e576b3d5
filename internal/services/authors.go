package services

import (
	"context"
	"errors"
	"time"

	"portfolio/internal/store"
	"portfolio/internal/utils"

	"go.uber.org/zap"
)

// Author 评论列表中展示的作者信息
type Author struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

var unknownAuthor = Author{Name: utils.UnknownUserName}

// AuthorDirectory 带 TTL 缓存的作者查询。查询失败不会中断列表，只会退化为占位作者。
type AuthorDirectory struct {
	store store.Store
	cache *utils.TTLCache[Author]
	log   *zap.Logger
}

func NewAuthorDirectory(st store.Store, size int, ttl time.Duration, log *zap.Logger) (*AuthorDirectory, error) {
	cache, err := utils.NewTTLCache[Author](size, ttl)
	if err != nil {
		return nil, err
	}
	return &AuthorDirectory{store: st, cache: cache, log: log}, nil
}

func (d *AuthorDirectory) Lookup(ctx context.Context, userID string) Author {
	if a, ok := d.cache.Get(userID); ok {
		return a
	}

	u, err := d.store.GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			d.log.Warn("Author lookup failed", zap.String("user_id", userID), zap.Error(err))
		}
		return unknownAuthor
	}

	a := Author{Name: utils.DisplayName(u.Name), Avatar: u.Avatar}
	d.cache.Set(userID, a)
	return a
}

// Forget 用户资料变更后清除缓存
func (d *AuthorDirectory) Forget(userID string) {
	d.cache.Delete(userID)
}
