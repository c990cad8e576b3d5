// Package backend 根据配置选择存储实现，供 server 和 portfolioctl 共用
package backend

import (
	"context"
	"fmt"

	"portfolio/internal/config"
	"portfolio/internal/db"
	"portfolio/internal/firestore"
	"portfolio/internal/identity"
	"portfolio/internal/store"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
)

type Backend struct {
	Store store.Store
	// Source 只有 Firestore 后端提供
	Source store.ChangeSource
	// Firebase 未配置 Firebase 时为 nil
	Firebase *firebase.App
	// SQL 只有 Postgres 后端提供
	SQL *db.Store

	close func() error
}

func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Open 打开配置的存储后端。Postgres 后端在配置了 FIREBASE_PROJECT_ID 时同样初始化 Firebase，用于校验 ID token
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Backend, error) {
	b := &Backend{}

	if cfg.StoreBackend == config.BackendFirestore || cfg.FirebaseProjectID != "" {
		app, err := firestore.InitApp(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsPath, log)
		if err != nil {
			return nil, fmt.Errorf("init firebase: %w", err)
		}
		b.Firebase = app
	}

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		st, err := db.Open(cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		b.Store, b.SQL, b.close = st, st, st.Close
	case config.BackendFirestore:
		st, err := firestore.Open(ctx, b.Firebase, log)
		if err != nil {
			return nil, err
		}
		b.Store, b.Source, b.close = st, st, st.Close
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	log.Info("Store backend ready", zap.String("backend", cfg.StoreBackend))
	return b, nil
}

// Migrate 只对 SQL 后端有意义，Firestore 无 schema
func (b *Backend) Migrate() error {
	if b.SQL == nil {
		return nil
	}
	return b.SQL.Migrate()
}

// Verifier Firebase 未配置时返回 nil，此时只接受 session 登录
func (b *Backend) Verifier(ctx context.Context) (identity.TokenVerifier, error) {
	if b.Firebase == nil {
		return nil, nil
	}
	v, err := identity.NewFirebaseVerifier(ctx, b.Firebase)
	if err != nil {
		return nil, err
	}
	return v, nil
}
