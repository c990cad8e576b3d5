package db

import (
	"errors"
	"fmt"
	"strings"

	"portfolio/internal/models"
	"portfolio/internal/store"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=portfolio port=5432 sslmode=disable TimeZone=UTC"

// Store 基于 gorm 的 store.Store 实现
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

var _ store.Store = (*Store)(nil)

// Open 连接 Postgres
func Open(dsn string, log *zap.Logger) (*Store, error) {
	if dsn == "" {
		// Fallback for local dev if not set
		dsn = defaultDSN
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	log.Info("Database connection established")
	return New(gdb, log), nil
}

// New 包装一个已打开的 gorm 连接（测试中为 SQLite）
func New(gdb *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: gdb, log: log}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate 自动迁移所有模型
func (s *Store) Migrate() error {
	err := s.db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Comment{},
		&models.CommentLike{},
		&models.Reaction{},
		&models.Notification{},
		&models.ContactMessage{},
		&models.LocationPing{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	s.log.Info("Database migration completed")
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var naming = schema.NamingStrategy{}

// column 将逻辑字段名映射为列名，reactionsCount.xxx 映射到展开的 reactions_xxx 列
func column(field string) string {
	if t, ok := strings.CutPrefix(field, "reactionsCount."); ok {
		return models.ReactionType(t).Column()
	}
	return naming.ColumnName("", field)
}

func columns(f store.Fields) map[string]interface{} {
	out := make(map[string]interface{}, len(f))
	for k, v := range f {
		out[column(k)] = v
	}
	return out
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}
