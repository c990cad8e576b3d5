// Package dbtest opens an in-memory SQLite backed db.Store for tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"portfolio/internal/db"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New 每个测试一个独立的内存库，测试结束时关闭
func New(t testing.TB) *db.Store {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// 内存库在单连接上才能保证事务可见性
	sqlDB.SetMaxOpenConns(1)

	s := db.New(gdb, zaptest.NewLogger(t))
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { _ = s.Close() })
	return s
}
