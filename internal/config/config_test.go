package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("FEED_FLUSH_INTERVAL", "")
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("SMTP_PORT", "")

	cfg, _ := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendPostgres, cfg.StoreBackend)
	assert.Equal(t, 300*time.Millisecond, cfg.FeedFlushInterval)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Empty(t, cfg.CORSOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", BackendFirestore)
	t.Setenv("FEED_FLUSH_INTERVAL", "1s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("SITE_URL", "https://portfolio.example/")
	t.Setenv("GIN_MODE", "release")

	cfg, _ := Load()
	assert.Equal(t, BackendFirestore, cfg.StoreBackend)
	assert.Equal(t, time.Second, cfg.FeedFlushInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "https://portfolio.example", cfg.SiteURL)
	assert.True(t, cfg.IsRelease())
}
