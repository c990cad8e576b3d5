package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

type Config struct {
	Port    string
	GinMode string

	StoreBackend            string
	DatabaseURL             string
	FirebaseProjectID       string
	FirebaseCredentialsPath string

	SessionSecret      string
	GoogleClientID     string
	GoogleClientSecret string
	SiteURL            string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	OwnerEmail    string
	OwnerName     string
	OwnerPassword string

	CORSOrigins       []string
	FeedFlushInterval time.Duration
}

// Load 读取 .env（若存在）后从环境变量构建配置。返回是否找到 .env 文件
func Load() (*Config, bool) {
	found := godotenv.Load() == nil

	cfg := &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		StoreBackend:            getEnv("STORE_BACKEND", BackendPostgres),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseCredentialsPath: os.Getenv("FIREBASE_CREDENTIALS_PATH"),

		SessionSecret:      getEnv("SESSION_SECRET", "secret_key_change_me"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		SiteURL:            strings.TrimRight(getEnv("SITE_URL", "http://localhost:8080"), "/"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),

		OwnerEmail:    os.Getenv("OWNER_EMAIL"),
		OwnerName:     getEnv("OWNER_NAME", "Site Owner"),
		OwnerPassword: os.Getenv("OWNER_PASSWORD"),

		CORSOrigins:       splitList(os.Getenv("CORS_ORIGINS")),
		FeedFlushInterval: getEnvDuration("FEED_FLUSH_INTERVAL", 300*time.Millisecond),
	}
	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = cfg.SMTPUser
	}
	return cfg, found
}

func (c *Config) IsRelease() bool {
	return c.GinMode == "release"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
