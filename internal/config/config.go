package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr string `yaml:"addr"`
	// Launch documents
	DataDir        string `yaml:"data_dir"`
	DefaultFile    string `yaml:"default_file"`
	ReposDir       string `yaml:"repos_dir"`
	AttachmentsDir string `yaml:"attachments_dir"`
	// Postgres catalog, empty keeps documents on disk only
	DatabaseURL   string `yaml:"database_url"`
	MigrationsDir string `yaml:"migrations_dir"`
	// Redis session store, empty keeps sessions in memory
	RedisURL          string `yaml:"redis_url"`
	SessionTTLSeconds int    `yaml:"session_ttl_seconds"`
	MeiliURL          string `yaml:"meili_url"`
	MeiliMasterKey    string `yaml:"meili_master_key"`
	// S3/MinIO attachments, empty endpoint keeps attachments on disk
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3UseSSL    bool   `yaml:"s3_use_ssl"`

	TokenSecret string `yaml:"token_secret"`
	// EditorKey must accompany requests for an editor session. Empty lets
	// any caller edit.
	EditorKey  string `yaml:"editor_key"`
	CORSOrigin string `yaml:"cors_origin"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`
}

// SessionTTL is how long an idle editing session is kept.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func Defaults() Config {
	return Config{
		Addr:              ":8787",
		DataDir:           "./data",
		DefaultFile:       "default_flow.json",
		ReposDir:          "./data/repos",
		AttachmentsDir:    "./data",
		MigrationsDir:     "",
		SessionTTLSeconds: 86400,
		S3Bucket:          "launchnav",
		TokenSecret:       "launchnav-dev-secret",
		CORSOrigin:        "*",
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// Load reads defaults, then the YAML file named by LAUNCHNAV_CONFIG, then
// environment variables. Later sources win.
func Load() (Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("LAUNCHNAV_CONFIG")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Addr = getenv("API_ADDR", cfg.Addr)
	cfg.DataDir = getenv("LAUNCHNAV_DATA_DIR", cfg.DataDir)
	cfg.DefaultFile = getenv("LAUNCHNAV_DEFAULT_FILE", cfg.DefaultFile)
	cfg.ReposDir = getenv("LAUNCHNAV_REPOS_DIR", cfg.ReposDir)
	cfg.AttachmentsDir = getenv("LAUNCHNAV_ATTACHMENTS_DIR", cfg.AttachmentsDir)
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	cfg.MigrationsDir = getenv("LAUNCHNAV_MIGRATIONS_DIR", cfg.MigrationsDir)
	cfg.RedisURL = getenv("REDIS_URL", cfg.RedisURL)
	cfg.SessionTTLSeconds = getenvInt("LAUNCHNAV_SESSION_TTL_SECONDS", cfg.SessionTTLSeconds)
	cfg.MeiliURL = getenv("MEILI_URL", cfg.MeiliURL)
	cfg.MeiliMasterKey = getenv("MEILI_MASTER_KEY", cfg.MeiliMasterKey)
	cfg.S3Endpoint = getenv("S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3AccessKey = getenv("S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = getenv("S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.S3Bucket = getenv("S3_BUCKET", cfg.S3Bucket)
	cfg.S3UseSSL = getenvBool("S3_USE_SSL", cfg.S3UseSSL)
	cfg.TokenSecret = getenv("LAUNCHNAV_TOKEN_SECRET", cfg.TokenSecret)
	cfg.EditorKey = getenv("LAUNCHNAV_EDITOR_KEY", cfg.EditorKey)
	cfg.CORSOrigin = getenv("LAUNCHNAV_CORS_ORIGIN", cfg.CORSOrigin)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenv("LOG_FORMAT", cfg.LogFormat)
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
