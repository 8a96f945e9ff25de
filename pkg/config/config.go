package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	CORS       CORSConfig
	Log        LogConfig
	Upload     UploadConfig
	Storage    StorageConfig
	Processing ProcessingConfig
	Classifier ClassifierConfig
	Reminder   ReminderConfig
	Events     EventsConfig
	RateLimit  RateLimitConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

// AuthConfig describes the external auth service contract. Tokens are issued elsewhere;
// when Secret is empty they are decoded without signature verification.
type AuthConfig struct {
	Secret            string
	CookieName        string
	CookieTTL         time.Duration
	AuthURL           string
	RedirectAuthURL   string
	PostLoginRedirect string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// UploadConfig bounds a selection batch.
type UploadConfig struct {
	MaxFiles     int
	MaxFileSize  int64
	AllowedMIMEs []string
	ProgressTick time.Duration
	ProgressStep int
}

// StorageConfig selects the object store backing document binaries.
type StorageConfig struct {
	Driver          string
	BaseDir         string
	Bucket          string
	Region          string
	Prefix          string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// ProcessingConfig tunes the staged extraction simulation and session lifetime.
type ProcessingConfig struct {
	StageDelay time.Duration
	Workers    int
	Retries    int
	SessionTTL time.Duration
}

// ClassifierConfig picks the classifier implementation and its breaker settings.
type ClassifierConfig struct {
	Mode                string
	BreakerEnabled      bool
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
	RetryMaxAttempts    int
}

// ReminderConfig governs the background reminder sweep.
type ReminderConfig struct {
	SweepEnabled  bool
	SweepInterval time.Duration
}

// EventsConfig enables NATS fan-out of toasts and notifications.
type EventsConfig struct {
	Enabled       bool
	NATSURL       string
	SubjectPrefix string
	Source        string
}

// RateLimitConfig throttles upload endpoints per client.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		TTL:      parseDuration(v.GetString("REDIS_PROFILE_TTL"), 24*time.Hour),
	}

	cfg.Auth = AuthConfig{
		Secret:            v.GetString("JWT_SECRET"),
		CookieName:        v.GetString("AUTH_COOKIE_NAME"),
		CookieTTL:         parseDuration(v.GetString("AUTH_COOKIE_TTL"), time.Hour),
		AuthURL:           strings.TrimRight(v.GetString("AUTH_URL"), "/"),
		RedirectAuthURL:   v.GetString("REDIRECT_AUTH_URL"),
		PostLoginRedirect: v.GetString("POST_LOGIN_REDIRECT"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxFileSize := v.GetInt64("UPLOAD_MAX_FILE_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 5 * 1024 * 1024
	}
	cfg.Upload = UploadConfig{
		MaxFiles:     v.GetInt("UPLOAD_MAX_FILES"),
		MaxFileSize:  maxFileSize,
		AllowedMIMEs: splitAndTrim(v.GetString("UPLOAD_ALLOWED_MIME_TYPES")),
		ProgressTick: parseDuration(v.GetString("UPLOAD_PROGRESS_TICK"), 100*time.Millisecond),
		ProgressStep: v.GetInt("UPLOAD_PROGRESS_STEP"),
	}

	cfg.Storage = StorageConfig{
		Driver:          strings.ToLower(v.GetString("STORAGE_DRIVER")),
		BaseDir:         v.GetString("STORAGE_DIR"),
		Bucket:          v.GetString("STORAGE_S3_BUCKET"),
		Region:          v.GetString("STORAGE_S3_REGION"),
		Prefix:          v.GetString("STORAGE_S3_PREFIX"),
		SignedURLSecret: v.GetString("STORAGE_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("STORAGE_SIGNED_URL_TTL"), 30*time.Minute),
	}

	cfg.Processing = ProcessingConfig{
		StageDelay: parseDuration(v.GetString("PROCESSING_STAGE_DELAY"), 1500*time.Millisecond),
		Workers:    v.GetInt("PROCESSING_WORKERS"),
		Retries:    v.GetInt("PROCESSING_RETRIES"),
		SessionTTL: parseDuration(v.GetString("SESSION_TTL"), 30*time.Minute),
	}

	cfg.Classifier = ClassifierConfig{
		Mode:                strings.ToLower(v.GetString("CLASSIFIER_MODE")),
		BreakerEnabled:      v.GetBool("CLASSIFIER_BREAKER_ENABLED"),
		BreakerMinRequests:  uint32(v.GetUint("CLASSIFIER_BREAKER_MIN_REQUESTS")),
		BreakerFailureRatio: v.GetFloat64("CLASSIFIER_BREAKER_FAILURE_RATIO"),
		BreakerOpenTimeout:  parseDuration(v.GetString("CLASSIFIER_BREAKER_OPEN_TIMEOUT"), 30*time.Second),
		RetryMaxAttempts:    v.GetInt("CLASSIFIER_RETRY_MAX_ATTEMPTS"),
	}

	cfg.Reminder = ReminderConfig{
		SweepEnabled:  v.GetBool("ENABLE_REMINDER_SWEEP"),
		SweepInterval: parseDuration(v.GetString("REMINDER_SWEEP_INTERVAL"), time.Hour),
	}

	cfg.Events = EventsConfig{
		Enabled:       v.GetBool("ENABLE_EVENTS"),
		NATSURL:       v.GetString("NATS_URL"),
		SubjectPrefix: v.GetString("EVENTS_SUBJECT_PREFIX"),
		Source:        v.GetString("EVENTS_SOURCE"),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled: v.GetBool("ENABLE_UPLOAD_RATE_LIMIT"),
		RPS:     v.GetFloat64("UPLOAD_RATE_LIMIT_RPS"),
		Burst:   v.GetInt("UPLOAD_RATE_LIMIT_BURST"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "dokumen")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PROFILE_TTL", "24h")

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("AUTH_COOKIE_NAME", "access_token")
	v.SetDefault("AUTH_COOKIE_TTL", "60m")
	v.SetDefault("AUTH_URL", "http://localhost:3001")
	v.SetDefault("REDIRECT_AUTH_URL", "http://localhost:8080/callback")
	v.SetDefault("POST_LOGIN_REDIRECT", "/")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("UPLOAD_MAX_FILES", 5)
	v.SetDefault("UPLOAD_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("UPLOAD_ALLOWED_MIME_TYPES", "image/*,application/pdf")
	v.SetDefault("UPLOAD_PROGRESS_TICK", "100ms")
	v.SetDefault("UPLOAD_PROGRESS_STEP", 10)

	v.SetDefault("STORAGE_DRIVER", "local")
	v.SetDefault("STORAGE_DIR", "./uploads")
	v.SetDefault("STORAGE_S3_BUCKET", "")
	v.SetDefault("STORAGE_S3_REGION", "ap-southeast-3")
	v.SetDefault("STORAGE_S3_PREFIX", "documents")
	v.SetDefault("STORAGE_SIGNED_URL_SECRET", "dev_documents_secret")
	v.SetDefault("STORAGE_SIGNED_URL_TTL", "30m")

	v.SetDefault("PROCESSING_STAGE_DELAY", "1500ms")
	v.SetDefault("PROCESSING_WORKERS", 2)
	v.SetDefault("PROCESSING_RETRIES", 1)
	v.SetDefault("SESSION_TTL", "30m")

	v.SetDefault("CLASSIFIER_MODE", "random")
	v.SetDefault("CLASSIFIER_BREAKER_ENABLED", true)
	v.SetDefault("CLASSIFIER_BREAKER_MIN_REQUESTS", 5)
	v.SetDefault("CLASSIFIER_BREAKER_FAILURE_RATIO", 0.5)
	v.SetDefault("CLASSIFIER_BREAKER_OPEN_TIMEOUT", "30s")
	v.SetDefault("CLASSIFIER_RETRY_MAX_ATTEMPTS", 2)

	v.SetDefault("ENABLE_REMINDER_SWEEP", false)
	v.SetDefault("REMINDER_SWEEP_INTERVAL", "1h")

	v.SetDefault("ENABLE_EVENTS", false)
	v.SetDefault("NATS_URL", "nats://localhost:4222")
	v.SetDefault("EVENTS_SUBJECT_PREFIX", "dokumen")
	v.SetDefault("EVENTS_SOURCE", "dokumen-api")

	v.SetDefault("ENABLE_UPLOAD_RATE_LIMIT", false)
	v.SetDefault("UPLOAD_RATE_LIMIT_RPS", 2)
	v.SetDefault("UPLOAD_RATE_LIMIT_BURST", 5)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
