package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const (
	CaptchaModeDisabled  = "disabled"
	CaptchaModeRecaptcha = "recaptcha"

	StorageDriverDisk = "disk"
	StorageDriverS3   = "s3"
)

const (
	defaultDBDriver     = "sqlite"
	defaultDBConnection = "./data/beatmarket.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	AppURL  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret              string
	JWTExpiry              time.Duration
	TokenEmailVerifyExpiry time.Duration
	BcryptCost             int
	SecureCookies          bool
	TrustProxy             bool // Honor X-Forwarded-For / X-Real-IP; only behind a proxy that sets them

	// Email
	EmailFrom     string
	ResendAPIKey  string
	NotifyTimeout time.Duration

	// Bot check
	CaptchaMode        string // "disabled" or "recaptcha"
	RecaptchaSecret    string
	RecaptchaVerifyURL string
	CaptchaTimeout     time.Duration

	// Observability (optional)
	SentryDSN string

	// Storage ("disk" for local development, "s3" for any S3-compatible service)
	StorageDriver   string
	UploadDir       string
	MaxUploadSize   int64
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3Endpoint      string
	S3PresignExpiry time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "Beatmarket"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:  envRequired("APP_URL"), // Required: base URL for verification links
		Port:    envString("PORT", "3000"),

		// Database
		DBDriver:     envString("DB_DRIVER", defaultDBDriver),
		DBConnection: envString("DB_CONNECTION", defaultDBConnection),

		// Security
		JWTSecret:              envRequired("JWT_SECRET"),
		JWTExpiry:              envDuration("JWT_EXPIRY", 168*time.Hour),              // 7 days
		TokenEmailVerifyExpiry: envDuration("TOKEN_EMAIL_VERIFY_EXPIRY", 24*time.Hour), // 24 hours
		BcryptCost:             envInt("BCRYPT_COST", bcrypt.DefaultCost),
		SecureCookies:          envBool("SECURE_COOKIES", os.Getenv("APP_ENV") == "production"),
		TrustProxy:             envBool("TRUST_PROXY", false),

		// Email (RESEND_API_KEY optional in development, required in production)
		EmailFrom:     envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey:  envString("RESEND_API_KEY", ""),
		NotifyTimeout: envDuration("NOTIFY_TIMEOUT", 5*time.Second),

		// Bot check
		CaptchaMode:        envString("CAPTCHA_MODE", CaptchaModeDisabled),
		RecaptchaSecret:    envString("RECAPTCHA_SECRET", ""),
		RecaptchaVerifyURL: envString("RECAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
		CaptchaTimeout:     envDuration("CAPTCHA_TIMEOUT", 5*time.Second),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Storage
		StorageDriver:   envString("STORAGE_DRIVER", StorageDriverDisk),
		UploadDir:       envString("UPLOAD_DIR", "./data/uploads"),
		MaxUploadSize:   int64(envInt("MAX_UPLOAD_SIZE", 20<<20)), // 20MB
		S3Region:        envString("S3_REGION", ""),
		S3Bucket:        envString("S3_BUCKET", ""),
		S3AccessKey:     envString("S3_ACCESS_KEY", ""),
		S3SecretKey:     envString("S3_SECRET_KEY", ""),
		S3Endpoint:      envString("S3_ENDPOINT", ""),                     // Optional: for non-AWS providers
		S3PresignExpiry: envDuration("S3_PRESIGN_EXPIRY", 24*time.Hour), // Beats are public listings
	}

	if cfg.StorageDriver == StorageDriverS3 {
		cfg.S3Region = envRequired("S3_REGION")
		cfg.S3Bucket = envRequired("S3_BUCKET")
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// LoadDatabase reads only the database settings, for tools that do not need
// the rest of the configuration.
func LoadDatabase() (driver, connection string) {
	_ = godotenv.Load()
	return envString("DB_DRIVER", defaultDBDriver), envString("DB_CONNECTION", defaultDBConnection)
}

// validateProduction ensures all required services are configured for production deployments.
// Development allows email to use log mode for easier local testing.
func validateProduction(cfg *Config) {
	if cfg.ResendAPIKey == "" {
		slog.Error("production deployment requires RESEND_API_KEY",
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
	if cfg.CaptchaMode == CaptchaModeRecaptcha && cfg.RecaptchaSecret == "" {
		slog.Error("CAPTCHA_MODE=recaptcha requires RECAPTCHA_SECRET",
			"hint", "set CAPTCHA_MODE=disabled to turn the bot check off explicitly")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// CaptchaEnabled reports whether registration must pass the bot check.
// Only an explicit "disabled" turns it off; unknown modes keep it on.
func (c *Config) CaptchaEnabled() bool {
	return c.CaptchaMode != CaptchaModeDisabled
}

// Sanitized returns a copy of the config with only public/safe fields.
// All secrets, credentials, and sensitive data are excluded.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName:       c.AppName,
		AppEnv:        c.AppEnv,
		AppURL:        c.AppURL,
		Port:          c.Port,
		EmailFrom:     c.EmailFrom,
		CaptchaMode:   c.CaptchaMode,
		StorageDriver: c.StorageDriver,
		MaxUploadSize: c.MaxUploadSize,
		S3Endpoint:    c.S3Endpoint,
	}
}
