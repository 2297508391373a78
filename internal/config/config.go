package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultAllowedMIMETypes = "image/png,image/jpeg,image/gif,application/pdf,text/plain"

type Config struct {
	AppEnv             string
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	RequestTimeout     time.Duration
	TransferTimeout    time.Duration
	TransferIdle       time.Duration
	DatabaseURL        string
	DBMaxConns         int32
	DBMinConns         int32
	JWTSecret          string
	JWTRefreshSecret   string
	JWTAccessTTL       time.Duration
	JWTRefreshTTL      time.Duration
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	OAuthTimeout       time.Duration
	FrontendURL        string
	CORSOrigins        []string
	SMTPHost           string
	SMTPPort           int
	EmailUser          string
	EmailPass          string
	MailFromName       string
	MailTimeout        time.Duration
	OTPTTL             time.Duration
	OTPMaxAttempts     int
	OTPLockoutWindow   time.Duration
	RedisAddr          string
	RedisPassword      string
	RateLimitRPM       int
	AuthRateLimitRPM   int
	UploadsDir         string
	MaxUploadSize      int64
	AllowedMIMETypes   []string
	LogLevel           string
	LogFormat          string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		ServerPort:         getEnv("SERVER_PORT", "5000"),
		ServerReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		TransferTimeout:    getDuration("TRANSFER_TIMEOUT", 10*time.Minute),
		TransferIdle:       getDuration("TRANSFER_IDLE_TIMEOUT", time.Minute),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:         int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:         int32(getInt("DB_MIN_CONNS", 2)),
		JWTSecret:          strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTRefreshSecret:   strings.TrimSpace(os.Getenv("JWT_REFRESH_SECRET")),
		JWTAccessTTL:       getDuration("JWT_ACCESS_TTL", 15*time.Minute),
		JWTRefreshTTL:      getDuration("JWT_REFRESH_TTL", 168*time.Hour),
		GoogleClientID:     strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		GoogleClientSecret: strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET")),
		GoogleCallbackURL:  getEnv("GOOGLE_CALLBACK_URL", "http://localhost:5000/api/auth/google/callback"),
		OAuthTimeout:       getDuration("OAUTH_TIMEOUT", 10*time.Second),
		FrontendURL:        strings.TrimRight(getEnv("FRONT_END_URL", "http://localhost:5173"), "/"),
		CORSOrigins:        splitCSV(os.Getenv("CORS_ORIGINS")),
		SMTPHost:           strings.TrimSpace(os.Getenv("SMTP_HOST")),
		SMTPPort:           getInt("SMTP_PORT", 587),
		EmailUser:          strings.TrimSpace(os.Getenv("EMAIL_USER")),
		EmailPass:          os.Getenv("EMAIL_PASS"),
		MailFromName:       getEnv("MAIL_FROM_NAME", "HelixDesk Security"),
		MailTimeout:        getDuration("MAIL_TIMEOUT", 10*time.Second),
		OTPTTL:             getDuration("OTP_TTL", 10*time.Minute),
		OTPMaxAttempts:     getInt("OTP_MAX_ATTEMPTS", 5),
		OTPLockoutWindow:   getDuration("OTP_LOCKOUT_WINDOW", 15*time.Minute),
		RedisAddr:          strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:   getInt("AUTH_RATE_LIMIT_RPM", 20),
		UploadsDir:         getEnv("UPLOADS_DIR", "./uploads"),
		MaxUploadSize:      getInt64("MAX_UPLOAD_SIZE", 10<<20),
		AllowedMIMETypes:   splitCSV(getEnv("ALLOWED_MIME_TYPES", defaultAllowedMIMETypes)),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", ""),
	}

	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{cfg.FrontendURL}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// MailEnabled reports whether outbound SMTP is configured. Without it OTP
// codes are written to the log, which is only allowed in development.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.JWTRefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	if c.JWTSecret == c.JWTRefreshSecret {
		return fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}

	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL and JWT_REFRESH_TTL must be positive")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.TransferTimeout <= 0 || c.TransferIdle <= 0 {
		return fmt.Errorf("TRANSFER_TIMEOUT and TRANSFER_IDLE_TIMEOUT must be positive")
	}

	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS")
	}

	if _, err := url.ParseRequestURI(c.FrontendURL); err != nil {
		return fmt.Errorf("FRONT_END_URL is invalid: %w", err)
	}

	if c.OTPTTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive")
	}

	if c.OTPMaxAttempts <= 0 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be positive")
	}

	if c.OTPLockoutWindow <= 0 {
		return fmt.Errorf("OTP_LOCKOUT_WINDOW must be positive")
	}

	if c.MailTimeout <= 0 || c.OAuthTimeout <= 0 {
		return fmt.Errorf("MAIL_TIMEOUT and OAUTH_TIMEOUT must be positive")
	}

	if c.MailEnabled() && c.EmailUser == "" {
		return fmt.Errorf("EMAIL_USER is required when SMTP_HOST is set")
	}

	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}

	if strings.TrimSpace(c.UploadsDir) == "" {
		return fmt.Errorf("UPLOADS_DIR cannot be empty")
	}

	if !c.IsDevelopment() {
		if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
			return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required outside development")
		}

		if !c.MailEnabled() {
			return fmt.Errorf("SMTP_HOST is required outside development")
		}
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getInt64(key string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
