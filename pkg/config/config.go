package config

import (
	"errors"
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

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Unlock       UnlockConfig
	Catalog      CatalogConfig
	Email        EmailConfig
	Verification VerificationConfig
	Certificates CertificatesConfig
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
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// UnlockConfig governs the program unlock scheduler.
type UnlockConfig struct {
	CronSecret   string
	CronEnabled  bool
	CronSchedule string
}

// CatalogConfig tunes caching of the public program catalog.
type CatalogConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// EmailConfig controls outbound notification email.
type EmailConfig struct {
	Enabled           bool
	SendgridAPIKey    string
	FromAddress       string
	FromName          string
	WorkerConcurrency int
	WorkerRetries     int
}

// VerificationConfig controls identity verification document access.
type VerificationConfig struct {
	Enabled         bool
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

// CertificatesConfig gates completion certificate rendering.
type CertificatesConfig struct {
	Enabled bool
	Issuer  string
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

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
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Unlock = UnlockConfig{
		CronSecret:   v.GetString("UNLOCK_CRON_SECRET"),
		CronEnabled:  v.GetBool("UNLOCK_CRON_ENABLED"),
		CronSchedule: v.GetString("UNLOCK_CRON_SCHEDULE"),
	}

	cfg.Catalog = CatalogConfig{
		CacheEnabled: v.GetBool("CATALOG_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("CATALOG_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Email = EmailConfig{
		Enabled:           v.GetBool("EMAIL_ENABLED"),
		SendgridAPIKey:    v.GetString("SENDGRID_API_KEY"),
		FromAddress:       v.GetString("EMAIL_FROM_ADDRESS"),
		FromName:          v.GetString("EMAIL_FROM_NAME"),
		WorkerConcurrency: v.GetInt("EMAIL_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EMAIL_WORKER_RETRIES"),
	}

	cfg.Verification = VerificationConfig{
		Enabled:         v.GetBool("ENABLE_VERIFICATION"),
		SignedURLSecret: v.GetString("VERIFICATION_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("VERIFICATION_SIGNED_URL_TTL"), 15*time.Minute),
	}

	cfg.Certificates = CertificatesConfig{
		Enabled: v.GetBool("ENABLE_CERTIFICATES"),
		Issuer:  v.GetString("CERTIFICATE_ISSUER"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "edukita_lms")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("UNLOCK_CRON_SECRET", "")
	v.SetDefault("UNLOCK_CRON_ENABLED", false)
	v.SetDefault("UNLOCK_CRON_SCHEDULE", "0 6 * * *")

	v.SetDefault("CATALOG_CACHE_ENABLED", false)
	v.SetDefault("CATALOG_CACHE_TTL", "10m")

	v.SetDefault("EMAIL_ENABLED", false)
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("EMAIL_FROM_ADDRESS", "no-reply@edukita.io")
	v.SetDefault("EMAIL_FROM_NAME", "Edukita LMS")
	v.SetDefault("EMAIL_WORKER_CONCURRENCY", 1)
	v.SetDefault("EMAIL_WORKER_RETRIES", 3)

	v.SetDefault("ENABLE_VERIFICATION", false)
	v.SetDefault("VERIFICATION_SIGNED_URL_SECRET", "dev_verification_secret")
	v.SetDefault("VERIFICATION_SIGNED_URL_TTL", "15m")

	v.SetDefault("ENABLE_CERTIFICATES", false)
	v.SetDefault("CERTIFICATE_ISSUER", "Edukita Academy")
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
