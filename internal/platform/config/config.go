package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EmailProviderNoop     = "noop"
	EmailProviderSMTP     = "smtp"
	EmailProviderSendGrid = "sendgrid"

	LLMProviderOpenAI    = "openai"
	LLMProviderAnthropic = "anthropic"
)

type Config struct {
	Addr              string `yaml:"addr"`
	DatabaseURL       string `yaml:"database_url"`
	JWTSecret         string `yaml:"jwt_secret"`
	DataEncryptionKey string `yaml:"data_encryption_key"`
	FrontendDir       string `yaml:"frontend_dir"`
	Environment       string `yaml:"environment"`
	LogLevel          string `yaml:"log_level"`
	AppName           string `yaml:"app_name"`
	AppURL            string `yaml:"app_url"`

	SeedAdminEmail    string `yaml:"seed_admin_email"`
	SeedAdminPassword string `yaml:"seed_admin_password"`
	SeedAdminName     string `yaml:"seed_admin_name"`
	SeedCompanyName   string `yaml:"seed_company_name"`

	EmailProvider  string `yaml:"email_provider"`
	EmailFrom      string `yaml:"email_from"`
	EmailFromName  string `yaml:"email_from_name"`
	SMTPHost       string `yaml:"smtp_host"`
	SMTPPort       int    `yaml:"smtp_port"`
	SMTPUser       string `yaml:"smtp_user"`
	SMTPPassword   string `yaml:"smtp_password"`
	SMTPUseTLS     bool   `yaml:"smtp_use_tls"`
	SendGridAPIKey string `yaml:"sendgrid_api_key"`

	LLMProvider string        `yaml:"llm_provider"`
	LLMAPIKey   string        `yaml:"llm_api_key"`
	LLMModel    string        `yaml:"llm_model"`
	LLMBaseURL  string        `yaml:"llm_base_url"`
	LLMTimeout  time.Duration `yaml:"llm_timeout"`

	StripeSecretKey     string `yaml:"stripe_secret_key"`
	StripeWebhookSecret string `yaml:"stripe_webhook_secret"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	RunMigrations      bool   `yaml:"run_migrations"`
	RunSeed            bool   `yaml:"run_seed"`
	MigrationsDir      string `yaml:"migrations_dir"`
	MaxBodyBytes       int64  `yaml:"max_body_bytes"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	MetricsEnabled     bool   `yaml:"metrics_enabled"`

	ReviewSweepSchedule string        `yaml:"review_sweep_schedule"`
	StaleReviewAfter    time.Duration `yaml:"stale_review_after"`
	CleanupSchedule     string        `yaml:"cleanup_schedule"`
}

func defaults() Config {
	return Config{
		Addr:                ":8080",
		FrontendDir:         "frontend/dist",
		Environment:         "development",
		LogLevel:            "info",
		AppName:             "Appraze",
		AppURL:              "https://appraze.io",
		SeedAdminName:       "Appraze Admin",
		SeedCompanyName:     "Appraze",
		EmailProvider:       EmailProviderNoop,
		EmailFrom:           "hello@appraze.io",
		EmailFromName:       "Appraze",
		SMTPPort:            587,
		SMTPUseTLS:          true,
		LLMProvider:         LLMProviderOpenAI,
		LLMModel:            "gpt-4o",
		RunMigrations:       true,
		RunSeed:             true,
		MigrationsDir:       "migrations",
		MaxBodyBytes:        1048576,
		RateLimitPerMinute:  60,
		MetricsEnabled:      true,
		ReviewSweepSchedule: "@every 5m",
		StaleReviewAfter:    15 * time.Minute,
		CleanupSchedule:     "@daily",
	}
}

// Load reads defaults, then the optional YAML file named by APP_CONFIG_FILE,
// then environment variables. Later sources win.
func Load() Config {
	base := defaults()
	if path := os.Getenv("APP_CONFIG_FILE"); path != "" {
		if err := applyFile(&base, path); err != nil {
			slog.Warn("config file ignored", "path", path, "err", err)
		}
	}
	return fromEnv(base)
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, cfg)
}

func fromEnv(base Config) Config {
	return Config{
		Addr:              getEnv("APP_ADDR", base.Addr),
		DatabaseURL:       getEnv("DATABASE_URL", base.DatabaseURL),
		JWTSecret:         getEnv("JWT_SECRET", base.JWTSecret),
		DataEncryptionKey: getEnv("DATA_ENCRYPTION_KEY", base.DataEncryptionKey),
		FrontendDir:       getEnv("FRONTEND_DIR", base.FrontendDir),
		Environment:       getEnv("APP_ENV", base.Environment),
		LogLevel:          getEnv("LOG_LEVEL", base.LogLevel),
		AppName:           getEnv("APP_NAME", base.AppName),
		AppURL:            strings.TrimRight(getEnv("APP_URL", base.AppURL), "/"),

		SeedAdminEmail:    getEnv("SEED_ADMIN_EMAIL", base.SeedAdminEmail),
		SeedAdminPassword: getEnv("SEED_ADMIN_PASSWORD", base.SeedAdminPassword),
		SeedAdminName:     getEnv("SEED_ADMIN_NAME", base.SeedAdminName),
		SeedCompanyName:   getEnv("SEED_COMPANY_NAME", base.SeedCompanyName),

		EmailProvider:  strings.ToLower(getEnv("EMAIL_PROVIDER", base.EmailProvider)),
		EmailFrom:      getEnv("EMAIL_FROM", base.EmailFrom),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", base.EmailFromName),
		SMTPHost:       getEnv("SMTP_HOST", base.SMTPHost),
		SMTPPort:       getEnvInt("SMTP_PORT", base.SMTPPort),
		SMTPUser:       getEnv("SMTP_USER", base.SMTPUser),
		SMTPPassword:   getEnv("SMTP_PASSWORD", base.SMTPPassword),
		SMTPUseTLS:     getEnvBool("SMTP_USE_TLS", base.SMTPUseTLS),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", base.SendGridAPIKey),

		LLMProvider: strings.ToLower(getEnv("LLM_PROVIDER", base.LLMProvider)),
		LLMAPIKey:   getEnv("LLM_API_KEY", getEnv("OPENAI_API_KEY", base.LLMAPIKey)),
		LLMModel:    getEnv("LLM_MODEL", base.LLMModel),
		LLMBaseURL:  getEnv("LLM_BASE_URL", base.LLMBaseURL),
		LLMTimeout:  getEnvDuration("LLM_TIMEOUT", base.LLMTimeout),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", base.StripeSecretKey),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", base.StripeWebhookSecret),

		RedisAddr:     getEnv("REDIS_ADDR", base.RedisAddr),
		RedisPassword: getEnv("REDIS_PASSWORD", base.RedisPassword),
		RedisDB:       getEnvInt("REDIS_DB", base.RedisDB),

		RunMigrations:      getEnvBool("RUN_MIGRATIONS", base.RunMigrations),
		RunSeed:            getEnvBool("RUN_SEED", base.RunSeed),
		MigrationsDir:      getEnv("MIGRATIONS_DIR", base.MigrationsDir),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", int(base.MaxBodyBytes))),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", base.RateLimitPerMinute),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", base.MetricsEnabled),

		ReviewSweepSchedule: getEnv("REVIEW_SWEEP_SCHEDULE", base.ReviewSweepSchedule),
		StaleReviewAfter:    getEnvDuration("STALE_REVIEW_AFTER", base.StaleReviewAfter),
		CleanupSchedule:     getEnv("CLEANUP_SCHEDULE", base.CleanupSchedule),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
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

func getEnvInt(key string, fallback int) int {
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// QueueEnabled reports whether email delivery goes through the Redis outbox.
func (c Config) QueueEnabled() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProduction() {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if strings.TrimSpace(c.DataEncryptionKey) == "" {
			return fmt.Errorf("DATA_ENCRYPTION_KEY must be set in production for encryption at rest")
		}
		if c.RunSeed && c.SeedAdminEmail != "" && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be set or RUN_SEED disabled in production")
		}
		if strings.TrimSpace(c.StripeSecretKey) != "" && strings.TrimSpace(c.StripeWebhookSecret) == "" {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET must be set when STRIPE_SECRET_KEY is configured")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	switch c.EmailProvider {
	case EmailProviderNoop:
	case EmailProviderSMTP:
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST must be set when EMAIL_PROVIDER is smtp")
		}
	case EmailProviderSendGrid:
		if c.SendGridAPIKey == "" {
			return fmt.Errorf("SENDGRID_API_KEY must be set when EMAIL_PROVIDER is sendgrid")
		}
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be one of noop, smtp, sendgrid")
	}
	switch c.LLMProvider {
	case LLMProviderOpenAI, LLMProviderAnthropic:
	default:
		return fmt.Errorf("LLM_PROVIDER must be openai or anthropic")
	}
	if c.StaleReviewAfter <= 0 {
		return fmt.Errorf("STALE_REVIEW_AFTER must be positive")
	}
	return nil
}
