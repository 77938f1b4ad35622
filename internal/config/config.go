// Package config loads the attribute forms service configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no explicit path is given
const DefaultConfigPath = "config/attribute_forms.yaml"

// Config holds all configuration for the service
type Config struct {
	Environment string         `yaml:"environment"`
	Service     ServiceConfig  `yaml:"service"`
	Logging     LoggingConfig  `yaml:"logging"`
	DB          DBConfig       `yaml:"db"`
	Redis       RedisConfig    `yaml:"redis"`
	Mongo       MongoConfig    `yaml:"mongo"`
	Mail        MailConfig     `yaml:"mail"`
	Site        SiteConfig     `yaml:"site"`
	Security    SecurityConfig `yaml:"security"`
	Captcha     CaptchaConfig  `yaml:"captcha"`
	Spam        SpamConfig     `yaml:"spam"`
	Metrics     MetricsConfig  `yaml:"metrics"`
}

// ServiceConfig holds service-specific configuration
type ServiceConfig struct {
	Name           string        `yaml:"name"`
	Host           string        `yaml:"host"`
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DBConfig holds database configuration
type DBConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `yaml:"connMaxIdleTime"`
	RunMigration    bool          `yaml:"runMigration"`
}

// RedisConfig holds redis configuration. An empty Addr disables redis.
type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	EventStream  string `yaml:"eventStream"`
	BannedIPsKey string `yaml:"bannedIPsKey"`
}

// MongoConfig holds the document archive configuration. An empty URI disables it.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// MailConfig holds the outbound mail settings
type MailConfig struct {
	Transport   string `yaml:"transport"` // smtp or log
	SMTPHost    string `yaml:"smtpHost"`
	SMTPPort    int    `yaml:"smtpPort"`
	SMTPUser    string `yaml:"smtpUser"`
	SMTPPass    string `yaml:"smtpPass"`
	FromAddress string `yaml:"fromAddress"`
	FromName    string `yaml:"fromName"`
}

// SiteConfig holds site-wide values used in notifications
type SiteConfig struct {
	Name           string `yaml:"name"`
	SuperUserEmail string `yaml:"superUserEmail"`
}

// SecurityConfig holds request protection settings
type SecurityConfig struct {
	CSRFSecret string        `yaml:"csrfSecret"`
	TokenTTL   time.Duration `yaml:"tokenTTL"`
	BannedIPs  []string      `yaml:"bannedIPs"`
	RateLimit  int           `yaml:"rateLimit"` // submissions per minute per IP, 0 disables
}

// CaptchaConfig holds captcha verification settings
type CaptchaConfig struct {
	VerifyURL string        `yaml:"verifyURL"`
	Secret    string        `yaml:"secret"`
	Timeout   time.Duration `yaml:"timeout"`
}

// SpamConfig holds rule-based spam classifier settings
type SpamConfig struct {
	MaxLinks     int      `yaml:"maxLinks"`
	BlockedWords []string `yaml:"blockedWords"`
}

// MetricsConfig holds metrics exporter settings
type MetricsConfig struct {
	Exporter     string `yaml:"exporter"`
	OTLPEndpoint string `yaml:"otlpEndpoint"`
}

// Default returns the built-in configuration for the given environment
func Default(env string) *Config {
	cfg := &Config{
		Environment: env,
		Service: ServiceConfig{
			Name:         "attribute-forms",
			Host:         "0.0.0.0",
			Port:         "8090",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Logging: LoggingConfig{Level: "debug", Format: "json"},
		DB: DBConfig{
			Host:            "localhost",
			Port:            "5432",
			Username:        "postgres",
			Database:        "attribute_forms",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			EventStream:  "attribute-forms:events",
			BannedIPsKey: "attribute-forms:banned-ips",
		},
		Mongo: MongoConfig{Database: "attribute_forms"},
		Mail:  MailConfig{Transport: "log", SMTPPort: 587},
		Site:  SiteConfig{Name: "Attribute Forms"},
		Security: SecurityConfig{
			CSRFSecret: "local-development-secret",
			TokenTTL:   2 * time.Hour,
			RateLimit:  60,
		},
		Captcha: CaptchaConfig{Timeout: 5 * time.Second},
		Spam:    SpamConfig{MaxLinks: 3},
		Metrics: MetricsConfig{Exporter: "prometheus"},
	}
	if env == "production" {
		cfg.Logging.Level = "warn"
		cfg.DB.SSLMode = "require"
		cfg.Security.CSRFSecret = ""
	}
	return cfg
}

// Load reads the YAML file at path (defaults when missing) and applies environment overrides
func Load(path string) (*Config, error) {
	cfg := Default(GetEnvOrDefault("ENVIRONMENT", "local"))

	if path == "" {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// defaults
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Service.Port = GetEnvOrDefault("PORT", cfg.Service.Port)
	cfg.Service.Host = GetEnvOrDefault("HOST", cfg.Service.Host)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.Service.AllowedOrigins = splitList(origins)
	}
	cfg.Logging.Level = GetEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)

	cfg.DB.Host = GetEnvOrDefault("DB_HOST", cfg.DB.Host)
	cfg.DB.Port = GetEnvOrDefault("DB_PORT", cfg.DB.Port)
	cfg.DB.Username = GetEnvOrDefault("DB_USERNAME", cfg.DB.Username)
	cfg.DB.Password = GetEnvOrDefault("DB_PASSWORD", cfg.DB.Password)
	cfg.DB.Database = GetEnvOrDefault("DB_NAME", cfg.DB.Database)
	cfg.DB.SSLMode = GetEnvOrDefault("DB_SSLMODE", cfg.DB.SSLMode)
	if os.Getenv("RUN_MIGRATION") == "true" {
		cfg.DB.RunMigration = true
	}

	cfg.Redis.Addr = GetEnvOrDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = GetEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Mongo.URI = GetEnvOrDefault("MONGO_URI", cfg.Mongo.URI)

	cfg.Mail.Transport = GetEnvOrDefault("MAIL_TRANSPORT", cfg.Mail.Transport)
	cfg.Mail.SMTPHost = GetEnvOrDefault("SMTP_HOST", cfg.Mail.SMTPHost)
	cfg.Mail.SMTPPort = getEnvIntOrDefault("SMTP_PORT", cfg.Mail.SMTPPort)
	cfg.Mail.SMTPUser = GetEnvOrDefault("SMTP_USER", cfg.Mail.SMTPUser)
	cfg.Mail.SMTPPass = GetEnvOrDefault("SMTP_PASSWORD", cfg.Mail.SMTPPass)
	cfg.Mail.FromAddress = GetEnvOrDefault("MAIL_FROM_ADDRESS", cfg.Mail.FromAddress)
	cfg.Mail.FromName = GetEnvOrDefault("MAIL_FROM_NAME", cfg.Mail.FromName)

	cfg.Site.Name = GetEnvOrDefault("SITE_NAME", cfg.Site.Name)
	cfg.Site.SuperUserEmail = GetEnvOrDefault("SITE_SUPER_USER_EMAIL", cfg.Site.SuperUserEmail)

	cfg.Security.CSRFSecret = GetEnvOrDefault("CSRF_SECRET", cfg.Security.CSRFSecret)
	cfg.Security.RateLimit = getEnvIntOrDefault("RATE_LIMIT", cfg.Security.RateLimit)
	cfg.Captcha.VerifyURL = GetEnvOrDefault("CAPTCHA_VERIFY_URL", cfg.Captcha.VerifyURL)
	cfg.Captcha.Secret = GetEnvOrDefault("CAPTCHA_SECRET", cfg.Captcha.Secret)

	cfg.Metrics.Exporter = GetEnvOrDefault("OTEL_METRICS_EXPORTER", cfg.Metrics.Exporter)
	cfg.Metrics.OTLPEndpoint = GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Metrics.OTLPEndpoint)
}

// Validate checks the values the service cannot start without
func (c *Config) Validate() error {
	if c.Service.Port == "" {
		return errors.New("service port is required")
	}
	if c.Security.CSRFSecret == "" {
		return errors.New("CSRF_SECRET is required")
	}
	if c.Security.TokenTTL <= 0 {
		return errors.New("security token TTL must be positive")
	}
	switch c.Mail.Transport {
	case "log":
	case "smtp":
		if c.Mail.SMTPHost == "" {
			return errors.New("SMTP_HOST is required when mail transport is smtp")
		}
	default:
		return fmt.Errorf("unknown mail transport: %s (supported: smtp, log)", c.Mail.Transport)
	}
	return nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// GetEnvOrDefault returns the environment variable value or a default
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
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
