package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Store      StoreConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Server     ServerConfig
	Log        LogConfig
	Audit      AuditConfig
	Anomaly    AnomalyConfig
	Alert      AlertConfig
	SMTP       SMTPConfig
	SMS        SMSConfig
	Slack      SlackConfig
	SelfHosted bool
}

// StoreConfig selects the persistence backend: "postgres" or "memory".
// SeedAdminEmail names the Admin created at startup by the memory store,
// which has no other way to get a first user.
type StoreConfig struct {
	Driver         string
	Migrate        bool
	SeedAdminEmail string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds JWT authentication settings.
type JWTConfig struct {
	Secret    string //nolint:gosec // G117: JWT signing secret config
	AccessTTL time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	RateLimit    float64
	RateBurst    int
}

type LogConfig struct {
	Level  string
	Format string
}

// AuditConfig tunes activity recording.
type AuditConfig struct {
	DedupWindow time.Duration
	HookTimeout time.Duration
}

// AnomalyConfig tunes the periodic activity sweep.
type AnomalyConfig struct {
	Window    time.Duration
	Threshold int
	Interval  time.Duration
}

// AlertConfig tunes notification dispatch. A zero DelayCheckInterval leaves
// delay checks to the HTTP trigger.
type AlertConfig struct {
	DedupWindow        time.Duration
	DelayCheckInterval time.Duration
	Workers            int
	Rate               float64
	RateBurst          int
}

// SMTPConfig holds outgoing mail settings. An empty Host disables email.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string //nolint:gosec // G117: SMTP credentials config
	From     string
	FromName string
}

// SMSConfig holds Twilio-compatible SMS settings. An empty AccountSID
// disables SMS.
type SMSConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string //nolint:gosec // G117: SMS credentials config
	From       string
	Timeout    time.Duration
}

// SlackConfig holds the bot token used for direct-message notifications.
// An empty BotToken disables Slack.
type SlackConfig struct {
	BotToken string //nolint:gosec // G117: Slack bot token config
}

// LoadEnvFile loads variables from a .env file without overriding the ones
// already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("path", path).Msg("config: no env file")
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config.LoadEnvFile: %w", err)
	}
	return nil
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		Store: StoreConfig{
			Driver:  getEnv("ORKESTRA_STORE", "postgres"),
			Migrate: p.bool("ORKESTRA_DB_MIGRATE", false),

			SeedAdminEmail: getEnv("ORKESTRA_SEED_ADMIN_EMAIL", "admin@orkestra.local"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("ORKESTRA_DB_HOST", "localhost"),
			Port:     p.int("ORKESTRA_DB_PORT", 5432),
			User:     getEnv("ORKESTRA_DB_USER", "orkestra"),
			Password: getEnv("ORKESTRA_DB_PASSWORD", ""),
			DBName:   getEnv("ORKESTRA_DB_NAME", "orkestra_dev"),
			SSLMode:  getEnv("ORKESTRA_DB_SSLMODE", "disable"),
			MaxConns: p.int("ORKESTRA_DB_MAX_CONNS", 25),
		},
		Redis: RedisConfig{
			Addr:     getEnv("ORKESTRA_REDIS_ADDR", ""),
			Password: getEnv("ORKESTRA_REDIS_PASSWORD", ""),
			DB:       p.int("ORKESTRA_REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:    getEnv("ORKESTRA_JWT_SECRET", ""),
			AccessTTL: p.duration("ORKESTRA_JWT_ACCESS_TTL", 24*time.Hour),
		},
		Server: ServerConfig{
			Addr:         getEnv("ORKESTRA_SERVER_ADDR", ":8080"),
			ReadTimeout:  p.duration("ORKESTRA_SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: p.duration("ORKESTRA_SERVER_WRITE_TIMEOUT", 30*time.Second),
			CORSOrigins:  getEnvList("ORKESTRA_CORS_ORIGINS", []string{"http://localhost:3000"}),
			RateLimit:    p.float("ORKESTRA_RATE_LIMIT", 20),
			RateBurst:    p.int("ORKESTRA_RATE_BURST", 40),
		},
		Log: LogConfig{
			Level:  getEnv("ORKESTRA_LOG_LEVEL", "info"),
			Format: getEnv("ORKESTRA_LOG_FORMAT", "json"),
		},
		Audit: AuditConfig{
			DedupWindow: p.duration("ORKESTRA_AUDIT_DEDUP_WINDOW", 5*time.Second),
			HookTimeout: p.duration("ORKESTRA_AUDIT_HOOK_TIMEOUT", 10*time.Second),
		},
		Anomaly: AnomalyConfig{
			Window:    p.duration("ORKESTRA_ANOMALY_WINDOW", time.Hour),
			Threshold: p.int("ORKESTRA_ANOMALY_THRESHOLD", 5),
			Interval:  p.duration("ORKESTRA_ANOMALY_INTERVAL", 15*time.Minute),
		},
		Alert: AlertConfig{
			DedupWindow:        p.duration("ORKESTRA_ALERT_DEDUP_WINDOW", 24*time.Hour),
			DelayCheckInterval: p.duration("ORKESTRA_DELAY_CHECK_INTERVAL", 0),
			Workers:            p.int("ORKESTRA_DISPATCH_WORKERS", 8),
			Rate:               p.float("ORKESTRA_DISPATCH_RATE", 10),
			RateBurst:          p.int("ORKESTRA_DISPATCH_BURST", 10),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("ORKESTRA_SMTP_HOST", ""),
			Port:     p.int("ORKESTRA_SMTP_PORT", 587),
			Username: getEnv("ORKESTRA_SMTP_USERNAME", ""),
			Password: getEnv("ORKESTRA_SMTP_PASSWORD", ""),
			From:     getEnv("ORKESTRA_SMTP_FROM", "no-reply@orkestra.local"),
			FromName: getEnv("ORKESTRA_SMTP_FROM_NAME", "Orkestra"),
		},
		SMS: SMSConfig{
			BaseURL:    getEnv("ORKESTRA_SMS_BASE_URL", "https://api.twilio.com"),
			AccountSID: getEnv("ORKESTRA_SMS_ACCOUNT_SID", ""),
			AuthToken:  getEnv("ORKESTRA_SMS_AUTH_TOKEN", ""),
			From:       getEnv("ORKESTRA_SMS_FROM", ""),
			Timeout:    p.duration("ORKESTRA_SMS_TIMEOUT", 10*time.Second),
		},
		Slack: SlackConfig{
			BotToken: getEnv("ORKESTRA_SLACK_BOT_TOKEN", ""),
		},
		SelfHosted: p.bool("ORKESTRA_SELF_HOSTED", false),
	}

	if p.err != nil {
		return nil, fmt.Errorf("config.Load: %w", p.err)
	}

	err := cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("ORKESTRA_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("ORKESTRA_JWT_SECRET must be at least 32 characters")
	}

	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("ORKESTRA_STORE must be postgres or memory, got %q", c.Store.Driver)
	}

	if c.Store.Driver == "postgres" && c.Database.SSLMode == "disable" && !c.SelfHosted {
		log.Warn().Msg("ORKESTRA_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("ORKESTRA_LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("ORKESTRA_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("ORKESTRA_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("ORKESTRA_JWT_ACCESS_TTL must be positive, got %s", c.JWT.AccessTTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("ORKESTRA_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("ORKESTRA_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Audit.DedupWindow < 0 {
		return fmt.Errorf("ORKESTRA_AUDIT_DEDUP_WINDOW must not be negative, got %s", c.Audit.DedupWindow)
	}
	if c.Audit.HookTimeout <= 0 {
		return fmt.Errorf("ORKESTRA_AUDIT_HOOK_TIMEOUT must be positive, got %s", c.Audit.HookTimeout)
	}
	if c.Anomaly.Window <= 0 {
		return fmt.Errorf("ORKESTRA_ANOMALY_WINDOW must be positive, got %s", c.Anomaly.Window)
	}
	if c.Anomaly.Threshold < 0 {
		return fmt.Errorf("ORKESTRA_ANOMALY_THRESHOLD must be >= 0, got %d", c.Anomaly.Threshold)
	}
	if c.Anomaly.Interval <= 0 {
		return fmt.Errorf("ORKESTRA_ANOMALY_INTERVAL must be positive, got %s", c.Anomaly.Interval)
	}
	if c.Alert.DedupWindow < 0 {
		return fmt.Errorf("ORKESTRA_ALERT_DEDUP_WINDOW must not be negative, got %s", c.Alert.DedupWindow)
	}
	if c.Alert.DelayCheckInterval < 0 {
		return fmt.Errorf("ORKESTRA_DELAY_CHECK_INTERVAL must not be negative, got %s", c.Alert.DelayCheckInterval)
	}
	if c.Alert.Workers < 1 {
		return fmt.Errorf("ORKESTRA_DISPATCH_WORKERS must be >= 1, got %d", c.Alert.Workers)
	}
	if c.SMTP.Host != "" && (c.SMTP.Port < 1 || c.SMTP.Port > 65535) {
		return fmt.Errorf("ORKESTRA_SMTP_PORT must be 1-65535, got %d", c.SMTP.Port)
	}
	if c.SMS.AccountSID != "" && (c.SMS.AuthToken == "" || c.SMS.From == "") {
		return errors.New("ORKESTRA_SMS_AUTH_TOKEN and ORKESTRA_SMS_FROM are required with ORKESTRA_SMS_ACCOUNT_SID")
	}
	if c.Slack.BotToken != "" && !strings.HasPrefix(c.Slack.BotToken, "xoxb-") {
		return errors.New("ORKESTRA_SLACK_BOT_TOKEN must be a bot token (xoxb-...)")
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// parser keeps the first conversion error so Load can read every variable
// in one pass.
type parser struct {
	err error
}

func (p *parser) int(key string, fallback int) int {
	n, err := getEnvInt(key, fallback)
	p.keep(err)
	return n
}

func (p *parser) float(key string, fallback float64) float64 {
	f, err := getEnvFloat(key, fallback)
	p.keep(err)
	return f
}

func (p *parser) bool(key string, fallback bool) bool {
	b, err := getEnvBool(key, fallback)
	p.keep(err)
	return b
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	d, err := getEnvDuration(key, fallback)
	p.keep(err)
	return d
}

func (p *parser) keep(err error) {
	if p.err == nil {
		p.err = err
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
