// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pix-subscription/internal/domain/model"
)

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // postgres | sqlite
	URL    string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type BreakerConfig struct {
	MaxRequests  uint32        `yaml:"max_requests"`
	Interval     time.Duration `yaml:"interval"`
	Timeout      time.Duration `yaml:"timeout"`
	FailureRatio float64       `yaml:"failure_ratio"`
	MinRequests  uint32        `yaml:"min_requests"`
}

type GatewayConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Token         string        `yaml:"token"`
	Timeout       time.Duration `yaml:"timeout"`
	WebhookURL    string        `yaml:"webhook_url"`
	WebhookSecret string        `yaml:"webhook_secret"`
	Breaker       BreakerConfig `yaml:"breaker"`
}

type SplitConfig struct {
	MinAmount int64  `yaml:"min_amount"`
	MaxAmount int64  `yaml:"max_amount"`
	Rules     string `yaml:"rules"` // account:percent,account:percent
}

type PaymentConfig struct {
	TTL               time.Duration `yaml:"ttl"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
	ExpiryInterval    time.Duration `yaml:"expiry_interval"`
	ExpiryGrace       time.Duration `yaml:"expiry_grace"`
	BatchSize         int           `yaml:"batch_size"`
}

type PlanConfig struct {
	ID           string `yaml:"id"`
	Price        int64  `yaml:"price"`
	DurationDays int    `yaml:"duration_days"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type TelegramConfig struct {
	Token       string `yaml:"token"`
	AdminChatID int64  `yaml:"admin_chat_id"`
}

type NotifyConfig struct {
	SMTP     SMTPConfig     `yaml:"smtp"`
	AMQP     AMQPConfig     `yaml:"amqp"`
	Telegram TelegramConfig `yaml:"telegram"`
	Workers  int            `yaml:"workers"`
	Queue    int            `yaml:"queue"`
	Timeout  time.Duration  `yaml:"timeout"`
	Language string         `yaml:"language"` // locale of payer-facing texts
}

type SecurityConfig struct {
	CheckTokenSecret string        `yaml:"check_token_secret"`
	CheckTokenTTL    time.Duration `yaml:"check_token_ttl"`
	CheckRateLimit   int           `yaml:"check_rate_limit"` // per transaction per minute
	EncryptionKey    string        `yaml:"encryption_key"`   // 16/24/32 bytes; seals payer tax ids at rest
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Split    SplitConfig    `yaml:"split"`
	Payment  PaymentConfig  `yaml:"payment"`
	Plans    []PlanConfig   `yaml:"plans"`
	Notify   NotifyConfig   `yaml:"notify"`
	Security SecurityConfig `yaml:"security"`
}

// LoadConfig reads the YAML file at path (a missing file is allowed when the environment
// carries everything), applies .env and PIX_* overrides, fills defaults and validates.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// environment-only deployment
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	i64 := func(key string, dst *int64) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", key, v)
		}
		*dst = n
		return nil
	}

	str("PIX_GATEWAY_TOKEN", &cfg.Gateway.Token)
	str("PIX_GATEWAY_BASE_URL", &cfg.Gateway.BaseURL)
	str("PIX_WEBHOOK_URL", &cfg.Gateway.WebhookURL)
	str("PIX_WEBHOOK_SECRET", &cfg.Gateway.WebhookSecret)
	str("PIX_SPLIT_RULES", &cfg.Split.Rules)
	str("PIX_CHECK_TOKEN_SECRET", &cfg.Security.CheckTokenSecret)
	str("DATABASE_DRIVER", &cfg.Database.Driver)
	str("DATABASE_URL", &cfg.Database.URL)
	str("REDIS_URL", &cfg.Redis.URL)
	str("SMTP_PASSWORD", &cfg.Notify.SMTP.Password)
	str("RABBITMQ_URL", &cfg.Notify.AMQP.URL)
	str("TELEGRAM_BOT_TOKEN", &cfg.Notify.Telegram.Token)
	str("PIX_ENCRYPTION_KEY", &cfg.Security.EncryptionKey)
	str("NOTIFY_LANGUAGE", &cfg.Notify.Language)
	str("LOG_LEVEL", &cfg.Log.Level)

	if err := i64("PIX_MIN_AMOUNT", &cfg.Split.MinAmount); err != nil {
		return err
	}
	if err := i64("PIX_MAX_AMOUNT", &cfg.Split.MaxAmount); err != nil {
		return err
	}
	var ttlMinutes int64
	if err := i64("PIX_TTL_MINUTES", &ttlMinutes); err != nil {
		return err
	}
	if ttlMinutes != 0 {
		if ttlMinutes < 0 {
			return fmt.Errorf("PIX_TTL_MINUTES: must be positive, got %d", ttlMinutes)
		}
		cfg.Payment.TTL = time.Duration(ttlMinutes) * time.Minute
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	cfg.HTTP.ReadTimeout = orDefault(cfg.HTTP.ReadTimeout, 10*time.Second)
	cfg.HTTP.WriteTimeout = orDefault(cfg.HTTP.WriteTimeout, 30*time.Second)
	cfg.HTTP.RequestTimeout = orDefault(cfg.HTTP.RequestTimeout, 20*time.Second)
	cfg.HTTP.ShutdownTimeout = orDefault(cfg.HTTP.ShutdownTimeout, 15*time.Second)

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	cfg.Gateway.Timeout = orDefault(cfg.Gateway.Timeout, 10*time.Second)
	if cfg.Gateway.Breaker.MaxRequests == 0 {
		cfg.Gateway.Breaker.MaxRequests = 1
	}
	cfg.Gateway.Breaker.Interval = orDefault(cfg.Gateway.Breaker.Interval, time.Minute)
	cfg.Gateway.Breaker.Timeout = orDefault(cfg.Gateway.Breaker.Timeout, 30*time.Second)
	if cfg.Gateway.Breaker.FailureRatio <= 0 {
		cfg.Gateway.Breaker.FailureRatio = 0.6
	}
	if cfg.Gateway.Breaker.MinRequests == 0 {
		cfg.Gateway.Breaker.MinRequests = 5
	}

	if cfg.Split.MinAmount == 0 {
		cfg.Split.MinAmount = 100
	}
	if cfg.Split.MaxAmount == 0 {
		cfg.Split.MaxAmount = 1_000_000
	}

	cfg.Payment.TTL = orDefault(cfg.Payment.TTL, 15*time.Minute)
	cfg.Payment.PollInterval = orDefault(cfg.Payment.PollInterval, 10*time.Second)
	cfg.Payment.ReconcileInterval = orDefault(cfg.Payment.ReconcileInterval, time.Minute)
	cfg.Payment.StaleAfter = orDefault(cfg.Payment.StaleAfter, 2*time.Minute)
	cfg.Payment.ExpiryInterval = orDefault(cfg.Payment.ExpiryInterval, time.Minute)
	cfg.Payment.ExpiryGrace = orDefault(cfg.Payment.ExpiryGrace, 5*time.Minute)
	if cfg.Payment.BatchSize <= 0 {
		cfg.Payment.BatchSize = 100
	}

	if len(cfg.Plans) == 0 {
		for _, p := range model.DefaultPlans() {
			cfg.Plans = append(cfg.Plans, PlanConfig{ID: p.ID, Price: p.Price, DurationDays: p.DurationDays})
		}
	}

	if cfg.Notify.Workers <= 0 {
		cfg.Notify.Workers = 4
	}
	if cfg.Notify.Queue <= 0 {
		cfg.Notify.Queue = 256
	}
	cfg.Notify.Timeout = orDefault(cfg.Notify.Timeout, 15*time.Second)
	if cfg.Notify.SMTP.Port == 0 {
		cfg.Notify.SMTP.Port = 587
	}
	if cfg.Notify.Language == "" {
		cfg.Notify.Language = "pt-BR"
	}
	if cfg.Notify.AMQP.Exchange == "" {
		cfg.Notify.AMQP.Exchange = "payments"
	}

	cfg.Security.CheckTokenTTL = orDefault(cfg.Security.CheckTokenTTL, time.Hour)
	if cfg.Security.CheckRateLimit <= 0 {
		cfg.Security.CheckRateLimit = 30
	}
}

// Validate fails loudly on anything that would otherwise degrade silently at runtime.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Gateway.Token) == "" {
		errs = append(errs, errors.New("gateway.token is required"))
	}
	if err := requireURL("gateway.base_url", c.Gateway.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if err := requireURL("gateway.webhook_url", c.Gateway.WebhookURL); err != nil {
		errs = append(errs, err)
	}
	if c.Split.MinAmount <= 0 || c.Split.MinAmount >= c.Split.MaxAmount {
		errs = append(errs, fmt.Errorf("split: min_amount %d must be positive and below max_amount %d", c.Split.MinAmount, c.Split.MaxAmount))
	}
	if _, err := c.SplitCalculator(); err != nil {
		errs = append(errs, fmt.Errorf("split.rules: %w", err))
	}
	if _, err := c.PlanCatalog(); err != nil {
		errs = append(errs, fmt.Errorf("plans: %w", err))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want postgres or sqlite", c.Database.Driver))
	}
	switch len(c.Security.EncryptionKey) {
	case 0, 16, 24, 32:
	default:
		errs = append(errs, fmt.Errorf("security.encryption_key: must be 16, 24 or 32 bytes, got %d", len(c.Security.EncryptionKey)))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	return errors.Join(errs...)
}

// Warnings lists settings that are valid but leave the service exposed.
// They are logged at startup.
func (c *Config) Warnings() []string {
	var out []string
	if strings.TrimSpace(c.Gateway.WebhookSecret) == "" {
		out = append(out, "gateway.webhook_secret is empty: "+c.WebhookPath()+" accepts unauthenticated status reports")
	}
	return out
}

// SplitCalculator builds the calculator from the split section.
func (c *Config) SplitCalculator() (*model.SplitCalculator, error) {
	rules, err := model.ParseSplitRules(c.Split.Rules)
	if err != nil {
		return nil, err
	}
	return model.NewSplitCalculator(rules, c.Split.MinAmount, c.Split.MaxAmount)
}

func (c *Config) PlanCatalog() (*model.PlanCatalog, error) {
	plans := make([]model.Plan, 0, len(c.Plans))
	for _, p := range c.Plans {
		plans = append(plans, model.Plan{ID: p.ID, Price: p.Price, DurationDays: p.DurationDays})
	}
	return model.NewPlanCatalog(plans)
}

// WebhookPath is the path component of the callback URL registered with the gateway.
func (c *Config) WebhookPath() string {
	u, err := url.Parse(c.Gateway.WebhookURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "/api/v1/webhooks/pix"
	}
	return u.Path
}

func requireURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s: %q is not an absolute URL", field, raw)
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
