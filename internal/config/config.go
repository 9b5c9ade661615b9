package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/billing-xendit/internal/payment"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	PublicBaseURL      string `validate:"omitempty,url"`
	CallbackBaseURL    string `validate:"required,url"`
	CORSAllowedOrigins []string
	MigrateOnStart     bool

	Xendit XenditConfig

	WebhookMaxBodyBytes   int64 `validate:"gt=0"`
	WebhookRateLimit      string
	WebhookReplayTTL      time.Duration
	SettlementLockEnabled bool
	SettlementLockTTL     time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	Obs ObsConfig
}

// XenditConfig is the raw gateway configuration; credentials are resolved later
// by payment.ResolveCredentials.
type XenditConfig struct {
	APIKey              string
	SandboxAPIKey       string
	WebhookToken        string
	SandboxWebhookToken string
	UseSandbox          bool
	EnableLogging       bool
	BaseURL             string `validate:"required,url"`
	GatewayID           string `validate:"required"`
	RequestTimeout      time.Duration
	MaxItemTitles       int `validate:"gt=0"`
	BreakerThreshold    int
	BreakerCooldown     time.Duration
}

// ObsConfig carries logging, metrics and tracing knobs.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	EnablePrometheus bool
	MetricsNamespace string
	MetricsBuckets   string
	EnableTracing    bool
	OTLPEndpoint     string
	SamplingRatio    float64
	ServiceName      string
}

var validate = validator.New()

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	port := valueOrDefault(k.String("PORT"), "8080")
	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               port,
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		PublicBaseURL:      strings.TrimRight(strings.TrimSpace(k.String("PUBLIC_BASE_URL")), "/"),
		CallbackBaseURL:    strings.TrimRight(valueOrDefault(k.String("CALLBACK_BASE_URL"), "http://localhost:"+strings.TrimPrefix(port, ":")), "/"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		MigrateOnStart:     parseBoolDefault(k.String("MIGRATE_ON_START"), true),
		Xendit: XenditConfig{
			APIKey:              k.String("XENDIT_API_KEY"),
			SandboxAPIKey:       k.String("XENDIT_SANDBOX_API_KEY"),
			WebhookToken:        k.String("XENDIT_WEBHOOK_TOKEN"),
			SandboxWebhookToken: k.String("XENDIT_SANDBOX_WEBHOOK_TOKEN"),
			UseSandbox:          parseBool(k.String("XENDIT_USE_SANDBOX")),
			EnableLogging:       parseBool(k.String("XENDIT_ENABLE_LOGGING")),
			BaseURL:             valueOrDefault(k.String("XENDIT_BASE_URL"), payment.DefaultBaseURL),
			GatewayID:           strings.TrimSpace(valueOrDefault(k.String("XENDIT_GATEWAY_ID"), "10")),
			RequestTimeout:      parseDuration(k.String("XENDIT_REQUEST_TIMEOUT"), "15s"),
			MaxItemTitles:       parseInt(k.String("XENDIT_MAX_ITEM_TITLES"), 10),
			BreakerThreshold:    parseInt(k.String("XENDIT_BREAKER_THRESHOLD"), 5),
			BreakerCooldown:     parseDuration(k.String("XENDIT_BREAKER_COOLDOWN"), "30s"),
		},
		WebhookMaxBodyBytes:   int64(parseInt(k.String("WEBHOOK_MAX_BODY_BYTES"), 1<<20)),
		WebhookRateLimit:      valueOrDefault(k.String("WEBHOOK_RATE_LIMIT"), "300-M"),
		WebhookReplayTTL:      parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "0s"),
		SettlementLockEnabled: parseBool(k.String("SETTLEMENT_LOCK_ENABLED")),
		SettlementLockTTL:     parseDuration(k.String("SETTLEMENT_LOCK_TTL"), "30s"),
		KafkaBrokers:          splitAndTrim(k.String("KAFKA_BROKERS")),
		KafkaTopic:            valueOrDefault(k.String("KAFKA_TOPIC"), "billing.payments"),
		Obs: ObsConfig{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			EnablePrometheus: parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "billing"),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS"),
			EnableTracing:    parseBool(k.String("OBS_ENABLE_TRACING")),
			OTLPEndpoint:     k.String("OBS_OTLP_ENDPOINT"),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 0.1),
			ServiceName:      valueOrDefault(k.String("OBS_SERVICE_NAME"), "billing-xendit"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// GatewaySettings maps the Xendit environment onto the adapter's setting keys.
func (c *Config) GatewaySettings() payment.Settings {
	return payment.Settings{
		Values: map[string]string{
			payment.KeyAPIKey:                    c.Xendit.APIKey,
			"sandbox_" + payment.KeyAPIKey:       c.Xendit.SandboxAPIKey,
			payment.KeyWebhookToken:              c.Xendit.WebhookToken,
			"sandbox_" + payment.KeyWebhookToken: c.Xendit.SandboxWebhookToken,
		},
		UseSandbox:    c.Xendit.UseSandbox,
		EnableLogging: c.Xendit.EnableLogging,
	}
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
