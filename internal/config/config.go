package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "CONNECTOR_"

type Config struct {
	Primary   Primary         `koanf:"primary"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Gateways  GatewaysConfig  `koanf:"gateways"`
	Retry     RetryConfig     `koanf:"retry"`
	Executor  ExecutorConfig  `koanf:"executor"`
	Capture   CaptureConfig   `koanf:"capture"`
	Expiry    ExpiryConfig    `koanf:"expiry"`
	Redis     RedisConfig     `koanf:"redis"`
	Kafka     KafkaConfig     `koanf:"kafka"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Logger    LoggerConfig    `koanf:"logger"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
	// MaxNotificationBytes caps notification request bodies.
	MaxNotificationBytes int64 `koanf:"max_notification_bytes"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

// GatewayEndpoint is where the transport reaches one gateway.
type GatewayEndpoint struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type GatewaysConfig struct {
	Sandbox  GatewayEndpoint `koanf:"sandbox"`
	Worldpay GatewayEndpoint `koanf:"worldpay"`
	Smartpay GatewayEndpoint `koanf:"smartpay"`
	Epdq     GatewayEndpoint `koanf:"epdq"`
}

// Endpoints returns the configured gateways keyed by name. Gateways without a
// base URL are left out.
func (g GatewaysConfig) Endpoints() map[string]GatewayEndpoint {
	all := map[string]GatewayEndpoint{
		"sandbox":  g.Sandbox,
		"worldpay": g.Worldpay,
		"smartpay": g.Smartpay,
		"epdq":     g.Epdq,
	}
	out := make(map[string]GatewayEndpoint, len(all))
	for name, ep := range all {
		if ep.BaseURL != "" {
			out[name] = ep
		}
	}
	return out
}

type RetryConfig struct {
	BaseDelay  time.Duration `koanf:"base_delay"`
	MaxRetries int           `koanf:"max_retries"`
}

type ExecutorConfig struct {
	PoolSize int64         `koanf:"pool_size" validate:"required,min=1"`
	Timeout  time.Duration `koanf:"timeout" validate:"required"`
	// GuardTTL bounds how long a crashed process can hold a charge's guard.
	GuardTTL time.Duration `koanf:"guard_ttl"`
}

type CaptureConfig struct {
	Interval   time.Duration `koanf:"interval" validate:"required"`
	BatchSize  int           `koanf:"batch_size" validate:"required,min=1"`
	MaxRetries int           `koanf:"max_retries" validate:"required,min=1"`
	// RatePerSecond throttles gateway capture calls; zero means unthrottled.
	RatePerSecond float64 `koanf:"rate_per_second"`
}

type ExpiryConfig struct {
	Interval  time.Duration `koanf:"interval" validate:"required"`
	MaxAge    time.Duration `koanf:"max_age" validate:"required"`
	BatchSize int           `koanf:"batch_size" validate:"required,min=1"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

type TelemetryConfig struct {
	ServiceName  string `koanf:"service_name"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

// NewLogger builds a development logger for debug level and a production
// JSON logger otherwise.
func (c LoggerConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}

	var cfg zap.Config
	if level == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	return cfg.Build()
}

func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	mainConfig := defaults()

	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(mainConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return mainConfig, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			MaxNotificationBytes: 1 << 20,
		},
		Retry: RetryConfig{
			BaseDelay:  500 * time.Millisecond,
			MaxRetries: 3,
		},
		Executor: ExecutorConfig{
			GuardTTL: 5 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "charge-connector",
		},
		Logger: LoggerConfig{
			Level: "info",
		},
	}
}
