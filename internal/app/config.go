package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (BISTRO_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (BISTRO_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	TokenPepper   string `usage:"HMAC pepper for bearer token hashing" flag:"token-pepper"`
	PublicBaseURL string `default:"http://localhost:8080" usage:"Public URL embedded in receipt QR codes" flag:"public-base-url"`
	Redis         RedisConfig
	Kafka         KafkaConfig
	Retry         RetryConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// RedisConfig enables the report cache when URL is set.
type RedisConfig struct {
	URL       string        `usage:"Redis URL for the report cache (BISTRO_REDIS_URL or REDIS_URL)"`
	ReportTTL time.Duration `default:"1m" usage:"Top dishes cache TTL"`
}

// KafkaConfig enables domain event publishing when Brokers is set.
type KafkaConfig struct {
	Brokers      []string      `usage:"Kafka bootstrap brokers"`
	Topic        string        `default:"bistro.events" usage:"Domain events topic"`
	WriteTimeout time.Duration `default:"2s" usage:"Per-publish timeout"`
}

// RetryConfig controls retries of serialization failures in discount usage.
type RetryConfig struct {
	MaxAttempts   int           `default:"5" usage:"Max transaction attempts"`
	InitialDelay  time.Duration `default:"20ms" usage:"First retry delay"`
	MaxDelay      time.Duration `default:"1s" usage:"Retry delay cap"`
	BackoffFactor float64       `default:"2" usage:"Delay multiplier per attempt"`
	Jitter        bool          `default:"true" usage:"Randomize retry delays"`
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from flags, environment variables and YAML
// config files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "BISTRO",
		Files:     []string{"config.yaml", "/etc/bistro/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set BISTRO_DATABASE_URL or DATABASE_URL")
	case c.TokenPepper == "":
		return errors.New("token pepper is required: set BISTRO_TOKEN_PEPPER")
	case c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0:
		return errors.New("rate limit max and window must be positive")
	case c.Retry.MaxAttempts <= 0:
		return errors.New("retry max attempts must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided variables such as DATABASE_URL,
// REDIS_URL and PORT onto the configuration when not set explicitly.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Redis.URL == "" {
		c.Redis.URL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
