// Package config loads process configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Ledger drivers.
const (
	LedgerDriverMemory   = "memory"
	LedgerDriverBolt     = "bolt"
	LedgerDriverEthereum = "ethereum"
)

// Config is the full process configuration.
type Config struct {
	Environment string          `yaml:"environment"`
	LogLevel    string          `yaml:"log_level"`
	Server      Server          `yaml:"server"`
	Postgres    PostgresConfig  `yaml:"postgres"`
	Redis       RedisConfig     `yaml:"redis"`
	Kafka       KafkaConfig     `yaml:"kafka"`
	Ledger      LedgerConfig    `yaml:"ledger"`
	Auth        AuthConfig      `yaml:"auth"`
	Sweep       SweepConfig     `yaml:"sweep"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	SeedDemoData   bool          `yaml:"seed_demo_data"`
}

type PostgresConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	AuditTopic   string        `yaml:"audit_topic"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
}

// LedgerConfig selects and tunes the ledger collaborator.
type LedgerConfig struct {
	Driver          string        `yaml:"driver"`
	BoltPath        string        `yaml:"bolt_path"`
	RPCURL          string        `yaml:"rpc_url"`
	ContractAddress string        `yaml:"contract_address"`
	PrivateKey      string        `yaml:"private_key"`
	ChainID         int64         `yaml:"chain_id"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	// CacheKey authenticates entries in the shared Redis cache tier.
	// Empty keeps reads in-process only.
	CacheKey        string        `yaml:"cache_key"`
	BreakerFailures int           `yaml:"breaker_failures"`
}

type AuthConfig struct {
	JWTSigningKey string        `yaml:"jwt_signing_key"`
	JWTIssuer     string        `yaml:"jwt_issuer"`
	JWTAudience   string        `yaml:"jwt_audience"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	// AdminToken guards operator routes. Empty disables them.
	AdminToken string `yaml:"admin_token"`
}

// SweepConfig drives the periodic registry-vs-ledger integrity sweep.
type SweepConfig struct {
	Schedule    string `yaml:"schedule"`
	Concurrency int    `yaml:"concurrency"`
	PageSize    int    `yaml:"page_size"`
}

// RateLimitConfig bounds public verification traffic per client IP.
type RateLimitConfig struct {
	VerifyPerSecond float64 `yaml:"verify_per_second"`
	VerifyBurst     int     `yaml:"verify_burst"`
}

// Default returns the development configuration.
func Default() Config {
	return Config{
		Environment: "development",
		LogLevel:    "info",
		Server: Server{
			Addr:           ":8080",
			RequestTimeout: 75 * time.Second,
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			AuditTopic:   "certify.audit",
			PollInterval: 2 * time.Second,
			BatchSize:    100,
		},
		Ledger: LedgerConfig{
			Driver:          LedgerDriverMemory,
			BoltPath:        "certify-ledger.db",
			WriteTimeout:    60 * time.Second,
			ReadTimeout:     10 * time.Second,
			CacheTTL:        time.Hour,
			BreakerFailures: 5,
		},
		Auth: AuthConfig{
			// Use a default for development - should be overridden in production
			JWTSigningKey: "dev-secret-key-change-in-production",
			JWTIssuer:     "certify",
			JWTAudience:   "certify-api",
			TokenTTL:      time.Hour,
		},
		Sweep: SweepConfig{
			Schedule:    "@every 6h",
			Concurrency: 8,
			PageSize:    200,
		},
		RateLimit: RateLimitConfig{
			VerifyPerSecond: 5,
			VerifyBurst:     20,
		},
	}
}

// Load builds the configuration. A .env file in the working directory is
// loaded first when present; path, when non-empty, names a YAML overlay.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv("CERTIFY_CONFIG")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Environment, "ENVIRONMENT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Server.Addr, "CERTIFY_ADDR")
	setBool(&c.Server.SeedDemoData, "SEED_DEMO_DATA")
	setString(&c.Postgres.URL, "DATABASE_URL")
	setString(&c.Redis.URL, "REDIS_URL")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	setString(&c.Kafka.AuditTopic, "KAFKA_AUDIT_TOPIC")
	setString(&c.Ledger.Driver, "LEDGER_DRIVER")
	setString(&c.Ledger.BoltPath, "LEDGER_BOLT_PATH")
	setString(&c.Ledger.RPCURL, "LEDGER_RPC_URL")
	setString(&c.Ledger.ContractAddress, "LEDGER_CONTRACT")
	setString(&c.Ledger.PrivateKey, "LEDGER_PRIVATE_KEY")
	setString(&c.Ledger.CacheKey, "LEDGER_CACHE_KEY")
	setString(&c.Auth.JWTSigningKey, "JWT_SIGNING_KEY")
	setString(&c.Auth.AdminToken, "ADMIN_TOKEN")
	setString(&c.Sweep.Schedule, "SWEEP_SCHEDULE")

	if v := os.Getenv("LEDGER_CHAIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("LEDGER_CHAIN_ID: %w", err)
		}
		c.Ledger.ChainID = id
	}
	if err := setDuration(&c.Ledger.WriteTimeout, "LEDGER_WRITE_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.Ledger.ReadTimeout, "LEDGER_READ_TIMEOUT"); err != nil {
		return err
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Ledger.Driver {
	case LedgerDriverMemory, LedgerDriverBolt:
	case LedgerDriverEthereum:
		if c.Ledger.RPCURL == "" || c.Ledger.ContractAddress == "" || c.Ledger.PrivateKey == "" {
			errs = append(errs, errors.New("ethereum ledger requires rpc_url, contract_address and private_key"))
		}
		if c.Ledger.ChainID <= 0 {
			errs = append(errs, errors.New("ethereum ledger requires a positive chain_id"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger driver %q", c.Ledger.Driver))
	}
	if c.Ledger.WriteTimeout <= 0 || c.Ledger.ReadTimeout <= 0 {
		errs = append(errs, errors.New("ledger timeouts must be positive"))
	}
	if c.Auth.JWTSigningKey == "" {
		errs = append(errs, errors.New("jwt signing key is required"))
	}
	if c.IsProduction() && c.Auth.JWTSigningKey == Default().Auth.JWTSigningKey {
		errs = append(errs, errors.New("jwt signing key must be overridden in production"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the process runs in production mode.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true"
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
