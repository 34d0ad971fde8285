package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/suiflow/suiflow_service/internal/infrastructure/adapters/sui"
)

// Config holds all configuration for the application
type Config struct {
	Environment    string               `mapstructure:"environment"`
	LogLevel       string               `mapstructure:"log_level"`
	Server         ServerConfig         `mapstructure:"server"`
	Ledger         LedgerConfig         `mapstructure:"ledger"`
	Payment        PaymentConfig        `mapstructure:"payment"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Security       SecurityConfig       `mapstructure:"security"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	Host           string   `mapstructure:"host"`
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// SubmitRequestsPerMinute caps value-moving requests per client IP; 0 disables it
	SubmitRequestsPerMinute int `mapstructure:"submit_requests_per_minute"`
}

// LedgerConfig points the service at a Sui network and the deployed processor.
type LedgerConfig struct {
	Network           string  `mapstructure:"network"`
	RPCURL            string  `mapstructure:"rpc_url"`
	PackageID         string  `mapstructure:"package_id"`
	ProcessorObjectID string  `mapstructure:"processor_object_id"`
	PrivateKey        string  `mapstructure:"private_key"`
	RequestTimeout    int     `mapstructure:"request_timeout"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// PaymentConfig amounts are in MIST.
type PaymentConfig struct {
	CoinType     string `mapstructure:"coin_type"`
	ProductPrice uint64 `mapstructure:"product_price"`
	AdminFee     uint64 `mapstructure:"admin_fee"`
	GasBudget    uint64 `mapstructure:"gas_budget"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string `mapstructure:"migrations_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	StatsTTL int    `mapstructure:"stats_ttl"`
}

type SecurityConfig struct {
	AdminJWTSecret string `mapstructure:"admin_jwt_secret"`
}

// ReconciliationConfig contains reconciliation job configuration
type ReconciliationConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Schedule    string `mapstructure:"schedule"`
	EventWindow int    `mapstructure:"event_window"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// Load reads configuration from .env, an optional config file and the
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := overrideFromEnv(v); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Ledger.RPCURL == "" {
		config.Ledger.RPCURL = sui.URLForNetwork(config.Ledger.Network)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 90)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.submit_requests_per_minute", 30)

	// Ledger defaults
	v.SetDefault("ledger.network", "testnet")
	v.SetDefault("ledger.request_timeout", 60)
	v.SetDefault("ledger.requests_per_second", sui.DefaultRequestsPerSecond)

	// Payment defaults (MIST)
	v.SetDefault("payment.coin_type", "0x2::sui::SUI")
	v.SetDefault("payment.product_price", 50_000_000)
	v.SetDefault("payment.admin_fee", 10_000_000)
	v.SetDefault("payment.gas_budget", 10_000_000)

	// Database defaults
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.migrations_path", "migrations")

	// Redis defaults
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stats_ttl", 300)

	// Reconciliation defaults
	v.SetDefault("reconciliation.enabled", true)
	v.SetDefault("reconciliation.schedule", "*/5 * * * *")
	v.SetDefault("reconciliation.event_window", 100)
	v.SetDefault("reconciliation.max_attempts", 3)

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.collector_url", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)
}

// overrideFromEnv maps the flat environment variable names used by
// deployments onto config keys.
func overrideFromEnv(v *viper.Viper) error {
	strEnv := map[string]string{
		"ENVIRONMENT":             "environment",
		"LOG_LEVEL":               "log_level",
		"NETWORK":                 "ledger.network",
		"SUI_RPC_URL":             "ledger.rpc_url",
		"PACKAGE_ID":              "ledger.package_id",
		"PROCESSOR_OBJECT_ID":     "ledger.processor_object_id",
		"PRIVATE_KEY":             "ledger.private_key",
		"COIN_TYPE":               "payment.coin_type",
		"DATABASE_URL":            "database.url",
		"REDIS_HOST":              "redis.host",
		"REDIS_PASSWORD":          "redis.password",
		"ADMIN_JWT_SECRET":        "security.admin_jwt_secret",
		"RECONCILIATION_SCHEDULE": "reconciliation.schedule",
		"OTEL_COLLECTOR_URL":      "tracing.collector_url",
	}
	for env, key := range strEnv {
		if val := os.Getenv(env); val != "" {
			v.Set(key, val)
		}
	}

	intEnv := map[string]string{
		"PORT":           "server.port",
		"REDIS_PORT":     "redis.port",
		"PAYMENT_AMOUNT": "payment.product_price",
		"ADMIN_FEE":      "payment.admin_fee",
		"GAS_BUDGET":     "payment.gas_budget",
	}
	for env, key := range intEnv {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", env, val, err)
		}
		v.Set(key, n)
	}

	if enabled := os.Getenv("RECONCILIATION_ENABLED"); enabled != "" {
		v.Set("reconciliation.enabled", enabled == "true" || enabled == "1")
	}
	if enabled := os.Getenv("TRACING_ENABLED"); enabled != "" {
		v.Set("tracing.enabled", enabled == "true" || enabled == "1")
	}

	return nil
}

func validate(config *Config) error {
	if config.Ledger.PackageID == "" {
		return fmt.Errorf("PACKAGE_ID is required")
	}
	if config.Ledger.ProcessorObjectID == "" {
		return fmt.Errorf("PROCESSOR_OBJECT_ID is required")
	}
	if config.Ledger.RPCURL == "" {
		return fmt.Errorf("unknown network %q and no SUI_RPC_URL set", config.Ledger.Network)
	}
	if config.Payment.GasBudget == 0 {
		return fmt.Errorf("gas budget must be positive")
	}
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", config.Server.Port)
	}
	if config.Reconciliation.Enabled {
		if _, err := cron.ParseStandard(config.Reconciliation.Schedule); err != nil {
			return fmt.Errorf("invalid reconciliation schedule %q: %w", config.Reconciliation.Schedule, err)
		}
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AdminEnabled reports whether a key is configured for admin operations.
func (c *Config) AdminEnabled() bool {
	return c.Ledger.PrivateKey != ""
}

// StoreEnabled reports whether events are persisted.
func (c *Config) StoreEnabled() bool {
	return c.Database.URL != ""
}

// CacheEnabled reports whether the stats cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.Redis.Host != ""
}

// Timeout returns the ledger request timeout.
func (c LedgerConfig) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// TTL returns how long cached stats snapshots live.
func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.StatsTTL) * time.Second
}
