package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "ROSTER"

type Config struct {
	Roster   RosterConfig   `mapstructure:"roster"`
	Store    StoreConfig    `mapstructure:"store"`
	AWS      AWSConfig      `mapstructure:"aws"`
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
	Server   ServerConfig   `mapstructure:"server"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type RosterConfig struct {
	Timezone        string `mapstructure:"timezone"`
	ActiveCapacity  int    `mapstructure:"active_capacity"`
	WaitingCapacity int    `mapstructure:"waiting_capacity"`
	OpensAt         string `mapstructure:"opens_at"`
	ClosesAt        string `mapstructure:"closes_at"`
	ResetAt         string `mapstructure:"reset_at"`
	ResetEnabled    bool   `mapstructure:"reset_enabled"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type AWSConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Endpoint        string `mapstructure:"endpoint"`
}

type DynamoDBConfig struct {
	TableName        string `mapstructure:"table_name"`
	MaxRetries       int    `mapstructure:"max_retries"`
	UseLocalEndpoint bool   `mapstructure:"use_local_endpoint"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	Environment     string        `mapstructure:"environment"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type NATSConfig struct {
	URL                  string `mapstructure:"url"`
	MaxReconnect         int    `mapstructure:"max_reconnect"`
	ReconnectWaitSeconds int    `mapstructure:"reconnect_wait_seconds"`
	TimeoutSeconds       int    `mapstructure:"timeout_seconds"`
}

type CacheConfig struct {
	ListTTL time.Duration `mapstructure:"list_ttl"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverDynamoDB = "dynamodb"

	// A DynamoDB transaction holds at most 100 items and a reset deletes the
	// whole roster plus the meta item in one transaction.
	maxDynamoDBRosterSize = 99
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("roster.timezone", "America/Sao_Paulo")
	v.SetDefault("roster.active_capacity", 22)
	v.SetDefault("roster.waiting_capacity", 50)
	v.SetDefault("roster.opens_at", "12:00")
	v.SetDefault("roster.closes_at", "23:59")
	v.SetDefault("roster.reset_at", "00:00")
	v.SetDefault("roster.reset_enabled", false)

	v.SetDefault("store.driver", StoreDriverSQLite)
	v.SetDefault("store.dsn", "volei_list.db")

	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.access_key_id", "")
	v.SetDefault("aws.secret_access_key", "")
	v.SetDefault("aws.endpoint", "http://localhost:8000")

	v.SetDefault("dynamodb.table_name", "volei-roster")
	v.SetDefault("dynamodb.max_retries", 3)
	v.SetDefault("dynamodb.use_local_endpoint", false)

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.max_reconnect", 10)
	v.SetDefault("nats.reconnect_wait_seconds", 2)
	v.SetDefault("nats.timeout_seconds", 5)

	v.SetDefault("cache.list_ttl", 2*time.Second)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)
}

// Load reads config.yaml from configPath (or ./config and the working
// directory when empty) and lets ROSTER_* environment variables override it.
// A missing config file is not an error; defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Roster.ActiveCapacity <= 0 {
		return fmt.Errorf("roster.active_capacity must be positive, got %d", c.Roster.ActiveCapacity)
	}
	if c.Roster.WaitingCapacity < 0 {
		return fmt.Errorf("roster.waiting_capacity must not be negative, got %d", c.Roster.WaitingCapacity)
	}
	if _, err := time.LoadLocation(c.Roster.Timezone); err != nil {
		return fmt.Errorf("roster.timezone: %w", err)
	}

	switch c.Store.Driver {
	case StoreDriverSQLite:
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("store.dsn is required for the sqlite driver")
		}
	case StoreDriverDynamoDB:
		if c.DynamoDB.TableName == "" {
			return fmt.Errorf("dynamodb.table_name is required for the dynamodb driver")
		}
		if size := c.Roster.ActiveCapacity + c.Roster.WaitingCapacity; size > maxDynamoDBRosterSize {
			return fmt.Errorf("dynamodb driver supports at most %d entries per roster, got %d", maxDynamoDBRosterSize, size)
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	return nil
}

func (c *Config) NATSEnabled() bool {
	return strings.TrimSpace(c.NATS.URL) != ""
}
