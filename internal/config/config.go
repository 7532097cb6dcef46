// Package config provides configuration management for the PubMed retrieval service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
	"github.com/helixir/pubmed-retrieval-service/internal/report"
	"github.com/helixir/pubmed-retrieval-service/internal/resolver"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PUBRETRIEVE"

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the PubMed retrieval service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Registry contains the PubMed efetch client settings.
	Registry RegistryConfig `mapstructure:"registry"`
	// Fetch contains document download settings.
	Fetch FetchConfig `mapstructure:"fetch"`
	// Engine contains batch execution settings.
	Engine EngineConfig `mapstructure:"engine"`
	// Catalog overrides the built-in document host list.
	Catalog CatalogConfig `mapstructure:"catalog"`
	// Report contains failure list settings.
	Report ReportConfig `mapstructure:"report"`
	// Kafka contains outcome publisher settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Redis contains registry response cache settings.
	Redis RedisConfig `mapstructure:"redis"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port" validate:"min=1,max=65535"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response. Retrieval
	// requests run synchronously, so this bounds batch size in practice.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Enabled turns on persistence of records and outcomes.
	Enabled bool `mapstructure:"enabled"`
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host" validate:"required_if=Enabled true"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (loaded from PUBRETRIEVE_DATABASE_PASSWORD).
	Password string `mapstructure:"-"`
	// Name is the database name.
	Name string `mapstructure:"name" validate:"required_if=Enabled true"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode" validate:"oneof=disable require verify-ca verify-full"`
	// MaxConns is the maximum number of connections in the pool (default: 10).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 2).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
	// StatementCacheCapacity is the size of the prepared statement cache.
	StatementCacheCapacity int `mapstructure:"statement_cache_capacity"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level" validate:"oneof=trace debug info warn error fatal panic"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format" validate:"oneof=json console"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path" validate:"startswith=/"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace" validate:"required"`
}

// RegistryConfig holds the PubMed efetch client settings.
type RegistryConfig struct {
	// BaseURL is the E-utilities base URL.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// APIKey is the NCBI API key (loaded from PUBRETRIEVE_REGISTRY_API_KEY).
	APIKey string `mapstructure:"-"`
	// Timeout is the timeout for efetch calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gt=0"`
	// MaxRetries is the number of retries on 429 and 5xx. Zero keeps each
	// lookup to one round-trip.
	MaxRetries int `mapstructure:"max_retries" validate:"min=0"`
}

// FetchConfig holds document download settings.
type FetchConfig struct {
	// Dir is the destination directory for <pmid>.pdf files.
	Dir string `mapstructure:"dir" validate:"required"`
	// Timeout bounds one download including the body.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxSize is the largest accepted document in bytes.
	MaxSize int64 `mapstructure:"max_size" validate:"gt=0"`
	// Cookie is sent to document hosts (loaded from PUBRETRIEVE_FETCH_COOKIE).
	Cookie string `mapstructure:"-"`
	// MaxRetries is the number of transport retries per candidate.
	MaxRetries int `mapstructure:"max_retries" validate:"min=0"`
	// AcceptEmpty keeps documents that parse but report no pages.
	AcceptEmpty bool `mapstructure:"accept_empty"`
	// AllowPrivateNetworks disables SSRF checks. Test environments only.
	AllowPrivateNetworks bool `mapstructure:"allow_private_networks"`
	// RequestsPerSecond is the default per-host rate; 0 means unlimited.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"min=0"`
	// Burst is the per-host burst size.
	Burst int `mapstructure:"burst" validate:"min=0"`
	// MaxInFlight caps concurrent document requests; 0 means unlimited.
	MaxInFlight int `mapstructure:"max_in_flight" validate:"min=0"`
	// HostRates overrides RequestsPerSecond for specific hosts.
	HostRates map[string]float64 `mapstructure:"host_rates"`
}

// EngineConfig holds batch execution settings.
type EngineConfig struct {
	// Workers is the number of records processed concurrently.
	Workers int `mapstructure:"workers" validate:"min=1,max=64"`
}

// CatalogConfig overrides the document host list. An empty list keeps the
// built-in catalog.
type CatalogConfig struct {
	Sources []domain.CandidateSource `mapstructure:"sources"`
}

// ReportConfig holds failure list settings.
type ReportConfig struct {
	// FailedListPath overrides the failure list location. Empty places it in
	// the parent of the fetch directory.
	FailedListPath string `mapstructure:"failed_list_path"`
}

// KafkaConfig holds Kafka publisher settings for outcome events.
type KafkaConfig struct {
	// Enabled controls whether Kafka publishing is active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers" validate:"required_if=Enabled true"`
	// Topic is the Kafka topic outcome events are published to.
	Topic string `mapstructure:"topic" validate:"required_if=Enabled true"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// RedisConfig holds registry response cache settings.
type RedisConfig struct {
	// Enabled turns on the registry cache.
	Enabled bool `mapstructure:"enabled"`
	// Addr is the Redis address (host:port).
	Addr string `mapstructure:"addr" validate:"required_if=Enabled true"`
	// Password is the Redis password (loaded from PUBRETRIEVE_REDIS_PASSWORD).
	Password string `mapstructure:"-"`
	// DB is the Redis database number.
	DB int `mapstructure:"db" validate:"min=0"`
	// Prefix namespaces cache keys.
	Prefix string `mapstructure:"prefix"`
	// TTL is how long a mapped record stays cached.
	TTL time.Duration `mapstructure:"ttl"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	if c.StatementCacheCapacity > 0 {
		params.Set("statement_cache_capacity", fmt.Sprintf("%d", c.StatementCacheCapacity))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from a .env file, environment variables and an
// optional config.yaml in the standard search paths.
func Load() (*Config, error) {
	return load("")
}

// LoadFile is like Load but reads the given config file, which must exist.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/pubmed-retrieval-service")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// Config file not found is OK, we'll use env vars and defaults
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.Registry.APIKey = os.Getenv(EnvPrefix + "_REGISTRY_API_KEY")
	cfg.Database.Password = os.Getenv(EnvPrefix + "_DATABASE_PASSWORD")
	cfg.Fetch.Cookie = os.Getenv(EnvPrefix + "_FETCH_COOKIE")
	cfg.Redis.Password = os.Getenv(EnvPrefix + "_REDIS_PASSWORD")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "pubretrieve")
	v.SetDefault("database.name", "pubmed_retrieval")
	// Default to "require" for production security. Use PUBRETRIEVE_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)
	v.SetDefault("database.statement_cache_capacity", 512)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "pubretrieve")

	// Registry defaults
	// The API key is loaded exclusively from the environment (see loadSecrets).
	v.SetDefault("registry.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("registry.timeout", "60s")
	v.SetDefault("registry.rate_limit", 3.0) // NCBI recommends max 3 req/sec without API key
	v.SetDefault("registry.max_retries", 0)

	// Fetch defaults
	v.SetDefault("fetch.dir", "./pdfs")
	v.SetDefault("fetch.timeout", "60s")
	v.SetDefault("fetch.max_size", 100*1024*1024)
	v.SetDefault("fetch.max_retries", 0)
	v.SetDefault("fetch.accept_empty", true)
	v.SetDefault("fetch.allow_private_networks", false)
	v.SetDefault("fetch.requests_per_second", 0.0)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("fetch.max_in_flight", 0)
	v.SetDefault("fetch.host_rates", map[string]float64{})

	// Engine defaults
	v.SetDefault("engine.workers", 1)

	// Catalog defaults: empty keeps the built-in host list.
	v.SetDefault("catalog.sources", []domain.CandidateSource{})

	// Report defaults
	v.SetDefault("report.failed_list_path", "")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.pubmed_retrieval.outcomes")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "pubretrieve:record:")
	v.SetDefault("redis.ttl", "24h")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	if c.Fetch.Burst < 1 && c.Fetch.RequestsPerSecond > 0 {
		return fmt.Errorf("fetch burst must be >= 1 when requests_per_second is set")
	}

	if len(c.Catalog.Sources) > 0 {
		if err := resolver.Catalog(c.Catalog.Sources).Validate(); err != nil {
			return fmt.Errorf("invalid catalog: %w", err)
		}
	}

	return nil
}

// FailedListPath returns the configured failure list path or the default
// next to the fetch directory.
func (c *Config) FailedListPath() string {
	if c.Report.FailedListPath != "" {
		return c.Report.FailedListPath
	}
	return report.DefaultFailedListPath(c.Fetch.Dir)
}
