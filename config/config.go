package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

/* Config is loaded from a YAML file and overridden by environment variables
 * prefixed with WEBHOOK_SENDER, e.g. WEBHOOK_SENDER_REDIS_ADDR.
 */

const envPrefix = "WEBHOOK_SENDER"

// Store drivers
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Sender modes
const (
	// ModeDirect delivers from the API process
	ModeDirect = "direct"
	// ModeQueue enqueues work items for the ingestion loop
	ModeQueue = "queue"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Store        StoreConfig        `mapstructure:"store"`
	Sender       SenderConfig       `mapstructure:"sender"`
	Queue        QueueConfig        `mapstructure:"queue"`
	Verification VerificationConfig `mapstructure:"verification"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr is the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	PostgresURL string `mapstructure:"postgres_url"`
	// MaxOpenConns, MaxIdleConns and ConnMaxLifetimeMinutes size the
	// PostgreSQL pool
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `mapstructure:"conn_max_lifetime_minutes"`
	// SeedFile is a subscriptions YAML applied at startup
	SeedFile string `mapstructure:"seed_file"`
}

type SenderConfig struct {
	Mode           string          `mapstructure:"mode"`
	RetryDelays    []time.Duration `mapstructure:"retry_delays"`
	MaxConcurrency int             `mapstructure:"max_concurrency"`
	// DrainTimeout bounds the direct-mode drain on shutdown; zero derives it
	// from the retry schedule
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`
}

// drainGrace covers the delivery attempts made while the schedule runs out
const drainGrace = time.Minute

// Schedule is the total delay an item can spend waiting between attempts
func (s SenderConfig) Schedule() time.Duration {
	var total time.Duration
	for _, d := range s.RetryDelays {
		total += d
	}
	return total
}

// DrainBudget is how long shutdown waits for in-process deliveries
func (s SenderConfig) DrainBudget() time.Duration {
	if s.DrainTimeout > 0 {
		return s.DrainTimeout
	}
	return s.Schedule() + drainGrace
}

type QueueConfig struct {
	Stream            string        `mapstructure:"stream"`
	Group             string        `mapstructure:"group"`
	Consumer          string        `mapstructure:"consumer"`
	PollingInterval   time.Duration `mapstructure:"polling_interval"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
	MaxDequeueCount   int64         `mapstructure:"max_dequeue_count"`
	BatchSize         int           `mapstructure:"batch_size"`
	DrainTimeout      time.Duration `mapstructure:"drain_timeout"`
}

type VerificationConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("store.driver", StoreRedis)
	v.SetDefault("store.postgres_url", "")
	v.SetDefault("store.seed_file", "")
	v.SetDefault("store.max_open_conns", 25)
	v.SetDefault("store.max_idle_conns", 5)
	v.SetDefault("store.conn_max_lifetime_minutes", 5)

	v.SetDefault("sender.mode", ModeDirect)
	v.SetDefault("sender.retry_delays", []string{"1m", "4m"})
	v.SetDefault("sender.max_concurrency", 0)
	v.SetDefault("sender.drain_timeout", time.Duration(0))

	v.SetDefault("queue.stream", "webhook:queue:workitems")
	v.SetDefault("queue.group", "webhook-senders")
	v.SetDefault("queue.consumer", "")
	v.SetDefault("queue.polling_interval", 10*time.Second)
	v.SetDefault("queue.visibility_timeout", time.Minute)
	v.SetDefault("queue.max_dequeue_count", 3)
	v.SetDefault("queue.batch_size", 32)
	v.SetDefault("queue.drain_timeout", 30*time.Second)

	v.SetDefault("verification.enabled", true)
	v.SetDefault("verification.timeout", 30*time.Second)

	v.SetDefault("metrics.enabled", true)
}

// Load reads the config file at path. A missing file is not an error:
// defaults and environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks values that would otherwise fail at first use
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535 (got %d)", c.Server.Port))
	}

	switch c.Store.Driver {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if c.Store.PostgresURL == "" {
			errs = append(errs, errors.New("store.postgres_url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver must be one of memory, redis, postgres (got %q)", c.Store.Driver))
	}

	switch c.Sender.Mode {
	case ModeDirect, ModeQueue:
	default:
		errs = append(errs, fmt.Errorf("sender.mode must be direct or queue (got %q)", c.Sender.Mode))
	}
	for i, d := range c.Sender.RetryDelays {
		if d < 0 {
			errs = append(errs, fmt.Errorf("sender.retry_delays[%d] cannot be negative", i))
		}
	}
	if c.Sender.MaxConcurrency < 0 {
		errs = append(errs, errors.New("sender.max_concurrency cannot be negative"))
	}
	if c.Sender.DrainTimeout < 0 {
		errs = append(errs, errors.New("sender.drain_timeout cannot be negative"))
	} else if c.Sender.DrainTimeout > 0 && c.Sender.DrainTimeout <= c.Sender.Schedule() {
		errs = append(errs, fmt.Errorf("sender.drain_timeout must exceed the retry schedule (%s)", c.Sender.Schedule()))
	}

	if c.Queue.PollingInterval <= 0 {
		errs = append(errs, errors.New("queue.polling_interval must be positive"))
	}
	if c.Queue.VisibilityTimeout <= 0 {
		errs = append(errs, errors.New("queue.visibility_timeout must be positive"))
	}
	if c.Queue.MaxDequeueCount <= 0 {
		errs = append(errs, errors.New("queue.max_dequeue_count must be positive"))
	}

	if c.Verification.Enabled && c.Verification.Timeout <= 0 {
		errs = append(errs, errors.New("verification.timeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
