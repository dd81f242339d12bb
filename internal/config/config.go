package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"travelbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Row store backends.
const (
	BackendGoogle = "google"
	BackendXLSX   = "xlsx"
	BackendMemory = "memory"
)

// Relational store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Allocator modes.
const (
	AllocatorScan  = "scan"
	AllocatorLocal = "local"
	AllocatorRedis = "redis"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	RowStore   RowStoreConfig   `yaml:"row_store"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Allocator  AllocatorConfig  `yaml:"allocator"`
	Auth       AuthConfig       `yaml:"auth"`
	Booking    BookingConfig    `yaml:"booking"`
	Worker     WorkerConfig     `yaml:"worker"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	CORS      APICORSConfig      `yaml:"cors"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type APICORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type RowStoreConfig struct {
	Backend string        `yaml:"backend"`
	Google  GoogleConfig  `yaml:"google"`
	XLSX    XLSXConfig    `yaml:"xlsx"`
	Timeout time.Duration `yaml:"timeout"`
}

type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
}

type XLSXConfig struct {
	Path string `yaml:"path"`
}

type DatabaseConfig struct {
	Driver string       `yaml:"driver"`
	Path   string       `yaml:"path"`
	DSN    string       `yaml:"dsn"`
	Backup BackupConfig `yaml:"backup"`
}

// BackupConfig schedules online copies of the SQLite user store.
type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	StoragePath   string        `yaml:"storage_path"`
	RetentionDays int           `yaml:"retention_days"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type AllocatorConfig struct {
	Mode       string        `yaml:"mode"`
	MaxRetries int           `yaml:"max_retries"`
	BackoffMin time.Duration `yaml:"backoff_min"`
	BackoffMax time.Duration `yaml:"backoff_max"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type BookingConfig struct {
	ReleaseCancelledInventory *bool `yaml:"release_cancelled_inventory"`
}

// ReleaseCancelled reports whether cancelled bookings free their inventory.
func (b BookingConfig) ReleaseCancelled() bool {
	return b.ReleaseCancelledInventory == nil || *b.ReleaseCancelledInventory
}

type WorkerConfig struct {
	Enabled           bool          `yaml:"enabled"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	MaxRetries        int           `yaml:"max_retries"`
	InitialDelay      time.Duration `yaml:"initial_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	OrphanGrace       time.Duration `yaml:"orphan_grace"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.RowStore.Backend {
	case BackendGoogle:
		if c.RowStore.Google.CredentialsFile == "" || c.RowStore.Google.SpreadsheetID == "" {
			return errors.New("row_store.google requires credentials_file and spreadsheet_id")
		}
	case BackendXLSX:
		if c.RowStore.XLSX.Path == "" {
			return errors.New("row_store.xlsx.path is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown row_store.backend %q", c.RowStore.Backend)
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database dsn is required for postgres")
		}
	case DriverNone:
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Database.Backup.Enabled && c.Database.Driver != DriverSQLite {
		return errors.New("database.backup is only supported for sqlite")
	}

	switch c.Allocator.Mode {
	case AllocatorScan, AllocatorLocal:
	case AllocatorRedis:
		if c.Redis.Address == "" {
			return errors.New("allocator.mode=redis requires redis.address")
		}
	default:
		return fmt.Errorf("unknown allocator.mode %q", c.Allocator.Mode)
	}
	if c.Allocator.BackoffMin > c.Allocator.BackoffMax {
		return errors.New("allocator.backoff_min must not exceed backoff_max")
	}

	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("auth.jwt_secret must be at least 16 characters")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "travelbook"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.HTTP.ReadTimeout == 0 {
		c.API.HTTP.ReadTimeout = 5 * time.Second
	}
	if c.API.HTTP.WriteTimeout == 0 {
		c.API.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}

	c.RowStore.Backend = strings.ToLower(strings.TrimSpace(c.RowStore.Backend))
	if c.RowStore.Backend == "" {
		c.RowStore.Backend = BackendGoogle
	}
	if c.RowStore.Timeout == 0 {
		c.RowStore.Timeout = 15 * time.Second
	}

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}

	if c.Database.Backup.Enabled {
		if c.Database.Backup.Interval == 0 {
			c.Database.Backup.Interval = 24 * time.Hour
		}
		if c.Database.Backup.StoragePath == "" {
			c.Database.Backup.StoragePath = "backups"
		}
	}

	c.Allocator.Mode = strings.ToLower(strings.TrimSpace(c.Allocator.Mode))
	if c.Allocator.Mode == "" {
		c.Allocator.Mode = AllocatorLocal
	}
	if c.Allocator.MaxRetries == 0 {
		c.Allocator.MaxRetries = models.DefaultAllocationRetries
	}
	if c.Allocator.BackoffMin == 0 {
		c.Allocator.BackoffMin = 10 * time.Millisecond
	}
	if c.Allocator.BackoffMax == 0 {
		c.Allocator.BackoffMax = 50 * time.Millisecond
	}

	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = models.DefaultSessionTTL
	}

	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = 5 * time.Second
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 5
	}
	if c.Worker.InitialDelay == 0 {
		c.Worker.InitialDelay = 2 * time.Second
	}
	if c.Worker.MaxDelay == 0 {
		c.Worker.MaxDelay = 5 * time.Minute
	}
	if c.Worker.ReconcileInterval == 0 {
		c.Worker.ReconcileInterval = 10 * time.Minute
	}
	if c.Worker.OrphanGrace == 0 {
		c.Worker.OrphanGrace = 15 * time.Minute
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		c.Kafka.Topic = "travelbook.bookings"
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}
