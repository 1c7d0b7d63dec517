package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "chargehub/backend/libs/config"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Locking backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// HTTPConfig configures the listener and request limiting.
type HTTPConfig struct {
	Port      string        `yaml:"port" env:"CHARGERS_HTTP_PORT"`
	RateRPS   float64       `yaml:"rateRps" env:"CHARGERS_HTTP_RATE_RPS"`
	RateBurst int           `yaml:"rateBurst" env:"CHARGERS_HTTP_RATE_BURST"`
	WSPing    time.Duration `yaml:"wsPing" env:"CHARGERS_WS_PING"`
}

// DatabaseConfig configures Postgres.
type DatabaseConfig struct {
	DSN         string        `yaml:"dsn" env:"CHARGERS_POSTGRES_DSN"`
	LockTimeout time.Duration `yaml:"lockTimeout" env:"CHARGERS_POSTGRES_LOCK_TIMEOUT"`
	AutoMigrate bool          `yaml:"autoMigrate" env:"CHARGERS_POSTGRES_AUTO_MIGRATE"`
}

// StorageConfig selects the store implementation.
type StorageConfig struct {
	Backend string `yaml:"backend" env:"CHARGERS_STORAGE_BACKEND"`
}

// RedisConfig configures the shared Redis used for leases and the active-session cache.
type RedisConfig struct {
	Addr       string        `yaml:"addr" env:"CHARGERS_REDIS_ADDR"`
	Password   string        `yaml:"password" env:"CHARGERS_REDIS_PASSWORD"`
	DB         int           `yaml:"db" env:"CHARGERS_REDIS_DB"`
	SessionTTL time.Duration `yaml:"sessionTtl" env:"CHARGERS_REDIS_SESSION_TTL"`
}

// LockingConfig tunes the per-charger critical section.
type LockingConfig struct {
	Backend        string        `yaml:"backend" env:"CHARGERS_LOCK_BACKEND"`
	LeaseTTL       time.Duration `yaml:"leaseTtl" env:"CHARGERS_LOCK_LEASE_TTL"`
	AcquireTimeout time.Duration `yaml:"acquireTimeout" env:"CHARGERS_LOCK_ACQUIRE_TIMEOUT"`
	MaxRetries     int           `yaml:"maxRetries" env:"CHARGERS_LOCK_MAX_RETRIES"`
	RetryBackoff   time.Duration `yaml:"retryBackoff" env:"CHARGERS_LOCK_RETRY_BACKOFF"`
}

// JWTConfig configures bearer token validation.
type JWTConfig struct {
	Secret string        `yaml:"secret" env:"CHARGERS_JWT_SECRET"`
	TTL    time.Duration `yaml:"ttl" env:"CHARGERS_JWT_TTL"`
}

// ReservationsConfig tunes reservation reads.
type ReservationsConfig struct {
	NearTermHorizon time.Duration `yaml:"nearTermHorizon" env:"CHARGERS_NEAR_TERM_HORIZON"`
	ListCacheTTL    time.Duration `yaml:"listCacheTtl" env:"CHARGERS_RESERVATION_CACHE_TTL"`
}

// SeedCharger is a charger created at startup by the memory backend.
type SeedCharger struct {
	ID            string  `yaml:"id"`
	StationID     string  `yaml:"stationId"`
	ConnectorType string  `yaml:"connectorType"`
	Price         float64 `yaml:"price"`
	ChargingSpeed float64 `yaml:"chargingSpeed"`
}

// SeedConfig lists chargers to provision on the memory backend.
type SeedConfig struct {
	Chargers []SeedCharger `yaml:"chargers" env:"-"`
}

// Config defines chargers service configuration.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	Database     DatabaseConfig     `yaml:"database"`
	Storage      StorageConfig      `yaml:"storage"`
	Redis        RedisConfig        `yaml:"redis"`
	Locking      LockingConfig      `yaml:"locking"`
	JWT          JWTConfig          `yaml:"jwt"`
	Reservations ReservationsConfig `yaml:"reservations"`
	Seed         SeedConfig         `yaml:"seed"`
}

// Default returns configuration with every optional value filled in.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:      "8085",
			RateRPS:   20,
			RateBurst: 40,
			WSPing:    30 * time.Second,
		},
		Database: DatabaseConfig{
			LockTimeout: 2 * time.Second,
		},
		Storage: StorageConfig{Backend: BackendPostgres},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			SessionTTL: 24 * time.Hour,
		},
		Locking: LockingConfig{
			Backend:        LockLocal,
			LeaseTTL:       10 * time.Second,
			AcquireTimeout: 3 * time.Second,
			MaxRetries:     3,
			RetryBackoff:   50 * time.Millisecond,
		},
		JWT: JWTConfig{TTL: 12 * time.Hour},
		Reservations: ReservationsConfig{
			NearTermHorizon: 5 * 24 * time.Hour,
			ListCacheTTL:    30 * time.Second,
		},
	}
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("config: database dsn required for postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Locking.Backend {
	case LockLocal, LockRedis:
	default:
		return fmt.Errorf("config: unknown locking backend %q", c.Locking.Backend)
	}
	if c.Locking.Backend == LockRedis && strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("config: redis addr required for redis locking")
	}
	if c.Locking.MaxRetries < 0 {
		return errors.New("config: locking maxRetries must not be negative")
	}

	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt secret required")
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8085"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// RedisEnabled reports whether a Redis client is needed.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}
