package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080" validate:"required"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`

	// Environment selects the CORS policy: development allows any origin.
	Environment    string   `env:"APP_ENV" envDefault:"development" validate:"oneof=development staging production"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	IngestAllActive bool `env:"INGEST_ALL_ACTIVE" envDefault:"false"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

type UpstreamConfig struct {
	URL      string `env:"UPSTREAM_URL,required,notEmpty" validate:"required,url"`
	CasinoID string `env:"UPSTREAM_CASINO_ID" envDefault:"ppcdk00000003811"`
	Currency string `env:"UPSTREAM_CURRENCY" envDefault:"USD"`

	ConnectTimeoutMS     int `env:"UPSTREAM_CONNECT_TIMEOUT_MS" envDefault:"10000" validate:"min=1"`
	ReconnectDelayMS     int `env:"UPSTREAM_RECONNECT_DELAY_MS" envDefault:"5000" validate:"min=1"`
	MaxReconnectDelayMS  int `env:"UPSTREAM_MAX_RECONNECT_DELAY_MS" envDefault:"60000" validate:"min=1"`
	MaxReconnectAttempts int `env:"UPSTREAM_MAX_RECONNECT_ATTEMPTS" envDefault:"10" validate:"min=1"`
	WriteTimeoutMS       int `env:"UPSTREAM_WRITE_TIMEOUT_MS" envDefault:"5000" validate:"min=1"`
	PingIntervalMS       int `env:"UPSTREAM_PING_INTERVAL_MS" envDefault:"30000" validate:"min=1"`
}

func LoadUpstream() (UpstreamConfig, error) {
	var cfg UpstreamConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

func (c UpstreamConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}

func (c UpstreamConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMS) * time.Millisecond
}

func (c UpstreamConfig) MaxReconnectDelay() time.Duration {
	return time.Duration(c.MaxReconnectDelayMS) * time.Millisecond
}

func (c UpstreamConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMS) * time.Millisecond
}

func (c UpstreamConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalMS) * time.Millisecond
}

type StreamConfig struct {
	PingIntervalMS int `env:"SSE_PING_INTERVAL_MS" envDefault:"30000" validate:"min=1"`
	WriteTimeoutMS int `env:"SSE_WRITE_TIMEOUT_MS" envDefault:"5000" validate:"min=1"`
	ClientBuffer   int `env:"SSE_CLIENT_BUFFER" envDefault:"64" validate:"min=1"`
	HistoryLimit   int `env:"SSE_HISTORY_LIMIT" envDefault:"20" validate:"min=0"`
}

func LoadStream() (StreamConfig, error) {
	var cfg StreamConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

type RetentionConfig struct {
	CleanupIntervalMin int `env:"CLEANUP_INTERVAL_MIN" envDefault:"60" validate:"min=1"`
	PersistWorkers     int `env:"PERSIST_WORKERS" envDefault:"2" validate:"min=1"`
	PersistQueue       int `env:"PERSIST_QUEUE" envDefault:"1024" validate:"min=1"`
	Last20Limit        int `env:"INGEST_LAST20_LIMIT" envDefault:"3" validate:"min=0"`
	DedupSize          int `env:"INGEST_DEDUP_SIZE" envDefault:"4096" validate:"min=1"`
	DedupTTLMin        int `env:"INGEST_DEDUP_TTL_MIN" envDefault:"30" validate:"min=1"`
}

func LoadRetention() (RetentionConfig, error) {
	var cfg RetentionConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

type CatalogConfig struct {
	// Path to a JSON catalog. When empty the games table in Postgres is used,
	// or the built-in catalog when there is no database.
	Path          string `env:"CATALOG_PATH"`
	RefreshSec    int    `env:"CATALOG_REFRESH_SEC" envDefault:"300" validate:"min=1"`
	MissCacheSize int    `env:"CATALOG_MISS_CACHE_SIZE" envDefault:"1024" validate:"min=1"`
}

func LoadCatalog() (CatalogConfig, error) {
	var cfg CatalogConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}
