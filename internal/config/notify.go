package config

import "github.com/caarlos0/env/v11"

// NotifyConfig controls webhook alerts for notable results and upstream
// outages. Targets come from NOTIFY_TARGETS_PATH (hot reloaded) or
// NOTIFY_TARGETS_JSON.
type NotifyConfig struct {
	Enabled     bool   `env:"NOTIFY_ENABLED" envDefault:"false"`
	TargetsPath string `env:"NOTIFY_TARGETS_PATH"`
	TargetsJSON string `env:"NOTIFY_TARGETS_JSON"`
	ReloadMS    int    `env:"NOTIFY_RELOAD_MS" envDefault:"5000" validate:"min=100"`
	Workers     int    `env:"NOTIFY_WORKERS" envDefault:"2" validate:"min=1"`
	RetryMax    int    `env:"NOTIFY_RETRY_MAX" envDefault:"3" validate:"min=0"`
	RetryBaseMS int    `env:"NOTIFY_RETRY_BASE_MS" envDefault:"500" validate:"min=1"`
	// MinPriority applies to targets that do not set their own threshold.
	MinPriority string `env:"NOTIFY_MIN_PRIORITY" envDefault:"high" validate:"oneof=low normal high critical permanent"`
	// TableIntervalMS throttles non-critical alerts per table.
	TableIntervalMS int `env:"NOTIFY_TABLE_INTERVAL_MS" envDefault:"10000" validate:"min=0"`
}

func LoadNotify() (NotifyConfig, error) {
	var cfg NotifyConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}
