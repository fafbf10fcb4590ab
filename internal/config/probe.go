package config

import "github.com/caarlos0/env/v11"

type ProbeConfig struct {
	UpstreamURL string   `env:"UPSTREAM_URL" envDefault:"ws://localhost:9000/ws"`
	CasinoID    string   `env:"UPSTREAM_CASINO_ID" envDefault:"ppcdk00000003811"`
	Currency    string   `env:"UPSTREAM_CURRENCY" envDefault:"USD"`
	Tables      []string `env:"PROBE_TABLES" envSeparator:","`
}

func LoadProbe() (ProbeConfig, error) {
	var cfg ProbeConfig
	err := env.Parse(&cfg)
	return cfg, err
}
