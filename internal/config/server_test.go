package config

import "testing"

func TestLoadServerDefaults(t *testing.T) {
	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.Environment != "development" {
		t.Fatalf("Environment = %q, want development", cfg.Environment)
	}
	if cfg.IngestAllActive {
		t.Fatal("IngestAllActive should default to false")
	}
}

func TestLoadServerRejectsUnknownEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "moon")

	if _, err := LoadServer(); err == nil {
		t.Fatal("LoadServer() expected error, got nil")
	}
}

func TestLoadServerParsesOrigins(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadUpstreamRequiresURL(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "")

	if _, err := LoadUpstream(); err == nil {
		t.Fatal("LoadUpstream() expected error, got nil")
	}
}

func TestLoadUpstreamDefaults(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "wss://feed.example.com/ws")

	cfg, err := LoadUpstream()
	if err != nil {
		t.Fatalf("LoadUpstream() error = %v", err)
	}
	if cfg.ConnectTimeout().Seconds() != 10 {
		t.Fatalf("ConnectTimeout = %v, want 10s", cfg.ConnectTimeout())
	}
	if cfg.MaxReconnectAttempts != 10 {
		t.Fatalf("MaxReconnectAttempts = %d, want 10", cfg.MaxReconnectAttempts)
	}
	if cfg.PingInterval().Seconds() != 30 {
		t.Fatalf("PingInterval = %v, want 30s", cfg.PingInterval())
	}
}

func TestLoadUpstreamRejectsZeroAttempts(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "wss://feed.example.com/ws")
	t.Setenv("UPSTREAM_MAX_RECONNECT_ATTEMPTS", "0")

	if _, err := LoadUpstream(); err == nil {
		t.Fatal("LoadUpstream() expected validation error, got nil")
	}
}

func TestLoadStreamAndRetentionDefaults(t *testing.T) {
	st, err := LoadStream()
	if err != nil {
		t.Fatalf("LoadStream() error = %v", err)
	}
	if st.PingIntervalMS != 30000 {
		t.Fatalf("PingIntervalMS = %d, want 30000", st.PingIntervalMS)
	}
	rt, err := LoadRetention()
	if err != nil {
		t.Fatalf("LoadRetention() error = %v", err)
	}
	if rt.CleanupIntervalMin != 60 || rt.Last20Limit != 3 {
		t.Fatalf("unexpected retention config: %+v", rt)
	}
}

func TestLoadNotifyDefaults(t *testing.T) {
	cfg, err := LoadNotify()
	if err != nil {
		t.Fatalf("LoadNotify() error = %v", err)
	}
	if cfg.Enabled || cfg.MinPriority != "high" || cfg.Workers != 2 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadNotifyRejectsUnknownPriority(t *testing.T) {
	t.Setenv("NOTIFY_MIN_PRIORITY", "urgent")

	if _, err := LoadNotify(); err == nil {
		t.Fatal("LoadNotify() expected error, got nil")
	}
}
