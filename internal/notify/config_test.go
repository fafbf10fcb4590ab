package notify

import (
	"os"
	"path/filepath"
	"testing"

	"casino-relay/internal/config"
	"casino-relay/internal/results"
)

func TestConfigFromAppFiltersTargets(t *testing.T) {
	cfg, err := ConfigFromApp(config.NotifyConfig{
		Enabled:     true,
		Workers:     2,
		RetryMax:    3,
		RetryBaseMS: 200,
		MinPriority: "critical",
		TargetsJSON: `[
		  {"platform":"Discord","endpoint":" https://a ","scope_type":"game","scope_value":"crazy-time","enabled":true},
		  {"platform":"feishu","endpoint":"","enabled":true},
		  {"platform":"discord","endpoint":"https://b","scope_type":"room","scope_value":"x","enabled":true},
		  {"platform":"discord","endpoint":"https://c","scope_type":"table","enabled":true},
		  {"platform":"discord","endpoint":"https://d","min_priority":"urgent","enabled":true},
		  {"platform":"feishu","endpoint":"https://e","enabled":false},
		  {"platform":"feishu","endpoint":"https://f","min_priority":"HIGH","event_allowlist":[" Result "],"enabled":true}
		]`,
	})
	if err != nil {
		t.Fatalf("config parse failed: %v", err)
	}
	if cfg.MinPriority != results.PriorityCritical {
		t.Fatalf("unexpected default min priority: %s", cfg.MinPriority)
	}
	if len(cfg.Targets) != 2 {
		t.Fatalf("expected 2 targets, got %+v", cfg.Targets)
	}
	first, second := cfg.Targets[0], cfg.Targets[1]
	if first.Platform != "discord" || first.Endpoint != "https://a" || first.ScopeType != ScopeGame {
		t.Fatalf("unexpected first target: %+v", first)
	}
	if second.ScopeType != ScopeAll || second.MinPriority != results.PriorityHigh || second.EventAllowlist[0] != EventResult {
		t.Fatalf("unexpected second target: %+v", second)
	}
}

func TestConfigFromAppUsesPathFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.json")
	if err := os.WriteFile(path, []byte(`[{"platform":"discord","endpoint":"https://from-file","enabled":true}]`), 0o600); err != nil {
		t.Fatalf("write targets: %v", err)
	}
	cfg, err := ConfigFromApp(config.NotifyConfig{
		Enabled:     true,
		TargetsPath: path,
		TargetsJSON: `[{"platform":"discord","endpoint":"https://from-env","enabled":true}]`,
	})
	if err != nil {
		t.Fatalf("config parse failed: %v", err)
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0].Endpoint != "https://from-file" {
		t.Fatalf("expected file target, got %+v", cfg.Targets)
	}
	if cfg.ConfigPath != path {
		t.Fatalf("expected config path to be kept for reload, got %q", cfg.ConfigPath)
	}
}

func TestConfigFromAppErrors(t *testing.T) {
	if _, err := ConfigFromApp(config.NotifyConfig{Enabled: true, TargetsPath: filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Fatal("expected read error for missing targets file")
	}
	if _, err := ConfigFromApp(config.NotifyConfig{Enabled: true, TargetsJSON: `{"not":"a list"}`}); err == nil {
		t.Fatal("expected parse error for non-array targets")
	}
}

func TestConfigFromAppDisabledSkipsTargets(t *testing.T) {
	cfg, err := ConfigFromApp(config.NotifyConfig{TargetsJSON: `not json`})
	if err != nil {
		t.Fatalf("disabled config should not parse targets: %v", err)
	}
	if cfg.Enabled || len(cfg.Targets) != 0 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
