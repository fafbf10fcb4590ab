package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"casino-relay/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestInitWritesToFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")
	Init(config.LogConfig{Level: "debug", File: path, MaxMB: 1, Service: "relay-test"})
	defer func() { _ = Close() }()

	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("global level = %v, want debug", zerolog.GlobalLevel())
	}
	log.Info().Str("table_id", "701").Msg("upstream_connected")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(raw)
	if !strings.Contains(line, `"service":"relay-test"`) || !strings.Contains(line, "upstream_connected") {
		t.Fatalf("unexpected log line: %s", line)
	}
}

func TestInitFallsBackToInfoOnBadLevel(t *testing.T) {
	Init(config.LogConfig{Level: "nonsense"})
	defer func() { _ = Close() }()

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("global level = %v, want info", zerolog.GlobalLevel())
	}
	if Writer() != os.Stdout {
		t.Fatal("expected stdout writer without a log file")
	}
}
