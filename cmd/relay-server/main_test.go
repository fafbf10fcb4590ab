package main

import (
	"context"
	"testing"

	"casino-relay/internal/config"
)

func TestOpenStoresWithoutDSNUsesMemory(t *testing.T) {
	deps, closeFn, err := openStores(context.Background(), config.ServerConfig{})
	if err != nil {
		t.Fatalf("open stores: %v", err)
	}
	defer closeFn()
	if deps.Results != nil || deps.Games != nil {
		t.Fatalf("expected in-memory defaults, got %+v", deps)
	}
}

func TestOpenStoresRejectsBadDSN(t *testing.T) {
	if _, _, err := openStores(context.Background(), config.ServerConfig{PostgresDSN: "postgres://%zz"}); err == nil {
		t.Fatal("expected error for malformed dsn")
	}
}
