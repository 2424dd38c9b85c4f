package firestore

import (
	"context"
	"errors"
	"testing"

	"kahramana.bh/site/internal/platform/config"
)

func TestClientAfterCloseFails(t *testing.T) {
	p := NewProvider(config.FirestoreConfig{ProjectID: "kahramana"})
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := p.Client(context.Background()); !errors.Is(err, ErrProviderClosed) {
		t.Fatalf("expected ErrProviderClosed, got %v", err)
	}
}

func TestEmulatorHostPrefersConfig(t *testing.T) {
	t.Setenv(envEmulatorHost, "env-host:8080")
	p := NewProvider(config.FirestoreConfig{EmulatorHost: " cfg-host:9090 "})
	if got := p.emulatorHost(); got != "cfg-host:9090" {
		t.Fatalf("unexpected emulator host %q", got)
	}
	p = NewProvider(config.FirestoreConfig{})
	if got := p.emulatorHost(); got != "env-host:8080" {
		t.Fatalf("expected env fallback, got %q", got)
	}
}
