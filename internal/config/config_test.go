package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIVersion != "2.0" {
		t.Fatalf("APIVersion = %s", cfg.APIVersion)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.RunInterval != 0 {
		t.Fatalf("RunInterval = %v", cfg.RunInterval)
	}
	if cfg.StorageTTL != 30*24*time.Hour {
		t.Fatalf("StorageTTL = %v", cfg.StorageTTL)
	}
	if err := cfg.RequireCredentials(); err == nil {
		t.Fatalf("expected missing credentials error")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("API_KEY", " key ")
	t.Setenv("API_SECRET", "secret")
	t.Setenv("RUN_INTERVAL", "3600")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := load(viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIKey != "key" || cfg.APISecret != "secret" {
		t.Fatalf("credentials = %q/%q", cfg.APIKey, cfg.APISecret)
	}
	if cfg.RunInterval != time.Hour {
		t.Fatalf("RunInterval = %v", cfg.RunInterval)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %s", cfg.LogLevel)
	}
	if err := cfg.RequireCredentials(); err != nil {
		t.Fatalf("RequireCredentials: %v", err)
	}
	if cfg.Redacted().APISecret != "<redacted>" || cfg.APISecret != "secret" {
		t.Fatalf("Redacted leaked or mutated the secret")
	}
}

func TestLoadRejectsInvalidDurations(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "0")
	if _, err := load(viper.New()); err == nil {
		t.Fatalf("expected error for zero request timeout")
	}
}
