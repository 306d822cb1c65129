package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadServiceConfigDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "config.toml")
	content := `
device_name = "kitchen-node"
service_type = "_sensors._udp."
port = 4820
advertise = false
verbose = true
	`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DeviceName != "kitchen-node" {
		t.Fatalf("unexpected device name: %q", cfg.DeviceName)
	}
	if cfg.ServiceType != "_sensors._udp." {
		t.Fatalf("unexpected service type: %q", cfg.ServiceType)
	}
	if cfg.Port != 4820 {
		t.Fatalf("unexpected port: %d", cfg.Port)
	}
	if cfg.Advertise {
		t.Fatalf("expected advertising disabled")
	}
	if !cfg.Verbose {
		t.Fatalf("expected verbose logging enabled")
	}
	// Keys absent from the file keep their defaults.
	if cfg.Domain != "" {
		t.Fatalf("unexpected domain: %q", cfg.Domain)
	}
}

func TestLoadServiceConfigPartialKeepsDefaults(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`device_name = "porch-node"`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	want := defaultServiceConfig()
	if cfg.DeviceName != "porch-node" {
		t.Fatalf("unexpected device name: %q", cfg.DeviceName)
	}
	if cfg.ServiceType != want.ServiceType || cfg.Port != want.Port || !cfg.Advertise {
		t.Fatalf("defaults not preserved: %+v", cfg)
	}
}

func TestLoadServiceConfigRejectsBadServiceType(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`service_type = "not-a-service"`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := loadServiceConfig(path); err == nil {
		t.Fatal("expected validation error")
	}
}
