package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/backkem/dscv/pkg/discovery"
	"github.com/backkem/dscv/pkg/session"
	"github.com/backkem/dscv/pkg/transport"
)

// config.toml key mapping to responder settings.
type fileConfig struct {
	DeviceName  string `toml:"device_name"`
	ServiceType string `toml:"service_type"`
	Domain      string `toml:"domain"`
	Port        int    `toml:"port"`
	Advertise   bool   `toml:"advertise"`
	Verbose     bool   `toml:"verbose"`
}

type serviceConfig struct {
	DeviceName  string
	ServiceType discovery.ServiceType
	Domain      string
	Port        int
	Advertise   bool
	Verbose     bool
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		DeviceName:  "dscv-responder",
		ServiceType: session.DefaultServiceType,
		Port:        transport.DefaultPort,
		Advertise:   true,
	}
}

// loadServiceConfig overlays config.toml values on the defaults. Keys absent
// from the file keep their default.
func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load responder config: %w", err)
	}

	if meta.IsDefined("device_name") {
		cfg.DeviceName = strings.TrimSpace(raw.DeviceName)
	}
	if meta.IsDefined("service_type") {
		cfg.ServiceType = discovery.ServiceType(strings.TrimSpace(raw.ServiceType))
	}
	if meta.IsDefined("domain") {
		cfg.Domain = strings.TrimSpace(raw.Domain)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("advertise") {
		cfg.Advertise = raw.Advertise
	}
	if meta.IsDefined("verbose") {
		cfg.Verbose = raw.Verbose
	}

	if err := cfg.ServiceType.Validate(); err != nil {
		return serviceConfig{}, fmt.Errorf("load responder config: %w", err)
	}
	return cfg, nil
}
