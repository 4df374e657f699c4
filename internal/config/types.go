package config

import "time"

// Config represents the complete porter configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	API      APIConfig      `yaml:"api"`
	Registry RegistryConfig `yaml:"registry"`
	Alerts   AlertsConfig   `yaml:"alerts"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LockPath  string `yaml:"lock_path"`
}

// GatewayConfig defines the public webhook listener.
type GatewayConfig struct {
	Listen         string        `yaml:"listen"`
	ForwardTimeout time.Duration `yaml:"forward_timeout"`
	MaxBodySize    string        `yaml:"max_body_size,omitempty"`
	TrustedProxies []string      `yaml:"trusted_proxies,omitempty"`

	// MaxBodyBytes is MaxBodySize parsed to bytes. Populated by Load.
	MaxBodyBytes int64 `yaml:"-"`
}

// APIConfig defines the administrative API listener.
type APIConfig struct {
	Listen string `yaml:"listen"`
	// APIKey is an optional bearer token gating /api routes.
	// Empty disables the check (the console's identity layer sits in front).
	APIKey string `yaml:"api_key,omitempty"`
}

// RegistryConfig points at the core service's plugin registry.
type RegistryConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// AlertsConfig defines the live alerts store.
type AlertsConfig struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
	MaxRows   int           `yaml:"max_rows"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "porter",
			LogLevel:  "info",
			LogFormat: "json",
			LockPath:  "./data/porter.pid",
		},
		Gateway: GatewayConfig{
			Listen:         "0.0.0.0:8080",
			ForwardTimeout: 15 * time.Second,
			MaxBodyBytes:   DefaultMaxBodySize,
		},
		API: APIConfig{
			Listen: "127.0.0.1:8081",
		},
		Registry: RegistryConfig{
			URL:     "http://core:5100/api/plugins",
			Timeout: 5 * time.Second,
		},
		Alerts: AlertsConfig{
			Path:      "./data/alerts.db",
			Retention: 24 * time.Hour,
			MaxRows:   10000,
		},
	}
}

// DefaultMaxBodySize caps inbound webhook bodies at 1 MB.
const DefaultMaxBodySize = 1048576
