package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, expands, and validates configuration from a YAML file.
// ${VAR} references are replaced from the environment before parsing, so
// secrets like the API key never need to live in the file itself.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: check the path or run with --config", absPath)
	}

	if err := VerifyIntegrity(absPath, data); err != nil {
		return nil, err
	}

	expanded, err := expandEnv(string(data))
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// expandEnv substitutes ${VAR} references. Unset variables are an error
// rather than an empty string, so a missing secret fails fast at load time.
func expandEnv(in string) (string, error) {
	var missing []string
	out := envVarPattern.ReplaceAllStringFunc(in, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		val, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return match
		}
		return val
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unset environment variables referenced in config: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		return fmt.Errorf("service.name must not be empty")
	}
	if cfg.Gateway.Listen == "" {
		return fmt.Errorf("gateway.listen must not be empty")
	}
	if cfg.API.Listen == "" {
		return fmt.Errorf("api.listen must not be empty")
	}
	if cfg.Gateway.ForwardTimeout <= 0 {
		return fmt.Errorf("gateway.forward_timeout must be positive")
	}

	maxBody, err := parseMaxBodySize(cfg.Gateway.MaxBodySize)
	if err != nil {
		return fmt.Errorf("gateway.max_body_size %q: %w", cfg.Gateway.MaxBodySize, err)
	}
	cfg.Gateway.MaxBodyBytes = maxBody

	u, err := url.Parse(cfg.Registry.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("registry.url %q is not an absolute URL", cfg.Registry.URL)
	}
	if cfg.Registry.Timeout <= 0 {
		return fmt.Errorf("registry.timeout must be positive")
	}

	if cfg.Alerts.Path == "" {
		return fmt.Errorf("alerts.path must not be empty")
	}
	if cfg.Alerts.Retention <= 0 {
		return fmt.Errorf("alerts.retention must be positive")
	}
	if cfg.Alerts.MaxRows <= 0 {
		return fmt.Errorf("alerts.max_rows must be positive")
	}

	return nil
}

// parseMaxBodySize parses size strings like "1MB", "512KB", or "2048576".
// Returns DefaultMaxBodySize when empty.
func parseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)

	switch {
	case strings.HasSuffix(upper, "KB"):
		multiplier = 1024
		upper = strings.TrimSuffix(upper, "KB")
	case strings.HasSuffix(upper, "MB"):
		multiplier = 1024 * 1024
		upper = strings.TrimSuffix(upper, "MB")
	case strings.HasSuffix(upper, "GB"):
		multiplier = 1024 * 1024 * 1024
		upper = strings.TrimSuffix(upper, "GB")
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result < 0 {
		return 0, fmt.Errorf("size too large")
	}
	return result, nil
}
