package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptyConfig is returned for a config file with no YAML document.
var ErrEmptyConfig = errors.New("config file is empty")

// Load reads a YAML config file. See Parse.
func Load(path string) (*GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config text after expanding ${VAR} and
// ${VAR:-default} from the environment. Keys that match no config field
// are an error.
func Parse(data []byte) (*GatewayConfig, error) {
	expanded := os.Expand(string(data), expandVar)

	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)

	var cfg GatewayConfig
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyConfig
		}
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &cfg, nil
}

// expandVar resolves NAME or NAME:-default. An empty variable takes the
// default.
func expandVar(name string) string {
	key, def, hasDefault := strings.Cut(name, ":-")
	if v := os.Getenv(key); v != "" || !hasDefault {
		return v
	}
	return def
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*GatewayConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*GatewayConfig, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
