package config

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// LoadFile reads and validates a plaintext TOML config file, merging it
// over NewDefaultConfig. Intended for local/dev use; production
// deployments should prefer LoadFromStore (§9: secrets belong encrypted at
// rest, not in a plaintext file).
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	cfg := NewDefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal %s: %w", path, err)
	}
	cfg.Source = "file:" + path

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromStore decrypts and unmarshals the latest config recorded in an
// age-encrypted SecureStore, following config_load.go's LoadFromDb shape.
func LoadFromStore(store SecureStore) (*Config, error) {
	plaintext, err := store.Latest(ScopeApplication)
	if err != nil {
		return nil, fmt.Errorf("config: failed to fetch latest config: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("config: fetched configuration is empty")
	}

	cfg := NewDefaultConfig()
	if err := toml.Unmarshal(plaintext, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal stored config: %w", err)
	}
	cfg.Source = "db:" + ScopeApplication

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes cfg back to TOML, for Save/Reload round-tripping.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: failed to marshal config: %w", err)
	}
	return data, nil
}
