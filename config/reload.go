package config

import (
	"fmt"
	"log/slog"
)

// Reload returns a closure that re-fetches, validates, and hot-swaps the
// Provider's config from store, following config/reload.go's Reload
// closure shape. Intended to be wired to SIGHUP.
func Reload(store SecureStore, provider *Provider, logger *slog.Logger) func() error {
	return func() error {
		cfg, err := LoadFromStore(store)
		if err != nil {
			return fmt.Errorf("config: reload failed: %w", err)
		}
		provider.Update(cfg)
		logger.Info("configuration reloaded", "source", cfg.Source)
		return nil
	}
}
