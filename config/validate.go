package config

import "fmt"

// Validate checks a Config for the minimum coherent settings to run a
// renewal cycle, mirroring config.Validate's "fail loud on load, not mid
// run" philosophy.
func Validate(cfg *Config) error {
	if cfg.Acme.DirectoryURL == "" {
		return fmt.Errorf("config: acme.directory_url must not be empty")
	}
	if cfg.Acme.Email == "" {
		return fmt.Errorf("config: acme.email must not be empty")
	}

	switch cfg.Store.Driver {
	case "zombiezen", "crawshaw":
	default:
		return fmt.Errorf("config: store.driver must be 'zombiezen' or 'crawshaw', got %q", cfg.Store.Driver)
	}
	if cfg.Store.DatabasePath == "" {
		return fmt.Errorf("config: store.database_path must not be empty")
	}

	switch cfg.Store.Name {
	case "sqlite", "pemfile":
	default:
		return fmt.Errorf("config: store.name must be 'sqlite' or 'pemfile', got %q", cfg.Store.Name)
	}
	if cfg.Store.Name == "pemfile" && cfg.Store.CentralSslStore == "" {
		return fmt.Errorf("config: store.central_ssl_store must be set when store.name is 'pemfile'")
	}

	if cfg.Scheduler.Interval.Duration <= 0 {
		return fmt.Errorf("config: scheduler.interval must be positive, got %s", cfg.Scheduler.Interval.Duration)
	}

	if cfg.Backup.Enabled && cfg.Backup.Replica == "" {
		return fmt.Errorf("config: backup.replica must be set when backup.enabled is true")
	}

	return nil
}
