package config

import "time"

// DefaultSchedulerInterval mirrors the teacher's named-duration-constant
// convention (config.DefaultReadTimeout and friends): a tick rate sensible
// for a background renewal process that need not react within seconds.
const DefaultSchedulerInterval = 1 * time.Hour

// NewDefaultConfig returns a Config with conservative defaults, the base a
// loaded TOML file or encrypted store record is merged over.
func NewDefaultConfig() *Config {
	return &Config{
		Acme: Acme{
			DirectoryURL: "https://acme-v02.api.letsencrypt.org/directory",
		},
		Store: Store{
			Name:         "sqlite",
			Driver:       "zombiezen",
			DatabasePath: "acmerenew.db",
		},
		Scheduler: SchedulerConfig{
			Interval: Duration{Duration: DefaultSchedulerInterval},
		},
		Notify: Notify{
			Port:        587,
			AuthMethod:  "plain",
			UseStartTLS: true,
		},
		Backup: Backup{
			SyncInterval: Duration{Duration: 1 * time.Minute},
		},
	}
}
