// Package config implements C9: configuration loading, validation, atomic
// hot-swap, and optional at-rest encryption, grounded on config/config.go's
// Provider/atomic.Value pattern and config/secure.go's age-backed store.
package config

import (
	"sync/atomic"
)

// Provider holds the current Config and allows atomic, concurrency-safe
// updates (e.g. on SIGHUP), mirroring the teacher's own config.Provider.
type Provider struct {
	value atomic.Value // holds *Config
}

// NewProvider creates a Provider seeded with the given Config. It panics if
// cfg is nil, matching the teacher's fail-fast constructor contract.
func NewProvider(cfg *Config) *Provider {
	if cfg == nil {
		panic("config: initial config cannot be nil")
	}
	p := &Provider{}
	p.value.Store(cfg)
	return p
}

// Get returns the current configuration snapshot. Safe for concurrent use.
func (p *Provider) Get() *Config {
	return p.value.Load().(*Config)
}

// Update atomically swaps in a new configuration. The caller is
// responsible for validating newConfig first.
func (p *Provider) Update(newConfig *Config) {
	p.value.Store(newConfig)
}

// Acme holds the CA account and directory settings (§4.4/§6).
type Acme struct {
	DirectoryURL string
	Email        string
	// AccountPrivateKeyPEM is the ACME account's EC256 private key, PEM
	// encoded. Populated from the encrypted config store, never from a
	// plaintext TOML file in production use.
	AccountPrivateKeyPEM string
}

// Store holds the default certificate store coordinates (§3/§6).
type Store struct {
	// Name names a StorePluginFactory ("sqlite" or "pemfile"). It is
	// checked by Validate only; scope resolution picks the store from a
	// renewal's own CertificateStore (defaulting to "sqlite") and does not
	// read this field.
	Name string
	// CentralSslStore is the directory the "pemfile" store plugin writes
	// to. A renewal record's own CentralSslStore field is not consulted.
	CentralSslStore string
	// DatabasePath is the SQLite file backing the registry and, by
	// default, the "sqlite" store plugin and SecureStore.
	DatabasePath string
	// Driver selects which SQLite driver backs DatabasePath: "zombiezen"
	// (default) or "crawshaw" (§9/§10).
	Driver string
}

// SchedulerConfig controls the C7 scheduler loop's tick interval, mirroring
// the shape (but not the job-queue semantics) of the teacher's own
// config.Scheduler.
type SchedulerConfig struct {
	Interval Duration
}

// ValidationConfig holds default validation plugin settings consumed by
// scope construction when a renewal record leaves a field unset.
type ValidationConfig struct {
	Webroot          string // http-01 default webroot
	CloudflareAPIToken string
}

// Notify holds the SMTP notification sink's settings (§4.10), mirroring
// config.Smtp's field shape.
type Notify struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromName    string
	FromAddress string
	AuthMethod  string // "plain", "login", "cram-md5", or "none"
	UseTLS      bool
	UseStartTLS bool
}

// Backup holds the litestream continuous-backup settings (§9) adapted from
// the teacher's backup package.
type Backup struct {
	Enabled      bool
	Replica      string // local directory path the replica is written to
	SyncInterval Duration
}

// Config is the complete set of settings for one acmerenew process (§6).
// Source is populated by Load to record where the config came from
// ("file:<path>" or "db:<scope>"), for diagnostic logging only.
type Config struct {
	Acme       Acme
	Store      Store
	Scheduler  SchedulerConfig
	Validation ValidationConfig
	Notify     Notify
	Backup     Backup

	Source string `toml:"-"`
}
