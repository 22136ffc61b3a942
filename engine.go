// Package acmerenew wires the renewal engine's components (C1-C11) into a
// running Engine, following the teacher's own New(...)/SetupX(...) wiring
// shape in restinpieces.go — a flat sequence of Setup helpers populating
// one struct, rather than a DI container.
package acmerenew

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"

	"github.com/caasmo/acmerenew/acmeclient"
	"github.com/caasmo/acmerenew/authorize"
	"github.com/caasmo/acmerenew/backup"
	"github.com/caasmo/acmerenew/certcache"
	"github.com/caasmo/acmerenew/config"
	"github.com/caasmo/acmerenew/notify"
	"github.com/caasmo/acmerenew/notify/mail"
	"github.com/caasmo/acmerenew/plugin"
	"github.com/caasmo/acmerenew/registry"
	regcrawshaw "github.com/caasmo/acmerenew/registry/crawshaw"
	regzombiezen "github.com/caasmo/acmerenew/registry/zombiezen"
	"github.com/caasmo/acmerenew/renew"
	"github.com/caasmo/acmerenew/scheduler"
	"github.com/caasmo/acmerenew/scope"
	"github.com/caasmo/acmerenew/taskscheduler"

	crawshawPool "crawshaw.io/sqlite/sqlitex"
	zombiezenPool "zombiezen.com/go/sqlite/sqlitex"
)

// Engine bundles every constructed component for a single process run.
type Engine struct {
	Config        *config.Provider
	Logger        *slog.Logger
	Registry      *registry.Registry
	PluginReg     *plugin.Registry
	Services      *scope.Services
	Driver        *renew.Driver
	Scheduler     *scheduler.Scheduler
	TaskScheduler taskscheduler.TaskScheduler
	Backup        *backup.Litestream

	zombiezenPool *zombiezenPool.Pool
	crawshawPool  *crawshawPool.Pool
}

// New builds an Engine from a loaded, validated Config, registering the
// ACME account during construction. ctx is passed on to
// acmeclient.NewClient, which does not use it to bound the registration.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	e := &Engine{
		Config: config.NewProvider(cfg),
		Logger: logger,
	}

	regStore, err := e.setupRegistryStore(cfg)
	if err != nil {
		return nil, err
	}
	e.Registry = registry.New(regStore)

	e.PluginReg = plugin.NewRegistry()
	if err := e.setupPlugins(cfg); err != nil {
		return nil, err
	}

	acmeClient, err := e.setupAcmeClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	e.Services = &scope.Services{
		Registry: e.PluginReg,
		Acme:     acmeClient,
		Logger:   logger,
		Input:    nil,
	}

	authDriver := authorize.New(acmeClient, plugin.Unattended)

	certs, err := certcache.New(acmeClient)
	if err != nil {
		return nil, fmt.Errorf("acmerenew: failed to build certificate cache: %w", err)
	}

	e.TaskScheduler = taskscheduler.NewCron()

	e.Driver = renew.New(e.Services, authDriver, certs, plugin.Unattended, e.TaskScheduler)

	notifier := e.setupNotifier(cfg)
	e.Scheduler = scheduler.New(e.Registry, e.Driver, notifier, logger, cfg.Scheduler.Interval.Duration)

	if cfg.Backup.Enabled {
		b, err := backup.NewLitestream(e.Config, logger)
		if err != nil {
			return nil, fmt.Errorf("acmerenew: failed to set up backup: %w", err)
		}
		e.Backup = b
	}

	return e, nil
}

// setupRegistryStore opens the configured SQLite driver and builds the
// matching registry.Store backend (§10).
func (e *Engine) setupRegistryStore(cfg *config.Config) (registry.Store, error) {
	switch cfg.Store.Driver {
	case "crawshaw":
		pool, err := NewCrawshawPool(cfg.Store.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("acmerenew: %w", err)
		}
		e.crawshawPool = pool
		return regcrawshaw.New(pool)
	default: // "zombiezen"
		pool, err := NewZombiezenPool(cfg.Store.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("acmerenew: %w", err)
		}
		e.zombiezenPool = pool
		return regzombiezen.New(pool)
	}
}

// setupPlugins registers the default target/validation/store/installation
// factories shipped with this module (§4.1).
func (e *Engine) setupPlugins(cfg *config.Config) error {
	e.PluginReg.RegisterTarget(plugin.ManualTargetFactory{})

	e.PluginReg.RegisterValidation(plugin.HTTP01Factory{Webroot: cfg.Validation.Webroot})
	if cfg.Validation.CloudflareAPIToken != "" {
		e.PluginReg.RegisterValidation(plugin.DNS01CloudflareFactory{APIToken: cfg.Validation.CloudflareAPIToken})
	}

	e.PluginReg.RegisterStore(plugin.PEMFileStoreFactory{Dir: cfg.Store.CentralSslStore})
	if e.zombiezenPool == nil {
		pool, err := NewZombiezenPool(cfg.Store.DatabasePath)
		if err != nil {
			return fmt.Errorf("acmerenew: failed to open sqlite store pool: %w", err)
		}
		e.zombiezenPool = pool
	}
	conn, err := e.zombiezenPool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("acmerenew: failed to get sqlite store connection: %w", err)
	}
	err = zombiezenPool.ExecuteScript(conn, plugin.SQLiteStoreSchema, nil)
	e.zombiezenPool.Put(conn)
	if err != nil {
		return fmt.Errorf("acmerenew: failed to create sqlite store schema: %w", err)
	}
	e.PluginReg.RegisterStore(plugin.SQLiteStoreFactory{Pool: e.zombiezenPool})

	e.PluginReg.RegisterInstallation(plugin.ScriptInstallationFactory{})
	e.PluginReg.RegisterInstallation(plugin.NewNullInstallationFactory())

	return nil
}

// setupAcmeClient registers (or re-registers) the account key against the
// configured CA directory and builds the ACME client wrapper (C4).
func (e *Engine) setupAcmeClient(ctx context.Context, cfg *config.Config) (*acmeclient.Client, error) {
	key, err := loadOrGenerateAccountKey(cfg)
	if err != nil {
		return nil, fmt.Errorf("acmerenew: failed to load account key: %w", err)
	}

	user := &acmeclient.User{Email: cfg.Acme.Email, PrivateKey: key}
	client, err := acmeclient.NewClient(ctx, cfg.Acme.DirectoryURL, user)
	if err != nil {
		return nil, fmt.Errorf("acmerenew: failed to build ACME client: %w", err)
	}
	return client, nil
}

// loadOrGenerateAccountKey parses cfg.Acme.AccountPrivateKeyPEM if set, or
// generates a fresh P-256 key so a first run can bootstrap an account.
func loadOrGenerateAccountKey(cfg *config.Config) (*ecdsa.PrivateKey, error) {
	if cfg.Acme.AccountPrivateKeyPEM == "" {
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}
	block, _ := pem.Decode([]byte(cfg.Acme.AccountPrivateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("account private key is not valid PEM")
	}
	return x509.ParseECPrivateKey(block.Bytes)
}

func (e *Engine) setupNotifier(cfg *config.Config) notify.Notifier {
	if cfg.Notify.Host == "" {
		return notify.NewNilNotifier()
	}
	return mail.New(cfg.Notify, cfg.Acme.Email)
}

// Start brings up the scheduler loop and, if configured, the backup
// process. It mirrors the teacher's daemon-registration shape in
// restinpieces.go, minus the HTTP server that has no place in this
// domain.
func (e *Engine) Start(ctx context.Context) error {
	if e.Backup != nil {
		if err := e.Backup.Start(); err != nil {
			return fmt.Errorf("acmerenew: failed to start backup: %w", err)
		}
	}
	e.Scheduler.Start(ctx)
	return nil
}

// Stop gracefully shuts down the scheduler and backup process.
func (e *Engine) Stop(ctx context.Context) error {
	var firstErr error
	if err := e.Scheduler.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if e.Backup != nil {
		if err := e.Backup.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.zombiezenPool != nil {
		if err := e.zombiezenPool.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.crawshawPool != nil {
		if err := e.crawshawPool.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
