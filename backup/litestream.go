// Package backup continuously replicates the renewal registry's SQLite
// file (§9), adapted from the teacher's litestream wrapper so scheduled
// renewals and issued-certificate records survive a host failure between
// scheduler ticks.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/benbjohnson/litestream"
	"github.com/benbjohnson/litestream/file"

	"github.com/caasmo/acmerenew/config"
)

// Litestream handles continuous replication of the registry database.
type Litestream struct {
	configProvider *config.Provider
	logger         *slog.Logger
	db             *litestream.DB
	replica        *litestream.Replica

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownDone chan struct{}
}

// NewLitestream builds a backup process for the configured registry
// database, replicating to Backup.Replica. Callers should check
// Backup.Enabled before constructing one.
func NewLitestream(configProvider *config.Provider, logger *slog.Logger) (*Litestream, error) {
	cfg := configProvider.Get()
	ctx, cancel := context.WithCancel(context.Background())

	db := litestream.NewDB(cfg.Store.DatabasePath)
	db.Logger = logger.With("db", cfg.Store.DatabasePath)

	if err := os.MkdirAll(cfg.Backup.Replica, 0750); err != nil && !os.IsExist(err) {
		cancel()
		return nil, fmt.Errorf("litestream: failed to create replica directory '%s': %w", cfg.Backup.Replica, err)
	}
	absReplicaPath, err := filepath.Abs(cfg.Backup.Replica)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("litestream: failed to get absolute replica path for '%s': %w", cfg.Backup.Replica, err)
	}
	replicaClient := file.NewReplicaClient(absReplicaPath)

	replica := litestream.NewReplica(db, "registry")
	replica.Client = replicaClient
	db.Replicas = append(db.Replicas, replica)

	return &Litestream{
		configProvider: configProvider,
		logger:         logger,
		db:             db,
		replica:        replica,
		ctx:            ctx,
		cancel:         cancel,
		shutdownDone:   make(chan struct{}),
	}, nil
}

// Start begins the continuous backup process in a goroutine. It returns
// an error immediately if initial setup (opening the database or
// starting the replica) fails; otherwise the process continues in the
// background until Stop is called.
func (l *Litestream) Start() error {
	startupErrChan := make(chan error, 1)

	go func() {
		l.logger.Info("litestream: starting continuous backup")

		if err := l.db.Open(); err != nil {
			l.logger.Error("litestream: failed to open database", "error", err)
			close(l.shutdownDone)
			startupErrChan <- err
			return
		}

		if err := l.replica.Start(l.ctx); err != nil {
			l.logger.Error("litestream: failed to start replica", "error", err)
			close(l.shutdownDone)
			startupErrChan <- err
			return
		}

		l.logger.Info("litestream: replication started")
		startupErrChan <- nil

		<-l.ctx.Done()
		l.logger.Info("litestream: received shutdown signal")

		if err := l.replica.Stop(false); err != nil {
			l.logger.Error("litestream: error stopping replica", "error", err)
		}
		if err := l.db.Close(); err != nil {
			l.logger.Error("litestream: error closing database", "error", err)
		}
		close(l.shutdownDone)
	}()

	return <-startupErrChan
}

// Stop gracefully shuts down the backup process.
func (l *Litestream) Stop(ctx context.Context) error {
	l.logger.Info("litestream: stopping")
	l.cancel()

	select {
	case <-l.shutdownDone:
		l.logger.Info("litestream: stopped gracefully")
		return nil
	case <-ctx.Done():
		l.logger.Info("litestream: shutdown timed out")
		return ctx.Err()
	}
}
