// Package zombiezen implements registry.Store on top of
// zombiezen.com/go/sqlite, the default SQLite driver (§9, §10). The SQL
// shape (single-row upsert via ON CONFLICT(...) DO UPDATE) is grounded on
// db/zombiezen/acme.go's Save method.
package zombiezen

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/caasmo/acmerenew/model"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Schema creates the scheduled_renewals table if absent.
const Schema = `
CREATE TABLE IF NOT EXISTS scheduled_renewals (
	identity TEXT PRIMARY KEY,
	primary_host TEXT NOT NULL,
	alternative_names TEXT NOT NULL DEFAULT '[]',
	target_plugin TEXT NOT NULL DEFAULT '',
	validation_plugin TEXT NOT NULL DEFAULT '',
	challenge_type TEXT NOT NULL DEFAULT '',
	installation_plugins TEXT NOT NULL DEFAULT '[]',
	ssl_port INTEGER NOT NULL DEFAULT 0,
	ssl_ip_address TEXT NOT NULL DEFAULT '',
	validation_port INTEGER NOT NULL DEFAULT 0,
	last_run TEXT NOT NULL DEFAULT '',
	due_date TEXT NOT NULL DEFAULT '',
	is_new INTEGER NOT NULL DEFAULT 1,
	updated INTEGER NOT NULL DEFAULT 0,
	test_mode INTEGER NOT NULL DEFAULT 0,
	warmup INTEGER NOT NULL DEFAULT 0,
	script_path TEXT NOT NULL DEFAULT '',
	script_parameters TEXT NOT NULL DEFAULT '',
	central_ssl_store TEXT NOT NULL DEFAULT '',
	certificate_store TEXT NOT NULL DEFAULT '',
	keep_existing INTEGER,
	last_thumbprint TEXT NOT NULL DEFAULT '',
	no_task_scheduler INTEGER NOT NULL DEFAULT 0
);`

// Store implements registry.Store over a zombiezen sqlitex.Pool.
type Store struct {
	pool *sqlitex.Pool
}

// New wraps an already-opened pool and ensures the schema exists.
func New(pool *sqlitex.Pool) (*Store, error) {
	conn, err := pool.Take(context.Background())
	if err != nil {
		return nil, fmt.Errorf("registry/zombiezen: failed to get db connection: %w", err)
	}
	defer pool.Put(conn)
	if err := sqlitex.ExecuteScript(conn, Schema, nil); err != nil {
		return nil, fmt.Errorf("registry/zombiezen: failed to create schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Find(ctx context.Context, identity string) (*model.ScheduledRenewal, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry/zombiezen: failed to get db connection: %w", err)
	}
	defer s.pool.Put(conn)

	var rec *model.ScheduledRenewal
	err = sqlitex.Execute(conn,
		`SELECT identity, primary_host, alternative_names, target_plugin, validation_plugin,
			challenge_type, installation_plugins, ssl_port, ssl_ip_address, validation_port,
			last_run, due_date, is_new, updated, test_mode, warmup, script_path,
			script_parameters, central_ssl_store, certificate_store, keep_existing,
			last_thumbprint, no_task_scheduler
		FROM scheduled_renewals WHERE identity = ?;`,
		&sqlitex.ExecOptions{
			Args: []interface{}{identity},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				r, err := scanRow(stmt)
				if err != nil {
					return err
				}
				rec = r
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("registry/zombiezen: find failed: %w", err)
	}
	return rec, nil
}

func (s *Store) Upsert(ctx context.Context, r model.ScheduledRenewal) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("registry/zombiezen: failed to get db connection: %w", err)
	}
	defer s.pool.Put(conn)

	altNames, err := json.Marshal(r.Target.AlternativeNames)
	if err != nil {
		return fmt.Errorf("registry/zombiezen: failed to encode alternative names: %w", err)
	}
	installs, err := json.Marshal(r.Target.InstallationPluginNames)
	if err != nil {
		return fmt.Errorf("registry/zombiezen: failed to encode installation plugins: %w", err)
	}

	err = sqlitex.Execute(conn,
		`INSERT INTO scheduled_renewals (
			identity, primary_host, alternative_names, target_plugin, validation_plugin,
			challenge_type, installation_plugins, ssl_port, ssl_ip_address, validation_port,
			last_run, due_date, is_new, updated, test_mode, warmup, script_path,
			script_parameters, central_ssl_store, certificate_store, keep_existing,
			last_thumbprint, no_task_scheduler
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			alternative_names = excluded.alternative_names,
			target_plugin = excluded.target_plugin,
			validation_plugin = excluded.validation_plugin,
			challenge_type = excluded.challenge_type,
			installation_plugins = excluded.installation_plugins,
			ssl_port = excluded.ssl_port,
			ssl_ip_address = excluded.ssl_ip_address,
			validation_port = excluded.validation_port,
			last_run = excluded.last_run,
			due_date = excluded.due_date,
			is_new = excluded.is_new,
			updated = excluded.updated,
			test_mode = excluded.test_mode,
			warmup = excluded.warmup,
			script_path = excluded.script_path,
			script_parameters = excluded.script_parameters,
			central_ssl_store = excluded.central_ssl_store,
			certificate_store = excluded.certificate_store,
			keep_existing = excluded.keep_existing,
			last_thumbprint = excluded.last_thumbprint,
			no_task_scheduler = excluded.no_task_scheduler;`,
		&sqlitex.ExecOptions{Args: toArgs(r, altNames, installs)})
	if err != nil {
		return fmt.Errorf("registry/zombiezen: upsert failed for %s: %w", r.Target.Identity(), err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, identity string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("registry/zombiezen: failed to get db connection: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM scheduled_renewals WHERE identity = ?;`,
		&sqlitex.ExecOptions{Args: []interface{}{identity}})
	if err != nil {
		return fmt.Errorf("registry/zombiezen: delete failed for %s: %w", identity, err)
	}
	return nil
}

func (s *Store) All(ctx context.Context) ([]model.ScheduledRenewal, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry/zombiezen: failed to get db connection: %w", err)
	}
	defer s.pool.Put(conn)

	var out []model.ScheduledRenewal
	err = sqlitex.Execute(conn,
		`SELECT identity, primary_host, alternative_names, target_plugin, validation_plugin,
			challenge_type, installation_plugins, ssl_port, ssl_ip_address, validation_port,
			last_run, due_date, is_new, updated, test_mode, warmup, script_path,
			script_parameters, central_ssl_store, certificate_store, keep_existing,
			last_thumbprint, no_task_scheduler
		FROM scheduled_renewals;`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				r, err := scanRow(stmt)
				if err != nil {
					return err
				}
				out = append(out, *r)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("registry/zombiezen: list failed: %w", err)
	}
	return out, nil
}

func scanRow(stmt *sqlite.Stmt) (*model.ScheduledRenewal, error) {
	var altNames, installs []string
	if err := json.Unmarshal([]byte(stmt.ColumnText(2)), &altNames); err != nil {
		return nil, fmt.Errorf("registry/zombiezen: failed to decode alternative names: %w", err)
	}
	if err := json.Unmarshal([]byte(stmt.ColumnText(6)), &installs); err != nil {
		return nil, fmt.Errorf("registry/zombiezen: failed to decode installation plugins: %w", err)
	}

	r := &model.ScheduledRenewal{
		Target: model.Target{
			PrimaryHost:             stmt.ColumnText(1),
			AlternativeNames:        altNames,
			TargetPluginName:        stmt.ColumnText(3),
			ValidationPluginName:    stmt.ColumnText(4),
			ChallengeType:           stmt.ColumnText(5),
			InstallationPluginNames: installs,
			SSLPort:                 stmt.ColumnInt(7),
			SSLIPAddress:            stmt.ColumnText(8),
			ValidationPort:          stmt.ColumnInt(9),
		},
		New:              stmt.ColumnInt(12) != 0,
		Updated:          stmt.ColumnInt(13) != 0,
		TestMode:         stmt.ColumnInt(14) != 0,
		Warmup:           stmt.ColumnInt(15) != 0,
		ScriptPath:       stmt.ColumnText(16),
		ScriptParameters: stmt.ColumnText(17),
		CentralSslStore:  stmt.ColumnText(18),
		CertificateStore: stmt.ColumnText(19),
		LastThumbprint:   stmt.ColumnText(21),
		NoTaskScheduler:  stmt.ColumnInt(22) != 0,
	}
	if err := parseTimes(stmt.ColumnText(10), stmt.ColumnText(11), r); err != nil {
		return nil, err
	}
	if stmt.ColumnType(20) != sqlite.TypeNull {
		v := stmt.ColumnInt(20) != 0
		r.KeepExisting = &v
	}
	return r, nil
}
