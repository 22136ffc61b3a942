// Package crawshaw implements registry.Store on top of crawshaw.io/sqlite,
// the alternate/legacy driver kept alongside zombiezen per §9/§10. The SQL
// shape mirrors registry/zombiezen, adapted from db/crawshaw's Exec-based
// calling convention (named columns via stmt.GetText/GetInt64 rather than
// positional stmt.ColumnText).
package crawshaw

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"

	"github.com/caasmo/acmerenew/model"
)

const timeLayout = time.RFC3339

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

// Store implements registry.Store over a crawshaw sqlitex.Pool.
type Store struct {
	pool *sqlitex.Pool
}

// New wraps an already-opened pool and ensures the schema exists.
func New(pool *sqlitex.Pool) (*Store, error) {
	conn := pool.Get(nil)
	if conn == nil {
		return nil, fmt.Errorf("registry/crawshaw: failed to get db connection")
	}
	defer pool.Put(conn)
	if err := sqlitex.ExecScript(conn, Schema); err != nil {
		return nil, fmt.Errorf("registry/crawshaw: failed to create schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Find(ctx context.Context, identity string) (*model.ScheduledRenewal, error) {
	conn := s.pool.Get(ctx)
	if conn == nil {
		return nil, fmt.Errorf("registry/crawshaw: failed to get db connection")
	}
	defer s.pool.Put(conn)

	var rec *model.ScheduledRenewal
	err := sqlitex.Exec(conn,
		`SELECT identity, primary_host, alternative_names, target_plugin, validation_plugin,
			challenge_type, installation_plugins, ssl_port, ssl_ip_address, validation_port,
			last_run, due_date, is_new, updated, test_mode, warmup, script_path,
			script_parameters, central_ssl_store, certificate_store, keep_existing,
			last_thumbprint, no_task_scheduler
		FROM scheduled_renewals WHERE identity = ?;`,
		func(stmt *sqlite.Stmt) error {
			r, err := scanRow(stmt)
			if err != nil {
				return err
			}
			rec = r
			return nil
		}, identity)
	if err != nil {
		return nil, fmt.Errorf("registry/crawshaw: find failed: %w", err)
	}
	return rec, nil
}

func (s *Store) Upsert(ctx context.Context, r model.ScheduledRenewal) error {
	conn := s.pool.Get(ctx)
	if conn == nil {
		return fmt.Errorf("registry/crawshaw: failed to get db connection")
	}
	defer s.pool.Put(conn)

	altNames, err := json.Marshal(r.Target.AlternativeNames)
	if err != nil {
		return fmt.Errorf("registry/crawshaw: failed to encode alternative names: %w", err)
	}
	installs, err := json.Marshal(r.Target.InstallationPluginNames)
	if err != nil {
		return fmt.Errorf("registry/crawshaw: failed to encode installation plugins: %w", err)
	}

	var keepExisting interface{}
	if r.KeepExisting != nil {
		keepExisting = *r.KeepExisting
	}

	err = sqlitex.Exec(conn,
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
		nil,
		r.Target.Identity(),
		r.Target.PrimaryHost,
		string(altNames),
		r.Target.TargetPluginName,
		r.Target.ValidationPluginName,
		r.Target.ChallengeType,
		string(installs),
		r.Target.SSLPort,
		r.Target.SSLIPAddress,
		r.Target.ValidationPort,
		formatTime(r.LastRun),
		formatTime(r.DueDate),
		r.New,
		r.Updated,
		r.TestMode,
		r.Warmup,
		r.ScriptPath,
		r.ScriptParameters,
		r.CentralSslStore,
		r.CertificateStore,
		keepExisting,
		r.LastThumbprint,
		r.NoTaskScheduler,
	)
	if err != nil {
		return fmt.Errorf("registry/crawshaw: upsert failed for %s: %w", r.Target.Identity(), err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, identity string) error {
	conn := s.pool.Get(ctx)
	if conn == nil {
		return fmt.Errorf("registry/crawshaw: failed to get db connection")
	}
	defer s.pool.Put(conn)

	err := sqlitex.Exec(conn, `DELETE FROM scheduled_renewals WHERE identity = ?;`, nil, identity)
	if err != nil {
		return fmt.Errorf("registry/crawshaw: delete failed for %s: %w", identity, err)
	}
	return nil
}

func (s *Store) All(ctx context.Context) ([]model.ScheduledRenewal, error) {
	conn := s.pool.Get(ctx)
	if conn == nil {
		return nil, fmt.Errorf("registry/crawshaw: failed to get db connection")
	}
	defer s.pool.Put(conn)

	var out []model.ScheduledRenewal
	err := sqlitex.Exec(conn,
		`SELECT identity, primary_host, alternative_names, target_plugin, validation_plugin,
			challenge_type, installation_plugins, ssl_port, ssl_ip_address, validation_port,
			last_run, due_date, is_new, updated, test_mode, warmup, script_path,
			script_parameters, central_ssl_store, certificate_store, keep_existing,
			last_thumbprint, no_task_scheduler
		FROM scheduled_renewals;`,
		func(stmt *sqlite.Stmt) error {
			r, err := scanRow(stmt)
			if err != nil {
				return err
			}
			out = append(out, *r)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("registry/crawshaw: list failed: %w", err)
	}
	return out, nil
}

func scanRow(stmt *sqlite.Stmt) (*model.ScheduledRenewal, error) {
	var altNames, installs []string
	if err := json.Unmarshal([]byte(stmt.GetText("alternative_names")), &altNames); err != nil {
		return nil, fmt.Errorf("registry/crawshaw: failed to decode alternative names: %w", err)
	}
	if err := json.Unmarshal([]byte(stmt.GetText("installation_plugins")), &installs); err != nil {
		return nil, fmt.Errorf("registry/crawshaw: failed to decode installation plugins: %w", err)
	}

	r := &model.ScheduledRenewal{
		Target: model.Target{
			PrimaryHost:             stmt.GetText("primary_host"),
			AlternativeNames:        altNames,
			TargetPluginName:        stmt.GetText("target_plugin"),
			ValidationPluginName:    stmt.GetText("validation_plugin"),
			ChallengeType:           stmt.GetText("challenge_type"),
			InstallationPluginNames: installs,
			SSLPort:                 int(stmt.GetInt64("ssl_port")),
			SSLIPAddress:            stmt.GetText("ssl_ip_address"),
			ValidationPort:          int(stmt.GetInt64("validation_port")),
		},
		New:              stmt.GetInt64("is_new") != 0,
		Updated:          stmt.GetInt64("updated") != 0,
		TestMode:         stmt.GetInt64("test_mode") != 0,
		Warmup:           stmt.GetInt64("warmup") != 0,
		ScriptPath:       stmt.GetText("script_path"),
		ScriptParameters: stmt.GetText("script_parameters"),
		CentralSslStore:  stmt.GetText("central_ssl_store"),
		CertificateStore: stmt.GetText("certificate_store"),
		LastThumbprint:   stmt.GetText("last_thumbprint"),
		NoTaskScheduler:  stmt.GetInt64("no_task_scheduler") != 0,
	}
	if err := parseTimes(stmt.GetText("last_run"), stmt.GetText("due_date"), r); err != nil {
		return nil, err
	}
	if stmt.ColumnType(20) != sqlite.SQLITE_NULL {
		v := stmt.GetInt64("keep_existing") != 0
		r.KeepExisting = &v
	}
	return r, nil
}

func parseTimes(lastRun, dueDate string, r *model.ScheduledRenewal) error {
	if lastRun != "" {
		t, err := time.Parse(timeLayout, lastRun)
		if err != nil {
			return fmt.Errorf("registry/crawshaw: failed to parse last_run: %w", err)
		}
		r.LastRun = t
	}
	if dueDate != "" {
		t, err := time.Parse(timeLayout, dueDate)
		if err != nil {
			return fmt.Errorf("registry/crawshaw: failed to parse due_date: %w", err)
		}
		r.DueDate = t
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
