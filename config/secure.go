package config

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"filippo.io/age"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// ScopeApplication is the only config scope this engine persists — one
// process, one configuration — kept as a named scope string for symmetry
// with config/secure.go's multi-scope design.
const ScopeApplication = "application"

// SecureStore stores and retrieves encrypted configuration blobs by scope,
// following config.SecureConfig's interface shape.
type SecureStore interface {
	Latest(scope string) ([]byte, error)
	Save(scope string, plaintext []byte, description string) error
}

// Schema creates the config_versions table SecureStoreAge reads/writes,
// sharing the registry's own SQLite file by default.
const Schema = `
CREATE TABLE IF NOT EXISTS config_versions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	scope       TEXT NOT NULL,
	content     BLOB NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_config_versions_scope ON config_versions(scope, id DESC);`

// SecureStoreAge implements SecureStore using age encryption, following
// config/secure.go's secureConfigAge: identities are re-parsed from the key
// file on every call rather than held in memory between calls.
type SecureStoreAge struct {
	pool       *sqlitex.Pool
	ageKeyPath string
	logger     *slog.Logger
}

// NewSecureStoreAge builds a SecureStoreAge over an already-open pool and
// ensures its schema exists.
func NewSecureStoreAge(pool *sqlitex.Pool, ageKeyPath string, logger *slog.Logger) (*SecureStoreAge, error) {
	conn, err := pool.Take(context.Background())
	if err != nil {
		return nil, fmt.Errorf("secureconfig: failed to get db connection: %w", err)
	}
	defer pool.Put(conn)
	if err := sqlitex.ExecuteScript(conn, Schema, nil); err != nil {
		return nil, fmt.Errorf("secureconfig: failed to create schema: %w", err)
	}
	return &SecureStoreAge{
		pool:       pool,
		ageKeyPath: ageKeyPath,
		logger:     logger.With("component", "secure_config"),
	}, nil
}

func loadIdentities(keyPath string) ([]age.Identity, error) {
	keyContent, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("secureconfig: failed to read age key file %s: %w", keyPath, err)
	}
	identities, err := age.ParseIdentities(bytes.NewReader(keyContent))
	for i := range keyContent {
		keyContent[i] = 0
	}
	if err != nil {
		return nil, fmt.Errorf("secureconfig: failed to parse age identities from %s: %w", keyPath, err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("secureconfig: no age identities found in %s", keyPath)
	}
	if _, ok := identities[0].(*age.X25519Identity); !ok {
		return nil, fmt.Errorf("secureconfig: unsupported age identity type %T, must be X25519", identities[0])
	}
	return identities, nil
}

// Latest decrypts and returns the most recent config recorded for scope.
func (s *SecureStoreAge) Latest(scope string) ([]byte, error) {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return nil, fmt.Errorf("secureconfig: failed to get db connection: %w", err)
	}
	defer s.pool.Put(conn)

	var encrypted []byte
	err = sqlitex.Execute(conn,
		`SELECT content FROM config_versions WHERE scope = ? ORDER BY id DESC LIMIT 1;`,
		&sqlitex.ExecOptions{
			Args: []interface{}{scope},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				encrypted = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, encrypted)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("secureconfig: failed to query latest config for scope %s: %w", scope, err)
	}
	if len(encrypted) == 0 {
		return nil, fmt.Errorf("secureconfig: no configuration found for scope %s", scope)
	}

	identities, err := loadIdentities(s.ageKeyPath)
	if err != nil {
		return nil, err
	}

	decryptedReader, err := age.Decrypt(bytes.NewReader(encrypted), identities...)
	if err != nil {
		return nil, fmt.Errorf("secureconfig: failed to decrypt config for scope %s: %w", scope, err)
	}
	plaintext, err := io.ReadAll(decryptedReader)
	if err != nil {
		return nil, fmt.Errorf("secureconfig: failed to read decrypted config for scope %s: %w", scope, err)
	}
	return plaintext, nil
}

// Save encrypts plaintext and appends it as the newest version for scope.
func (s *SecureStoreAge) Save(scope string, plaintext []byte, description string) error {
	identities, err := loadIdentities(s.ageKeyPath)
	if err != nil {
		return err
	}
	recipient := identities[0].(*age.X25519Identity).Recipient()

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return fmt.Errorf("secureconfig: failed to create age encryption writer: %w", err)
	}
	if _, err := io.Copy(w, bytes.NewReader(plaintext)); err != nil {
		return fmt.Errorf("secureconfig: failed to encrypt config: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("secureconfig: failed to close age encryption writer: %w", err)
	}

	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("secureconfig: failed to get db connection: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO config_versions (scope, content, description) VALUES (?, ?, ?);`,
		&sqlitex.ExecOptions{Args: []interface{}{scope, buf.Bytes(), description}})
	if err != nil {
		return fmt.Errorf("secureconfig: failed to save config for scope %s: %w", scope, err)
	}
	s.logger.Info("saved encrypted config", "scope", scope, "description", description)
	return nil
}
