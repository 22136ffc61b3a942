package plugin

import (
	"context"
	"fmt"

	"github.com/caasmo/acmerenew/model"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// SQLiteStoreSchema creates the table the SQLite-backed store plugin reads
// and writes. It shares the renewal registry's own database file by
// default but owns an independent table, so a deployment that has no
// central-SSL-store directory can still keep certificates without a second
// file to manage.
const SQLiteStoreSchema = `
CREATE TABLE IF NOT EXISTS issued_certificates (
	thumbprint TEXT PRIMARY KEY,
	pem        BLOB NOT NULL,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);`

// SQLiteStoreFactory builds a StorePlugin backed by a zombiezen sqlite
// connection pool.
type SQLiteStoreFactory struct {
	Pool *sqlitex.Pool
}

func (f SQLiteStoreFactory) Name() string        { return "sqlite" }
func (f SQLiteStoreFactory) Description() string { return "sqlite-backed certificate store" }

func (f SQLiteStoreFactory) Instance() StorePlugin { return &sqliteStore{pool: f.Pool} }

type sqliteStore struct {
	pool *sqlitex.Pool
}

func (s *sqliteStore) Name() string { return "sqlite" }

func (s *sqliteStore) FindByThumbprint(ctx context.Context, thumbprint string) (*model.CertRecord, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: failed to get connection: %w", err)
	}
	defer s.pool.Put(conn)

	var cert *model.CertRecord
	err = sqlitex.Execute(conn,
		`SELECT thumbprint, pem FROM issued_certificates WHERE thumbprint = ?;`,
		&sqlitex.ExecOptions{
			Args: []interface{}{thumbprint},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				pem := make([]byte, stmt.ColumnLen(1))
				stmt.ColumnBytes(1, pem)
				cert = &model.CertRecord{
					Thumbprint: stmt.ColumnText(0),
					PEM:        pem,
					StoreName:  s.Name(),
				}
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: find failed: %w", err)
	}
	return cert, nil
}

func (s *sqliteStore) Save(ctx context.Context, cert model.CertRecord) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite store: failed to get connection: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO issued_certificates (thumbprint, pem) VALUES (?, ?)
		 ON CONFLICT(thumbprint) DO UPDATE SET pem = excluded.pem;`,
		&sqlitex.ExecOptions{Args: []interface{}{cert.Thumbprint, cert.PEM}})
	if err != nil {
		return fmt.Errorf("sqlite store: save failed for thumbprint %s: %w", cert.Thumbprint, err)
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, cert model.CertRecord) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite store: failed to get connection: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`DELETE FROM issued_certificates WHERE thumbprint = ?;`,
		&sqlitex.ExecOptions{Args: []interface{}{cert.Thumbprint}})
	if err != nil {
		return fmt.Errorf("sqlite store: delete failed for thumbprint %s: %w", cert.Thumbprint, err)
	}
	return nil
}
