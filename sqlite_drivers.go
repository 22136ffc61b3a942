package acmerenew

// Pool constructors for the two interchangeable SQLite drivers the
// renewal registry (§10) can run on. Both return a pool opened in WAL mode
// with a busy timeout, so a scheduler tick and a concurrent CLI
// (`-cancel`, interactive renewal) never trip SQLITE_BUSY against each
// other.

import (
	"fmt"
	"runtime"
	"time"

	crawshawPool "crawshaw.io/sqlite/sqlitex"
	zombiezenPool "zombiezen.com/go/sqlite/sqlitex"
)

var busyTimeout = 5 * time.Second

// NewZombiezenPool opens a zombiezen.com/go/sqlite connection pool at
// dbPath with WAL mode and a busy timeout.
func NewZombiezenPool(dbPath string) (*zombiezenPool.Pool, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d", dbPath, busyTimeout.Milliseconds())
	pool, err := zombiezenPool.NewPool(dsn, zombiezenPool.PoolOptions{PoolSize: runtime.NumCPU()})
	if err != nil {
		return nil, fmt.Errorf("failed to open zombiezen pool at %s: %w", dbPath, err)
	}
	return pool, nil
}

// NewCrawshawPool opens a crawshaw.io/sqlite connection pool at dbPath
// with WAL mode.
func NewCrawshawPool(dbPath string) (*crawshawPool.Pool, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d", dbPath, busyTimeout.Milliseconds())
	pool, err := crawshawPool.Open(dsn, 0, runtime.NumCPU())
	if err != nil {
		return nil, fmt.Errorf("failed to open crawshaw pool at %s: %w", dbPath, err)
	}
	return pool, nil
}
