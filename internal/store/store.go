package store

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/giantswarm/agentcatalog/pkg/logging"
)

// Config holds the parameters for opening a Store.
type Config struct {
	// Path is the SQLite database file. The parent directory must exist.
	Path string

	// PoolSize is the number of pooled connections. Zero or negative
	// means max(runtime.NumCPU(), 4).
	PoolSize int

	// Now overrides the clock used for created_at and delivered_at
	// columns. Tests use it to get deterministic ordering.
	Now func() time.Time
}

// Store is the SQLite-backed catalog, binding table and outbox.
// It is safe for concurrent use.
type Store struct {
	pool *sqlitex.Pool
	path string
	now  func() time.Time

	hooksMu sync.RWMutex
	hooks   []func()
}

// Open creates the connection pool and applies the schema to every
// connection on first use.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: Path is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = max(runtime.NumCPU(), 4)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", cfg.Path, err)
	}

	logging.Info("Store", "Opened database %s (pool size %d)", cfg.Path, poolSize)

	return &Store{pool: pool, path: cfg.Path, now: now}, nil
}

// Close closes every pooled connection. It blocks until borrowed
// connections are returned.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		logging.Error("Store", err, "Failed to close database %s", s.path)
		return fmt.Errorf("store: closing %s: %w", s.path, err)
	}
	logging.Info("Store", "Closed database %s", s.path)
	return nil
}

// OnCommit registers fn to run after every committed Update that
// enqueued at least one notification. Hooks must not block.
func (s *Store) OnCommit(fn func()) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Update runs fn inside an IMMEDIATE transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: take connection: %w", err)
	}
	defer s.pool.Put(conn)

	tx := &Tx{conn: conn, now: s.now}
	if err := s.runImmediate(conn, tx, fn); err != nil {
		return err
	}

	if tx.enqueued > 0 {
		s.runHooks()
	}
	return nil
}

func (s *Store) runImmediate(conn *sqlite.Conn, tx *Tx, fn func(tx *Tx) error) (err error) {
	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer endFn(&err)

	return fn(tx)
}

// View runs fn against a consistent read snapshot. Mutating methods must
// not be called from fn.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: take connection: %w", err)
	}
	defer s.pool.Put(conn)

	defer sqlitex.Save(conn)(&err)

	return fn(&Tx{conn: conn, now: s.now, readOnly: true})
}

func (s *Store) runHooks() {
	s.hooksMu.RLock()
	hooks := append([]func(){}, s.hooks...)
	s.hooksMu.RUnlock()

	for _, fn := range hooks {
		fn()
	}
}

// Tx is a handle to one open transaction. It is only valid inside the
// function passed to Update or View.
type Tx struct {
	conn     *sqlite.Conn
	now      func() time.Time
	readOnly bool
	enqueued int
}

// Now returns the store clock reading used for new rows.
func (tx *Tx) Now() time.Time {
	return tx.now()
}

func (tx *Tx) exec(query string, args ...any) error {
	if err := sqlitex.Execute(tx.conn, query, &sqlitex.ExecOptions{Args: args}); err != nil {
		return err
	}
	return nil
}

func (tx *Tx) query(query string, fn func(stmt *sqlite.Stmt) error, args ...any) error {
	return sqlitex.Execute(tx.conn, query, &sqlitex.ExecOptions{
		Args:       args,
		ResultFunc: fn,
	})
}

func (tx *Tx) writable() error {
	if tx.readOnly {
		return fmt.Errorf("store: write attempted in read-only transaction")
	}
	return nil
}

func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("store: applying schema: %w", err)
	}
	return nil
}

func toUnix(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
