package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Session is one stored accounting record.
type Session struct {
	Key       string
	Value     string
	Status    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// store keeps session lists in SQLite. Each list is the set of rows sharing
// a key, newest last.
type store struct {
	db        *sql.DB
	closeOnce sync.Once

	insertStmt *sql.Stmt
	countStmt  *sql.Stmt
	trimStmt   *sql.Stmt
	expireStmt *sql.Stmt
	purgeStmt  *sql.Stmt
	listStmt   *sql.Stmt
}

func openStore(path string, busyTimeout time.Duration) (*store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return s, nil
}

func (s *store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		list_key TEXT NOT NULL,
		value TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_key ON sessions(list_key, created_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *store) prepareStatements() error {
	var err error

	s.insertStmt, err = s.db.Prepare(`
		INSERT INTO sessions (list_key, value, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("insert statement: %w", err)
	}

	s.countStmt, err = s.db.Prepare(`SELECT COUNT(*) FROM sessions WHERE list_key = ?`)
	if err != nil {
		return fmt.Errorf("count statement: %w", err)
	}

	// Removes the oldest rows of a list.
	s.trimStmt, err = s.db.Prepare(`
		DELETE FROM sessions WHERE rowid IN (
			SELECT rowid FROM sessions WHERE list_key = ?
			ORDER BY created_at ASC, rowid ASC LIMIT ?
		)
	`)
	if err != nil {
		return fmt.Errorf("trim statement: %w", err)
	}

	s.expireStmt, err = s.db.Prepare(`UPDATE sessions SET expires_at = ? WHERE list_key = ?`)
	if err != nil {
		return fmt.Errorf("expire statement: %w", err)
	}

	s.purgeStmt, err = s.db.Prepare(`DELETE FROM sessions WHERE expires_at <= ?`)
	if err != nil {
		return fmt.Errorf("purge statement: %w", err)
	}

	s.listStmt, err = s.db.Prepare(`
		SELECT list_key, value, status, created_at, expires_at
		FROM sessions WHERE list_key = ? AND expires_at > ?
		ORDER BY created_at ASC, rowid ASC
	`)
	if err != nil {
		return fmt.Errorf("list statement: %w", err)
	}
	return nil
}

// insert appends a row to the list and returns the list's length.
func (s *store) insert(ctx context.Context, sess Session) (int64, error) {
	if _, err := s.insertStmt.ExecContext(ctx, sess.Key, sess.Value, sess.Status,
		sess.CreatedAt.UnixNano(), sess.ExpiresAt.UnixNano()); err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}

	var count int64
	if err := s.countStmt.QueryRowContext(ctx, sess.Key).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// trim deletes the n oldest rows of the list.
func (s *store) trim(ctx context.Context, key string, n int64) (int64, error) {
	res, err := s.trimStmt.ExecContext(ctx, key, n)
	if err != nil {
		return 0, fmt.Errorf("failed to trim sessions: %w", err)
	}
	return res.RowsAffected()
}

// expire sets the expiry of every row in the list.
func (s *store) expire(ctx context.Context, key string, at time.Time) error {
	if _, err := s.expireStmt.ExecContext(ctx, at.UnixNano(), key); err != nil {
		return fmt.Errorf("failed to expire sessions: %w", err)
	}
	return nil
}

// purge deletes rows that expired at or before now.
func (s *store) purge(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.purgeStmt.ExecContext(ctx, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return res.RowsAffected()
}

// list returns the live rows of a list, oldest first.
func (s *store) list(ctx context.Context, key string, now time.Time) ([]Session, error) {
	rows, err := s.listStmt.QueryContext(ctx, key, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess               Session
			created, expiresAt int64
		)
		if err := rows.Scan(&sess.Key, &sess.Value, &sess.Status, &created, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.CreatedAt = time.Unix(0, created)
		sess.ExpiresAt = time.Unix(0, expiresAt)
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *store) close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.insertStmt, s.countStmt, s.trimStmt, s.expireStmt, s.purgeStmt, s.listStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}
