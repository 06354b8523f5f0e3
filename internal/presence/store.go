// Package presence persists who is in the voice channel and a
// join/leave history used for rejoin suppression. It is the source of
// truth the tracker rebuilds occupancy snapshots from, so state
// survives process restarts.
package presence

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"joinerbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Store is the presence persistence API used by the tracker and the
// maintenance jobs.
type Store struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (creating if needed) the SQLite database at cfg.Path and
// applies migrations.
func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("presence store path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &Store{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AddCaller records a user entering the channel. It reports whether the
// user was actually added; false means they were already present, which
// the tracker treats as a duplicate join.
func (s *Store) AddCaller(ctx context.Context, userID, username string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO callers(user_id, username, joined_at) VALUES(?,?,?)
		 ON CONFLICT(user_id) DO NOTHING`,
		userID, username, at.UnixMilli(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DelCaller removes a user. Removing someone not present is not an
// error; it reports whether a row was deleted.
func (s *Store) DelCaller(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM callers WHERE user_id = ?`, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Callers returns everyone currently present, oldest join first.
func (s *Store) Callers(ctx context.Context) ([]Caller, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, username, joined_at FROM callers ORDER BY joined_at, user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Caller
	for rows.Next() {
		var c Caller
		var ms int64
		if err := rows.Scan(&c.UserID, &c.Username, &ms); err != nil {
			return nil, err
		}
		c.JoinedAt = time.UnixMilli(ms)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count returns how many callers are currently present.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM callers`).Scan(&n)
	return n, err
}

// LogJoinLeave appends one history row. Action must be ActionJoin or
// ActionLeave; the schema rejects anything else.
func (s *Store) LogJoinLeave(ctx context.Context, userID, username, action string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO join_leave_history(user_id, username, action, at) VALUES(?,?,?,?)`,
		userID, username, action, at.UnixMilli(),
	)
	return err
}

// WasRecentlyConnected reports whether the user has any history row at
// or after since. Used to suppress notifications for quick rejoins.
func (s *Store) WasRecentlyConnected(ctx context.Context, userID string, since time.Time) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM join_leave_history WHERE user_id = ? AND at >= ? LIMIT 1`,
		userID, since.UnixMilli(),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PruneHistory deletes history rows older than before and returns how
// many were removed.
func (s *Store) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM join_leave_history WHERE at < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Reset clears the current-callers table. Run at startup: gateway state
// is rebuilt from the live guild, so stale rows would double-count.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM callers`)
	if err == nil {
		s.log.Info("presence table reset")
	}
	return err
}
