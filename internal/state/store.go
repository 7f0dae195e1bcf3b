package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/model"
)

var (
	ErrDuplicate = errors.New("duplicate")
	ErrNotFound  = errors.New("not found")
)

// Store holds the registries' shared state. The database lives in memory:
// nothing survives a restart, every run starts blank and windows are
// re-created rather than re-discovered.
type Store struct {
	db *sql.DB
}

func Open(ctx context.Context) (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: each sqlite connection would otherwise get its own
	// private in-memory database.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) UpsertSession(ctx context.Context, sess model.ClientSession) error {
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions(client_id, window_id, working_path, current_tab_index, current_tab_name, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(client_id) DO UPDATE SET
	window_id=excluded.window_id,
	working_path=excluded.working_path,
	current_tab_index=excluded.current_tab_index,
	current_tab_name=excluded.current_tab_name,
	updated_at=excluded.updated_at
`, sess.ClientID, sess.WindowID, sess.WorkingPath, nullableInt(sess.CurrentTabIndex), sess.CurrentTabName, ts(sess.CreatedAt), ts(sess.UpdatedAt))
	if err != nil {
		if isUniqueErr(err) {
			return fmt.Errorf("working path already bound: %w", ErrDuplicate)
		}
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *Store) Session(ctx context.Context, clientID string) (model.ClientSession, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT client_id, window_id, working_path, current_tab_index, current_tab_name, created_at, updated_at
FROM sessions WHERE client_id = ?
`, clientID)
	return scanSession(row)
}

func (s *Store) SessionByPath(ctx context.Context, path string) (model.ClientSession, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT client_id, window_id, working_path, current_tab_index, current_tab_name, created_at, updated_at
FROM sessions WHERE working_path = ? AND working_path != ''
`, path)
	return scanSession(row)
}

func (s *Store) ListSessions(ctx context.Context) ([]model.ClientSession, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT client_id, window_id, working_path, current_tab_index, current_tab_name, created_at, updated_at
FROM sessions ORDER BY created_at, client_id
`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	sessions := make([]model.ClientSession, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *Store) DeleteSession(ctx context.Context, clientID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE client_id = ?`, clientID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetCurrentTab(ctx context.Context, clientID string, index int, name string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE sessions SET current_tab_index = ?, current_tab_name = ?, updated_at = ? WHERE client_id = ?
`, index, name, ts(time.Now().UTC()), clientID)
	if err != nil {
		return fmt.Errorf("set current tab: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set current tab rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ClearCurrentTab(ctx context.Context, clientID string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE sessions SET current_tab_index = NULL, current_tab_name = '', updated_at = ? WHERE client_id = ?
`, ts(time.Now().UTC()), clientID)
	if err != nil {
		return fmt.Errorf("clear current tab: %w", err)
	}
	return nil
}

// SetAlias binds alias to (windowID, index). An existing binding of the same
// alias elsewhere in the window moves here; aliases are unique per window.
func (s *Store) SetAlias(ctx context.Context, windowID string, index int, alias string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set alias: %w", err)
	}
	now := ts(time.Now().UTC())
	if _, err := tx.ExecContext(ctx, `DELETE FROM tab_aliases WHERE window_id = ? AND alias = ?`, windowID, alias); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear alias binding: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO tab_aliases(window_id, tab_index, alias, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(window_id, tab_index) DO UPDATE SET alias=excluded.alias, updated_at=excluded.updated_at
`, windowID, index, alias, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("set alias: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set alias: %w", err)
	}
	return nil
}

func (s *Store) TabAlias(ctx context.Context, windowID string, index int) (string, error) {
	var alias string
	err := s.db.QueryRowContext(ctx, `SELECT alias FROM tab_aliases WHERE window_id = ? AND tab_index = ?`, windowID, index).Scan(&alias)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("tab alias: %w", err)
	}
	return alias, nil
}

func (s *Store) AliasIndex(ctx context.Context, windowID, alias string) (int, error) {
	var index int
	err := s.db.QueryRowContext(ctx, `SELECT tab_index FROM tab_aliases WHERE window_id = ? AND alias = ?`, windowID, alias).Scan(&index)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("alias index: %w", err)
	}
	return index, nil
}

func (s *Store) WindowAliases(ctx context.Context, windowID string) (map[int]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tab_index, alias FROM tab_aliases WHERE window_id = ?`, windowID)
	if err != nil {
		return nil, fmt.Errorf("window aliases: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	aliases := map[int]string{}
	for rows.Next() {
		var index int
		var alias string
		if err := rows.Scan(&index, &alias); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		aliases[index] = alias
	}
	return aliases, rows.Err()
}

func (s *Store) RemoveAlias(ctx context.Context, windowID string, index int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tab_aliases WHERE window_id = ? AND tab_index = ?`, windowID, index)
	if err != nil {
		return fmt.Errorf("remove alias: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove alias rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ClearWindowAliases(ctx context.Context, windowID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tab_aliases WHERE window_id = ?`, windowID)
	if err != nil {
		return fmt.Errorf("clear window aliases: %w", err)
	}
	return nil
}

// ShiftAliasesAfterClose re-keys the alias table after the tab at
// closedIndex went away: its alias is dropped and every higher index slides
// down by one. The shift runs through negated temporaries so the unique
// (window_id, tab_index) key never collides mid-update.
func (s *Store) ShiftAliasesAfterClose(ctx context.Context, windowID string, closedIndex int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin alias shift: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tab_aliases WHERE window_id = ? AND tab_index = ?`, windowID, closedIndex); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("drop closed alias: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE tab_aliases SET tab_index = -(tab_index - 1) WHERE window_id = ? AND tab_index > ?
`, windowID, closedIndex); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("shift aliases: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE tab_aliases SET tab_index = -tab_index WHERE window_id = ? AND tab_index < 0
`, windowID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("settle shifted aliases: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit alias shift: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (model.ClientSession, error) {
	var sess model.ClientSession
	var tabIndex sql.NullInt64
	var createdAt, updatedAt string
	err := row.Scan(&sess.ClientID, &sess.WindowID, &sess.WorkingPath, &tabIndex, &sess.CurrentTabName, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return model.ClientSession{}, ErrNotFound
	}
	if err != nil {
		return model.ClientSession{}, fmt.Errorf("scan session: %w", err)
	}
	if tabIndex.Valid {
		v := int(tabIndex.Int64)
		sess.CurrentTabIndex = &v
	}
	if sess.CreatedAt, err = parseTS(createdAt); err != nil {
		return model.ClientSession{}, fmt.Errorf("parse created_at: %w", err)
	}
	if sess.UpdatedAt, err = parseTS(updatedAt); err != nil {
		return model.ClientSession{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return sess, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func isUniqueErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
