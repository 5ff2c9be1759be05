package token

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SQLiteStore implements Store on SQLite so tokens survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store on an open database handle.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		return nil, err
	}
	return store, nil
}

// initialize creates the share_tokens table
func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS share_tokens (
		id TEXT PRIMARY KEY,
		server_id TEXT NOT NULL,
		path TEXT NOT NULL,
		filename TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		policy_kind TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		weekdays TEXT NOT NULL DEFAULT '',
		window_start INTEGER NOT NULL DEFAULT 0,
		window_end INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_share_tokens_expires_at ON share_tokens(expires_at);
	CREATE INDEX IF NOT EXISTS idx_share_tokens_created_at ON share_tokens(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Insert adds a token. Fails with ErrDuplicateID if the id is already present.
func (s *SQLiteStore) Insert(ctx context.Context, tok *Token) error {
	query := `
		INSERT OR IGNORE INTO share_tokens (id, server_id, path, filename, created_at, policy_kind, expires_at, weekdays, window_start, window_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		tok.ID,
		tok.ServerID,
		tok.Path,
		tok.Filename,
		tok.CreatedAt.Unix(),
		string(tok.Policy.Kind),
		tok.Policy.ExpiresAt.Unix(),
		encodeWeekdays(tok.Policy.Weekdays),
		int(tok.Policy.WindowStart),
		int(tok.Policy.WindowEnd),
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrDuplicateID
	}
	return nil
}

// Get retrieves a token by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Token, error) {
	query := `
		SELECT id, server_id, path, filename, created_at, policy_kind, expires_at, weekdays, window_start, window_end
		FROM share_tokens
		WHERE id = ?
	`

	row := s.db.QueryRowContext(ctx, query, id)
	return s.scanToken(row)
}

// List returns all tokens.
func (s *SQLiteStore) List(ctx context.Context) ([]*Token, error) {
	query := `
		SELECT id, server_id, path, filename, created_at, policy_kind, expires_at, weekdays, window_start, window_end
		FROM share_tokens
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*Token
	for rows.Next() {
		tok, err := s.scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}

	return tokens, rows.Err()
}

// Remove deletes a token by id.
func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM share_tokens WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveExpired deletes all tokens past their absolute expiry.
func (s *SQLiteStore) RemoveExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM share_tokens WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanToken scans a token from a database row
func (s *SQLiteStore) scanToken(scanner interface {
	Scan(dest ...interface{}) error
}) (*Token, error) {
	var tok Token
	var createdAt, expiresAt int64
	var kind, weekdays string
	var windowStart, windowEnd int

	err := scanner.Scan(
		&tok.ID,
		&tok.ServerID,
		&tok.Path,
		&tok.Filename,
		&createdAt,
		&kind,
		&expiresAt,
		&weekdays,
		&windowStart,
		&windowEnd,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan share token: %w", err)
	}

	tok.CreatedAt = time.Unix(createdAt, 0).UTC()
	tok.Policy = Policy{
		Kind:        PolicyKind(kind),
		ExpiresAt:   time.Unix(expiresAt, 0).UTC(),
		WindowStart: ClockTime(windowStart),
		WindowEnd:   ClockTime(windowEnd),
	}

	decoded, err := decodeWeekdays(weekdays)
	if err != nil {
		return nil, fmt.Errorf("failed to decode weekdays for token %s: %w", tok.ID, err)
	}
	tok.Policy.Weekdays = decoded

	return &tok, nil
}

func encodeWeekdays(days []time.Weekday) string {
	if len(days) == 0 {
		return ""
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(encoded string) ([]time.Weekday, error) {
	if encoded == "" {
		return nil, nil
	}
	parts := strings.Split(encoded, ",")
	days := make([]time.Weekday, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		days[i] = time.Weekday(n)
	}
	return days, nil
}
