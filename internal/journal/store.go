package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so created_at compares correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one journaled request.
type Entry struct {
	ID            int64         `json:"id"`
	RequestID     string        `json:"request_id"`
	Method        string        `json:"method"`
	Target        string        `json:"target"`
	Remote        string        `json:"remote,omitempty"`
	Status        int           `json:"status"`
	RC            string        `json:"rc"`
	Fallback      bool          `json:"fallback"`
	RequestBytes  int64         `json:"request_bytes"`
	ResponseBytes int64         `json:"response_bytes"`
	Chunks        int           `json:"chunks"`
	Duration      time.Duration `json:"duration"`
	Error         string        `json:"error,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Summary aggregates the journal for status output.
type Summary struct {
	Total     int `json:"total"`
	Failed    int `json:"failed"`
	Fallbacks int `json:"fallbacks"`
}

// Store manages journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("journal path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path reports the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts e and fills in its ID and CreatedAt.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e == nil {
		return errors.New("entry is nil")
	}
	if strings.TrimSpace(e.RequestID) == "" {
		return errors.New("entry request id is empty")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO requests (
            request_id, method, target, remote, status, rc, fallback,
            request_bytes, response_bytes, chunks, duration_ms, error_message, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID,
		e.Method,
		e.Target,
		nullableString(e.Remote),
		e.Status,
		e.RC,
		boolToInt(e.Fallback),
		e.RequestBytes,
		e.ResponseBytes,
		e.Chunks,
		e.Duration.Milliseconds(),
		nullableString(e.Error),
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id
	return nil
}

const entryColumns = `id, request_id, method, target, remote, status, rc, fallback,
    request_bytes, response_bytes, chunks, duration_ms, error_message, created_at`

// List returns the newest entries first. A non-positive limit returns all rows.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM requests ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get fetches one entry by request id. It returns nil when no row matches.
func (s *Store) Get(ctx context.Context, requestID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM requests WHERE request_id = ?`, requestID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return &e, nil
}

// Prune deletes entries created before cutoff and reports how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM requests WHERE created_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune requests: %w", err)
	}
	return res.RowsAffected()
}

// Summary counts all rows, failures (status >= 500) and daemon fallbacks.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1),
                COALESCE(SUM(CASE WHEN status >= 500 THEN 1 ELSE 0 END), 0),
                COALESCE(SUM(fallback), 0)
         FROM requests`,
	).Scan(&sum.Total, &sum.Failed, &sum.Fallbacks)
	if err != nil {
		return Summary{}, fmt.Errorf("journal summary: %w", err)
	}
	return sum, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e          Entry
		remote     sql.NullString
		errMsg     sql.NullString
		fallback   int
		durationMS int64
		created    string
	)
	if err := row.Scan(
		&e.ID, &e.RequestID, &e.Method, &e.Target, &remote, &e.Status, &e.RC, &fallback,
		&e.RequestBytes, &e.ResponseBytes, &e.Chunks, &durationMS, &errMsg, &created,
	); err != nil {
		return Entry{}, err
	}
	e.Remote = remote.String
	e.Error = errMsg.String
	e.Fallback = fallback != 0
	e.Duration = time.Duration(durationMS) * time.Millisecond
	ts, err := time.Parse(timeLayout, created)
	if err != nil {
		return Entry{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	e.CreatedAt = ts
	return e, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
