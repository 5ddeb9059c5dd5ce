package archive

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/invoicestream/merger/pkg/merger/record"
)

// SQLiteStore persists dead-letter envelopes to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite archive.
// The path should be a file path (e.g., "./deadletters.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS dead_letters (
			id TEXT PRIMARY KEY,
			reason TEXT NOT NULL,
			correlation_key INTEGER NOT NULL,
			record_type TEXT NOT NULL,
			record BLOB NOT NULL,
			failed_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_dead_letters_failed_at
		ON dead_letters(failed_at)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(dl record.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO dead_letters (id, reason, correlation_key, record_type, record, failed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			reason = excluded.reason,
			correlation_key = excluded.correlation_key,
			record_type = excluded.record_type,
			record = excluded.record,
			failed_at = excluded.failed_at
	`, dl.ID, dl.Reason, dl.CorrelationKey, dl.RecordType, []byte(dl.Record),
		dl.FailedAt.UTC().Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("save dead letter: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(id string) (record.DeadLetter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return record.DeadLetter{}, ErrStoreClosed
	}

	row := s.db.QueryRow(`
		SELECT id, reason, correlation_key, record_type, record, failed_at
		FROM dead_letters
		WHERE id = ?
	`, id)

	dl, err := scanDeadLetter(row)
	if err == sql.ErrNoRows {
		return record.DeadLetter{}, ErrNotFound
	}
	if err != nil {
		return record.DeadLetter{}, fmt.Errorf("load dead letter: %w", err)
	}
	return dl, nil
}

// List implements Store.
func (s *SQLiteStore) List(limit int) ([]record.DeadLetter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := `
		SELECT id, reason, correlation_key, record_type, record, failed_at
		FROM dead_letters
		ORDER BY failed_at DESC
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var result []record.DeadLetter
	for rows.Next() {
		dl, err := scanDeadLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		result = append(result, dl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}
	return result, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM dead_letters WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete dead letter: %w", err)
	}
	return nil
}

// Count implements Store.
func (s *SQLiteStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM dead_letters`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count dead letters: %w", err)
	}
	return n, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// scanner abstracts sql.Row and sql.Rows for scanDeadLetter.
type scanner interface {
	Scan(dest ...any) error
}

func scanDeadLetter(row scanner) (record.DeadLetter, error) {
	var dl record.DeadLetter
	var payload []byte
	var failedAt string
	if err := row.Scan(&dl.ID, &dl.Reason, &dl.CorrelationKey, &dl.RecordType, &payload, &failedAt); err != nil {
		return record.DeadLetter{}, err
	}
	dl.Record = payload
	dl.FailedAt, _ = time.Parse(time.RFC3339Nano, failedAt)
	return dl, nil
}
