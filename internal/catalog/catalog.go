// Package catalog records the outcome of every preview job in SQLite.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("catalog: entry not found")

type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Entry is one processed upload.
type Entry struct {
	ID        string
	Source    string
	ObjectKey string
	Width     int
	Height    int
	TwoPass   bool
	Bytes     int
	Status    Status
	Error     string
	CreatedAt time.Time
}

type DB struct {
	db *sql.DB
}

// Open opens or creates the catalog database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time; SQLite serialises writes anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Record inserts e. CreatedAt defaults to now.
func (d *DB) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO previews (id, source, object_key, width, height, two_pass, bytes, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Source, e.ObjectKey, e.Width, e.Height, e.TwoPass, e.Bytes, string(e.Status), e.Error, e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert preview %s: %w", e.ID, err)
	}
	return nil
}

// Get returns the entry with the given id.
func (d *DB) Get(ctx context.Context, id string) (Entry, error) {
	row := d.db.QueryRowContext(ctx, selectEntry+" WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to query preview %s: %w", id, err)
	}
	return e, nil
}

// List returns entries with the given status, newest first. An empty status
// lists everything. limit <= 0 means no limit.
func (d *DB) List(ctx context.Context, status Status, limit int) ([]Entry, error) {
	query := selectEntry
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query previews: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan preview: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Counts returns the number of entries per status.
func (d *DB) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM previews GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count previews: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[Status(s)] = n
	}
	return counts, rows.Err()
}

const selectEntry = `SELECT id, source, object_key, width, height, two_pass, bytes, status, error, created_at FROM previews`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e       Entry
		status  string
		created int64
	)
	if err := s.Scan(&e.ID, &e.Source, &e.ObjectKey, &e.Width, &e.Height, &e.TwoPass, &e.Bytes, &status, &e.Error, &created); err != nil {
		return Entry{}, err
	}
	e.Status = Status(status)
	e.CreatedAt = time.Unix(0, created)
	return e, nil
}
