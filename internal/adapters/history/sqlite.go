// Package history persists identifications and feedback in SQLite.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"
	_ "modernc.org/sqlite"

	"github.com/hugo-lorenzo-mato/plantsage/internal/core"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

const (
	// DefaultListLimit applies when callers pass limit <= 0.
	DefaultListLimit = 20
	// searchWindow is how many recent rows Search ranks.
	searchWindow = 500
	// timeLayout is fixed width so that created_at sorts as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Store implements core.HistoryStore with SQLite storage.
type Store struct {
	dbPath string
	db     *sql.DB // Write connection
	readDB *sql.DB // Read-only connection
	mu     sync.RWMutex

	maxRetries    int
	baseRetryWait time.Duration
}

// Option configures the store.
type Option func(*Store)

// WithRetry sets the retry policy for writes hitting SQLITE_BUSY.
func WithRetry(maxRetries int, baseWait time.Duration) Option {
	return func(s *Store) {
		s.maxRetries = maxRetries
		s.baseRetryWait = baseWait
	}
}

// NewStore opens (creating if needed) the database at dbPath.
func NewStore(dbPath string, opts ...Option) (*Store, error) {
	s := &Store{
		dbPath:        dbPath,
		maxRetries:    5,
		baseRetryWait: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening write database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	s.db = db

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	readDB, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(1000)")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening read database: %w", err)
	}
	readDB.SetMaxOpenConns(10)
	readDB.SetMaxIdleConns(5)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	s.readDB = readDB

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes both connections.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
		s.readDB = nil
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	return errors.Join(errs...)
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("checking schema version: %w", err)
	}

	migrations := []string{migrationV1}
	for i, migration := range migrations {
		version := i + 1
		if version <= currentVersion {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration transaction: %w", err)
		}
		for _, stmt := range splitStatements(migration) {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("executing migration v%d: %w", version, err)
			}
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			version, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration v%d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration v%d: %w", version, err)
		}
	}
	return nil
}

// splitStatements splits a SQL script into individual statements.
func splitStatements(script string) []string {
	var statements []string
	for _, stmt := range strings.Split(script, ";") {
		var sqlLines []string
		for _, line := range strings.Split(stmt, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" && !strings.HasPrefix(trimmed, "--") {
				sqlLines = append(sqlLines, line)
			}
		}
		if len(sqlLines) > 0 {
			statements = append(statements, strings.Join(sqlLines, "\n"))
		}
	}
	return statements
}

func (s *Store) retryWrite(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isSQLiteBusy(err) {
			return err
		}
		lastErr = err
		wait := s.baseRetryWait * time.Duration(1<<attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%s failed after %d retries: %w", operation, s.maxRetries, lastErr)
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED")
}

// Record stores one identification. Recording the same ID twice is an error.
func (s *Store) Record(ctx context.Context, rec core.Identification) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return errors.New("history store is closed")
	}

	resultJSON, err := json.Marshal(rec.Plant)
	if err != nil {
		return fmt.Errorf("marshaling plant info: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	return s.retryWrite(ctx, "Record", func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO identifications (
				id, image_hash, mime_type, image_bytes, model,
				common_name, scientific_name, family, result_json,
				cached, duration_ms, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			rec.ID, rec.ImageHash, rec.MIMEType, rec.ImageBytes, rec.Model,
			rec.Plant.CommonName, rec.Plant.ScientificName, rec.Plant.Family, string(resultJSON),
			boolToInt(rec.Cached), rec.Duration.Milliseconds(),
			rec.CreatedAt.UTC().Format(timeLayout),
		)
		return err
	})
}

const identificationColumns = `id, image_hash, mime_type, image_bytes, model, result_json, cached, duration_ms, created_at`

// Get returns one identification or a not_found DomainError.
func (s *Store) Get(ctx context.Context, id string) (*core.Identification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.readDB == nil {
		return nil, errors.New("history store is closed")
	}

	row := s.readDB.QueryRowContext(ctx, `SELECT `+identificationColumns+` FROM identifications WHERE id = ?`, id)
	rec, err := scanIdentification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("identification", id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns the most recent identifications, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]core.Identification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.recent(ctx, limit)
}

// Search ranks recent identifications by fuzzy match against their common,
// scientific and family names. An empty query behaves like List.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]core.Identification, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx, limit)
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	candidates, err := s.recent(ctx, searchWindow)
	if err != nil {
		return nil, err
	}

	haystack := make([]string, len(candidates))
	for i, c := range candidates {
		haystack[i] = strings.Join([]string{c.Plant.CommonName, c.Plant.ScientificName, c.Plant.Family}, " ")
	}

	matches := fuzzy.Find(query, haystack)
	results := make([]core.Identification, 0, min(limit, len(matches)))
	for _, m := range matches {
		if len(results) == limit {
			break
		}
		results = append(results, candidates[m.Index])
	}
	return results, nil
}

func (s *Store) recent(ctx context.Context, limit int) ([]core.Identification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.readDB == nil {
		return nil, errors.New("history store is closed")
	}

	rows, err := s.readDB.QueryContext(ctx,
		`SELECT `+identificationColumns+` FROM identifications ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying identifications: %w", err)
	}
	defer rows.Close()

	var out []core.Identification
	for rows.Next() {
		rec, err := scanIdentification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating identifications: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentification(row scanner) (*core.Identification, error) {
	var (
		rec        core.Identification
		resultJSON string
		cached     int
		durationMS int64
		createdAt  string
	)
	err := row.Scan(&rec.ID, &rec.ImageHash, &rec.MIMEType, &rec.ImageBytes, &rec.Model,
		&resultJSON, &cached, &durationMS, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning identification: %w", err)
	}
	if err := json.Unmarshal([]byte(resultJSON), &rec.Plant); err != nil {
		return nil, fmt.Errorf("decoding stored plant info for %s: %w", rec.ID, err)
	}
	rec.Cached = cached != 0
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	rec.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &rec, nil
}

// SaveFeedback stores one feedback submission.
func (s *Store) SaveFeedback(ctx context.Context, fb core.Feedback) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return errors.New("history store is closed")
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}

	return s.retryWrite(ctx, "SaveFeedback", func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO feedback (id, name, email, plant_name, message, delivered, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET delivered = excluded.delivered
		`,
			fb.ID, fb.Name, fb.Email, fb.PlantName, fb.Message,
			boolToInt(fb.Delivered), fb.CreatedAt.UTC().Format(timeLayout),
		)
		return err
	})
}

// ListFeedback returns the most recent feedback, newest first.
func (s *Store) ListFeedback(ctx context.Context, limit int) ([]core.Feedback, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.readDB == nil {
		return nil, errors.New("history store is closed")
	}

	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, name, email, plant_name, message, delivered, created_at
		FROM feedback ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}
	defer rows.Close()

	var out []core.Feedback
	for rows.Next() {
		var (
			fb        core.Feedback
			delivered int
			createdAt string
		)
		if err := rows.Scan(&fb.ID, &fb.Name, &fb.Email, &fb.PlantName, &fb.Message, &delivered, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		fb.Delivered = delivered != 0
		fb.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		out = append(out, fb)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ core.HistoryStore = (*Store)(nil)
