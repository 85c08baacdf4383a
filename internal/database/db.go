package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/nucheck/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "nucheck.db"

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("run not found")

// DB provides SQLite-based storage for filter preferences and run history.
//
// Filter preferences and run history share one file.
type DB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures DB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*DB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	db := &DB{
		db:     sqlDB,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := sqlDB.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := db.createTables(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.dbPath
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (db *DB) createTables() error {
	schema := `
	-- Key-value preferences such as the persisted filter state
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One row per validation attempt
	CREATE TABLE IF NOT EXISTS validation_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		title TEXT,
		validator_url TEXT NOT NULL,
		markup_hash TEXT NOT NULL,
		markup TEXT NOT NULL,
		messages_json TEXT NOT NULL,
		error_count INTEGER NOT NULL DEFAULT 0,
		warning_count INTEGER NOT NULL DEFAULT 0,
		info_count INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON validation_runs(target);
	CREATE INDEX IF NOT EXISTS idx_runs_hash ON validation_runs(markup_hash);
	`

	_, err := db.db.ExecContext(context.Background(), schema)
	return err
}

// Get returns the value stored under key.
// The boolean is false when the key has never been set.
func (db *DB) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (db *DB) Set(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at
	`
	if _, err := db.db.ExecContext(ctx, query, key, value, formatTimestamp(time.Now())); err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (db *DB) Delete(ctx context.Context, key string) error {
	if _, err := db.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

// Digest returns the hex SHA3-256 digest of markup.
func Digest(markup string) string {
	sum := sha3.Sum256([]byte(markup))
	return hex.EncodeToString(sum[:])
}

// SaveRun stores a finished run and sets run.ID.
func (db *DB) SaveRun(ctx context.Context, run *model.Run) (int64, error) {
	messages := run.Messages
	if messages == nil {
		messages = make([]model.ValidationMessage, 0)
	}
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize messages: %w", err)
	}

	counts := model.CountMessages(model.NormalizeAll(messages))

	errText := run.ErrorMessage
	if errText == "" && run.Err != nil {
		errText = run.Err.Error()
	}

	query := `
	INSERT INTO validation_runs (
		target, title, validator_url, markup_hash, markup, messages_json,
		error_count, warning_count, info_count, error, duration_ms, started_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.db.ExecContext(ctx, query,
		run.Target,
		run.Title,
		run.ValidatorURL,
		Digest(run.Markup),
		run.Markup,
		string(messagesJSON),
		counts.Errors,
		counts.Warnings,
		counts.Infos,
		errText,
		run.Duration.Milliseconds(),
		formatTimestamp(run.StartedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	run.ID = id
	return id, nil
}

// GetRun retrieves a run, including its markup and messages, by ID.
// It returns ErrNotFound when no such run exists.
func (db *DB) GetRun(ctx context.Context, id int64) (*model.Run, error) {
	query := `
	SELECT id, target, title, validator_url, markup, messages_json, error, duration_ms, started_at
	FROM validation_runs
	WHERE id = ?
	`

	var (
		run          model.Run
		title        sql.NullString
		errText      sql.NullString
		messagesJSON string
		durationMS   int64
		startedAt    string
	)
	err := db.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.Target,
		&title,
		&run.ValidatorURL,
		&run.Markup,
		&messagesJSON,
		&errText,
		&durationMS,
		&startedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if err := json.Unmarshal([]byte(messagesJSON), &run.Messages); err != nil {
		return nil, fmt.Errorf("failed to parse stored messages: %w", err)
	}
	run.Title = title.String
	run.ErrorMessage = errText.String
	run.Duration = time.Duration(durationMS) * time.Millisecond
	run.StartedAt = parseTimestamp(startedAt)

	return &run, nil
}

// RunSummary describes a stored run without its markup and messages.
type RunSummary struct {
	// ID is the database identifier.
	ID int64 `json:"id"`

	// Target is the validated target.
	Target string `json:"target"`

	// Title is the document title.
	Title string `json:"title,omitempty"`

	// ValidatorURL is the checker endpoint used.
	ValidatorURL string `json:"validator_url"`

	// MarkupHash is the SHA3-256 digest of the submitted markup.
	MarkupHash string `json:"markup_hash"`

	// Counts are the per-level message counts.
	Counts model.Counts `json:"counts"`

	// Error is the failure text for failed runs.
	Error string `json:"error,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
}

// ListRuns returns run summaries, newest first.
// An empty target lists every target. A limit <= 0 means no limit.
func (db *DB) ListRuns(ctx context.Context, target string, limit int) ([]RunSummary, error) {
	query := `
	SELECT id, target, title, validator_url, markup_hash,
		error_count, warning_count, info_count, error, started_at
	FROM validation_runs
	WHERE 1=1
	`
	args := make([]any, 0, 2)

	if target != "" {
		query += " AND target = ?"
		args = append(args, target)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	results := make([]RunSummary, 0)
	for rows.Next() {
		var (
			s         RunSummary
			title     sql.NullString
			errText   sql.NullString
			startedAt string
		)
		if err := rows.Scan(
			&s.ID,
			&s.Target,
			&title,
			&s.ValidatorURL,
			&s.MarkupHash,
			&s.Counts.Errors,
			&s.Counts.Warnings,
			&s.Counts.Infos,
			&errText,
			&startedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.Title = title.String
		s.Error = errText.String
		s.StartedAt = parseTimestamp(startedAt)
		results = append(results, s)
	}

	return results, rows.Err()
}

// LatestDigest returns the markup digest of the newest successful run of
// target, or "" when there is none.
func (db *DB) LatestDigest(ctx context.Context, target string) (string, error) {
	query := `
	SELECT markup_hash FROM validation_runs
	WHERE target = ? AND (error IS NULL OR error = '')
	ORDER BY id DESC
	LIMIT 1
	`

	var digest string
	err := db.db.QueryRowContext(ctx, query, target).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read latest digest: %w", err)
	}
	return digest, nil
}

// formatTimestamp renders t the way it is stored.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats accepted when reading.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
