package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitecrawler/internal/model"
)

// DBFileName is the name of the database file inside the database directory.
const DBFileName = "sitecrawler.db"

// CrawlDB provides SQLite-based storage for crawl sessions.
// It is the checkpoint store of the crawler, its page-seen index and its
// per-URL error log, and it can also act as a page sink.
//
// All sessions share one database file. Every table is keyed by session ID.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging. Snapshot transactions then do
	// not block readers such as the sessions command.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite: mode=rw refuses to create the file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer. One connection also serializes page
	// writes from workers with snapshot transactions.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the path of the database file.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Sessions hold one row per crawl run
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		start_url TEXT NOT NULL,
		max_depth INTEGER NOT NULL,
		max_pages INTEGER NOT NULL,
		workers INTEGER NOT NULL,
		delay_ns INTEGER NOT NULL,
		config TEXT,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);

	-- Visited URLs of the latest snapshot
	CREATE TABLE IF NOT EXISTS visited_urls (
		session_id TEXT NOT NULL,
		url TEXT NOT NULL,
		PRIMARY KEY (session_id, url)
	);

	-- Pending frontier entries of the latest snapshot, in queue order
	CREATE TABLE IF NOT EXISTS frontier (
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		PRIMARY KEY (session_id, position)
	);

	-- URLs seen as links that never entered the frontier
	CREATE TABLE IF NOT EXISTS discovered (
		session_id TEXT NOT NULL,
		url TEXT NOT NULL,
		PRIMARY KEY (session_id, url)
	);

	-- Counters of the latest snapshot
	CREATE TABLE IF NOT EXISTS session_stats (
		session_id TEXT PRIMARY KEY,
		counters TEXT NOT NULL,
		taken_at TEXT NOT NULL
	);

	-- Accepted pages; also the page-seen index used on resume
	CREATE TABLE IF NOT EXISTS pages (
		session_id TEXT NOT NULL,
		url TEXT NOT NULL,
		final_url TEXT,
		depth INTEGER,
		status_code INTEGER,
		content_type TEXT,
		content_length INTEGER,
		content_hash TEXT,
		title TEXT,
		fetched_at TEXT,
		extracted TEXT NOT NULL,
		PRIMARY KEY (session_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_hash ON pages(content_hash);

	-- Per-URL failures
	CREATE TABLE IF NOT EXISTS errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		url TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_errors_session ON errors(session_id);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveSnapshot replaces the stored state of snap.Session.ID in a single
// transaction. A failed write leaves the previous snapshot intact.
func (cdb *CrawlDB) SaveSnapshot(ctx context.Context, snap *model.Snapshot) (err error) {
	countersJSON, err := json.Marshal(snap.Counters)
	if err != nil {
		return fmt.Errorf("failed to serialize counters: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	s := snap.Session
	_, err = tx.ExecContext(ctx, `
	INSERT INTO sessions (id, start_url, max_depth, max_pages, workers, delay_ns, config, status, started_at, completed_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		max_depth = excluded.max_depth,
		max_pages = excluded.max_pages,
		workers = excluded.workers,
		delay_ns = excluded.delay_ns,
		config = excluded.config,
		status = excluded.status,
		completed_at = excluded.completed_at,
		updated_at = excluded.updated_at
	`,
		s.ID,
		s.StartURL,
		s.MaxDepth,
		s.MaxPages,
		s.Workers,
		int64(s.Delay),
		string(s.Config),
		string(s.Status),
		formatTimestamp(s.StartedAt),
		nullTimestamp(s.CompletedAt),
		formatTimestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	for _, table := range []string{"visited_urls", "frontier", "discovered"} {
		// table names come from the fixed list above
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE session_id = ?", s.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err = insertURLs(ctx, tx, "visited_urls", s.ID, snap.Visited); err != nil {
		return err
	}
	if err = insertURLs(ctx, tx, "discovered", s.ID, snap.Discovered); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO frontier (session_id, position, url, depth) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare frontier insert: %w", err)
	}
	defer stmt.Close()
	for i, entry := range snap.Pending {
		if _, err = stmt.ExecContext(ctx, s.ID, i, entry.URL, entry.Depth); err != nil {
			return fmt.Errorf("failed to save frontier entry: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO session_stats (session_id, counters, taken_at)
	VALUES (?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		counters = excluded.counters,
		taken_at = excluded.taken_at
	`, s.ID, string(countersJSON), formatTimestamp(snap.TakenAt))
	if err != nil {
		return fmt.Errorf("failed to save counters: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func insertURLs(ctx context.Context, tx *sql.Tx, table, sessionID string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO "+table+" (session_id, url) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	for _, u := range urls {
		if _, err := stmt.ExecContext(ctx, sessionID, u); err != nil {
			return fmt.Errorf("failed to save %s row: %w", table, err)
		}
	}
	return nil
}

// LoadSnapshot returns the latest snapshot of a session.
// It returns an error wrapping model.ErrSnapshotNotFound for unknown sessions.
func (cdb *CrawlDB) LoadSnapshot(ctx context.Context, sessionID string) (*model.Snapshot, error) {
	session, err := cdb.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	snap := &model.Snapshot{Session: *session}

	var countersJSON, takenAt string
	err = cdb.db.QueryRowContext(ctx,
		"SELECT counters, taken_at FROM session_stats WHERE session_id = ?", sessionID,
	).Scan(&countersJSON, &takenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s has no counters", model.ErrSnapshotNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load counters: %w", err)
	}
	if err := json.Unmarshal([]byte(countersJSON), &snap.Counters); err != nil {
		return nil, fmt.Errorf("failed to parse counters: %w", err)
	}
	snap.TakenAt = parseTimestamp(takenAt)

	if snap.Visited, err = cdb.queryURLs(ctx, "visited_urls", sessionID); err != nil {
		return nil, err
	}
	if snap.Discovered, err = cdb.queryURLs(ctx, "discovered", sessionID); err != nil {
		return nil, err
	}

	rows, err := cdb.db.QueryContext(ctx,
		"SELECT url, depth FROM frontier WHERE session_id = ? ORDER BY position", sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load frontier: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var entry model.FrontierEntry
		if err := rows.Scan(&entry.URL, &entry.Depth); err != nil {
			return nil, fmt.Errorf("failed to scan frontier entry: %w", err)
		}
		snap.Pending = append(snap.Pending, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load frontier: %w", err)
	}

	return snap, nil
}

func (cdb *CrawlDB) queryURLs(ctx context.Context, table, sessionID string) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, "SELECT url FROM "+table+" WHERE session_id = ? ORDER BY url", sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", table, err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

const sessionColumns = `id, start_url, max_depth, max_pages, workers, delay_ns, config, status, started_at, completed_at`

// GetSession returns the stored metadata of one session.
// It returns an error wrapping model.ErrSnapshotNotFound for unknown sessions.
func (cdb *CrawlDB) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	row := cdb.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", sessionID)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrSnapshotNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// ListIncompleteSessions returns running and interrupted sessions, newest first.
func (cdb *CrawlDB) ListIncompleteSessions(ctx context.Context) ([]model.Session, error) {
	return cdb.listSessions(ctx, true)
}

// ListSessions returns every session, newest first.
func (cdb *CrawlDB) ListSessions(ctx context.Context) ([]model.Session, error) {
	return cdb.listSessions(ctx, false)
}

func (cdb *CrawlDB) listSessions(ctx context.Context, incompleteOnly bool) ([]model.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions"
	args := make([]any, 0, 2)
	if incompleteOnly {
		query += " WHERE status IN (?, ?)"
		args = append(args, string(model.SessionRunning), string(model.SessionInterrupted))
	}
	query += " ORDER BY started_at DESC"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*model.Session, error) {
	var (
		s           model.Session
		delay       int64
		config      sql.NullString
		status      string
		startedAt   string
		completedAt sql.NullString
	)
	err := row.Scan(
		&s.ID,
		&s.StartURL,
		&s.MaxDepth,
		&s.MaxPages,
		&s.Workers,
		&delay,
		&config,
		&status,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Delay = time.Duration(delay)
	s.Status = model.SessionStatus(status)
	s.StartedAt = parseTimestamp(startedAt)
	if completedAt.Valid {
		s.CompletedAt = parseTimestamp(completedAt.String)
	}
	if config.Valid && config.String != "" {
		s.Config = []byte(config.String)
	}
	return &s, nil
}

// Persist records an accepted page. The extracted data, links included, is
// stored as JSON so a resumed session can replay the page without a fetch.
// Writing the same URL twice for a session replaces the earlier row.
func (cdb *CrawlDB) Persist(ctx context.Context, page *model.PageRecord) error {
	extracted, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("failed to serialize page: %w", err)
	}

	query := `
	INSERT INTO pages (session_id, url, final_url, depth, status_code, content_type, content_length, content_hash, title, fetched_at, extracted)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id, url) DO UPDATE SET
		final_url = excluded.final_url,
		depth = excluded.depth,
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		content_length = excluded.content_length,
		content_hash = excluded.content_hash,
		title = excluded.title,
		fetched_at = excluded.fetched_at,
		extracted = excluded.extracted
	`

	_, err = cdb.db.ExecContext(ctx, query,
		page.SessionID,
		page.URL,
		page.FinalURL,
		page.Depth,
		page.StatusCode,
		page.ContentType,
		page.ContentLength,
		page.ContentHash,
		page.Title(),
		formatTimestamp(page.FetchedAt),
		string(extracted),
	)
	if err != nil {
		return fmt.Errorf("failed to insert page: %w", err)
	}
	return nil
}

// LookupPage returns the stored page of a session, if any.
func (cdb *CrawlDB) LookupPage(ctx context.Context, sessionID, url string) (*model.PageRecord, bool, error) {
	var extracted string
	err := cdb.db.QueryRowContext(ctx,
		"SELECT extracted FROM pages WHERE session_id = ? AND url = ?", sessionID, url,
	).Scan(&extracted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up page: %w", err)
	}

	var page model.PageRecord
	if err := json.Unmarshal([]byte(extracted), &page); err != nil {
		return nil, false, fmt.Errorf("failed to parse page: %w", err)
	}
	return &page, true, nil
}

// CountPages returns the number of pages stored for a session.
func (cdb *CrawlDB) CountPages(ctx context.Context, sessionID string) (int, error) {
	var n int
	if err := cdb.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pages WHERE session_id = ?", sessionID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}

// ErrorRecord is one row of the error log.
type ErrorRecord struct {
	ID        int64
	SessionID string
	URL       string
	Kind      model.ErrorKind
	Message   string
	Timestamp time.Time
}

// RecordError appends a per-URL failure to the error log.
func (cdb *CrawlDB) RecordError(ctx context.Context, sessionID, url string, kind model.ErrorKind, message string) error {
	_, err := cdb.db.ExecContext(ctx,
		"INSERT INTO errors (session_id, url, kind, message) VALUES (?, ?, ?, ?)",
		sessionID, url, string(kind), message,
	)
	if err != nil {
		return fmt.Errorf("failed to insert error: %w", err)
	}
	return nil
}

// QueryErrors returns the error log of a session in insertion order.
// An empty kind matches every kind.
func (cdb *CrawlDB) QueryErrors(ctx context.Context, sessionID string, kind model.ErrorKind) ([]ErrorRecord, error) {
	query := `
	SELECT id, session_id, url, kind, message, timestamp
	FROM errors
	WHERE session_id = ?
	`
	args := []any{sessionID}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY id"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query errors: %w", err)
	}
	defer rows.Close()

	var results []ErrorRecord
	for rows.Next() {
		var (
			rec       ErrorRecord
			k         string
			message   sql.NullString
			timestamp string
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.URL, &k, &message, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan error: %w", err)
		}
		rec.Kind = model.ErrorKind(k)
		rec.Message = message.String
		rec.Timestamp = parseTimestamp(timestamp)
		results = append(results, rec)
	}
	return results, rows.Err()
}

// timestampLayout is fixed-width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func nullTimestamp(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTimestamp(t), Valid: true}
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // written by formatTimestamp
	"2006-01-02 15:04:05",     // SQLite CURRENT_TIMESTAMP
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// It returns the zero time if no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
