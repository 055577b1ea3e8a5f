package driftwatch

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"
)

// JournalConfig configures the SQLite anomaly journal.
type JournalConfig struct {
	// Enabled turns on the journal.
	Enabled bool `yaml:"enabled"`

	// Path to the SQLite database file. ":memory:" keeps the journal
	// in memory.
	Path string `yaml:"path"`

	// MaxRows bounds the journal; oldest rows are pruned past it.
	// Default: 10,000. 0 means unbounded.
	MaxRows int `yaml:"max_rows"`

	// JournalMode sets the SQLite journal mode (WAL, DELETE, ...).
	// Default: WAL.
	JournalMode string `yaml:"journal_mode"`

	// BusyTimeout is the lock acquisition timeout in milliseconds.
	// Default: 5000.
	BusyTimeout int `yaml:"busy_timeout"`
}

// DefaultJournalConfig returns default journal configuration.
func DefaultJournalConfig(path string) JournalConfig {
	return JournalConfig{
		Enabled:     true,
		Path:        path,
		MaxRows:     10_000,
		JournalMode: "WAL",
		BusyTimeout: 5000,
	}
}

// JournalEntry is one persisted anomaly.
type JournalEntry struct {
	ID        int64   `json:"id"`
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
	Score     float64 `json:"score"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"stddev"`
	Kind      string  `json:"kind"`
	Severity  string  `json:"severity"`
}

// Journal persists flagged samples to SQLite. It is an event-channel
// consumer: the engine itself keeps no durable history, the journal drains a
// subscription and records only anomalies.
type Journal struct {
	cfg    JournalConfig
	db     *sql.DB
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// OpenJournal opens or creates the journal database.
func OpenJournal(cfg JournalConfig) (*Journal, error) {
	if cfg.Path == "" {
		return nil, newParameterError("journal.path", cfg.Path, "required")
	}
	if cfg.JournalMode == "" {
		cfg.JournalMode = "WAL"
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5000
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// A single connection avoids SQLITE_BUSY between the drain goroutine
	// and queries.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		fmt.Sprintf("PRAGMA journal_mode=%s", cfg.JournalMode),
		fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout),
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal pragma: %w", err)
		}
	}

	schema := `CREATE TABLE IF NOT EXISTS anomalies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		value REAL NOT NULL,
		score REAL NOT NULL,
		mean REAL NOT NULL,
		stddev REAL NOT NULL,
		kind TEXT NOT NULL,
		severity TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_anomalies_ts ON anomalies(ts);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	return &Journal{cfg: cfg, db: db}, nil
}

// Record persists one flagged sample. Non-anomalous samples are ignored.
func (j *Journal) Record(cs ClassifiedSample) error {
	if !cs.IsAnomaly {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}

	_, err := j.db.Exec(
		`INSERT INTO anomalies (ts, value, score, mean, stddev, kind, severity) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cs.Sample.Timestamp, cs.Sample.Value, cs.Score, cs.Mean, cs.StdDev,
		string(cs.Kind), string(cs.Severity),
	)
	if err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}

	if j.cfg.MaxRows > 0 {
		_, err = j.db.Exec(
			`DELETE FROM anomalies WHERE id <= (SELECT MAX(id) FROM anomalies) - ?`,
			j.cfg.MaxRows,
		)
		if err != nil {
			return fmt.Errorf("journal prune: %w", err)
		}
	}
	return nil
}

// Drain consumes a subscription in the background, recording every flagged
// sample until the subscription closes. Insert failures are dropped; the
// journal is advisory, not the pipeline's critical path.
func (j *Journal) Drain(sub *Subscription) {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		for cs := range sub.C() {
			_ = j.Record(cs)
		}
	}()
}

// Recent returns the most recent entries, newest first.
func (j *Journal) Recent(limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return j.query(`SELECT id, ts, value, score, mean, stddev, kind, severity
		FROM anomalies ORDER BY id DESC LIMIT ?`, limit)
}

// Since returns entries at or after t, newest first.
func (j *Journal) Since(t time.Time, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return j.query(`SELECT id, ts, value, score, mean, stddev, kind, severity
		FROM anomalies WHERE ts >= ? ORDER BY id DESC LIMIT ?`, t.UnixNano(), limit)
}

// After returns entries with id greater than afterID, oldest first. Used by
// the archiver to page through unexported rows.
func (j *Journal) After(afterID int64, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 1000
	}
	return j.query(`SELECT id, ts, value, score, mean, stddev, kind, severity
		FROM anomalies WHERE id > ? ORDER BY id ASC LIMIT ?`, afterID, limit)
}

func (j *Journal) query(q string, args ...interface{}) ([]JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, ErrClosed
	}

	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Value, &e.Score, &e.Mean, &e.StdDev, &e.Kind, &e.Severity); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of journaled anomalies.
func (j *Journal) Count() (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, ErrClosed
	}
	var n int64
	err := j.db.QueryRow(`SELECT COUNT(*) FROM anomalies`).Scan(&n)
	return n, err
}

// Close waits for drain goroutines and closes the database. The draining
// subscriptions must be closed first or Close will block.
func (j *Journal) Close() error {
	j.wg.Wait()
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
