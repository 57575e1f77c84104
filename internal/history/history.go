// Package history records scan runs in a local SQLite database so results
// can be compared across runs.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite driver

	"github.com/altantutar/pyguard/internal/baseline"
	"github.com/altantutar/pyguard/internal/types"
)

// DefaultPath is used when no database path is configured.
const DefaultPath = ".pyguard/history.db"

// timeLayout is fixed width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrRunNotFound is returned when a run id is not in the database.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
  id            TEXT PRIMARY KEY,
  started_at    TEXT NOT NULL,
  target        TEXT,
  min_severity  TEXT NOT NULL,
  partial       INTEGER NOT NULL,
  files_scanned INTEGER NOT NULL,
  rules_loaded  INTEGER NOT NULL,
  suppressed    INTEGER NOT NULL,
  diagnostics   INTEGER NOT NULL,
  duration_ms   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS findings (
  run_id     TEXT NOT NULL,
  seq        INTEGER NOT NULL,
  rule_id    TEXT NOT NULL,
  severity   INTEGER NOT NULL,
  file       TEXT NOT NULL,
  line       INTEGER NOT NULL,
  col        INTEGER NOT NULL,
  message    TEXT,
  snippet    TEXT,
  confidence TEXT,
  PRIMARY KEY (run_id, seq),
  FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_findings_rule ON findings(rule_id);
`

// Run is one row of the run listing.
type Run struct {
	ID           string         `json:"id"`
	StartedAt    time.Time      `json:"started_at"`
	Target       string         `json:"target"`
	MinSeverity  string         `json:"min_severity"`
	Partial      bool           `json:"partial"`
	FilesScanned int            `json:"files_scanned"`
	Suppressed   int            `json:"suppressed"`
	Diagnostics  int            `json:"diagnostics"`
	DurationMS   int64          `json:"duration_ms"`
	Findings     int            `json:"findings"`
	BySeverity   map[string]int `json:"by_severity"`
}

// DB is the run history backed by SQLite.
type DB struct {
	conn *sql.DB
}

// Open opens (and creates if missing) the database at path and ensures the
// schema exists.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history %s: %w", path, err)
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

func (db *DB) Close() error { return db.conn.Close() }

// Record stores a run and its findings. Recording the same run id twice
// replaces the earlier copy.
func (db *DB) Record(ctx context.Context, result *types.ScanResult) error {
	if result.RunID == "" {
		return errors.New("recording run: empty run id")
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM findings WHERE run_id = ?`, result.RunID); err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, target, min_severity, partial, files_scanned, rules_loaded, suppressed, diagnostics, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET started_at=excluded.started_at, target=excluded.target,
		   min_severity=excluded.min_severity, partial=excluded.partial, files_scanned=excluded.files_scanned,
		   rules_loaded=excluded.rules_loaded, suppressed=excluded.suppressed, diagnostics=excluded.diagnostics,
		   duration_ms=excluded.duration_ms`,
		result.RunID,
		result.GeneratedAt.UTC().Format(timeLayout),
		result.Target,
		result.MinSeverity.Label(),
		result.Partial,
		result.FilesScanned,
		result.RulesLoaded,
		result.Suppressed,
		len(result.Diagnostics),
		result.Duration.Milliseconds(),
	); err != nil {
		return fmt.Errorf("recording run: %w", err)
	}

	if len(result.Findings) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO findings (run_id, seq, rule_id, severity, file, line, col, message, snippet, confidence)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("recording findings: %w", err)
		}
		defer stmt.Close()
		for i, f := range result.Findings {
			if _, err := stmt.ExecContext(ctx, result.RunID, i, f.RuleID, int(f.Severity),
				f.FilePath, f.Line, f.Column, f.Message, f.Snippet, string(f.Confidence)); err != nil {
				return fmt.Errorf("recording findings: %w", err)
			}
		}
	}
	return tx.Commit()
}

// Runs lists the most recent runs first.
func (db *DB) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, started_at, target, min_severity, partial, files_scanned, suppressed, diagnostics, duration_ms
		  FROM runs
		 ORDER BY started_at DESC, id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.ID, &started, &r.Target, &r.MinSeverity, &r.Partial,
			&r.FilesScanned, &r.Suppressed, &r.Diagnostics, &r.DurationMS); err != nil {
			return nil, fmt.Errorf("listing runs: %w", err)
		}
		if t, err := time.Parse(timeLayout, started); err == nil {
			r.StartedAt = t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	for i := range out {
		counts, err := db.severityCounts(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].BySeverity = counts
		for _, n := range counts {
			out[i].Findings += n
		}
	}
	return out, nil
}

func (db *DB) severityCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT severity, COUNT(1) FROM findings WHERE run_id = ? GROUP BY severity`, runID)
	if err != nil {
		return nil, fmt.Errorf("counting findings: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var sev, n int
		if err := rows.Scan(&sev, &n); err != nil {
			return nil, fmt.Errorf("counting findings: %w", err)
		}
		counts[types.Severity(sev).Label()] = n
	}
	return counts, rows.Err()
}

// Findings returns the stored findings of one run in their original order.
func (db *DB) Findings(ctx context.Context, runID string) ([]types.Finding, error) {
	var one int
	err := db.conn.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT rule_id, severity, file, line, col, message, snippet, confidence
		  FROM findings
		 WHERE run_id = ?
		 ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("loading findings: %w", err)
	}
	defer rows.Close()

	out := []types.Finding{}
	for rows.Next() {
		var f types.Finding
		var sev int
		var conf string
		if err := rows.Scan(&f.RuleID, &sev, &f.FilePath, &f.Line, &f.Column, &f.Message, &f.Snippet, &conf); err != nil {
			return nil, fmt.Errorf("loading findings: %w", err)
		}
		f.Severity = types.Severity(sev)
		f.Confidence = types.Confidence(conf)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Previous returns the id of the run recorded just before runID, or
// ErrRunNotFound when there is none.
func (db *DB) Previous(ctx context.Context, runID string) (string, error) {
	var id string
	err := db.conn.QueryRowContext(ctx, `
		SELECT id FROM runs
		 WHERE started_at < (SELECT started_at FROM runs WHERE id = ?)
		 ORDER BY started_at DESC, id DESC
		 LIMIT 1`, runID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRunNotFound
	}
	if err != nil {
		return "", fmt.Errorf("finding previous run: %w", err)
	}
	return id, nil
}

// Introduced returns the findings of runID that were absent from the run
// before it, matched by baseline fingerprint. Every finding is new when
// there is no earlier run.
func (db *DB) Introduced(ctx context.Context, runID string) ([]types.Finding, error) {
	current, err := db.Findings(ctx, runID)
	if err != nil {
		return nil, err
	}
	prevID, err := db.Previous(ctx, runID)
	if errors.Is(err, ErrRunNotFound) {
		return current, nil
	}
	if err != nil {
		return nil, err
	}
	previous, err := db.Findings(ctx, prevID)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(previous))
	for _, f := range previous {
		known[baseline.Fingerprint(f)] = true
	}
	out := []types.Finding{}
	for _, f := range current {
		if !known[baseline.Fingerprint(f)] {
			out = append(out, f)
		}
	}
	return out, nil
}
