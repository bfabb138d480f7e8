package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/streetscope/blockgeo/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	dataset    TEXT NOT NULL,
	output     TEXT,
	status     TEXT NOT NULL DEFAULT 'running',
	rows       INTEGER NOT NULL DEFAULT 0,
	found      INTEGER NOT NULL DEFAULT 0,
	no_match   INTEGER NOT NULL DEFAULT 0,
	malformed  INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tract_lookup (
	geoid      TEXT PRIMARY KEY,
	tract_code TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS block_group_attrs (
	position   INTEGER PRIMARY KEY,
	properties TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, dataset, output string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, dataset, output, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, dataset, output, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Dataset:   dataset,
		Output:    output,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, rows, found, noMatch, malformed int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, rows = ?, found = ?, no_match = ?, malformed = ?, updated_at = ? WHERE id = ?`,
		string(status), rows, found, noMatch, malformed, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run %s not found", runID)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, dataset, output, status, rows, found, no_match, malformed, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dataset, output, status, rows, found, no_match, malformed, created_at, updated_at FROM runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate runs")
	}
	return runs, nil
}

// SaveTractLookup replaces the tract lookup table. Entries are written in
// sorted key order so repeated saves of equal input are byte-identical.
func (s *SQLiteStore) SaveTractLookup(ctx context.Context, lookup map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tract lookup")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM tract_lookup`); err != nil {
		return eris.Wrap(err, "sqlite: clear tract lookup")
	}

	keys := make([]string, 0, len(lookup))
	for k := range lookup {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tract_lookup (geoid, tract_code) VALUES (?, ?)`,
			k, lookup[k],
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert tract %s", k)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit tract lookup")
}

func (s *SQLiteStore) GetTractCode(ctx context.Context, geoid string) (string, error) {
	var code string
	err := s.db.QueryRowContext(ctx,
		`SELECT tract_code FROM tract_lookup WHERE geoid = ?`, geoid,
	).Scan(&code)
	if err == sql.ErrNoRows {
		return "", eris.Errorf("sqlite: tract %s not found", geoid)
	}
	if err != nil {
		return "", eris.Wrap(err, "sqlite: get tract code")
	}
	return code, nil
}

// SaveAttributes replaces the flattened block-group attribute table.
func (s *SQLiteStore) SaveAttributes(ctx context.Context, columns []string, rows []map[string]any) error {
	_ = columns // column order is recoverable from row keys; sqlite stores rows as JSON

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin attributes")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM block_group_attrs`); err != nil {
		return eris.Wrap(err, "sqlite: clear attributes")
	}

	for i, row := range rows {
		encoded, err := json.Marshal(row)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal attribute row %d", i)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO block_group_attrs (position, properties) VALUES (?, ?)`,
			i, string(encoded),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert attribute row %d", i)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit attributes")
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	var r model.Run
	var status string
	var output sql.NullString
	if err := row.Scan(&r.ID, &r.Dataset, &output, &status, &r.Rows, &r.Found, &r.NoMatch, &r.Malformed, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.New("sqlite: run not found")
		}
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Status = model.RunStatus(status)
	if output.Valid {
		r.Output = output.String
	}
	return &r, nil
}
