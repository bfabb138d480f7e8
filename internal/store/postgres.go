package store

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/streetscope/blockgeo/internal/db"
	"github.com/streetscope/blockgeo/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	dataset    TEXT NOT NULL,
	output     TEXT,
	status     TEXT NOT NULL DEFAULT 'running',
	row_count  INTEGER NOT NULL DEFAULT 0,
	found      INTEGER NOT NULL DEFAULT 0,
	no_match   INTEGER NOT NULL DEFAULT 0,
	malformed  INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tract_lookup (
	geoid      TEXT PRIMARY KEY,
	tract_code TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS block_group_attrs (
	position   INTEGER PRIMARY KEY,
	properties JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, dataset, output string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, dataset, output, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, dataset, output, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, rows, found, noMatch, malformed int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, row_count = $2, found = $3, no_match = $4, malformed = $5, updated_at = $6 WHERE id = $7`,
		string(status), rows, found, noMatch, malformed, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, dataset, output, status, row_count, found, no_match, malformed, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)

	var r model.Run
	var status string
	var output *string
	err := row.Scan(&r.ID, &r.Dataset, &output, &status, &r.Rows, &r.Found, &r.NoMatch, &r.Malformed, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("postgres: run %s not found", runID)
		}
		return nil, eris.Wrap(err, "postgres: get run")
	}
	r.Status = model.RunStatus(status)
	if output != nil {
		r.Output = *output
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, dataset, output, status, row_count, found, no_match, malformed, created_at, updated_at FROM runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var status string
		var output *string
		if err := rows.Scan(&r.ID, &r.Dataset, &output, &status, &r.Rows, &r.Found, &r.NoMatch, &r.Malformed, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.RunStatus(status)
		if output != nil {
			r.Output = *output
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate runs")
	}
	return runs, nil
}

// SaveTractLookup replaces the tract lookup table via COPY. Entries are
// written in sorted key order so repeated saves are deterministic.
func (s *PostgresStore) SaveTractLookup(ctx context.Context, lookup map[string]string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM tract_lookup`); err != nil {
		return eris.Wrap(err, "postgres: clear tract lookup")
	}

	keys := make([]string, 0, len(lookup))
	for k := range lookup {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	copyRows := make([][]any, 0, len(keys))
	for _, k := range keys {
		copyRows = append(copyRows, []any{k, lookup[k]})
	}

	_, err := db.CopyFrom(ctx, s.pool, "tract_lookup", []string{"geoid", "tract_code"}, copyRows)
	return err
}

func (s *PostgresStore) GetTractCode(ctx context.Context, geoid string) (string, error) {
	var code string
	err := s.pool.QueryRow(ctx,
		`SELECT tract_code FROM tract_lookup WHERE geoid = $1`, geoid,
	).Scan(&code)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return "", eris.Errorf("postgres: tract %s not found", geoid)
		}
		return "", eris.Wrap(err, "postgres: get tract code")
	}
	return code, nil
}

// SaveAttributes replaces the flattened block-group attribute table.
func (s *PostgresStore) SaveAttributes(ctx context.Context, columns []string, rows []map[string]any) error {
	_ = columns // rows carry their keys; JSONB stores them as-is

	if _, err := s.pool.Exec(ctx, `DELETE FROM block_group_attrs`); err != nil {
		return eris.Wrap(err, "postgres: clear attributes")
	}

	copyRows := make([][]any, 0, len(rows))
	for i, row := range rows {
		encoded, err := json.Marshal(row)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal attribute row %d", i)
		}
		copyRows = append(copyRows, []any{i, encoded})
	}

	_, err := db.CopyFrom(ctx, s.pool, "block_group_attrs", []string{"position", "properties"}, copyRows)
	return err
}
