package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/scribeworks/keyword-cli/internal/model"
)

// Pool abstracts pgxpool.Pool so tests can substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	ckpts   *keyedMutex
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
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
	return &PostgresStore{pool: pool, ckpts: newKeyedMutex(), closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool, ckpts: newKeyedMutex()}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	descriptor      JSONB NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	last_checkpoint TEXT NOT NULL DEFAULT '',
	checkpoint_at   TIMESTAMPTZ,
	failed_stage    TEXT NOT NULL DEFAULT '',
	last_error      TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS checkpoints (
	project_id TEXT PRIMARY KEY REFERENCES projects(id),
	stage      TEXT NOT NULL,
	payload    BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS results (
	project_id TEXT PRIMARY KEY REFERENCES projects(id),
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id         BIGSERIAL PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	ts         TIMESTAMPTZ NOT NULL,
	provider   TEXT NOT NULL,
	keyword    TEXT NOT NULL,
	cost       DOUBLE PRECISION NOT NULL,
	latency_ms BIGINT NOT NULL,
	success    BOOLEAN NOT NULL,
	attempt    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
CREATE INDEX IF NOT EXISTS idx_ledger_project ON ledger_entries(project_id);
CREATE INDEX IF NOT EXISTS idx_ledger_provider ON ledger_entries(project_id, provider);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, p *model.Project) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = model.ProjectStatusPending
	}

	desc, err := packDescriptor(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal project descriptor")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO projects (id, name, descriptor, status, last_checkpoint, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Name, desc, string(p.Status), string(p.LastCheckpoint), now, now,
	)
	return eris.Wrapf(err, "postgres: insert project %s", p.ID)
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, descriptor, status, last_checkpoint, checkpoint_at, failed_stage, last_error, created_at, updated_at
		 FROM projects WHERE id = $1`,
		projectID,
	)
	p, err := scanPgProject(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get project %s", projectID)
	}
	return p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, filter ProjectFilter) ([]model.Project, error) {
	query := `SELECT id, name, descriptor, status, last_checkpoint, checkpoint_at, failed_stage, last_error, created_at, updated_at
	          FROM projects WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list projects")
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		p, err := scanPgProject(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan project")
		}
		projects = append(projects, *p)
	}
	return projects, eris.Wrap(rows.Err(), "postgres: list projects iterate")
}

func (s *PostgresStore) UpdateProjectStatus(ctx context.Context, projectID string, status model.ProjectStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), projectID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update project status %s", projectID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("project not found: %s", projectID)
	}
	return nil
}

func (s *PostgresStore) MarkProjectFailed(ctx context.Context, projectID string, stage model.Stage, cause string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET status = $1, failed_stage = $2, last_error = $3, updated_at = $4 WHERE id = $5`,
		string(model.ProjectStatusFailed), string(stage), cause, time.Now().UTC(), projectID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark project failed %s", projectID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("project not found: %s", projectID)
	}
	return nil
}

func (s *PostgresStore) SaveCheckpoint(ctx context.Context, projectID string, stage model.Stage, payload []byte) error {
	unlock := s.ckpts.lock(projectID)
	defer unlock()

	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin checkpoint tx")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO checkpoints (project_id, stage, payload, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (project_id) DO UPDATE SET stage = $2, payload = $3, created_at = $4`,
		projectID, string(stage), payload, now,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert checkpoint %s", projectID)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE projects SET last_checkpoint = $1, checkpoint_at = $2, failed_stage = '', last_error = '', updated_at = $2 WHERE id = $3`,
		string(stage), now, projectID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: advance checkpoint %s", projectID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("project not found: %s", projectID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit checkpoint tx")
}

func (s *PostgresStore) LoadCheckpoint(ctx context.Context, projectID string) (*model.Checkpoint, error) {
	unlock := s.ckpts.lock(projectID)
	defer unlock()

	var cp model.Checkpoint
	var stage string
	err := s.pool.QueryRow(ctx,
		`SELECT project_id, stage, payload, created_at FROM checkpoints WHERE project_id = $1`,
		projectID,
	).Scan(&cp.ProjectID, &stage, &cp.Payload, &cp.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: load checkpoint %s", projectID)
	}
	cp.Stage = model.Stage(stage)
	return &cp, nil
}

func (s *PostgresStore) DeleteCheckpoint(ctx context.Context, projectID string) error {
	unlock := s.ckpts.lock(projectID)
	defer unlock()

	_, err := s.pool.Exec(ctx, `DELETE FROM checkpoints WHERE project_id = $1`, projectID)
	return eris.Wrapf(err, "postgres: delete checkpoint %s", projectID)
}

func (s *PostgresStore) SaveResults(ctx context.Context, projectID string, results *model.ResultSet) error {
	data, err := json.Marshal(results)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal results")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO results (project_id, data, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (project_id) DO UPDATE SET data = $2, created_at = $3`,
		projectID, data, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save results %s", projectID)
}

func (s *PostgresStore) GetResults(ctx context.Context, projectID string) (*model.ResultSet, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM results WHERE project_id = $1`,
		projectID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get results %s", projectID)
	}

	var rs model.ResultSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal results")
	}
	return &rs, nil
}

func (s *PostgresStore) AppendLedger(ctx context.Context, projectID string, entries []model.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin ledger tx")
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO ledger_entries (project_id, ts, provider, keyword, cost, latency_ms, success, attempt)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			projectID, e.Timestamp.UTC(), e.Provider, e.Keyword, e.Cost, e.LatencyMS, e.Success, e.Attempt,
		); err != nil {
			return eris.Wrapf(err, "postgres: append ledger %s", projectID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit ledger tx")
}

func (s *PostgresStore) ListLedger(ctx context.Context, projectID string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ts, provider, keyword, cost, latency_ms, success, attempt
		 FROM ledger_entries WHERE project_id = $1 ORDER BY id`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list ledger %s", projectID)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.Timestamp, &e.Provider, &e.Keyword, &e.Cost, &e.LatencyMS, &e.Success, &e.Attempt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ledger entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list ledger iterate")
}

func scanPgProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	var desc []byte
	var status, lastCkpt, failedStage string
	var checkpointAt *time.Time

	err := row.Scan(&p.ID, &p.Name, &desc, &status, &lastCkpt, &checkpointAt,
		&failedStage, &p.LastError, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := unpackDescriptor(desc, &p); err != nil {
		return nil, eris.Wrap(err, "unmarshal project descriptor")
	}
	p.Status = model.ProjectStatus(status)
	p.LastCheckpoint = model.Stage(lastCkpt)
	p.FailedStage = model.Stage(failedStage)
	p.CheckpointAt = checkpointAt
	return &p, nil
}
