package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/scribeworks/keyword-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	ckpts *keyedMutex
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
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, ckpts: newKeyedMutex()}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	descriptor      TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	last_checkpoint TEXT NOT NULL DEFAULT '',
	checkpoint_at   DATETIME,
	failed_stage    TEXT NOT NULL DEFAULT '',
	last_error      TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS checkpoints (
	project_id TEXT PRIMARY KEY REFERENCES projects(id),
	stage      TEXT NOT NULL,
	payload    BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS results (
	project_id TEXT PRIMARY KEY REFERENCES projects(id),
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL REFERENCES projects(id),
	ts         DATETIME NOT NULL,
	provider   TEXT NOT NULL,
	keyword    TEXT NOT NULL,
	cost       REAL NOT NULL,
	latency_ms INTEGER NOT NULL,
	success    INTEGER NOT NULL,
	attempt    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
CREATE INDEX IF NOT EXISTS idx_ledger_project ON ledger_entries(project_id);
CREATE INDEX IF NOT EXISTS idx_ledger_provider ON ledger_entries(project_id, provider);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// descriptor is the JSON-packed immutable part of a project.
type descriptor struct {
	Seeds        []string             `json:"seeds"`
	Geo          string               `json:"geo"`
	Language     string               `json:"language"`
	ContentFocus model.Intent         `json:"content_focus"`
	Hints        model.DiscoveryHints `json:"hints,omitzero"`
}

func packDescriptor(p *model.Project) ([]byte, error) {
	return json.Marshal(descriptor{
		Seeds:        p.Seeds,
		Geo:          p.Geo,
		Language:     p.Language,
		ContentFocus: p.ContentFocus,
		Hints:        p.Hints,
	})
}

func unpackDescriptor(data []byte, p *model.Project) error {
	var d descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	p.Seeds = d.Seeds
	p.Geo = d.Geo
	p.Language = d.Language
	p.ContentFocus = d.ContentFocus
	p.Hints = d.Hints
	return nil
}

func (s *SQLiteStore) CreateProject(ctx context.Context, p *model.Project) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = model.ProjectStatusPending
	}

	desc, err := packDescriptor(p)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal project descriptor")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, descriptor, status, last_checkpoint, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, string(desc), string(p.Status), string(p.LastCheckpoint), now, now,
	)
	return eris.Wrapf(err, "sqlite: insert project %s", p.ID)
}

func (s *SQLiteStore) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, descriptor, status, last_checkpoint, checkpoint_at, failed_stage, last_error, created_at, updated_at
		 FROM projects WHERE id = ?`,
		projectID,
	)
	return scanProject(row)
}

func (s *SQLiteStore) ListProjects(ctx context.Context, filter ProjectFilter) ([]model.Project, error) {
	query := `SELECT id, name, descriptor, status, last_checkpoint, checkpoint_at, failed_stage, last_error, created_at, updated_at
	          FROM projects WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list projects")
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, eris.Wrap(rows.Err(), "sqlite: list projects iterate")
}

func (s *SQLiteStore) UpdateProjectStatus(ctx context.Context, projectID string, status model.ProjectStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), projectID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update project status %s", projectID)
	}
	return checkRowsAffected(res, "project", projectID)
}

func (s *SQLiteStore) MarkProjectFailed(ctx context.Context, projectID string, stage model.Stage, cause string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET status = ?, failed_stage = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		string(model.ProjectStatusFailed), string(stage), cause, time.Now().UTC(), projectID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark project failed %s", projectID)
	}
	return checkRowsAffected(res, "project", projectID)
}

func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, projectID string, stage model.Stage, payload []byte) error {
	unlock := s.ckpts.lock(projectID)
	defer unlock()

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin checkpoint tx")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO checkpoints (project_id, stage, payload, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (project_id) DO UPDATE SET stage = excluded.stage, payload = excluded.payload, created_at = excluded.created_at`,
		projectID, string(stage), payload, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert checkpoint %s", projectID)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE projects SET last_checkpoint = ?, checkpoint_at = ?, failed_stage = '', last_error = '', updated_at = ? WHERE id = ?`,
		string(stage), now, now, projectID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: advance checkpoint %s", projectID)
	}
	if err := checkRowsAffected(res, "project", projectID); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit checkpoint tx")
}

func (s *SQLiteStore) LoadCheckpoint(ctx context.Context, projectID string) (*model.Checkpoint, error) {
	unlock := s.ckpts.lock(projectID)
	defer unlock()

	var cp model.Checkpoint
	var stage string
	err := s.db.QueryRowContext(ctx,
		`SELECT project_id, stage, payload, created_at FROM checkpoints WHERE project_id = ?`,
		projectID,
	).Scan(&cp.ProjectID, &stage, &cp.Payload, &cp.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load checkpoint %s", projectID)
	}
	cp.Stage = model.Stage(stage)
	return &cp, nil
}

func (s *SQLiteStore) DeleteCheckpoint(ctx context.Context, projectID string) error {
	unlock := s.ckpts.lock(projectID)
	defer unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE project_id = ?`, projectID)
	return eris.Wrapf(err, "sqlite: delete checkpoint %s", projectID)
}

func (s *SQLiteStore) SaveResults(ctx context.Context, projectID string, results *model.ResultSet) error {
	data, err := json.Marshal(results)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal results")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (project_id, data, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (project_id) DO UPDATE SET data = excluded.data, created_at = excluded.created_at`,
		projectID, string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save results %s", projectID)
}

func (s *SQLiteStore) GetResults(ctx context.Context, projectID string) (*model.ResultSet, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM results WHERE project_id = ?`,
		projectID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get results %s", projectID)
	}

	var rs model.ResultSet
	if err := json.Unmarshal([]byte(data), &rs); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal results")
	}
	return &rs, nil
}

func (s *SQLiteStore) AppendLedger(ctx context.Context, projectID string, entries []model.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin ledger tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO ledger_entries (project_id, ts, provider, keyword, cost, latency_ms, success, attempt)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare ledger insert")
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			projectID, e.Timestamp.UTC(), e.Provider, e.Keyword, e.Cost, e.LatencyMS, e.Success, e.Attempt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: append ledger %s", projectID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit ledger tx")
}

func (s *SQLiteStore) ListLedger(ctx context.Context, projectID string) ([]model.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, provider, keyword, cost, latency_ms, success, attempt
		 FROM ledger_entries WHERE project_id = ? ORDER BY id`,
		projectID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list ledger %s", projectID)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.Timestamp, &e.Provider, &e.Keyword, &e.Cost, &e.LatencyMS, &e.Success, &e.Attempt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ledger entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list ledger iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProject(row scannable) (*model.Project, error) {
	var p model.Project
	var desc, status, lastCkpt, failedStage string
	var checkpointAt sql.NullTime

	err := row.Scan(&p.ID, &p.Name, &desc, &status, &lastCkpt, &checkpointAt,
		&failedStage, &p.LastError, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("project not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan project")
	}

	if err := unpackDescriptor([]byte(desc), &p); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal project descriptor")
	}
	p.Status = model.ProjectStatus(status)
	p.LastCheckpoint = model.Stage(lastCkpt)
	p.FailedStage = model.Stage(failedStage)
	if checkpointAt.Valid {
		t := checkpointAt.Time
		p.CheckpointAt = &t
	}
	return &p, nil
}
