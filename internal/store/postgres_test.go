package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/keyword-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_GetProject_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, descriptor, status, last_checkpoint`).
		WithArgs("nonexistent-project").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetProject(context.Background(), "nonexistent-project")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get project")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateProject(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO projects`).
		WithArgs("p1", "acme keywords", pgxmock.AnyArg(), "pending", "",
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	p := &model.Project{ID: "p1", Name: "acme keywords", Seeds: []string{"seo"}, Geo: "US", Language: "en"}
	require.NoError(t, s.CreateProject(context.Background(), p))
	assert.Equal(t, model.ProjectStatusPending, p.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProjectStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE projects SET status`).
		WithArgs("running", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateProjectStatus(context.Background(), "missing", model.ProjectStatusRunning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveCheckpoint_Transactional(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO checkpoints`).
		WithArgs("p1", "expansion", []byte(`{"v":1}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE projects SET last_checkpoint`).
		WithArgs("expansion", pgxmock.AnyArg(), "p1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := s.SaveCheckpoint(context.Background(), "p1", model.StageExpansion, []byte(`{"v":1}`))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveCheckpoint_RollsBackOnMissingProject(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO checkpoints`).
		WithArgs("ghost", "expansion", []byte(`{}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE projects SET last_checkpoint`).
		WithArgs("expansion", pgxmock.AnyArg(), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.SaveCheckpoint(context.Background(), "ghost", model.StageExpansion, []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadCheckpoint_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT project_id, stage, payload, created_at FROM checkpoints`).
		WithArgs("p1").
		WillReturnError(pgx.ErrNoRows)

	cp, err := s.LoadCheckpoint(context.Background(), "p1")
	require.NoError(t, err)
	assert.Nil(t, cp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadCheckpoint_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT project_id, stage, payload, created_at FROM checkpoints`).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"project_id", "stage", "payload", "created_at"}).
			AddRow("p1", "scoring", []byte(`{"ctx":true}`), now))

	cp, err := s.LoadCheckpoint(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, model.StageScoring, cp.Stage)
	assert.Equal(t, []byte(`{"ctx":true}`), cp.Payload)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetResults_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM results`).
		WithArgs("p1").
		WillReturnError(pgx.ErrNoRows)

	rs, err := s.GetResults(context.Background(), "p1")
	require.NoError(t, err)
	assert.Nil(t, rs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendLedger_Transactional(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO ledger_entries`).
		WithArgs("p1", pgxmock.AnyArg(), "serpapi", "seo tools", 0.01, int64(120), true, 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO ledger_entries`).
		WithArgs("p1", pgxmock.AnyArg(), "serpapi", "seo tools", 0.01, int64(340), false, 2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	entries := []model.LedgerEntry{
		{Timestamp: time.Now(), Provider: "serpapi", Keyword: "seo tools", Cost: 0.01, LatencyMS: 120, Success: true, Attempt: 1},
		{Timestamp: time.Now(), Provider: "serpapi", Keyword: "seo tools", Cost: 0.01, LatencyMS: 340, Success: false, Attempt: 2},
	}
	require.NoError(t, s.AppendLedger(context.Background(), "p1", entries))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendLedger_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	require.NoError(t, s.AppendLedger(context.Background(), "p1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
