package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/keyword-cli/internal/model"
	"github.com/scribeworks/keyword-cli/internal/pipeline"
	"github.com/scribeworks/keyword-cli/internal/store"
)

// passthroughTransform completes its stage without touching the context.
type passthroughTransform struct {
	stage model.Stage
}

func (p passthroughTransform) Stage() model.Stage { return p.stage }

func (p passthroughTransform) Run(_ context.Context, pc *pipeline.Context) (pipeline.Output, error) {
	return pipeline.Normalized{Keywords: pc.Keywords}, nil
}

func newTestAPI(t *testing.T) (*apiServer, http.Handler) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	transforms := []pipeline.Transform{
		passthroughTransform{model.StageExpansion},
		passthroughTransform{model.StageSerpCollection},
		passthroughTransform{model.StageMetricsEnrichment},
		passthroughTransform{model.StageNormalization},
		passthroughTransform{model.StageIntentClassification},
		passthroughTransform{model.StageScoring},
		passthroughTransform{model.StageClustering},
		passthroughTransform{model.StageBriefGeneration},
	}

	progress := pipeline.NewMemoryNotifier()
	runner := pipeline.NewRunner(st, transforms, pipeline.WithNotifier(progress))
	api := &apiServer{
		env:      &env{Store: st, Runner: runner},
		progress: progress,
		runCtx:   context.Background(),
	}
	return api, newRouter(api)
}

func TestServeHealth(t *testing.T) {
	_, router := newTestAPI(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServeCreateProject(t *testing.T) {
	_, router := newTestAPI(t)

	body := `{"name":"demo","seeds":["seo tools"],"geo":"US","language":"en","content_focus":"informational"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusCreated, rec.Code)

	var project model.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &project))
	assert.NotEmpty(t, project.ID)
	assert.Equal(t, model.ProjectStatusPending, project.Status)
}

func TestServeCreateProjectValidation(t *testing.T) {
	_, router := newTestAPI(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects", bytes.NewBufferString(`{"name":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects", bytes.NewBufferString("{broken")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeStatusNotFound(t *testing.T) {
	_, router := newTestAPI(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/missing/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeRunAndResults(t *testing.T) {
	api, router := newTestAPI(t)

	body := `{"name":"demo","seeds":["seo tools"]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var project model.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &project))

	// Results are not available before a run.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/"+project.ID+"/results", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Run synchronously; the HTTP route does the same via startRun.
	require.NoError(t, api.env.Runner.Run(context.Background(), project.ID))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/"+project.ID+"/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Status          model.ProjectStatus `json:"status"`
		PercentComplete float64             `json:"percent_complete"`
		LastEvent       *pipeline.Event     `json:"last_event"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, model.ProjectStatusCompleted, status.Status)
	assert.InDelta(t, 100.0, status.PercentComplete, 1e-9)
	require.NotNil(t, status.LastEvent)
	assert.Equal(t, model.StageCompleted, status.LastEvent.Stage)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/"+project.ID+"/results", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServeAsyncRun(t *testing.T) {
	api, router := newTestAPI(t)

	project, err := api.env.Runner.CreateProject(context.Background(), "demo", []string{"seo tools"}, "US", "en", model.IntentInformational, model.DiscoveryHints{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects/"+project.ID+"/run", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		p, err := api.env.Store.GetProject(context.Background(), project.ID)
		return err == nil && p.Status == model.ProjectStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)
}

func TestServeListProjects(t *testing.T) {
	api, router := newTestAPI(t)

	_, err := api.env.Runner.CreateProject(context.Background(), "demo", []string{"seo tools"}, "US", "en", model.IntentInformational, model.DiscoveryHints{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects?status=pending", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var projects []model.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &projects))
	assert.Len(t, projects, 1)
}
