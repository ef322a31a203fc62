package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"go-metrics-pipeline/internal/api/handler"
	"go-metrics-pipeline/internal/config"
	"go-metrics-pipeline/internal/model"
	"go-metrics-pipeline/internal/pipeline"
	"go-metrics-pipeline/internal/store"
	"go-metrics-pipeline/pkg/router"
)

const observedCSV = "id,category,value\n1,a,2.0\n2,a,\n3,b,5.0\n4,b,12.3\n5,c,9.5\n"

type testServer struct {
	handler *handler.Handler
	http    http.Handler
	dir     string
	csv     string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "observed.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(observedCSV), 0o644))

	runs, err := store.OpenRunStore(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { runs.Close() })

	reg := prometheus.NewRegistry()
	sinks, err := pipeline.NewSinks(config.PublishConfig{OutputDir: filepath.Join(dir, "exports")}, &bytes.Buffer{})
	require.NoError(t, err)
	runner := pipeline.NewRunner(
		pipeline.NewExecutor(config.ExecutorConfig{}, nil, reg),
		pipeline.NewPublisher(sinks, model.RetryConfig{}, nil, reg),
		runs, nil,
	)
	h := handler.New(runs, runner, model.LocalDisk, time.Minute, nil)
	t.Cleanup(h.Wait)

	r := router.New(nil)
	RegisterRoutes(r, h, reg)
	return &testServer{handler: h, http: r.Handler(), dir: dir, csv: csvPath}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	s.http.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCreateRunAndWait(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/metrics", model.MetricRunSpec{
		Name:    "nulls",
		Source:  model.Source{Type: "csv", URL: s.csv},
		BuiltIn: &model.BuiltInMetric{Metric: "count_null", Column: "value"},
		Wait:    true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	run := decode[model.RunRecord](t, rec)
	require.Equal(t, model.RunCompleted, run.Status)
	require.NotNil(t, run.Spec.Backend)
	require.Equal(t, model.LocalDisk, *run.Spec.Backend)
	require.NotNil(t, run.Export)
	require.True(t, run.Export.Success)
	require.FileExists(t, filepath.Join(s.dir, "exports", run.ID, "nulls.csv"))

	rec = s.do(t, http.MethodGet, "/api/v1/metrics/"+run.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, run.ID, decode[model.RunRecord](t, rec).ID)

	rec = s.do(t, http.MethodGet, "/api/v1/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]model.RunRecord](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/v1/metrics/"+run.ID+"/errors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode[[]model.RunError](t, rec))
}

func TestCreateRunInBackground(t *testing.T) {
	s := newTestServer(t)
	backend := model.Stdout

	rec := s.do(t, http.MethodPost, "/api/v1/metrics", model.MetricRunSpec{
		Source:  model.Source{URL: s.csv},
		BuiltIn: &model.BuiltInMetric{Metric: "count_null", Column: "nope"},
		Backend: &backend,
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	accepted := decode[handler.CreateRunResponse](t, rec)
	require.NotEmpty(t, accepted.RunID)
	require.Equal(t, model.RunPending, accepted.Status)

	s.handler.Wait()

	rec = s.do(t, http.MethodGet, "/api/v1/metrics/"+accepted.RunID, nil)
	require.Equal(t, model.RunFailed, decode[model.RunRecord](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/api/v1/metrics/"+accepted.RunID+"/errors", nil)
	runErrors := decode[[]model.RunError](t, rec)
	require.Len(t, runErrors, 1)
	require.Contains(t, runErrors[0].Message, "nope")
}

func TestShutdownCancelsBackgroundRuns(t *testing.T) {
	s := newTestServer(t)

	fetching := make(chan struct{})
	source := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		close(fetching)
		<-r.Context().Done()
	}))
	t.Cleanup(source.Close)

	rec := s.do(t, http.MethodPost, "/api/v1/metrics", model.MetricRunSpec{
		Source:  model.Source{URL: source.URL + "/observed.csv"},
		BuiltIn: &model.BuiltInMetric{Metric: "count_null", Column: "value"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	runID := decode[handler.CreateRunResponse](t, rec).RunID

	select {
	case <-fetching:
	case <-time.After(10 * time.Second):
		t.Fatal("background run never fetched its source")
	}

	start := time.Now()
	s.handler.Shutdown()
	require.Less(t, time.Since(start), 10*time.Second)

	rec = s.do(t, http.MethodGet, "/api/v1/metrics/"+runID, nil)
	require.Equal(t, model.RunFailed, decode[model.RunRecord](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/api/v1/metrics/"+runID+"/errors", nil)
	runErrors := decode[[]model.RunError](t, rec)
	require.Len(t, runErrors, 1)
	require.Contains(t, runErrors[0].Message, "context canceled")
}

func TestCreateRunRejectsBadRequests(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.http.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/metrics", bytes.NewBufferString("{")))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	for name, spec := range map[string]model.MetricRunSpec{
		"no source":      {BuiltIn: &model.BuiltInMetric{Metric: "count_null", Column: "value"}},
		"unknown metric": {Source: model.Source{URL: s.csv}, BuiltIn: &model.BuiltInMetric{Metric: "p99", Column: "value"}},
		"unknown op":     {Source: model.Source{URL: s.csv}, Instructions: []model.InstructionSpec{{Op: "explode"}}},
	} {
		rec := s.do(t, http.MethodPost, "/api/v1/metrics", spec)
		require.Equal(t, http.StatusBadRequest, rec.Code, name)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/metrics", nil)
	require.Empty(t, decode[[]model.RunRecord](t, rec))
}

func TestUnknownRun(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/metrics/missing", nil).Code)
	require.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/metrics/missing/errors", nil).Code)
	require.Equal(t, http.StatusMethodNotAllowed, s.do(t, http.MethodDelete, "/api/v1/metrics/missing", nil).Code)
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/swagger/doc.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/metrics/{id}/errors")

	rec = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "metrics_pipeline_output_rows_total")
}
