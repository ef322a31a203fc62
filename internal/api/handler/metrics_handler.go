package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go-metrics-pipeline/internal/model"
	"go-metrics-pipeline/internal/pipeline"
	"go-metrics-pipeline/internal/store"
)

const runsPrefix = "/api/v1/metrics/"

// CreateRunResponse is returned when a run is accepted.
type CreateRunResponse struct {
	Message   string    `json:"message"`
	RunID     string    `json:"runId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Handler serves the metric run endpoints.
type Handler struct {
	runs           *store.RunStore
	runner         *pipeline.Runner
	defaultBackend model.Backend
	runTimeout     time.Duration
	logger         log.Logger

	// background runs derive from ctx; Shutdown cancels it and waits
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

func New(runs *store.RunStore, runner *pipeline.Runner, defaultBackend model.Backend, runTimeout time.Duration, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if runTimeout <= 0 {
		runTimeout = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		runs:           runs,
		runner:         runner,
		defaultBackend: defaultBackend,
		runTimeout:     runTimeout,
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// CreateRun creates a new metric run
// @Summary Create a metric run
// @Description Load a CSV source, apply a built-in metric or an instruction list and publish the result. With "wait" the response carries the finished run.
// @Tags metrics
// @Accept json
// @Produce json
// @Param run body model.MetricRunSpec true "Metric run"
// @Success 200 {object} model.RunRecord "Finished run (wait=true)"
// @Success 202 {object} CreateRunResponse "Run accepted"
// @Failure 400 {string} string "Invalid request payload"
// @Failure 500 {string} string "Internal server error"
// @Router /metrics [post]
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var spec model.MetricRunSpec
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&spec); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if spec.Source.URL == "" {
		http.Error(w, "source.url is required", http.StatusBadRequest)
		return
	}
	if _, err := pipeline.BuildTransformation(spec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if spec.Backend == nil {
		backend := h.defaultBackend
		spec.Backend = &backend
	}

	runID := uuid.New().String()
	if err := h.runs.SaveRun(r.Context(), runID, spec); err != nil {
		level.Error(h.logger).Log("msg", "failed to save run", "err", err)
		http.Error(w, "Failed to save run", http.StatusInternalServerError)
		return
	}

	if spec.Wait {
		ctx, cancel := context.WithTimeout(r.Context(), h.runTimeout)
		defer cancel()
		// The outcome is recorded on the run itself.
		_, _ = h.runner.Run(ctx, runID, spec)

		run, err := h.runs.GetRun(r.Context(), runID)
		if err != nil {
			http.Error(w, "Failed to fetch run", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, run)
		return
	}

	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		ctx, cancel := context.WithTimeout(h.ctx, h.runTimeout)
		defer cancel()
		_, _ = h.runner.Run(ctx, runID, spec)
	}()

	writeJSON(w, http.StatusAccepted, CreateRunResponse{
		Message:   "Metric run created",
		RunID:     runID,
		Status:    model.RunPending,
		CreatedAt: time.Now().UTC(),
	})
}

// ListRuns retrieves all metric runs
// @Summary List metric runs
// @Description Get all metric runs, newest first
// @Tags metrics
// @Produce json
// @Success 200 {array} model.RunRecord "List of runs"
// @Failure 500 {string} string "Internal server error"
// @Router /metrics [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.ListRuns(r.Context())
	if err != nil {
		level.Error(h.logger).Log("msg", "failed to list runs", "err", err)
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []model.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun retrieves a specific metric run
// @Summary Get metric run
// @Description Retrieve status and publishing result of a metric run
// @Tags metrics
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} model.RunRecord "Run details"
// @Failure 400 {string} string "Invalid run ID"
// @Failure 404 {string} string "Run not found"
// @Router /metrics/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(r.URL.Path, "")
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	run, err := h.runs.GetRun(r.Context(), runID)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	} else if err != nil {
		level.Error(h.logger).Log("msg", "failed to fetch run", "run", runID, "err", err)
		http.Error(w, "Failed to fetch run", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetRunErrors retrieves errors for a metric run
// @Summary Get metric run errors
// @Description Retrieve all errors recorded while executing or publishing a run
// @Tags metrics
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} model.RunError "Run errors"
// @Failure 400 {string} string "Invalid run ID"
// @Failure 404 {string} string "Run not found"
// @Router /metrics/{id}/errors [get]
func (h *Handler) GetRunErrors(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(r.URL.Path, "/errors")
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	if _, err := h.runs.GetRun(r.Context(), runID); errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, "Failed to fetch run", http.StatusInternalServerError)
		return
	}

	runErrors, err := h.runs.GetRunErrors(r.Context(), runID)
	if err != nil {
		level.Error(h.logger).Log("msg", "failed to fetch run errors", "run", runID, "err", err)
		http.Error(w, "Failed to fetch run errors", http.StatusInternalServerError)
		return
	}
	if runErrors == nil {
		runErrors = []model.RunError{}
	}
	writeJSON(w, http.StatusOK, runErrors)
}

// Wait blocks until every background run has finished.
func (h *Handler) Wait() {
	h.inflight.Wait()
}

// Shutdown cancels the background runs still in flight and waits for them
// to record their outcome.
func (h *Handler) Shutdown() {
	h.cancel()
	h.inflight.Wait()
}

func runIDFromPath(path, suffix string) (string, bool) {
	if !strings.HasPrefix(path, runsPrefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(path, runsPrefix), suffix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
