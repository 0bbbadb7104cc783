package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/repodigest/internal/application"
	"github.com/ericfisherdev/repodigest/internal/domain/model"
	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

const healthPath = "/api/v1/health"

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	registry     *application.TrackedRepoRegistry
	orchestrator *application.RefreshOrchestrator
	engine       *application.ScheduleEngine
	catalog      *application.CatalogService
	poller       *application.PollService
	defaultDays  int
	logger       *slog.Logger
	now          func() time.Time
}

// NewHandler creates a Handler with all required dependencies. poller may be
// nil when background refresh is disabled.
func NewHandler(
	registry *application.TrackedRepoRegistry,
	orchestrator *application.RefreshOrchestrator,
	engine *application.ScheduleEngine,
	catalog *application.CatalogService,
	poller *application.PollService,
	defaultDays int,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		registry:     registry,
		orchestrator: orchestrator,
		engine:       engine,
		catalog:      catalog,
		poller:       poller,
		defaultDays:  defaultDays,
		logger:       logger,
		now:          time.Now,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+healthPath, h.Health)

	mux.HandleFunc("GET /api/v1/repos", h.ListRepos)
	mux.HandleFunc("GET /api/v1/repos/summary", h.TrackedSummary)
	mux.HandleFunc("POST /api/v1/repos", h.TrackRepo)
	mux.HandleFunc("POST /api/v1/repos/refresh", h.RefreshAll)
	mux.HandleFunc("DELETE /api/v1/repos/{owner}/{repo}", h.UntrackRepo)
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/refresh", h.RefreshRepo)

	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/hot", h.Hot)
	mux.HandleFunc("GET /api/v1/hot/summary", h.HotSummary)

	mux.HandleFunc("GET /api/v1/tasks", h.ListTasks)
	mux.HandleFunc("POST /api/v1/tasks", h.CreateTask)
	mux.HandleFunc("GET /api/v1/tasks/{id}", h.GetTask)
	mux.HandleFunc("PUT /api/v1/tasks/{id}", h.UpdateTask)
	mux.HandleFunc("DELETE /api/v1/tasks/{id}", h.DeleteTask)
	mux.HandleFunc("POST /api/v1/tasks/{id}/execute", h.ExecuteTask)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns service status and the number of tracked repositories.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:              "ok",
		Time:                formatTime(h.now()),
		TrackedRepos:        len(h.registry.Names()),
		DefaultLookbackDays: h.defaultDays,
	})
}

// ListRepos returns every tracked repository evaluated against the requested
// lookback window.
func (h *Handler) ListRepos(w http.ResponseWriter, r *http.Request) {
	days, ok := h.lookbackDays(w, r)
	if !ok {
		return
	}

	statuses := h.registry.List(days)
	resp := make([]TrackedRepoResponse, 0, len(statuses))
	for _, s := range statuses {
		item := toTrackedRepoResponse(s)
		item.Refreshing = h.orchestrator.IsRefreshing(s.FullName)
		if h.poller != nil {
			if sched, ok := h.poller.GetSchedule(s.FullName); ok {
				item.Tier = sched.Tier.String()
				item.NextRefreshAt = formatTime(sched.NextRefreshAt)
			}
		}
		resp = append(resp, item)
	}

	writeJSON(w, http.StatusOK, resp)
}

// TrackRepo adds a repository to the tracked set and triggers an async refresh.
func (h *Handler) TrackRepo(w http.ResponseWriter, r *http.Request) {
	var req TrackRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fullName := strings.TrimSpace(req.FullName)
	err := h.registry.TrackRepository(r.Context(), model.Repository{
		FullName:             fullName,
		Description:          req.Description,
		DescriptionLocalized: req.DescriptionLocalized,
		Stars:                req.Stars,
		Forks:                req.Forks,
		URL:                  req.URL,
	})
	if err != nil {
		h.writeServiceError(w, "track repository", err, "repo", fullName)
		return
	}

	// Fire-and-forget async refresh with background context since the HTTP
	// request context will be cancelled after the response is sent.
	days := h.defaultDays
	go func() {
		res := h.orchestrator.RefreshOne(context.Background(), fullName, days)
		if res.Err != nil {
			h.logger.Error("async repo refresh failed", "repo", fullName, "error", res.Err)
		}
	}()

	repo, _ := h.registry.Get(fullName)
	writeJSON(w, http.StatusCreated, toTrackedRepoResponse(repo.StatusAt(days, h.now())))
}

// UntrackRepo removes a repository from the tracked set.
func (h *Handler) UntrackRepo(w http.ResponseWriter, r *http.Request) {
	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")

	if err := h.registry.Untrack(r.Context(), fullName); err != nil {
		h.writeServiceError(w, "untrack repository", err, "repo", fullName)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RefreshRepo refreshes one repository and waits for the outcome.
func (h *Handler) RefreshRepo(w http.ResponseWriter, r *http.Request) {
	days, ok := h.lookbackDays(w, r)
	if !ok {
		return
	}
	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")

	res := h.orchestrator.RefreshOne(r.Context(), fullName, days)
	if res.Err != nil {
		h.writeServiceError(w, "refresh repository", res.Err, "repo", fullName)
		return
	}

	writeJSON(w, http.StatusOK, toRefreshResultResponse(res))
}

// RefreshAll refreshes every tracked repository. Individual failures are
// reported in the body; the request itself succeeds.
func (h *Handler) RefreshAll(w http.ResponseWriter, r *http.Request) {
	days, ok := h.lookbackDays(w, r)
	if !ok {
		return
	}

	report := h.orchestrator.RefreshAll(r.Context(), days)
	writeJSON(w, http.StatusOK, toRefreshReportResponse(report))
}

// Search queries the remote catalog.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	repos, err := h.catalog.Search(r.Context(), query)
	if err != nil {
		h.writeServiceError(w, "search repositories", err, "query", query)
		return
	}

	writeJSON(w, http.StatusOK, toRepositoryResponses(repos))
}

// Hot lists the most starred recently created repositories.
func (h *Handler) Hot(w http.ResponseWriter, r *http.Request) {
	days, ok := h.lookbackDays(w, r)
	if !ok {
		return
	}
	limit, ok := hotLimit(w, r)
	if !ok {
		return
	}

	repos, err := h.catalog.Hot(r.Context(), days, limit)
	if err != nil {
		h.writeServiceError(w, "hot repositories", err)
		return
	}

	writeJSON(w, http.StatusOK, toRepositoryResponses(repos))
}

// HotSummary writes an overview of the repositories Hot returns.
func (h *Handler) HotSummary(w http.ResponseWriter, r *http.Request) {
	days, ok := h.lookbackDays(w, r)
	if !ok {
		return
	}
	limit, ok := hotLimit(w, r)
	if !ok {
		return
	}

	overview, err := h.catalog.HotOverview(r.Context(), days, limit)
	if err != nil {
		h.writeServiceError(w, "hot summary", err)
		return
	}

	writeJSON(w, http.StatusOK, toSummaryResponse(overview, days))
}

// TrackedSummary writes an overview of every tracked repository from the
// stored activity. It does not refresh.
func (h *Handler) TrackedSummary(w http.ResponseWriter, r *http.Request) {
	days, ok := h.lookbackDays(w, r)
	if !ok {
		return
	}

	overview := h.catalog.TrackedOverview(r.Context(), h.registry.List(days), days)
	writeJSON(w, http.StatusOK, toSummaryResponse(overview, days))
}

// hotLimit reads the optional limit query parameter; zero means the gateway
// default.
func hotLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer", Field: "limit"})
		return 0, false
	}
	return n, true
}

// lookbackDays reads the days query parameter, falling back to the configured
// default. It writes a 400 and returns false on an unsupported value.
func (h *Handler) lookbackDays(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return h.defaultDays, true
	}

	days, err := strconv.Atoi(raw)
	if err != nil || !model.IsLookbackWindow(days) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("days must be one of %v", model.LookbackWindows),
			Field: "days",
		})
		return 0, false
	}

	return days, true
}

// writeServiceError maps domain errors to status codes and logs anything the
// client did not cause.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error, attrs ...any) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeFieldError(w, verr)
	case errors.Is(err, model.ErrInvalidIdentifier):
		writeError(w, http.StatusBadRequest, "invalid repository name: expected owner/repo format")
	case errors.Is(err, driven.ErrRepoNotFound):
		writeError(w, http.StatusNotFound, "repository not found")
	case errors.Is(err, driven.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, driven.ErrRemoteUnavailable):
		h.logger.Warn(op+" failed", append(attrs, "error", err)...)
		writeError(w, http.StatusBadGateway, "github is unavailable")
	default:
		h.logger.Error(op+" failed", append(attrs, "error", err)...)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func toRepositoryResponses(repos []model.Repository) []RepositoryResponse {
	resp := make([]RepositoryResponse, 0, len(repos))
	for _, repo := range repos {
		resp = append(resp, toRepositoryResponse(repo))
	}
	return resp
}
