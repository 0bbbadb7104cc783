package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/repodigest/internal/application"
	"github.com/ericfisherdev/repodigest/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeFieldError writes a 400 naming the offending request field.
func writeFieldError(w http.ResponseWriter, verr *model.ValidationError) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Field: verr.Field})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status              string `json:"status"`
	Time                string `json:"time"`
	TrackedRepos        int    `json:"tracked_repositories"`
	DefaultLookbackDays int    `json:"default_lookback_days"`
}

// RepositoryResponse is a catalog repository as returned by search and hot.
type RepositoryResponse struct {
	FullName             string `json:"full_name"`
	Owner                string `json:"owner"`
	Name                 string `json:"name"`
	Description          string `json:"description"`
	DescriptionLocalized string `json:"description_localized,omitempty"`
	Stars                int    `json:"stars"`
	Forks                int    `json:"forks"`
	UpdatedAt            string `json:"updated_at,omitempty"`
	URL                  string `json:"url"`
}

// SummaryResponse is an overview of tracked or hot repositories. Source is
// "model" when a language model wrote the text and "builtin" otherwise.
type SummaryResponse struct {
	Summary      string `json:"summary"`
	Source       string `json:"source"`
	LookbackDays int    `json:"lookback_days"`
}

// ActivityResponse is the JSON representation of one activity.
type ActivityResponse struct {
	Type                 string `json:"type"`
	Title                string `json:"title"`
	TitleLocalized       string `json:"title_localized,omitempty"`
	Description          string `json:"description"`
	DescriptionLocalized string `json:"description_localized,omitempty"`
	CreatedAt            string `json:"created_at"`
	URL                  string `json:"url,omitempty"`
}

// TrackedRepoResponse is a tracked repository evaluated against a window.
type TrackedRepoResponse struct {
	RepositoryResponse
	TrackedAt      string             `json:"tracked_at"`
	LastCheckedAt  *string            `json:"last_checked_at"`
	LookbackDays   int                `json:"lookback_days"`
	Summary        string             `json:"summary"`
	HasUpdates     bool               `json:"has_updates"`
	LatestActivity *ActivityResponse  `json:"latest_activity"`
	Activities     []ActivityResponse `json:"activities"`
	Refreshing     bool               `json:"refreshing"`
	Tier           string             `json:"tier,omitempty"`
	NextRefreshAt  string             `json:"next_refresh_at,omitempty"`
}

// TrackRepoRequest is the JSON body for the track endpoint. Only full_name is
// required; the rest is optional catalog metadata, typically copied from a
// search result.
type TrackRepoRequest struct {
	FullName             string `json:"full_name"`
	Description          string `json:"description"`
	DescriptionLocalized string `json:"description_localized"`
	Stars                int    `json:"stars"`
	Forks                int    `json:"forks"`
	URL                  string `json:"url"`
}

// RefreshResultResponse is the outcome of refreshing one repository.
type RefreshResultResponse struct {
	Repo       string `json:"repo"`
	Activities int    `json:"activities"`
	Shared     bool   `json:"shared"`
	Error      string `json:"error,omitempty"`
}

// RefreshReportResponse is the outcome of refreshing every tracked repository.
type RefreshReportResponse struct {
	Results    []RefreshResultResponse `json:"results"`
	Failed     int                     `json:"failed"`
	DurationMS int64                   `json:"duration_ms"`
}

// TaskRequest is the JSON body for creating or editing a scheduled task.
type TaskRequest struct {
	Email        string   `json:"email"`
	Repositories []string `json:"repositories"`
	Frequency    string   `json:"frequency"`
	Weekday      *int     `json:"weekday,omitempty"`
	MonthDay     *int     `json:"month_day,omitempty"`
	ExecuteTime  string   `json:"execute_time,omitempty"`
}

// TaskResponse is the JSON representation of a scheduled task.
type TaskResponse struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	Repositories []string `json:"repositories"`
	Frequency    string   `json:"frequency"`
	Weekday      *int     `json:"weekday,omitempty"`
	MonthDay     *int     `json:"month_day,omitempty"`
	ExecuteTime  string   `json:"execute_time,omitempty"`
	Schedule     string   `json:"schedule"`
	NextRunAt    string   `json:"next_run_at,omitempty"`
	CreatedAt    string   `json:"created_at"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toRepositoryResponse(repo model.Repository) RepositoryResponse {
	resp := RepositoryResponse{
		FullName:             repo.FullName,
		Owner:                repo.Owner,
		Name:                 repo.Name,
		Description:          repo.Description,
		DescriptionLocalized: repo.DescriptionLocalized,
		Stars:                repo.Stars,
		Forks:                repo.Forks,
		URL:                  repo.URL,
	}
	if !repo.UpdatedAt.IsZero() {
		resp.UpdatedAt = formatTime(repo.UpdatedAt)
	}
	return resp
}

func toSummaryResponse(o application.Overview, days int) SummaryResponse {
	return SummaryResponse{Summary: o.Text, Source: string(o.Source), LookbackDays: days}
}

func toActivityResponse(a model.Activity) ActivityResponse {
	return ActivityResponse{
		Type:                 string(a.Type),
		Title:                a.Title,
		TitleLocalized:       a.TitleLocalized,
		Description:          a.Description,
		DescriptionLocalized: a.DescriptionLocalized,
		CreatedAt:            formatTime(a.CreatedAt),
		URL:                  a.URL,
	}
}

// toTrackedRepoResponse converts a status projection. Activities is always a
// non-nil array.
func toTrackedRepoResponse(s model.TrackedRepoStatus) TrackedRepoResponse {
	activities := make([]ActivityResponse, 0, len(s.Activities))
	for _, a := range s.Activities {
		activities = append(activities, toActivityResponse(a))
	}

	resp := TrackedRepoResponse{
		RepositoryResponse: toRepositoryResponse(s.Repository),
		TrackedAt:          formatTime(s.TrackedAt),
		LookbackDays:       s.LookbackDays,
		Summary:            s.Summary,
		HasUpdates:         s.HasUpdates,
		Activities:         activities,
	}
	if s.LastCheckedAt != nil {
		checked := formatTime(*s.LastCheckedAt)
		resp.LastCheckedAt = &checked
	}
	if s.LatestActivity != nil {
		latest := toActivityResponse(*s.LatestActivity)
		resp.LatestActivity = &latest
	}
	return resp
}

func toRefreshResultResponse(res application.RefreshResult) RefreshResultResponse {
	resp := RefreshResultResponse{
		Repo:       res.Repo,
		Activities: res.Activities,
		Shared:     res.Shared,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	return resp
}

func toRefreshReportResponse(report application.RefreshReport) RefreshReportResponse {
	results := make([]RefreshResultResponse, 0, len(report.Results))
	for _, res := range report.Results {
		results = append(results, toRefreshResultResponse(res))
	}
	return RefreshReportResponse{
		Results:    results,
		Failed:     len(report.Failed()),
		DurationMS: report.Duration.Milliseconds(),
	}
}

// toTaskDraft converts a request body. Recurrence errors are *model.ValidationError.
func toTaskDraft(req TaskRequest) (model.TaskDraft, error) {
	recurrence, err := model.ParseRecurrence(model.RecurrenceFields{
		Frequency:   model.Frequency(req.Frequency),
		Weekday:     req.Weekday,
		MonthDay:    req.MonthDay,
		ExecuteTime: req.ExecuteTime,
	})
	if err != nil {
		return model.TaskDraft{}, err
	}

	return model.TaskDraft{
		Email:        req.Email,
		Repositories: req.Repositories,
		Recurrence:   recurrence,
	}, nil
}

func toTaskResponse(task model.ScheduledTask, engine *application.ScheduleEngine, now time.Time) TaskResponse {
	repos := task.Repositories
	if repos == nil {
		repos = []string{}
	}

	resp := TaskResponse{
		ID:           task.ID,
		Email:        task.Email,
		Repositories: repos,
		Schedule:     engine.Describe(task),
		CreatedAt:    formatTime(task.CreatedAt),
	}

	if task.Recurrence != nil {
		fields := task.Recurrence.Fields()
		resp.Frequency = string(fields.Frequency)
		resp.Weekday = fields.Weekday
		resp.MonthDay = fields.MonthDay
		resp.ExecuteTime = fields.ExecuteTime
	}

	if next, ok := engine.NextFire(task, now); ok {
		resp.NextRunAt = next.Format(time.RFC3339)
	}

	return resp
}
