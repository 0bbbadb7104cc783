package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

// RefreshResult is the outcome of refreshing one repository.
type RefreshResult struct {
	Repo       string
	Activities int
	// Shared is true when the caller attached to a refresh started by someone else.
	Shared bool
	Err    error
}

// RefreshReport collects the independent outcomes of a RefreshAll call.
type RefreshReport struct {
	Results  []RefreshResult
	Duration time.Duration
}

// Failed returns the results that carry an error.
func (r RefreshReport) Failed() []RefreshResult {
	var failed []RefreshResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Err aggregates every per-repository failure, or returns nil if all succeeded.
func (r RefreshReport) Err() error {
	var result *multierror.Error
	for _, res := range r.Failed() {
		result = multierror.Append(result, res.Err)
	}
	return result.ErrorOrNil()
}

// inflightRefresh is a pending refresh that any number of callers can wait on.
type inflightRefresh struct {
	done    chan struct{}
	waiters int
	count   int
	err     error
}

// RefreshOrchestrator drives ActivityGateway fetches for tracked repositories.
// At most one fetch per repository is in flight at any time; concurrent
// requests for the same repository share its outcome.
type RefreshOrchestrator struct {
	gateway     driven.ActivityGateway
	registry    *TrackedRepoRegistry
	concurrency int
	enricher    *Enricher

	mu       sync.Mutex
	inflight map[string]*inflightRefresh
}

// OrchestratorOption configures a RefreshOrchestrator.
type OrchestratorOption func(*RefreshOrchestrator)

// WithEnricher localizes and summarizes every fetched snapshot before it is
// applied. Enrichment failures never fail the refresh.
func WithEnricher(e *Enricher) OrchestratorOption {
	return func(o *RefreshOrchestrator) { o.enricher = e }
}

// NewRefreshOrchestrator creates an orchestrator. concurrency bounds the
// number of repositories RefreshAll fetches at once; values below 1 mean
// unbounded.
func NewRefreshOrchestrator(gateway driven.ActivityGateway, registry *TrackedRepoRegistry, concurrency int, opts ...OrchestratorOption) *RefreshOrchestrator {
	o := &RefreshOrchestrator{
		gateway:     gateway,
		registry:    registry,
		concurrency: concurrency,
		inflight:    make(map[string]*inflightRefresh),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RefreshOne fetches and applies the activity of one tracked repository. If a
// refresh of the same repository is already running, the call waits for it
// and returns its result instead of starting another fetch.
//
// The shared fetch is not canceled when ctx is; a canceled caller only stops
// waiting.
func (o *RefreshOrchestrator) RefreshOne(ctx context.Context, fullName string, lookbackDays int) RefreshResult {
	if _, _, err := model.ParseFullName(fullName); err != nil {
		return RefreshResult{Repo: fullName, Err: err}
	}
	if !o.registry.IsTracked(fullName) {
		return RefreshResult{Repo: fullName, Err: fmt.Errorf("refresh %s: %w", fullName, driven.ErrRepoNotFound)}
	}

	o.mu.Lock()
	call, shared := o.inflight[fullName]
	if !shared {
		call = &inflightRefresh{done: make(chan struct{})}
		o.inflight[fullName] = call
		go o.run(context.WithoutCancel(ctx), fullName, lookbackDays, call)
	}
	call.waiters++
	o.mu.Unlock()

	select {
	case <-call.done:
		return RefreshResult{Repo: fullName, Activities: call.count, Shared: shared, Err: call.err}
	case <-ctx.Done():
		return RefreshResult{Repo: fullName, Shared: shared, Err: ctx.Err()}
	}
}

// run performs the fetch, applies the result, clears the in-flight marker and
// finally releases the waiters, in that order.
func (o *RefreshOrchestrator) run(ctx context.Context, fullName string, lookbackDays int, call *inflightRefresh) {
	start := time.Now()
	call.count, call.err = o.fetchAndApply(ctx, fullName, lookbackDays)

	o.mu.Lock()
	delete(o.inflight, fullName)
	waiters := call.waiters
	o.mu.Unlock()

	close(call.done)

	if call.err != nil {
		slog.Error("repo refresh failed", "repo", fullName, "waiters", waiters, "error", call.err)
		return
	}
	slog.Info("repo refreshed",
		"repo", fullName,
		"activities", call.count,
		"lookback_days", lookbackDays,
		"waiters", waiters,
		"duration", time.Since(start).Round(time.Millisecond),
	)
}

func (o *RefreshOrchestrator) fetchAndApply(ctx context.Context, fullName string, lookbackDays int) (int, error) {
	activities, err := o.gateway.FetchActivities(ctx, fullName, lookbackDays)
	if err != nil {
		return 0, fmt.Errorf("refresh %s: %w", fullName, err)
	}

	activities = o.enricher.LocalizeActivities(ctx, fullName, activities)
	snap := RefreshSnapshot{
		Activities:   activities,
		LookbackDays: lookbackDays,
		Summary:      o.enricher.SummarizeActivity(ctx, fullName, activities, lookbackDays),
	}

	if err := o.registry.ApplyRefreshSnapshot(ctx, fullName, snap); err != nil {
		return 0, err
	}

	return len(activities), nil
}

// RefreshAll refreshes every tracked repository concurrently. One
// repository's failure never cancels or hides another's result.
func (o *RefreshOrchestrator) RefreshAll(ctx context.Context, lookbackDays int) RefreshReport {
	return o.RefreshMany(ctx, o.registry.Names(), lookbackDays)
}

// RefreshMany refreshes the named repositories concurrently. Results are
// returned in the order of names.
func (o *RefreshOrchestrator) RefreshMany(ctx context.Context, names []string, lookbackDays int) RefreshReport {
	start := time.Now()
	results := make([]RefreshResult, len(names))

	var g errgroup.Group
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}
	for i, name := range names {
		g.Go(func() error {
			results[i] = o.RefreshOne(ctx, name, lookbackDays)
			return nil
		})
	}
	_ = g.Wait()

	report := RefreshReport{Results: results, Duration: time.Since(start)}

	slog.Info("refresh cycle complete",
		"repos", len(names),
		"errors", len(report.Failed()),
		"duration", report.Duration.Round(time.Millisecond),
	)

	return report
}

// IsRefreshing reports whether a fetch for fullName is currently in flight.
func (o *RefreshOrchestrator) IsRefreshing(fullName string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inflight[fullName]
	return ok
}
