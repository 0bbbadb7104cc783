// Package application contains use-case orchestration services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

// TrackedRepoRegistry owns the set of tracked repositories and their latest
// activity snapshots. Mutations are persisted through the RepoStore before
// they become visible; a failed store call leaves the registry unchanged.
type TrackedRepoRegistry struct {
	store driven.RepoStore
	now   func() time.Time

	// writeMu serializes mutations across the store call and the in-memory swap.
	writeMu sync.Mutex

	mu    sync.RWMutex
	repos map[string]model.TrackedRepository
}

// NewTrackedRepoRegistry creates an empty registry backed by store. now may be
// nil, in which case time.Now is used.
func NewTrackedRepoRegistry(store driven.RepoStore, now func() time.Time) *TrackedRepoRegistry {
	if now == nil {
		now = time.Now
	}
	return &TrackedRepoRegistry{
		store: store,
		now:   now,
		repos: make(map[string]model.TrackedRepository),
	}
}

// Load replaces the in-memory set with the repositories held by the store.
func (r *TrackedRepoRegistry) Load(ctx context.Context) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	stored, err := r.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load tracked repositories: %w", err)
	}

	repos := make(map[string]model.TrackedRepository, len(stored))
	for _, repo := range stored {
		repos[repo.FullName] = repo
	}

	r.mu.Lock()
	r.repos = repos
	r.mu.Unlock()

	slog.Info("tracked repositories loaded", "count", len(repos))
	return nil
}

// Track adds a repository. Tracking an already tracked repository is a no-op.
func (r *TrackedRepoRegistry) Track(ctx context.Context, fullName string) error {
	return r.TrackRepository(ctx, model.Repository{FullName: fullName})
}

// TrackRepository adds a repository together with catalog metadata such as a
// search result carries. Owner and Name are derived from FullName. Tracking an
// already tracked repository is a no-op and keeps the stored metadata.
func (r *TrackedRepoRegistry) TrackRepository(ctx context.Context, meta model.Repository) error {
	fullName := meta.FullName
	owner, name, err := model.ParseFullName(fullName)
	if err != nil {
		return err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.IsTracked(fullName) {
		return nil
	}

	meta.Owner, meta.Name = owner, name
	if meta.URL == "" {
		meta.URL = "https://github.com/" + fullName
	}
	repo := model.TrackedRepository{
		Repository: meta,
		TrackedAt:  r.now().UTC(),
	}

	if err := r.store.Track(ctx, repo); err != nil {
		return fmt.Errorf("track %s: %w", fullName, err)
	}

	r.mu.Lock()
	r.repos[fullName] = repo
	r.mu.Unlock()

	slog.Info("repository tracked", "repo", fullName)
	return nil
}

// Untrack removes a repository. Untracking an unknown repository is a no-op.
func (r *TrackedRepoRegistry) Untrack(ctx context.Context, fullName string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if !r.IsTracked(fullName) {
		return nil
	}

	if err := r.store.Untrack(ctx, fullName); err != nil {
		return fmt.Errorf("untrack %s: %w", fullName, err)
	}

	r.mu.Lock()
	delete(r.repos, fullName)
	r.mu.Unlock()

	slog.Info("repository untracked", "repo", fullName)
	return nil
}

// IsTracked reports whether fullName is currently tracked.
func (r *TrackedRepoRegistry) IsTracked(fullName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.repos[fullName]
	return ok
}

// Get returns the tracked repository with the given name.
func (r *TrackedRepoRegistry) Get(fullName string) (model.TrackedRepository, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	repo, ok := r.repos[fullName]
	return repo, ok
}

// Names returns the full names of all tracked repositories in sorted order.
func (r *TrackedRepoRegistry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.repos))
	for name := range r.repos {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// List returns every tracked repository ordered by full name, with update
// status evaluated against lookbackDays at the time of the call.
func (r *TrackedRepoRegistry) List(lookbackDays int) []model.TrackedRepoStatus {
	now := r.now()

	r.mu.RLock()
	statuses := make([]model.TrackedRepoStatus, 0, len(r.repos))
	for _, repo := range r.repos {
		statuses = append(statuses, repo.StatusAt(lookbackDays, now))
	}
	r.mu.RUnlock()

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].FullName < statuses[j].FullName
	})
	return statuses
}

// RefreshSnapshot is the outcome of one fetch as applied to the registry. An
// empty Summary is replaced by the built-in activity summary.
type RefreshSnapshot struct {
	Activities   []model.Activity
	LookbackDays int
	Summary      string
}

// ApplyRefreshResult replaces the activity snapshot of a tracked repository.
// It returns driven.ErrRepoNotFound if the repository is no longer tracked.
func (r *TrackedRepoRegistry) ApplyRefreshResult(ctx context.Context, fullName string, activities []model.Activity, lookbackDays int) error {
	return r.ApplyRefreshSnapshot(ctx, fullName, RefreshSnapshot{Activities: activities, LookbackDays: lookbackDays})
}

// ApplyRefreshSnapshot is ApplyRefreshResult with a precomputed summary.
func (r *TrackedRepoRegistry) ApplyRefreshSnapshot(ctx context.Context, fullName string, snap RefreshSnapshot) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	repo, ok := r.Get(fullName)
	if !ok {
		return fmt.Errorf("apply refresh for %s: %w", fullName, driven.ErrRepoNotFound)
	}

	lookbackDays := snap.LookbackDays
	sorted := make([]model.Activity, len(snap.Activities))
	copy(sorted, snap.Activities)
	model.SortNewestFirst(sorted)

	checkedAt := r.now().UTC()
	summary := snap.Summary
	if summary == "" {
		summary = Summarize(sorted, lookbackDays, checkedAt)
	}

	if err := r.store.SaveRefresh(ctx, fullName, checkedAt, lookbackDays, summary, sorted); err != nil {
		return fmt.Errorf("apply refresh for %s: %w", fullName, err)
	}

	repo.Activities = sorted
	repo.LastCheckedAt = &checkedAt
	repo.LookbackDays = lookbackDays
	repo.Summary = summary

	r.mu.Lock()
	r.repos[fullName] = repo
	r.mu.Unlock()

	return nil
}
