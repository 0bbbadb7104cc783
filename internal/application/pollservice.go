package application

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

// PollService refreshes tracked repositories in the background. Each
// repository is refreshed on its own adaptive interval derived from how
// recently it had activity; the service wakes up every tick to find the
// repositories that are due.
type PollService struct {
	orchestrator *RefreshOrchestrator
	registry     *TrackedRepoRegistry
	tick         time.Duration
	lookbackDays int
	now          func() time.Time

	mu        sync.Mutex
	schedules map[string]*repoSchedule
}

// NewPollService creates a new PollService. now may be nil, in which case
// time.Now is used.
func NewPollService(
	orchestrator *RefreshOrchestrator,
	registry *TrackedRepoRegistry,
	tick time.Duration,
	lookbackDays int,
	now func() time.Time,
) *PollService {
	if now == nil {
		now = time.Now
	}
	return &PollService{
		orchestrator: orchestrator,
		registry:     registry,
		tick:         tick,
		lookbackDays: lookbackDays,
		now:          now,
		schedules:    make(map[string]*repoSchedule),
	}
}

// Start runs an immediate refresh of every due repository, then re-checks on
// every tick. Start blocks until the context is canceled.
func (s *PollService) Start(ctx context.Context) {
	s.PollDue(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("poll service stopped")
			return
		case <-ticker.C:
			s.PollDue(ctx)
		}
	}
}

// PollDue refreshes the repositories whose next refresh time has passed and
// reschedules them by activity tier. It returns the names it refreshed.
func (s *PollService) PollDue(ctx context.Context) []string {
	now := s.now()
	names := s.registry.Names()

	s.mu.Lock()
	tracked := make(map[string]bool, len(names))
	var due []string
	for _, name := range names {
		tracked[name] = true
		sched, ok := s.schedules[name]
		if !ok || !sched.nextRefreshAt.After(now) {
			due = append(due, name)
		}
	}
	for name := range s.schedules {
		if !tracked[name] {
			delete(s.schedules, name)
		}
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return nil
	}

	// A repository keeps the widest window it was last fetched with so a
	// manual 90 day refresh is not narrowed back to the default.
	byWindow := make(map[int][]string)
	for _, name := range due {
		days := s.lookbackDays
		if repo, ok := s.registry.Get(name); ok {
			days = max(days, repo.LookbackDays)
		}
		byWindow[days] = append(byWindow[days], name)
	}

	var results []RefreshResult
	for _, days := range slices.Sorted(maps.Keys(byWindow)) {
		report := s.orchestrator.RefreshMany(ctx, byWindow[days], days)
		results = append(results, report.Results...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, res := range results {
		sched, ok := s.schedules[res.Repo]
		if !ok {
			sched = &repoSchedule{tier: TierStale}
			s.schedules[res.Repo] = sched
		}

		if res.Err == nil {
			sched.lastRefreshed = now
			if repo, ok := s.registry.Get(res.Repo); ok {
				newTier := classifyActivity(freshestActivity(repo.Activities), now)
				if newTier != sched.tier {
					slog.Info("repo tier changed", "repo", res.Repo, "from", sched.tier.String(), "to", newTier.String())
				}
				sched.tier = newTier
			}
		}
		sched.nextRefreshAt = now.Add(tierInterval(sched.tier))
	}

	return due
}

// GetSchedule returns the background refresh schedule of a repository.
func (s *PollService) GetSchedule(fullName string) (ScheduleInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[fullName]
	if !ok {
		return ScheduleInfo{}, false
	}
	return ScheduleInfo{
		Tier:          sched.tier,
		NextRefreshAt: sched.nextRefreshAt,
		LastRefreshed: sched.lastRefreshed,
	}, true
}
