package application

import (
	"time"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
)

// ActivityTier classifies how often a repository is refreshed in the
// background, based on how recently it had activity.
type ActivityTier int

const (
	// TierHot indicates activity within the last hour.
	TierHot ActivityTier = iota
	// TierActive indicates activity within the last day.
	TierActive
	// TierWarm indicates activity within the last 7 days.
	TierWarm
	// TierStale indicates no activity for 7+ days, or none fetched yet.
	TierStale
)

// Background refresh intervals per activity tier.
const (
	intervalHot    = 10 * time.Minute
	intervalActive = 30 * time.Minute
	intervalWarm   = 2 * time.Hour
	intervalStale  = 6 * time.Hour
)

// String returns a human-readable name for the activity tier.
func (t ActivityTier) String() string {
	switch t {
	case TierHot:
		return "hot"
	case TierActive:
		return "active"
	case TierWarm:
		return "warm"
	case TierStale:
		return "stale"
	default:
		return "unknown"
	}
}

// tierInterval returns the refresh interval for the given activity tier.
func tierInterval(tier ActivityTier) time.Duration {
	switch tier {
	case TierHot:
		return intervalHot
	case TierActive:
		return intervalActive
	case TierWarm:
		return intervalWarm
	case TierStale:
		return intervalStale
	default:
		return intervalActive
	}
}

// classifyActivity determines the tier from the time elapsed between the last
// activity and now. A zero time is TierStale.
func classifyActivity(lastActivity, now time.Time) ActivityTier {
	if lastActivity.IsZero() {
		return TierStale
	}

	elapsed := now.Sub(lastActivity)

	switch {
	case elapsed < 1*time.Hour:
		return TierHot
	case elapsed < 24*time.Hour:
		return TierActive
	case elapsed < 7*24*time.Hour:
		return TierWarm
	default:
		return TierStale
	}
}

// repoSchedule tracks per-repository background refresh state.
type repoSchedule struct {
	tier          ActivityTier
	nextRefreshAt time.Time
	lastRefreshed time.Time
}

// ScheduleInfo is an exported view of a repository's background refresh
// schedule, used for observability and testing.
type ScheduleInfo struct {
	Tier          ActivityTier
	NextRefreshAt time.Time
	LastRefreshed time.Time
}

// freshestActivity returns the newest CreatedAt across activities, or the
// zero time if there are none.
func freshestActivity(activities []model.Activity) time.Time {
	var newest time.Time
	for _, a := range activities {
		if a.CreatedAt.After(newest) {
			newest = a.CreatedAt
		}
	}
	return newest
}
