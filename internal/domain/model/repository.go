package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidIdentifier indicates a repository name that is not in owner/name form.
var ErrInvalidIdentifier = errors.New("invalid repository identifier")

// Repository is a snapshot of a GitHub repository as reported by the remote catalog.
type Repository struct {
	FullName             string
	Owner                string
	Name                 string
	Description          string
	DescriptionLocalized string
	Stars                int
	Forks                int
	UpdatedAt            time.Time
	URL                  string
}

// TrackedRepository is a repository the user follows, together with the
// activity fetched by the most recent successful refresh.
type TrackedRepository struct {
	Repository
	TrackedAt     time.Time
	LastCheckedAt *time.Time
	LookbackDays  int
	Activities    []Activity // newest first
	Summary       string
}

// TrackedRepoStatus is a TrackedRepository evaluated against a lookback
// window at query time.
type TrackedRepoStatus struct {
	TrackedRepository
	HasUpdates     bool
	LatestActivity *Activity
}

// HasUpdates reports whether any activity falls inside the lookback window
// ending at now.
func (t TrackedRepository) HasUpdates(lookbackDays int, now time.Time) bool {
	return t.LatestActivityWithin(lookbackDays, now) != nil
}

// LatestActivityWithin returns the most recent activity inside the lookback
// window, or nil when there is none.
func (t TrackedRepository) LatestActivityWithin(lookbackDays int, now time.Time) *Activity {
	cutoff := WindowStart(lookbackDays, now)

	var latest *Activity
	for i := range t.Activities {
		a := &t.Activities[i]
		if !a.CreatedAt.After(cutoff) {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}

	if latest == nil {
		return nil
	}
	found := *latest
	return &found
}

// StatusAt projects the repository against a lookback window.
func (t TrackedRepository) StatusAt(lookbackDays int, now time.Time) TrackedRepoStatus {
	latest := t.LatestActivityWithin(lookbackDays, now)
	return TrackedRepoStatus{
		TrackedRepository: t,
		HasUpdates:        latest != nil,
		LatestActivity:    latest,
	}
}

// LookbackWindows are the window sizes, in days, offered to users.
var LookbackWindows = []int{1, 7, 30, 90}

// IsLookbackWindow reports whether days is one of LookbackWindows.
func IsLookbackWindow(days int) bool {
	for _, w := range LookbackWindows {
		if w == days {
			return true
		}
	}
	return false
}

// WindowStart returns the exclusive lower bound of a lookback window.
// Non-positive windows are treated as a single day.
func WindowStart(lookbackDays int, now time.Time) time.Time {
	if lookbackDays < 1 {
		lookbackDays = 1
	}
	return now.Add(-time.Duration(lookbackDays) * 24 * time.Hour)
}

// ParseFullName splits an owner/name identifier, rejecting anything else.
// Each part may contain only ASCII letters, digits, hyphens, dots or underscores.
func ParseFullName(fullName string) (owner, name string, err error) {
	parts := strings.SplitN(fullName, "/", 3)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%q: %w", fullName, ErrInvalidIdentifier)
	}

	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			return "", "", fmt.Errorf("%q: %w", fullName, ErrInvalidIdentifier)
		}
		for _, ch := range part {
			if !isValidRepoChar(ch) {
				return "", "", fmt.Errorf("%q: %w", fullName, ErrInvalidIdentifier)
			}
		}
	}

	return parts[0], parts[1], nil
}

func isValidRepoChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '.' || ch == '_'
}
