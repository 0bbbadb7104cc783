package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
)

// ErrRepoNotFound indicates the requested repository does not exist, either
// in the local store or on the remote.
var ErrRepoNotFound = errors.New("repository not found")

// RepoStore defines the driven port for tracked repository persistence.
// Track and Untrack are idempotent. SaveRefresh returns ErrRepoNotFound if the
// repository is not tracked.
type RepoStore interface {
	Track(ctx context.Context, repo model.TrackedRepository) error
	Untrack(ctx context.Context, fullName string) error
	ListAll(ctx context.Context) ([]model.TrackedRepository, error)
	// SaveRefresh atomically replaces the stored activities, summary, lookback
	// and last-checked timestamp of a repository.
	SaveRefresh(ctx context.Context, fullName string, checkedAt time.Time, lookbackDays int, summary string, activities []model.Activity) error
}
