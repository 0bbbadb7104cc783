package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
)

// ErrRemoteUnavailable indicates a collaborator call failed or timed out.
var ErrRemoteUnavailable = errors.New("remote unavailable")

// ActivityGateway defines the driven port for reading repository activity and
// the repository catalog. Failures wrap ErrRemoteUnavailable or ErrRepoNotFound.
type ActivityGateway interface {
	// FetchActivities returns the activities of a repository within the last
	// lookbackDays days, newest first.
	FetchActivities(ctx context.Context, repoFullName string, lookbackDays int) ([]model.Activity, error)
	// Search returns repositories matching a free-text query.
	Search(ctx context.Context, query string) ([]model.Repository, error)
	// HotRepositories returns the most starred repositories created within
	// the last days days.
	HotRepositories(ctx context.Context, days, limit int) ([]model.Repository, error)
}
