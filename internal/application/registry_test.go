package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/repodigest/internal/application"
	"github.com/ericfisherdev/repodigest/internal/domain/model"
	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

var registryNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func newRegistry(t *testing.T, store *memRepoStore) *application.TrackedRepoRegistry {
	t.Helper()
	return application.NewTrackedRepoRegistry(store, fixedClock(registryNow))
}

func TestRegistry_TrackIsIdempotent(t *testing.T) {
	store := newMemRepoStore()
	reg := newRegistry(t, store)
	ctx := context.Background()

	require.NoError(t, reg.Track(ctx, "octocat/hello-world"))
	require.NoError(t, reg.Track(ctx, "octocat/hello-world"))

	assert.True(t, reg.IsTracked("octocat/hello-world"))
	assert.Len(t, reg.List(7), 1)
	assert.Equal(t, 1, store.trackCalls, "second track should not reach the store")
}

func TestRegistry_TrackRejectsInvalidIdentifier(t *testing.T) {
	tests := []string{"", "octocat", "octocat/", "/hello", "a/b/c", "octo cat/hello", "octocat/hello!"}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			store := newMemRepoStore()
			reg := newRegistry(t, store)

			err := reg.Track(context.Background(), name)

			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrInvalidIdentifier))
			assert.Equal(t, 0, store.trackCalls)
			assert.Empty(t, reg.List(1))
		})
	}
}

func TestRegistry_TrackStoreFailureLeavesStateUnchanged(t *testing.T) {
	store := newMemRepoStore()
	store.trackErr = errors.New("disk full")
	reg := newRegistry(t, store)

	err := reg.Track(context.Background(), "octocat/hello-world")

	require.Error(t, err)
	assert.False(t, reg.IsTracked("octocat/hello-world"))
}

func TestRegistry_UntrackIsIdempotent(t *testing.T) {
	reg := newRegistry(t, newMemRepoStore())
	ctx := context.Background()

	require.NoError(t, reg.Track(ctx, "octocat/hello-world"))
	require.NoError(t, reg.Untrack(ctx, "octocat/hello-world"))
	require.NoError(t, reg.Untrack(ctx, "octocat/hello-world"))
	require.NoError(t, reg.Untrack(ctx, "never/tracked"))

	assert.False(t, reg.IsTracked("octocat/hello-world"))
	assert.Empty(t, reg.List(1))
}

func TestRegistry_ListIsSortedByFullName(t *testing.T) {
	reg := newRegistry(t, newMemRepoStore())
	ctx := context.Background()

	for _, name := range []string{"zeta/repo", "alpha/repo", "mid/repo"} {
		require.NoError(t, reg.Track(ctx, name))
	}

	list := reg.List(1)
	require.Len(t, list, 3)
	assert.Equal(t, "alpha/repo", list[0].FullName)
	assert.Equal(t, "mid/repo", list[1].FullName)
	assert.Equal(t, "zeta/repo", list[2].FullName)
	assert.Equal(t, "alpha", list[0].Owner)
	assert.Equal(t, "repo", list[0].Name)
}

func TestRegistry_LatestActivityWithinWindow(t *testing.T) {
	reg := newRegistry(t, newMemRepoStore())
	ctx := context.Background()
	require.NoError(t, reg.Track(ctx, "octocat/hello-world"))

	t1 := registryNow.Add(-10 * 24 * time.Hour)
	t2 := registryNow.Add(-2 * time.Hour)
	activities := []model.Activity{
		{Type: model.ActivityCommit, Title: "old", CreatedAt: t1},
		{Type: model.ActivityRelease, Title: "new", CreatedAt: t2},
	}
	require.NoError(t, reg.ApplyRefreshResult(ctx, "octocat/hello-world", activities, 7))

	list := reg.List(7)
	require.Len(t, list, 1)
	assert.True(t, list[0].HasUpdates)
	require.NotNil(t, list[0].LatestActivity)
	assert.Equal(t, "new", list[0].LatestActivity.Title)
	assert.True(t, t2.Equal(list[0].LatestActivity.CreatedAt))

	// Activities are stored newest first regardless of input order.
	assert.Equal(t, "new", list[0].Activities[0].Title)
	require.NotNil(t, list[0].LastCheckedAt)
	assert.Equal(t, 7, list[0].LookbackDays)
	assert.NotEmpty(t, list[0].Summary)
}

func TestRegistry_WindowMonotonicity(t *testing.T) {
	reg := newRegistry(t, newMemRepoStore())
	ctx := context.Background()

	ages := map[string]time.Duration{
		"a/fresh":   3 * time.Hour,
		"b/week":    5 * 24 * time.Hour,
		"c/month":   20 * 24 * time.Hour,
		"d/quarter": 80 * 24 * time.Hour,
		"e/ancient": 400 * 24 * time.Hour,
	}
	for name, age := range ages {
		require.NoError(t, reg.Track(ctx, name))
		require.NoError(t, reg.ApplyRefreshResult(ctx, name, []model.Activity{
			{Type: model.ActivityCommit, Title: name, CreatedAt: registryNow.Add(-age)},
		}, 90))
	}
	require.NoError(t, reg.Track(ctx, "f/empty"))

	countUpdates := func(days int) int {
		n := 0
		for _, s := range reg.List(days) {
			if s.HasUpdates {
				n++
			}
		}
		return n
	}

	windows := []int{1, 7, 30, 90, 365}
	prev := 0
	for _, days := range windows {
		got := countUpdates(days)
		assert.GreaterOrEqual(t, got, prev, "window %d", days)
		prev = got
	}
	assert.Equal(t, 1, countUpdates(1))
	assert.Equal(t, 2, countUpdates(7))
	assert.Equal(t, 4, countUpdates(90))
}

func TestRegistry_ChangingWindowDoesNotMutateSnapshot(t *testing.T) {
	reg := newRegistry(t, newMemRepoStore())
	ctx := context.Background()
	require.NoError(t, reg.Track(ctx, "octocat/hello-world"))
	require.NoError(t, reg.ApplyRefreshResult(ctx, "octocat/hello-world", []model.Activity{
		{Type: model.ActivityIssue, Title: "bug", CreatedAt: registryNow.Add(-3 * 24 * time.Hour)},
	}, 7))

	assert.False(t, reg.List(1)[0].HasUpdates)
	assert.True(t, reg.List(7)[0].HasUpdates)
	assert.False(t, reg.List(1)[0].HasUpdates)
	assert.Len(t, reg.List(1)[0].Activities, 1)
}

func TestRegistry_ApplyRefreshResultUntracked(t *testing.T) {
	store := newMemRepoStore()
	reg := newRegistry(t, store)

	err := reg.ApplyRefreshResult(context.Background(), "octocat/gone", nil, 1)

	require.Error(t, err)
	assert.True(t, errors.Is(err, driven.ErrRepoNotFound))
	assert.Equal(t, 0, store.saveRefreshN)
}

func TestRegistry_ApplyRefreshStoreFailureKeepsPreviousSnapshot(t *testing.T) {
	store := newMemRepoStore()
	reg := newRegistry(t, store)
	ctx := context.Background()
	require.NoError(t, reg.Track(ctx, "octocat/hello-world"))
	require.NoError(t, reg.ApplyRefreshResult(ctx, "octocat/hello-world", []model.Activity{
		{Type: model.ActivityCommit, Title: "first", CreatedAt: registryNow.Add(-time.Hour)},
	}, 1))

	store.saveErr = errors.New("database is locked")
	err := reg.ApplyRefreshResult(ctx, "octocat/hello-world", []model.Activity{
		{Type: model.ActivityCommit, Title: "second", CreatedAt: registryNow},
	}, 1)

	require.Error(t, err)
	repo, ok := reg.Get("octocat/hello-world")
	require.True(t, ok)
	require.Len(t, repo.Activities, 1)
	assert.Equal(t, "first", repo.Activities[0].Title)
}

func TestRegistry_LoadHydratesFromStore(t *testing.T) {
	store := newMemRepoStore()
	store.repos["octocat/hello-world"] = model.TrackedRepository{
		Repository: model.Repository{FullName: "octocat/hello-world", Owner: "octocat", Name: "hello-world"},
		Activities: []model.Activity{{Type: model.ActivityCommit, CreatedAt: registryNow.Add(-time.Hour)}},
	}
	reg := newRegistry(t, store)

	require.NoError(t, reg.Load(context.Background()))

	assert.True(t, reg.IsTracked("octocat/hello-world"))
	assert.Equal(t, []string{"octocat/hello-world"}, reg.Names())
	assert.True(t, reg.List(1)[0].HasUpdates)
}

func TestRegistry_TrackRepositoryKeepsCatalogMetadata(t *testing.T) {
	store := newMemRepoStore()
	reg := newRegistry(t, store)
	ctx := context.Background()

	require.NoError(t, reg.TrackRepository(ctx, model.Repository{
		FullName:    "acme/rocket",
		Owner:       "ignored",
		Description: "Fast things",
		Stars:       5400,
		Forks:       210,
	}))

	repo, ok := reg.Get("acme/rocket")
	require.True(t, ok)
	assert.Equal(t, "acme", repo.Owner)
	assert.Equal(t, "rocket", repo.Name)
	assert.Equal(t, "Fast things", repo.Description)
	assert.Equal(t, 5400, repo.Stars)
	assert.Equal(t, "https://github.com/acme/rocket", repo.URL)
	assert.True(t, registryNow.Equal(repo.TrackedAt))
	assert.Equal(t, 5400, store.repos["acme/rocket"].Stars)
}
