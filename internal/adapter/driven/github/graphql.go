package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shurcooL/githubv4"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

// maxHotRepositories is the largest page the search connection accepts.
const maxHotRepositories = 100

// hotRepositoriesQuery searches repositories and reads the fields the
// catalog needs in one round trip.
type hotRepositoriesQuery struct {
	Search struct {
		Nodes []struct {
			Repository struct {
				NameWithOwner  string
				Name           string
				Owner          struct{ Login string }
				Description    *string
				StargazerCount int
				ForkCount      int
				PushedAt       *githubv4.DateTime
				URL            string `graphql:"url"`
			} `graphql:"... on Repository"`
		}
	} `graphql:"search(query: $query, type: REPOSITORY, first: $first)"`
}

// HotRepositories returns the most starred repositories created within the
// last days. It uses GraphQL when a token is configured and REST search
// otherwise.
func (c *Client) HotRepositories(ctx context.Context, days, limit int) ([]model.Repository, error) {
	if limit < 1 {
		limit = searchLimit
	}
	if limit > maxHotRepositories {
		limit = maxHotRepositories
	}

	since := model.WindowStart(days, c.now())
	query := fmt.Sprintf("created:>%s sort:stars-desc", since.Format("2006-01-02"))

	if c.graphql == nil {
		return c.searchRepositories(ctx, query, limit)
	}

	var q hotRepositoriesQuery
	variables := map[string]any{
		"query": githubv4.String(query),
		"first": githubv4.Int(limit),
	}

	if err := c.graphql.Query(ctx, &q, variables); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("graphql hot repositories: %w", err)
		}
		return nil, fmt.Errorf("graphql hot repositories: %w: %w", driven.ErrRemoteUnavailable, err)
	}

	repos := make([]model.Repository, 0, len(q.Search.Nodes))
	for _, node := range q.Search.Nodes {
		r := node.Repository
		// Non-repository nodes decode as empty.
		if r.NameWithOwner == "" {
			continue
		}

		repo := model.Repository{
			FullName: r.NameWithOwner,
			Owner:    r.Owner.Login,
			Name:     r.Name,
			Stars:    r.StargazerCount,
			Forks:    r.ForkCount,
			URL:      r.URL,
		}
		if r.Description != nil {
			repo.Description = *r.Description
		}
		if r.PushedAt != nil {
			repo.UpdatedAt = r.PushedAt.Time
		}
		repos = append(repos, repo)
	}

	slog.Debug("github graphql call", "endpoint", "search/hot", "count", len(repos))

	return repos, nil
}
