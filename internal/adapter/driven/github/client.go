// Package github implements the ActivityGateway port using the go-github and
// githubv4 libraries.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ActivityGateway = (*Client)(nil)

const (
	perPage = 100

	// maxPages bounds how far a single endpoint is paged during one refresh.
	maxPages = 10

	// searchLimit is how many repositories Search returns.
	searchLimit = 10
)

// Client implements driven.ActivityGateway against the GitHub API.
type Client struct {
	gh      *gh.Client
	graphql *githubv4.Client // nil when no token is configured
	now     func() time.Time
}

// NewClient creates a GitHub client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. oauth2 (bearer token, only when token is non-empty)
//
// REST and GraphQL share the same stack. Without a token the client runs
// anonymously and hot repositories fall back to REST search.
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	httpClient := github_ratelimit.NewClient(cacheTransport)

	c := &Client{now: time.Now}

	if token != "" {
		httpClient = &http.Client{
			Transport: &oauth2.Transport{
				Base:   httpClient.Transport,
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			},
		}
		c.graphql = githubv4.NewClient(httpClient)
	}
	c.gh = gh.NewClient(httpClient)

	return c
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
// GraphQL requests go to baseURL + "/graphql" when withGraphQL is set.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, withGraphQL bool, now func() time.Time) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	client := gh.NewClient(httpClient)
	client.BaseURL = u

	if now == nil {
		now = time.Now
	}
	c := &Client{gh: client, now: now}

	if withGraphQL {
		c.graphql = githubv4.NewEnterpriseClient(u.JoinPath("graphql").String(), httpClient)
	}

	return c, nil
}

// FetchActivities returns the commits, issues, pull requests and releases of
// a repository that fall inside the lookback window, newest first. Issues and
// pull requests are dated by their last update.
func (c *Client) FetchActivities(ctx context.Context, repoFullName string, lookbackDays int) ([]model.Activity, error) {
	owner, repo, err := model.ParseFullName(repoFullName)
	if err != nil {
		return nil, err
	}

	since := model.WindowStart(lookbackDays, c.now())

	fetchers := []struct {
		name  string
		fetch func(context.Context, string, string, time.Time) ([]model.Activity, error)
	}{
		{"commits", c.fetchCommits},
		{"issues", c.fetchIssues},
		{"pulls", c.fetchPullRequests},
		{"releases", c.fetchReleases},
	}

	var all []model.Activity
	for _, f := range fetchers {
		activities, err := f.fetch(ctx, owner, repo, since)
		if err != nil {
			return nil, err
		}
		all = append(all, activities...)
	}

	// Endpoints filter at day or page granularity; enforce the window exactly.
	inWindow := all[:0]
	for _, a := range all {
		if a.CreatedAt.After(since) {
			inWindow = append(inWindow, a)
		}
	}

	model.SortNewestFirst(inWindow)

	if inWindow == nil {
		inWindow = []model.Activity{}
	}

	return inWindow, nil
}

func (c *Client) fetchCommits(ctx context.Context, owner, repo string, since time.Time) ([]model.Activity, error) {
	fullName := owner + "/" + repo
	opts := &gh.CommitsListOptions{
		Since:       since,
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	var out []model.Activity
	for page := 0; page < maxPages; page++ {
		commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, repo, opts)
		if err != nil {
			// An empty repository answers 409 Conflict.
			if resp != nil && resp.StatusCode == http.StatusConflict {
				return nil, nil
			}
			return nil, classifyError(err, resp, "listing commits", fullName)
		}

		logRateLimit(resp, fullName+"/commits", opts.Page, len(commits))

		for _, commit := range commits {
			out = append(out, mapCommit(commit))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return out, nil
}

func (c *Client) fetchIssues(ctx context.Context, owner, repo string, since time.Time) ([]model.Activity, error) {
	fullName := owner + "/" + repo
	opts := &gh.IssueListByRepoOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		Since:       since,
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	var out []model.Activity
	for page := 0; page < maxPages; page++ {
		issues, resp, err := c.gh.Issues.ListByRepo(ctx, owner, repo, opts)
		if err != nil {
			return nil, classifyError(err, resp, "listing issues", fullName)
		}

		logRateLimit(resp, fullName+"/issues", opts.ListOptions.Page, len(issues))

		for _, issue := range issues {
			// The issues endpoint also returns pull requests.
			if issue.IsPullRequest() {
				continue
			}
			out = append(out, model.Activity{
				Type:        model.ActivityIssue,
				Title:       issue.GetTitle(),
				Description: issue.GetBody(),
				CreatedAt:   issue.GetUpdatedAt().Time,
				URL:         issue.GetHTMLURL(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}

	return out, nil
}

func (c *Client) fetchPullRequests(ctx context.Context, owner, repo string, since time.Time) ([]model.Activity, error) {
	fullName := owner + "/" + repo
	opts := &gh.PullRequestListOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	var out []model.Activity
	for page := 0; page < maxPages; page++ {
		prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, classifyError(err, resp, "listing pull requests", fullName)
		}

		logRateLimit(resp, fullName+"/pulls", opts.Page, len(prs))

		for _, pr := range prs {
			updated := pr.GetUpdatedAt().Time
			// Sorted by update time, so everything after this is older too.
			if !updated.After(since) {
				return out, nil
			}
			out = append(out, model.Activity{
				Type:        model.ActivityPullRequest,
				Title:       pr.GetTitle(),
				Description: pr.GetBody(),
				CreatedAt:   updated,
				URL:         pr.GetHTMLURL(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return out, nil
}

func (c *Client) fetchReleases(ctx context.Context, owner, repo string, since time.Time) ([]model.Activity, error) {
	fullName := owner + "/" + repo
	opts := &gh.ListOptions{PerPage: perPage}

	var out []model.Activity
	for page := 0; page < maxPages; page++ {
		releases, resp, err := c.gh.Repositories.ListReleases(ctx, owner, repo, opts)
		if err != nil {
			return nil, classifyError(err, resp, "listing releases", fullName)
		}

		logRateLimit(resp, fullName+"/releases", opts.Page, len(releases))

		for _, release := range releases {
			if release.GetDraft() {
				continue
			}
			activity := mapRelease(release)
			// Releases come newest first.
			if !activity.CreatedAt.After(since) {
				return out, nil
			}
			out = append(out, activity)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return out, nil
}

// Search returns up to ten repositories matching query, most starred first.
func (c *Client) Search(ctx context.Context, query string) ([]model.Repository, error) {
	return c.searchRepositories(ctx, query, searchLimit)
}

func (c *Client) searchRepositories(ctx context.Context, query string, limit int) ([]model.Repository, error) {
	opts := &gh.SearchOptions{
		Sort:        "stars",
		Order:       "desc",
		ListOptions: gh.ListOptions{PerPage: limit},
	}

	result, resp, err := c.gh.Search.Repositories(ctx, query, opts)
	if err != nil {
		return nil, classifyError(err, resp, "searching repositories", query)
	}

	logRateLimit(resp, "search/repositories", 0, len(result.Repositories))

	repos := make([]model.Repository, 0, len(result.Repositories))
	for _, r := range result.Repositories {
		if len(repos) == limit {
			break
		}
		repos = append(repos, mapRepository(r))
	}

	return repos, nil
}

// logRateLimit logs rate limit information from a GitHub API response.
// Warns when remaining requests fall below 100.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// classifyError maps a GitHub API failure onto the port's sentinels.
// Context cancellation passes through unchanged.
func classifyError(err error, resp *gh.Response, action, subject string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s for %s: %w", action, subject, err)
	}
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s for %s: %w", action, subject, driven.ErrRepoNotFound)
	}
	return fmt.Errorf("%s for %s: %w: %w", action, subject, driven.ErrRemoteUnavailable, err)
}

// mapCommit converts a go-github RepositoryCommit. The first line of the
// message becomes the title and the rest the description.
func mapCommit(rc *gh.RepositoryCommit) model.Activity {
	commit := rc.GetCommit()
	title, body, _ := strings.Cut(commit.GetMessage(), "\n")

	date := commit.GetCommitter().GetDate().Time
	if date.IsZero() {
		date = commit.GetAuthor().GetDate().Time
	}

	return model.Activity{
		Type:        model.ActivityCommit,
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(body),
		CreatedAt:   date,
		URL:         rc.GetHTMLURL(),
	}
}

// mapRelease converts a go-github RepositoryRelease, dating it by publication
// and falling back to creation for unpublished tags.
func mapRelease(r *gh.RepositoryRelease) model.Activity {
	title := r.GetName()
	if title == "" {
		title = r.GetTagName()
	}

	date := r.GetPublishedAt().Time
	if date.IsZero() {
		date = r.GetCreatedAt().Time
	}

	return model.Activity{
		Type:        model.ActivityRelease,
		Title:       title,
		Description: r.GetBody(),
		CreatedAt:   date,
		URL:         r.GetHTMLURL(),
	}
}

// mapRepository converts a go-github Repository. It uses GetXxx() helpers
// exclusively to avoid nil pointer panics.
func mapRepository(r *gh.Repository) model.Repository {
	return model.Repository{
		FullName:    r.GetFullName(),
		Owner:       r.GetOwner().GetLogin(),
		Name:        r.GetName(),
		Description: r.GetDescription(),
		Stars:       r.GetStargazersCount(),
		Forks:       r.GetForksCount(),
		UpdatedAt:   r.GetPushedAt().Time,
		URL:         r.GetHTMLURL(),
	}
}
