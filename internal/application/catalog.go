package application

import (
	"context"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

// Overview is a prose summary together with where it came from.
type Overview struct {
	Text   string
	Source SummarySource
}

// CatalogService serves repository search and trending lists with localized
// descriptions, and overviews of trending and tracked repositories.
type CatalogService struct {
	gateway  driven.ActivityGateway
	enricher *Enricher
}

// NewCatalogService creates a CatalogService. enricher may be nil.
func NewCatalogService(gateway driven.ActivityGateway, enricher *Enricher) *CatalogService {
	return &CatalogService{gateway: gateway, enricher: enricher}
}

// Search returns repositories matching query.
func (c *CatalogService) Search(ctx context.Context, query string) ([]model.Repository, error) {
	repos, err := c.gateway.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return c.enricher.LocalizeRepositories(ctx, repos), nil
}

// Hot returns the most starred repositories created in the last days days.
func (c *CatalogService) Hot(ctx context.Context, days, limit int) ([]model.Repository, error) {
	repos, err := c.gateway.HotRepositories(ctx, days, limit)
	if err != nil {
		return nil, err
	}
	return c.enricher.LocalizeRepositories(ctx, repos), nil
}

// HotOverview summarizes the repositories Hot would return.
func (c *CatalogService) HotOverview(ctx context.Context, days, limit int) (Overview, error) {
	repos, err := c.gateway.HotRepositories(ctx, days, limit)
	if err != nil {
		return Overview{}, err
	}
	text, source := c.enricher.SummarizeHot(ctx, repos, days)
	return Overview{Text: text, Source: source}, nil
}

// TrackedOverview summarizes tracked repositories as evaluated against
// lookbackDays. It never calls the activity gateway.
func (c *CatalogService) TrackedOverview(ctx context.Context, statuses []model.TrackedRepoStatus, lookbackDays int) Overview {
	text, source := c.enricher.SummarizeTracked(ctx, statuses, lookbackDays)
	return Overview{Text: text, Source: source}
}
