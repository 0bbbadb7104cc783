package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ActivityGateway = (*GatewayProvider)(nil)

// GatewayProvider enables runtime hot-swap of the activity gateway, so a
// credential update takes effect without restarting. It implements
// driven.ActivityGateway by delegating to the current gateway.
type GatewayProvider struct {
	mu      sync.RWMutex
	gateway driven.ActivityGateway
}

// NewGatewayProvider creates a provider with the given initial gateway.
// gateway may be nil if no credentials are available at startup.
func NewGatewayProvider(gateway driven.ActivityGateway) *GatewayProvider {
	return &GatewayProvider{gateway: gateway}
}

// Get returns the current gateway, which may be nil.
func (p *GatewayProvider) Get() driven.ActivityGateway {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gateway
}

// Replace swaps the current gateway. In-flight calls finish on the old one.
func (p *GatewayProvider) Replace(gateway driven.ActivityGateway) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gateway = gateway
}

// HasGateway returns true if a non-nil gateway is currently held.
func (p *GatewayProvider) HasGateway() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gateway != nil
}

func (p *GatewayProvider) current() (driven.ActivityGateway, error) {
	gw := p.Get()
	if gw == nil {
		return nil, fmt.Errorf("no github gateway configured: %w", driven.ErrRemoteUnavailable)
	}
	return gw, nil
}

// FetchActivities delegates to the current gateway.
func (p *GatewayProvider) FetchActivities(ctx context.Context, repoFullName string, lookbackDays int) ([]model.Activity, error) {
	gw, err := p.current()
	if err != nil {
		return nil, err
	}
	return gw.FetchActivities(ctx, repoFullName, lookbackDays)
}

// Search delegates to the current gateway.
func (p *GatewayProvider) Search(ctx context.Context, query string) ([]model.Repository, error) {
	gw, err := p.current()
	if err != nil {
		return nil, err
	}
	return gw.Search(ctx, query)
}

// HotRepositories delegates to the current gateway.
func (p *GatewayProvider) HotRepositories(ctx context.Context, days, limit int) ([]model.Repository, error) {
	gw, err := p.current()
	if err != nil {
		return nil, err
	}
	return gw.HotRepositories(ctx, days, limit)
}
