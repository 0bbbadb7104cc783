package main

import (
	"context"
	"fmt"
	"log/slog"

	githubadapter "github.com/ericfisherdev/repodigest/internal/adapter/driven/github"
	keyringadapter "github.com/ericfisherdev/repodigest/internal/adapter/driven/keyring"
	"github.com/ericfisherdev/repodigest/internal/adapter/driven/mailer"
	"github.com/ericfisherdev/repodigest/internal/adapter/driven/ollama"
	sqliteadapter "github.com/ericfisherdev/repodigest/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/repodigest/internal/application"
	"github.com/ericfisherdev/repodigest/internal/config"
	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

// app is the wired object graph shared by serve and the one-shot commands.
type app struct {
	cfg          *config.Config
	db           *sqliteadapter.DB
	credentials  driven.CredentialStore
	gateway      *application.GatewayProvider
	registry     *application.TrackedRepoRegistry
	orchestrator *application.RefreshOrchestrator
	catalog      *application.CatalogService
	engine       *application.ScheduleEngine
}

// newApp opens the database, runs migrations and wires adapters to services.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	// Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("database opened", "path", cfg.DBPath)

	// Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}

	credentials := newCredentialStore()
	token := resolveToken(ctx, cfg, credentials)
	gateway := application.NewGatewayProvider(githubadapter.NewClient(token))

	registry := application.NewTrackedRepoRegistry(sqliteadapter.NewRepoRepo(db), nil)
	if err := registry.Load(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load tracked repositories: %w", err)
	}

	enricher := newEnricher(cfg)
	orchestrator := application.NewRefreshOrchestrator(gateway, registry, cfg.RefreshConcurrency,
		application.WithEnricher(enricher))

	var mail driven.Mailer = mailer.LogMailer{}
	if cfg.HasSMTP() {
		mail = mailer.NewSMTPMailer(mailer.SMTPConfig(cfg.SMTP))
	}
	digest := application.NewDigestService(registry, orchestrator, enricher, mail, cfg.LookbackDays, nil)
	engine := application.NewScheduleEngine(sqliteadapter.NewTaskRepo(db), registry, digest, loc)

	return &app{
		cfg:          cfg,
		db:           db,
		credentials:  credentials,
		gateway:      gateway,
		registry:     registry,
		orchestrator: orchestrator,
		catalog:      application.NewCatalogService(gateway, enricher),
		engine:       engine,
	}, nil
}

// newEnricher returns nil when no language model is configured. Translation
// additionally needs a target language.
func newEnricher(cfg *config.Config) *application.Enricher {
	if !cfg.HasLLM() {
		return nil
	}

	client := ollama.NewClient(cfg.LLM.URL, cfg.LLM.Model, cfg.LLM.Language, cfg.LLM.Timeout)
	var translator driven.Translator
	if cfg.Translates() {
		translator = client
	}
	slog.Debug("language model configured", "url", cfg.LLM.URL, "model", cfg.LLM.Model, "translate", translator != nil)
	return application.NewEnricher(translator, client, nil)
}

// reloadGateway swaps in a GitHub client built from the current token.
func (a *app) reloadGateway(ctx context.Context) {
	token := resolveToken(ctx, a.cfg, a.credentials)
	a.gateway.Replace(githubadapter.NewClient(token))
	slog.Info("github client reloaded", "authenticated", token != "")
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// resolveToken returns the GitHub token from the environment, falling back to
// the OS keyring. An empty result means anonymous API access.
func resolveToken(ctx context.Context, cfg *config.Config, creds driven.CredentialStore) string {
	if cfg.HasGitHubToken() {
		return cfg.GitHubToken
	}

	token, err := creds.Get(ctx, keyringadapter.GitHubTokenKey)
	if err != nil {
		slog.Warn("keyring unavailable, using anonymous github access", "error", err)
		return ""
	}
	if token == "" {
		slog.Info("no github token configured, using anonymous github access")
	}
	return token
}
