package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/repodigest/internal/adapter/driving/http"
	"github.com/ericfisherdev/repodigest/internal/application"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API, background refresh and the digest dispatcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), c)
		},
	}
}

func runServe(ctx context.Context, c *cli) error {
	cfg := c.cfg

	// 1. Log loaded configuration.
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"lookback_days", cfg.LookbackDays,
		"refresh_interval", cfg.RefreshInterval,
		"dispatch_interval", cfg.DispatchInterval,
		"timezone", cfg.Timezone,
		"smtp", cfg.HasSMTP(),
		"llm", cfg.HasLLM(),
	)

	// 2. Open database, run migrations and wire services.
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// 3. Reload the GitHub token from the keyring on SIGHUP.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				a.reloadGateway(ctx)
			}
		}
	}()

	// 4. Start background refresh (disabled by a zero interval).
	var poller *application.PollService
	if cfg.RefreshInterval > 0 {
		poller = application.NewPollService(a.orchestrator, a.registry, cfg.RefreshInterval, cfg.LookbackDays, nil)
		go poller.Start(ctx)
	} else {
		slog.Info("background refresh disabled")
	}

	// 5. Start the scheduled task dispatcher.
	dispatcher := application.NewDispatcher(a.engine, cfg.DispatchInterval, nil)
	go dispatcher.Start(ctx)

	// 6. Create HTTP handler and register API routes.
	apiHandler := httphandler.NewHandler(a.registry, a.orchestrator, a.engine, a.catalog, poller, cfg.LookbackDays, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("repodigest started",
		"listen_addr", cfg.ListenAddr,
		"tracked_repositories", len(a.registry.Names()),
	)

	// 7. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 8. Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
