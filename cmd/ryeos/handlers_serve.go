package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/leolilley/ryeos/internal/cliserve"
	"github.com/leolilley/ryeos/internal/config"
	"github.com/leolilley/ryeos/internal/httpapi"
)

// runServe loads configuration, assembles an orchestrator, and serves the
// HTTP surface until a shutdown signal arrives, then drains it gracefully.
// Grounded on the teacher's runServe: signal-context wrapping, a Start
// call that returns once the listener is bound, and a timeout-bounded Stop
// on the way out.
func runServe(cmd *cobra.Command, configPath string) error {
	slog.Info("starting ryeos", "version", version, "commit", commit, "config", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	built, err := cliserve.Build(cfg, slog.Default(), false)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	server := httpapi.New(httpapi.Config{
		Addr:   cfg.HTTPAddr(),
		Orch:   built.Orchestrator,
		Logger: slog.Default(),
	})

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	watchConfigFile(ctx, configPath)

	// httpapi.Server.Start binds the listener and serves on its own
	// goroutine, reporting only through its logger from then on — unlike
	// the teacher's gateway.Server, whose Start blocks for the server's
	// whole lifetime, so there is no error channel to select on here.
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("start httpapi: %w", err)
	}

	slog.Info("ryeos httpapi started", "addr", cfg.HTTPAddr())

	<-ctx.Done()
	slog.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	slog.Info("ryeos stopped gracefully")
	return nil
}

// watchConfigFile drops internal/config's content-hash cache entry for
// configPath whenever its directory reports a write. It does not rebuild
// the running orchestrator — that still requires a restart — it only
// drops the memoized parse early; a later config.Load(configPath) call in
// this process re-parses a file whose content hash changed either way.
func watchConfigFile(ctx context.Context, configPath string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("config watch disabled", "error", err)
		return
	}
	dir := filepath.Dir(configPath)
	if err := watcher.Add(dir); err != nil {
		slog.Warn("config watch disabled", "dir", dir, "error", err)
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(configPath) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				config.InvalidateRaw(configPath)
				slog.Info("config file changed, cache invalidated", "path", configPath)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config watch error", "error", err)
			}
		}
	}()
}
