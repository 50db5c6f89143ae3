package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/streamkitdev/streamkit/internal/action"
	"github.com/streamkitdev/streamkit/internal/api"
	"github.com/streamkitdev/streamkit/internal/automation"
	"github.com/streamkitdev/streamkit/internal/bus"
	"github.com/streamkitdev/streamkit/internal/command"
	"github.com/streamkitdev/streamkit/internal/env"
	"github.com/streamkitdev/streamkit/internal/moderation"
	"github.com/streamkitdev/streamkit/internal/pipeline"
	"github.com/streamkitdev/streamkit/internal/platform"
	"github.com/streamkitdev/streamkit/internal/rules"
	"github.com/streamkitdev/streamkit/internal/sink"
	"github.com/streamkitdev/streamkit/internal/timers"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", env.String("ADDR", ":8080"), "HTTP listen address")
	rulesPath := flag.String("rules", env.String("RULES_PATH", "configs/rules.yaml"), "Path to rules YAML file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Rule store ────────────────────────────────────────────────────────────
	store, err := rules.NewStore(*rulesPath, logger)
	if err != nil {
		logger.Error("failed to load rules", "err", err)
		os.Exit(1)
	}
	conf := store.Engine()
	logger.Info("rules loaded", "path", *rulesPath, "streamers", len(store.Streamers()))

	// ── Event bus + broadcast sinks ───────────────────────────────────────────
	b := bus.New(logger)
	hub := sink.NewHub(logger)
	b.AttachSink(hub)
	if natsURL := env.String("NATS_URL", ""); natsURL != "" {
		ns, err := sink.ConnectNATS(natsURL, env.Duration("NATS_CONNECT_TIMEOUT", 10*time.Second), logger)
		if err != nil {
			logger.Warn("nats sink unavailable", "err", err)
		} else {
			b.AttachSink(ns)
			logger.Info("nats sink attached", "url", natsURL)
		}
	}

	// ── Collaborators ─────────────────────────────────────────────────────────
	// Platform connectors (chat clients, OBS, Discord) register their own
	// implementations out of process; the log stand-in keeps local runs honest.
	effects := platform.NewLogSideEffects(logger)

	// ── Action registry + runner ──────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := action.NewRegistry()
	reg.Register(&action.SendMessage{Messenger: effects})
	reg.Register(&action.SceneChange{Scenes: effects})
	reg.Register(&action.SourceToggle{Scenes: effects})
	reg.Register(&action.MuteToggle{Scenes: effects})
	reg.Register(&action.Delay{})
	reg.Register(&action.RoleGrant{Roles: effects})
	reg.Register(&action.RoleRevoke{Roles: effects})
	reg.Register(action.NewHTTPRequest())

	runner := action.NewRunner(ctx, reg, conf.ChainWorkers, conf.ChainQueue, logger)

	// ── Automation engine ─────────────────────────────────────────────────────
	eng := automation.NewEngine(store, runner, logger)
	if err := eng.Attach(b); err != nil {
		logger.Error("failed to attach automation engine", "err", err)
		os.Exit(1)
	}

	// ── Chat pipeline ─────────────────────────────────────────────────────────
	gate := moderation.NewGate(store, logger)
	dispatcher := command.NewDispatcher(store, b, effects, conf.CommandPrefix, logger)
	pipe := pipeline.New(gate, dispatcher, b, effects, logger)

	// ── Timers + hot reload ───────────────────────────────────────────────────
	sched := timers.NewScheduler(store, b, logger)
	sched.Reload()
	store.OnChange(func(*rules.File) {
		sched.Reload()
	})
	stopWatch, err := store.Watch()
	if err != nil {
		logger.Warn("rules watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.New(b, pipe, store, hub, logger)
	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)

	sched.Stop()
	eng.Detach()
	// Cancel before draining so in-flight delay actions abort instead of
	// running out their full duration.
	cancel()
	runner.Drain()
	b.CloseSinks()
	logger.Info("goodbye")
}
