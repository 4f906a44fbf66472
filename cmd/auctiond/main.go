package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jensholdgaard/draft-auction/internal/auction"
	"github.com/jensholdgaard/draft-auction/internal/bot"
	"github.com/jensholdgaard/draft-auction/internal/catalog"
	"github.com/jensholdgaard/draft-auction/internal/clock"
	"github.com/jensholdgaard/draft-auction/internal/config"
	"github.com/jensholdgaard/draft-auction/internal/event"
	"github.com/jensholdgaard/draft-auction/internal/health"
	"github.com/jensholdgaard/draft-auction/internal/leader"
	"github.com/jensholdgaard/draft-auction/internal/rng"
	"github.com/jensholdgaard/draft-auction/internal/store"
	"github.com/jensholdgaard/draft-auction/internal/telemetry"

	// Register store drivers so they are available via store.Open.
	_ "github.com/jensholdgaard/draft-auction/internal/store/memory"
	_ "github.com/jensholdgaard/draft-auction/internal/store/postgres"
	_ "github.com/jensholdgaard/draft-auction/internal/store/sqlite"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	cat, err := catalog.Load(cfg.Auction.CatalogPath)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	logger.InfoContext(ctx, "catalog loaded",
		slog.String("path", cfg.Auction.CatalogPath), slog.Int("items", cat.Len()))

	repos, err := store.Open(ctx, cfg.Database, clk)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer repos.Closer.Close()

	logger.InfoContext(ctx, "store opened", slog.String("driver", cfg.Database.Driver))

	// Without a token the service runs headless and events only reach the log.
	var discordBot *bot.Bot
	sinks := event.Fanout{event.SinkFunc(func(ctx context.Context, e event.Event) error {
		logger.DebugContext(ctx, "session event",
			slog.String("session", e.AggregateID),
			slog.String("type", string(e.Type)),
			slog.Int("version", e.Version))
		return nil
	})}
	if cfg.Discord.Token != "" {
		discordBot, err = bot.New(cfg.Discord, logger, tp.TracerProvider)
		if err != nil {
			return fmt.Errorf("creating bot: %w", err)
		}
		sinks = append(sinks, discordBot.Sink())
	} else {
		logger.WarnContext(ctx, "no discord token configured, running headless")
	}

	auctionMgr, err := auction.NewManager(cfg.Auction, auction.Deps{
		Catalog:        cat,
		Sessions:       repos.Sessions,
		Sales:          repos.Sales,
		Events:         repos.Events,
		Sink:           sinks,
		Logger:         logger,
		TracerProvider: tp.TracerProvider,
		MeterProvider:  tp.MeterProvider,
		Clock:          clk,
		Rand:           rng.Fast{},
	})
	if err != nil {
		return fmt.Errorf("creating auction manager: %w", err)
	}

	healthHandler := health.NewHandler(clk,
		health.Checker{Name: "database", Check: repos.Ping},
		health.Checker{Name: "catalog", Check: func(context.Context) error {
			if cat.Len() == 0 {
				return catalog.ErrEmpty
			}
			return nil
		}},
	)
	healthHandler.AddGauge(health.Gauge{Name: "sessions", Value: auctionMgr.Len})

	// The health server runs on all replicas.
	mux := http.NewServeMux()
	healthHandler.Routes(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "starting health server", slog.Int("port", cfg.Server.Port))
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "health server error", slog.Any("error", listenErr))
		}
	}()

	// serve is the work only the leader runs: the reaper and the bot.
	serve := func(ctx context.Context) {
		go func() {
			if runErr := auctionMgr.Run(ctx); runErr != nil {
				logger.ErrorContext(ctx, "session reaper stopped", slog.Any("error", runErr))
			}
		}()

		if discordBot != nil {
			if botErr := discordBot.Start(ctx, auctionMgr); botErr != nil {
				logger.ErrorContext(ctx, "starting bot failed", slog.Any("error", botErr))
				return
			}
		}

		healthHandler.SetHosting(true)
		logger.InfoContext(ctx, "auctiond is hosting rooms", slog.String("version", version))

		<-ctx.Done()

		healthHandler.SetHosting(false)
		if discordBot != nil {
			if stopErr := discordBot.Stop(); stopErr != nil {
				logger.Error("bot shutdown error", slog.Any("error", stopErr))
			}
		}
	}

	healthHandler.SetReady(true)

	// A replica that loses the lease closes its rooms and exits.
	if cfg.LeaderElection.Enabled {
		elector, electErr := leader.New(cfg.LeaderElection, logger)
		if electErr != nil {
			return fmt.Errorf("leader election: %w", electErr)
		}
		healthHandler.AddGauge(health.Gauge{Name: "leader_terms", Value: elector.Terms})
		logger.InfoContext(ctx, "leader election enabled, waiting for the auction host lease",
			slog.String("identity", elector.Identity()))

		if leaderErr := elector.Run(ctx, serve); leaderErr != nil {
			if !errors.Is(leaderErr, leader.ErrLeadershipLost) {
				return fmt.Errorf("leader election: %w", leaderErr)
			}
			logger.Warn("lost the auction host lease, closing rooms")
		}
	} else {
		serve(ctx)
	}
	logger.Info("shutting down...")
	healthHandler.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	auctionMgr.Shutdown(shutdownCtx)

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}
