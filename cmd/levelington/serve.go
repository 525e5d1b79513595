package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/diamondburned/arikawa/v3/state"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ShenPrime/Levelington/config"
	"github.com/ShenPrime/Levelington/internal/application/command"
	"github.com/ShenPrime/Levelington/internal/application/eventhandler"
	"github.com/ShenPrime/Levelington/internal/application/query"
	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
	discordclient "github.com/ShenPrime/Levelington/internal/infrastructure/external/discord"
	"github.com/ShenPrime/Levelington/internal/infrastructure/locking"
	"github.com/ShenPrime/Levelington/internal/infrastructure/messaging"
	"github.com/ShenPrime/Levelington/internal/infrastructure/metrics"
	"github.com/ShenPrime/Levelington/internal/infrastructure/persistence/cached"
	"github.com/ShenPrime/Levelington/internal/infrastructure/persistence/postgres"
	"github.com/ShenPrime/Levelington/internal/infrastructure/persistence/redis"
	"github.com/ShenPrime/Levelington/internal/infrastructure/persistence/sqlite"
	discordbot "github.com/ShenPrime/Levelington/internal/interface/discord"
	httpserver "github.com/ShenPrime/Levelington/internal/interface/http"
	"github.com/ShenPrime/Levelington/internal/interface/http/handlers"
	"github.com/ShenPrime/Levelington/pkg/logger"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to the Discord gateway and start awarding XP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Logging.Level)
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}
	opts.Format = cfg.Logging.Format
	opts.AddSource = cfg.IsDevelopment()

	return logger.New(opts).With("app", cfg.App.Name, "env", cfg.App.Environment)
}

// openLedger opens the configured backend. The returned closer is never nil.
func openLedger(ctx context.Context, cfg *config.Config, log *slog.Logger) (ledger.Store, func(), error) {
	switch cfg.Ledger.Driver {
	case config.DriverSQLite:
		log.Info("opening sqlite ledger", "path", cfg.Ledger.SQLitePath)
		store, err := sqlite.Open(cfg.Ledger.SQLitePath)
		if err != nil {
			return nil, func() {}, fmt.Errorf("open sqlite ledger: %w", err)
		}
		return store, func() { _ = store.Close() }, nil

	default:
		log.Info("connecting to postgres ledger")
		pgCfg := postgres.DefaultConfig()
		pgCfg.URL = cfg.Ledger.DatabaseURL
		pgCfg.MaxConns = cfg.Ledger.MaxConns
		pgCfg.MinConns = cfg.Ledger.MinConns

		conn, err := postgres.NewConnection(ctx, pgCfg)
		if err != nil {
			return nil, func() {}, fmt.Errorf("connect to postgres: %w", err)
		}
		return postgres.NewLedgerRepository(conn), conn.Close, nil
	}
}

// openLocker returns the redis lock when enabled and reachable, else the
// process-local one.
func openLocker(ctx context.Context, cfg *config.Config, log *slog.Logger, health *handlers.CompositeHealthChecker) (command.Locker, func()) {
	if !cfg.Redis.Enabled {
		return locking.NewLocal(), func() {}
	}

	rCfg := redis.DefaultConfig()
	rCfg.URL = cfg.Redis.URL
	rCfg.PoolSize = cfg.Redis.PoolSize

	cache, err := redis.NewCache(ctx, rCfg)
	if err != nil {
		log.Warn("redis unavailable, falling back to local locks", "error", err)
		return locking.NewLocal(), func() {}
	}
	health.AddCheck("redis", handlers.PingCheck(cache))
	log.Info("redis connection established")
	return redis.NewLocker(cache, cfg.Redis.LockTTL), func() { _ = cache.Close() }
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := newLogger(cfg)
	slog.SetDefault(log)
	log.Info("starting levelington", "version", cfg.App.Version, "ledger", cfg.Ledger.Driver)

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// Storage
	backend, closeLedger, err := openLedger(ctx, cfg, log)
	defer closeLedger()
	if err != nil {
		return err
	}
	if err := backend.Ping(ctx); err != nil {
		return fmt.Errorf("ledger ping: %w", err)
	}
	health.AddCheck("ledger", handlers.PingCheck(backend))
	store := cached.New(backend, cfg.Ledger.SettingsCacheTTL)

	locker, closeLocker := openLocker(ctx, cfg, log, health)
	defer closeLocker()

	m := metrics.New(backend.Ping)

	// Event bus
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	busCfg.Recorder = m
	bus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		log.Info("closing event bus")
		_ = bus.Close()
	}()

	// Discord
	s := state.New("Bot " + cfg.Discord.Token)
	platform := discordclient.NewClient(s, log)

	// Application layer
	syncTopRole := command.NewSyncTopRoleHandler(store, platform, locker, bus, log)
	awardXP := command.NewAwardXPHandler(store, bus, log, command.AwardXPConfig{
		Cooldown: cfg.XP.Cooldown,
		MinXP:    cfg.XP.Min,
		MaxXP:    cfg.XP.Max,
	}).WithRecorder(m)
	leaderboardQuery := query.NewGetLeaderboardHandler(store, platform, syncTopRole, log)

	levelUp := eventhandler.NewOnLevelUpHandler(store, syncTopRole, platform, log, cfg.Discord.EventTimeout)
	if err := bus.Subscribe(shared.EventLevelUp, levelUp.Handle); err != nil {
		return fmt.Errorf("subscribe level-up handler: %w", err)
	}
	if err := bus.SubscribeAll(eventhandler.NewAuditHandler(log).Handle); err != nil {
		return fmt.Errorf("subscribe audit handler: %w", err)
	}

	botCfg := discordbot.DefaultBotConfig()
	botCfg.MaxConcurrentEvents = cfg.Discord.MaxConcurrentEvents
	botCfg.EventTimeout = cfg.Discord.EventTimeout
	botCfg.GracefulShutdownTimeout = cfg.App.ShutdownTimeout
	botCfg.Logger = log

	bot, err := discordbot.NewBot(s, botCfg, discordbot.BotDependencies{
		AwardXP:         awardXP,
		Setup:           command.NewSetupHandler(store, bus, log),
		AssignLevel:     command.NewAssignLevelHandler(store, bus, log),
		ChannelPolicy:   command.NewChannelPolicyHandler(store, platform, locker, log),
		DeleteData:      command.NewDeleteDataHandler(store, bus, log, cfg.XP.ConfirmWindow),
		Leaderboard:     leaderboardQuery,
		MemberXP:        query.NewGetMemberXPHandler(store),
		ChannelSettings: query.NewGetChannelSettingsHandler(store, platform),
		Members:         platform,
		Recorder:        m,
	})
	if err != nil {
		return fmt.Errorf("create discord bot: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(gctx)
	})

	if cfg.HTTP.Enabled {
		httpCfg := httpserver.DefaultConfig()
		httpCfg.Addr = cfg.HTTP.Addr
		httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

		server := httpserver.NewServer(httpCfg, httpserver.Dependencies{
			Leaderboard: leaderboardQuery,
			Health:      health,
			Metrics:     m.Registry,
			Logger:      log,
		})
		g.Go(func() error {
			return server.Run(gctx, cfg.App.ShutdownTimeout)
		})
	}

	err = g.Wait()
	log.Info("levelington stopped", "error", err)
	return err
}
