package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/danielhkuo/coinpoll/cache"
	"github.com/danielhkuo/coinpoll/cliparse"
	"github.com/danielhkuo/coinpoll/db"
	"github.com/danielhkuo/coinpoll/errclass"
	"github.com/danielhkuo/coinpoll/executor"
	"github.com/danielhkuo/coinpoll/ledger"
	"github.com/danielhkuo/coinpoll/middleware"
	"github.com/danielhkuo/coinpoll/notify"
	"github.com/danielhkuo/coinpoll/realtime"
	"github.com/danielhkuo/coinpoll/remote"
	"github.com/danielhkuo/coinpoll/remote/sqlstore"
	"github.com/danielhkuo/coinpoll/router"
	"github.com/danielhkuo/coinpoll/session"
	"github.com/danielhkuo/coinpoll/syncer"
	"github.com/danielhkuo/coinpoll/tracker"
)

func main() {
	if err := cliparse.LoadEnv(); err != nil {
		slog.Error("Error loading .env", "error", err)
		os.Exit(1)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, nil)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg cliparse.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to the database and create schema
	store, err := sqlstore.Open(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	feed, publish, err := openFeed(ctx, cfg, store)
	if err != nil {
		return err
	}
	defer feed.Close()
	store = sqlstore.New(store.DB(), cfg.DatabaseType, sqlstore.WithFeed(feed, publish))

	var ledgerAdapter ledger.Adapter = ledger.Null{}
	if cfg.LedgerRedisURL != "" {
		rdb, err := realtime.OpenRedis(ctx, cfg.LedgerRedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		ledgerAdapter = ledger.NewRedis(rdb)
		slog.Info("Settlement ledger enabled")
	}

	c := cache.New(tracker.New(tracker.WithTTL(cfg.TombstoneTTL)))
	sess := session.New()
	notifications := notify.NewFeed(notify.DefaultFeedSize)

	exec := executor.New(c, store, sess,
		executor.WithLedger(ledgerAdapter),
		executor.WithNotifier(notify.Multi{notify.Logger{Log: logger}, notifications}),
		executor.WithRetry(errclass.DefaultRetry),
		executor.WithMaxCoins(cfg.MaxCoinsPerPoll),
		executor.WithLogger(logger))

	sched := syncer.New(c, store, syncer.Config{
		Interval:  cfg.SyncInterval,
		Cooldown:  cfg.SyncCooldown,
		Debounce:  cfg.Debounce,
		ActiveTTL: cfg.ActiveTTL,
	},
		syncer.WithLedger(ledgerAdapter),
		syncer.WithSession(sess),
		syncer.WithLogger(logger))
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	// Create router
	mux := router.NewRouter(router.Deps{
		Executor:  exec,
		Cache:     c,
		Scheduler: sched,
		Session:   sess,
		Feed:      notifications,
		Config:    cfg,
	})

	server := http.Server{
		Handler:           middleware.CORS(mux),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		// Wait for Ctrl-C signal
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("Server closed")
	return nil
}

// openFeed picks the realtime change feed. publish reports whether the
// store must publish its own writes; postgres triggers already do.
func openFeed(ctx context.Context, cfg cliparse.Config, store *sqlstore.Store) (remote.Feed, bool, error) {
	switch {
	case cfg.RedisURL != "":
		client, err := realtime.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, false, err
		}
		feed, err := realtime.NewRedis(ctx, client)
		if err != nil {
			client.Close()
			return nil, false, err
		}
		slog.Info("Realtime feed", "backend", "redis")
		return redisFeed{Redis: feed, client: client}, true, nil
	case cfg.DatabaseType == db.DialectPostgres:
		feed, err := realtime.NewPostgres(store.DB(), cfg.DatabaseURL)
		if err != nil {
			return nil, false, err
		}
		slog.Info("Realtime feed", "backend", "postgres")
		return feed, false, nil
	default:
		slog.Info("Realtime feed", "backend", "local")
		return realtime.NewLocal(), true, nil
	}
}

// redisFeed closes the client it was opened with.
type redisFeed struct {
	*realtime.Redis
	client *redis.Client
}

func (f redisFeed) Close() error {
	err := f.Redis.Close()
	return errors.Join(err, f.client.Close())
}
