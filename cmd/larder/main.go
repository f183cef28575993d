package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/config"
	"github.com/dukerupert/larder/internal/database"
	"github.com/dukerupert/larder/internal/feed"
	"github.com/dukerupert/larder/internal/logging"
	"github.com/dukerupert/larder/internal/mongostore"
	"github.com/dukerupert/larder/internal/port"
	"github.com/dukerupert/larder/internal/server"
	"github.com/dukerupert/larder/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Logger.Level, cfg.Logger.Format)
	tokens := auth.NewTokens(cfg.JWT.Secret, cfg.JWT.TokenTTL)

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := printToken(tokens, os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		return
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	st, ms, err := openStore(bgCtx, cfg)
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.Server.Backend, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	bus := feed.NewBus(logger.With("component", "feed"))
	var pub feed.Publisher = bus

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		relay := feed.NewRedisRelay(client, cfg.Redis.Channel, bus, logger.With("component", "redis_relay"))
		pub = relay
		go func() {
			if err := relay.Run(bgCtx); err != nil {
				slog.Error("redis relay stopped", "error", err)
			}
		}()
	}

	// The change stream sees every write, including other instances' and
	// other clients', so services stop publishing their own.
	if ms != nil && cfg.Mongo.Watch {
		pub = feed.Discard
		go func() {
			if err := ms.Watch(bgCtx, bus, logger.With("component", "mongo_watch")); err != nil {
				slog.Error("change stream watcher stopped", "error", err)
			}
		}()
	}

	srv := server.New(st, server.Config{
		Tokens:       tokens,
		Publisher:    pub,
		UrgentWindow: time.Duration(cfg.Inventory.UrgentDays) * 24 * time.Hour,
	}, logger)

	changes, unsubscribe := bus.Subscribe(64)
	defer unsubscribe()
	go srv.RunSnapshots(bgCtx, changes)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-bgCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("larder starting", "addr", cfg.Server.Addr, "backend", cfg.Server.Backend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	bgCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

// openStore returns the configured backend. The mongo store is also returned
// on its own so its change stream can be started.
func openStore(ctx context.Context, cfg *config.Config) (port.Store, *mongostore.Store, error) {
	switch cfg.Server.Backend {
	case config.BackendMongo:
		ms, err := mongostore.Open(ctx, cfg.Mongo.URI, cfg.Mongo.Database,
			mongostore.WithTxAttempts(cfg.Inventory.TxAttempts))
		if err != nil {
			return nil, nil, err
		}
		return ms, ms, nil
	default:
		db, err := database.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return store.New(db, store.WithTxAttempts(cfg.Inventory.TxAttempts)), nil, nil
	}
}

func printToken(tokens *auth.Tokens, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: larder token <user-id> <name>")
	}
	tok, err := tokens.Issue(args[0], args[1])
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Println(tok)
	return nil
}
