package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/spyserver/config"
	"github.com/wfunc/spyserver/logger"
	"github.com/wfunc/spyserver/persistence"
	"github.com/wfunc/spyserver/server"
	"github.com/wfunc/spyserver/services"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Log.Level)
	defer logger.Sync()

	store, err := openWordStore(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to open word store: %v", err)
	}
	defer store.Close()
	logger.Log.Infow("word store ready", "driver", cfg.WordStore.Driver)

	if cfg.WordStore.Seed {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := services.NewWordService(store).SeedDefaults(ctx); err != nil {
			logger.Log.Warnw("seeding default word pairs failed", "error", err)
		}
		cancel()
	}

	gameServer := server.NewGameServer(*cfg, store)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Log.Info("Shutting down game server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gameServer.Shutdown(ctx); err != nil {
			logger.Log.Warnw("shutdown incomplete", "error", err)
		}
	}()

	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}

// openWordStore picks the word pair backend named by word_store.driver.
func openWordStore(cfg *config.Config) (persistence.WordPairStore, error) {
	pg := cfg.Database.Postgres
	switch cfg.WordStore.Driver {
	case "", "memory":
		return persistence.NewMemoryStore(), nil
	case "postgres", "gorm":
		return persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "pq":
		return persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "redis":
		return persistence.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	default:
		return nil, fmt.Errorf("unknown word store driver %q", cfg.WordStore.Driver)
	}
}
