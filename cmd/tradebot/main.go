package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/statsanytime/trade-bots/internal/bot"
	"github.com/statsanytime/trade-bots/internal/config"
	"github.com/statsanytime/trade-bots/internal/handler"
	"github.com/statsanytime/trade-bots/internal/ledger"
	"github.com/statsanytime/trade-bots/internal/marketplace/csgo500"
	"github.com/statsanytime/trade-bots/internal/marketplace/csgoempire"
	"github.com/statsanytime/trade-bots/internal/marketplace/csgofloat"
	"github.com/statsanytime/trade-bots/internal/middleware"
	"github.com/statsanytime/trade-bots/internal/pricing"
	"github.com/statsanytime/trade-bots/internal/router"
	"github.com/statsanytime/trade-bots/internal/scheduler"
	"github.com/statsanytime/trade-bots/internal/steam"
	"github.com/statsanytime/trade-bots/internal/storage"
	"github.com/statsanytime/trade-bots/internal/stream"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting trade-bots...")

	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	store := openStore(cfg)
	defer store.Close()

	tradeLedger := ledger.New(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := bot.Options{
		Ledger: tradeLedger,
		Scheduler: scheduler.Config{
			SweepInterval: cfg.Scheduler.SweepInterval,
			SweepTimeout:  cfg.Scheduler.SweepTimeout,
		},
	}

	if cfg.CSGOEmpire.Enabled {
		socket, err := stream.Dial(ctx, cfg.CSGOEmpire.SocketURL, nil)
		if err != nil {
			log.Fatalf("Failed to connect CSGOEmpire socket: %v", err)
		}
		defer socket.Close()

		api := csgoempire.NewClient(cfg.CSGOEmpire.BaseURL, cfg.CSGOEmpire.APIKey)
		opts.CSGOEmpire = csgoempire.New(api, socket, tradeLedger)
		log.Println("CSGOEmpire plugin initialized")
	}

	if cfg.CSGO500.Enabled {
		token, err := csgo500.AuthToken(cfg.CSGO500.UserID, cfg.CSGO500.APIKey)
		if err != nil {
			log.Fatalf("Failed to sign CSGO500 auth token: %v", err)
		}

		header := http.Header{}
		header.Set("x-500-auth", token)

		socket, err := stream.Dial(ctx, cfg.CSGO500.SocketURL, header)
		if err != nil {
			log.Fatalf("Failed to connect CSGO500 socket: %v", err)
		}
		defer socket.Close()

		api, err := csgo500.NewClient(cfg.CSGO500.BaseURL, cfg.CSGO500.UserID, cfg.CSGO500.APIKey)
		if err != nil {
			log.Fatalf("Failed to create CSGO500 client: %v", err)
		}
		opts.CSGO500 = csgo500.New(api, socket, tradeLedger)
		log.Println("CSGO500 plugin initialized")
	}

	if cfg.CSGOFloat.Enabled {
		api := csgofloat.NewClient(cfg.CSGOFloat.BaseURL, cfg.CSGOFloat.APIKey)
		opts.CSGOFloat = csgofloat.New(api, tradeLedger)
		log.Println("CSGOFloat plugin initialized")
	}

	if cfg.Steam.Enabled {
		source := steam.NewPollingSource(cfg.Steam.APIKey, cfg.Steam.SessionID)
		go source.Run(ctx)
		opts.Steam = steam.New(source, tradeLedger)
		log.Println("Steam plugin initialized")
	}

	if cfg.Pricempire.Enabled {
		sources := strings.Split(cfg.Pricempire.Sources, ",")
		opts.Pricempire = pricing.NewPricempire(cfg.Pricempire.BaseURL, cfg.Pricempire.APIKey, sources, store)
		log.Println("Pricempire price source initialized")
	}

	b, err := bot.New(opts)
	if err != nil {
		log.Fatalf("Failed to assemble bot: %v", err)
	}

	if err := b.Start(ctx); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}

	// Ops API
	healthHandler := handler.New(cfg.App.Name, cfg.App.Version)
	tradesHandler := handler.NewTradesHandler(tradeLedger, b.Scheduler)

	r := router.New(router.Config{
		Handler:       healthHandler,
		TradesHandler: tradesHandler,
		OpsAuth:       middleware.NewOpsAuth(cfg.Server.OpsKey),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Ops server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	b.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Stopped")
}

// openStore opens the configured ledger backend, falling back to memory
// only when asked for explicitly.
func openStore(cfg *config.Config) storage.Store {
	switch cfg.Storage.Type {
	case "mysql":
		store, err := storage.NewMySQLStore(cfg.Storage.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL storage: %v", err)
		}
		log.Println("MySQL storage initialized")
		return store
	case "redis":
		store, err := storage.NewRedisStore(storage.RedisConfig{
			Addr:     cfg.Storage.RedisAddress(),
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		if err != nil {
			log.Fatalf("Failed to initialize Redis storage: %v", err)
		}
		log.Println("Redis storage initialized")
		return store
	case "memory":
		log.Println("In-memory storage initialized (data is not persisted)")
		return storage.NewMemoryStore()
	default: // sqlite
		store, err := storage.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite storage: %v", err)
		}
		log.Println("SQLite storage initialized")
		return store
	}
}
