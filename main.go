package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/wfunc/bopserver/broadcast"
	"github.com/wfunc/bopserver/config"
	"github.com/wfunc/bopserver/deck"
	"github.com/wfunc/bopserver/logger"
	"github.com/wfunc/bopserver/monitor"
	"github.com/wfunc/bopserver/persistence"
	"github.com/wfunc/bopserver/room"
	"github.com/wfunc/bopserver/rpc"
	"github.com/wfunc/bopserver/server"
	"github.com/wfunc/bopserver/services"
	"github.com/wfunc/bopserver/timer"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	catalog, err := deck.LoadCatalog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load card packs: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.LoadConfig(".", catalog.IDs())
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	defaults := cfg.Game.Defaults
	if err := defaults.Validate(catalog); err != nil {
		logger.Log.Fatalf("Invalid game.defaults: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	if db != nil {
		defer db.Close()
		logger.Log.Info("Database connection successful.")
	}
	results := services.NewResultService(db, 64)
	resultsCtx, stopResults := context.WithCancel(context.Background())
	resultsDone := make(chan struct{})
	go func() {
		defer close(resultsDone)
		results.Run(resultsCtx)
	}()

	mon := monitor.NewMonitor("bopserver")
	bc := broadcast.NewBroadcaster(mon.IncSendFailures)
	timers := timer.NewTimerManager()
	defer timers.Stop()

	rooms := room.NewRoomManager(room.Options{
		Catalog:           catalog,
		Defaults:          &defaults,
		Scheduler:         timers,
		Broadcaster:       bc,
		Metrics:           mon,
		Recorder:          results,
		MaxPlayersVoice:   cfg.Game.MaxPlayersVoice,
		MaxPlayersNoVoice: cfg.Game.MaxPlayersNoVoice,
		HostGrace:         cfg.Game.HostGrace,
		IdleTimeout:       cfg.Game.IdleTimeout,
		CodeAttempts:      cfg.Game.CodeAttempts,
	})
	rooms.OnCountChange = mon.SetActiveRooms
	go rooms.Run(ctx, cfg.Game.SweepInterval)

	if cfg.Server.RPCAddress != "" {
		rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress, rpc.NewAdminService(rooms, results))
		if err != nil {
			logger.Log.Fatalf("Failed to create RPC server: %v", err)
		}
		go rpcServer.Start()
		defer rpcServer.Stop()
	}

	// Initialize Game Server
	gameServer := server.NewGameServer(server.Options{
		Addr:           cfg.Server.HTTPAddress,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Game.RateLimit,
		RateBurst:      cfg.Game.RateBurst,
	}, rooms, bc, mon, catalog)

	errCh := make(chan error, 1)
	go func() { errCh <- gameServer.Start() }()

	select {
	case <-ctx.Done():
		logger.Log.Info("Shutdown signal received.")
	case err := <-errCh:
		if err != nil {
			logger.Log.Errorf("Server stopped: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := gameServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("Shutdown: %v", err)
	}

	// Rooms are closed now; save any result they submitted on the way out.
	stopResults()
	<-resultsDone
	if n := results.Drain(shutdownCtx); n > 0 {
		logger.Log.Infof("Saved %d game records during shutdown.", n)
	}
}

// openDatabase returns nil when result recording is disabled.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (persistence.Database, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := cfg.Postgres.DSN()
	switch cfg.Driver {
	case "pq":
		db, err := persistence.NewPostgreSQL(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "gorm", "":
		db, err := persistence.NewGormPostgreSQL(dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
