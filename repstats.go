// Package repstats wires the record store, the representative units, the
// stats runner and the HTTP server into one process.
package repstats

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/repstats/aws"
	"github.com/NextMind-AI/repstats/classifier"
	"github.com/NextMind-AI/repstats/config"
	"github.com/NextMind-AI/repstats/dynamo"
	"github.com/NextMind-AI/repstats/execution"
	"github.com/NextMind-AI/repstats/memstore"
	"github.com/NextMind-AI/repstats/processor"
	"github.com/NextMind-AI/repstats/records"
	"github.com/NextMind-AI/repstats/redis"
	"github.com/NextMind-AI/repstats/roster"
	"github.com/NextMind-AI/repstats/server"
	"github.com/NextMind-AI/repstats/stats"
	"github.com/NextMind-AI/repstats/transport"
)

const (
	bridgeTimeout   = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

// App is a fully wired repstats process.
type App struct {
	cfg        *config.Config
	store      records.Store
	closeStore func() error
	registry   *execution.Registry
	runner     *stats.Runner
	backup     *aws.Backup
	server     *server.Server
}

// OpenStore connects the backend named by cfg.StoreBackend. The returned
// close function is never nil.
func OpenStore(ctx context.Context, cfg *config.Config) (records.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreBackend {
	case config.BackendRedis:
		client, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, noop, err
		}
		return client, client.Close, nil
	case config.BackendDynamoDB:
		client, err := dynamo.Open(ctx, cfg.AWSRegion, cfg.DynamoDBTable)
		if err != nil {
			return nil, noop, err
		}
		return client, noop, nil
	case config.BackendMemory:
		log.Warn().Msg("Using in-memory store, records are lost on restart")
		return memstore.New(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// New loads the roster and builds every component. Nothing runs until Run.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	reps, err := roster.Load(cfg.RosterPath, cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	store, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	if err := store.Ping(ctx); err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("ping %s store: %w", cfg.StoreBackend, err)
	}

	bridge := transport.NewClient(cfg.BridgeURL, cfg.BridgeToken, &http.Client{Timeout: bridgeTimeout})
	cls := classifier.New(store, bridge, classifier.WithHistoryLimit(cfg.HistoryLimit))

	registry := execution.NewRegistry(bridge, func(rep records.Representative) execution.EventHandler {
		return processor.NewRecorder(rep, store, cls, cfg.PendingLimit)
	}, cfg.EventQueueSize)
	for _, rep := range reps {
		if err := registry.Register(rep); err != nil {
			_ = closeStore()
			return nil, err
		}
	}

	aggregator := stats.NewAggregator(store, cfg.Location)
	runner := stats.NewRunner(aggregator, registry, cfg.StatsUpdateInterval)

	app := &App{
		cfg:        cfg,
		store:      store,
		closeStore: closeStore,
		registry:   registry,
		runner:     runner,
		server:     server.New(registry, aggregator, runner, store),
	}

	if cfg.BackupsEnabled() {
		uploader, err := aws.NewClient(cfg.S3Region, cfg.S3Bucket)
		if err != nil {
			_ = closeStore()
			return nil, fmt.Errorf("create s3 client: %w", err)
		}
		app.backup = aws.NewBackup(uploader, store, registry, cfg.BackupInterval)
	}

	log.Info().
		Int("representatives", len(reps)).
		Str("store", cfg.StoreBackend).
		Bool("backups", app.backup != nil).
		Msg("repstats initialized")

	return app, nil
}

// Server exposes the HTTP server, mainly for tests.
func (a *App) Server() *server.Server {
	return a.server
}

// Run starts the representative units and background loops and serves HTTP
// until ctx is done or the listener fails.
func (a *App) Run(ctx context.Context) error {
	online := a.registry.Start(ctx)
	log.Info().Int("online", online).Msg("Representative units started")

	loopCtx, cancelLoops := context.WithCancel(ctx)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.runner.Run(loopCtx)
	}()

	if a.backup != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.backup.Run(loopCtx)
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.Start(a.cfg.Port)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if shutdownErr := a.server.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn().Err(shutdownErr).Msg("Error shutting down HTTP server")
	}
	cancelLoops()
	wg.Wait()

	if stopErr := a.registry.Stop(shutdownCtx); stopErr != nil {
		log.Warn().Err(stopErr).Msg("Representative units did not drain in time")
	}
	if closeErr := a.closeStore(); closeErr != nil {
		log.Warn().Err(closeErr).Msg("Error closing store")
	}

	log.Info().Msg("repstats stopped")
	return err
}
