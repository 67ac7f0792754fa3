// Package control assembles and runs the cmdwatch service: storage, the
// control-plane client, watch workers, the health monitor, and the HTTP
// health server.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/vietddude/cmdwatch/internal/core/config"
	"github.com/vietddude/cmdwatch/internal/core/worker"
	"github.com/vietddude/cmdwatch/internal/dispatch"
	"github.com/vietddude/cmdwatch/internal/health"
	"github.com/vietddude/cmdwatch/internal/infra/controlplane"
	redisclient "github.com/vietddude/cmdwatch/internal/infra/redis"
	"github.com/vietddude/cmdwatch/internal/infra/storage"
	"github.com/vietddude/cmdwatch/internal/infra/storage/memory"
	"github.com/vietddude/cmdwatch/internal/infra/storage/postgres"
	"github.com/vietddude/cmdwatch/internal/metrics"
	"github.com/vietddude/cmdwatch/internal/watch"
)

// Service is the main application struct that manages the watcher lifecycle.
type Service struct {
	cfg          config.AppConfig
	cpClient     *controlplane.Client
	dispatcher   *dispatch.Dispatcher
	workers      []*dispatch.Worker
	pruner       *worker.Pruner
	healthMon    *health.Monitor
	healthServer *health.Server
	prober       *health.GRPCProber
	invRepo      storage.InvocationRepository
	targetRepo   storage.TargetRepository
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger
}

// NewService creates a new Service with all dependencies initialized.
func NewService(cfg config.AppConfig) (*Service, error) {

	// 1. Initialize Storage
	var invRepo storage.InvocationRepository
	var targetRepo storage.TargetRepository
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		invRepo = postgres.NewInvocationRepo(db)
		targetRepo = postgres.NewTargetRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		invRepo = memory.NewInvocationRepo(store)
		targetRepo = memory.NewTargetRepo(store)
		slog.Info("Using Memory storage")
	}

	// 2. Control-plane client and poller
	cpClient := controlplane.NewClient(controlplane.Config{
		URL:     cfg.ControlPlane.URL,
		Timeout: cfg.ControlPlane.Timeout.Std(),
	})
	poller := watch.NewPoller(cpClient)

	// 3. Redis queue, dispatcher, and watch workers
	var redisClient *redisclient.Client
	var dispatcher *dispatch.Dispatcher
	var workers []*dispatch.Worker

	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		dispatcher = dispatch.NewDispatcher(cpClient, invRepo, redisClient)

		workerCfg := dispatch.DefaultWorkerConfig()
		if cfg.Watch.MaxRequeues > 0 {
			workerCfg.MaxRequeues = cfg.Watch.MaxRequeues
		}
		n := cfg.Watch.Workers
		if n <= 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			w := dispatch.NewWorker(workerCfg, redisClient, poller, invRepo)
			w.SetLocker(redisClient)
			workers = append(workers, w)
		}
	} else {
		slog.Warn("Redis not configured, watch workers disabled")
	}

	// 4. Health monitor and server
	targets := make([]health.Target, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		targets = append(targets, health.Target{
			ID:            t.ID,
			AgentAddr:     t.AgentAddr,
			ProbeInterval: t.ProbeInterval.Std(),
		})
	}
	prober := health.NewGRPCProber(cfg.ControlPlane.Timeout.Std())
	healthMon := health.NewMonitor(targets, prober, cpClient, targetRepo)
	healthServer := health.NewServer(healthMon, cfg.Server.Port)

	// 5. Retention pruner
	pruner := worker.NewPruner(cfg.Watch.Retention.Std(), invRepo)

	return &Service{
		cfg:          cfg,
		cpClient:     cpClient,
		dispatcher:   dispatcher,
		workers:      workers,
		pruner:       pruner,
		healthMon:    healthMon,
		healthServer: healthServer,
		prober:       prober,
		invRepo:      invRepo,
		targetRepo:   targetRepo,
		db:           db,
		redisClient:  redisClient,
		log:          slog.Default(),
	}, nil
}

// Dispatcher returns the wired command dispatcher. Nil when Redis is not
// configured.
func (s *Service) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

// Start starts the service and all its components.
func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.healthServer.Start(); err != nil {
			s.log.Error("Health server failed", "error", err)
		}
	}()

	go s.healthMon.Start(ctx)

	if s.db != nil {
		s.db.StartMetricsCollector(ctx)
	}

	for i, w := range s.workers {
		s.log.Info("Starting watch worker", "worker", i)
		go func(w *dispatch.Worker) {
			if err := w.Run(ctx); err != nil {
				s.log.Error("Watch worker failed", "error", err)
			}
		}(w)
	}

	go s.pruner.Start(ctx)

	if s.redisClient != nil {
		go s.runMetricsUpdater(ctx)
	}

	return nil
}

// Stop stops the service.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping cmdwatch...")

	if s.prober != nil {
		if err := s.prober.Close(); err != nil {
			s.log.Warn("Failed to close prober connections", "error", err)
		}
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("Failed to close Redis", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("Failed to close database", "error", err)
		}
	}

	return s.healthServer.Stop(ctx)
}

func (s *Service) runMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth, err := s.redisClient.QueueDepth(ctx)
			if err != nil {
				continue
			}
			metrics.WatchQueueDepth.Set(float64(depth))
		}
	}
}
