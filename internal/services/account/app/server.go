// Package app assembles the account service runtime: storage, command and
// query services, the HTTP API, the gRPC health endpoint, and the projection
// outbox worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	platformgrpc "github.com/louisbranch/ledger/internal/platform/grpc"
	"github.com/louisbranch/ledger/internal/platform/timeouts"
	"github.com/louisbranch/ledger/internal/services/account/api/rest"
	"github.com/louisbranch/ledger/internal/services/account/domain/checkpoint"
	"github.com/louisbranch/ledger/internal/services/account/domain/engine"
	"github.com/louisbranch/ledger/internal/services/account/domain/sequence"
	"github.com/louisbranch/ledger/internal/services/account/observability"
	"github.com/louisbranch/ledger/internal/services/account/owner"
	"github.com/louisbranch/ledger/internal/services/account/projection"
	"github.com/louisbranch/ledger/internal/services/account/query"
	"github.com/louisbranch/ledger/internal/services/account/service"
	storagebbolt "github.com/louisbranch/ledger/internal/services/account/storage/bbolt"
	"github.com/louisbranch/ledger/internal/services/account/storage/integrity"
	storagepostgres "github.com/louisbranch/ledger/internal/services/account/storage/postgres"
	storagesqlite "github.com/louisbranch/ledger/internal/services/account/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

// Counter backends.
const (
	CounterBackendSQLite   = "sqlite"
	CounterBackendPostgres = "postgres"
)

// HealthServiceName is the service name reported by the gRPC health endpoint.
const HealthServiceName = "account.v1.AccountService"

// Config controls the account runtime.
type Config struct {
	HTTPAddr          string
	HealthAddr        string
	EventsDBPath      string
	ProjectionsDBPath string
	SnapshotsPath     string
	OwnerServiceURL   string
	OwnerTimeout      time.Duration
	CounterBackend    string
	PostgresDSN       string
	Outbox            OutboxWorkerConfig
	Keyring           *integrity.Keyring
}

// Server hosts the account service.
type Server struct {
	httpListener   net.Listener
	healthListener net.Listener
	httpServer     *http.Server
	grpcServer     *grpc.Server
	health         *health.Server
	worker         *OutboxWorker
	closers        []func() error
}

// New opens storage and binds the listeners described by cfg.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.Keyring == nil {
		return nil, fmt.Errorf("event integrity keyring is required")
	}
	if strings.TrimSpace(cfg.OwnerServiceURL) == "" {
		return nil, fmt.Errorf("owner service url is required")
	}

	srv := &Server{}
	fail := func(err error) (*Server, error) {
		srv.closeAll()
		return nil, err
	}

	_, eventRegistry, err := service.Registries()
	if err != nil {
		return fail(err)
	}
	if err := ensureDir(cfg.EventsDBPath); err != nil {
		return fail(err)
	}
	events, err := storagesqlite.OpenEvents(cfg.EventsDBPath, cfg.Keyring, eventRegistry)
	if err != nil {
		return fail(fmt.Errorf("open events store: %w", err))
	}
	srv.closers = append(srv.closers, events.Close)

	if err := ensureDir(cfg.ProjectionsDBPath); err != nil {
		return fail(err)
	}
	projections, err := storagesqlite.OpenProjections(cfg.ProjectionsDBPath)
	if err != nil {
		return fail(fmt.Errorf("open projections store: %w", err))
	}
	srv.closers = append(srv.closers, projections.Close)

	snapshots, closeSnapshots, err := openSnapshots(cfg.SnapshotsPath)
	if err != nil {
		return fail(err)
	}
	if closeSnapshots != nil {
		srv.closers = append(srv.closers, closeSnapshots)
	}

	counter, closeCounter, err := openCounter(ctx, cfg, events)
	if err != nil {
		return fail(err)
	}
	if closeCounter != nil {
		srv.closers = append(srv.closers, closeCounter)
	}

	handler, err := service.NewHandler(events, snapshots, nil)
	if err != nil {
		return fail(err)
	}
	owners, err := owner.NewHTTPClient(cfg.OwnerServiceURL, cfg.OwnerTimeout)
	if err != nil {
		return fail(err)
	}
	metrics := observability.NewMetrics()
	applier := projection.ExactlyOnce{Store: projections}
	commands := &service.Commands{
		Engine:     handler,
		Locks:      engine.NewKeyedLocker(),
		IDs:        &sequence.Generator{Counter: counter},
		Owners:     owners,
		Projection: applier,
		Outbox:     events,
		Metrics:    metrics,
	}
	api := rest.NewServer(commands, query.NewService(projections), metrics)
	srv.worker = NewOutboxWorker(events, applier.ApplyFunc(), cfg.Outbox, metrics)

	srv.httpListener, err = net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fail(fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err))
	}
	srv.healthListener, err = net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		return fail(fmt.Errorf("listen on %s: %w", cfg.HealthAddr, err))
	}

	srv.httpServer = &http.Server{
		Handler:           api.Handler(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	srv.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	srv.health = platformgrpc.NewHealthServer(srv.grpcServer, HealthServiceName)
	return srv, nil
}

// Run creates and serves an account server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	srv, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// HTTPAddr returns the HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// HealthAddr returns the gRPC health listener address.
func (s *Server) HealthAddr() string {
	if s == nil || s.healthListener == nil {
		return ""
	}
	return s.healthListener.Addr().String()
}

// Serve runs the HTTP API, the health endpoint and the outbox worker until
// ctx ends or one of them fails.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.closeAll()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Printf("account http api listening at %v", s.httpListener.Addr())
		if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		log.Printf("account health server listening at %v", s.healthListener.Addr())
		if err := s.grpcServer.Serve(s.healthListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC health: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return s.worker.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		s.health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown http api: %v", err)
		}
		s.grpcServer.GracefulStop()
		return nil
	})
	return group.Wait()
}

func (s *Server) closeAll() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Printf("close account storage: %v", err)
		}
	}
	s.closers = nil
	if s.httpListener != nil && s.httpServer == nil {
		_ = s.httpListener.Close()
	}
	if s.healthListener != nil && s.grpcServer == nil {
		_ = s.healthListener.Close()
	}
}

// openCounter returns the id counter for cfg and, when it owns a connection
// of its own, the func that closes it.
func openCounter(ctx context.Context, cfg Config, events *storagesqlite.Store) (sequence.CounterStore, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.CounterBackend)) {
	case "", CounterBackendSQLite:
		return events, nil, nil
	case CounterBackendPostgres:
		counter, err := storagepostgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres counter: %w", err)
		}
		return counter, counter.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown counter backend %q", cfg.CounterBackend)
	}
}

// openSnapshots opens the bbolt snapshot store at path, or keeps snapshots in
// memory when path is empty.
func openSnapshots(path string) (engine.StateSnapshotStore, func() error, error) {
	if strings.TrimSpace(path) == "" {
		log.Printf("snapshot path not set; keeping snapshots in memory")
		return checkpoint.NewMemory(), nil, nil
	}
	if err := ensureDir(path); err != nil {
		return nil, nil, err
	}
	store, err := storagebbolt.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return store, store.Close, nil
}

func ensureDir(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("storage path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	return nil
}
