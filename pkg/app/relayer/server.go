// Package relayer implements app.Runner for the relayer process.
package relayer

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chainsafe/glitch-bridge/pkg/app"
	apperrors "github.com/chainsafe/glitch-bridge/pkg/app/errors"
	apphttp "github.com/chainsafe/glitch-bridge/pkg/app/http"
	"github.com/chainsafe/glitch-bridge/pkg/config"
	"github.com/chainsafe/glitch-bridge/pkg/deposit/service"
	"github.com/chainsafe/glitch-bridge/pkg/depositstore"
	"github.com/chainsafe/glitch-bridge/pkg/ethereum"
	"github.com/chainsafe/glitch-bridge/pkg/glitch"
	"github.com/chainsafe/glitch-bridge/pkg/migrations/relayerdb"
	"github.com/chainsafe/glitch-bridge/pkg/pgutil"
	mghelper "github.com/chainsafe/glitch-bridge/pkg/pgutil/migrations"
	"github.com/chainsafe/glitch-bridge/pkg/relayer"
	"github.com/chainsafe/glitch-bridge/pkg/signerlock"
)

// Server holds configuration for the relayer process.
type Server struct {
	cfg *config.Config
}

var _ app.Runner = (*Server)(nil)

// NewServer initializes a new relayer Server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run starts the relay engine of every configured network and the HTTP server.
// It blocks until an OS shutdown signal is received or the HTTP server fails.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("nil config")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging, zap.String("service", "glitch-bridge-relayer"))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting Glitch bridge relayer", zap.Int("networks", len(cfg.Networks)))

	db, err := pgutil.ConnectDB(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect relayer db: %w", err)
	}
	defer func() { _ = db.Close() }()

	if cfg.Database.AutoMigrate {
		group, err := mghelper.Apply(ctx, db, relayerdb.Migrations)
		if err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("Database migrations applied", zap.String("group", group.String()))
	}

	store := depositstore.NewStore(db)

	locker := signerlock.New(&cfg.SignerLock, logger)
	if rl, ok := locker.(*signerlock.RedisLocker); ok {
		if err := rl.Ping(ctx); err != nil {
			return fmt.Errorf("signer lock: %w", err)
		}
		defer func() { _ = rl.Close() }()
		logger.Info("Using redis signer lease", zap.String("key", cfg.SignerLock.Key))
	}

	networks, closeNetworks, err := dialNetworks(cfg, locker, logger)
	if err != nil {
		return err
	}
	defer closeNetworks()

	engine, err := relayer.NewEngine(cfg, store, networks, logger)
	if err != nil {
		return fmt.Errorf("create relayer engine: %w", err)
	}
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start relayer engine: %w", err)
	}
	defer engine.Stop()

	router := NewRouter(cfg, store, engine.IsReady, logger)
	return apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)
}

// dialNetworks connects the destination client of every network and prepares
// its source dialer. The returned func closes every destination client.
func dialNetworks(cfg *config.Config, locker signerlock.Locker, logger *zap.Logger) ([]relayer.Network, func(), error) {
	var clients []*glitch.Client
	closeAll := func() {
		for _, c := range clients {
			c.Close()
		}
	}

	var delegate *glitch.Delegate
	if cfg.Destination.Delegate.Enabled {
		d, err := glitch.NewDelegate(&cfg.Destination.Delegate, locker, logger.With(zap.String("component", "delegate")))
		if err != nil {
			return nil, nil, fmt.Errorf("create transfer delegate: %w", err)
		}
		delegate = d
	}

	networks := make([]relayer.Network, 0, len(cfg.Networks))
	for i := range cfg.Networks {
		n := &cfg.Networks[i]
		nlog := logger.With(zap.String("network", n.Name))

		client, err := glitch.Dial(n.DestinationWSURL, &cfg.Destination, locker, nlog)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("%s destination: %w", n.Name, err)
		}
		clients = append(clients, client)

		var dest relayer.DestinationClient = client
		if delegate != nil {
			dest = glitch.NewDelegatingClient(client, delegate)
		}

		networks = append(networks, relayer.Network{
			Config:      n,
			Dial:        sourceDialer(n, nlog),
			Destination: dest,
		})
		nlog.Info("Destination connected", zap.String("signer", client.SignerAddress()))
	}
	return networks, closeAll, nil
}

func sourceDialer(cfg *config.NetworkConfig, logger *zap.Logger) relayer.SourceDialer {
	return func(ctx context.Context) (relayer.SourceClient, error) {
		c, err := ethereum.Dial(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// NewRouter builds the operational endpoints and the /api/v1 deposit history API.
func NewRouter(cfg *config.Config, store service.Store, ready func() bool, logger *zap.Logger) http.Handler {
	r := apphttp.NewRouter(logger)

	r.Get("/health", apphttp.HandleError(func(w http.ResponseWriter, _ *http.Request) error {
		return apphttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))

	r.Get("/ready", apphttp.HandleError(func(w http.ResponseWriter, _ *http.Request) error {
		if !ready() {
			return apperrors.UnavailableError(nil, "scanners not connected")
		}
		return apphttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}))

	if cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics enabled", zap.String("path", "/metrics"))
	}

	svc := service.NewLog(service.NewService(store, logger), logger)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apphttp.CORS(cfg.Server.AllowedOrigins))
		service.RegisterRoutes(r, svc, logger)
	})

	return r
}
