// Package app wires all components together in dependency order and owns
// their lifecycle.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"collabboard/internal/agui"
	"collabboard/internal/api"
	"collabboard/internal/config"
	"collabboard/internal/database"
	"collabboard/internal/hub"
	"collabboard/internal/llm"
	"collabboard/internal/logging"
	"collabboard/internal/metrics"
	"collabboard/internal/router"
	"collabboard/internal/websocket"
	pkgdatabase "collabboard/pkg/database"
)

// Application holds the fully wired service.
type Application struct {
	cfg    *config.Config
	logger zerolog.Logger

	store  *database.Store
	hub    *hub.Hub
	server *api.Server
}

// NewApplication builds the component graph: store, registry, router, hub,
// bridge, then the HTTP surface.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	})

	prom := prometheus.NewRegistry()
	prom.MustRegister(collectors.NewGoCollector())
	m := metrics.MustNew(prom)

	dbCfg := pkgdatabase.DefaultConfig()
	dbCfg.DatabasePath = cfg.Database.Path
	store, err := database.NewStore(dbCfg, logging.Component(logger, "store"))
	if err != nil {
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}

	registry := websocket.NewRegistry()
	messageRouter := router.NewRouter(registry, store, logging.Component(logger, "router"), m)
	messageHub := hub.NewHub(registry, messageRouter, logging.Component(logger, "hub"))
	wsHandler := websocket.NewHandler(messageHub, cfg.WebSocket, logging.Component(logger, "websocket"), m)

	streamer := llm.NewClient(cfg.Agent, logging.Component(logger, "llm"))
	bridge := agui.NewBridge(streamer, logging.Component(logger, "agui"), m)

	server := api.NewServer(api.Options{
		Config:    cfg.Server,
		WSHandler: wsHandler,
		Hub:       messageHub,
		Registry:  registry,
		Store:     store,
		Bridge:    bridge,
		Prom:      prom,
		Logger:    logging.Component(logger, "api"),
	})

	return &Application{
		cfg:    cfg,
		logger: logger,
		store:  store,
		hub:    messageHub,
		server: server,
	}, nil
}

// Run starts everything and blocks until ctx is cancelled or a component
// fails, then shuts down in reverse order.
func (a *Application) Run(ctx context.Context) error {
	if err := a.hub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hub: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.server.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn().Err(err).Msg("http shutdown incomplete")
		}

		if err := a.hub.Stop(); err != nil {
			a.logger.Warn().Err(err).Msg("hub stop failed")
		}

		return a.store.Close()
	})

	return g.Wait()
}
