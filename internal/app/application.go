// Package app wires the relay's components together and owns their
// lifecycle. Initialization follows dependency order: store, profiles,
// suppressor, registry, router, relay handler, API, HTTP server.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"gigrelay/internal/api"
	"gigrelay/internal/config"
	"gigrelay/internal/dedup"
	"gigrelay/internal/profile"
	"gigrelay/internal/relay"
	"gigrelay/internal/store"
	pkgdatabase "gigrelay/pkg/database"
)

type Application struct {
	config          *config.Config
	store           *store.Manager
	profiles        *profile.Manager
	registry        *relay.Registry
	router          *relay.Router
	relayHandler    *relay.Handler
	apiServer       *api.Server
	httpServer      *http.Server
	stopMaintenance context.CancelFunc
}

func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbConfig := &pkgdatabase.Config{
		DatabasePath:    cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: cfg.Database.Timeout,
		ConnMaxIdleTime: cfg.Database.Timeout / 3,
		MigrationsPath:  "migrations",
	}

	messageStore, err := store.NewManager(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize message store: %w", err)
	}

	migrationManager := pkgdatabase.NewMigrationManager(messageStore.GetDB(), dbConfig.MigrationsPath)
	if err := migrationManager.ApplyMigrations(); err != nil {
		messageStore.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	log.Println("Database migrations applied successfully")

	profiles := profile.NewManager(messageStore)

	suppressor, err := dedup.New(cfg.Relay.DedupStrategy, messageStore, cfg.Relay.DedupWindow)
	if err != nil {
		messageStore.Close()
		return nil, fmt.Errorf("failed to initialize duplicate suppression: %w", err)
	}

	registry := relay.NewRegistry()
	router := relay.NewRouter(registry)
	relayHandler := relay.NewHandler(registry, messageStore, profiles, suppressor, router, cfg.Relay.MessageBuffer)
	apiServer := api.NewServer(messageStore, profiles, registry)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", relayHandler.HandleRelay)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:       cfg,
		store:        messageStore,
		profiles:     profiles,
		registry:     registry,
		router:       router,
		relayHandler: relayHandler,
		apiServer:    apiServer,
		httpServer:   httpServer,
	}, nil
}

// Start launches background maintenance and the HTTP server, returning
// once the server has come up or failed to bind.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting gigrelay on %s", app.httpServer.Addr)

	maintenanceCtx, cancel := context.WithCancel(context.Background())
	app.stopMaintenance = cancel
	go app.relayHandler.RunMaintenance(maintenanceCtx)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		cancel()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("gigrelay started successfully")
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// Stop shuts components down in reverse dependency order: HTTP server,
// maintenance, live connections, store.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down gigrelay")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if app.stopMaintenance != nil {
		app.stopMaintenance()
	}

	app.registry.CloseAll()

	if err := app.store.Close(); err != nil {
		log.Printf("Message store shutdown error: %v", err)
	}

	log.Printf("gigrelay shutdown complete")
	return nil
}

// GetAddr returns the server address for external connections.
func (app *Application) GetAddr() string {
	return app.httpServer.Addr
}
