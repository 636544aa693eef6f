package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"opsmap/internal/config"
	"opsmap/internal/handler"
	"opsmap/internal/hub"
	"opsmap/internal/provider"
	"opsmap/internal/repository/sqlite"
	"opsmap/internal/service"
)

func serveCmd() *cobra.Command {
	var addr, dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the operations map server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if dbPath != "" {
				cfg.Database.Path = dbPath
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting opsmap server...")
	log.Println(cfg.Summary())

	network, optimizer, err := buildProviders(cfg)
	if err != nil {
		return err
	}
	if optimizer == nil {
		return errors.New("serve needs an optimizer: set providers.optimizer_url")
	}

	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repo.Close()
	log.Printf("Database opened: %s", cfg.Database.Path)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Event bus feeds the SSE hub
	eventBus := service.NewEventBus()
	sseHub := hub.New()
	go sseHub.Run(ctx)

	events := make(chan service.Event, 100)
	eventBus.Subscribe(events)
	defer eventBus.Unsubscribe(events)
	go hub.Forward(ctx, sseHub, events)

	// Services
	opsSvc := service.NewOperationsService(network, optimizer, repo, eventBus, cfg.Overlay.Options()...)

	settingsSvc := service.NewSettingsService(opsSvc, repo, eventBus, cfg.Settings.Debounce.Duration(), nil)
	defaults := service.DefaultSettings()
	defaults.AutoRecompute = cfg.Settings.AutoRecompute
	if err := settingsSvc.SetDefaults(defaults); err != nil {
		return err
	}
	if err := settingsSvc.Restore(ctx); err != nil {
		log.Printf("Failed to restore settings: %v", err)
	}
	defer settingsSvc.Close()

	viewSvc := service.NewViewService(opsSvc, eventBus, cfg.View.Controller(), cfg.View.Layout())
	go viewSvc.Run(ctx)
	defer viewSvc.CloseAll()

	go func() {
		if err := opsSvc.Load(ctx); err != nil {
			log.Printf("Initial load failed: %v", err)
		}
	}()

	if fp, ok := network.(*provider.FileProvider); ok {
		go func() {
			log.Printf("Watching %s for changes", fp.Path())
			err := fp.Watch(ctx, func() {
				if err := opsSvc.ReloadNetwork(ctx); err != nil {
					log.Printf("Reload after change failed: %v", err)
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("File watcher stopped: %v", err)
			}
		}()
	}

	// Routes
	mux := http.NewServeMux()
	handler.NewOperationsHandler(opsSvc).Register(mux)
	handler.NewSettingsHandler(settingsSvc).Register(mux)
	handler.NewViewHandler(viewSvc).Register(mux)
	mux.Handle("GET /events", sseHub)

	finalHandler := handler.Chain(mux,
		handler.Recover,
		handler.CORSOrigins(cfg.Server.CORSOrigins),
		handler.Logger,
	)

	// No write timeout: SSE and view sockets are long lived
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           finalHandler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	return nil
}
