package app

import (
	"context"
	"fmt"
	"log"

	"perceptkit/internal/gateway/config"
	"perceptkit/internal/gateway/handler"
	"perceptkit/internal/gateway/server"
	"perceptkit/internal/meaning"
	"perceptkit/internal/store"
)

type App struct {
	server *server.Server
	close  func()
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Dependencies
	extra, closeStores, err := initExtraStores(cfg)
	if err != nil {
		return nil, err
	}
	maker, err := meaning.New(meaning.Config{
		PageURL:        cfg.PageURL,
		AllowedOrigins: cfg.AllowedOrigins,
	}, extra...)
	if err != nil {
		closeStores()
		return nil, err
	}
	if err := bootstrap(ctx, cfg, maker); err != nil {
		closeStores()
		return nil, err
	}

	perceptionHandler := handler.NewPerceptionHandler(maker)

	// Routing & Server
	mux := server.NewMux(perceptionHandler)
	srv := server.New(cfg.Port, mux)

	return &App{
		server: srv,
		close:  closeStores,
	}, nil
}

func initExtraStores(cfg *config.Config) ([]store.Store, func(), error) {
	if cfg.PostgresDSN == "" {
		return nil, func() {}, nil
	}
	pg, err := store.NewPostgresStore(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open artifact store db: %w", err)
	}
	log.Printf("artifact store: shared postgres catalog registered")
	return []store.Store{pg}, func() { _ = pg.Close() }, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	defer a.close()
	return a.server.Shutdown(ctx)
}
