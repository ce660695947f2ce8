package main

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iliyamo/labdesk/internal/config"
	"github.com/iliyamo/labdesk/internal/database"
	"github.com/iliyamo/labdesk/internal/export"
	"github.com/iliyamo/labdesk/internal/logging"
	"github.com/iliyamo/labdesk/internal/queue"
	"github.com/iliyamo/labdesk/internal/repository"
	"github.com/iliyamo/labdesk/internal/service"
)

// app is the wiring shared by every subcommand.
type app struct {
	cfg   config.Config
	queue config.QueueConfig
	log   zerolog.Logger
	db    *sql.DB
	store *repository.Store

	auth     *service.Auth
	admin    *service.Admin
	catalog  *service.Catalog
	workflow *service.Workflow
	exports  *export.Exporter
}

// newApp loads configuration, opens the database and builds the services.
// The caller must close a.db.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	qc, err := config.LoadQueueConfig()
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.Env)

	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	log.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("connected to database")

	store := repository.NewStore(db)
	return &app{
		cfg:      cfg,
		queue:    qc,
		log:      log,
		db:       db,
		store:    store,
		auth:     service.NewAuth(store, cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL(), log),
		admin:    service.NewAdmin(store, cfg.BcryptCost, log),
		catalog:  service.NewCatalog(store, log),
		workflow: service.NewWorkflow(store, queue.NewPublisher(qc), log, cfg.Location()),
		exports:  export.New(cfg.ExportDir, store.Snapshots, log),
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close database")
	}
}
