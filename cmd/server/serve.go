package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/iliyamo/labdesk/internal/apperr"
	"github.com/iliyamo/labdesk/internal/config"
	"github.com/iliyamo/labdesk/internal/database"
	"github.com/iliyamo/labdesk/internal/handler"
	"github.com/iliyamo/labdesk/internal/router"
)

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving")
	return cmd
}

func runServer(migrate bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	log := a.log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrate {
		n, err := database.NewMigrator(a.db, log).Up(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("applied", n).Msg("migrations up to date")
	}
	if err := a.admin.EnsureRoles(ctx); err != nil {
		return err
	}

	rlc, err := config.LoadRateLimitConfig()
	if err != nil {
		return err
	}
	cc, err := config.LoadCacheConfig()
	if err != nil {
		return err
	}
	rc, err := config.LoadRedisConfig()
	if err != nil {
		return err
	}
	rdb := config.NewRedisClient(rc)
	if rdb == nil {
		log.Warn().Str("addr", rc.Address()).Msg("redis unavailable; rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(log)

	router.Register(e, router.Deps{
		Health:      handler.NewHealthHandler(a.db),
		Auth:        handler.NewAuthHandler(a.auth),
		Admin:       handler.NewAdminHandler(a.admin),
		Catalog:     handler.NewCatalogHandler(a.catalog),
		Workflow:    handler.NewWorkflowHandler(a.workflow),
		Exports:     handler.NewExportHandler(a.exports),
		Tokens:      a.auth,
		Identity:    a.auth,
		Redis:       rdb,
		RateLimit:   rlc,
		Cache:       cc,
		Log:         log,
		CORSOrigins: a.cfg.CORSOrigins,
		BodyLimit:   a.cfg.BodyLimit,
	})

	go func() {
		addr := ":" + a.cfg.Port
		log.Info().Str("addr", addr).Str("env", a.cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
