package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/labdesk/internal/config"
	"github.com/iliyamo/labdesk/internal/logging"
	"github.com/iliyamo/labdesk/internal/queue"
)

// workerCmd drains workflow events into the audit log. It needs only the
// queue settings, not the database.
func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume workflow events into the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			qc, err := config.LoadQueueConfig()
			if err != nil {
				return err
			}
			log := logging.New(envOr("LOG_LEVEL", "info"), envOr("LOG_FORMAT", "json"), envOr("APP_ENV", "dev"))

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c := &queue.Consumer{URL: qc.URL, Queue: qc.Queue, LogDir: qc.LogDir, Log: log}
			log.Info().Str("queue", qc.Queue).Str("dir", qc.LogDir).Msg("workflow consumer started")
			err = c.Run(ctx)
			if errors.Is(err, context.Canceled) {
				log.Info().Msg("workflow consumer stopped")
				return nil
			}
			return err
		},
	}
}
