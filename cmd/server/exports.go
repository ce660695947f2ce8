package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func exportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exports",
		Short: "Manage spreadsheet exports",
	}

	var days int
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete exports older than --days",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if !cmd.Flags().Changed("days") {
				days = a.cfg.ExportRetentionDays
			}
			removed, err := a.exports.Cleanup(days)
			if err != nil {
				return err
			}
			for _, name := range removed {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d export(s)\n", len(removed))
			return nil
		},
	}
	cleanup.Flags().IntVar(&days, "days", 7, "retention in days")
	cmd.AddCommand(cleanup)
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
