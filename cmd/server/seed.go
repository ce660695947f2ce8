package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/labdesk/internal/database"
	"github.com/iliyamo/labdesk/internal/seed"
)

func seedCmd() *cobra.Command {
	var (
		demoPatients int
		randSeed     int64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reference data and optional demo patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			if demoPatients < 0 {
				return errors.New("--demo-patients must not be negative")
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := context.Background()
			if _, err := database.NewMigrator(a.db, a.log).Up(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			s := &seed.Seeder{
				Admin:    a.admin,
				Catalog:  a.catalog,
				Workflow: a.workflow,
				Log:      a.log,
				Seed:     randSeed,
			}
			sum, err := s.Run(ctx, demoPatients)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"lab created: %t, users: %d, doctors: %d, tests: %d, parameters: %d, patients: %d\n",
				sum.LabCreated, sum.Users, sum.Doctors, sum.Tests, sum.Parameters, sum.Patients)
			return nil
		},
	}
	cmd.Flags().IntVar(&demoPatients, "demo-patients", 0, "number of generated patients to register")
	cmd.Flags().Int64Var(&randSeed, "rand-seed", time.Now().UnixNano(), "seed for generated patients")
	return cmd
}
