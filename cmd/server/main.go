// Command server runs the lab management API and its maintenance tasks.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "labdesk",
		Short:        "Diagnostic lab management API",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), seedCmd(), workerCmd(), exportsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
