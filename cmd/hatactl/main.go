package main

import (
	"fmt"
	"os"

	"github.com/boddenberg/hatacrm/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	_ = config.LoadDotEnv(".env")

	rootCmd := &cobra.Command{
		Use:           "hatactl",
		Short:         "HataCRM operations: migrations, analytics refresh, refresh worker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		migrateCmd(),
		refreshCmd(),
		workerCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
