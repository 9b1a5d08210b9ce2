package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Pakyas-Monitoring/pakyas-cli/internal/version"
)

var verbose bool

// exitStatus carries the monitor engine's resolved exit code out of
// cobra's RunE, which can only return an error.
var exitStatus int

func main() {
	// A local .env can supply PAKYAS_* overrides; absence is fine.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitStatus)
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "pakyas",
		Short:        "Pakyas cron and background job monitoring",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(verbose)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(versionCmd())
	root.AddCommand(monitorCmd())
	root.AddCommand(pingCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pakyas %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

func setupLogger(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
