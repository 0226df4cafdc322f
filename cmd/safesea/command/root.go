// Package command provides the safesea CLI. Without a sub-command the web
// service is started.
//
//	safesea [serve]
//	safesea corals [--archive data/Book3.zip]
//	safesea locate [--name NAME] [--ip ADDR]
//	safesea checkins [--limit 20]
package command

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/safesea/internal/config"
	"github.com/couchcryptid/safesea/internal/observability"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "safesea",
	Short: "Sailor and diver check-in service with a coral map",
	Long: `SafeSea checks sailors and divers in, resolves their approximate
location from the client IP and shows a map of coral locations loaded
from a zipped CSV archive alongside the checked-in positions.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runServe,
}

func loadConfig(_ *cobra.Command, _ []string) error {
	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = c
	logger = observability.NewLogger(cfg)
	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, coralsCmd, locateCmd, checkinsCmd)
}
