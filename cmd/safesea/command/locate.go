package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/safesea/internal/domain"
	"github.com/couchcryptid/safesea/internal/observability"
)

var (
	locateName string
	locateIP   string
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Resolve a check-in location with the configured provider",
	RunE: func(cmd *cobra.Command, _ []string) error {
		provider, err := newProvider(observability.NewMetrics())
		if err != nil {
			return err
		}
		defer provider.Close()

		loc, source, err := domain.ResolveLocation(cmd.Context(), locateName, locateIP, provider)
		if err != nil {
			return fmt.Errorf("locate: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", loc, source)
		return nil
	},
}

func init() {
	locateCmd.Flags().StringVar(&locateName, "name", "", "visitor name")
	locateCmd.Flags().StringVar(&locateIP, "ip", "", "client address; empty locates this host")
}
