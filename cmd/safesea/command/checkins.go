package command

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/safesea/internal/adapter/ledger"
)

var checkinsLimit int

var checkinsCmd = &cobra.Command{
	Use:   "checkins",
	Short: "List the most recent check-ins from the ledger",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.LedgerDriver == "none" {
			return errors.New("no ledger configured: set LEDGER_DRIVER and LEDGER_DSN")
		}
		l, err := ledger.Open(cmd.Context(), cfg.LedgerDriver, cfg.LedgerDSN, logger)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer l.Close()

		checkins, err := l.List(cmd.Context(), checkinsLimit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CREATED\tROLE\tNAME\tHULL ID\tLOCATION\tSOURCE")
		for _, c := range checkins {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				c.CreatedAt.Format(time.RFC3339), c.Role, c.Name, c.HullID, c.Location, c.Source)
		}
		return tw.Flush()
	},
}

func init() {
	checkinsCmd.Flags().IntVar(&checkinsLimit, "limit", 20, "number of check-ins to show")
}
