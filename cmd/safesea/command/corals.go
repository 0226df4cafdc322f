package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/safesea/internal/coral"
	"github.com/couchcryptid/safesea/internal/mapview"
)

var coralArchive string

var coralsCmd = &cobra.Command{
	Use:   "corals",
	Short: "Load the coral archive and print a summary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := coralArchive
		if path == "" {
			path = cfg.CoralArchive
		}
		records, err := coral.Load(path, cfg.CoralRowLimit)
		if err != nil {
			return err
		}
		center := mapview.Mean(records)
		fmt.Fprintf(cmd.OutOrStdout(), "archive: %s\nrecords: %d\ncenter:  %s\n", path, len(records), center)
		return nil
	},
}

func init() {
	coralsCmd.Flags().StringVar(&coralArchive, "archive", "", "coral archive path (default $CORAL_ARCHIVE)")
}
