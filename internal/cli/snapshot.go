package cli

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/docseal/docseal/internal/ops"
	"github.com/docseal/docseal/pkg/color"
	"github.com/docseal/docseal/pkg/model"
)

var (
	snapshotTags []string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [note]",
	Short: "Archive the tracked tree",
	Long: `Archive the tracked tree into a compressed snapshot with a per-file manifest.

Use --tag to attach one or more tags; default_tags from the config are
always added. The snapshot records the current lock root when one exists.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, finish, err := dispatcher()
		if err != nil {
			return err
		}

		note := ""
		if len(args) > 0 {
			note = args[0]
		}
		out, err := d.Dispatch(context.Background(), ops.Snapshot{Note: note, Tags: snapshotTags})
		finish()
		if err != nil {
			return err
		}
		m := out.(*model.SnapshotManifest)

		if jsonOutput {
			return outputJSON(m)
		}
		fmt.Printf("Created snapshot %s (%d files, %s, %s)\n",
			color.SnapshotID(string(m.ID)), len(m.Files), humanize.Bytes(uint64(m.TotalSize)), m.Compression)
		return nil
	},
}

func init() {
	snapshotCmd.Flags().StringSliceVar(&snapshotTags, "tag", []string{}, "tag for this snapshot (can be repeated)")
	rootCmd.AddCommand(snapshotCmd)
}
