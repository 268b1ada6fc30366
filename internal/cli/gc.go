package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/docseal/docseal/internal/ops"
	"github.com/docseal/docseal/pkg/color"
)

var (
	pruneDryRun bool
)

var snapshotPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete snapshots outside the retention policy",
	Long: `Delete snapshots that no retention rule protects.

A snapshot is kept if it is among the newest keep_min_snapshots, younger
than keep_min_age, carries one of keep_tags, or is the newest snapshot of
the currently locked tree. Use --dry-run to see the plan.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, finish, err := dispatcher()
		if err != nil {
			return err
		}
		defer finish()

		out, err := d.Dispatch(context.Background(), ops.Prune{DryRun: pruneDryRun})
		if err != nil {
			return err
		}
		result := out.(*ops.PruneResult)

		if jsonOutput {
			return outputJSON(result)
		}

		plan := result.Plan
		if pruneDryRun {
			fmt.Printf("Prune plan %s\n", plan.ID)
			for _, id := range plan.Protected {
				fmt.Printf("  keep   %s %s\n", color.SnapshotID(string(id)), color.Dim(strings.Join(result.Reasons[id], ",")))
			}
			for _, id := range plan.ToDelete {
				fmt.Printf("  delete %s\n", color.SnapshotID(string(id)))
			}
			fmt.Printf("Would free %s.\n", humanize.Bytes(uint64(plan.FreedBytes)))
			return nil
		}
		fmt.Printf("Deleted %d snapshot(s), freed %s.\n", len(result.Deleted), humanize.Bytes(uint64(plan.FreedBytes)))
		return nil
	},
}

func init() {
	snapshotPruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "show what would be deleted")
	snapshotCmd.AddCommand(snapshotPruneCmd)
}
