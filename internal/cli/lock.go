package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docseal/docseal/internal/ops"
	"github.com/docseal/docseal/pkg/color"
	"github.com/docseal/docseal/pkg/model"
)

var lockUpdate bool

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Approve the current tree",
	Long: `Approve the current tree: hash every tracked file, store the manifest
and write a new lock record with its Merkle root.

Locking is refused while a required file is missing. An existing lock is
only replaced with --update, which is how a reviewed change is approved.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, finish, err := dispatcher()
		if err != nil {
			return err
		}
		defer finish()

		out, err := d.Dispatch(context.Background(), ops.Lock{Update: lockUpdate})
		if err != nil {
			return err
		}
		rec := out.(*model.LockRecord)

		if jsonOutput {
			return outputJSON(rec)
		}
		fmt.Printf("Locked %d files at %s (%s)\n", rec.FileCount, color.Digest(string(rec.MerkleRoot)), rec.Algorithm)
		return nil
	},
}

func init() {
	lockCmd.Flags().BoolVar(&lockUpdate, "update", false, "replace the existing lock with the current tree")
	rootCmd.AddCommand(lockCmd)
}
