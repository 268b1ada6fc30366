package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/docseal/docseal/internal/ops"
	"github.com/docseal/docseal/internal/restore"
	"github.com/docseal/docseal/pkg/color"
	"github.com/docseal/docseal/pkg/errclass"
)

var (
	restoreTarget string
)

var restoreCmd = &cobra.Command{
	Use:   "restore <snapshot>",
	Short: "Restore a snapshot",
	Long: `Restore a snapshot into the project, or into --target.

The snapshot can be named by:
- A full snapshot ID
- A unique ID prefix
- A tag name (the newest snapshot with that tag)
- A note prefix

Every file is extracted to a staging directory and checked against the
snapshot manifest before anything in the target is replaced. A mismatch
aborts with the target untouched. Files not in the snapshot are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, finish, err := dispatcher()
		if err != nil {
			return err
		}

		target := restoreTarget
		if target != "" && !filepath.IsAbs(target) {
			dir, err := workDir()
			if err != nil {
				finish()
				return err
			}
			target = filepath.Join(dir, target)
		}

		out, err := d.Dispatch(context.Background(), ops.Restore{SnapshotID: args[0], Target: target})
		finish()
		if errors.Is(err, errclass.ErrNotFound) {
			return snapshotNotFoundError(d.Project(), args[0], err)
		}
		if err != nil {
			return err
		}
		result := out.(*restore.Result)

		if jsonOutput {
			return outputJSON(result)
		}
		fmt.Printf("Restored snapshot %s into %s\n", color.SnapshotID(string(result.SnapshotID)), result.Target)
		fmt.Printf("  %d files restored (%d replaced), root %s\n",
			result.RestoredFiles, result.ReplacedFiles, color.Digest(string(result.PostRestoreRoot)))
		return nil
	},
}

func init() {
	restoreCmd.Flags().StringVar(&restoreTarget, "target", "", "directory to restore into (default: project root)")
	rootCmd.AddCommand(restoreCmd)
}
