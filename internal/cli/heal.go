package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docseal/docseal/internal/heal"
	"github.com/docseal/docseal/internal/ops"
	"github.com/docseal/docseal/pkg/color"
	"github.com/docseal/docseal/pkg/errclass"
)

var healCmd = &cobra.Command{
	Use:   "heal",
	Short: "Regenerate missing required files",
	Long: `Regenerate required files that are missing, then validate again.

Only structural damage is repaired. A tracked file whose content differs
from the lock is never rewritten; it stays unresolved until you restore it
from a snapshot or approve it with "docseal lock --update".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, finish, err := dispatcher()
		if err != nil {
			return err
		}
		defer finish()

		out, err := d.Dispatch(context.Background(), ops.Heal{})
		if err != nil {
			return err
		}
		report := out.(*heal.Report)

		if jsonOutput {
			if err := outputJSON(report); err != nil {
				return err
			}
		} else {
			for _, p := range report.Repaired {
				fmt.Printf("  %s %s\n", color.Success("regenerated"), p)
			}
			for _, f := range report.Failed {
				fmt.Printf("  %s %s: %s\n", color.Error("failed"), f.Path, f.Error)
			}
			if len(report.Unresolved) > 0 {
				fmt.Println("Unresolved (needs review and \"docseal lock --update\"):")
				printDiscrepancies(report.Unresolved)
			} else if len(report.Failed) == 0 {
				fmt.Println(color.Success("Project is healthy."))
			}
		}
		if !report.Clean() {
			return silent(errclass.ErrValidationMismatch.WithMessagef("%d unresolved, %d failed", len(report.Unresolved), len(report.Failed)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healCmd)
}
