package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docseal/docseal/internal/ops"
	"github.com/docseal/docseal/pkg/color"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/model"
)

var validateFast bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Compare the working tree with the approved lock",
	Long: `Compare the working tree with the approved lock and list every discrepancy.

Full mode re-hashes every tracked file and recomputes the Merkle root.
--fast only checks existence, size and modification time; it does not
notice an edit that keeps both.

Exit status is 0 when the tree matches and 2 when discrepancies exist.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, finish, err := dispatcher()
		if err != nil {
			return err
		}
		defer finish()

		out, err := d.Dispatch(context.Background(), ops.Validate{Fast: validateFast})
		if err != nil {
			return err
		}
		ds := out.([]model.Discrepancy)

		if jsonOutput {
			if err := outputJSON(map[string]any{"valid": len(ds) == 0, "fast": validateFast, "discrepancies": ds}); err != nil {
				return err
			}
		} else {
			printDiscrepancies(ds)
		}
		if len(ds) > 0 {
			return silent(errclass.ErrValidationMismatch.WithMessagef("%d discrepancies", len(ds)))
		}
		return nil
	},
}

func printDiscrepancies(ds []model.Discrepancy) {
	if len(ds) == 0 {
		fmt.Println(color.Success("Tree matches the approved lock."))
		return
	}
	fmt.Printf("%s (%d):\n", color.Error("Discrepancies"), len(ds))
	for _, d := range ds {
		kind := string(d.Kind)
		switch d.Kind {
		case model.DiscrepancyContentMismatch, model.DiscrepancyMissing, model.DiscrepancyRootMismatch:
			kind = color.Error(kind)
		default:
			kind = color.Warning(kind)
		}
		line := "  " + kind
		if d.Path != "" {
			line += " " + d.Path
		}
		if d.Message != "" {
			line += " " + color.Dim("("+d.Message+")")
		}
		fmt.Println(line)
	}
}

func init() {
	validateCmd.Flags().BoolVar(&validateFast, "fast", false, "skip content hashing (existence and mtime only)")
	rootCmd.AddCommand(validateCmd)
}
