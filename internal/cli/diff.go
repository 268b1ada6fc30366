package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docseal/docseal/internal/diff"
	"github.com/docseal/docseal/internal/ops"
)

var (
	diffStatOnly bool
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show file changes against the approved lock",
	Long: `Show which tracked files were added, removed or modified since the
last lock. Content is compared by digest.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := requireProject()
		if err != nil {
			return err
		}
		out, err := ops.New(p).Dispatch(context.Background(), ops.Diff{})
		if err != nil {
			return err
		}
		result := out.(*diff.Result)

		if jsonOutput {
			return outputJSON(result)
		}
		if diffStatOnly {
			fmt.Printf("%d added, %d removed, %d modified\n", result.TotalAdded, result.TotalRemoved, result.TotalModified)
			return nil
		}
		fmt.Print(result.FormatHuman())
		return nil
	},
}

func init() {
	diffCmd.Flags().BoolVar(&diffStatOnly, "stat", false, "show only counts")
	rootCmd.AddCommand(diffCmd)
}
