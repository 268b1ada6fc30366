package cli

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/docseal/docseal/internal/ops"
	"github.com/docseal/docseal/internal/verify"
	"github.com/docseal/docseal/pkg/color"
)

var reportFiles bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Hash the tracked tree and compare its root with the lock",
	Long: `Hash every tracked file, compute the current Merkle root and show it next
to the locked root, with totals and any discrepancies. Use --files to list
every file with its digest.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := requireProject()
		if err != nil {
			return err
		}
		out, err := ops.New(p).Dispatch(context.Background(), ops.IntegrityReport{})
		if err != nil {
			return err
		}
		r := out.(*verify.IntegrityReport)

		if jsonOutput {
			return outputJSON(r)
		}
		fmt.Println(color.Header("Integrity report"))
		fmt.Printf("  Files:        %d (%s)\n", r.FileCount, humanize.Bytes(uint64(r.TotalSize)))
		fmt.Printf("  Current root: %s (%s)\n", color.Digest(string(r.CurrentRoot)), r.Algorithm)
		switch {
		case !r.Locked:
			fmt.Printf("  Stored root:  %s\n", color.Dim("none (not locked)"))
		case r.Match:
			fmt.Printf("  Stored root:  %s %s\n", color.Digest(string(r.StoredRoot)), color.Success("match"))
		default:
			fmt.Printf("  Stored root:  %s %s\n", color.Digest(string(r.StoredRoot)), color.Error("differs"))
		}
		if reportFiles {
			fmt.Println("  Files:")
			for _, f := range r.Files {
				fmt.Printf("    %s  %8s  %s\n", color.Digest(string(f.Digest)), humanize.Bytes(uint64(f.Size)), f.Path)
			}
		}
		if len(r.Discrepancies) > 0 {
			printDiscrepancies(r.Discrepancies)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportFiles, "files", false, "list every file with its digest")
	rootCmd.AddCommand(reportCmd)
}
