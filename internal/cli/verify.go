package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docseal/docseal/internal/snapshot"
	"github.com/docseal/docseal/pkg/color"
	"github.com/docseal/docseal/pkg/errclass"
)

var (
	verifyDeep bool
)

var snapshotVerifyCmd = &cobra.Command{
	Use:   "verify [<snapshot>]",
	Short: "Verify snapshot integrity",
	Long: `Verify snapshot integrity.

Checks the manifest checksum and that the archive exists. --deep also
decompresses the archive and re-digests every file against the manifest.

Examples:
  docseal snapshot verify                 # Verify all snapshots
  docseal snapshot verify release-1       # Verify one snapshot (id, prefix or tag)
  docseal snapshot verify --deep          # Re-digest every archive`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := requireProject()
		if err != nil {
			return err
		}
		catalog := snapshot.NewCatalog(p)
		ctx := context.Background()

		var results []*snapshot.VerifyResult
		if len(args) == 1 {
			m, err := catalog.Resolve(args[0])
			if err != nil {
				return snapshotNotFoundError(p, args[0], err)
			}
			results = append(results, catalog.Verify(ctx, m.ID, verifyDeep))
		} else {
			ids, err := catalog.IDs()
			if err != nil {
				return err
			}
			for _, id := range ids {
				results = append(results, catalog.Verify(ctx, id, verifyDeep))
			}
		}

		failed := 0
		for _, r := range results {
			if !r.OK() {
				failed++
			}
		}

		if jsonOutput {
			if err := outputJSON(results); err != nil {
				return err
			}
		} else {
			for _, r := range results {
				if r.OK() {
					fmt.Printf("%s %s\n", color.SnapshotID(string(r.SnapshotID)), color.Success("OK"))
					continue
				}
				status := color.Error("FAILED")
				if r.TamperDetected {
					status = color.Critical("TAMPERED")
				}
				fmt.Printf("%s %s %s\n", color.SnapshotID(string(r.SnapshotID)), status, r.Error)
			}
		}
		if failed > 0 {
			return silent(errclass.ErrValidationMismatch.WithMessagef("%d of %d snapshots failed verification", failed, len(results)))
		}
		return nil
	},
}

func init() {
	snapshotVerifyCmd.Flags().BoolVar(&verifyDeep, "deep", false, "decompress and re-digest archive contents")
	snapshotCmd.AddCommand(snapshotVerifyCmd)
}
