package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docseal/docseal/internal/ops"
	"github.com/docseal/docseal/pkg/color"
)

var statusFast bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the project state",
	Long: `Show where the project is in the approval state machine:

  UNLOCKED  no lock record yet
  LOCKED    the tree matches the lock
  SIGNED    LOCKED, and the signature covers the current lock root
  DRIFTED   the tree differs from the lock`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := requireProject()
		if err != nil {
			return err
		}
		out, err := ops.New(p).Dispatch(context.Background(), ops.Status{Fast: statusFast})
		if err != nil {
			return err
		}
		st := out.(*ops.StatusReport)

		if jsonOutput {
			return outputJSON(map[string]any{
				"project_root":   p.Root,
				"project_id":     p.ProjectID,
				"format_version": p.FormatVersion,
				"status":         st,
			})
		}

		fmt.Printf("Project:   %s\n", p.Root)
		fmt.Printf("State:     %s\n", color.State(string(st.State)))
		if st.Lock != nil {
			fmt.Printf("Lock:      %s (%d files, %s, %s)\n", color.Digest(string(st.Lock.MerkleRoot)),
				st.Lock.FileCount, st.Lock.Algorithm, st.Lock.GeneratedAt.Local().Format("2006-01-02 15:04"))
		}
		if st.Signature != nil {
			fmt.Printf("Signed:    %s by %s\n", color.Digest(string(st.Signature.MerkleRoot)), st.Signature.Signer)
		}
		if n := len(st.Discrepancies); n > 0 && st.State != ops.StateUnlocked {
			fmt.Printf("Drift:     %d discrepancies (run %s)\n", n, color.Code("docseal validate"))
		}
		fmt.Printf("Snapshots: %d\n", st.Snapshots)
		if st.LatestSnapshot != nil {
			fmt.Printf("  latest   %s %s\n", color.SnapshotID(string(st.LatestSnapshot.ID)), st.LatestSnapshot.Note)
		}
		if st.AuditIntact {
			fmt.Printf("Audit:     %d entries, chain intact\n", st.AuditEntries)
		} else {
			fmt.Printf("Audit:     %s %s\n", color.Critical("BROKEN"), st.AuditError)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusFast, "fast", false, "skip content hashing")
	rootCmd.AddCommand(statusCmd)
}
