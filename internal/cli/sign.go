package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docseal/docseal/internal/ops"
	"github.com/docseal/docseal/pkg/color"
	"github.com/docseal/docseal/pkg/model"
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign the approved lock root",
	Long: `Run signer.command with the lock root as its last argument and the
approved manifest on stdin. Its output is stored as the detached signature
under .docseal/signatures/.

The project must be LOCKED: a lock exists and a full validation is clean.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, finish, err := dispatcher()
		if err != nil {
			return err
		}
		defer finish()

		out, err := d.Dispatch(context.Background(), ops.Sign{})
		if err != nil {
			return err
		}
		marker := out.(*model.SignatureMarker)

		if jsonOutput {
			return outputJSON(marker)
		}
		fmt.Printf("Signed %s with %s\n", color.Digest(string(marker.MerkleRoot)), marker.Signer)
		fmt.Printf("  signature: %s\n", marker.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signCmd)
}
