package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/docseal/docseal/internal/repo"
	"github.com/docseal/docseal/pkg/color"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Initialize a docseal project",
	Long: `Initialize a docseal project in dir (default: the current directory).

This creates:
  - .docseal/ with manifests/, audit/, snapshots/, intents/, signatures/, tmp/
  - .docseal/config.yaml with default settings (kept if it already exists)
  - format_version and project_id

The documentation tree itself is not touched. Run "docseal lock" once the
required files exist to approve the current state.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := workDir()
		if err != nil {
			return err
		}
		if len(args) > 0 {
			if filepath.IsAbs(args[0]) {
				dir = args[0]
			} else {
				dir = filepath.Join(dir, args[0])
			}
		}

		p, err := repo.Init(dir)
		if err != nil {
			return fmt.Errorf("initialize project: %w", err)
		}

		if jsonOutput {
			return outputJSON(map[string]any{
				"project_root":   p.Root,
				"format_version": p.FormatVersion,
				"project_id":     p.ProjectID,
			})
		}
		fmt.Printf("Initialized docseal project in %s\n", color.Success(p.Root))
		fmt.Printf("  Tracked paths: %v\n", p.Config.TrackedPaths)
		fmt.Printf("  Required files: %v\n", p.Config.RequiredPaths())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
