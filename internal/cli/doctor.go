package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docseal/docseal/internal/doctor"
	"github.com/docseal/docseal/pkg/color"
	"github.com/docseal/docseal/pkg/errclass"
)

var (
	doctorStrict bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check project health",
	Long: `Check project health.

Runs read-only diagnostic checks over the state directory and reports any
issues: config, lock record and manifest, audit chain, signature,
snapshots, interrupted operations. Nothing is repaired.
Use --strict to re-digest every snapshot archive.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := requireProject()
		if err != nil {
			return err
		}

		result, err := doctor.NewDoctor(p).Check(context.Background(), doctorStrict)
		if err != nil {
			return err
		}

		if jsonOutput {
			if err := outputJSON(result); err != nil {
				return err
			}
		} else if len(result.Findings) == 0 {
			fmt.Println(color.Success("Project is healthy."))
		} else {
			fmt.Printf("Findings (%d):\n", len(result.Findings))
			for _, f := range result.Findings {
				fmt.Printf("  [%s] %s: %s\n", severity(f.Severity), f.Category, f.Description)
			}
		}

		if !result.Healthy {
			if result.HasCategory("audit") && result.Worst() == doctor.SeverityCritical {
				return silent(errclass.ErrIntegrityBreak)
			}
			return silent(errors.New("project is unhealthy"))
		}
		return nil
	},
}

func severity(s string) string {
	switch s {
	case doctor.SeverityCritical:
		return color.Critical(s)
	case doctor.SeverityError:
		return color.Error(s)
	case doctor.SeverityWarning:
		return color.Warning(s)
	default:
		return color.Dim(s)
	}
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorStrict, "strict", false, "include full archive verification")
	rootCmd.AddCommand(doctorCmd)
}
