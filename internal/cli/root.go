package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docseal/docseal/pkg/color"
	"github.com/docseal/docseal/pkg/errclass"
)

var (
	jsonOutput bool
	noColor    bool
	logLevel   string
	projectDir string
	rootCmd    = &cobra.Command{
		Use:   "docseal",
		Short: "docseal - documentation integrity and audit",
		Long: `docseal proves that a tree of generated documentation has not changed
since it was approved. It keeps a Merkle-rooted lock of the approved tree,
a hash-chained audit log of every approval and repair, and compressed
snapshots that can be restored with a round-trip digest check.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			color.Init(noColor)
			if noColor {
				color.Disable()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "C", "", "run as if started in this directory")
}

// Execute runs the root command and exits with the error's class code:
// 2 for validation mismatches, 3 for a broken audit chain, 1 otherwise.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var silent *silentError
		if !errors.As(err, &silent) {
			reportError(err)
		}
		os.Exit(errclass.ExitCode(err))
	}
}

// silentError carries an exit code for a failure the command already
// rendered (a discrepancy list, an unhealthy doctor report).
type silentError struct{ err error }

func (e *silentError) Error() string { return e.err.Error() }
func (e *silentError) Unwrap() error { return e.err }

func silent(err error) error { return &silentError{err: err} }

func reportError(err error) {
	if jsonOutput {
		payload := map[string]any{"error": err.Error()}
		var se *errclass.SealError
		if errors.As(err, &se) {
			payload["code"] = se.Code
			payload["class"] = se.Class
		}
		var brk *errclass.BreakError
		if errors.As(err, &brk) {
			payload["code"] = errclass.ClassIntegrityBreak
			payload["sequence"] = brk.Sequence
		}
		enc := json.NewEncoder(os.Stderr)
		enc.SetIndent("", "  ")
		enc.Encode(payload)
		return
	}
	if errors.Is(err, errclass.ErrIntegrityBreak) {
		fmt.Fprintln(os.Stderr, color.Critical("CRITICAL: audit chain integrity break"))
		fmtErr("%v", err)
		fmt.Fprintln(os.Stderr, color.Dim("  No mutating operation can run until the log is reviewed by a human."))
		return
	}
	fmtErr("%v", err)
}

// outputJSON prints v as JSON if --json flag is set, otherwise does nothing.
func outputJSON(v any) error {
	if !jsonOutput {
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
