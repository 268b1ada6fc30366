package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/docseal/docseal/internal/audit"
	"github.com/docseal/docseal/internal/ops"
	"github.com/docseal/docseal/pkg/color"
	"github.com/docseal/docseal/pkg/model"
)

var (
	auditLimit      int
	auditReportDays int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the hash-chained audit log",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the whole audit chain",
	Long: `Walk the audit log from the first entry, recomputing every entry digest
and checking each link and the head anchor.

A break is reported with the first failing sequence number and exit
status 3. It is never repaired automatically.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := requireProject()
		if err != nil {
			return err
		}
		out, err := ops.New(p).Dispatch(context.Background(), ops.AuditVerify{})
		if err != nil {
			return err
		}
		st := out.(*ops.AuditStatus)

		if jsonOutput {
			return outputJSON(map[string]any{"ok": true, "entries": st.Entries, "head": st.Head})
		}
		fmt.Printf("%s %d entries\n", color.Success("Audit chain intact:"), st.Entries)
		if st.Head != nil {
			fmt.Printf("  head #%d %s\n", st.Head.Sequence, color.Digest(string(st.Head.EntryDigest)))
		}
		return nil
	},
}

var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show audit entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := requireProject()
		if err != nil {
			return err
		}
		out, err := ops.New(p).Dispatch(context.Background(), ops.AuditLog{Limit: auditLimit})
		if err != nil {
			return err
		}
		entries := out.([]model.AuditEntry)

		if jsonOutput {
			return outputJSON(entries)
		}
		if len(entries) == 0 {
			fmt.Println("Audit log is empty.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("#%-4d %s  %-8s %s\n", e.Sequence,
				e.Timestamp.Local().Format(time.RFC3339), color.Info(string(e.EventKind)), formatPayload(e.Payload))
		}
		return nil
	},
}

var auditReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize audit activity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := requireProject()
		if err != nil {
			return err
		}
		var since time.Time
		if auditReportDays > 0 {
			since = p.Clock.Now().AddDate(0, 0, -auditReportDays)
		}
		out, err := ops.New(p).Dispatch(context.Background(), ops.AuditReport{Since: since})
		if err != nil {
			return err
		}
		r := out.(*audit.Report)

		if jsonOutput {
			return outputJSON(r)
		}
		fmt.Println(color.Header("Audit report"))
		if auditReportDays > 0 {
			fmt.Printf("  Window: last %d days\n", auditReportDays)
		}
		fmt.Printf("  Entries: %d in window, %d total\n", r.WindowEntries, r.TotalEntries)
		fmt.Printf("  Chain: %s\n", color.Success("verified"))
		kinds := make([]string, 0, len(r.ByKind))
		for k := range r.ByKind {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Printf("    %-8s %d\n", k, r.ByKind[model.EventKind(k)])
		}
		if len(r.Recent) > 0 {
			fmt.Println("  Recent:")
			for _, e := range r.Recent {
				fmt.Printf("    #%d %s %s\n", e.Sequence, e.Timestamp.Local().Format(time.RFC3339), e.EventKind)
			}
		}
		return nil
	},
}

// formatPayload renders the most useful payload fields on one line.
func formatPayload(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := ""
	for _, k := range keys {
		v := fmt.Sprint(payload[k])
		if len(v) > 16 && (k == "merkle_root" || k == "previous_root" || k == "lock_root" || k == "tree_root" || k == "post_restore_root") {
			v = v[:12]
		}
		if s != "" {
			s += " "
		}
		s += k + "=" + v
	}
	return color.Dim(s)
}

func init() {
	auditLogCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "number of entries to show (0 for all)")
	auditReportCmd.Flags().IntVar(&auditReportDays, "days", 30, "report window in days (0 for all time)")
	auditCmd.AddCommand(auditVerifyCmd, auditLogCmd, auditReportCmd)
	rootCmd.AddCommand(auditCmd)
}
