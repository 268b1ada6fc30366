package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/docseal/docseal/internal/ops"
	"github.com/docseal/docseal/pkg/color"
	"github.com/docseal/docseal/pkg/model"
)

var (
	historyLimit      int
	historyNoteFilter string
	historyTagFilter  string
)

var snapshotListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List snapshots, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := requireProject()
		if err != nil {
			return err
		}
		out, err := ops.New(p).Dispatch(context.Background(), ops.ListSnapshots{Tag: historyTagFilter})
		if err != nil {
			return err
		}
		list := out.([]*model.SnapshotManifest)

		if historyNoteFilter != "" {
			filtered := list[:0]
			for _, m := range list {
				if strings.Contains(strings.ToLower(m.Note), strings.ToLower(historyNoteFilter)) {
					filtered = append(filtered, m)
				}
			}
			list = filtered
		}
		if historyLimit > 0 && len(list) > historyLimit {
			list = list[:historyLimit]
		}

		if jsonOutput {
			return outputJSON(list)
		}
		if len(list) == 0 {
			fmt.Println("No snapshots.")
			return nil
		}
		for _, m := range list {
			note := m.Note
			if note == "" {
				note = color.Dim("(no note)")
			}
			tags := ""
			if len(m.Tags) > 0 {
				colored := make([]string, len(m.Tags))
				for i, t := range m.Tags {
					colored[i] = color.Tag(t)
				}
				tags = " [" + strings.Join(colored, ",") + "]"
			}
			fmt.Printf("%s  %s  %s  %s%s\n",
				color.SnapshotID(string(m.ID)),
				m.CreatedAt.Local().Format("2006-01-02 15:04"),
				humanize.Bytes(uint64(m.TotalSize)),
				note, tags)
		}
		return nil
	},
}

func init() {
	snapshotListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "show at most n snapshots")
	snapshotListCmd.Flags().StringVar(&historyNoteFilter, "grep", "", "only snapshots whose note contains this text")
	snapshotListCmd.Flags().StringVar(&historyTagFilter, "tag", "", "only snapshots with this tag")
	snapshotCmd.AddCommand(snapshotListCmd)
}
