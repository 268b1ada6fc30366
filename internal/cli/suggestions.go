package cli

import (
	"fmt"
	"strings"

	"github.com/docseal/docseal/internal/repo"
	"github.com/docseal/docseal/internal/snapshot"
	"github.com/docseal/docseal/pkg/color"
	"github.com/docseal/docseal/pkg/errclass"
)

// suggestSnapshots provides helpful suggestions when a snapshot is not found.
func suggestSnapshots(p *repo.Project, query string) string {
	matches, err := snapshot.NewCatalog(p).FindMultiple(query, 3)
	if err == nil && len(matches) > 0 {
		var suggestions []string
		for _, m := range matches {
			suggestion := color.SnapshotID(string(m.Manifest.ID))
			if m.Manifest.Note != "" {
				suggestion += fmt.Sprintf(" (%s)", color.Dim(m.Manifest.Note))
			}
			suggestions = append(suggestions, suggestion)
		}

		hint := "Did you mean"
		if len(suggestions) > 1 {
			hint += " one of"
		}
		return fmt.Sprintf("%s: %s?", hint, strings.Join(suggestions, ", "))
	}
	return fmt.Sprintf("Run %s to see available snapshots.", color.Code("docseal snapshot list"))
}

// snapshotNotFoundError decorates a resolve failure with suggestions.
func snapshotNotFoundError(p *repo.Project, query string, err error) error {
	if jsonOutput {
		return err
	}
	return errclass.ErrNotFound.WithMessagef("%v\n  %s", err, suggestSnapshots(p, query))
}

func notInProjectError(err error) error {
	if jsonOutput {
		return err
	}
	return errclass.ErrNotFound.WithMessagef("not a docseal project (or any parent)\n  %s",
		fmt.Sprintf("Run %s to create one.", color.Code("docseal init")))
}
