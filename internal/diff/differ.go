// Package diff compares an approved manifest with a fresh scan of the
// working tree.
package diff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/docseal/docseal/pkg/model"
)

// ChangeType represents the type of change to a tracked file.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
	// ChangeStale is a fast-mode finding: size or modification time differ
	// from the approved record, content was not read.
	ChangeStale ChangeType = "stale"
)

// Change represents a single file change against the approved state.
type Change struct {
	Path      string       `json:"path"`
	Type      ChangeType   `json:"type"`
	Size      int64        `json:"size,omitempty"`
	OldSize   int64        `json:"old_size,omitempty"`
	OldDigest model.Digest `json:"old_digest,omitempty"`
	NewDigest model.Digest `json:"new_digest,omitempty"`
}

// Result is the outcome of Compare.
type Result struct {
	Added         []*Change `json:"added"`
	Removed       []*Change `json:"removed"`
	Modified      []*Change `json:"modified"`
	Stale         []*Change `json:"stale,omitempty"`
	TotalAdded    int       `json:"total_added"`
	TotalRemoved  int       `json:"total_removed"`
	TotalModified int       `json:"total_modified"`
	TotalStale    int       `json:"total_stale,omitempty"`
}

// Empty reports whether no change was found.
func (r *Result) Empty() bool {
	return r.TotalAdded+r.TotalRemoved+r.TotalModified+r.TotalStale == 0
}

// Compare diffs current against approved. Records in current that carry a
// digest are compared by digest; records without one (a fast scan) are
// compared by size and modification time and reported as stale.
func Compare(approved, current []model.FileRecord) *Result {
	from := make(map[string]model.FileRecord, len(approved))
	for _, r := range approved {
		from[r.Path] = r
	}
	to := make(map[string]model.FileRecord, len(current))
	for _, r := range current {
		to[r.Path] = r
	}

	result := &Result{}
	for path, cur := range to {
		old, exists := from[path]
		switch {
		case !exists:
			result.Added = append(result.Added, &Change{
				Path:      path,
				Type:      ChangeAdded,
				Size:      cur.Size,
				NewDigest: cur.Digest,
			})
		case cur.Digest != "":
			if cur.Digest != old.Digest {
				result.Modified = append(result.Modified, &Change{
					Path:      path,
					Type:      ChangeModified,
					Size:      cur.Size,
					OldSize:   old.Size,
					OldDigest: old.Digest,
					NewDigest: cur.Digest,
				})
			}
		case cur.Size != old.Size || !cur.ModTime.Equal(old.ModTime):
			result.Stale = append(result.Stale, &Change{
				Path:      path,
				Type:      ChangeStale,
				Size:      cur.Size,
				OldSize:   old.Size,
				OldDigest: old.Digest,
			})
		}
	}

	for path, old := range from {
		if _, exists := to[path]; !exists {
			result.Removed = append(result.Removed, &Change{
				Path:      path,
				Type:      ChangeRemoved,
				OldSize:   old.Size,
				OldDigest: old.Digest,
			})
		}
	}

	sortChanges(result.Added)
	sortChanges(result.Removed)
	sortChanges(result.Modified)
	sortChanges(result.Stale)

	result.TotalAdded = len(result.Added)
	result.TotalRemoved = len(result.Removed)
	result.TotalModified = len(result.Modified)
	result.TotalStale = len(result.Stale)
	return result
}

// sortChanges sorts changes by path.
func sortChanges(changes []*Change) {
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path < changes[j].Path
	})
}

// FormatHuman returns a human-readable string representation of the diff.
func (r *Result) FormatHuman() string {
	var sb strings.Builder

	if r.TotalAdded > 0 {
		sb.WriteString(fmt.Sprintf("Added (%d):\n", r.TotalAdded))
		for _, c := range r.Added {
			sb.WriteString(fmt.Sprintf("  + %s\n", c.Path))
		}
		sb.WriteString("\n")
	}

	if r.TotalRemoved > 0 {
		sb.WriteString(fmt.Sprintf("Removed (%d):\n", r.TotalRemoved))
		for _, c := range r.Removed {
			sb.WriteString(fmt.Sprintf("  - %s\n", c.Path))
		}
		sb.WriteString("\n")
	}

	if r.TotalModified > 0 {
		sb.WriteString(fmt.Sprintf("Modified (%d):\n", r.TotalModified))
		for _, c := range r.Modified {
			sb.WriteString(fmt.Sprintf("  ~ %s", c.Path))
			if c.OldSize != c.Size {
				sb.WriteString(fmt.Sprintf(" (%s -> %s)", humanize.Bytes(uint64(c.OldSize)), humanize.Bytes(uint64(c.Size))))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if r.TotalStale > 0 {
		sb.WriteString(fmt.Sprintf("Stale (%d):\n", r.TotalStale))
		for _, c := range r.Stale {
			sb.WriteString(fmt.Sprintf("  ? %s\n", c.Path))
		}
		sb.WriteString("\n")
	}

	if r.Empty() {
		sb.WriteString("No changes.\n")
	}

	return sb.String()
}
