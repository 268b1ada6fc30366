package snapshot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docseal/docseal/pkg/color"
	"github.com/docseal/docseal/pkg/model"
)

// Match types reported by FindMultiple.
const (
	MatchID   = "id"
	MatchTag  = "tag"
	MatchNote = "note"
)

const (
	scoreIDExact    = 1000
	scoreIDPrefix   = 900
	scoreTagExact   = 800
	scoreTagPrefix  = 700
	scoreNoteExact  = 600
	scoreNotePrefix = 500
	scoreNoteSubstr = 100
)

// MatchScore represents how well a snapshot matches a query.
type MatchScore struct {
	Manifest  *model.SnapshotManifest
	Score     int
	MatchType string
}

// FindMultiple ranks snapshots against query, best first; ties keep
// newest-first order. maxResults <= 0 returns every match.
func (c *Catalog) FindMultiple(query string, maxResults int) ([]*MatchScore, error) {
	all, err := c.List()
	if err != nil {
		return nil, err
	}

	var matches []*MatchScore
	queryLower := strings.ToLower(query)
	for _, m := range all {
		score, matchType := scoreMatch(m, query, queryLower)
		if score > 0 {
			matches = append(matches, &MatchScore{Manifest: m, Score: score, MatchType: matchType})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if maxResults > 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches, nil
}

// scoreMatch returns 0 for no match.
func scoreMatch(m *model.SnapshotManifest, query, queryLower string) (int, string) {
	id := string(m.ID)
	if id == query {
		return scoreIDExact, MatchID
	}
	if strings.HasPrefix(id, query) {
		return scoreIDPrefix, MatchID
	}

	best := 0
	for _, tag := range m.Tags {
		if tag == query {
			return scoreTagExact, MatchTag
		}
		if strings.HasPrefix(tag, query) {
			best = scoreTagPrefix
		}
	}
	if best > 0 {
		return best, MatchTag
	}

	noteLower := strings.ToLower(m.Note)
	switch {
	case noteLower == "":
	case noteLower == queryLower:
		return scoreNoteExact, MatchNote
	case strings.HasPrefix(noteLower, queryLower):
		return scoreNotePrefix, MatchNote
	case strings.Contains(noteLower, queryLower):
		return scoreNoteSubstr, MatchNote
	}
	return 0, ""
}

// FormatMatchList formats a list of matches for display.
func FormatMatchList(matches []*MatchScore) string {
	var sb strings.Builder
	sb.WriteString(color.Header("Matching snapshots:\n"))
	sb.WriteString("\n")

	for i, m := range matches {
		prefix := "  "
		if i == 0 {
			prefix = color.Success("> ")
		}

		note := m.Manifest.Note
		if note == "" {
			note = color.Dim("(no note)")
		}

		tags := ""
		if len(m.Manifest.Tags) > 0 {
			tagColors := make([]string, len(m.Manifest.Tags))
			for i, tag := range m.Manifest.Tags {
				tagColors[i] = color.Tag(tag)
			}
			tags = " [" + strings.Join(tagColors, ",") + "]"
		}

		sb.WriteString(fmt.Sprintf("%s%d. %s %s%s\n",
			prefix, i+1, color.SnapshotID(string(m.Manifest.ID)), note, tags))
		sb.WriteString(fmt.Sprintf("   %s by %s\n",
			color.Dim(m.Manifest.CreatedAt.Format("2006-01-02 15:04")),
			color.Info(m.MatchType)))
	}

	return sb.String()
}
