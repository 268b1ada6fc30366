package diff

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docseal/docseal/pkg/model"
)

var mtime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func file(path, digest string, size int64) model.FileRecord {
	return model.FileRecord{Path: path, Digest: model.Digest(strings.Repeat(digest, 64)), Size: size, ModTime: mtime}
}

func TestCompare_NoChanges(t *testing.T) {
	records := []model.FileRecord{file("a.md", "1", 1), file("b.md", "2", 2)}
	result := Compare(records, records)
	assert.True(t, result.Empty())
	assert.Contains(t, result.FormatHuman(), "No changes.")
}

func TestCompare_AddedRemovedModified(t *testing.T) {
	approved := []model.FileRecord{file("keep.md", "1", 1), file("gone.md", "2", 2), file("edit.md", "3", 3)}
	current := []model.FileRecord{file("keep.md", "1", 1), file("edit.md", "4", 30), file("new.md", "5", 5), file("another.md", "6", 6)}

	result := Compare(approved, current)
	require.Equal(t, 2, result.TotalAdded)
	assert.Equal(t, "another.md", result.Added[0].Path)
	assert.Equal(t, "new.md", result.Added[1].Path)

	require.Equal(t, 1, result.TotalRemoved)
	assert.Equal(t, "gone.md", result.Removed[0].Path)

	require.Equal(t, 1, result.TotalModified)
	c := result.Modified[0]
	assert.Equal(t, "edit.md", c.Path)
	assert.Equal(t, int64(3), c.OldSize)
	assert.Equal(t, int64(30), c.Size)
	assert.NotEqual(t, c.OldDigest, c.NewDigest)

	out := result.FormatHuman()
	assert.Contains(t, out, "+ new.md")
	assert.Contains(t, out, "- gone.md")
	assert.Contains(t, out, "~ edit.md (3 B -> 30 B)")
}

func TestCompare_FastScanReportsStale(t *testing.T) {
	approved := []model.FileRecord{file("a.md", "1", 10), file("b.md", "2", 10), file("c.md", "3", 10)}
	current := []model.FileRecord{
		{Path: "a.md", Size: 10, ModTime: mtime},
		{Path: "b.md", Size: 10, ModTime: mtime.Add(time.Second)},
		{Path: "c.md", Size: 11, ModTime: mtime},
	}

	result := Compare(approved, current)
	assert.Equal(t, 0, result.TotalModified)
	require.Equal(t, 2, result.TotalStale)
	assert.Equal(t, "b.md", result.Stale[0].Path)
	assert.Equal(t, "c.md", result.Stale[1].Path)
	assert.Contains(t, result.FormatHuman(), "? b.md")
}

func TestCompare_EmptyApproved(t *testing.T) {
	result := Compare(nil, []model.FileRecord{file("a.md", "1", 1)})
	assert.Equal(t, 1, result.TotalAdded)
	assert.False(t, result.Empty())
}
