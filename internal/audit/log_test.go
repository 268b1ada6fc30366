package audit_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docseal/docseal/internal/audit"
	"github.com/docseal/docseal/pkg/clock"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/logging"
	"github.com/docseal/docseal/pkg/model"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openLog(t *testing.T, dir string) *audit.Log {
	t.Helper()
	clk := clock.Fake(epoch)
	clk.AutoAdvance(time.Second)
	l, err := audit.Open(dir, clk, logging.Discard())
	require.NoError(t, err)
	return l
}

func appendN(t *testing.T, l *audit.Log, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := l.Append(model.EventLock, map[string]any{"merkle_root": strings.Repeat("a", 64), "file_count": i})
		require.NoError(t, err)
	}
}

func readLines(t *testing.T, path string) [][]byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return bytes.SplitAfter(bytes.TrimSuffix(data, []byte("\n")), []byte("\n"))
}

func writeLines(t *testing.T, path string, lines [][]byte) {
	t.Helper()
	out := bytes.Join(lines, nil)
	if !bytes.HasSuffix(out, []byte("\n")) {
		out = append(out, '\n')
	}
	require.NoError(t, os.WriteFile(path, out, 0644))
}

func requireBreakAt(t *testing.T, err error, seq int64) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errclass.ErrIntegrityBreak))
	var be *errclass.BreakError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, seq, be.Sequence, be.Reason)
}

func TestOpen_EmptyLog(t *testing.T) {
	l := openLog(t, t.TempDir())
	assert.Equal(t, 0, l.Len())
	assert.Nil(t, l.Head())
	_, ok := l.Last()
	assert.False(t, ok)
	assert.NoError(t, l.Verify())
}

func TestAppend_ChainsFromGenesis(t *testing.T) {
	dir := t.TempDir()
	l := openLog(t, dir)

	first, err := l.Append(model.EventLock, map[string]any{"merkle_root": "r1"})
	require.NoError(t, err)
	second, err := l.Append(model.EventHeal, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Sequence)
	assert.Equal(t, model.ZeroDigest, first.PrevEntryDigest)
	assert.Equal(t, int64(2), second.Sequence)
	assert.Equal(t, first.EntryDigest, second.PrevEntryDigest)
	assert.NotEqual(t, first.EntryDigest, second.EntryDigest)

	head := l.Head()
	require.NotNil(t, head)
	assert.Equal(t, int64(2), head.Sequence)
	assert.Equal(t, second.EntryDigest, head.EntryDigest)

	lines := readLines(t, l.Path())
	require.Len(t, lines, 2)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &raw))
	for _, key := range []string{"sequence", "timestamp", "event_kind", "payload_digest", "prev_entry_digest", "entry_digest", "payload"} {
		assert.Contains(t, raw, key)
	}
}

func TestOpen_ReloadsAndVerifies(t *testing.T) {
	dir := t.TempDir()
	l := openLog(t, dir)
	_, err := l.Append(model.EventSnapshot, map[string]any{
		"snapshot_id": "1700000000000-abcdef01",
		"file_count":  3,
		"total_size":  int64(1 << 40),
		"ratio":       0.25,
		"tags":        []string{"release"},
	})
	require.NoError(t, err)

	reopened := openLog(t, dir)
	require.Equal(t, 1, reopened.Len())
	e, ok := reopened.Entry(1)
	require.True(t, ok)
	assert.Equal(t, int64(3), e.Payload["file_count"])
	assert.Equal(t, 0.25, e.Payload["ratio"])
	assert.Equal(t, []any{"release"}, e.Payload["tags"])

	_, err = reopened.Append(model.EventRestore, map[string]any{"restored_files": 3})
	require.NoError(t, err)
	assert.NoError(t, openLog(t, dir).Verify())
}

func TestVerify_DetectsPayloadEdit(t *testing.T) {
	dir := t.TempDir()
	l := openLog(t, dir)
	appendN(t, l, 5)

	lines := readLines(t, l.Path())
	lines[2] = bytes.Replace(lines[2], []byte(`"file_count":2`), []byte(`"file_count":7`), 1)
	writeLines(t, l.Path(), lines)

	requireBreakAt(t, l.Verify(), 3)
	_, err := audit.Open(dir, clock.Real(), logging.Discard())
	requireBreakAt(t, err, 3)
}

func TestVerify_DetectsEventKindEdit(t *testing.T) {
	dir := t.TempDir()
	l := openLog(t, dir)
	appendN(t, l, 3)

	lines := readLines(t, l.Path())
	lines[1] = bytes.Replace(lines[1], []byte(`"event_kind":"lock"`), []byte(`"event_kind":"heal"`), 1)
	writeLines(t, l.Path(), lines)

	requireBreakAt(t, l.Verify(), 2)
}

func rewriteField(t *testing.T, line []byte, key string, value any) []byte {
	t.Helper()
	var raw map[string]any
	require.NoError(t, json.Unmarshal(line, &raw))
	raw[key] = value
	out, err := json.Marshal(raw)
	require.NoError(t, err)
	return append(out, '\n')
}

func TestVerify_DetectsMiddleEntryTampering(t *testing.T) {
	tests := []struct {
		name   string
		seq    int64
		tamper func(t *testing.T, lines [][]byte, i int)
	}{
		{
			name: "timestamp",
			seq:  3,
			tamper: func(t *testing.T, lines [][]byte, i int) {
				lines[i] = rewriteField(t, lines[i], "timestamp", "2030-01-01T00:00:00Z")
			},
		},
		{
			name: "prev_entry_digest",
			seq:  2,
			tamper: func(t *testing.T, lines [][]byte, i int) {
				var first map[string]any
				require.NoError(t, json.Unmarshal(lines[0], &first))
				lines[i] = rewriteField(t, lines[i], "prev_entry_digest", first["payload_digest"])
			},
		},
		{
			name: "swapped with next",
			seq:  4,
			tamper: func(_ *testing.T, lines [][]byte, i int) {
				lines[i], lines[i+1] = lines[i+1], lines[i]
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			l := openLog(t, dir)
			appendN(t, l, 5)

			lines := readLines(t, l.Path())
			tt.tamper(t, lines, int(tt.seq-1))
			writeLines(t, l.Path(), lines)

			requireBreakAt(t, l.Verify(), tt.seq)
			_, err := audit.Open(dir, clock.Real(), logging.Discard())
			requireBreakAt(t, err, tt.seq)
		})
	}
}

func TestVerify_DetectsDeletedMiddleEntry(t *testing.T) {
	dir := t.TempDir()
	l := openLog(t, dir)
	appendN(t, l, 4)

	lines := readLines(t, l.Path())
	writeLines(t, l.Path(), append(lines[:1:1], lines[2:]...))

	requireBreakAt(t, l.Verify(), 2)
}

func TestVerify_DetectsTailDeletion(t *testing.T) {
	dir := t.TempDir()
	l := openLog(t, dir)
	appendN(t, l, 4)

	lines := readLines(t, l.Path())
	writeLines(t, l.Path(), lines[:2])

	requireBreakAt(t, l.Verify(), 3)
}

func TestVerify_DetectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	l := openLog(t, dir)
	appendN(t, l, 2)

	lines := readLines(t, l.Path())
	lines[0] = []byte("{not json\n")
	writeLines(t, l.Path(), lines)

	requireBreakAt(t, l.Verify(), 1)
}

func TestTornTail_IgnoredThenTruncated(t *testing.T) {
	dir := t.TempDir()
	l := openLog(t, dir)
	appendN(t, l, 2)

	f, err := os.OpenFile(l.Path(), os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"sequence":3,"timestamp":"2026-03-01T09`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened := openLog(t, dir)
	assert.Equal(t, 2, reopened.Len())

	e, err := reopened.Append(model.EventHeal, map[string]any{"repaired": []string{"README.md"}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), e.Sequence)

	lines := readLines(t, reopened.Path())
	assert.Len(t, lines, 3)
	assert.NoError(t, openLog(t, dir).Verify())
}

func TestHeadMismatch(t *testing.T) {
	dir := t.TempDir()
	l := openLog(t, dir)
	appendN(t, l, 2)

	head := model.AuditHead{Sequence: 2, EntryDigest: model.Digest(strings.Repeat("f", 64))}
	data, err := json.Marshal(head)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "head.json"), data, 0644))

	requireBreakAt(t, l.Verify(), 2)
}

func TestEntries_Limit(t *testing.T) {
	l := openLog(t, t.TempDir())
	appendN(t, l, 5)

	all := l.Entries(0)
	require.Len(t, all, 5)
	last := l.Entries(2)
	require.Len(t, last, 2)
	assert.Equal(t, int64(4), last[0].Sequence)
	assert.Equal(t, int64(5), last[1].Sequence)

	_, ok := l.Entry(6)
	assert.False(t, ok)
}

func TestPayloadDigest_EmptyEqualsNil(t *testing.T) {
	a, err := audit.PayloadDigest(nil)
	require.NoError(t, err)
	b, err := audit.PayloadDigest(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := audit.PayloadDigest(map[string]any{"b": 1, "a": 2})
	require.NoError(t, err)
	d, err := audit.PayloadDigest(map[string]any{"a": 2, "b": 1})
	require.NoError(t, err)
	assert.Equal(t, c, d)
	assert.NotEqual(t, a, c)
}
