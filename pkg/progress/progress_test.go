package progress_test

import (
	"bytes"
	"testing"

	"github.com/docseal/docseal/pkg/progress"
	"github.com/stretchr/testify/assert"
)

type call struct {
	op             string
	current, total int
	bytes          int64
	msg            string
}

func TestProgress_Increment(t *testing.T) {
	var calls []call
	p := progress.New("snapshot", 3, func(op string, current, total int, bytes int64, msg string) {
		calls = append(calls, call{op, current, total, bytes, msg})
	})

	p.Increment(10, "docs/a.md")
	p.Increment(5, "docs/b.md")
	p.Done("done")

	assert.Equal(t, []call{
		{"snapshot", 1, 3, 10, "docs/a.md"},
		{"snapshot", 2, 3, 15, "docs/b.md"},
		{"snapshot", 3, 3, 15, "done"},
	}, calls)
	assert.Equal(t, 3, p.Current())
	assert.Equal(t, int64(15), p.Bytes())
}

func TestProgress_NilCallback(t *testing.T) {
	p := progress.New("restore", 1, nil)
	assert.NotPanics(t, func() { p.Increment(1, "") })
}

func TestTerminal_Render(t *testing.T) {
	var buf bytes.Buffer
	term := progress.NewTerminalTo(&buf, true)

	term.Callback()("snapshot", 50, 100, 2048, "halfway")

	out := buf.String()
	assert.Contains(t, out, "snapshot")
	assert.Contains(t, out, "50/100")
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "2.0 kB")
	assert.Contains(t, out, "halfway")

	term.Finish()
	assert.Equal(t, byte('\n'), buf.Bytes()[buf.Len()-1])
}

func TestTerminal_Disabled(t *testing.T) {
	var buf bytes.Buffer
	term := progress.NewTerminalTo(&buf, false)

	term.Callback()("restore", 1, 2, 0, "")
	term.Finish()

	assert.Zero(t, buf.Len())
	assert.False(t, term.IsEnabled())
}

func TestTerminal_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	term := progress.NewTerminalTo(&buf, true)
	term.Callback()("snapshot", 0, 0, 0, "")
	assert.Contains(t, buf.String(), "0/1")
}
