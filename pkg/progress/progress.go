// Package progress provides progress reporting for snapshot and restore.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

// Callback receives progress updates during long operations.
// bytes is the cumulative payload processed so far.
type Callback func(op string, current, total int, bytes int64, message string)

// Noop is a no-op callback for default behavior.
func Noop(op string, current, total int, bytes int64, message string) {}

// Progress tracks operation progress.
type Progress struct {
	Op      string
	Total   int
	current int
	bytes   int64
	cb      Callback
}

// New creates a new Progress tracker.
func New(op string, total int, cb Callback) *Progress {
	if cb == nil {
		cb = Noop
	}
	return &Progress{Op: op, Total: total, cb: cb}
}

// Increment advances by one item of n bytes and calls the callback.
func (p *Progress) Increment(n int64, message string) {
	p.current++
	p.bytes += n
	p.cb(p.Op, p.current, p.Total, p.bytes, message)
}

// Done marks the operation as complete.
func (p *Progress) Done(message string) {
	p.current = p.Total
	p.cb(p.Op, p.current, p.Total, p.bytes, message)
}

// Current returns the current progress value.
func (p *Progress) Current() int { return p.current }

// Bytes returns the cumulative byte count.
func (p *Progress) Bytes() int64 { return p.bytes }

// Terminal renders a single-line progress bar.
type Terminal struct {
	mu          sync.Mutex
	writer      io.Writer
	enabled     bool
	lastLineLen int
}

// NewTerminal creates a progress bar on stderr, enabled only when stderr
// is a terminal.
func NewTerminal() *Terminal {
	return NewTerminalTo(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())))
}

// NewTerminalTo creates a progress bar writing to w.
func NewTerminalTo(w io.Writer, enabled bool) *Terminal {
	return &Terminal{writer: w, enabled: enabled}
}

// Callback returns a Callback function for this terminal.
func (t *Terminal) Callback() Callback {
	return func(op string, current, total int, bytes int64, message string) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if !t.enabled {
			return
		}
		t.render(op, current, total, bytes, message)
	}
}

func (t *Terminal) render(op string, current, total int, bytes int64, message string) {
	if total <= 0 {
		total = 1
	}
	if current > total {
		current = total
	}
	percentage := float64(current) / float64(total) * 100

	const barWidth = 30
	filled := barWidth * current / total
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)

	clear := "\r"
	if t.lastLineLen > 0 {
		clear = "\r" + strings.Repeat(" ", t.lastLineLen) + "\r"
	}

	line := fmt.Sprintf("%s [%s] %d/%d (%.0f%%) %s", op, bar, current, total, percentage, humanize.Bytes(uint64(bytes)))
	if message != "" {
		line += " " + message
	}
	fmt.Fprint(t.writer, clear+line)
	t.lastLineLen = len(line)
}

// Finish terminates the progress line.
func (t *Terminal) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enabled && t.lastLineLen > 0 {
		fmt.Fprintln(t.writer)
		t.lastLineLen = 0
	}
}

// IsEnabled returns whether the progress bar is enabled.
func (t *Terminal) IsEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}
