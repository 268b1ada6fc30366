// Package color provides terminal color output support for docseal.
// It respects the NO_COLOR environment variable (https://no-color.org/)
// and turns itself off when stdout is not a terminal.
package color

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/term"
)

var state struct {
	mu      sync.Mutex
	once    sync.Once
	enabled bool
}

// Init initializes the color system based on environment, terminal and flag.
func Init(noColorFlag bool) {
	state.once.Do(func() {
		enabled := term.IsTerminal(int(os.Stdout.Fd()))
		if _, exists := os.LookupEnv("NO_COLOR"); exists {
			enabled = false
		}
		if os.Getenv("TERM") == "dumb" {
			enabled = false
		}
		if noColorFlag {
			enabled = false
		}
		state.mu.Lock()
		state.enabled = enabled
		state.mu.Unlock()
	})
}

// Enabled returns true if color output is enabled.
func Enabled() bool {
	Init(false)
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.enabled
}

// Disable turns off color output.
func Disable() {
	Init(false)
	state.mu.Lock()
	state.enabled = false
	state.mu.Unlock()
}

// Enable turns on color output.
func Enable() {
	Init(false)
	state.mu.Lock()
	state.enabled = true
	state.mu.Unlock()
}

// ANSI codes
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	DimCode = "\033[2m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Cyan    = "\033[36m"
	BgRed   = "\033[41m"
)

func wrap(code, s string) string {
	if !Enabled() {
		return s
	}
	return code + s + Reset
}

// Success formats a success message in green.
func Success(s string) string { return wrap(Green, s) }

// Successf formats a success message with printf-style arguments.
func Successf(format string, args ...any) string { return Success(fmt.Sprintf(format, args...)) }

// Error formats an error message in red.
func Error(s string) string { return wrap(Red, s) }

// Errorf formats an error message with printf-style arguments.
func Errorf(format string, args ...any) string { return Error(fmt.Sprintf(format, args...)) }

// Warning formats a warning message in yellow.
func Warning(s string) string { return wrap(Yellow, s) }

// Warningf formats a warning message with printf-style arguments.
func Warningf(format string, args ...any) string { return Warning(fmt.Sprintf(format, args...)) }

// Info formats an informational message in cyan.
func Info(s string) string { return wrap(Cyan, s) }

// Critical is used for integrity breaks: bold white on red.
func Critical(s string) string { return wrap(Bold+BgRed, s) }

// Header formats a header in bold.
func Header(s string) string { return wrap(Bold, s) }

// Dim formats secondary information.
func Dim(s string) string { return wrap(DimCode, s) }

// SnapshotID formats a snapshot ID in cyan.
func SnapshotID(s string) string { return wrap(Cyan, s) }

// Tag formats a tag name in blue.
func Tag(s string) string { return wrap(Blue, s) }

// Digest shortens a hex digest to 12 characters and dims it.
func Digest(s string) string {
	if len(s) > 12 {
		s = s[:12]
	}
	return Dim(s)
}

// State colors a project state name.
func State(s string) string {
	switch s {
	case "LOCKED", "SIGNED":
		return Success(s)
	case "DRIFTED":
		return Error(s)
	default:
		return Warning(s)
	}
}

// Code formats command strings (bold + dim).
func Code(s string) string { return wrap(Bold+DimCode, s) }
