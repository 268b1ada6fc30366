package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/docseal/docseal/internal/ops"
	"github.com/docseal/docseal/internal/repo"
	"github.com/docseal/docseal/pkg/color"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/logging"
	"github.com/docseal/docseal/pkg/progress"
)

// workDir is the directory commands start from: --project or the cwd.
func workDir() (string, error) {
	if projectDir != "" {
		return projectDir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("cannot get current directory: %w", err)
	}
	return cwd, nil
}

// requireProject discovers the project and configures logging from its
// config; --log-level wins over logging.level.
func requireProject() (*repo.Project, error) {
	dir, err := workDir()
	if err != nil {
		return nil, err
	}
	p, err := repo.Discover(dir)
	if err != nil {
		if errors.Is(err, errclass.ErrNotFound) {
			return nil, notInProjectError(err)
		}
		return nil, err
	}
	p.Logger = newLogger(p.Config.Logging.Level, p.Config.Logging.Format)
	return p, nil
}

func newLogger(configured, format string) *logging.Logger {
	level := configured
	if logLevel != "" {
		level = logLevel
	}
	l := logging.New(logging.ParseLevel(level), logging.Format(format), os.Stderr)
	logging.SetGlobal(l)
	return l
}

// dispatcher opens the project and wires terminal progress. The returned
// finish func terminates the progress line.
func dispatcher() (*ops.Dispatcher, func(), error) {
	p, err := requireProject()
	if err != nil {
		return nil, nil, err
	}
	term := progress.NewTerminal()
	if jsonOutput {
		term = progress.NewTerminalTo(os.Stderr, false)
	}
	return ops.New(p, ops.WithProgress(term.Callback())), term.Finish, nil
}

func fmtErr(format string, args ...any) {
	prefix := "docseal: "
	if color.Enabled() {
		prefix = color.Error("docseal:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
