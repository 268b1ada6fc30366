// Package repo locates and initializes docseal projects and carries the
// explicit per-operation context (root, configuration, clock, logger).
package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/docseal/docseal/pkg/clock"
	"github.com/docseal/docseal/pkg/config"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/fsutil"
	"github.com/docseal/docseal/pkg/logging"
	"github.com/docseal/docseal/pkg/model"
)

const (
	FormatVersionFile = "format_version"
	ProjectIDFile     = "project_id"
)

// Project is an initialized docseal project. It is passed explicitly to
// every component; nothing is kept in package-level state.
type Project struct {
	Root          string
	FormatVersion int
	ProjectID     string
	Config        *config.Config
	Clock         clock.Clock
	Logger        *logging.Logger
}

// Option customizes a Project when it is opened.
type Option func(*Project)

// WithClock overrides the real clock.
func WithClock(c clock.Clock) Option {
	return func(p *Project) { p.Clock = c }
}

// WithLogger overrides the global logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Project) { p.Logger = l }
}

// Init creates a new docseal project at path. The tracked tree is left
// alone; only the state directory and a default config are created.
func Init(path string, opts ...Option) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve project path: %w", err)
	}
	stateDir := filepath.Join(abs, config.StateDir)
	if fsutil.Exists(filepath.Join(stateDir, FormatVersionFile)) {
		return nil, errclass.ErrStateInvalid.WithMessagef("project already initialized at %s", abs)
	}

	dirs := []string{
		stateDir,
		filepath.Join(stateDir, "manifests"),
		filepath.Join(stateDir, "audit"),
		filepath.Join(stateDir, "snapshots"),
		filepath.Join(stateDir, "intents"),
		filepath.Join(stateDir, "signatures"),
		filepath.Join(stateDir, "tmp"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errclass.ErrIOFailure.WithMessagef("create directory %s: %v", dir, err)
		}
	}

	if !fsutil.Exists(config.Path(abs)) {
		if err := config.Save(abs, config.Default()); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	projectID := uuid.NewString()
	if err := fsutil.AtomicWrite(filepath.Join(stateDir, ProjectIDFile), []byte(projectID+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("write project_id: %w", err)
	}
	// format_version last: its presence marks a complete init.
	version := []byte(fmt.Sprintf("%d\n", model.FormatVersion))
	if err := fsutil.AtomicWrite(filepath.Join(stateDir, FormatVersionFile), version, 0644); err != nil {
		return nil, fmt.Errorf("write format_version: %w", err)
	}
	if err := fsutil.FsyncDir(abs); err != nil {
		return nil, fmt.Errorf("fsync project root: %w", err)
	}

	return Open(abs, opts...)
}

// Discover walks up from cwd to find the project root (directory
// containing .docseal/) and opens it.
func Discover(cwd string, opts ...Option) (*Project, error) {
	path, err := filepath.Abs(cwd)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", cwd, err)
	}
	for {
		if info, err := os.Stat(filepath.Join(path, config.StateDir)); err == nil && info.IsDir() {
			return Open(path, opts...)
		}
		parent := filepath.Dir(path)
		if parent == path {
			return nil, errclass.ErrNotFound.WithMessagef("no docseal project found (no %s/ in %s or its parents)", config.StateDir, cwd)
		}
		path = parent
	}
}

// Open opens the project rooted exactly at root and loads its config.
func Open(root string, opts ...Option) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	stateDir := filepath.Join(abs, config.StateDir)

	version, err := readFormatVersion(stateDir)
	if err != nil {
		return nil, err
	}
	if version > model.FormatVersion {
		return nil, errclass.ErrFormatUnsupported.WithMessagef(
			"format version %d > supported %d", version, model.FormatVersion)
	}

	cfg, err := config.Load(abs)
	if err != nil {
		return nil, err
	}

	p := &Project{
		Root:          abs,
		FormatVersion: version,
		ProjectID:     readProjectID(stateDir),
		Config:        cfg,
		Clock:         clock.Real(),
		Logger:        logging.Global(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name is the project directory name, used in generated documents.
func (p *Project) Name() string { return filepath.Base(p.Root) }

// StateDir returns the absolute .docseal directory.
func (p *Project) StateDir() string { return filepath.Join(p.Root, config.StateDir) }

// LockRecordPath is where the current lock record lives.
func (p *Project) LockRecordPath() string { return filepath.Join(p.StateDir(), "lock.json") }

// ManifestsDir holds approved manifests keyed by Merkle root.
func (p *Project) ManifestsDir() string { return filepath.Join(p.StateDir(), "manifests") }

// AuditDir holds the audit log and its head anchor.
func (p *Project) AuditDir() string { return filepath.Join(p.StateDir(), "audit") }

// SnapshotsDir holds one directory per snapshot.
func (p *Project) SnapshotsDir() string { return filepath.Join(p.StateDir(), "snapshots") }

// IntentsDir holds in-flight snapshot intents.
func (p *Project) IntentsDir() string { return filepath.Join(p.StateDir(), "intents") }

// SignaturesDir holds detached signatures produced by the signer.
func (p *Project) SignaturesDir() string { return filepath.Join(p.StateDir(), "signatures") }

// SignatureMarkerPath records the last signed root.
func (p *Project) SignatureMarkerPath() string { return filepath.Join(p.StateDir(), "signature.json") }

// TmpDir is the staging area; it lives on the project filesystem so
// staged files can be renamed into place.
func (p *Project) TmpDir() string { return filepath.Join(p.StateDir(), "tmp") }

// OpLockPath is the advisory lock file guarding mutating operations.
func (p *Project) OpLockPath() string { return filepath.Join(p.StateDir(), "op.lock") }

// Abs returns the absolute location of a project-relative slash path.
func (p *Project) Abs(rel string) string { return filepath.Join(p.Root, filepath.FromSlash(rel)) }

func readFormatVersion(stateDir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, FormatVersionFile))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, errclass.ErrNotFound.WithMessagef("%s is not an initialized project", filepath.Dir(stateDir))
	}
	if err != nil {
		return 0, errclass.ErrIOFailure.WithMessagef("read format_version: %v", err)
	}
	var version int
	if _, err := fmt.Sscanf(string(data), "%d", &version); err != nil {
		return 0, errclass.ErrConfigMalformed.WithMessagef("parse format_version: %v", err)
	}
	return version, nil
}

func readProjectID(stateDir string) string {
	data, err := os.ReadFile(filepath.Join(stateDir, ProjectIDFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
