package docseal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docseal/docseal/internal/audit"
	"github.com/docseal/docseal/internal/diff"
	"github.com/docseal/docseal/internal/doctor"
	"github.com/docseal/docseal/internal/heal"
	"github.com/docseal/docseal/internal/ops"
	"github.com/docseal/docseal/internal/repo"
	"github.com/docseal/docseal/internal/restore"
	"github.com/docseal/docseal/internal/verify"
	"github.com/docseal/docseal/pkg/config"
	"github.com/docseal/docseal/pkg/model"
)

// Re-exported result types.
type (
	HealReport    = heal.Report
	RestoreResult = restore.Result
	StatusReport  = ops.StatusReport
	AuditStatus   = ops.AuditStatus
	AuditReport   = audit.Report
	PruneResult   = ops.PruneResult
	DiffResult    = diff.Result
	DoctorResult  = doctor.Result
	State         = ops.State

	IntegrityReport = verify.IntegrityReport
)

// Client provides high-level docseal operations on one project.
type Client struct {
	project    *repo.Project
	dispatcher *ops.Dispatcher
	opts       []ops.Option
}

// SnapshotOptions configures snapshot creation.
type SnapshotOptions struct {
	Note string   // Human-readable description
	Tags []string // Organization tags; default_tags from config are added
}

// RestoreOptions configures snapshot restore.
type RestoreOptions struct {
	Target string // Directory to restore into; defaults to the project root
}

// Init initializes a new docseal project at path.
func Init(path string, opts ...repo.Option) (*Client, error) {
	p, err := repo.Init(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("docseal init: %w", err)
	}
	return newClient(p), nil
}

// Open opens an existing docseal project at or above path.
func Open(path string, opts ...repo.Option) (*Client, error) {
	p, err := repo.Discover(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("docseal open: %w", err)
	}
	return newClient(p), nil
}

// OpenOrInit opens the project at path, or initializes one if none exists.
func OpenOrInit(path string, opts ...repo.Option) (*Client, error) {
	stateDir := filepath.Join(path, config.StateDir)
	if info, err := os.Stat(stateDir); err == nil && info.IsDir() {
		return Open(path, opts...)
	}
	return Init(path, opts...)
}

// Signer produces a detached signature over a lock root. It replaces the
// configured signer.command.
type Signer interface {
	Name() string
	Sign(ctx context.Context, root model.Digest, manifest []byte) ([]byte, error)
}

// Generator creates a missing required file at rel. It replaces the
// configured generator.
type Generator interface {
	Generate(ctx context.Context, rel, templateName string) error
}

func newClient(p *repo.Project) *Client {
	return &Client{project: p, dispatcher: ops.New(p)}
}

// WithSigner makes c sign with s and returns c.
func (c *Client) WithSigner(s Signer) *Client {
	c.opts = append(c.opts, ops.WithSigner(s))
	c.dispatcher = ops.New(c.project, c.opts...)
	return c
}

// WithGenerator makes c heal with g and returns c.
func (c *Client) WithGenerator(g Generator) *Client {
	c.opts = append(c.opts, ops.WithGenerator(g))
	c.dispatcher = ops.New(c.project, c.opts...)
	return c
}

// Validate returns every discrepancy between the tree and the lock.
func (c *Client) Validate(ctx context.Context, fast bool) ([]model.Discrepancy, error) {
	return dispatch[[]model.Discrepancy](ctx, c, ops.Validate{Fast: fast})
}

// Heal regenerates missing required files and reports what is left.
func (c *Client) Heal(ctx context.Context) (*HealReport, error) {
	return dispatch[*heal.Report](ctx, c, ops.Heal{})
}

// Lock approves the current tree. update must be set to replace an
// existing lock.
func (c *Client) Lock(ctx context.Context, update bool) (*model.LockRecord, error) {
	return dispatch[*model.LockRecord](ctx, c, ops.Lock{Update: update})
}

// Snapshot archives the tracked tree.
func (c *Client) Snapshot(ctx context.Context, opts SnapshotOptions) (*model.SnapshotManifest, error) {
	return dispatch[*model.SnapshotManifest](ctx, c, ops.Snapshot{Note: opts.Note, Tags: opts.Tags})
}

// Restore restores the snapshot named by query (id, id prefix, tag or note).
func (c *Client) Restore(ctx context.Context, query string, opts RestoreOptions) (*RestoreResult, error) {
	return dispatch[*restore.Result](ctx, c, ops.Restore{SnapshotID: query, Target: opts.Target})
}

// AuditVerify walks the whole audit chain.
func (c *Client) AuditVerify(ctx context.Context) (*AuditStatus, error) {
	return dispatch[*ops.AuditStatus](ctx, c, ops.AuditVerify{})
}

// AuditLog returns the last limit entries, all when limit <= 0.
func (c *Client) AuditLog(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	return dispatch[[]model.AuditEntry](ctx, c, ops.AuditLog{Limit: limit})
}

// AuditReport summarizes the audit log over the last window.
func (c *Client) AuditReport(ctx context.Context, window time.Duration) (*AuditReport, error) {
	var since time.Time
	if window > 0 {
		since = c.project.Clock.Now().Add(-window)
	}
	return dispatch[*audit.Report](ctx, c, ops.AuditReport{Since: since})
}

// Sign hands the lock root to the configured signer.
func (c *Client) Sign(ctx context.Context) (*model.SignatureMarker, error) {
	return dispatch[*model.SignatureMarker](ctx, c, ops.Sign{})
}

// Status reports where the project is in the approval state machine.
func (c *Client) Status(ctx context.Context, fast bool) (*StatusReport, error) {
	return dispatch[*ops.StatusReport](ctx, c, ops.Status{Fast: fast})
}

// Prune deletes snapshots outside the retention policy.
func (c *Client) Prune(ctx context.Context, dryRun bool) (*PruneResult, error) {
	return dispatch[*ops.PruneResult](ctx, c, ops.Prune{DryRun: dryRun})
}

// Diff lists changes against the approved manifest.
func (c *Client) Diff(ctx context.Context) (*DiffResult, error) {
	return dispatch[*diff.Result](ctx, c, ops.Diff{})
}

// ListSnapshots returns snapshots newest first, optionally with a tag.
func (c *Client) ListSnapshots(ctx context.Context, tag string) ([]*model.SnapshotManifest, error) {
	return dispatch[[]*model.SnapshotManifest](ctx, c, ops.ListSnapshots{Tag: tag})
}

// IntegrityReport hashes every tracked file and compares the root with
// the lock.
func (c *Client) IntegrityReport(ctx context.Context) (*IntegrityReport, error) {
	return dispatch[*verify.IntegrityReport](ctx, c, ops.IntegrityReport{})
}

// Doctor runs the read-only health checks.
func (c *Client) Doctor(ctx context.Context, strict bool) (*DoctorResult, error) {
	return doctor.NewDoctor(c.project).Check(ctx, strict)
}

// Root returns the absolute project root.
func (c *Client) Root() string { return c.project.Root }

// ProjectID returns the unique project identifier.
func (c *Client) ProjectID() string { return c.project.ProjectID }

// Config returns the loaded configuration.
func (c *Client) Config() *config.Config { return c.project.Config }

func dispatch[T any](ctx context.Context, c *Client, cmd ops.Command) (T, error) {
	var zero T
	out, err := c.dispatcher.Dispatch(ctx, cmd)
	if err != nil {
		return zero, err
	}
	v, ok := out.(T)
	if !ok {
		return zero, fmt.Errorf("docseal %s: unexpected result %T", cmd.Name(), out)
	}
	return v, nil
}
