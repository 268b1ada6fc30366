package ops

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/docseal/docseal/internal/audit"
	"github.com/docseal/docseal/internal/diff"
	"github.com/docseal/docseal/internal/gc"
	"github.com/docseal/docseal/internal/generate"
	"github.com/docseal/docseal/internal/heal"
	"github.com/docseal/docseal/internal/integrity"
	"github.com/docseal/docseal/internal/lock"
	"github.com/docseal/docseal/internal/lockstore"
	"github.com/docseal/docseal/internal/repo"
	"github.com/docseal/docseal/internal/restore"
	"github.com/docseal/docseal/internal/sign"
	"github.com/docseal/docseal/internal/snapshot"
	"github.com/docseal/docseal/internal/verify"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/logging"
	"github.com/docseal/docseal/pkg/model"
	"github.com/docseal/docseal/pkg/progress"
)

// AuditStatus is the result of a successful AuditVerify.
type AuditStatus struct {
	Entries int               `json:"entries"`
	Head    *model.AuditHead  `json:"head,omitempty"`
	Last    *model.AuditEntry `json:"last,omitempty"`
}

// PruneResult is the result of Prune.
type PruneResult struct {
	Plan    *model.PrunePlan              `json:"plan"`
	Reasons map[model.SnapshotID][]string `json:"reasons,omitempty"`
	Deleted []model.SnapshotID            `json:"deleted"`
	DryRun  bool                          `json:"dry_run"`
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithSigner overrides the configured signer.
func WithSigner(s sign.Signer) Option {
	return func(d *Dispatcher) { d.signer = s }
}

// WithGenerator overrides the configured document generator.
func WithGenerator(g generate.Generator) Option {
	return func(d *Dispatcher) { d.generator = g }
}

// WithProgress reports snapshot and restore progress to cb.
func WithProgress(cb progress.Callback) Option {
	return func(d *Dispatcher) { d.progress = cb }
}

// Dispatcher runs commands against one project.
type Dispatcher struct {
	project   *repo.Project
	locks     *lock.Manager
	signer    sign.Signer
	generator generate.Generator
	progress  progress.Callback
	log       *logging.Logger
}

// New creates a dispatcher for p.
func New(p *repo.Project, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		project: p,
		locks:   lock.NewManager(p),
		log:     p.Logger.WithFields(map[string]any{"component": "ops"}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Project returns the dispatcher's project.
func (d *Dispatcher) Project() *repo.Project { return d.project }

// Dispatch runs cmd. The concrete result type depends on the command:
//
//	Validate        []model.Discrepancy
//	Heal            *heal.Report
//	Lock            *model.LockRecord
//	Snapshot        *model.SnapshotManifest
//	Restore         *restore.Result
//	AuditVerify     *AuditStatus
//	Sign            *model.SignatureMarker
//	Status          *StatusReport
//	Prune           *PruneResult
//	AuditLog        []model.AuditEntry
//	AuditReport     *audit.Report
//	Diff            *diff.Result
//	ListSnapshots   []*model.SnapshotManifest
//	IntegrityReport *verify.IntegrityReport
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (any, error) {
	d.log.Debug("dispatch", map[string]any{"command": cmd.Name(), "mutating": cmd.Mutating()})
	switch c := cmd.(type) {
	case Validate:
		return verify.New(d.project).Validate(ctx, c.Fast)
	case Heal:
		return d.heal(ctx)
	case Lock:
		return d.lock(ctx, c)
	case Snapshot:
		return d.snapshot(ctx, c)
	case Restore:
		return d.restore(ctx, c)
	case AuditVerify:
		return d.auditVerify()
	case Sign:
		return d.sign(ctx)
	case Status:
		return d.status(ctx, c)
	case Prune:
		return d.prune(ctx, c)
	case AuditLog:
		log, err := d.openAudit()
		if err != nil {
			return nil, err
		}
		return log.Entries(c.Limit), nil
	case AuditReport:
		log, err := d.openAudit()
		if err != nil {
			return nil, err
		}
		return log.Report(c.Since), nil
	case Diff:
		return d.diff(ctx)
	case ListSnapshots:
		return snapshot.NewCatalog(d.project).Find(snapshot.FilterOptions{HasTag: c.Tag})
	case IntegrityReport:
		return verify.New(d.project).Report(ctx)
	default:
		return nil, fmt.Errorf("unknown command %T", cmd)
	}
}

func (d *Dispatcher) openAudit() (*audit.Log, error) {
	return audit.Open(d.project.AuditDir(), d.project.Clock, d.project.Logger)
}

// mutate holds the project lock and an intact audit chain while fn runs.
// A broken chain aborts before anything is written.
func (d *Dispatcher) mutate(ctx context.Context, purpose string, fn func(log *audit.Log) error) error {
	h, err := d.locks.Acquire(ctx, purpose)
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Release(); err != nil {
			d.log.ErrorErr("release project lock", err)
		}
	}()

	log, err := d.openAudit()
	if err != nil {
		var brk *errclass.BreakError
		if errors.As(err, &brk) {
			d.log.Error("audit chain broken; refusing to write", map[string]any{"sequence": brk.Sequence, "reason": brk.Reason})
		}
		return err
	}
	return fn(log)
}

func (d *Dispatcher) heal(ctx context.Context) (*heal.Report, error) {
	var report *heal.Report
	err := d.mutate(ctx, "heal", func(log *audit.Log) error {
		h := heal.New(d.project, log)
		if d.generator != nil {
			h = heal.NewWithGenerator(d.project, log, d.generator)
		}
		var err error
		report, err = h.Heal(ctx)
		return err
	})
	return report, err
}

func (d *Dispatcher) lock(ctx context.Context, c Lock) (*model.LockRecord, error) {
	var rec *model.LockRecord
	err := d.mutate(ctx, "lock", func(log *audit.Log) error {
		store := lockstore.New(d.project)
		previous, err := store.Current()
		switch {
		case err == nil && !c.Update:
			return errclass.ErrStateInvalid.WithMessagef("project is already locked at %s; use update to re-approve", previous.MerkleRoot)
		case errors.Is(err, errclass.ErrNotFound):
			previous = nil
		case err != nil && !c.Update:
			return err
		case err != nil:
			// A malformed record is replaced by an explicit update.
			d.log.Warn("replacing unreadable lock record", map[string]any{"error": err.Error()})
			previous = nil
		}

		if problems := verify.New(d.project).CheckRequired(); len(problems) > 0 {
			paths := make([]string, len(problems))
			for i, m := range problems {
				paths[i] = m.Path + " (" + strings.TrimPrefix(string(m.Kind), "required_") + ")"
			}
			return errclass.ErrRequiredMissing.WithMessagef("required files missing or empty: %s; run heal first", strings.Join(paths, ", "))
		}

		records, err := integrity.NewScanner(d.project.Root, d.project.Config).Scan(ctx)
		if err != nil {
			return err
		}
		rec, err = store.Update(records)
		if err != nil {
			return err
		}

		payload := map[string]any{
			"merkle_root": string(rec.MerkleRoot),
			"algorithm":   string(rec.Algorithm),
			"file_count":  rec.FileCount,
			"update":      c.Update,
		}
		if previous != nil {
			payload["previous_root"] = string(previous.MerkleRoot)
		}
		if _, err := log.Append(model.EventLock, payload); err != nil {
			// lock.json already names the new root; doctor reports the
			// record as unaudited until the next lock is recorded.
			d.log.ErrorErr("CRITICAL: lock record written but not audited", err, map[string]any{
				"merkle_root": string(rec.MerkleRoot),
				"lock_record": d.project.LockRecordPath(),
			})
			return fmt.Errorf("lock %s written without an audit entry: %w", rec.MerkleRoot, err)
		}
		return nil
	})
	return rec, err
}

func (d *Dispatcher) snapshot(ctx context.Context, c Snapshot) (*model.SnapshotManifest, error) {
	var m *model.SnapshotManifest
	err := d.mutate(ctx, "snapshot", func(log *audit.Log) error {
		creator, err := snapshot.NewCreator(d.project, log)
		if err != nil {
			return err
		}
		creator.SetProgress(d.progress)
		m, err = creator.Create(ctx, c.Note, c.Tags)
		return err
	})
	return m, err
}

func (d *Dispatcher) restore(ctx context.Context, c Restore) (*restore.Result, error) {
	target := c.Target
	if target == "" {
		target = d.project.Root
	}
	var result *restore.Result
	err := d.mutate(ctx, "restore", func(log *audit.Log) error {
		r := restore.NewRestorer(d.project, log)
		r.SetProgress(d.progress)
		var err error
		result, err = r.Restore(ctx, c.SnapshotID, target)
		return err
	})
	return result, err
}

func (d *Dispatcher) auditVerify() (*AuditStatus, error) {
	log, err := d.openAudit()
	if err != nil {
		return nil, err
	}
	status := &AuditStatus{Entries: log.Len(), Head: log.Head()}
	if last, ok := log.Last(); ok {
		status.Last = &last
	}
	return status, nil
}

func (d *Dispatcher) sign(ctx context.Context) (*model.SignatureMarker, error) {
	signer := d.signer
	if signer == nil {
		var err error
		if signer, err = sign.NewSigner(d.project); err != nil {
			return nil, err
		}
	}
	var marker *model.SignatureMarker
	err := d.mutate(ctx, "sign", func(log *audit.Log) error {
		var err error
		marker, err = sign.NewService(d.project, signer, log).Sign(ctx)
		return err
	})
	return marker, err
}

func (d *Dispatcher) prune(ctx context.Context, c Prune) (*PruneResult, error) {
	if c.DryRun {
		collector := gc.NewCollector(d.project, nil)
		plan, err := collector.Plan()
		if err != nil {
			return nil, err
		}
		reasons, err := collector.Reasons()
		if err != nil {
			return nil, err
		}
		return &PruneResult{Plan: plan, Reasons: reasons, DryRun: true}, nil
	}

	result := &PruneResult{}
	err := d.mutate(ctx, "prune", func(log *audit.Log) error {
		collector := gc.NewCollector(d.project, log)
		plan, err := collector.Plan()
		if err != nil {
			return err
		}
		result.Plan = plan
		result.Deleted, err = collector.Run(plan)
		return err
	})
	return result, err
}

func (d *Dispatcher) diff(ctx context.Context) (*diff.Result, error) {
	_, manifest, err := lockstore.New(d.project).Approved()
	if err != nil {
		return nil, err
	}
	current, err := integrity.NewScanner(d.project.Root, d.project.Config).
		WithAlgorithm(manifest.Algorithm).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return diff.Compare(manifest.Files, current), nil
}
