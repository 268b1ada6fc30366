// Package doctor runs read-only health checks over a project's state
// directory. It reports findings and never repairs anything.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docseal/docseal/internal/audit"
	"github.com/docseal/docseal/internal/lock"
	"github.com/docseal/docseal/internal/lockstore"
	"github.com/docseal/docseal/internal/repo"
	"github.com/docseal/docseal/internal/sign"
	"github.com/docseal/docseal/internal/snapshot"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/model"
)

// Severities, most severe first.
const (
	SeverityCritical = "critical"
	SeverityError    = "error"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Findings []Finding `json:"findings"`
}

func (r *Result) add(f Finding) {
	r.Findings = append(r.Findings, f)
	if f.Severity == SeverityCritical || f.Severity == SeverityError {
		r.Healthy = false
	}
}

// Doctor performs project health checks.
type Doctor struct {
	project *repo.Project
}

// NewDoctor creates a new doctor.
func NewDoctor(p *repo.Project) *Doctor {
	return &Doctor{project: p}
}

// Check runs all diagnostic checks. With strict set every snapshot archive
// is decompressed and re-digested.
func (d *Doctor) Check(ctx context.Context, strict bool) (*Result, error) {
	result := &Result{Healthy: true, Findings: []Finding{}}

	d.checkConfig(result)
	d.checkLock(result)
	if log := d.checkAudit(result); log != nil {
		d.checkLockAudited(result, log)
	}
	d.checkSignature(result)
	if err := d.checkSnapshots(ctx, result, strict); err != nil {
		return nil, err
	}
	d.checkOrphanIntents(result)
	d.checkOrphanTmp(result)
	d.checkOpLock(result)
	return result, nil
}

func (d *Doctor) checkConfig(result *Result) {
	if err := d.project.Config.Validate(); err != nil {
		result.add(Finding{
			Category:    "config",
			Description: err.Error(),
			Severity:    SeverityError,
		})
	}
	for _, rf := range d.project.Config.Required {
		info, err := os.Stat(d.project.Abs(rf.Path))
		switch {
		case errors.Is(err, os.ErrNotExist):
			result.add(Finding{
				Category:    "required",
				Description: fmt.Sprintf("required file %s is missing (run heal)", rf.Path),
				Severity:    SeverityWarning,
				Path:        rf.Path,
			})
		case err == nil && info.Mode().IsRegular() && info.Size() == 0:
			result.add(Finding{
				Category:    "required",
				Description: fmt.Sprintf("required file %s is empty", rf.Path),
				Severity:    SeverityWarning,
				Path:        rf.Path,
			})
		}
	}
}

func (d *Doctor) checkLock(result *Result) {
	store := lockstore.New(d.project)
	rec, err := store.Current()
	if errors.Is(err, errclass.ErrNotFound) {
		result.add(Finding{
			Category:    "lock",
			Description: "project has never been locked",
			Severity:    SeverityInfo,
		})
		return
	}
	if err != nil {
		result.add(Finding{
			Category:    "lock",
			Description: err.Error(),
			Severity:    SeverityCritical,
			Path:        d.project.LockRecordPath(),
		})
		return
	}
	if _, err := store.Manifest(rec.MerkleRoot); err != nil {
		result.add(Finding{
			Category:    "lock",
			Description: fmt.Sprintf("approved manifest for %s: %v", rec.MerkleRoot, err),
			Severity:    SeverityCritical,
		})
	}
	if rec.Algorithm != d.project.Config.Algorithm {
		result.add(Finding{
			Category:    "lock",
			Description: fmt.Sprintf("lock uses %s but config selects %s (re-lock to migrate)", rec.Algorithm, d.project.Config.Algorithm),
			Severity:    SeverityWarning,
		})
	}
}

func (d *Doctor) checkAudit(result *Result) *audit.Log {
	log, err := audit.Open(d.project.AuditDir(), d.project.Clock, d.project.Logger)
	if err != nil {
		var brk *errclass.BreakError
		if errors.As(err, &brk) {
			result.add(Finding{
				Category:    "audit",
				Description: fmt.Sprintf("audit chain broken at entry %d: %s", brk.Sequence, brk.Reason),
				Severity:    SeverityCritical,
			})
			return nil
		}
		result.add(Finding{
			Category:    "audit",
			Description: err.Error(),
			Severity:    SeverityError,
		})
		return nil
	}
	if log.Len() > 0 && log.Head() == nil {
		result.add(Finding{
			Category:    "audit",
			Description: "audit head anchor is missing; tail truncation cannot be detected",
			Severity:    SeverityWarning,
			Path:        log.HeadPath(),
		})
	}
	return log
}

// checkLockAudited compares lock.json with the newest lock entry. They
// differ when a lock was written but its audit append failed, or when
// lock.json was edited by hand.
func (d *Doctor) checkLockAudited(result *Result, log *audit.Log) {
	rec, err := lockstore.New(d.project).Current()
	if err != nil {
		return
	}
	var audited string
	entries := log.Entries(0)
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].EventKind == model.EventLock {
			audited, _ = entries[i].Payload["merkle_root"].(string)
			break
		}
	}
	if audited == string(rec.MerkleRoot) {
		return
	}
	desc := fmt.Sprintf("lock record %s has no audit entry", rec.MerkleRoot)
	if audited != "" {
		desc += fmt.Sprintf("; last audited lock is %s", audited)
	}
	result.add(Finding{
		Category:    "lock",
		Description: desc,
		Severity:    SeverityCritical,
		Path:        d.project.LockRecordPath(),
	})
}

func (d *Doctor) checkSignature(result *Result) {
	marker, err := sign.Marker(d.project)
	if err != nil {
		result.add(Finding{
			Category:    "signature",
			Description: err.Error(),
			Severity:    SeverityError,
			Path:        d.project.SignatureMarkerPath(),
		})
		return
	}
	if marker == nil {
		return
	}
	sigPath := filepath.Join(d.project.Root, filepath.FromSlash(marker.Path))
	if _, err := os.Stat(sigPath); err != nil {
		result.add(Finding{
			Category:    "signature",
			Description: fmt.Sprintf("signature for %s is missing", marker.MerkleRoot),
			Severity:    SeverityError,
			Path:        sigPath,
		})
	}
}

func (d *Doctor) checkSnapshots(ctx context.Context, result *Result, strict bool) error {
	catalog := snapshot.NewCatalog(d.project)
	ids, err := catalog.IDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		r := catalog.Verify(ctx, id, strict)
		if r.OK() {
			continue
		}
		severity := r.Severity
		if severity == "" {
			severity = SeverityError
		}
		result.add(Finding{
			Category:    "snapshot",
			Description: fmt.Sprintf("snapshot %s: %s", id, r.Error),
			Severity:    severity,
			Path:        catalog.Dir(id),
		})
	}
	return nil
}

func (d *Doctor) checkOrphanIntents(result *Result) {
	entries, err := os.ReadDir(d.project.IntentsDir())
	if err != nil {
		return
	}
	for _, entry := range entries {
		result.add(Finding{
			Category:    "intent",
			Description: fmt.Sprintf("orphan intent file: %s (interrupted snapshot)", entry.Name()),
			Severity:    SeverityWarning,
			Path:        filepath.Join(d.project.IntentsDir(), entry.Name()),
		})
	}
}

func (d *Doctor) checkOrphanTmp(result *Result) {
	entries, err := os.ReadDir(d.project.TmpDir())
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "snapshot-") && !strings.HasPrefix(name, "restore-") {
			continue
		}
		result.add(Finding{
			Category:    "tmp",
			Description: fmt.Sprintf("orphan staging directory: %s", name),
			Severity:    SeverityInfo,
			Path:        filepath.Join(d.project.TmpDir(), name),
		})
	}
}

func (d *Doctor) checkOpLock(result *Result) {
	holder, err := lock.NewManager(d.project).Holder()
	if err != nil || holder == nil {
		return
	}
	result.add(Finding{
		Category:    "lock",
		Description: fmt.Sprintf("operation lock held by pid %d (%s)", holder.PID, holder.Purpose),
		Severity:    SeverityInfo,
	})
}

// HasCategory reports whether any finding has category c.
func (r *Result) HasCategory(c string) bool {
	for _, f := range r.Findings {
		if f.Category == c {
			return true
		}
	}
	return false
}

// Worst returns the most severe severity present, or "" when clean.
func (r *Result) Worst() string {
	order := []string{SeverityCritical, SeverityError, SeverityWarning, SeverityInfo}
	for _, s := range order {
		for _, f := range r.Findings {
			if f.Severity == s {
				return s
			}
		}
	}
	return ""
}
