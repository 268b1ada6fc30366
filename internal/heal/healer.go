// Package heal repairs structural damage: required files that are missing,
// or empty and never approved, get regenerated. Content is never rewritten, so a modified approved file
// stays a discrepancy until a human either restores it or re-locks.
package heal

import (
	"context"
	"errors"
	"os"

	"github.com/docseal/docseal/internal/audit"
	"github.com/docseal/docseal/internal/generate"
	"github.com/docseal/docseal/internal/lockstore"
	"github.com/docseal/docseal/internal/repo"
	"github.com/docseal/docseal/internal/verify"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/logging"
	"github.com/docseal/docseal/pkg/model"
)

// Failure is a repair that was attempted and failed.
type Failure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Report is the outcome of a heal.
type Report struct {
	Before     []model.Discrepancy `json:"before"`
	Repaired   []string            `json:"repaired"`
	Unresolved []model.Discrepancy `json:"unresolved"`
	Failed     []Failure           `json:"failed"`
}

// Clean reports whether nothing is left to fix.
func (r *Report) Clean() bool {
	return len(r.Unresolved) == 0 && len(r.Failed) == 0
}

// Healer repairs what it safely can.
type Healer struct {
	project   *repo.Project
	validator *verify.Validator
	generator generate.Generator
	recorder  audit.Recorder
	log       *logging.Logger
}

// New creates a healer using the project's configured generator.
func New(p *repo.Project, rec audit.Recorder) *Healer {
	return NewWithGenerator(p, rec, generate.New(p))
}

// NewWithGenerator creates a healer with an explicit generator.
func NewWithGenerator(p *repo.Project, rec audit.Recorder, g generate.Generator) *Healer {
	return &Healer{
		project:   p,
		validator: verify.New(p),
		generator: g,
		recorder:  rec,
		log:       p.Logger.WithFields(map[string]any{"component": "heal"}),
	}
}

// Heal validates, regenerates every missing required file and every empty
// one the lock has not approved, validates again and records one heal
// entry. The caller holds the project lock.
func (h *Healer) Heal(ctx context.Context) (*Report, error) {
	before, err := h.validator.Validate(ctx, false)
	if err != nil {
		return nil, err
	}
	report := &Report{Before: before}

	templates := make(map[string]string, len(h.project.Config.Required))
	for _, r := range h.project.Config.Required {
		templates[r.Path] = r.Template
	}

	approved, err := h.approvedPaths()
	if err != nil {
		return nil, err
	}

	for _, d := range before {
		switch {
		case d.Kind == model.DiscrepancyRequiredMissing:
			err = h.generator.Generate(ctx, d.Path, templates[d.Path])
		case d.Kind == model.DiscrepancyRequiredEmpty && !approved[d.Path]:
			err = h.regenerateEmpty(ctx, d.Path, templates[d.Path])
		default:
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			h.log.Warn("could not regenerate required file", map[string]any{"path": d.Path, "error": err.Error()})
			report.Failed = append(report.Failed, Failure{Path: d.Path, Error: err.Error()})
			continue
		}
		report.Repaired = append(report.Repaired, d.Path)
	}

	after, err := h.validator.Validate(ctx, false)
	if err != nil {
		return nil, err
	}
	failed := make(map[string]bool, len(report.Failed))
	for _, f := range report.Failed {
		failed[f.Path] = true
	}
	for _, d := range after {
		if failed[d.Path] && (d.Kind == model.DiscrepancyRequiredMissing || d.Kind == model.DiscrepancyRequiredEmpty) {
			continue
		}
		report.Unresolved = append(report.Unresolved, d)
	}

	kinds := make([]string, 0, len(report.Unresolved))
	for _, d := range report.Unresolved {
		kinds = append(kinds, string(d.Kind)+":"+d.Path)
	}
	failedPaths := make([]string, 0, len(report.Failed))
	for _, f := range report.Failed {
		failedPaths = append(failedPaths, f.Path)
	}
	if _, err := h.recorder.Append(model.EventHeal, map[string]any{
		"before":     len(before),
		"repaired":   report.Repaired,
		"unresolved": kinds,
		"failed":     failedPaths,
	}); err != nil {
		return nil, err
	}

	h.log.Info("heal finished", map[string]any{
		"repaired":   len(report.Repaired),
		"unresolved": len(report.Unresolved),
		"failed":     len(report.Failed),
	})
	return report, nil
}

// approvedPaths lists the files in the approved manifest. An unlocked
// project approves nothing.
func (h *Healer) approvedPaths() (map[string]bool, error) {
	_, manifest, err := lockstore.New(h.project).Approved()
	if errors.Is(err, errclass.ErrNotFound) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(manifest.Files))
	for _, f := range manifest.Files {
		out[f.Path] = true
	}
	return out, nil
}

// regenerateEmpty replaces an empty required file with generated content.
// Generators refuse to overwrite, so the empty file is removed first and
// put back if generation fails.
func (h *Healer) regenerateEmpty(ctx context.Context, rel, template string) error {
	abs := h.project.Abs(rel)
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if info.Size() != 0 {
		return errclass.ErrStateInvalid.WithMessagef("%s is no longer empty", rel)
	}
	if err := os.Remove(abs); err != nil {
		return err
	}
	if genErr := h.generator.Generate(ctx, rel, template); genErr != nil {
		if _, statErr := os.Lstat(abs); errors.Is(statErr, os.ErrNotExist) {
			if err := os.WriteFile(abs, nil, info.Mode().Perm()); err != nil {
				h.log.Warn("could not put back empty required file", map[string]any{"path": rel, "error": err.Error()})
			}
		}
		return genErr
	}
	return nil
}
