// Package verify compares the working tree with the approved state.
package verify

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/docseal/docseal/internal/diff"
	"github.com/docseal/docseal/internal/integrity"
	"github.com/docseal/docseal/internal/lockstore"
	"github.com/docseal/docseal/internal/repo"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/model"
)

// Validator reports every discrepancy between the tree and the lock. It
// never writes and takes no advisory lock.
type Validator struct {
	project *repo.Project
	store   *lockstore.Store
	scanner *integrity.Scanner
}

// New creates a Validator for p.
func New(p *repo.Project) *Validator {
	return &Validator{
		project: p,
		store:   lockstore.New(p),
		scanner: integrity.NewScanner(p.Root, p.Config),
	}
}

// Validate collects all discrepancies; an empty result means the tree
// matches the approved state. Fast mode reads no content: it checks
// existence, untracked files and size/mtime, so an edit that preserves
// both goes unnoticed.
func (v *Validator) Validate(ctx context.Context, fast bool) ([]model.Discrepancy, error) {
	rec, manifest, err := v.store.Approved()
	if errors.Is(err, errclass.ErrNotFound) {
		out := []model.Discrepancy{{Kind: model.DiscrepancyUnlocked, Message: "project has no lock record"}}
		return append(out, v.CheckRequired()...), nil
	}
	if err != nil {
		return nil, err
	}

	// Per-file comparison uses the algorithm the manifest was made with.
	scanner := v.scanner.WithAlgorithm(manifest.Algorithm)
	var current []model.FileRecord
	if fast {
		current, err = scanner.Stat(ctx)
	} else {
		current, err = scanner.Scan(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := v.CheckRequired()
	required := make(map[string]bool, len(out))
	for _, d := range out {
		if d.Kind == model.DiscrepancyRequiredMissing {
			required[d.Path] = true
		}
	}

	changes := diff.Compare(manifest.Files, current)
	for _, c := range changes.Removed {
		if required[c.Path] {
			continue
		}
		out = append(out, model.Discrepancy{
			Kind:     model.DiscrepancyMissing,
			Path:     c.Path,
			Expected: string(c.OldDigest),
			Message:  "approved file is absent",
		})
	}
	for _, c := range changes.Modified {
		out = append(out, model.Discrepancy{
			Kind:     model.DiscrepancyContentMismatch,
			Path:     c.Path,
			Expected: string(c.OldDigest),
			Actual:   string(c.NewDigest),
		})
	}
	for _, c := range changes.Stale {
		out = append(out, model.Discrepancy{
			Kind:     model.DiscrepancyStale,
			Path:     c.Path,
			Expected: string(c.OldDigest),
			Message:  fmt.Sprintf("size or modification time changed (%d -> %d bytes)", c.OldSize, c.Size),
		})
	}
	for _, c := range changes.Added {
		out = append(out, model.Discrepancy{
			Kind:    model.DiscrepancyUntracked,
			Path:    c.Path,
			Actual:  string(c.NewDigest),
			Message: "file is not in the approved state",
		})
	}

	if fast || len(out) > 0 {
		return out, nil
	}

	root, err := integrity.Root(v.project.Config.Algorithm, current)
	if err != nil {
		return nil, err
	}
	if root != rec.MerkleRoot {
		msg := "recomputed root differs from the lock record"
		if v.project.Config.Algorithm != rec.Algorithm {
			msg = fmt.Sprintf("lock was made with %s, project now uses %s", rec.Algorithm, v.project.Config.Algorithm)
		}
		out = append(out, model.Discrepancy{
			Kind:     model.DiscrepancyRootMismatch,
			Expected: string(rec.MerkleRoot),
			Actual:   string(root),
			Message:  msg,
		})
	}
	return out, nil
}

// CheckRequired reports required files that are absent or empty, in
// config order. It reads no content, so fast mode reports the same.
func (v *Validator) CheckRequired() []model.Discrepancy {
	var out []model.Discrepancy
	for _, rel := range v.project.Config.RequiredPaths() {
		info, err := os.Stat(v.project.Abs(rel))
		switch {
		case err != nil:
			out = append(out, model.Discrepancy{
				Kind:    model.DiscrepancyRequiredMissing,
				Path:    rel,
				Message: "required file does not exist",
			})
		case info.Mode().IsRegular() && info.Size() == 0:
			out = append(out, model.Discrepancy{
				Kind:    model.DiscrepancyRequiredEmpty,
				Path:    rel,
				Message: "required file is empty",
			})
		}
	}
	return out
}
