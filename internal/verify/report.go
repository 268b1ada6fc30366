package verify

import (
	"context"
	"errors"

	"github.com/docseal/docseal/internal/integrity"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/model"
)

// IntegrityReport describes the current tree next to the stored lock.
type IntegrityReport struct {
	Algorithm     model.Algorithm     `json:"algorithm"`
	FileCount     int                 `json:"file_count"`
	TotalSize     int64               `json:"total_size"`
	CurrentRoot   model.Digest        `json:"current_root"`
	StoredRoot    model.Digest        `json:"stored_root,omitempty"`
	Locked        bool                `json:"locked"`
	Match         bool                `json:"match"`
	Files         []model.FileRecord  `json:"files"`
	Discrepancies []model.Discrepancy `json:"discrepancies"`
}

// Report hashes the whole tracked set and compares it with the lock.
func (v *Validator) Report(ctx context.Context) (*IntegrityReport, error) {
	files, err := v.scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}
	alg := v.project.Config.Algorithm
	root, err := integrity.Root(alg, files)
	if err != nil {
		return nil, err
	}

	r := &IntegrityReport{
		Algorithm:   alg,
		FileCount:   len(files),
		TotalSize:   model.TotalSize(files),
		CurrentRoot: root,
		Files:       files,
	}

	rec, err := v.store.Current()
	switch {
	case errors.Is(err, errclass.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		r.Locked = true
		r.StoredRoot = rec.MerkleRoot
		r.Match = rec.MerkleRoot == root
	}

	if r.Discrepancies, err = v.Validate(ctx, false); err != nil {
		return nil, err
	}
	return r, nil
}
