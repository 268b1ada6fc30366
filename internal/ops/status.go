package ops

import (
	"context"
	"errors"

	"github.com/docseal/docseal/internal/lockstore"
	"github.com/docseal/docseal/internal/sign"
	"github.com/docseal/docseal/internal/snapshot"
	"github.com/docseal/docseal/internal/verify"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/model"
)

// State is the project's position in the approval state machine.
type State string

const (
	StateUnlocked State = "UNLOCKED"
	StateLocked   State = "LOCKED"
	StateDrifted  State = "DRIFTED"
	StateSigned   State = "SIGNED"
)

// StatusReport summarizes a project.
type StatusReport struct {
	State          State                   `json:"state"`
	Lock           *model.LockRecord       `json:"lock,omitempty"`
	Signature      *model.SignatureMarker  `json:"signature,omitempty"`
	Discrepancies  []model.Discrepancy     `json:"discrepancies"`
	Snapshots      int                     `json:"snapshots"`
	LatestSnapshot *model.SnapshotManifest `json:"latest_snapshot,omitempty"`
	AuditEntries   int                     `json:"audit_entries"`
	AuditIntact    bool                    `json:"audit_intact"`
	AuditError     string                  `json:"audit_error,omitempty"`
	Fast           bool                    `json:"fast"`
}

// status derives the state: UNLOCKED without a lock record, DRIFTED on any
// discrepancy, SIGNED when clean and the signature covers the current
// root, LOCKED otherwise. A stale signature never masks drift.
func (d *Dispatcher) status(ctx context.Context, c Status) (*StatusReport, error) {
	report := &StatusReport{Fast: c.Fast}

	ds, err := verify.New(d.project).Validate(ctx, c.Fast)
	if err != nil {
		return nil, err
	}
	report.Discrepancies = ds

	for _, disc := range ds {
		if disc.Kind == model.DiscrepancyUnlocked {
			report.State = StateUnlocked
		}
	}
	if report.State == "" {
		rec, err := lockstore.New(d.project).Current()
		if err != nil {
			return nil, err
		}
		report.Lock = rec

		marker, err := sign.Marker(d.project)
		if err != nil {
			return nil, err
		}
		report.Signature = marker

		switch {
		case len(ds) > 0:
			report.State = StateDrifted
		case marker != nil && marker.MerkleRoot == rec.MerkleRoot:
			report.State = StateSigned
		default:
			report.State = StateLocked
		}
	}

	list, err := snapshot.NewCatalog(d.project).List()
	if err != nil {
		return nil, err
	}
	report.Snapshots = len(list)
	if len(list) > 0 {
		report.LatestSnapshot = list[0]
	}

	log, err := d.openAudit()
	switch {
	case err == nil:
		report.AuditIntact = true
		report.AuditEntries = log.Len()
	case errors.Is(err, errclass.ErrIntegrityBreak):
		report.AuditError = err.Error()
	default:
		return nil, err
	}
	return report, nil
}
