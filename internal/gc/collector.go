// Package gc prunes snapshots that fall outside the retention policy.
package gc

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/docseal/docseal/internal/audit"
	"github.com/docseal/docseal/internal/lockstore"
	"github.com/docseal/docseal/internal/repo"
	"github.com/docseal/docseal/internal/snapshot"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/logging"
	"github.com/docseal/docseal/pkg/model"
)

// Protection reasons reported in a plan.
const (
	ReasonRecent   = "recent"
	ReasonMinAge   = "min_age"
	ReasonTag      = "tag"
	ReasonLockRoot = "lock_root"
)

// Collector plans and runs snapshot pruning.
type Collector struct {
	project  *repo.Project
	catalog  *snapshot.Catalog
	recorder audit.Recorder
	policy   model.RetentionPolicy
	log      *logging.Logger
}

// NewCollector creates a collector using the project's retention policy.
func NewCollector(p *repo.Project, rec audit.Recorder) *Collector {
	return &Collector{
		project:  p,
		catalog:  snapshot.NewCatalog(p),
		recorder: rec,
		policy:   p.Config.RetentionPolicy(),
		log:      p.Logger.WithFields(map[string]any{"component": "gc"}),
	}
}

// Plan decides which snapshots a prune would delete. A snapshot survives
// if any rule protects it. Snapshots whose manifest cannot be read are
// never listed, so they are never deleted here.
func (c *Collector) Plan() (*model.PrunePlan, error) {
	protected, all, err := c.computeProtectedSet()
	if err != nil {
		return nil, fmt.Errorf("compute protected set: %w", err)
	}

	plan := &model.PrunePlan{
		ID:        uuid.NewString(),
		CreatedAt: c.project.Clock.Now().UTC(),
		Policy:    c.policy,
	}
	for _, m := range all {
		if _, ok := protected[m.ID]; ok {
			plan.Protected = append(plan.Protected, m.ID)
			continue
		}
		plan.ToDelete = append(plan.ToDelete, m.ID)
		plan.FreedBytes += c.catalog.Size(m.ID)
	}
	return plan, nil
}

// Reasons returns why each protected snapshot is kept.
func (c *Collector) Reasons() (map[model.SnapshotID][]string, error) {
	protected, _, err := c.computeProtectedSet()
	return protected, err
}

// Run executes a plan after re-checking that nothing it deletes has become
// protected in the meantime. The caller holds the project lock.
func (c *Collector) Run(plan *model.PrunePlan) ([]model.SnapshotID, error) {
	protected, _, err := c.computeProtectedSet()
	if err != nil {
		return nil, fmt.Errorf("revalidate protected set: %w", err)
	}
	for _, id := range plan.ToDelete {
		if reasons, ok := protected[id]; ok {
			return nil, errclass.ErrStateInvalid.WithMessagef("plan mismatch: %s is now protected (%v)", id, reasons)
		}
	}

	var deleted []model.SnapshotID
	var failed []string
	for _, id := range plan.ToDelete {
		if err := c.catalog.Remove(id); err != nil {
			c.log.ErrorErr("failed to delete snapshot", err, map[string]any{"snapshot_id": string(id)})
			failed = append(failed, string(id))
			continue
		}
		deleted = append(deleted, id)
	}

	ids := make([]string, len(deleted))
	for i, id := range deleted {
		ids[i] = string(id)
	}
	if _, err := c.recorder.Append(model.EventPrune, map[string]any{
		"plan_id":     plan.ID,
		"deleted":     ids,
		"failed":      failed,
		"freed_bytes": plan.FreedBytes,
	}); err != nil {
		return deleted, err
	}
	c.log.Info("snapshots pruned", map[string]any{"deleted_count": len(deleted), "failed_count": len(failed)})

	if len(failed) > 0 {
		return deleted, errclass.ErrIOFailure.WithMessagef("failed to delete %d snapshot(s)", len(failed))
	}
	return deleted, nil
}

func (c *Collector) computeProtectedSet() (map[model.SnapshotID][]string, []*model.SnapshotManifest, error) {
	all, err := c.catalog.List()
	if err != nil {
		return nil, nil, err
	}
	protected := make(map[model.SnapshotID][]string)
	mark := func(id model.SnapshotID, reason string) {
		protected[id] = append(protected[id], reason)
	}

	// 1. Newest KeepMinSnapshots (List is newest first).
	for i, m := range all {
		if i < c.policy.KeepMinSnapshots {
			mark(m.ID, ReasonRecent)
		}
	}

	// 2. Younger than KeepMinAge.
	now := c.project.Clock.Now()
	for _, m := range all {
		if now.Sub(m.CreatedAt) < c.policy.KeepMinAge {
			mark(m.ID, ReasonMinAge)
		}
	}

	// 3. Carrying a kept tag.
	for _, m := range all {
		for _, tag := range c.policy.KeepTags {
			if m.HasTag(tag) {
				mark(m.ID, ReasonTag)
				break
			}
		}
	}

	// 4. The newest backup of the approved state.
	rec, err := lockstore.New(c.project).Current()
	switch {
	case err == nil:
		for _, m := range all {
			if m.TreeRoot == rec.MerkleRoot {
				mark(m.ID, ReasonLockRoot)
				break
			}
		}
	case !errors.Is(err, errclass.ErrNotFound):
		return nil, nil, err
	}

	for id := range protected {
		sort.Strings(protected[id])
	}
	return protected, all, nil
}
