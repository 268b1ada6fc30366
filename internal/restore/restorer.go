// Package restore brings a snapshot back into a directory. Nothing in the
// target changes until every archived file has been extracted and
// re-verified, and a failed commit puts back every file it moved.
package restore

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/docseal/docseal/internal/audit"
	"github.com/docseal/docseal/internal/integrity"
	"github.com/docseal/docseal/internal/repo"
	"github.com/docseal/docseal/internal/snapshot"
	"github.com/docseal/docseal/pkg/config"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/fsutil"
	"github.com/docseal/docseal/pkg/logging"
	"github.com/docseal/docseal/pkg/model"
	"github.com/docseal/docseal/pkg/pathutil"
	"github.com/docseal/docseal/pkg/progress"
)

// Result describes a completed restore.
type Result struct {
	SnapshotID      model.SnapshotID `json:"snapshot_id"`
	Target          string           `json:"target"`
	RestoredFiles   int              `json:"restored_files"`
	ReplacedFiles   int              `json:"replaced_files"`
	PostRestoreRoot model.Digest     `json:"post_restore_root"`
}

// Restorer handles snapshot restore operations.
type Restorer struct {
	project  *repo.Project
	catalog  *snapshot.Catalog
	recorder audit.Recorder
	log      *logging.Logger
	progress progress.Callback

	// beforePlace runs before each staged file is moved into the target.
	beforePlace func(rel string) error
}

// NewRestorer creates a restorer that records each restore in rec.
func NewRestorer(p *repo.Project, rec audit.Recorder) *Restorer {
	return &Restorer{
		project:  p,
		catalog:  snapshot.NewCatalog(p),
		recorder: rec,
		log:      p.Logger.WithFields(map[string]any{"component": "restore"}),
		progress: progress.Noop,
	}
}

// SetProgress installs a progress callback.
func (r *Restorer) SetProgress(cb progress.Callback) {
	if cb == nil {
		cb = progress.Noop
	}
	r.progress = cb
}

// Restore resolves query to a snapshot and restores it into target (the
// project root when empty). Files in the target that the snapshot does not
// contain are left alone. The caller holds the project lock.
func (r *Restorer) Restore(ctx context.Context, query, target string) (*Result, error) {
	m, err := r.catalog.Resolve(query)
	if err != nil {
		return nil, err
	}
	if target == "" {
		target = r.project.Root
	}
	target, err = filepath.Abs(target)
	if err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("resolve target: %v", err)
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("create target: %v", err)
	}
	log := r.log.WithFields(map[string]any{"snapshot_id": string(m.ID), "target": target})

	stateDir := filepath.Join(target, config.StateDir)
	ownState := !fsutil.Exists(stateDir)
	tmpDir := filepath.Join(stateDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("create staging parent: %v", err)
	}
	if ownState {
		defer os.RemoveAll(stateDir)
	}

	staging, err := os.MkdirTemp(tmpDir, "restore-"+string(m.ID)+"-")
	if err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("create staging dir: %v", err)
	}
	defer os.RemoveAll(staging)

	records, err := r.stage(ctx, m, staging)
	if err != nil {
		log.Warn("restore aborted before commit", map[string]any{"error": err.Error()})
		return nil, err
	}

	rollbackDir, err := os.MkdirTemp(tmpDir, "rollback-")
	if err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("create rollback dir: %v", err)
	}
	defer os.RemoveAll(rollbackDir)

	replaced, err := r.commit(target, staging, rollbackDir, records)
	if err != nil {
		log.ErrorErr("restore commit failed, rolled back", err)
		return nil, err
	}

	root, err := integrity.Root(m.Algorithm, records)
	if err != nil {
		return nil, err
	}
	res := &Result{
		SnapshotID:      m.ID,
		Target:          target,
		RestoredFiles:   len(records),
		ReplacedFiles:   replaced,
		PostRestoreRoot: root,
	}
	if _, err := r.recorder.Append(model.EventRestore, map[string]any{
		"snapshot_id":       string(m.ID),
		"post_restore_root": string(root),
		"restored_files":    len(records),
		"replaced_files":    replaced,
		"target":            target,
	}); err != nil {
		return nil, err
	}
	log.Info("snapshot restored", map[string]any{"restored_files": len(records), "replaced_files": replaced})
	return res, nil
}

// stage extracts the archive into staging and requires the extracted set
// to equal the manifest exactly.
func (r *Restorer) stage(ctx context.Context, m *model.SnapshotManifest, staging string) ([]model.FileRecord, error) {
	expected := make(map[string]model.ManifestEntry, len(m.Files))
	for _, e := range m.Files {
		key, err := pathutil.NormalizeRel(e.Path)
		if err != nil {
			return nil, err
		}
		expected[key] = e
	}

	prog := progress.New("restore", len(m.Files), r.progress)
	records := make([]model.FileRecord, 0, len(m.Files))
	seen := make(map[string]bool, len(m.Files))
	err := r.catalog.Walk(ctx, m, func(hdr *tar.Header, src io.Reader) error {
		key, err := pathutil.NormalizeRel(hdr.Name)
		if err != nil {
			return err
		}
		want, ok := expected[key]
		if !ok {
			return errclass.ErrValidationMismatch.WithMessagef("archive holds unlisted file %s", hdr.Name)
		}
		if seen[key] {
			return errclass.ErrValidationMismatch.WithMessagef("archive holds %s twice", key)
		}
		seen[key] = true

		rec, err := extract(staging, key, hdr, src, m.Algorithm)
		if err != nil {
			return err
		}
		if rec.Digest != want.Digest || rec.Size != want.Size {
			return errclass.ErrValidationMismatch.WithMessagef("restored %s does not match the snapshot manifest", key)
		}
		records = append(records, rec)
		prog.Increment(rec.Size, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for key := range expected {
		if !seen[key] {
			return nil, errclass.ErrValidationMismatch.WithMessagef("archive is missing %s", key)
		}
	}
	// Staged files and their directories are durable before any target
	// file is replaced.
	if err := fsutil.FsyncTree(staging); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("sync staged files: %v", err)
	}
	prog.Done("")
	model.SortRecords(records)
	return records, nil
}

func extract(staging, key string, hdr *tar.Header, src io.Reader, alg model.Algorithm) (model.FileRecord, error) {
	dest := filepath.Join(staging, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return model.FileRecord{}, errclass.ErrIOFailure.WithMessagef("create staging dir for %s: %v", key, err)
	}
	mode := os.FileMode(hdr.Mode).Perm()
	if mode == 0 {
		mode = 0644
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		return model.FileRecord{}, errclass.ErrIOFailure.WithMessagef("create staged %s: %v", key, err)
	}
	h, err := integrity.NewHash(alg)
	if err != nil {
		f.Close()
		return model.FileRecord{}, err
	}
	n, err := io.Copy(io.MultiWriter(f, h), src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return model.FileRecord{}, errclass.ErrIOFailure.WithMessagef("extract %s: %v", key, err)
	}
	if !hdr.ModTime.IsZero() {
		if err := os.Chtimes(dest, hdr.ModTime, hdr.ModTime); err != nil {
			return model.FileRecord{}, errclass.ErrIOFailure.WithMessagef("set times on %s: %v", key, err)
		}
	}
	return model.FileRecord{
		Path:    key,
		Digest:  integrity.FormatDigest(h.Sum(nil)),
		Size:    n,
		ModTime: hdr.ModTime.UTC(),
	}, nil
}

type move struct {
	dest     string
	rollback string
}

// commit moves staged files into target. Existing files are first moved
// into rollbackDir; on any failure every placed file is removed and every
// moved file put back.
func (r *Restorer) commit(target, staging, rollbackDir string, records []model.FileRecord) (int, error) {
	var placed []string
	var moved []move
	undo := func() {
		for i := len(placed) - 1; i >= 0; i-- {
			os.Remove(placed[i])
		}
		for i := len(moved) - 1; i >= 0; i-- {
			if err := os.Rename(moved[i].rollback, moved[i].dest); err != nil {
				r.log.ErrorErr("rollback failed", err, map[string]any{"path": moved[i].dest})
			}
		}
	}

	dirs := make(map[string]bool)
	for _, rec := range records {
		dest, err := pathutil.Resolve(target, rec.Path)
		if err != nil {
			undo()
			return 0, err
		}
		if r.beforePlace != nil {
			if err := r.beforePlace(rec.Path); err != nil {
				undo()
				return 0, err
			}
		}

		existing := dest
		info, err := os.Lstat(dest)
		if errors.Is(err, fs.ErrNotExist) {
			// The same file may be on disk under another Unicode spelling.
			if alt := otherSpelling(dest); alt != "" {
				existing = alt
				info, err = os.Lstat(alt)
			}
		}
		switch {
		case err == nil && info.IsDir():
			undo()
			return 0, errclass.ErrIOFailure.WithMessagef("cannot restore %s over a directory", rec.Path)
		case err == nil:
			aside := filepath.Join(rollbackDir, filepath.FromSlash(rec.Path))
			if err := os.MkdirAll(filepath.Dir(aside), 0755); err != nil {
				undo()
				return 0, errclass.ErrIOFailure.WithMessagef("prepare rollback for %s: %v", rec.Path, err)
			}
			if err := os.Rename(existing, aside); err != nil {
				undo()
				return 0, errclass.ErrIOFailure.WithMessagef("move %s aside: %v", rec.Path, err)
			}
			moved = append(moved, move{dest: existing, rollback: aside})
		case !errors.Is(err, fs.ErrNotExist):
			undo()
			return 0, errclass.ErrIOFailure.WithMessagef("stat %s: %v", rec.Path, err)
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			undo()
			return 0, errclass.ErrIOFailure.WithMessagef("create directory for %s: %v", rec.Path, err)
		}
		if err := os.Rename(filepath.Join(staging, filepath.FromSlash(rec.Path)), dest); err != nil {
			undo()
			return 0, errclass.ErrIOFailure.WithMessagef("place %s: %v", rec.Path, err)
		}
		placed = append(placed, dest)
		dirs[filepath.Dir(dest)] = true
	}

	sorted := make([]string, 0, len(dirs))
	for d := range dirs {
		sorted = append(sorted, d)
	}
	sort.Strings(sorted)
	for _, d := range sorted {
		if err := fsutil.FsyncDir(d); err != nil {
			return len(moved), errclass.ErrIOFailure.WithMessagef("sync %s: %v", d, err)
		}
	}
	return len(moved), nil
}

// otherSpelling returns a sibling of dest whose name differs from dest's
// but normalizes to the same NFC form, or "" when there is none.
func otherSpelling(dest string) string {
	base := filepath.Base(dest)
	want := norm.NFC.String(base)
	entries, err := os.ReadDir(filepath.Dir(dest))
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.Name() != base && norm.NFC.String(e.Name()) == want {
			return filepath.Join(filepath.Dir(dest), e.Name())
		}
	}
	return ""
}
