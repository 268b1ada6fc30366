package snapshot

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/docseal/docseal/internal/compression"
	"github.com/docseal/docseal/internal/integrity"
	"github.com/docseal/docseal/internal/repo"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/fsutil"
	"github.com/docseal/docseal/pkg/logging"
	"github.com/docseal/docseal/pkg/model"
)

// Catalog reads the snapshots stored in a project.
type Catalog struct {
	project *repo.Project
	log     *logging.Logger
}

// NewCatalog creates a catalog for p.
func NewCatalog(p *repo.Project) *Catalog {
	return &Catalog{project: p, log: p.Logger.WithFields(map[string]any{"component": "catalog"})}
}

// Dir returns the directory of a snapshot.
func (c *Catalog) Dir(id model.SnapshotID) string {
	return filepath.Join(c.project.SnapshotsDir(), string(id))
}

// ArchivePath returns the archive file of a loaded snapshot.
func (c *Catalog) ArchivePath(m *model.SnapshotManifest) string {
	return filepath.Join(c.Dir(m.ID), m.Archive)
}

// IDs returns the ids of every snapshot directory, unverified.
func (c *Catalog) IDs() ([]model.SnapshotID, error) {
	entries, err := os.ReadDir(c.project.SnapshotsDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("read snapshots directory: %v", err)
	}
	var ids []model.SnapshotID
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, model.SnapshotID(e.Name()))
		}
	}
	return ids, nil
}

// List returns all readable snapshots, newest first. Snapshots whose
// manifest fails to load are skipped; doctor reports them.
func (c *Catalog) List() ([]*model.SnapshotManifest, error) {
	ids, err := c.IDs()
	if err != nil {
		return nil, err
	}
	var out []*model.SnapshotManifest
	for _, id := range ids {
		m, err := c.Load(id)
		if err != nil {
			c.log.Debug("skipping unreadable snapshot", map[string]any{"snapshot_id": string(id), "error": err.Error()})
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Load reads a snapshot manifest and verifies its checksum.
func (c *Catalog) Load(id model.SnapshotID) (*model.SnapshotManifest, error) {
	if id == "" || strings.ContainsAny(string(id), `/\`) || id == "." || id == ".." {
		return nil, errclass.ErrNotFound.WithMessagef("snapshot %q", id)
	}
	var m model.SnapshotManifest
	err := fsutil.ReadJSON(filepath.Join(c.Dir(id), ManifestFile), &m)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errclass.ErrNotFound.WithMessagef("snapshot %s", id)
	}
	if err != nil {
		return nil, errclass.ErrConfigMalformed.WithMessagef("snapshot %s manifest: %v", id, err)
	}
	sum, err := integrity.SnapshotChecksum(&m)
	if err != nil {
		return nil, err
	}
	if sum != m.Checksum {
		return nil, errclass.ErrConfigMalformed.WithMessagef("snapshot %s manifest checksum mismatch", id)
	}
	if m.ID != id {
		return nil, errclass.ErrConfigMalformed.WithMessagef("snapshot %s manifest names %s", id, m.ID)
	}
	return &m, nil
}

// FilterOptions for searching snapshots.
type FilterOptions struct {
	NoteContains string
	HasTag       string
	Since        time.Time
	Until        time.Time
}

// Find returns snapshots matching filter criteria, newest first.
func (c *Catalog) Find(opts FilterOptions) ([]*model.SnapshotManifest, error) {
	all, err := c.List()
	if err != nil {
		return nil, err
	}
	var result []*model.SnapshotManifest
	for _, m := range all {
		if matchesFilter(m, opts) {
			result = append(result, m)
		}
	}
	return result, nil
}

func matchesFilter(m *model.SnapshotManifest, opts FilterOptions) bool {
	if opts.NoteContains != "" && !strings.Contains(m.Note, opts.NoteContains) {
		return false
	}
	if opts.HasTag != "" && !m.HasTag(opts.HasTag) {
		return false
	}
	if !opts.Since.IsZero() && m.CreatedAt.Before(opts.Since) {
		return false
	}
	if !opts.Until.IsZero() && m.CreatedAt.After(opts.Until) {
		return false
	}
	return true
}

// Resolve finds the one snapshot a user query names: an exact id, the
// newest snapshot carrying a tag, or a unique id prefix, tag prefix or
// note prefix.
func (c *Catalog) Resolve(query string) (*model.SnapshotManifest, error) {
	if query == "" {
		return nil, errclass.ErrNotFound.WithMessage("empty snapshot query")
	}
	if m, err := c.Load(model.SnapshotID(query)); err == nil {
		return m, nil
	} else if !errors.Is(err, errclass.ErrNotFound) {
		return nil, err
	}

	matches, err := c.FindMultiple(query, 0)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, errclass.ErrNotFound.WithMessagef("no snapshot found matching %q", query)
	}
	best := matches[0]
	if best.MatchType == MatchTag && best.Score == scoreTagExact {
		// Newest first, so the first exact tag match is the latest.
		return best.Manifest, nil
	}
	var tied []string
	for _, m := range matches {
		if m.Score == best.Score {
			tied = append(tied, string(m.Manifest.ID))
		}
	}
	if len(tied) > 1 {
		return nil, errclass.ErrNotFound.WithMessagef("ambiguous query %q matches multiple snapshots: %s", query, strings.Join(tied, ", "))
	}
	return best.Manifest, nil
}

// Walk streams the archive of m, calling fn for every regular file in
// archive order. fn must consume r before returning.
func (c *Catalog) Walk(ctx context.Context, m *model.SnapshotManifest, fn func(hdr *tar.Header, r io.Reader) error) error {
	f, err := os.Open(c.ArchivePath(m))
	if errors.Is(err, fs.ErrNotExist) {
		return errclass.ErrNotFound.WithMessagef("snapshot %s archive %s is missing", m.ID, m.Archive)
	}
	if err != nil {
		return errclass.ErrIOFailure.WithMessagef("open archive: %v", err)
	}
	defer f.Close()

	zr, err := compression.NewReader(compression.Codec(m.Compression), bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		return errclass.ErrIOFailure.WithMessagef("open %s stream: %v", m.Compression, err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errclass.ErrIOFailure.WithMessagef("read archive: %v", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			return errclass.ErrValidationMismatch.WithMessagef("archive entry %q is not a regular file", hdr.Name)
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}

// Remove deletes a snapshot directory.
func (c *Catalog) Remove(id model.SnapshotID) error {
	if err := os.RemoveAll(c.Dir(id)); err != nil {
		return errclass.ErrIOFailure.WithMessagef("remove snapshot %s: %v", id, err)
	}
	return nil
}

// Size returns the on-disk size of a snapshot directory.
func (c *Catalog) Size(id model.SnapshotID) int64 {
	var total int64
	filepath.WalkDir(c.Dir(id), func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
