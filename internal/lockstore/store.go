// Package lockstore persists the approved state: the current lock record
// and the content-addressed manifests it points to.
package lockstore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/docseal/docseal/internal/integrity"
	"github.com/docseal/docseal/internal/repo"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/fsutil"
	"github.com/docseal/docseal/pkg/logging"
	"github.com/docseal/docseal/pkg/model"
)

// Store reads and replaces the lock record. Readers never need the
// advisory lock: both files are replaced atomically and the manifest is
// always written before the record that names it.
type Store struct {
	project *repo.Project
	log     *logging.Logger
}

// New creates a Store for the project.
func New(p *repo.Project) *Store {
	return &Store{project: p, log: p.Logger.WithFields(map[string]any{"component": "lockstore"})}
}

// Current returns the current lock record. ErrNotFound when the project
// has never been locked, ErrConfigMalformed when the record is unreadable.
func (s *Store) Current() (*model.LockRecord, error) {
	var rec model.LockRecord
	err := fsutil.ReadJSON(s.project.LockRecordPath(), &rec)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errclass.ErrNotFound.WithMessage("project has no lock record")
	}
	if err != nil {
		return nil, errclass.ErrConfigMalformed.WithMessagef("lock record: %v", err)
	}
	if !integrity.ValidDigest(rec.MerkleRoot) || !rec.Algorithm.Valid() {
		return nil, errclass.ErrConfigMalformed.WithMessage("lock record has an invalid root or algorithm")
	}
	return &rec, nil
}

// Manifest loads the approved manifest for root and verifies its checksum
// and that it really hashes to root.
func (s *Store) Manifest(root model.Digest) (*model.Manifest, error) {
	if !integrity.ValidDigest(root) {
		return nil, errclass.ErrConfigMalformed.WithMessagef("invalid manifest root %q", root)
	}
	var m model.Manifest
	err := fsutil.ReadJSON(s.manifestPath(root), &m)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errclass.ErrNotFound.WithMessagef("manifest %s", root)
	}
	if err != nil {
		return nil, errclass.ErrConfigMalformed.WithMessagef("manifest %s: %v", root, err)
	}

	sum, err := integrity.ManifestChecksum(&m)
	if err != nil {
		return nil, err
	}
	if sum != m.Checksum {
		return nil, errclass.ErrConfigMalformed.WithMessagef("manifest %s checksum mismatch", root)
	}
	computed, err := integrity.Root(m.Algorithm, m.Files)
	if err != nil {
		return nil, errclass.ErrConfigMalformed.WithMessagef("manifest %s: %v", root, err)
	}
	if computed != root || m.MerkleRoot != root {
		return nil, errclass.ErrConfigMalformed.WithMessagef("manifest %s does not hash to its root", root)
	}
	return &m, nil
}

// Approved returns the current lock record together with its manifest.
func (s *Store) Approved() (*model.LockRecord, *model.Manifest, error) {
	rec, err := s.Current()
	if err != nil {
		return nil, nil, err
	}
	m, err := s.Manifest(rec.MerkleRoot)
	if err != nil {
		return nil, nil, err
	}
	if m.Algorithm != rec.Algorithm {
		return nil, nil, errclass.ErrConfigMalformed.WithMessage("lock record and manifest disagree on algorithm")
	}
	return rec, m, nil
}

// Update approves records as the new state: it writes the manifest, then
// atomically swaps the lock record. The caller holds the advisory lock.
func (s *Store) Update(records []model.FileRecord) (*model.LockRecord, error) {
	alg := s.project.Config.Algorithm
	root, err := integrity.Root(alg, records)
	if err != nil {
		return nil, err
	}

	files := make([]model.FileRecord, len(records))
	copy(files, records)
	model.SortRecords(files)

	m := &model.Manifest{MerkleRoot: root, Algorithm: alg, Files: files}
	if m.Checksum, err = integrity.ManifestChecksum(m); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.project.ManifestsDir(), 0755); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("create manifests dir: %v", err)
	}
	if err := fsutil.WriteJSON(s.manifestPath(root), m); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("write manifest: %v", err)
	}

	rec := &model.LockRecord{
		MerkleRoot:  root,
		Algorithm:   alg,
		GeneratedAt: s.project.Clock.Now().UTC(),
		FileCount:   len(files),
	}
	if err := fsutil.WriteJSON(s.project.LockRecordPath(), rec); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("write lock record: %v", err)
	}
	s.log.Info("lock record updated", map[string]any{"merkle_root": string(root), "file_count": rec.FileCount})
	return rec, nil
}

// Manifests lists the roots of every stored manifest.
func (s *Store) Manifests() ([]model.Digest, error) {
	entries, err := os.ReadDir(s.project.ManifestsDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("list manifests: %v", err)
	}
	var roots []model.Digest
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		roots = append(roots, model.Digest(name[:len(name)-len(".json")]))
	}
	return roots, nil
}

func (s *Store) manifestPath(root model.Digest) string {
	return filepath.Join(s.project.ManifestsDir(), string(root)+".json")
}
