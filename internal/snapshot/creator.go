// Package snapshot creates and catalogs compressed tar snapshots of the
// tracked tree.
package snapshot

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/docseal/docseal/internal/audit"
	"github.com/docseal/docseal/internal/compression"
	"github.com/docseal/docseal/internal/integrity"
	"github.com/docseal/docseal/internal/lockstore"
	"github.com/docseal/docseal/internal/repo"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/fsutil"
	"github.com/docseal/docseal/pkg/logging"
	"github.com/docseal/docseal/pkg/model"
	"github.com/docseal/docseal/pkg/pathutil"
	"github.com/docseal/docseal/pkg/progress"
)

// ManifestFile is the metadata file inside every snapshot directory.
const ManifestFile = "manifest.json"

// Creator handles snapshot creation.
type Creator struct {
	project    *repo.Project
	scanner    *integrity.Scanner
	compressor *compression.Compressor
	recorder   audit.Recorder
	log        *logging.Logger
	progress   progress.Callback
}

// NewCreator creates a snapshot creator that records each snapshot in rec.
func NewCreator(p *repo.Project, rec audit.Recorder) (*Creator, error) {
	comp, err := compression.New(p.Config.Compression.Codec, p.Config.Compression.Level)
	if err != nil {
		return nil, err
	}
	return &Creator{
		project:    p,
		scanner:    integrity.NewScanner(p.Root, p.Config),
		compressor: comp,
		recorder:   rec,
		log:        p.Logger.WithFields(map[string]any{"component": "snapshot"}),
		progress:   progress.Noop,
	}, nil
}

// SetProgress installs a progress callback.
func (c *Creator) SetProgress(cb progress.Callback) {
	if cb == nil {
		cb = progress.Noop
	}
	c.progress = cb
}

// Create archives every tracked file. The snapshot is built in a staging
// directory and renamed into place only once complete, so a crash never
// leaves a partial snapshot visible. The caller holds the project lock.
func (c *Creator) Create(ctx context.Context, note string, tags []string) (*model.SnapshotManifest, error) {
	tags, err := c.mergeTags(tags)
	if err != nil {
		return nil, err
	}

	files, err := c.scanner.Entries(ctx)
	if err != nil {
		return nil, err
	}

	now := c.project.Clock.Now().UTC()
	id := model.NewSnapshotID(now)
	log := c.log.WithFields(map[string]any{"snapshot_id": string(id)})

	intentPath := filepath.Join(c.project.IntentsDir(), string(id)+".json")
	intent := &model.IntentRecord{SnapshotID: id, StartedAt: now, PID: os.Getpid()}
	if err := os.MkdirAll(c.project.IntentsDir(), 0755); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("create intents dir: %v", err)
	}
	if err := fsutil.WriteJSON(intentPath, intent); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("write intent: %v", err)
	}
	defer os.Remove(intentPath)

	staging := filepath.Join(c.project.TmpDir(), "snapshot-"+string(id))
	if err := os.MkdirAll(staging, 0755); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("create staging dir: %v", err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()

	alg := c.project.Config.Algorithm
	entries, err := c.writeArchive(ctx, filepath.Join(staging, c.compressor.ArchiveName()), files, alg)
	if err != nil {
		return nil, err
	}

	records := make([]model.FileRecord, len(entries))
	var total int64
	for i, e := range entries {
		records[i] = model.FileRecord{Path: e.Path, Digest: e.Digest, Size: e.Size}
		total += e.Size
	}
	treeRoot, err := integrity.Root(alg, records)
	if err != nil {
		return nil, err
	}

	var lockRoot model.Digest
	rec, err := lockstore.New(c.project).Current()
	switch {
	case err == nil:
		lockRoot = rec.MerkleRoot
	case !errors.Is(err, errclass.ErrNotFound):
		return nil, err
	}

	m := &model.SnapshotManifest{
		ID:          id,
		CreatedAt:   now,
		Note:        note,
		Tags:        tags,
		Algorithm:   alg,
		Compression: string(c.compressor.Codec),
		Archive:     c.compressor.ArchiveName(),
		LockRoot:    lockRoot,
		TreeRoot:    treeRoot,
		TotalSize:   total,
		Files:       entries,
	}
	if m.Checksum, err = integrity.SnapshotChecksum(m); err != nil {
		return nil, err
	}
	if err := fsutil.WriteJSON(filepath.Join(staging, ManifestFile), m); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("write snapshot manifest: %v", err)
	}
	if err := fsutil.FsyncTree(staging); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("sync staging tree: %v", err)
	}

	final := filepath.Join(c.project.SnapshotsDir(), string(id))
	if err := os.MkdirAll(c.project.SnapshotsDir(), 0755); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("create snapshots dir: %v", err)
	}
	if err := fsutil.RenameAndSync(staging, final); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("publish snapshot: %v", err)
	}
	committed = true

	if _, err := c.recorder.Append(model.EventSnapshot, map[string]any{
		"snapshot_id": string(id),
		"lock_root":   string(lockRoot),
		"tree_root":   string(treeRoot),
		"file_count":  len(entries),
		"total_size":  total,
		"compression": c.compressor.String(),
		"note":        note,
		"tags":        tags,
	}); err != nil {
		return nil, fmt.Errorf("record snapshot %s: %w", id, err)
	}

	log.Info("snapshot created", map[string]any{"file_count": len(entries), "total_size": total})
	return m, nil
}

// writeArchive streams files into a compressed tar at dest, digesting the
// exact bytes that go into the archive.
func (c *Creator) writeArchive(ctx context.Context, dest string, files []integrity.Entry, alg model.Algorithm) ([]model.ManifestEntry, error) {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("create archive: %v", err)
	}
	defer f.Close()

	bw := bufio.NewWriterSize(f, 1<<20)
	cw, err := c.compressor.NewWriter(bw)
	if err != nil {
		return nil, err
	}
	tw := tar.NewWriter(cw)

	prog := progress.New("snapshot", len(files), c.progress)
	entries := make([]model.ManifestEntry, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := c.addFile(tw, file, alg)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		prog.Increment(entry.Size, file.Key)
	}

	if err := tw.Close(); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("finish tar: %v", err)
	}
	if err := cw.Close(); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("finish %s stream: %v", c.compressor.Codec, err)
	}
	if err := bw.Flush(); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("flush archive: %v", err)
	}
	prog.Done("")
	return entries, nil
}

// addFile archives file under its normalized key.
func (c *Creator) addFile(tw *tar.Writer, file integrity.Entry, alg model.Algorithm) (model.ManifestEntry, error) {
	abs, rel, err := pathutil.ResolveOnDisk(c.project.Root, file.Disk)
	if err != nil {
		return model.ManifestEntry{}, err
	}
	f, err := os.Open(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return model.ManifestEntry{}, errclass.ErrNotFound.WithMessagef("%s disappeared during snapshot", rel)
	}
	if err != nil {
		return model.ManifestEntry{}, errclass.ErrIOFailure.WithMessagef("open %s: %v", rel, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return model.ManifestEntry{}, errclass.ErrIOFailure.WithMessagef("stat %s: %v", rel, err)
	}
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     rel,
		Size:     info.Size(),
		Mode:     int64(info.Mode().Perm()),
		ModTime:  info.ModTime(),
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return model.ManifestEntry{}, errclass.ErrIOFailure.WithMessagef("tar header %s: %v", rel, err)
	}

	h, err := integrity.NewHash(alg)
	if err != nil {
		return model.ManifestEntry{}, err
	}
	n, err := io.Copy(tw, io.TeeReader(io.LimitReader(f, hdr.Size), h))
	if err != nil {
		return model.ManifestEntry{}, errclass.ErrIOFailure.WithMessagef("archive %s: %v", rel, err)
	}
	if n != hdr.Size {
		return model.ManifestEntry{}, errclass.ErrIOFailure.WithMessagef("%s changed size while archiving", rel)
	}
	return model.ManifestEntry{Path: rel, Digest: integrity.FormatDigest(h.Sum(nil)), Size: n}, nil
}

func (c *Creator) mergeTags(tags []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, tag := range append(append([]string{}, c.project.Config.DefaultTags...), tags...) {
		if err := pathutil.ValidateTag(tag); err != nil {
			return nil, err
		}
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out, nil
}
