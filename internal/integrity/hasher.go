package integrity

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/model"
	"github.com/docseal/docseal/pkg/pathutil"
)

// Hasher computes content digests of project files. It never writes.
type Hasher struct {
	Root      string
	Algorithm model.Algorithm
}

// NewHasher creates a Hasher for the project rooted at root.
func NewHasher(root string, alg model.Algorithm) *Hasher {
	return &Hasher{Root: root, Algorithm: alg}
}

// Digest streams the file at the project-relative path rel through the
// configured algorithm. Paths escaping the root are rejected with
// ErrPathEscape; unreadable files yield ErrIOFailure.
func (h *Hasher) Digest(rel string) (model.Digest, error) {
	rec, err := h.Record(rel)
	if err != nil {
		return "", err
	}
	return rec.Digest, nil
}

// Record stats and digests rel, returning its FileRecord. rel is opened
// as spelled; the record carries its normalized key.
func (h *Hasher) Record(rel string) (model.FileRecord, error) {
	return h.RecordEntry(Entry{Disk: rel})
}

// RecordEntry digests the file named e.Disk and keys the record by its
// normalized path.
func (h *Hasher) RecordEntry(e Entry) (model.FileRecord, error) {
	abs, key, err := pathutil.ResolveOnDisk(h.Root, e.Disk)
	if err != nil {
		return model.FileRecord{}, err
	}

	f, err := os.Open(abs)
	if err != nil {
		return model.FileRecord{}, openError(key, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return model.FileRecord{}, errclass.ErrIOFailure.WithMessagef("stat %s: %v", key, err)
	}
	if !info.Mode().IsRegular() {
		return model.FileRecord{}, errclass.ErrIOFailure.WithMessagef("%s is not a regular file", key)
	}

	digest, n, err := h.DigestReader(f)
	if err != nil {
		return model.FileRecord{}, errclass.ErrIOFailure.WithMessagef("read %s: %v", key, err)
	}
	return model.FileRecord{
		Path:    key,
		Digest:  digest,
		Size:    n,
		ModTime: info.ModTime().UTC(),
	}, nil
}

// DigestReader digests everything read from r and returns the byte count.
func (h *Hasher) DigestReader(r io.Reader) (model.Digest, int64, error) {
	hh, err := NewHash(h.Algorithm)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(hh, r)
	if err != nil {
		return "", n, err
	}
	return FormatDigest(hh.Sum(nil)), n, nil
}

func openError(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return errclass.ErrNotFound.WithMessagef("%s does not exist", key)
	}
	return errclass.ErrIOFailure.WithMessage(fmt.Sprintf("open %s: %v", key, err))
}
