package snapshot

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/docseal/docseal/internal/integrity"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/model"
)

// Severity of a snapshot verification failure.
const (
	SeverityCritical = "critical"
	SeverityError    = "error"
)

// VerifyResult contains verification results for a single snapshot.
type VerifyResult struct {
	SnapshotID     model.SnapshotID `json:"snapshot_id"`
	ChecksumValid  bool             `json:"checksum_valid"`
	ArchivePresent bool             `json:"archive_present"`
	ContentValid   bool             `json:"content_valid"`
	TamperDetected bool             `json:"tamper_detected"`
	Severity       string           `json:"severity,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// OK reports whether every performed check passed.
func (r *VerifyResult) OK() bool { return r.Error == "" }

// Verify checks a snapshot's manifest checksum and archive presence. With
// deep set it also decompresses the archive and re-digests every file.
func (c *Catalog) Verify(ctx context.Context, id model.SnapshotID, deep bool) *VerifyResult {
	result := &VerifyResult{SnapshotID: id}

	m, err := c.Load(id)
	if err != nil {
		result.Error = err.Error()
		result.TamperDetected = errors.Is(err, errclass.ErrConfigMalformed)
		result.Severity = SeverityCritical
		return result
	}
	result.ChecksumValid = true

	if _, err := os.Stat(c.ArchivePath(m)); err != nil {
		result.Error = fmt.Sprintf("archive %s: %v", m.Archive, err)
		result.Severity = SeverityCritical
		return result
	}
	result.ArchivePresent = true

	if !deep {
		return result
	}
	if err := c.VerifyContent(ctx, m); err != nil {
		result.Error = err.Error()
		if errors.Is(err, errclass.ErrValidationMismatch) {
			result.TamperDetected = true
			result.Severity = SeverityCritical
		} else {
			result.Severity = SeverityError
		}
		return result
	}
	result.ContentValid = true
	return result
}

// VerifyContent decompresses the archive of m and checks that it holds
// exactly the manifest's files with the recorded digests.
func (c *Catalog) VerifyContent(ctx context.Context, m *model.SnapshotManifest) error {
	expected := make(map[string]model.ManifestEntry, len(m.Files))
	for _, e := range m.Files {
		expected[e.Path] = e
	}
	seen := make(map[string]bool, len(m.Files))
	records := make([]model.FileRecord, 0, len(m.Files))

	err := c.Walk(ctx, m, func(hdr *tar.Header, r io.Reader) error {
		want, ok := expected[hdr.Name]
		if !ok {
			return errclass.ErrValidationMismatch.WithMessagef("archive holds unlisted file %s", hdr.Name)
		}
		if seen[hdr.Name] {
			return errclass.ErrValidationMismatch.WithMessagef("archive holds %s twice", hdr.Name)
		}
		seen[hdr.Name] = true

		h, err := integrity.NewHash(m.Algorithm)
		if err != nil {
			return err
		}
		n, err := io.Copy(h, r)
		if err != nil {
			return errclass.ErrIOFailure.WithMessagef("read %s from archive: %v", hdr.Name, err)
		}
		got := integrity.FormatDigest(h.Sum(nil))
		if got != want.Digest || n != want.Size {
			return errclass.ErrValidationMismatch.WithMessagef("archived %s does not match its manifest digest", hdr.Name)
		}
		records = append(records, model.FileRecord{Path: hdr.Name, Digest: got, Size: n})
		return nil
	})
	if err != nil {
		return err
	}
	if len(seen) != len(expected) {
		return errclass.ErrValidationMismatch.WithMessagef("archive holds %d of %d files", len(seen), len(expected))
	}
	root, err := integrity.Root(m.Algorithm, records)
	if err != nil {
		return err
	}
	if root != m.TreeRoot {
		return errclass.ErrValidationMismatch.WithMessage("archive tree root does not match manifest")
	}
	return nil
}
