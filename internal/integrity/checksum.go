package integrity

import (
	"crypto/sha256"
	"fmt"

	"github.com/docseal/docseal/pkg/jsonutil"
	"github.com/docseal/docseal/pkg/model"
)

// ManifestChecksum is the SHA-256 of the canonical JSON of an approved
// manifest, excluding the checksum field itself.
func ManifestChecksum(m *model.Manifest) (model.Digest, error) {
	return checksumOmit(m, "checksum")
}

// SnapshotChecksum is the SHA-256 of the canonical JSON of a snapshot
// manifest, excluding the checksum field itself.
func SnapshotChecksum(m *model.SnapshotManifest) (model.Digest, error) {
	return checksumOmit(m, "checksum")
}

func checksumOmit(v any, field string) (model.Digest, error) {
	data, err := jsonutil.CanonicalMarshalOmit(v, field)
	if err != nil {
		return "", fmt.Errorf("canonical marshal: %w", err)
	}
	sum := sha256.Sum256(data)
	return FormatDigest(sum[:]), nil
}
