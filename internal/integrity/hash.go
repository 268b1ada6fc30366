// Package integrity computes content digests, scans the tracked tree and
// builds the Merkle tree whose root identifies an approved state.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/zeebo/blake3"

	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/model"
)

// DigestSize is the byte length of every supported digest.
const DigestSize = 32

// NewHash returns a fresh hash.Hash for alg.
func NewHash(alg model.Algorithm) (hash.Hash, error) {
	switch alg {
	case model.AlgorithmSHA256:
		return sha256.New(), nil
	case model.AlgorithmBLAKE3:
		return blake3.New(), nil
	}
	return nil, errclass.ErrConfigMalformed.WithMessagef("unsupported algorithm %q", alg)
}

// Sum digests data with alg.
func Sum(alg model.Algorithm, data []byte) (model.Digest, error) {
	h, err := NewHash(alg)
	if err != nil {
		return "", err
	}
	h.Write(data)
	return FormatDigest(h.Sum(nil)), nil
}

// FormatDigest hex-encodes raw digest bytes.
func FormatDigest(raw []byte) model.Digest {
	return model.Digest(hex.EncodeToString(raw))
}

// ParseDigest decodes a 64-character hex digest.
func ParseDigest(d model.Digest) ([DigestSize]byte, error) {
	var out [DigestSize]byte
	raw, err := hex.DecodeString(string(d))
	if err != nil {
		return out, fmt.Errorf("parse digest %q: %w", d, err)
	}
	if len(raw) != DigestSize {
		return out, fmt.Errorf("digest is %d bytes, want %d", len(raw), DigestSize)
	}
	copy(out[:], raw)
	return out, nil
}

// ValidDigest reports whether d is a well-formed lowercase hex digest.
func ValidDigest(d model.Digest) bool {
	if len(d) != 2*DigestSize {
		return false
	}
	for _, c := range d {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
