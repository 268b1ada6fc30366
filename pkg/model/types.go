package model

// Digest is a 256-bit content digest stored as lowercase hex.
type Digest string

// Algorithm names the digest function used for content and tree hashing.
type Algorithm string

const (
	AlgorithmSHA256 Algorithm = "sha256"
	AlgorithmBLAKE3 Algorithm = "blake3"
)

// DefaultAlgorithm is used when the configuration names none.
const DefaultAlgorithm = AlgorithmSHA256

// Valid reports whether a is a supported algorithm.
func (a Algorithm) Valid() bool {
	return a == AlgorithmSHA256 || a == AlgorithmBLAKE3
}

// ZeroDigest is the genesis predecessor of the first audit entry.
const ZeroDigest Digest = "0000000000000000000000000000000000000000000000000000000000000000"

// ProjectState is the approval state of a project.
type ProjectState string

const (
	StateUnlocked ProjectState = "UNLOCKED"
	StateLocked   ProjectState = "LOCKED"
	StateDrifted  ProjectState = "DRIFTED"
	StateSigned   ProjectState = "SIGNED"
)

// FormatVersion is the on-disk layout version written at init.
const FormatVersion = 1
