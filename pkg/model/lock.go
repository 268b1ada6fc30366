package model

import "time"

// LockRecord is the approved state of the project, stored at .docseal/lock.json.
type LockRecord struct {
	MerkleRoot  Digest    `json:"merkle_root"`
	Algorithm   Algorithm `json:"algorithm"`
	GeneratedAt time.Time `json:"generated_at"`
	FileCount   int       `json:"file_count"`
}

// HolderInfo is written next to the advisory lock file for diagnostics.
type HolderInfo struct {
	PID        int       `json:"pid"`
	Purpose    string    `json:"purpose,omitempty"`
	Nonce      string    `json:"nonce"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// SignatureMarker records which lock root was last signed.
type SignatureMarker struct {
	MerkleRoot Digest    `json:"merkle_root"`
	SignedAt   time.Time `json:"signed_at"`
	Signer     string    `json:"signer"`
	Path       string    `json:"path"`
}
