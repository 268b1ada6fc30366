package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// SnapshotID is the unique identifier for a snapshot: <unix_ms>-<rand8hex>
type SnapshotID string

// NewSnapshotID generates a new unique snapshot ID.
func NewSnapshotID(now time.Time) SnapshotID {
	var randBytes [4]byte
	if _, err := rand.Read(randBytes[:]); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return SnapshotID(fmt.Sprintf("%013d-%s", now.UnixMilli(), hex.EncodeToString(randBytes[:])))
}

// ShortID returns the first 8 characters for display.
func (id SnapshotID) ShortID() string {
	s := string(id)
	if len(s) >= 8 {
		return s[:8]
	}
	return s
}

// String returns the full snapshot ID as string.
func (id SnapshotID) String() string {
	return string(id)
}

// ManifestEntry is one archived file.
type ManifestEntry struct {
	Path   string `json:"relative_path"`
	Digest Digest `json:"digest"`
	Size   int64  `json:"size"`
}

// SnapshotManifest is the on-disk snapshot metadata.
type SnapshotManifest struct {
	ID          SnapshotID      `json:"snapshot_id"`
	CreatedAt   time.Time       `json:"created_at"`
	Note        string          `json:"note,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Algorithm   Algorithm       `json:"algorithm"`
	Compression string          `json:"compression"`
	Archive     string          `json:"archive"`
	LockRoot    Digest          `json:"lock_root,omitempty"`
	TreeRoot    Digest          `json:"tree_root"`
	TotalSize   int64           `json:"total_size"`
	Files       []ManifestEntry `json:"files"`
	Checksum    Digest          `json:"checksum"`
}

// HasTag reports whether the snapshot carries tag.
func (m *SnapshotManifest) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// IntentRecord tracks in-progress snapshot creation for crash diagnostics.
type IntentRecord struct {
	SnapshotID SnapshotID `json:"snapshot_id"`
	StartedAt  time.Time  `json:"started_at"`
	PID        int        `json:"pid"`
}

// RetentionPolicy configures which snapshots survive a prune.
// A snapshot is kept if it matches any rule.
type RetentionPolicy struct {
	KeepMinSnapshots int           `json:"keep_min_snapshots" yaml:"keep_min_snapshots"`
	KeepMinAge       time.Duration `json:"keep_min_age" yaml:"keep_min_age"`
	KeepTags         []string      `json:"keep_tags,omitempty" yaml:"keep_tags,omitempty"`
}

// PrunePlan lists the snapshots a prune would delete.
type PrunePlan struct {
	ID         string          `json:"plan_id"`
	CreatedAt  time.Time       `json:"created_at"`
	Policy     RetentionPolicy `json:"policy"`
	Protected  []SnapshotID    `json:"protected"`
	ToDelete   []SnapshotID    `json:"to_delete"`
	FreedBytes int64           `json:"freed_bytes"`
}
