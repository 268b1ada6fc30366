package model

import (
	"sort"
	"time"
)

// FileRecord describes one tracked file as observed by a scan.
// Path is project-relative, slash-separated and NFC-normalized.
type FileRecord struct {
	Path    string    `json:"path"`
	Digest  Digest    `json:"digest,omitempty"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Manifest is the approved file set a lock record refers to.
// It is stored content-addressed by MerkleRoot.
type Manifest struct {
	MerkleRoot Digest       `json:"merkle_root"`
	Algorithm  Algorithm    `json:"algorithm"`
	Files      []FileRecord `json:"files"`
	Checksum   Digest       `json:"checksum"`
}

// Index returns the manifest files keyed by path.
func (m *Manifest) Index() map[string]FileRecord {
	idx := make(map[string]FileRecord, len(m.Files))
	for _, f := range m.Files {
		idx[f.Path] = f
	}
	return idx
}

// TotalSize sums the sizes of all files.
func TotalSize(records []FileRecord) int64 {
	var n int64
	for _, r := range records {
		n += r.Size
	}
	return n
}

// SortRecords orders records by path in place.
func SortRecords(records []FileRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
}
