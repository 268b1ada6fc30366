package model

import "time"

// EventKind identifies the operation an audit entry records.
type EventKind string

const (
	EventLock     EventKind = "lock"
	EventHeal     EventKind = "heal"
	EventSnapshot EventKind = "snapshot"
	EventRestore  EventKind = "restore"
	EventSign     EventKind = "sign"
	EventPrune    EventKind = "prune"
)

// AuditEntry is a single line in the audit log (JSONL format).
type AuditEntry struct {
	Sequence        int64          `json:"sequence"`
	Timestamp       time.Time      `json:"timestamp"`
	EventKind       EventKind      `json:"event_kind"`
	PayloadDigest   Digest         `json:"payload_digest"`
	PrevEntryDigest Digest         `json:"prev_entry_digest"`
	EntryDigest     Digest         `json:"entry_digest"`
	Payload         map[string]any `json:"payload,omitempty"`
}

// AuditHead anchors the tail of the chain so truncation is detectable.
type AuditHead struct {
	Sequence    int64  `json:"sequence"`
	EntryDigest Digest `json:"entry_digest"`
}
