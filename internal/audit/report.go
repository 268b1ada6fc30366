package audit

import (
	"time"

	"github.com/docseal/docseal/pkg/model"
)

// recentLimit bounds Report.Recent.
const recentLimit = 10

// Report summarizes the log over a time window.
type Report struct {
	TotalEntries  int                     `json:"total_entries"`
	WindowEntries int                     `json:"window_entries"`
	Since         time.Time               `json:"since,omitempty"`
	ByKind        map[model.EventKind]int `json:"by_kind"`
	FirstAt       *time.Time              `json:"first_at,omitempty"`
	LastAt        *time.Time              `json:"last_at,omitempty"`
	HeadSequence  int64                   `json:"head_sequence"`
	HeadDigest    model.Digest            `json:"head_digest,omitempty"`
	ChainVerified bool                    `json:"chain_verified"`
	Recent        []model.AuditEntry      `json:"recent"`
}

// Report counts entries at or after since (zero time means all of them).
// It only exists for a log that opened, so the chain is always verified.
func (l *Log) Report(since time.Time) *Report {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := &Report{
		TotalEntries:  len(l.entries),
		Since:         since,
		ByKind:        make(map[model.EventKind]int),
		ChainVerified: true,
	}
	var window []model.AuditEntry
	for _, e := range l.entries {
		if !since.IsZero() && e.Timestamp.Before(since) {
			continue
		}
		window = append(window, e)
		r.ByKind[e.EventKind]++
	}
	r.WindowEntries = len(window)
	if len(window) > 0 {
		first, last := window[0].Timestamp, window[len(window)-1].Timestamp
		r.FirstAt, r.LastAt = &first, &last
	}
	if n := len(l.entries); n > 0 {
		r.HeadSequence = l.entries[n-1].Sequence
		r.HeadDigest = l.entries[n-1].EntryDigest
	}

	start := 0
	if len(window) > recentLimit {
		start = len(window) - recentLimit
	}
	for i := len(window) - 1; i >= start; i-- {
		r.Recent = append(r.Recent, window[i])
	}
	return r
}
