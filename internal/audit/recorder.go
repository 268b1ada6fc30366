package audit

import "github.com/docseal/docseal/pkg/model"

// Recorder is the write side of the log that mutating components need.
type Recorder interface {
	Append(kind model.EventKind, payload map[string]any) (*model.AuditEntry, error)
}

var _ Recorder = (*Log)(nil)
