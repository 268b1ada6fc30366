package model

import "fmt"

// DiscrepancyKind classifies a validation finding.
type DiscrepancyKind string

const (
	DiscrepancyMissing         DiscrepancyKind = "missing"
	DiscrepancyContentMismatch DiscrepancyKind = "content_mismatch"
	DiscrepancyRequiredMissing DiscrepancyKind = "required_missing"
	DiscrepancyRequiredEmpty   DiscrepancyKind = "required_empty"
	DiscrepancyUntracked       DiscrepancyKind = "untracked"
	DiscrepancyStale           DiscrepancyKind = "stale"
	DiscrepancyRootMismatch    DiscrepancyKind = "root_mismatch"
	DiscrepancyUnlocked        DiscrepancyKind = "unlocked"
)

// Discrepancy is one difference between the approved and the current state.
type Discrepancy struct {
	Kind     DiscrepancyKind `json:"kind"`
	Path     string          `json:"path,omitempty"`
	Expected string          `json:"expected,omitempty"`
	Actual   string          `json:"actual,omitempty"`
	Message  string          `json:"message,omitempty"`
}

func (d Discrepancy) String() string {
	if d.Path == "" {
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
	if d.Message == "" {
		return fmt.Sprintf("%s: %s", d.Kind, d.Path)
	}
	return fmt.Sprintf("%s: %s (%s)", d.Kind, d.Path, d.Message)
}
