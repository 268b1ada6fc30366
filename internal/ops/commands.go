// Package ops is the typed operations surface. Each operation is a command
// value; the Dispatcher runs it against an explicit project context and
// takes care of the project lock and the audit chain for mutating ones.
package ops

import "time"

// Command is one docseal operation. The set is closed: only the types in
// this file implement it.
type Command interface {
	// Name is the operation name used as the lock purpose and in logs.
	Name() string
	// Mutating reports whether the command writes project state.
	Mutating() bool
	command()
}

// Validate compares the tree with the lock.
type Validate struct{ Fast bool }

// Heal regenerates missing required files.
type Heal struct{}

// Lock approves the current tree. Without Update it refuses to replace an
// existing lock.
type Lock struct{ Update bool }

// Snapshot archives the tracked tree.
type Snapshot struct {
	Note string
	Tags []string
}

// Restore extracts a snapshot into Target, or into the project when empty.
type Restore struct {
	SnapshotID string
	Target     string
}

// AuditVerify walks the whole audit chain.
type AuditVerify struct{}

// Sign hands the lock root to the configured signer.
type Sign struct{}

// Status reports the project state machine position.
type Status struct{ Fast bool }

// Prune deletes snapshots outside the retention policy.
type Prune struct{ DryRun bool }

// AuditLog lists the last Limit entries; 0 lists all.
type AuditLog struct{ Limit int }

// AuditReport summarizes the log since Since.
type AuditReport struct{ Since time.Time }

// Diff lists file changes against the approved manifest.
type Diff struct{}

// ListSnapshots lists snapshots, newest first.
type ListSnapshots struct{ Tag string }

// IntegrityReport hashes the tree and sets it next to the lock.
type IntegrityReport struct{}

func (Validate) Name() string        { return "validate" }
func (Heal) Name() string            { return "heal" }
func (Lock) Name() string            { return "lock" }
func (Snapshot) Name() string        { return "snapshot" }
func (Restore) Name() string         { return "restore" }
func (AuditVerify) Name() string     { return "audit-verify" }
func (Sign) Name() string            { return "sign" }
func (Status) Name() string          { return "status" }
func (Prune) Name() string           { return "prune" }
func (AuditLog) Name() string        { return "audit-log" }
func (AuditReport) Name() string     { return "audit-report" }
func (Diff) Name() string            { return "diff" }
func (ListSnapshots) Name() string   { return "snapshot-list" }
func (IntegrityReport) Name() string { return "integrity-report" }

func (Validate) Mutating() bool        { return false }
func (Heal) Mutating() bool            { return true }
func (Lock) Mutating() bool            { return true }
func (Snapshot) Mutating() bool        { return true }
func (Restore) Mutating() bool         { return true }
func (AuditVerify) Mutating() bool     { return false }
func (Sign) Mutating() bool            { return true }
func (Status) Mutating() bool          { return false }
func (p Prune) Mutating() bool         { return !p.DryRun }
func (AuditLog) Mutating() bool        { return false }
func (AuditReport) Mutating() bool     { return false }
func (Diff) Mutating() bool            { return false }
func (ListSnapshots) Mutating() bool   { return false }
func (IntegrityReport) Mutating() bool { return false }

func (Validate) command()        {}
func (Heal) command()            {}
func (Lock) command()            {}
func (Snapshot) command()        {}
func (Restore) command()         {}
func (AuditVerify) command()     {}
func (Sign) command()            {}
func (Status) command()          {}
func (Prune) command()           {}
func (AuditLog) command()        {}
func (AuditReport) command()     {}
func (Diff) command()            {}
func (ListSnapshots) command()   {}
func (IntegrityReport) command() {}
