package errclass

import (
	"errors"
	"fmt"
)

// SealError is a stable, machine-readable error code. Every code belongs
// to one of the five taxonomy classes; errors.Is matches either the exact
// code or the class root.
type SealError struct {
	Code    string
	Class   string
	Message string
}

func (e *SealError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SealError) Is(target error) bool {
	t, ok := target.(*SealError)
	if !ok {
		return false
	}
	if e.Code == t.Code {
		return true
	}
	// A class root has Code == Class.
	return t.Code == t.Class && e.Class == t.Class
}

// WithMessage returns a new SealError with the same Code but a specific message.
func (e *SealError) WithMessage(msg string) *SealError {
	return &SealError{Code: e.Code, Class: e.Class, Message: msg}
}

// WithMessagef returns a new SealError with a formatted message.
func (e *SealError) WithMessagef(format string, args ...any) *SealError {
	return &SealError{Code: e.Code, Class: e.Class, Message: fmt.Sprintf(format, args...)}
}

const (
	ClassIOFailure          = "E_IO_FAILURE"
	ClassValidationMismatch = "E_VALIDATION_MISMATCH"
	ClassIntegrityBreak     = "E_INTEGRITY_BREAK"
	ClassNotFound           = "E_NOT_FOUND"
	ClassConfigMalformed    = "E_CONFIG_MALFORMED"
)

// Class roots.
var (
	ErrIOFailure          = &SealError{Code: ClassIOFailure, Class: ClassIOFailure}
	ErrValidationMismatch = &SealError{Code: ClassValidationMismatch, Class: ClassValidationMismatch}
	ErrIntegrityBreak     = &SealError{Code: ClassIntegrityBreak, Class: ClassIntegrityBreak}
	ErrNotFound           = &SealError{Code: ClassNotFound, Class: ClassNotFound}
	ErrConfigMalformed    = &SealError{Code: ClassConfigMalformed, Class: ClassConfigMalformed}
)

// Finer codes.
var (
	ErrPathEscape        = &SealError{Code: "E_PATH_ESCAPE", Class: ClassIOFailure}
	ErrLockConflict      = &SealError{Code: "E_LOCK_CONFLICT", Class: ClassIOFailure}
	ErrNameInvalid       = &SealError{Code: "E_NAME_INVALID", Class: ClassConfigMalformed}
	ErrFormatUnsupported = &SealError{Code: "E_FORMAT_UNSUPPORTED", Class: ClassConfigMalformed}
	ErrRequiredMissing   = &SealError{Code: "E_REQUIRED_MISSING", Class: ClassValidationMismatch}
	ErrStateInvalid      = &SealError{Code: "E_STATE_INVALID", Class: ClassValidationMismatch}
)

// BreakError reports the first audit entry whose chain link fails to verify.
type BreakError struct {
	Sequence int64
	Reason   string
}

func (e *BreakError) Error() string {
	return fmt.Sprintf("%s: entry %d: %s", ClassIntegrityBreak, e.Sequence, e.Reason)
}

func (e *BreakError) Unwrap() error { return ErrIntegrityBreak }

// Process exit codes used by the CLI.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitMismatch  = 2
	ExitIntegrity = 3
)

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrIntegrityBreak):
		return ExitIntegrity
	case errors.Is(err, ErrValidationMismatch):
		return ExitMismatch
	default:
		return ExitFailure
	}
}
