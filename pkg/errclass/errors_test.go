package errclass_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/docseal/docseal/pkg/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealError_Error(t *testing.T) {
	err := errclass.ErrLockConflict.WithMessage("project is locked by pid 42")
	assert.Equal(t, "E_LOCK_CONFLICT: project is locked by pid 42", err.Error())
}

func TestSealError_Error_WithoutMessage(t *testing.T) {
	err := &errclass.SealError{Code: "E_TEST_ERROR"}
	assert.Equal(t, "E_TEST_ERROR", err.Error())
}

func TestSealError_Is(t *testing.T) {
	err := errclass.ErrLockConflict.WithMessage("specific message")
	require.True(t, errors.Is(err, errclass.ErrLockConflict))
	require.False(t, errors.Is(err, errclass.ErrPathEscape))
}

func TestSealError_IsClass(t *testing.T) {
	err := errclass.ErrPathEscape.WithMessagef("%s escapes root", "../x")
	assert.True(t, errors.Is(err, errclass.ErrIOFailure))
	assert.False(t, errors.Is(err, errclass.ErrNotFound))

	// a class root never matches a finer code
	assert.False(t, errors.Is(errclass.ErrIOFailure, errclass.ErrPathEscape))
}

func TestSealError_IsThroughWrap(t *testing.T) {
	err := fmt.Errorf("load lock: %w", errclass.ErrConfigMalformed.WithMessage("bad json"))
	assert.True(t, errors.Is(err, errclass.ErrConfigMalformed))
}

func TestSealError_IsStandardError(t *testing.T) {
	err := errclass.ErrNameInvalid.WithMessage("test")
	require.False(t, errors.Is(err, errors.New("some error")))
	require.False(t, errors.Is(err, nil))
}

func TestSealError_WithMessageKeepsClass(t *testing.T) {
	err := errclass.ErrRequiredMissing.WithMessage("docs/API.md")
	assert.Equal(t, errclass.ClassValidationMismatch, err.Class)
	assert.Empty(t, errclass.ErrRequiredMissing.Message, "base error should have no message")
}

func TestBreakError(t *testing.T) {
	err := fmt.Errorf("open audit log: %w", &errclass.BreakError{Sequence: 4, Reason: "prev digest mismatch"})
	require.True(t, errors.Is(err, errclass.ErrIntegrityBreak))

	var be *errclass.BreakError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, int64(4), be.Sequence)
	assert.Contains(t, err.Error(), "entry 4")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, errclass.ExitOK, errclass.ExitCode(nil))
	assert.Equal(t, errclass.ExitIntegrity, errclass.ExitCode(&errclass.BreakError{Sequence: 1}))
	assert.Equal(t, errclass.ExitMismatch, errclass.ExitCode(errclass.ErrRequiredMissing))
	assert.Equal(t, errclass.ExitFailure, errclass.ExitCode(errclass.ErrNotFound))
	assert.Equal(t, errclass.ExitFailure, errclass.ExitCode(errors.New("boom")))
}
