package api

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestTransientWrapping(t *testing.T) {
	base := errors.New("connection refused")
	err := Transient("get rounds", base)

	require.True(t, IsTransient(err))
	require.False(t, IsValidation(err))
	require.ErrorIs(t, err, base)
	require.Equal(t, "get rounds: connection refused", err.Error())

	// already classified errors pass through untouched
	require.Same(t, err, Transient("other", err))
	v := &ValidationError{Message: "Invalid code, please try again."}
	require.Same(t, v, Transient("confirm", v).(*ValidationError))
	require.Nil(t, Transient("noop", nil))
}

func TestValidationMessage(t *testing.T) {
	wrapped := errors.Wrap(&ValidationError{Message: "bad"}, "confirm login")
	msg, ok := ValidationMessage(wrapped)
	require.True(t, ok)
	require.Equal(t, "bad", msg)

	_, ok = ValidationMessage(context.Canceled)
	require.False(t, ok)
}

func TestTerminalTaskErrorText(t *testing.T) {
	err := &TerminalTaskError{Kind: JurisdictionsFile, Message: "Missing required column: Jurisdiction"}
	require.Equal(t, "jurisdictions-file processing failed: Missing required column: Jurisdiction", err.Error())
	require.Equal(t, "task failed: x", (&TerminalTaskError{Message: "x"}).Error())
}

func TestResult(t *testing.T) {
	ok := Success(3)
	require.True(t, ok.OK())
	v, err := ok.Get()
	require.NoError(t, err)
	require.Equal(t, 3, v)

	bad := Failure[int](errors.New("boom"))
	require.False(t, bad.OK())
	require.Zero(t, bad.Value)
}

func TestAuditTypeValid(t *testing.T) {
	require.True(t, BatchComparison.Valid())
	require.False(t, AuditType("NOPE").Valid())
}
