package flexiroll

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapIOIsErrIO(t *testing.T) {
	cause := errors.New("disk full")
	err := wrapIO("write record", cause)
	assert.True(t, errors.Is(err, ErrIO))
	assert.Contains(t, err.Error(), "disk full")
}

func TestWrapIONilIsNil(t *testing.T) {
	assert.NoError(t, wrapIO("noop", nil))
}

func TestJoinSentinelPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	err := joinSentinel(ErrReset, cause)
	assert.True(t, errors.Is(err, ErrReset))
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestEprintErrFormat(t *testing.T) {
	var buf bytes.Buffer
	old := diagnosticWriter
	diagnosticWriter = &buf
	defer func() { diagnosticWriter = old }()

	eprintErr(codeRotate, "rotation failed", errors.New("eek"))
	out := buf.String()
	assert.Contains(t, out, "[flexiroll][ERRCODE::rotate]")
	assert.Contains(t, out, "rotation failed")
	assert.Contains(t, out, "eek")
}
