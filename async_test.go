package flexiroll

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestAsyncFrontendShutdownJoinsGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	s, err := NewBuilder(dir, "app").AsyncWith(rawFormat, 4, 64, 0).Build()
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.NoError(t, s.Write(NewDeferredNow(), Record{Level: InfoLevel, Message: "x"}))
	}
	require.NoError(t, s.Shutdown())
}

func TestAsyncFrontendFlushIntervalShutdownJoinsGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	s, err := NewBuilder(dir, "app").AsyncWith(rawFormat, 4, 64, 1).Build()
	require.NoError(t, err)
	require.NoError(t, s.Write(NewDeferredNow(), Record{Level: InfoLevel, Message: "x"}))
	require.NoError(t, s.Shutdown())
}

func TestAsyncFrontendFlushWaitsForDrain(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBuilder(dir, "app").AsyncWith(rawFormat, 4, 64, 0).Build()
	require.NoError(t, err)
	defer s.Shutdown()

	for i := 0; i < 50; i++ {
		require.NoError(t, s.Write(NewDeferredNow(), Record{Level: InfoLevel, Message: "y"}))
	}
	require.NoError(t, s.Flush())
}
