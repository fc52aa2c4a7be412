package flexiroll

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexiroll/flexiroll/rotatefile"
)

// rawFormat writes just the message, with no timestamp or level prefix, so
// scenario assertions can compare against the exact literal written.
func rawFormat(out io.Writer, now *DeferredNow, record Record) error {
	_, err := io.WriteString(out, record.Message)
	return err
}

func readTrimmed(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.TrimRight(string(data), "\n")
}

func TestScenarioNumbersNoAppendThreeWrites(t *testing.T) {
	dir := t.TempDir()
	// rawFormat lines are 4 bytes ("ONE\n", "TWO\n"), so a 3-byte budget is
	// exceeded by every single line and each write after the first rotates.
	s, err := NewBuilder(dir, "app").
		Truncate().
		RotateBySize(3).
		Direct(rawFormat).
		Build()
	require.NoError(t, err)
	defer s.Shutdown()

	now := NewDeferredNow()
	require.NoError(t, s.Write(now, Record{Level: InfoLevel, Message: "ONE"}))
	require.NoError(t, s.Flush())
	assert.Equal(t, "ONE", readTrimmed(t, filepath.Join(dir, "app_rCURRENT.log")))
	assert.NoFileExists(t, filepath.Join(dir, "app_r00000.log"))

	require.NoError(t, s.Write(NewDeferredNow(), Record{Level: InfoLevel, Message: "TWO"}))
	require.NoError(t, s.Flush())
	assert.Equal(t, "ONE", readTrimmed(t, filepath.Join(dir, "app_r00000.log")))
	assert.Equal(t, "TWO", readTrimmed(t, filepath.Join(dir, "app_rCURRENT.log")))

	require.NoError(t, s.Write(NewDeferredNow(), Record{Level: InfoLevel, Message: "THREE"}))
	require.NoError(t, s.Flush())
	assert.Equal(t, "ONE", readTrimmed(t, filepath.Join(dir, "app_r00000.log")))
	assert.Equal(t, "TWO", readTrimmed(t, filepath.Join(dir, "app_r00001.log")))
	assert.Equal(t, "THREE", readTrimmed(t, filepath.Join(dir, "app_rCURRENT.log")))
}

func TestScenarioNumbersAppendSixWrites(t *testing.T) {
	dir := t.TempDir()
	// rawFormat lines are 4 to 6 bytes long, so with a 7-byte budget the
	// size is exceeded after every second line.
	s, err := NewBuilder(dir, "app").
		RotateBySize(7).
		Direct(rawFormat).
		Build()
	require.NoError(t, err)
	defer s.Shutdown()

	for _, msg := range []string{"ONE", "TWO", "THREE", "FOUR", "FIVE", "SIX"} {
		require.NoError(t, s.Write(NewDeferredNow(), Record{Level: InfoLevel, Message: msg}))
	}
	require.NoError(t, s.Flush())

	assert.Equal(t, "ONE\nTWO", readTrimmed(t, filepath.Join(dir, "app_r00000.log")))
	assert.Equal(t, "THREE\nFOUR", readTrimmed(t, filepath.Join(dir, "app_r00001.log")))
	assert.Equal(t, "FIVE\nSIX", readTrimmed(t, filepath.Join(dir, "app_rCURRENT.log")))
}

func TestScenarioNumbersRestartSurvivesMissingIntermediates(t *testing.T) {
	dir := t.TempDir()
	build := func() *Sink {
		s, err := NewBuilder(dir, "app").RotateBySize(7).Direct(rawFormat).Build()
		require.NoError(t, err)
		return s
	}

	s := build()
	for _, msg := range []string{"ONE", "TWO", "THREE", "FOUR", "FIVE", "SIX"} {
		require.NoError(t, s.Write(NewDeferredNow(), Record{Level: InfoLevel, Message: msg}))
	}
	require.NoError(t, s.Shutdown())

	require.NoError(t, os.Remove(filepath.Join(dir, "app_rCURRENT.log")))
	require.NoError(t, os.Remove(filepath.Join(dir, "app_r00001.log")))

	s2 := build()
	for _, msg := range []string{"THREE", "FOUR", "FIVE", "SIX"} {
		require.NoError(t, s2.Write(NewDeferredNow(), Record{Level: InfoLevel, Message: msg}))
	}
	require.NoError(t, s2.Flush())
	defer s2.Shutdown()

	assert.Equal(t, "ONE\nTWO", readTrimmed(t, filepath.Join(dir, "app_r00000.log")))
	assert.Equal(t, "THREE\nFOUR", readTrimmed(t, filepath.Join(dir, "app_r00001.log")))
	assert.Equal(t, "FIVE\nSIX", readTrimmed(t, filepath.Join(dir, "app_rCURRENT.log")))
}

func TestScenarioTimestampsNoAppendThreeWrites(t *testing.T) {
	if testing.Short() {
		t.Skip("sleeps across second boundaries; skipped under -short")
	}
	dir := t.TempDir()
	s, err := NewBuilder(dir, "app").
		Truncate().
		NameWithTimestamps(0).
		RotateByAge(rotatefile.NewAge(rotatefile.AgeSecond)).
		Direct(rawFormat).
		Build()
	require.NoError(t, err)
	defer s.Shutdown()

	require.NoError(t, s.Write(NewDeferredNow(), Record{Level: InfoLevel, Message: "ONE"}))
	require.NoError(t, s.Flush())
	rotated, _ := filepath.Glob(filepath.Join(dir, "app_r2*.log"))
	assert.Empty(t, rotated)

	time.Sleep(1200 * time.Millisecond)
	require.NoError(t, s.Write(NewDeferredNow(), Record{Level: InfoLevel, Message: "TWO"}))
	require.NoError(t, s.Flush())
	rotated, _ = filepath.Glob(filepath.Join(dir, "app_r2*.log"))
	assert.Len(t, rotated, 1)
	assert.Equal(t, "TWO", readTrimmed(t, filepath.Join(dir, "app_rCURRENT.log")))

	time.Sleep(1200 * time.Millisecond)
	require.NoError(t, s.Write(NewDeferredNow(), Record{Level: InfoLevel, Message: "THREE"}))
	require.NoError(t, s.Flush())
	rotated, _ = filepath.Glob(filepath.Join(dir, "app_r2*.log"))
	assert.Len(t, rotated, 2)
	assert.Equal(t, "THREE", readTrimmed(t, filepath.Join(dir, "app_rCURRENT.log")))
}

func TestScenarioMultiThreadedCleanupRetentionLimits(t *testing.T) {
	if testing.Short() {
		t.Skip("writes a large volume of log lines; skipped under -short")
	}
	dir := t.TempDir()
	s, err := NewBuilder(dir, "app").
		NameWithTimestamps(0).
		RotateBySize(600_000).
		KeepLogAndCompressedFiles(2, 5).
		Build()
	require.NoError(t, err)

	const goroutines = 5
	const linesPerGoroutine = 20000

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < linesPerGoroutine; i++ {
				_ = s.Write(NewDeferredNow(), Record{
					Level:   InfoLevel,
					Target:  "worker",
					Message: fmt.Sprintf("goroutine %d processed line %d of its workload", g, i),
				})
			}
		}(g)
	}
	wg.Wait()
	require.NoError(t, s.Shutdown())

	logs, err := filepath.Glob(filepath.Join(dir, "app_r2*.log"))
	require.NoError(t, err)
	gzips, err := filepath.Glob(filepath.Join(dir, "app_r2*.log.gz"))
	require.NoError(t, err)

	assert.Len(t, logs, 2)
	assert.Len(t, gzips, 5)
}

func TestScenarioResetCompatibility(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	dirC := t.TempDir()

	builderA := NewBuilder(dirA, "app").AsyncWith(rawFormat, 4, 64, 0)
	s, err := builderA.Build()
	require.NoError(t, err)
	defer s.Shutdown()

	builderB := NewBuilder(dirB, "app").AsyncWith(rawFormat, 4, 64, 0)
	require.NoError(t, s.Reset(builderB))

	require.NoError(t, s.Write(NewDeferredNow(), Record{Level: InfoLevel, Message: "hello"}))
	require.NoError(t, s.Flush())
	assert.Equal(t, "hello", readTrimmed(t, filepath.Join(dirB, "app_rCURRENT.log")))

	builderC := NewBuilder(dirC, "app").Direct(rawFormat)
	err = s.Reset(builderC)
	assert.ErrorIs(t, err, ErrReset)
}

func TestSinkDropsRecordsBelowLevel(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBuilder(dir, "app").Direct(rawFormat).Level(WarnLevel).Build()
	require.NoError(t, err)
	defer s.Shutdown()

	require.NoError(t, s.Write(NewDeferredNow(), Record{Level: InfoLevel, Message: "skip-me"}))
	require.NoError(t, s.Write(NewDeferredNow(), Record{Level: ErrorLevel, Message: "keep-me"}))
	require.NoError(t, s.Flush())

	assert.Equal(t, "keep-me", readTrimmed(t, filepath.Join(dir, "app_rCURRENT.log")))
}

func TestSinkShutdownIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBuilder(dir, "app").Direct(rawFormat).Build()
	require.NoError(t, err)
	require.NoError(t, s.Shutdown())
	require.NoError(t, s.Shutdown())
}

func TestSinkShutdownIsIdempotentAsync(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBuilder(dir, "app").AsyncWith(rawFormat, 4, 64, 0).Build()
	require.NoError(t, err)
	require.NoError(t, s.Shutdown())
	require.NoError(t, s.Shutdown())
}
