package flexiroll

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/flexiroll/flexiroll/rotatefile"
)

// Sink is a rotating file write target. Records below its configured Level
// are dropped before formatting. It is safe to call from any goroutine.
type Sink struct {
	state *rotatefile.State
	mode  WriteMode
	level Level
	pool  *bufPool

	// sync-mode only.
	mu sync.Mutex

	// async-mode only.
	async *asyncFrontend

	shutdown atomic.Bool
}

func newSink(state *rotatefile.State, mode WriteMode, level Level) *Sink {
	s := &Sink{
		state: state,
		mode:  mode,
		level: level,
		pool:  newBufPool(mode.MessageCapacity),
	}
	if mode.Kind == Async {
		s.async = newAsyncFrontend(state, mode)
	}
	runtime.SetFinalizer(s, finalizeSink)
	return s
}

// finalizeSink is the runtime.SetFinalizer callback backstopping Shutdown: a
// Sink dropped without an explicit Shutdown/Close still releases its async
// consumer goroutine and retention worker once the garbage collector finds
// it unreachable. Shutdown is idempotent, so this is a no-op if the caller
// already shut the Sink down explicitly.
func finalizeSink(s *Sink) {
	_ = s.Shutdown()
}

// MaxLogLevel reports the minimum Level this Sink admits.
func (s *Sink) MaxLogLevel() Level { return s.level }

// Write formats record with the Sink's configured FormatFunc and writes the
// result, rotating first if due. Records below the Sink's Level are
// dropped without formatting. now is shared across every Sink writing the
// same dispatched record so they agree on one captured instant.
func (s *Sink) Write(now *DeferredNow, record Record) error {
	if !s.level.Enabled(record.Level) {
		return nil
	}

	buf := s.pool.get()
	if err := s.mode.Format(buf, now, record); err != nil {
		buf.free()
		return joinSentinel(ErrFormat, err)
	}
	buf.b = append(buf.b, '\n')

	if s.mode.Kind == Async {
		s.async.push(buf)
		return nil
	}

	s.mu.Lock()
	_, err := s.state.Write(buf.b)
	shouldFlush := s.mode.Kind == BufferAndFlush
	s.mu.Unlock()
	buf.free()

	if err != nil {
		return wrapIO("write record", err)
	}
	if shouldFlush {
		if err := s.state.Flush(); err != nil {
			return wrapIO("flush after write", err)
		}
	}
	return nil
}

// Flush makes buffered writes visible without closing the active file. In
// async mode it blocks until every record queued before the call has been
// consumed.
func (s *Sink) Flush() error {
	if s.mode.Kind == Async {
		return s.async.pushSentinel(sentinelFlush, nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Flush()
}

// Sync escalates past Flush to a full fsync of the active file. Not called
// implicitly by Write, Flush, or Shutdown: callers opt into the stronger
// guarantee explicitly when they need it.
func (s *Sink) Sync() error {
	if s.mode.Kind == Async {
		if err := s.Flush(); err != nil {
			return err
		}
	}
	return s.state.Sync()
}

// CurrentFilename returns the path of the file currently open for writing.
func (s *Sink) CurrentFilename() string {
	return s.state.CurrentFilename()
}

// ValidateLogs is a test hook: expected is a slice of 3-substring tuples,
// one per line the active file is expected to hold in order, each matched
// by substring containment; after the last expected line the file must be
// at EOF.
func (s *Sink) ValidateLogs(expected [][3]string) error {
	return s.state.ValidateLogs(expected)
}

// Reset tears down the current write mode and retention worker and
// reinitializes the Sink from builder. A builder with a different
// WriteModeKind is rejected with ErrReset; the FormatFunc is not compared,
// so a builder with a different FormatFunc is accepted and its format is
// used from then on. Writes issued after Reset returns land on the newly
// built file.
func (s *Sink) Reset(builder *Builder) error {
	if builder.mode.Kind != s.mode.Kind {
		return joinSentinel(ErrReset, errors.New("write mode kind must match current sink"))
	}

	if err := s.Shutdown(); err != nil {
		eprintErr(codeLogFile, "reset: shutdown of previous configuration reported errors", err)
	}

	fresh, err := builder.Build()
	if err != nil {
		return errors.Wrap(err, "reset")
	}
	// fresh is discarded once its fields are adopted below; clear its
	// finalizer so a GC of the now-unreachable fresh doesn't shut down the
	// state/async resources s just took ownership of out from under it.
	runtime.SetFinalizer(fresh, nil)

	s.state = fresh.state
	s.mode = fresh.mode
	s.level = fresh.level
	s.pool = fresh.pool
	s.async = fresh.async
	s.shutdown.Store(false)
	runtime.SetFinalizer(s, finalizeSink)
	return nil
}

// Shutdown flushes and stops any background workers (the async consumer
// goroutine, the retention worker), then closes the active file. Idempotent:
// a second call is a no-op.
func (s *Sink) Shutdown() error {
	if s.shutdown.Swap(true) {
		return nil
	}
	runtime.SetFinalizer(s, nil)

	var errs error

	if s.mode.Kind == Async && s.async != nil {
		if err := s.async.stop(); err != nil {
			errs = multierr.Append(errs, errors.Wrap(err, "stop async frontend"))
		}
	} else {
		s.mu.Lock()
		flushErr := s.state.Flush()
		s.mu.Unlock()
		if flushErr != nil {
			errs = multierr.Append(errs, errors.Wrap(flushErr, "flush before shutdown"))
		}
	}

	if err := s.state.Close(); err != nil {
		errs = multierr.Append(errs, errors.Wrap(err, "close active file"))
	}
	return errs
}

// Close is an alias for Shutdown, so *Sink satisfies io.Closer for callers
// that prefer to defer a Close over a Shutdown.
func (s *Sink) Close() error {
	return s.Shutdown()
}
