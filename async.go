package flexiroll

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/flexiroll/flexiroll/rotatefile"
)

// sentinel tags a recordBuffer as a control message rather than formatted
// record bytes. The zero value means "ordinary record".
type sentinel byte

const (
	sentinelNone sentinel = iota
	sentinelFlush
	sentinelShutdown
)

// asyncFrontend is the write path behind WriteModeKind Async: producers
// format into a pooled recordBuffer and push it onto a bufferRing; a single
// consumer goroutine owns the rotatefile.State and drains the ring,
// context-cancellable, busy-polling with a short sleep backoff when the
// ring is empty. Flush/Shutdown control messages bypass the ring entirely:
// the ring's overwrite-oldest semantics are fine for record bytes (losing
// the oldest queued line under sustained overload is the accepted
// trade-off) but would let a control message be silently displaced before
// the consumer ever saw it, deadlocking the caller waiting on it to drain.
type asyncFrontend struct {
	ring *bufferRing
	pool *bufPool

	sentinels chan *recordBuffer

	loopCtx    context.Context
	loopCancel func()
	loopWg     sync.WaitGroup

	flushTicker *time.Ticker
	tickerDone  chan struct{}
}

func newAsyncFrontend(state *rotatefile.State, mode WriteMode) *asyncFrontend {
	a := &asyncFrontend{
		ring:      newBufferRing(mode.RingSizeExp),
		pool:      newBufPool(mode.MessageCapacity),
		sentinels: make(chan *recordBuffer, 4),
	}
	a.loopCtx, a.loopCancel = context.WithCancel(context.Background())
	a.loopWg.Add(1)
	go a.consumeLoop(state)

	if mode.FlushInterval > 0 {
		a.flushTicker = time.NewTicker(time.Duration(mode.FlushInterval) * time.Second)
		a.tickerDone = make(chan struct{})
		go a.tickLoop()
	}
	return a
}

func (a *asyncFrontend) tickLoop() {
	for {
		select {
		case <-a.flushTicker.C:
			a.pushSentinel(sentinelFlush, nil)
		case <-a.tickerDone:
			return
		}
	}
}

// consumeLoop is the single consumer: it owns state exclusively, so no
// further locking is needed once a buffer is popped. Sentinels are checked
// first on every iteration and, once seen, drain every record currently
// sitting in the ring before acting, so a Flush/Shutdown caller observes
// every write issued before it was requested.
func (a *asyncFrontend) consumeLoop(state *rotatefile.State) {
	defer a.loopWg.Done()
	for {
		select {
		case <-a.loopCtx.Done():
			return
		case buf := <-a.sentinels:
			a.drainRing(state)
			shutdown := buf.kind == sentinelShutdown
			if err := state.Flush(); err != nil {
				eprintErr(codeFlush, "async flush failed", err)
			}
			close(buf.done)
			buf.free()
			if shutdown {
				return
			}
			continue
		default:
		}

		buf, ok := a.ring.tryPop()
		if !ok {
			time.Sleep(2 * time.Millisecond)
			continue
		}
		if _, err := state.Write(buf.b); err != nil {
			eprintErr(codeWrite, "async write failed", err)
		}
		buf.free()
	}
}

// drainRing writes every record currently available in the ring without
// blocking, so a just-arrived sentinel observes a ring left empty by it.
func (a *asyncFrontend) drainRing(state *rotatefile.State) {
	for {
		buf, ok := a.ring.tryPop()
		if !ok {
			return
		}
		if _, err := state.Write(buf.b); err != nil {
			eprintErr(codeWrite, "async write failed", err)
		}
		buf.free()
	}
}

// push hands a formatted record buffer to the ring. The buffer must not be
// touched by the caller afterward: it is either freed by the consumer or
// displaced and freed by a future push.
func (a *asyncFrontend) push(buf *recordBuffer) {
	a.ring.push(buf)
}

// pushSentinel enqueues a control message on the dedicated sentinel channel
// and blocks until the consumer has processed it (or the provided timeout
// elapses, if non-nil).
func (a *asyncFrontend) pushSentinel(kind sentinel, timeout <-chan time.Time) error {
	buf := a.pool.get()
	buf.kind = kind
	buf.done = make(chan struct{})

	select {
	case a.sentinels <- buf:
	case <-timeout:
		return errors.New("timed out waiting to enqueue async sentinel")
	}

	select {
	case <-buf.done:
		return nil
	case <-timeout:
		return errors.New("timed out waiting for async sentinel to drain")
	}
}

// stop tears down the consumer goroutine and ticker. Must be called at
// most once.
func (a *asyncFrontend) stop() error {
	if a.flushTicker != nil {
		a.flushTicker.Stop()
		close(a.tickerDone)
	}
	err := a.pushSentinel(sentinelShutdown, nil)
	a.loopCancel()
	a.loopWg.Wait()
	return err
}
