package flexiroll

import "sync"

// recordBuffer is a pooled scratch buffer holding one Record's formatted
// bytes. It is the unit both the sync and async write frontends pass
// around: sync formats straight into one borrowed from bufPool and returns
// it immediately after Write; async formats into one, pushes it into the
// ring, and frees it back to the pool only once the consumer goroutine (or
// an overwriting producer) is done with it.
type recordBuffer struct {
	b    []byte
	pool *bufPool

	// kind and done are set only on the sentinel buffers async.go pushes to
	// request a flush or shutdown; ordinary record buffers leave both zero.
	kind sentinel
	done chan struct{}
}

func (r *recordBuffer) reset() {
	r.b = r.b[:0]
	r.kind = sentinelNone
	r.done = nil
}

func (r *recordBuffer) Write(p []byte) (int, error) {
	r.b = append(r.b, p...)
	return len(p), nil
}

func (r *recordBuffer) free() {
	r.pool.put(r)
}

// bufPool hands out recordBuffers pre-sized to cap, reused across writes via
// sync.Pool so steady-state logging does no per-record heap allocation.
type bufPool struct {
	p   *sync.Pool
	cap int
}

func newBufPool(capacityHint int) *bufPool {
	if capacityHint <= 0 {
		capacityHint = 200
	}
	bp := &bufPool{cap: capacityHint}
	bp.p = &sync.Pool{
		New: func() interface{} {
			return &recordBuffer{b: make([]byte, 0, bp.cap)}
		},
	}
	return bp
}

func (bp *bufPool) get() *recordBuffer {
	buf := bp.p.Get().(*recordBuffer)
	buf.reset()
	buf.pool = bp
	return buf
}

func (bp *bufPool) put(buf *recordBuffer) {
	bp.p.Put(buf)
}
