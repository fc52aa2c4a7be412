package flexiroll

import (
	"sync/atomic"
	"unsafe"

	"github.com/templexxx/cpu"
)

const falseSharingRange = cpu.X86FalseSharingRange

// bufferRing is a bounded ring for many producers, one consumer. Pushing
// onto a full slot overwrites whatever was there and frees the displaced
// *recordBuffer back to its pool; the ring only guards against memory
// corruption, not message loss or ordering, which is the trade-off async
// mode's callers accept in exchange for never blocking on file I/O.
type bufferRing struct {
	mask       uint64
	_          [falseSharingRange]byte
	writeIndex uint64
	_          [falseSharingRange]byte

	readIndex uint64

	buckets []unsafe.Pointer
}

// newBufferRing creates a ring of 2^sizeExp slots. sizeExp must be in
// [1,16].
func newBufferRing(sizeExp uint64) *bufferRing {
	if sizeExp == 0 || sizeExp > 16 {
		panic("illegal ring size")
	}
	r := &bufferRing{
		buckets: make([]unsafe.Pointer, 1<<sizeExp),
		mask:    (1 << sizeExp) - 1,
	}
	r.writeIndex = ^r.writeIndex
	return r
}

// push stores buf in the next slot, freeing whatever buffer it displaces.
// A nil buf is never pushed by this package's callers but is handled the
// same as any other payload for symmetry with pop.
func (r *bufferRing) push(buf *recordBuffer) {
	idx := atomic.AddUint64(&r.writeIndex, 1) & r.mask
	old := atomic.SwapPointer(&r.buckets[idx], unsafe.Pointer(buf))
	if old != nil {
		(*recordBuffer)(old).free()
	}
}

// tryPop pops the next buffer, returning (nil, false) if none is available.
// A reader that producers have lapped skips ahead to the oldest slot not yet
// overwritten, so the surviving buffers come out in push order.
func (r *bufferRing) tryPop() (*recordBuffer, bool) {
	pushed := atomic.LoadUint64(&r.writeIndex) + 1
	if r.readIndex >= pushed {
		return nil, false
	}
	if size := r.mask + 1; pushed-r.readIndex > size {
		r.readIndex = pushed - size
	}

	idx := r.readIndex & r.mask
	data := atomic.SwapPointer(&r.buckets[idx], nil)
	if data == nil {
		return nil, false
	}

	r.readIndex++
	return (*recordBuffer)(data), true
}
