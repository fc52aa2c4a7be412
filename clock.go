package flexiroll

import (
	"time"

	"github.com/templexxx/tsc"
)

// DeferredNow captures "now" at most once, on first access, and returns the
// same captured instant on every later call. One DeferredNow is created per
// record dispatch and handed to every sink writing that record, so all of
// them agree on a single timestamp even though each sink formats at a
// slightly different wall-clock moment.
//
// DeferredNow is not safe for concurrent use: it belongs to exactly one
// record dispatch and is never shared across goroutines.
type DeferredNow struct {
	t       time.Time
	fetched bool
}

// NewDeferredNow constructs a DeferredNow that has not yet captured a value.
func NewDeferredNow() *DeferredNow {
	return &DeferredNow{}
}

// Now returns the captured instant, capturing it on the first call.
func (d *DeferredNow) Now() time.Time {
	if !d.fetched {
		d.t = nowLocalOrUTC()
		d.fetched = true
	}
	return d.t
}

// Format renders the captured instant with layout, a standard Go time layout
// string (see the time package's reference-time documentation).
func (d *DeferredNow) Format(layout string) string {
	return d.Now().Format(layout)
}

// nowLocalOrUTC is the single choke point every "now" in this package goes
// through. It reads the CPU timestamp counter via tsc.UnixNano rather than
// calling time.Now() directly, keeping the write-side hot path free of the
// syscall time.Now() otherwise requires on some platforms. Falls back to
// UTC if the resulting Time somehow carries no location (time.Unix never
// actually leaves Location nil, but the fallback keeps one place tests can
// swap instead of trusting that invariant silently).
func nowLocalOrUTC() time.Time {
	t := time.Unix(0, fastUnixNano())
	if t.Location() == nil {
		return t.UTC()
	}
	return t
}

// fastUnixNano reads the CPU timestamp counter directly, without a syscall.
func fastUnixNano() int64 {
	return tsc.UnixNano()
}

// yearMonthDayNumber packs a date as year*10000 + month*100 + day, used by
// the EveryNewDay rotation criterion to compare calendar days cheaply with a
// single integer compare-and-swap.
func yearMonthDayNumber(t time.Time) int32 {
	y, m, d := t.Date()
	return int32(y)*10000 + int32(m)*100 + int32(d)
}

// nowAsYearMonthDayNumber returns yearMonthDayNumber for "now" observed at
// the given UTC offset (in seconds east of UTC).
func nowAsYearMonthDayNumber(utcOffsetSeconds int) int32 {
	now := nowLocalOrUTC().In(time.FixedZone("", utcOffsetSeconds))
	return yearMonthDayNumber(now)
}
