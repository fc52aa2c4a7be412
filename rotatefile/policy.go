package rotatefile

import (
	"time"

	"go.uber.org/atomic"
)

// AgeKind selects the calendar granularity at which a file is considered
// "too old" and due for rotation.
type AgeKind uint8

const (
	AgeSecond AgeKind = iota
	AgeMinute
	AgeHour
	AgeDay
	// AgeEveryNewDay rotates when the wall clock crosses midnight at a
	// configured UTC offset. Unlike the other AgeKinds it is evaluated
	// against a process-wide shared atomic, not against the active file's
	// createdAt, so that independently configured sinks rotate on the same
	// boundary (see SplitAtEveryNewDay).
	AgeEveryNewDay
)

// SplitAtEveryNewDay is the shared state backing AgeEveryNewDay. Every Age
// value built with the same *SplitAtEveryNewDay (copy the pointer, not the
// struct) agrees on the last-seen day number, so sinks constructed from the
// same criterion rotate together.
type SplitAtEveryNewDay struct {
	dayNumber        *atomic.Int32
	utcOffsetSeconds int
}

// NewSplitAtEveryNewDay creates a new shared day boundary at the given UTC
// offset (seconds east of UTC).
func NewSplitAtEveryNewDay(utcOffsetSeconds int) *SplitAtEveryNewDay {
	return &SplitAtEveryNewDay{
		dayNumber:        atomic.NewInt32(nowAsYearMonthDayNumber(utcOffsetSeconds)),
		utcOffsetSeconds: utcOffsetSeconds,
	}
}

// crossedBoundary loads the shared day number, compares it against "now" at
// the configured offset, and compare-and-swaps in the new value if the day
// changed. The
// store+return-true happens at most once per actual day change across all
// sinks sharing this value: late arrivals after the store see no change and
// return false.
func (s *SplitAtEveryNewDay) crossedBoundary() bool {
	current := nowAsYearMonthDayNumber(s.utcOffsetSeconds)
	previous := s.dayNumber.Load()
	if previous == current {
		return false
	}
	return s.dayNumber.CompareAndSwap(previous, current)
}

// Age describes when Criterion's age-based rotation fires.
type Age struct {
	Kind        AgeKind
	EveryNewDay *SplitAtEveryNewDay // set iff Kind == AgeEveryNewDay
}

// NewAge builds a calendar-granularity Age (Second/Minute/Hour/Day).
func NewAge(kind AgeKind) Age { return Age{Kind: kind} }

// NewAgeEveryNewDay builds an Age that rotates at the given UTC offset's
// midnight, shared across sinks that were built from the same
// *SplitAtEveryNewDay.
func NewAgeEveryNewDay(shared *SplitAtEveryNewDay) Age {
	return Age{Kind: AgeEveryNewDay, EveryNewDay: shared}
}

// necessary reports whether createdAt has aged out, per Kind.
func (a Age) necessary(createdAt time.Time) bool {
	if a.Kind == AgeEveryNewDay {
		return a.EveryNewDay.crossedBoundary()
	}
	now := nowLocalOrUTC()
	cy, cmo, cd := createdAt.Date()
	ny, nmo, nd := now.Date()
	if cy != ny || cmo != nmo || cd != nd {
		return true
	}
	if a.Kind == AgeDay {
		return false
	}
	if createdAt.Hour() != now.Hour() {
		return true
	}
	if a.Kind == AgeHour {
		return false
	}
	if createdAt.Minute() != now.Minute() {
		return true
	}
	if a.Kind == AgeMinute {
		return false
	}
	// AgeSecond
	return createdAt.Second() != now.Second()
}

// CriterionKind tags which rotation criterion is active.
type CriterionKind uint8

const (
	CriterionSize CriterionKind = iota
	CriterionAge
	CriterionAgeOrSize
)

// Criterion is the tagged union deciding when a file is rotated.
type Criterion struct {
	Kind    CriterionKind
	MaxSize uint64 // used by CriterionSize and CriterionAgeOrSize
	Age     Age    // used by CriterionAge and CriterionAgeOrSize
}

func SizeCriterion(maxBytes uint64) Criterion {
	return Criterion{Kind: CriterionSize, MaxSize: maxBytes}
}

func AgeCriterion(age Age) Criterion {
	return Criterion{Kind: CriterionAge, Age: age}
}

func AgeOrSizeCriterion(age Age, maxBytes uint64) Criterion {
	return Criterion{Kind: CriterionAgeOrSize, Age: age, MaxSize: maxBytes}
}

// NamingKind selects the rename target scheme used on rotation.
type NamingKind uint8

const (
	NamingNumbers NamingKind = iota
	NamingTimestamps
)

// Naming pairs a NamingKind with the UTC offset used to format timestamped
// rotated names (ignored for NamingNumbers).
type Naming struct {
	Kind             NamingKind
	UTCOffsetSeconds int
}

// CleanupKind tags a Cleanup policy.
type CleanupKind uint8

const (
	CleanupNever CleanupKind = iota
	CleanupKeepLogFiles
	CleanupKeepCompressedFiles
	CleanupKeepLogAndCompressedFiles
)

// Cleanup describes retention limits for rotated files.
type Cleanup struct {
	Kind      CleanupKind
	KeepLogs  int // uncompressed rotated files to keep
	KeepGzips int // compressed rotated files to keep
}

// doCleanup reports whether any retention pass is required.
func (c Cleanup) doCleanup() bool { return c.Kind != CleanupNever }

// limits returns (keepLogs, keepGzips) normalized per Kind.
func (c Cleanup) limits() (int, int) {
	switch c.Kind {
	case CleanupKeepLogFiles:
		return c.KeepLogs, 0
	case CleanupKeepCompressedFiles:
		return 0, c.KeepGzips
	case CleanupKeepLogAndCompressedFiles:
		return c.KeepLogs, c.KeepGzips
	default:
		return 0, 0
	}
}

// rollState tracks the live counters rotationNecessary evaluates against,
// as one struct with a kind tag rather than a tagged-union type per
// Criterion kind, which is simpler to mutate in place from Go.
type rollState struct {
	kind        CriterionKind
	age         Age
	maxSize     uint64
	currentSize uint64
}

func newRollState(c Criterion, seedSize uint64) rollState {
	rs := rollState{kind: c.Kind, age: c.Age, maxSize: c.MaxSize}
	if c.Kind == CriterionSize || c.Kind == CriterionAgeOrSize {
		rs.currentSize = seedSize
	}
	return rs
}

func (rs *rollState) rotationNecessary(createdAt time.Time) bool {
	switch rs.kind {
	case CriterionSize:
		return rs.currentSize > rs.maxSize
	case CriterionAge:
		return rs.age.necessary(createdAt)
	case CriterionAgeOrSize:
		return rs.currentSize > rs.maxSize || rs.age.necessary(createdAt)
	default:
		return false
	}
}

func (rs *rollState) addWritten(n uint64) {
	if rs.kind == CriterionSize || rs.kind == CriterionAgeOrSize {
		rs.currentSize += n
	}
}

func (rs *rollState) resetSize() {
	if rs.kind == CriterionSize || rs.kind == CriterionAgeOrSize {
		rs.currentSize = 0
	}
}
