package flexiroll

import (
	"github.com/pkg/errors"

	"github.com/flexiroll/flexiroll/rotatefile"
)

// WriteModeKind tags which write frontend a Builder assembles.
type WriteModeKind uint8

const (
	// Direct formats each Record into a pooled buffer outside the lock and
	// writes it to the active file under a mutex. Flushing is left to an
	// explicit Sink.Flush call.
	Direct WriteModeKind = iota
	// BufferAndFlush writes like Direct and then calls Flush on the backing
	// file after every write, at the cost of a flush per write.
	BufferAndFlush
	// BufferDontFlush writes exactly like Direct, leaving flushing to an
	// explicit Sink.Flush call; outside Async there is no flush interval.
	BufferDontFlush
	// Async hands formatted records to a bounded ring consumed by a single
	// background goroutine, so callers never block on file I/O. Under
	// sustained overload the ring drops the oldest queued record rather
	// than blocking the caller.
	Async
)

// WriteMode pairs a WriteModeKind with the settings relevant to it.
type WriteMode struct {
	Kind WriteModeKind

	// Format renders a Record to bytes. Required for every Kind.
	Format FormatFunc

	// Async-only fields.
	RingSizeExp     uint64 // ring holds 2^RingSizeExp slots, 1 <= exp <= 16
	MessageCapacity int    // bytes pre-allocated per pooled buffer
	FlushInterval   durationSeconds
}

type durationSeconds = int

// Builder assembles a Sink from a FileSpec, a rotation Criterion, a naming
// and cleanup policy, and a write mode. It favors a fluent struct over
// functional options, since Sink construction has enough interdependent
// required fields that bare options over a zero-value Logger stopped
// fitting.
type Builder struct {
	spec        rotatefile.FileSpec
	criterion   rotatefile.Criterion
	naming      rotatefile.Naming
	cleanup     rotatefile.Cleanup
	append      bool
	mode        WriteMode
	level       Level
	queueDepth  int
	symlinkPath string
}

// NewBuilder starts a Builder targeting the given directory and basename.
// Defaults: append mode, size criterion at 10MiB, numbered naming, no
// cleanup, Direct write mode with PlainFormat, InfoLevel gating.
func NewBuilder(directory, basename string) *Builder {
	return &Builder{
		spec:      rotatefile.FileSpec{Directory: directory, Basename: basename},
		criterion: rotatefile.SizeCriterion(10 * 1024 * 1024),
		naming:    rotatefile.Naming{Kind: rotatefile.NamingNumbers},
		append:    true,
		mode:      WriteMode{Kind: Direct, Format: PlainFormat},
		level:     InfoLevel,
	}
}

// Discriminant disambiguates sinks that would otherwise share a directory
// and basename (e.g. one per shard or worker id).
func (b *Builder) Discriminant(d string) *Builder {
	b.spec.Discriminant = d
	return b
}

// Suffix overrides the default "log" file extension.
func (b *Builder) Suffix(s string) *Builder {
	b.spec.Suffix = s
	return b
}

// RotateBySize rotates once the active file exceeds maxBytes.
func (b *Builder) RotateBySize(maxBytes uint64) *Builder {
	b.criterion = rotatefile.SizeCriterion(maxBytes)
	return b
}

// RotateByAge rotates on the given calendar boundary.
func (b *Builder) RotateByAge(age rotatefile.Age) *Builder {
	b.criterion = rotatefile.AgeCriterion(age)
	return b
}

// RotateByAgeOrSize rotates on whichever of the two criteria fires first.
func (b *Builder) RotateByAgeOrSize(age rotatefile.Age, maxBytes uint64) *Builder {
	b.criterion = rotatefile.AgeOrSizeCriterion(age, maxBytes)
	return b
}

// NameWithNumbers rotates to 5-digit zero-padded numeric suffixes (the
// default).
func (b *Builder) NameWithNumbers() *Builder {
	b.naming = rotatefile.Naming{Kind: rotatefile.NamingNumbers}
	return b
}

// NameWithTimestamps rotates to ISO8601-ish timestamp suffixes formatted at
// the given UTC offset (seconds east of UTC).
func (b *Builder) NameWithTimestamps(utcOffsetSeconds int) *Builder {
	b.naming = rotatefile.Naming{Kind: rotatefile.NamingTimestamps, UTCOffsetSeconds: utcOffsetSeconds}
	return b
}

// KeepLogFiles retains at most n uncompressed rotated files, deleting older
// ones in the background.
func (b *Builder) KeepLogFiles(n int) *Builder {
	b.cleanup = rotatefile.Cleanup{Kind: rotatefile.CleanupKeepLogFiles, KeepLogs: n}
	return b
}

// KeepCompressedFiles compresses every rotated file and retains at most n
// of the resulting .gz files.
func (b *Builder) KeepCompressedFiles(n int) *Builder {
	b.cleanup = rotatefile.Cleanup{Kind: rotatefile.CleanupKeepCompressedFiles, KeepGzips: n}
	return b
}

// KeepLogAndCompressedFiles retains both uncompressed and compressed
// rotated files up to independent limits.
func (b *Builder) KeepLogAndCompressedFiles(keepLogs, keepGzips int) *Builder {
	b.cleanup = rotatefile.Cleanup{Kind: rotatefile.CleanupKeepLogAndCompressedFiles, KeepLogs: keepLogs, KeepGzips: keepGzips}
	return b
}

// RetentionQueueDepth bounds the background retention worker's channel.
// Only meaningful when a Cleanup policy is set.
func (b *Builder) RetentionQueueDepth(n int) *Builder {
	b.queueDepth = n
	return b
}

// Truncate rotates a pre-existing CURRENT file away to its rotated name on
// open instead of appending to it, so writing starts in an empty CURRENT
// file.
func (b *Builder) Truncate() *Builder {
	b.append = false
	return b
}

// CreateSymlink keeps path pointing at the active CURRENT file, created on
// Build and repointed after every rotation. Best effort; failures are
// reported only through the diagnostic channel, never returned to callers.
// A no-op on Windows.
func (b *Builder) CreateSymlink(path string) *Builder {
	b.symlinkPath = path
	return b
}

// Direct selects the Direct write mode with the given formatter.
func (b *Builder) Direct(format FormatFunc) *Builder {
	b.mode = WriteMode{Kind: Direct, Format: format}
	return b
}

// BufferAndFlushWith selects BufferAndFlush with the given formatter.
func (b *Builder) BufferAndFlushWith(format FormatFunc) *Builder {
	b.mode = WriteMode{Kind: BufferAndFlush, Format: format}
	return b
}

// BufferDontFlushWith selects BufferDontFlush with the given formatter.
func (b *Builder) BufferDontFlushWith(format FormatFunc) *Builder {
	b.mode = WriteMode{Kind: BufferDontFlush, Format: format}
	return b
}

// AsyncWith selects the Async write mode. ringSizeExp sizes the bounded
// ring at 2^ringSizeExp slots (the ring constructor accepts 1..16); messageCapacity
// is the initial capacity each pooled buffer pre-allocates; flushIntervalSeconds,
// if positive, starts a background timer that flushes the backing file on
// that cadence.
func (b *Builder) AsyncWith(format FormatFunc, ringSizeExp uint64, messageCapacity, flushIntervalSeconds int) *Builder {
	b.mode = WriteMode{
		Kind:            Async,
		Format:          format,
		RingSizeExp:     ringSizeExp,
		MessageCapacity: messageCapacity,
		FlushInterval:   flushIntervalSeconds,
	}
	return b
}

// Level sets the minimum Level the Sink admits; Records below it are
// dropped before formatting.
func (b *Builder) Level(lvl Level) *Builder {
	b.level = lvl
	return b
}

// Build validates the accumulated configuration and constructs the Sink.
func (b *Builder) Build() (*Sink, error) {
	if b.spec.Directory == "" {
		return nil, joinSentinel(ErrWriterSpec, errors.New("directory must not be empty"))
	}
	if b.spec.Basename == "" {
		return nil, joinSentinel(ErrWriterSpec, errors.New("basename must not be empty"))
	}
	if b.mode.Format == nil {
		return nil, joinSentinel(ErrWriterSpec, errors.New("write mode requires a FormatFunc"))
	}
	if b.mode.Kind == Async && (b.mode.RingSizeExp == 0 || b.mode.RingSizeExp > 16) {
		return nil, joinSentinel(ErrWriterSpec, errors.Errorf("ring size exponent %d must be in [1,16]", b.mode.RingSizeExp))
	}

	var retention *rotatefile.Retention
	if b.cleanup.Kind != rotatefile.CleanupNever {
		retention = rotatefile.NewRetention(b.spec, b.cleanup, b.queueDepth)
	}

	state, err := rotatefile.NewState(rotatefile.Config{
		Spec:        b.spec,
		Criterion:   b.criterion,
		Naming:      b.naming,
		Cleanup:     b.cleanup,
		Append:      b.append,
		Retention:   retention,
		SymlinkPath: b.symlinkPath,
	})
	if err != nil {
		if retention != nil {
			retention.Shutdown()
		}
		return nil, errors.Wrap(err, "build sink")
	}

	return newSink(state, b.mode, b.level), nil
}
