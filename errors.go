package flexiroll

import (
	"errors"
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/pkg/errors"
)

// Sentinel error kinds. A caller can compare with errors.Is; wrapped causes
// (syscall errors, os.PathError, ...) are still reachable with errors.As
// because every kind is produced with github.com/pkg/errors, which preserves
// the original error in its cause chain.
var (
	ErrIO         = errors.New("flexiroll: io error")
	ErrReset      = errors.New("flexiroll: incompatible reset")
	ErrFormat     = errors.New("flexiroll: format function failed")
	ErrWriterSpec = errors.New("flexiroll: misconfigured sink")
)

// errcode is the stable diagnostic tag used in user-visible stderr lines.
type errcode uint8

const (
	codeWrite errcode = iota
	codeFlush
	codeLogFile
	codeSymlink
	codeRotate
	codeRetention
)

func (c errcode) String() string {
	switch c {
	case codeWrite:
		return "write"
	case codeFlush:
		return "flush"
	case codeLogFile:
		return "logfile"
	case codeSymlink:
		return "symlink"
	case codeRotate:
		return "rotate"
	case codeRetention:
		return "retention"
	default:
		return "unknown"
	}
}

// diagnosticWriter is where eprint* lines go. Tests may swap it to capture
// and assert on diagnostics instead of polluting test output.
var diagnosticWriter io.Writer = os.Stderr

// eprintErr writes a stable-format diagnostic line, attributing a cause, and
// never returns an error itself: diagnostics are best-effort by design.
func eprintErr(code errcode, msg string, err error) {
	fmt.Fprintf(diagnosticWriter,
		"[flexiroll][ERRCODE::%s] %s, caused by %v\nSee https://pkg.go.dev/github.com/flexiroll/flexiroll#%s\n",
		code, msg, err, code,
	)
}

// eprintMsg writes a stable-format diagnostic line without an attributed
// cause.
func eprintMsg(code errcode, msg string) {
	fmt.Fprintf(diagnosticWriter,
		"[flexiroll][ERRCODE::%s] %s\nSee https://pkg.go.dev/github.com/flexiroll/flexiroll#%s\n",
		code, msg, code,
	)
}

// wrapIO wraps err as an ErrIO with msg context, preserving the original
// cause for errors.As / errors.Unwrap chains.
func wrapIO(msg string, err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(joinSentinel(ErrIO, err), msg)
}

// joinSentinel pairs a sentinel kind with a concrete cause so errors.Is(err,
// ErrIO) keeps working after pkgerrors.Wrap adds its own frame.
func joinSentinel(sentinel, cause error) error {
	return &sentinelError{sentinel: sentinel, cause: cause}
}

type sentinelError struct {
	sentinel error
	cause    error
}

func (e *sentinelError) Error() string { return e.cause.Error() }
func (e *sentinelError) Unwrap() error { return e.cause }
func (e *sentinelError) Is(target error) bool {
	return target == e.sentinel
}
