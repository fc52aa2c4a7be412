package rotatefile

import (
	"fmt"
	"io"
	"os"
)

// errcode tags a diagnostic line with a stable, documented identifier, the
// same convention the root package uses for its own errcode. The two enums
// are intentionally separate: rotatefile is a standalone package that does
// not import the root module (the root module imports it), so it cannot
// share the root's error-reporting machinery without an import cycle.
type errcode uint8

const (
	codeFlush errcode = iota
	codeRotate
	codeRetention
	codeSymlink
)

func (c errcode) String() string {
	switch c {
	case codeFlush:
		return "flush"
	case codeRotate:
		return "rotate"
	case codeRetention:
		return "retention"
	case codeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// diagnosticWriter is where eprintErr lines go; tests may swap it.
var diagnosticWriter io.Writer = os.Stderr

// eprintErr writes a stable-format diagnostic line and never returns an
// error: diagnostics here are best-effort, matching the root package's
// eprintErr.
func eprintErr(code errcode, msg string, err error) {
	fmt.Fprintf(diagnosticWriter,
		"[flexiroll/rotatefile][ERRCODE::%s] %s, caused by %v\nSee https://pkg.go.dev/github.com/flexiroll/flexiroll/rotatefile#%s\n",
		code, msg, err, code,
	)
}
