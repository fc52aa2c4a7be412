package flexiroll

import "io"

// Record is the opaque log event handed to a Sink. It carries just enough
// to be formatted: level, target (subsystem/module name), message, and an
// optional source location. Callers own the construction of Record; a Sink
// never inspects its fields except to fast-path-skip disabled levels.
type Record struct {
	Level   Level
	Target  string
	Message string
	File    string
	Line    int
}

// FormatFunc renders a Record into out. now is the DeferredNow shared by
// every sink writing this same record, so that multiple destinations agree
// on a single captured timestamp. The frontend appends a newline after
// FormatFunc returns; FormatFunc must not write one itself.
type FormatFunc func(out io.Writer, now *DeferredNow, record Record) error
