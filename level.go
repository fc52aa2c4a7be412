package flexiroll

import "fmt"

// Level is the severity of a Record. Lower values are more verbose.
//
// flexiroll does not reconfigure levels at runtime; a Sink is built with a
// fixed minimum level and Write performs a fast Enabled check before doing
// any formatting work. Dynamic level reconfiguration is a logger-bootstrap
// concern and lives above this package.
type Level int8

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	PanicLevel
	FatalLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case PanicLevel:
		return "panic"
	case FatalLevel:
		return "fatal"
	default:
		return fmt.Sprintf("level(%d)", int8(l))
	}
}

// Enabled reports whether a record at lvl should be written by a sink whose
// configured minimum level is l.
func (l Level) Enabled(lvl Level) bool {
	return lvl >= l
}
