package flexiroll

import "io"

// PlainFormat renders "TIMESTAMP level target: message" (timestamp with
// millisecond precision and zone, level in lower case), omitting the target
// segment when Record.Target is empty. It is the Builder's default FormatFunc and
// is deliberately minimal: callers with structured output needs (JSON,
// logfmt) supply their own FormatFunc.
func PlainFormat(out io.Writer, now *DeferredNow, record Record) error {
	ts := now.Format("2006-01-02T15:04:05.000Z07:00")
	var err error
	if record.Target != "" {
		_, err = io.WriteString(out, ts+" "+record.Level.String()+" "+record.Target+": "+record.Message)
	} else {
		_, err = io.WriteString(out, ts+" "+record.Level.String()+": "+record.Message)
	}
	return err
}
