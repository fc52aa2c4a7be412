package rotatefile

import (
	"time"

	"github.com/templexxx/tsc"
)

// nowLocalOrUTC is rotatefile's own copy of the root package's clock choke
// point: it cannot import the root package (which imports rotatefile) to
// share it, so the same small helper is duplicated here rather than
// restructured around the cycle.
func nowLocalOrUTC() time.Time {
	t := time.Unix(0, tsc.UnixNano())
	if t.Location() == nil {
		return t.UTC()
	}
	return t
}

// yearMonthDayNumber packs a date as year*10000 + month*100 + day, letting
// AgeEveryNewDay compare calendar days with a single integer compare.
func yearMonthDayNumber(t time.Time) int32 {
	y, m, d := t.Date()
	return int32(y)*10000 + int32(m)*100 + int32(d)
}

// nowAsYearMonthDayNumber returns yearMonthDayNumber for "now" observed at
// the given UTC offset (seconds east of UTC).
func nowAsYearMonthDayNumber(utcOffsetSeconds int) int32 {
	now := nowLocalOrUTC().In(time.FixedZone("", utcOffsetSeconds))
	return yearMonthDayNumber(now)
}
