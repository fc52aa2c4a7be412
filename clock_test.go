package flexiroll

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeferredNowCapturesOnce(t *testing.T) {
	d := NewDeferredNow()
	first := d.Now()
	time.Sleep(2 * time.Millisecond)
	second := d.Now()
	assert.Equal(t, first, second)
}

func TestDeferredNowFormat(t *testing.T) {
	d := NewDeferredNow()
	s := d.Format(time.RFC3339)
	_, err := time.Parse(time.RFC3339, s)
	assert.NoError(t, err)
}

func TestYearMonthDayNumber(t *testing.T) {
	t1 := time.Date(2026, time.July, 31, 23, 59, 59, 0, time.UTC)
	t2 := time.Date(2026, time.August, 1, 0, 0, 1, 0, time.UTC)
	assert.Less(t, yearMonthDayNumber(t1), yearMonthDayNumber(t2))
	assert.Equal(t, int32(20260731), yearMonthDayNumber(t1))
}
