package rotatefile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRollStateSizeCriterion(t *testing.T) {
	rs := newRollState(SizeCriterion(100), 0)
	assert.False(t, rs.rotationNecessary(time.Now()))
	rs.addWritten(101)
	assert.True(t, rs.rotationNecessary(time.Now()))
}

func TestRollStateSizeCriterionSeeded(t *testing.T) {
	rs := newRollState(SizeCriterion(100), 150)
	assert.True(t, rs.rotationNecessary(time.Now()))
}

func TestRollStateResetSize(t *testing.T) {
	rs := newRollState(SizeCriterion(100), 0)
	rs.addWritten(200)
	assert.True(t, rs.rotationNecessary(time.Now()))
	rs.resetSize()
	assert.False(t, rs.rotationNecessary(time.Now()))
}

func TestAgeNecessaryDayBoundary(t *testing.T) {
	age := NewAge(AgeDay)
	yesterday := time.Now().AddDate(0, 0, -1)
	assert.True(t, age.necessary(yesterday))
	assert.False(t, age.necessary(time.Now()))
}

func TestAgeNecessaryHourBoundary(t *testing.T) {
	age := NewAge(AgeHour)
	old := time.Now().Add(-2 * time.Hour)
	assert.True(t, age.necessary(old))
}

func TestSplitAtEveryNewDayCrossesOnceAcrossSharers(t *testing.T) {
	shared := NewSplitAtEveryNewDay(0)
	shared.dayNumber.Store(nowAsYearMonthDayNumber(0) - 1)

	ageA := NewAgeEveryNewDay(shared)
	ageB := NewAgeEveryNewDay(shared)

	assert.True(t, ageA.necessary(time.Now()))
	// The second sharer observes the already-updated day number and does
	// not re-report a crossing for the same boundary.
	assert.False(t, ageB.necessary(time.Now()))
}

func TestCriterionAgeOrSizeEitherFires(t *testing.T) {
	c := AgeOrSizeCriterion(NewAge(AgeDay), 100)
	rs := newRollState(c, 0)
	rs.addWritten(101)
	assert.True(t, rs.rotationNecessary(time.Now()))

	rs2 := newRollState(c, 0)
	assert.True(t, rs2.rotationNecessary(time.Now().AddDate(0, 0, -1)))
}

func TestCleanupLimits(t *testing.T) {
	c := Cleanup{Kind: CleanupKeepLogAndCompressedFiles, KeepLogs: 3, KeepGzips: 7}
	logs, gzips := c.limits()
	assert.Equal(t, 3, logs)
	assert.Equal(t, 7, gzips)
	assert.True(t, c.doCleanup())

	assert.False(t, (Cleanup{Kind: CleanupNever}).doCleanup())
}
