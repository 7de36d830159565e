package worktime_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumencrm/ledger-engine/worktime"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func at(hour, min int) time.Time {
	return time.Date(2026, time.March, 10, hour, min, 0, 0, time.UTC)
}

func ev(typ worktime.EventType, t time.Time) worktime.Event {
	return worktime.Event{
		ProjectID:  "proj-1",
		UserID:     "user-1",
		Type:       typ,
		OccurredAt: t,
	}
}

// =============================================================================
// TOTALS
// =============================================================================

func TestAggregate_Additivity(t *testing.T) {
	// GIVEN: start@09:00, hold@10:00, resume@10:30, end@11:30
	// THEN: total is 2h (09:00-10:00 plus 10:30-11:30), nothing running

	events := []worktime.Event{
		ev(worktime.EventStart, at(9, 0)),
		ev(worktime.EventHold, at(10, 0)),
		ev(worktime.EventResume, at(10, 30)),
		ev(worktime.EventEnd, at(11, 30)),
	}

	s := worktime.Aggregate(events, at(12, 0), time.UTC)

	assert.Equal(t, int64(7200), s.TotalSeconds)
	assert.False(t, s.Running())
	assert.Equal(t, int64(7200), s.LiveSeconds(at(12, 0)))
}

func TestAggregate_EmptyLog(t *testing.T) {
	s := worktime.Aggregate(nil, at(12, 0), time.UTC)

	assert.Equal(t, int64(0), s.TotalSeconds)
	assert.False(t, s.Running())
	assert.Empty(t, s.DayBreakdown)
}

func TestAggregate_RunningSegment(t *testing.T) {
	// GIVEN: start@09:00 only, evaluated at 09:45
	// THEN: running_since == 09:00 and the caller-added live total is 2700s

	events := []worktime.Event{ev(worktime.EventStart, at(9, 0))}
	now := at(9, 45)

	s := worktime.Aggregate(events, now, time.UTC)

	require.True(t, s.Running())
	assert.True(t, s.RunningSince.Equal(at(9, 0)))
	assert.Equal(t, int64(0), s.TotalSeconds)
	assert.Equal(t, int64(2700), s.LiveSeconds(now))
}

func TestAggregate_HoldThenResumeStillRunning(t *testing.T) {
	events := []worktime.Event{
		ev(worktime.EventStart, at(9, 0)),
		ev(worktime.EventHold, at(10, 0)),
		ev(worktime.EventResume, at(11, 0)),
	}
	now := at(11, 30)

	s := worktime.Aggregate(events, now, time.UTC)

	assert.Equal(t, int64(3600), s.TotalSeconds)
	require.True(t, s.Running())
	assert.True(t, s.RunningSince.Equal(at(11, 0)))
	assert.Equal(t, int64(3600+1800), s.LiveSeconds(now))
}

// =============================================================================
// DEFENSIVE REPLAY
// =============================================================================

func TestAggregate_DoubleStartIgnored(t *testing.T) {
	// A second start while open should never happen given the state
	// machine; the replay keeps the earlier open marker.
	events := []worktime.Event{
		ev(worktime.EventStart, at(9, 0)),
		ev(worktime.EventStart, at(9, 30)),
		ev(worktime.EventEnd, at(10, 0)),
	}

	s := worktime.Aggregate(events, at(12, 0), time.UTC)
	assert.Equal(t, int64(3600), s.TotalSeconds)
}

func TestAggregate_DanglingHoldIgnored(t *testing.T) {
	events := []worktime.Event{
		ev(worktime.EventHold, at(9, 0)),
		ev(worktime.EventStart, at(10, 0)),
		ev(worktime.EventEnd, at(11, 0)),
	}

	s := worktime.Aggregate(events, at(12, 0), time.UTC)
	assert.Equal(t, int64(3600), s.TotalSeconds)
	assert.False(t, s.Running())
}

func TestAggregate_UnorderedInputIsReplayedChronologically(t *testing.T) {
	events := []worktime.Event{
		ev(worktime.EventEnd, at(11, 30)),
		ev(worktime.EventStart, at(9, 0)),
		ev(worktime.EventResume, at(10, 30)),
		ev(worktime.EventHold, at(10, 0)),
	}

	s := worktime.Aggregate(events, at(12, 0), time.UTC)
	assert.Equal(t, int64(7200), s.TotalSeconds)
}

// =============================================================================
// DAY BREAKDOWN
// =============================================================================

func TestAggregate_DayBreakdown_SplitsAtMidnight(t *testing.T) {
	// GIVEN: an interval 23:30-00:30 crossing midnight
	// THEN: 1800s on each of the two days it touches

	d1 := time.Date(2026, time.March, 10, 23, 30, 0, 0, time.UTC)
	d2 := time.Date(2026, time.March, 11, 0, 30, 0, 0, time.UTC)
	events := []worktime.Event{
		ev(worktime.EventStart, d1),
		ev(worktime.EventEnd, d2),
	}

	s := worktime.Aggregate(events, d2.Add(time.Hour), time.UTC)

	require.Len(t, s.DayBreakdown, 2)
	assert.Equal(t, worktime.DaySeconds{Date: "2026-03-10", Seconds: 1800}, s.DayBreakdown[0])
	assert.Equal(t, worktime.DaySeconds{Date: "2026-03-11", Seconds: 1800}, s.DayBreakdown[1])
	assert.Equal(t, int64(3600), s.TotalSeconds)
}

func TestAggregate_DayBreakdown_IncludesOpenSegmentUpToNow(t *testing.T) {
	events := []worktime.Event{ev(worktime.EventStart, at(9, 0))}
	now := at(10, 0)

	s := worktime.Aggregate(events, now, time.UTC)

	require.Len(t, s.DayBreakdown, 1)
	assert.Equal(t, worktime.DaySeconds{Date: "2026-03-10", Seconds: 3600}, s.DayBreakdown[0])
}

func TestAggregate_DayBreakdown_MultipleSegmentsSameDayAccumulate(t *testing.T) {
	events := []worktime.Event{
		ev(worktime.EventStart, at(9, 0)),
		ev(worktime.EventHold, at(10, 0)),
		ev(worktime.EventResume, at(14, 0)),
		ev(worktime.EventEnd, at(15, 30)),
	}

	s := worktime.Aggregate(events, at(16, 0), time.UTC)

	require.Len(t, s.DayBreakdown, 1)
	assert.Equal(t, int64(3600+5400), s.DayBreakdown[0].Seconds)
}

func TestAggregate_DayBreakdown_LocalTimezoneBoundary(t *testing.T) {
	// 23:30 local in UTC+2 is 21:30 UTC; the split must follow the
	// caller-supplied location, not UTC.
	loc := time.FixedZone("UTC+2", 2*3600)
	start := time.Date(2026, time.March, 10, 21, 30, 0, 0, time.UTC) // 23:30 local
	end := start.Add(time.Hour)                                      // 00:30 local next day

	events := []worktime.Event{
		ev(worktime.EventStart, start),
		ev(worktime.EventEnd, end),
	}

	s := worktime.Aggregate(events, end.Add(time.Hour), loc)

	require.Len(t, s.DayBreakdown, 2)
	assert.Equal(t, worktime.DaySeconds{Date: "2026-03-10", Seconds: 1800}, s.DayBreakdown[0])
	assert.Equal(t, worktime.DaySeconds{Date: "2026-03-11", Seconds: 1800}, s.DayBreakdown[1])
}
