/*
aggregate.go - Duration totals and day breakdown from the event log

PURPOSE:
  Pure function over one member's ordered event log: total worked
  seconds, the open "running" segment if the member is currently
  started, and a per-calendar-day attribution of worked time.

KEY INSIGHT:
  The total is NEVER persisted as a live counter. A running segment is
  reported as running_since and the caller adds (now - running_since)
  for real-time display. This keeps the log the only source of truth.

ALGORITHM:
  Replay events chronologically keeping an open_since marker:
    start/resume: open the segment (defensive no-op if already open)
    hold/end:     close the segment, accumulate (defensive no-op if closed)
  A segment still open after the last event is the running segment.

DAY BREAKDOWN:
  Every closed segment - and the open segment up to now - is split at
  local-day boundaries, so an interval crossing midnight contributes
  partial seconds to each of the two days it touches.

TESTABILITY:
  "now" and the breakdown location are caller-supplied, never read
  internally.
*/
package worktime

import (
	"sort"
	"time"
)

// =============================================================================
// SUMMARY
// =============================================================================

// DaySeconds attributes worked seconds to one calendar day.
type DaySeconds struct {
	Date    string // local date, 2006-01-02
	Seconds int64
}

// Summary is the aggregate of one member's work log.
type Summary struct {
	// TotalSeconds covers closed segments only. The running segment is
	// excluded; use LiveSeconds for a real-time figure.
	TotalSeconds int64

	// RunningSince is set when the last segment is still open
	// (current status is start). Nil otherwise.
	RunningSince *time.Time

	// DayBreakdown attributes seconds to local calendar days, including
	// the open segment up to "now". Sorted by date.
	DayBreakdown []DaySeconds
}

// Running reports whether a segment is currently open.
func (s Summary) Running() bool { return s.RunningSince != nil }

// LiveSeconds is the real-time total: closed segments plus the open
// segment up to now.
func (s Summary) LiveSeconds(now time.Time) int64 {
	if s.RunningSince == nil {
		return s.TotalSeconds
	}
	return s.TotalSeconds + int64(now.Sub(*s.RunningSince)/time.Second)
}

// =============================================================================
// AGGREGATION
// =============================================================================

// Aggregate replays events into a Summary. Events may arrive in any
// order; they are replayed by OccurredAt with input order as tie-break.
// The day breakdown uses loc for day boundaries (nil means now's location).
func Aggregate(events []Event, now time.Time, loc *time.Location) Summary {
	if loc == nil {
		loc = now.Location()
	}

	ordered := make([]Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OccurredAt.Before(ordered[j].OccurredAt)
	})

	var (
		total     int64
		openSince *time.Time
		days      = map[string]int64{}
	)

	for i := range ordered {
		ev := ordered[i]
		switch ev.Type {
		case EventStart, EventResume:
			if openSince != nil {
				continue // invalid log, keep the earlier open marker
			}
			at := ev.OccurredAt
			openSince = &at
		case EventHold, EventEnd:
			if openSince == nil {
				continue // invalid log, nothing to close
			}
			total += int64(ev.OccurredAt.Sub(*openSince) / time.Second)
			splitByDay(days, *openSince, ev.OccurredAt, loc)
			openSince = nil
		}
	}

	summary := Summary{TotalSeconds: total, RunningSince: openSince}
	if openSince != nil && now.After(*openSince) {
		splitByDay(days, *openSince, now, loc)
	}

	summary.DayBreakdown = make([]DaySeconds, 0, len(days))
	for date, secs := range days {
		summary.DayBreakdown = append(summary.DayBreakdown, DaySeconds{Date: date, Seconds: secs})
	}
	sort.Slice(summary.DayBreakdown, func(i, j int) bool {
		return summary.DayBreakdown[i].Date < summary.DayBreakdown[j].Date
	})
	return summary
}

// splitByDay attributes the seconds of [from, to) to local calendar days,
// cutting the interval at each midnight it crosses.
func splitByDay(days map[string]int64, from, to time.Time, loc *time.Location) {
	cur := from.In(loc)
	end := to.In(loc)

	for cur.Before(end) {
		boundary := startOfNextDay(cur)
		segEnd := end
		if boundary.Before(end) {
			segEnd = boundary
		}
		secs := int64(segEnd.Sub(cur) / time.Second)
		if secs > 0 {
			days[cur.Format("2006-01-02")] += secs
		}
		cur = segEnd
	}
}

func startOfNextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}
