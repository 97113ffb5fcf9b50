package view

import (
	"time"
)

type Timeframe int

const (
	TimeframeAll       Timeframe = 0
	TimeframeToday     Timeframe = 1
	TimeframeThisWeek  Timeframe = 2
	TimeframeThisMonth Timeframe = 3
	TimeframeLastMonth Timeframe = 4
)

const timeframeCount = 5

func (t Timeframe) String() string {
	switch t {
	case TimeframeAll:
		return "All Time"
	case TimeframeToday:
		return "Today"
	case TimeframeThisWeek:
		return "This Week"
	case TimeframeThisMonth:
		return "This Month"
	case TimeframeLastMonth:
		return "Last Month"
	}

	return "Unknown"
}

// Next cycles through the timeframes.
func (t Timeframe) Next() Timeframe {
	return (t + 1) % timeframeCount
}

// TimeframeToDateRange returns [start, end) for tf relative to now. ok is false for TimeframeAll.
func TimeframeToDateRange(tf Timeframe, now time.Time) (start, end time.Time, ok bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch tf {
	case TimeframeToday:
		return today, today.AddDate(0, 0, 1), true
	case TimeframeThisWeek:
		// ISO week starts Monday.
		offset := int(today.Weekday())
		if offset == 0 {
			offset = 7
		} // Sunday -> 7

		start = today.AddDate(0, 0, -offset+1)

		return start, start.AddDate(0, 0, 7), true
	case TimeframeThisMonth:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0), true
	case TimeframeLastMonth:
		start = time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0), true
	}

	return time.Time{}, time.Time{}, false
}
