package usecase

import (
	"time"

	"adsync/internal/domain"
)

// SegmentWeekly splits [start, end] into the platform's native 7-day
// reporting windows: contiguous, non-overlapping, oldest first, each exactly
// 7 days except possibly the last, which is clamped to end. Both bounds are
// treated as whole dates. Getting this wrong double-counts spend, so it
// stays a pure function with no hidden state.
func SegmentWeekly(start, end time.Time) []domain.ReportingWindow {
	start = truncateToDay(start)
	end = truncateToDay(end)

	if end.Before(start) {
		return nil
	}

	var windows []domain.ReportingWindow
	for cursor := start; !cursor.After(end); cursor = cursor.AddDate(0, 0, 7) {
		windowEnd := cursor.AddDate(0, 0, 6)
		if windowEnd.After(end) {
			windowEnd = end
		}
		windows = append(windows, domain.ReportingWindow{Start: cursor, End: windowEnd})
	}

	return windows
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
