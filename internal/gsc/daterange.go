package gsc

import (
	"fmt"
	"time"

	"searchlens/internal/domain"
)

const dateLayout = "2006-01-02"

// ParseDate parses a calendar date in the service's YYYY-MM-DD form.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// FilterDateRange keeps rows whose "date" dimension falls inside [start, end]
// inclusive. Comparison is by calendar date, never by instant, so timezone
// offsets cannot shift a boundary day out of range. Rows without a parseable
// date are dropped.
func FilterDateRange(rows []domain.SemanticRow, start, end time.Time) []domain.SemanticRow {
	startDay := start.Format(dateLayout)
	endDay := end.Format(dateLayout)
	out := make([]domain.SemanticRow, 0, len(rows))
	for _, row := range rows {
		d, ok := row.Dimensions["date"]
		if !ok {
			continue
		}
		if _, err := time.Parse(dateLayout, d); err != nil {
			continue
		}
		// YYYY-MM-DD sorts lexicographically in date order.
		if d >= startDay && d <= endDay {
			out = append(out, row)
		}
	}
	return out
}
