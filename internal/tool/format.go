package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"searchlens/internal/domain"
	"searchlens/internal/gsc"
)

// defaultDateRange is the window used when the caller gives no dates: a
// 28-day window ending three days ago, because the freshest days are not yet
// final upstream.
func defaultDateRange(now time.Time) (start, end time.Time) {
	end = now.AddDate(0, 0, -3)
	start = end.AddDate(0, 0, -27)
	return start, end
}

// resolveDateRange parses optional start/end arguments. An absent end falls
// back to the default; an absent start anchors a 28-day window to whatever end
// was resolved.
func resolveDateRange(args map[string]any, now time.Time) (time.Time, time.Time, error) {
	_, end := defaultDateRange(now)
	if s := argString(args, "end_date"); s != "" {
		t, err := gsc.ParseDate(s)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}
	start := end.AddDate(0, 0, -27)
	if s := argString(args, "start_date"); s != "" {
		t, err := gsc.ParseDate(s)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date %s is before start_date %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return start, end, nil
}

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// argInt reads an integer argument; JSON decoding hands numbers over as
// float64.
func argInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// formatRows renders semantic rows for the agent: counts as integers, CTR as
// a percentage with two decimals, position with one. Absent metrics are
// omitted rather than zeroed.
func formatRows(rows []domain.SemanticRow) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		entry := make(map[string]any, len(row.Dimensions)+4)
		for name, value := range row.Dimensions {
			entry[name] = value
		}
		m := row.Metrics
		if m.Clicks != nil {
			entry["clicks"] = int64(*m.Clicks)
		}
		if m.Impressions != nil {
			entry["impressions"] = int64(*m.Impressions)
		}
		if m.CTR != nil {
			entry["ctr_pct"] = math.Round(*m.CTR*100*100) / 100
		}
		if m.Position != nil {
			entry["position"] = math.Round(*m.Position*10) / 10
		}
		out = append(out, entry)
	}
	return out
}

// toJSON renders a tool result. Marshal failure on these plain shapes would
// be a programming error, so it is surfaced as one.
func toJSON(v any) (string, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(raw), nil
}
