package domain

import "time"

// CookieRecord is one cookie read from the browser store. Immutable once read.
type CookieRecord struct {
	Name      string
	Value     string
	Domain    string
	Path      string
	Secure    bool
	HTTPOnly  bool
	SameSite  string
	ExpiresAt time.Time
}

// MetricSet holds the four search-performance metrics. Nil means the metric was
// absent from the row; it is never conflated with zero, because a slot only
// counts once its type code validated.
type MetricSet struct {
	Clicks      *float64
	Impressions *float64
	CTR         *float64
	Position    *float64
}

func ptr(v float64) *float64 { return &v }

// Set assigns a metric by its semantic name. Unknown names are ignored.
func (m *MetricSet) Set(name string, v float64) {
	switch name {
	case "clicks":
		m.Clicks = ptr(v)
	case "impressions":
		m.Impressions = ptr(v)
	case "ctr":
		m.CTR = ptr(v)
	case "position":
		m.Position = ptr(v)
	}
}

// SemanticRow is the unit returned to tool callers: resolved dimension values
// plus validated metrics.
type SemanticRow struct {
	Dimensions map[string]string
	Metrics    MetricSet
}
