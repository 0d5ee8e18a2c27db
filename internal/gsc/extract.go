package gsc

import (
	"math"

	"searchlens/internal/domain"
)

// Extractor turns decoded positional rows into semantic rows using a
// CodeTable. Extraction is forgiving per row and strict per slot: a row that
// cannot yield every requested dimension is skipped and counted, but a metric
// is only accepted when its type code validates, so a stray float is never
// misread as a metric.
type Extractor struct {
	table CodeTable
}

func NewExtractor(table CodeTable) *Extractor {
	return &Extractor{table: table}
}

// Extract resolves each row's requested dimensions and all recognizable
// metrics. It returns the semantic rows and the count of rows skipped for
// missing dimensions.
func (e *Extractor) Extract(rows [][]any, dims []string) ([]domain.SemanticRow, int) {
	out := make([]domain.SemanticRow, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		sem, ok := e.extractRow(row, dims)
		if !ok {
			skipped++
			continue
		}
		out = append(out, sem)
	}
	return out, skipped
}

func (e *Extractor) extractRow(row []any, dims []string) (domain.SemanticRow, bool) {
	sem := domain.SemanticRow{Dimensions: make(map[string]string, len(dims))}
	for _, slot := range row {
		list, ok := slot.([]any)
		if !ok || len(list) == 0 {
			continue
		}
		switch head := list[0].(type) {
		case string, nil:
			// Dimension-info slot: values live at fixed positions.
			e.readDimensions(list, dims, sem.Dimensions)
		case float64:
			e.readMetric(head, list, &sem.Metrics)
		}
	}
	for _, name := range dims {
		if _, ok := sem.Dimensions[name]; !ok {
			return domain.SemanticRow{}, false
		}
	}
	return sem, true
}

func (e *Extractor) readDimensions(slot []any, dims []string, into map[string]string) {
	for _, name := range dims {
		code, ok := e.table.DimensionCode(name)
		if !ok || code < 0 || code >= len(slot) {
			continue
		}
		if v, ok := slot[code].(string); ok && v != "" {
			into[name] = v
		}
	}
}

// readMetric validates a candidate metric slot [typeCode, ..., value]. The
// type code must be an integral number naming a known metric, and the value
// is the first number after the code. Offset 0 is never scanned for the
// value, so a slot cannot have its code read back as its value.
func (e *Extractor) readMetric(head float64, slot []any, into *domain.MetricSet) {
	if head != math.Trunc(head) || len(slot) < 2 {
		return
	}
	name, ok := e.table.MetricName(int(head))
	if !ok {
		return
	}
	for _, v := range slot[1:] {
		if f, ok := v.(float64); ok {
			into.Set(name, f)
			return
		}
	}
}
