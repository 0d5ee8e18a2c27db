package gsc

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CodeTable maps the service's positional wire codes to semantic names. The
// codes are observed, not documented, so the table is versioned and can be
// replaced from a YAML file when the upstream encoding shifts.
type CodeTable struct {
	Version     int            `yaml:"version"`
	Dimensions  map[string]int `yaml:"dimensions"`   // semantic name -> slot code
	MetricTypes map[int]string `yaml:"metric_types"` // type code -> metric name
}

// DefaultCodeTable is the encoding observed as of mid-2025.
func DefaultCodeTable() CodeTable {
	return CodeTable{
		Version: 1,
		Dimensions: map[string]int{
			"date":    0,
			"query":   1,
			"page":    2,
			"country": 3,
			"device":  4,
		},
		MetricTypes: map[int]string{
			1: "clicks",
			2: "impressions",
			3: "ctr",
			4: "position",
		},
	}
}

// LoadCodeTable reads a replacement table from a YAML file.
func LoadCodeTable(path string) (CodeTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return CodeTable{}, fmt.Errorf("read code table: %w", err)
	}
	var t CodeTable
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return CodeTable{}, fmt.Errorf("parse code table %s: %w", path, err)
	}
	if len(t.Dimensions) == 0 || len(t.MetricTypes) == 0 {
		return CodeTable{}, fmt.Errorf("code table %s is missing dimensions or metric_types", path)
	}
	return t, nil
}

// DimensionCode resolves a semantic dimension name to its slot code.
func (t CodeTable) DimensionCode(name string) (int, bool) {
	c, ok := t.Dimensions[name]
	return c, ok
}

// MetricName resolves a metric type code to its semantic name.
func (t CodeTable) MetricName(code int) (string, bool) {
	n, ok := t.MetricTypes[code]
	return n, ok
}
