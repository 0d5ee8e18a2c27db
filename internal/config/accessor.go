package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// GetByPath reads a value by dotted path, e.g. "google.browser".
func GetByPath(cfg *Config, path string) (any, error) {
	m, err := toMap(cfg)
	if err != nil {
		return nil, err
	}
	node := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%q is not an object", path)
		}
		node, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("unknown config key %q", path)
		}
	}
	return node, nil
}

// SetByPath writes a value by dotted path and re-validates. The string value
// is coerced to the field's JSON type.
func SetByPath(cfg *Config, path, value string) error {
	m, err := toMap(cfg)
	if err != nil {
		return err
	}
	parts := strings.Split(path, ".")
	node := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(map[string]any)
		if !ok {
			return fmt.Errorf("unknown config key %q", path)
		}
		node = next
	}
	leaf := parts[len(parts)-1]
	current, ok := node[leaf]
	if !ok {
		return fmt.Errorf("unknown config key %q", path)
	}
	coerced, err := coerce(value, current)
	if err != nil {
		return fmt.Errorf("config key %q: %w", path, err)
	}
	node[leaf] = coerced

	updated, err := fromMap(m)
	if err != nil {
		return err
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	*cfg = *updated
	return nil
}

// ListPaths returns every leaf path with its current value, sorted.
func ListPaths(cfg *Config) ([]string, error) {
	m, err := toMap(cfg)
	if err != nil {
		return nil, err
	}
	var out []string
	walk("", m, &out)
	sort.Strings(out)
	return out, nil
}

func walk(prefix string, node map[string]any, out *[]string) {
	for key, value := range node {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if child, ok := value.(map[string]any); ok {
			walk(path, child, out)
			continue
		}
		*out = append(*out, fmt.Sprintf("%s = %v", path, value))
	}
}

// coerce converts a string to the same JSON type as the current value.
func coerce(value string, current any) (any, error) {
	switch current.(type) {
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("want true or false, got %q", value)
		}
		return b, nil
	case float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("want a number, got %q", value)
		}
		return f, nil
	default:
		return value, nil
	}
}

func toMap(cfg *Config) (map[string]any, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return m, nil
}

func fromMap(m map[string]any) (*Config, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
