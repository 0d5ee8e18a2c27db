package gsc

import (
	"encoding/json"

	"searchlens/internal/domain"
)

// The backend's payloads are positional arrays whose nesting depth is not
// stable across procedures or over time. Three shapes are observed:
//
//	A: payload[0] is the row list                 [[row, row, ...], meta...]
//	B: an extra singleton layer appears, around
//	   each row or around the whole row list      [[[row], [row], ...], meta...]
//	C: the payload itself is the row list         [row, row, ...]
//
// Decode tries the node itself, then its first slot, in a fixed order. Rows
// are recognized structurally (a list whose elements are lists), never by
// index arithmetic on the payload, so metadata tails do not break decoding.
// Unwrapping is capped: beyond two levels, the payload is declared
// undecodable rather than guessed at.

const maxUnwrap = 2

// Decode extracts analytics rows (each row itself a list of slots) from an
// inner payload.
func Decode(payload json.RawMessage) ([][]any, error) {
	root, err := decodeList(payload)
	if err != nil {
		return nil, err
	}
	node := root
	for depth := 0; depth <= maxUnwrap; depth++ {
		// Shape C: the node is the row list itself. Checked before the
		// first-slot lookahead so a per-row-wrapped list is taken whole
		// instead of its first element passing alone.
		if rows, ok := asRowList(node); ok {
			return rows, nil
		}
		// Shape A/B: the row list hides one level down.
		if len(node) > 0 {
			if first, ok := node[0].([]any); ok {
				if rows, ok := asRowList(first); ok {
					return rows, nil
				}
			}
		}
		// Unwrap a singleton and try again.
		if len(node) != 1 {
			break
		}
		inner, ok := node[0].([]any)
		if !ok {
			break
		}
		node = inner
	}
	return nil, domain.Errorf(domain.RpcDecodeError, "payload matches no known row shape")
}

// DecodeFlat extracts rows whose slots are scalars (site and sitemap
// listings), where the analytics row predicate would reject every row.
func DecodeFlat(payload json.RawMessage) ([][]any, error) {
	root, err := decodeList(payload)
	if err != nil {
		return nil, err
	}
	node := root
	for depth := 0; depth <= maxUnwrap; depth++ {
		if rows, ok := asFlatRowList(node); ok {
			return rows, nil
		}
		if len(node) > 0 {
			if first, ok := node[0].([]any); ok {
				if rows, ok := asFlatRowList(first); ok {
					return rows, nil
				}
			}
		}
		if len(node) != 1 {
			break
		}
		inner, ok := node[0].([]any)
		if !ok {
			break
		}
		node = inner
	}
	return nil, domain.Errorf(domain.RpcDecodeError, "payload matches no known list shape")
}

func decodeList(payload json.RawMessage) ([]any, error) {
	var root any
	if err := json.Unmarshal(payload, &root); err != nil {
		return nil, domain.Wrap(domain.RpcDecodeError, "inner payload is not JSON", err)
	}
	list, ok := root.([]any)
	if !ok {
		return nil, domain.Errorf(domain.RpcDecodeError, "inner payload is not a list")
	}
	return list, nil
}

// asRowList accepts a candidate as the analytics row list when it is
// non-empty and every element is itself a non-empty list containing at least
// one nested list (the dimension-info or a metric slot). A singleton wrapper
// around the whole list (one flavor of shape B) is unwrapped.
func asRowList(candidate []any) ([][]any, bool) {
	if len(candidate) == 1 {
		if inner, ok := candidate[0].([]any); ok {
			if rows, ok := plainRowList(inner); ok {
				return rows, true
			}
		}
	}
	return plainRowList(candidate)
}

// plainRowList requires every element to be a row, unwrapping the other
// flavor of shape B: a row arriving inside its own single-element list.
func plainRowList(candidate []any) ([][]any, bool) {
	if len(candidate) == 0 {
		return nil, false
	}
	rows := make([][]any, 0, len(candidate))
	for _, el := range candidate {
		row, ok := el.([]any)
		if !ok {
			return nil, false
		}
		if len(row) == 1 {
			if inner, ok := row[0].([]any); ok && looksLikeRow(inner) {
				rows = append(rows, inner)
				continue
			}
		}
		if !looksLikeRow(row) {
			return nil, false
		}
		rows = append(rows, row)
	}
	return rows, true
}

// looksLikeRow requires at least one nested list slot (the dimension-info or
// a metric slot), which distinguishes an analytics row from a metadata tuple
// of scalars. Slots must bottom out in scalars: a candidate whose slots
// contain further lists is a row list, not a row.
func looksLikeRow(row []any) bool {
	if len(row) == 0 {
		return false
	}
	sawSlot := false
	for _, slot := range row {
		list, ok := slot.([]any)
		if !ok {
			continue
		}
		sawSlot = true
		for _, cell := range list {
			if _, nested := cell.([]any); nested {
				return false
			}
		}
	}
	return sawSlot
}

// asFlatRowList accepts a candidate when every element is a list of scalars.
func asFlatRowList(candidate []any) ([][]any, bool) {
	if len(candidate) == 0 {
		return nil, false
	}
	rows := make([][]any, 0, len(candidate))
	for _, el := range candidate {
		row, ok := el.([]any)
		if !ok || len(row) == 0 {
			return nil, false
		}
		for _, slot := range row {
			if _, nested := slot.([]any); nested {
				return nil, false
			}
		}
		rows = append(rows, row)
	}
	return rows, true
}
