package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/roach88/ogm/internal/canon"
	"github.com/roach88/ogm/internal/graph"
)

// encodeValue converts a property value to its stored form.
//
// Each value is a single-key object naming its type, so that "1", 1 and
// 1.0 round-trip distinctly. Floats are carried as shortest decimal text
// because canonical JSON forbids float numbers.
func encodeValue(v any) (string, error) {
	checked, err := graph.CheckValue(v)
	if err != nil {
		return "", err
	}

	var wrapped map[string]any
	switch val := checked.(type) {
	case string:
		wrapped = map[string]any{"s": val}
	case int64:
		wrapped = map[string]any{"i": val}
	case bool:
		wrapped = map[string]any{"b": val}
	case float64:
		wrapped = map[string]any{"f": strconv.FormatFloat(val, 'g', -1, 64)}
	default:
		return "", fmt.Errorf("unsupported property value type %T", v)
	}

	data, err := canon.Marshal(wrapped)
	if err != nil {
		return "", fmt.Errorf("encode property value: %w", err)
	}
	return string(data), nil
}

// decodeValue reverses encodeValue.
func decodeValue(s string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var wrapped map[string]any
	if err := dec.Decode(&wrapped); err != nil {
		return nil, fmt.Errorf("decode property value: %w", err)
	}
	if len(wrapped) != 1 {
		return nil, fmt.Errorf("decode property value: expected one type tag, got %d", len(wrapped))
	}

	for tag, raw := range wrapped {
		switch tag {
		case "s":
			if str, ok := raw.(string); ok {
				return str, nil
			}
		case "b":
			if b, ok := raw.(bool); ok {
				return b, nil
			}
		case "i":
			if n, ok := raw.(json.Number); ok {
				i, err := n.Int64()
				if err != nil {
					return nil, fmt.Errorf("decode integer property: %w", err)
				}
				return i, nil
			}
		case "f":
			if str, ok := raw.(string); ok {
				f, err := strconv.ParseFloat(str, 64)
				if err != nil {
					return nil, fmt.Errorf("decode float property: %w", err)
				}
				return f, nil
			}
		}
		return nil, fmt.Errorf("decode property value: bad %q payload %v", tag, raw)
	}
	return nil, nil
}
