package core

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// NormalizeValue converts driver and decoder values into the value set carried by Row.
// Integers of every width become int64, floats become float64 and numeric
// slices become []float32.
func NormalizeValue(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, int64, float64, bool, []float32:
		return val, nil
	case time.Time:
		return val.UTC(), nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, val)
		}
		return int64(val), nil
	case float32:
		return float64(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedValue, val.String())
		}
		return f, nil
	case []float64:
		out := make([]float32, len(val))
		for i, f := range val {
			out[i] = float32(f)
		}
		return out, nil
	case []any:
		out := make([]float32, len(val))
		for i, item := range val {
			n, err := NormalizeValue(item)
			if err != nil {
				return nil, err
			}
			switch f := n.(type) {
			case int64:
				out[i] = float32(f)
			case float64:
				out[i] = float32(f)
			default:
				return nil, fmt.Errorf("%w: array element %T", ErrUnsupportedValue, item)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// NormalizeRow normalizes every value of a row in place.
func NormalizeRow(row Row) error {
	for k, v := range row {
		n, err := NormalizeValue(v)
		if err != nil {
			return fmt.Errorf("column %s: %w", k, err)
		}
		row[k] = n
	}
	return nil
}
