package embed

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/poiesic/embedfill/query"
)

// Recognized ml_options fields.
const (
	OptionFlattenJSONOutput    = "flatten_json_output"
	OptionOutputDimensionality = "output_dimensionality"
	OptionTaskType             = "task_type"
)

// Options are the parsed ml_options passed to every Embed call.
type Options struct {
	// FlattenJSONOutput must be true; results are always flattened into columns.
	FlattenJSONOutput bool
	// OutputDimensionality truncates vectors when positive.
	OutputDimensionality int
	// TaskType is forwarded to providers that support it.
	TaskType string
	// Extra holds unrecognized fields, keyed by lowercased name.
	Extra map[string]any
}

// DefaultOptions returns the options used when ml_options is empty.
func DefaultOptions() Options {
	return Options{FlattenJSONOutput: true}
}

// ParseOptions parses an ml_options expression. Both struct literals and
// JSON objects are accepted:
//
//	STRUCT(TRUE AS flatten_json_output, 256 AS output_dimensionality)
//	{"flatten_json_output": true, "output_dimensionality": 256}
func ParseOptions(input string) (Options, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return DefaultOptions(), nil
	}

	var fields map[string]any
	if strings.HasPrefix(trimmed, "{") {
		decoder := json.NewDecoder(strings.NewReader(trimmed))
		decoder.UseNumber()
		var raw map[string]any
		if err := decoder.Decode(&raw); err != nil {
			return Options{}, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
		fields = make(map[string]any, len(raw))
		for k, v := range raw {
			fields[strings.ToLower(k)] = v
		}
	} else {
		parsed, err := query.ParseStruct(trimmed)
		if err != nil {
			return Options{}, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
		}
		fields = parsed
	}

	opts := DefaultOptions()
	for name, value := range fields {
		switch name {
		case OptionFlattenJSONOutput:
			b, ok := value.(bool)
			if !ok {
				return Options{}, fmt.Errorf("%w: %s must be a boolean", ErrInvalidOptions, name)
			}
			opts.FlattenJSONOutput = b
		case OptionOutputDimensionality:
			n, err := asInt(value)
			if err != nil || n < 0 {
				return Options{}, fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidOptions, name)
			}
			opts.OutputDimensionality = n
		case OptionTaskType:
			s, ok := value.(string)
			if !ok {
				return Options{}, fmt.Errorf("%w: %s must be a string", ErrInvalidOptions, name)
			}
			opts.TaskType = strings.ToUpper(s)
		default:
			if opts.Extra == nil {
				opts.Extra = make(map[string]any)
			}
			opts.Extra[name] = value
		}
	}

	if !opts.FlattenJSONOutput {
		return Options{}, fmt.Errorf("%w: %s must be TRUE", ErrUnsupportedOption, OptionFlattenJSONOutput)
	}
	return opts, nil
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, err
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("not an integer: %T", v)
	}
}
