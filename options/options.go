// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package options

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/poiesic/embedfill/core"
	"github.com/poiesic/embedfill/query"
)

// Recognized option keys.
const (
	KeyBatchSize           = "batch_size"
	KeyTerminationTimeSecs = "termination_time_secs"
	KeyWhereClause         = "where_clause"
	KeyProjectionColumns   = "projection_columns"
	KeyMLOptions           = "ml_options"
)

// Defaults applied when a key is absent.
const (
	DefaultBatchSize           = 80000
	DefaultTerminationTimeSecs = 82800
	DefaultWhereClause         = "TRUE"
	DefaultMLOptions           = "STRUCT(TRUE AS flatten_json_output)"
)

// Config is the fully resolved configuration of a run.
// It is immutable once Resolve returns.
type Config struct {
	// BatchSize caps the number of rows submitted to the backend per iteration.
	BatchSize int

	// TerminationTime is the wall-clock budget measured from the start of the run.
	TerminationTime time.Duration

	// WhereClause is the filter as written by the caller.
	WhereClause string

	// Where is the parsed form of WhereClause.
	Where query.Predicate

	// ProjectionColumns lists the carried-through columns. Nil means all columns.
	ProjectionColumns []string

	// MLOptions is the backend options expression, passed to the backend unchanged.
	MLOptions string
}

// DefaultConfig returns the configuration selected by an empty options document.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:       DefaultBatchSize,
		TerminationTime: DefaultTerminationTimeSecs * time.Second,
		WhereClause:     DefaultWhereClause,
		Where:           query.True,
		MLOptions:       DefaultMLOptions,
	}
}

// Resolve parses a JSON options document and merges it over the defaults.
// An empty string is treated as "{}". Unrecognized keys are ignored.
// Every failure is a *ConfigurationError.
func Resolve(optionsString string) (*Config, error) {
	raw, err := parseDocument(optionsString)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	if v, ok := raw[KeyBatchSize]; ok {
		n, err := parseInt(KeyBatchSize, v)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, newConfigurationError(KeyBatchSize, "Invalid batch_size. It must be a positive integer.")
		}
		cfg.BatchSize = n
	}

	if v, ok := raw[KeyTerminationTimeSecs]; ok {
		n, err := parseInt(KeyTerminationTimeSecs, v)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, newConfigurationError(KeyTerminationTimeSecs,
				"Invalid termination_time_secs. It must be a non-negative integer.")
		}
		cfg.TerminationTime = time.Duration(n) * time.Second
	}

	if v, ok := raw[KeyWhereClause]; ok {
		s, err := parseString(KeyWhereClause, v)
		if err != nil {
			return nil, err
		}
		where, err := query.ParsePredicate(s)
		if err != nil {
			return nil, &ConfigurationError{
				Key:     KeyWhereClause,
				Message: fmt.Sprintf("Invalid where_clause. %v", err),
				cause:   err,
			}
		}
		cfg.WhereClause = s
		cfg.Where = where
	}

	if v, ok := raw[KeyProjectionColumns]; ok {
		columns, err := parseStrings(KeyProjectionColumns, v)
		if err != nil {
			return nil, err
		}
		cfg.ProjectionColumns, err = resolveProjection(columns)
		if err != nil {
			return nil, err
		}
	}

	if v, ok := raw[KeyMLOptions]; ok {
		s, err := parseString(KeyMLOptions, v)
		if err != nil {
			return nil, err
		}
		cfg.MLOptions = s
	}

	for key := range raw {
		if !isRecognized(key) {
			slog.Debug("ignoring unrecognized option", "key", key)
		}
	}

	return cfg, nil
}

func parseDocument(optionsString string) (map[string]json.RawMessage, error) {
	if len(bytes.TrimSpace([]byte(optionsString))) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(optionsString), &raw); err != nil || raw == nil {
		return nil, &ConfigurationError{Message: "Unable to parse options_string as JSON", cause: err}
	}
	return raw, nil
}

// parseInt accepts JSON numbers with an integral value.
func parseInt(key string, v json.RawMessage) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return 0, typeError(key, "integer")
	}
	num, ok := value.(json.Number)
	if !ok {
		return 0, typeError(key, "integer")
	}
	if i, err := num.Int64(); err == nil {
		if i > math.MaxInt32 || i < math.MinInt32 {
			return 0, typeError(key, "integer")
		}
		return int(i), nil
	}
	f, err := num.Float64()
	if err != nil || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, typeError(key, "integer")
	}
	return int(f), nil
}

func parseString(key string, v json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err != nil || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return "", typeError(key, "string")
	}
	return s, nil
}

func parseStrings(key string, v json.RawMessage) ([]string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil || items == nil {
		return nil, typeError(key, "array of strings")
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, err := parseString(key, item)
		if err != nil {
			return nil, typeError(key, "array of strings")
		}
		out[i] = s
	}
	return out, nil
}

func resolveProjection(columns []string) ([]string, error) {
	if len(columns) == 0 || (len(columns) == 1 && columns[0] == core.Wildcard) {
		return nil, nil
	}
	for _, c := range columns {
		if err := core.ValidateColumnName(c); err != nil {
			return nil, &ConfigurationError{
				Key:     KeyProjectionColumns,
				Message: fmt.Sprintf("Invalid projection_columns. %q is not a valid column name.", c),
				cause:   err,
			}
		}
	}
	return columns, nil
}

func isRecognized(key string) bool {
	switch key {
	case KeyBatchSize, KeyTerminationTimeSecs, KeyWhereClause, KeyProjectionColumns, KeyMLOptions:
		return true
	default:
		return false
	}
}

func typeError(key, typeName string) error {
	article := "a"
	if typeName == "integer" || typeName == "array of strings" {
		article = "an"
	}
	return newConfigurationError(key, fmt.Sprintf("Invalid %s. It must be %s %s.", key, article, typeName))
}

// IsConfigurationError reports whether err is a configuration error.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
