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

package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/embedfill/core"
)

// nullTag marks a NULL value. Non-null values are tagged with their core.ColumnType.
const nullTag byte = 0

// MarshalSchema serializes a Schema to bytes.
func MarshalSchema(schema *core.Schema) []byte {
	size := varint.Int.Size(len(schema.Columns))
	for _, c := range schema.Columns {
		size += ord.String.Size(c.Name) + varint.Int.Size(int(c.Type))
	}
	size += varint.Int.Size(len(schema.Key))
	for _, k := range schema.Key {
		size += ord.String.Size(k)
	}

	buf := make([]byte, size)
	n := varint.Int.Marshal(len(schema.Columns), buf)
	for _, c := range schema.Columns {
		n += ord.String.Marshal(c.Name, buf[n:])
		n += varint.Int.Marshal(int(c.Type), buf[n:])
	}
	n += varint.Int.Marshal(len(schema.Key), buf[n:])
	for _, k := range schema.Key {
		n += ord.String.Marshal(k, buf[n:])
	}
	return buf
}

// UnmarshalSchema deserializes a Schema from bytes.
func UnmarshalSchema(data []byte) (*core.Schema, error) {
	count, n, err := unmarshalLength(data)
	if err != nil {
		return nil, err
	}
	schema := &core.Schema{Columns: make([]core.Column, 0, count)}
	for range count {
		name, m, err := ord.String.Unmarshal(data[n:])
		if err != nil {
			return nil, wrapSerialization(err)
		}
		n += m
		typ, m, err := varint.Int.Unmarshal(data[n:])
		if err != nil {
			return nil, wrapSerialization(err)
		}
		n += m
		schema.Columns = append(schema.Columns, core.Column{Name: name, Type: core.ColumnType(typ)})
	}

	keyCount, m, err := unmarshalLength(data[n:])
	if err != nil {
		return nil, err
	}
	n += m
	for range keyCount {
		k, m, err := ord.String.Unmarshal(data[n:])
		if err != nil {
			return nil, wrapSerialization(err)
		}
		n += m
		schema.Key = append(schema.Key, k)
	}
	return schema, nil
}

// MarshalRow serializes a row's values in schema column order.
// Columns missing from the row are encoded as NULL.
// Returns ErrTypeMismatch if a value does not match its column type.
func MarshalRow(schema *core.Schema, row core.Row) ([]byte, error) {
	values := make([]any, len(schema.Columns))
	for i, c := range schema.Columns {
		v := row[c.Name]
		if v != nil {
			typ, ok := core.TypeOf(v)
			if !ok || typ != c.Type {
				return nil, fmt.Errorf("%w: column %s is %s, got %T", ErrTypeMismatch, c.Name, c.Type, v)
			}
		}
		values[i] = v
	}
	return marshalValues(values), nil
}

// UnmarshalRow deserializes a row encoded by MarshalRow with the same schema.
func UnmarshalRow(schema *core.Schema, data []byte) (core.Row, error) {
	values, err := unmarshalValues(data)
	if err != nil {
		return nil, err
	}
	if len(values) != len(schema.Columns) {
		return nil, fmt.Errorf("%w: row has %d values, schema has %d columns",
			ErrSerializationFailed, len(values), len(schema.Columns))
	}
	row := make(core.Row, len(values))
	for i, c := range schema.Columns {
		row[c.Name] = values[i]
	}
	return row, nil
}

// MarshalKey serializes a key tuple. Equal tuples produce equal bytes.
func MarshalKey(key core.Key) []byte {
	return marshalValues(key)
}

// UnmarshalKey deserializes a key tuple encoded by MarshalKey.
func UnmarshalKey(data []byte) (core.Key, error) {
	values, err := unmarshalValues(data)
	if err != nil {
		return nil, err
	}
	return core.Key(values), nil
}

func marshalValues(values []any) []byte {
	size := varint.Int.Size(len(values))
	for _, v := range values {
		size += valueSize(v)
	}
	buf := make([]byte, size)
	n := varint.Int.Marshal(len(values), buf)
	for _, v := range values {
		n += marshalValue(v, buf[n:])
	}
	return buf
}

func unmarshalValues(data []byte) ([]any, error) {
	count, n, err := unmarshalLength(data)
	if err != nil {
		return nil, err
	}
	values := make([]any, count)
	for i := range values {
		v, m, err := unmarshalValue(data[n:])
		if err != nil {
			return nil, err
		}
		values[i] = v
		n += m
	}
	return values, nil
}

func valueSize(v any) int {
	switch val := v.(type) {
	case string:
		return 1 + ord.String.Size(val)
	case int64:
		return 1 + varint.Int64.Size(val)
	case float64:
		return 1 + varint.Float64.Size(val)
	case bool:
		return 1 + ord.Bool.Size(val)
	case time.Time:
		return 1 + varint.Int64.Size(val.UnixMicro())
	case []float32:
		size := 1 + varint.Int.Size(len(val))
		for _, f := range val {
			size += varint.Float32.Size(f)
		}
		return size
	default:
		return 1
	}
}

func marshalValue(v any, bs []byte) int {
	switch val := v.(type) {
	case string:
		bs[0] = byte(core.ColumnTypeString)
		return 1 + ord.String.Marshal(val, bs[1:])
	case int64:
		bs[0] = byte(core.ColumnTypeInt64)
		return 1 + varint.Int64.Marshal(val, bs[1:])
	case float64:
		bs[0] = byte(core.ColumnTypeFloat64)
		return 1 + varint.Float64.Marshal(val, bs[1:])
	case bool:
		bs[0] = byte(core.ColumnTypeBool)
		return 1 + ord.Bool.Marshal(val, bs[1:])
	case time.Time:
		bs[0] = byte(core.ColumnTypeTimestamp)
		return 1 + varint.Int64.Marshal(val.UnixMicro(), bs[1:])
	case []float32:
		bs[0] = byte(core.ColumnTypeVector)
		n := 1 + varint.Int.Marshal(len(val), bs[1:])
		for _, f := range val {
			n += varint.Float32.Marshal(f, bs[n:])
		}
		return n
	default:
		// Unsupported values are stored as NULL; callers validate types first.
		bs[0] = nullTag
		return 1
	}
}

func unmarshalValue(bs []byte) (any, int, error) {
	if len(bs) == 0 {
		return nil, 0, ErrTruncatedData
	}
	tag := bs[0]
	if tag == nullTag {
		return nil, 1, nil
	}
	switch core.ColumnType(tag) {
	case core.ColumnTypeString:
		v, n, err := ord.String.Unmarshal(bs[1:])
		return v, 1 + n, wrapSerialization(err)
	case core.ColumnTypeInt64:
		v, n, err := varint.Int64.Unmarshal(bs[1:])
		return v, 1 + n, wrapSerialization(err)
	case core.ColumnTypeFloat64:
		v, n, err := varint.Float64.Unmarshal(bs[1:])
		return v, 1 + n, wrapSerialization(err)
	case core.ColumnTypeBool:
		v, n, err := ord.Bool.Unmarshal(bs[1:])
		return v, 1 + n, wrapSerialization(err)
	case core.ColumnTypeTimestamp:
		v, n, err := varint.Int64.Unmarshal(bs[1:])
		if err != nil {
			return nil, 0, wrapSerialization(err)
		}
		return time.UnixMicro(v).UTC(), 1 + n, nil
	case core.ColumnTypeVector:
		length, n, err := unmarshalLength(bs[1:])
		if err != nil {
			return nil, 0, err
		}
		n++
		vec := make([]float32, length)
		for i := range vec {
			f, m, err := varint.Float32.Unmarshal(bs[n:])
			if err != nil {
				return nil, 0, wrapSerialization(err)
			}
			vec[i] = f
			n += m
		}
		return vec, n, nil
	default:
		return nil, 0, fmt.Errorf("%w: unknown value tag %d", ErrSerializationFailed, tag)
	}
}

// MarshalVector serializes a vector as a length followed by varint floats.
func MarshalVector(vec []float32) []byte {
	size := varint.Int.Size(len(vec))
	for _, f := range vec {
		size += varint.Float32.Size(f)
	}
	buf := make([]byte, size)
	n := varint.Int.Marshal(len(vec), buf)
	for _, f := range vec {
		n += varint.Float32.Marshal(f, buf[n:])
	}
	return buf
}

// UnmarshalVector deserializes a vector written by MarshalVector.
// Trailing bytes are an error.
func UnmarshalVector(data []byte) ([]float32, error) {
	length, n, err := unmarshalLength(data)
	if err != nil {
		return nil, err
	}
	vec := make([]float32, length)
	for i := range vec {
		f, m, err := varint.Float32.Unmarshal(data[n:])
		if err != nil {
			return nil, wrapSerialization(err)
		}
		vec[i] = f
		n += m
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes after vector", ErrSerializationFailed, len(data)-n)
	}
	return vec, nil
}

// unmarshalLength reads a collection length and rejects lengths that cannot
// fit in the remaining data.
func unmarshalLength(bs []byte) (int, int, error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return 0, 0, wrapSerialization(err)
	}
	if length < 0 || length > len(bs)-n {
		return 0, 0, fmt.Errorf("%w: length %d exceeds remaining %d bytes", ErrTruncatedData, length, len(bs)-n)
	}
	return length, n, nil
}

func wrapSerialization(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrSerializationFailed, err)
}
