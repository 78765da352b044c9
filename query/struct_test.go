package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStruct(t *testing.T) {
	fields, err := ParseStruct("STRUCT(TRUE AS flatten_json_output, 256 AS Output_Dimensionality, 'RETRIEVAL_DOCUMENT' AS task_type, NULL AS title)")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"flatten_json_output":   true,
		"output_dimensionality": int64(256),
		"task_type":             "RETRIEVAL_DOCUMENT",
		"title":                 nil,
	}, fields)

	fields, err = ParseStruct("struct()")
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestParseStruct_Errors(t *testing.T) {
	inputs := []string{
		"",
		"ROW(TRUE AS a)",
		"STRUCT(TRUE a)",
		"STRUCT(TRUE AS a",
		"STRUCT(TRUE AS a, FALSE AS A)",
		"STRUCT(TRUE AS a) extra",
		"STRUCT(col AS a)",
		"STRUCT('unterminated AS a)",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := ParseStruct(input)
			assert.ErrorIs(t, err, ErrInvalidStruct)
		})
	}
}
