package options

import (
	"errors"
	"testing"
	"time"

	"github.com/poiesic/embedfill/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Defaults(t *testing.T) {
	for _, in := range []string{"", "   ", "{}"} {
		cfg, err := Resolve(in)
		require.NoError(t, err)
		assert.Equal(t, 80000, cfg.BatchSize)
		assert.Equal(t, 82800*time.Second, cfg.TerminationTime)
		assert.Equal(t, "TRUE", cfg.WhereClause)
		assert.Equal(t, query.True, cfg.Where)
		assert.Nil(t, cfg.ProjectionColumns)
		assert.Equal(t, "STRUCT(TRUE AS flatten_json_output)", cfg.MLOptions)
	}
}

func TestResolve_Overrides(t *testing.T) {
	cfg, err := Resolve(`{
		"batch_size": 500,
		"termination_time_secs": 60,
		"where_clause": "lang = 'en'",
		"projection_columns": ["id", "lang"],
		"ml_options": "STRUCT(256 AS output_dimensionality)",
		"unknown_key": [1, 2, 3]
	}`)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.BatchSize)
	assert.Equal(t, time.Minute, cfg.TerminationTime)
	assert.Equal(t, "lang = 'en'", cfg.WhereClause)
	assert.Equal(t, query.Comparison{Column: "lang", Op: query.OpEq, Value: "en"}, cfg.Where)
	assert.Equal(t, []string{"id", "lang"}, cfg.ProjectionColumns)
	assert.Equal(t, "STRUCT(256 AS output_dimensionality)", cfg.MLOptions)
}

func TestResolve_IntegralFloat(t *testing.T) {
	cfg, err := Resolve(`{"batch_size": 10.0, "termination_time_secs": 0}`)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, time.Duration(0), cfg.TerminationTime)
}

func TestResolve_WildcardProjection(t *testing.T) {
	for _, in := range []string{`{"projection_columns": ["*"]}`, `{"projection_columns": []}`} {
		cfg, err := Resolve(in)
		require.NoError(t, err)
		assert.Nil(t, cfg.ProjectionColumns)
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{name: "not json", input: `{batch_size: 1}`, wantMsg: "Unable to parse options_string as JSON"},
		{name: "json array", input: `[1]`, wantMsg: "Unable to parse options_string as JSON"},
		{name: "json null", input: `null`, wantMsg: "Unable to parse options_string as JSON"},
		{name: "batch size string", input: `{"batch_size": "10"}`, wantMsg: "Invalid batch_size. It must be an integer."},
		{name: "batch size fraction", input: `{"batch_size": 1.5}`, wantMsg: "Invalid batch_size. It must be an integer."},
		{name: "batch size zero", input: `{"batch_size": 0}`, wantMsg: "Invalid batch_size. It must be a positive integer."},
		{name: "termination negative", input: `{"termination_time_secs": -1}`, wantMsg: "Invalid termination_time_secs. It must be a non-negative integer."},
		{name: "termination bool", input: `{"termination_time_secs": true}`, wantMsg: "Invalid termination_time_secs. It must be an integer."},
		{name: "where number", input: `{"where_clause": 1}`, wantMsg: "Invalid where_clause. It must be a string."},
		{name: "where null", input: `{"where_clause": null}`, wantMsg: "Invalid where_clause. It must be a string."},
		{name: "projection string", input: `{"projection_columns": "id"}`, wantMsg: "Invalid projection_columns. It must be an array of strings."},
		{name: "projection mixed", input: `{"projection_columns": ["id", 2]}`, wantMsg: "Invalid projection_columns. It must be an array of strings."},
		{name: "ml options object", input: `{"ml_options": {}}`, wantMsg: "Invalid ml_options. It must be a string."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Resolve(tt.input)
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.True(t, errors.Is(err, ErrConfiguration))
			assert.True(t, IsConfigurationError(err))
		})
	}
}

func TestResolve_InvalidWhereClause(t *testing.T) {
	_, err := Resolve(`{"where_clause": "lang = "}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, err, query.ErrInvalidPredicate)
	assert.Contains(t, err.Error(), "Invalid where_clause.")

	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KeyWhereClause, ce.Key)
}

func TestResolve_InvalidProjectionName(t *testing.T) {
	_, err := Resolve(`{"projection_columns": ["id; DROP TABLE x"]}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}
