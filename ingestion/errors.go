package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a table store is not provided.
	ErrStoreRequired = errors.New("table store required")

	// ErrInvalidBatchSize is returned for a non-positive batch size.
	ErrInvalidBatchSize = errors.New("batch size must be positive")

	// ErrInvalidRecord is returned for a line that is not a JSON object of supported values.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrTypeConflict is returned when a column holds values of incompatible types.
	ErrTypeConflict = errors.New("conflicting column types")

	// ErrNoColumns is returned when the input has no rows to infer a schema from.
	ErrNoColumns = errors.New("no columns to infer a schema from")
)
