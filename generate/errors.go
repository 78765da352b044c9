package generate

import "errors"

var (
	// ErrInvalidRequest is returned when a Request fails validation.
	// No table is touched when it is returned.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrSchemaMismatch is returned when an existing destination table lacks
	// a key column or a result column.
	ErrSchemaMismatch = errors.New("destination schema mismatch")

	// ErrStoreRequired is returned when a Generator is built without a store.
	ErrStoreRequired = errors.New("table store required")

	// ErrBackendRequired is returned when a Generator is built without a backend.
	ErrBackendRequired = errors.New("embedding backend required")
)
