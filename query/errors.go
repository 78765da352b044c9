package query

import "errors"

var (
	// ErrInvalidPredicate is returned when a filter expression cannot be parsed.
	ErrInvalidPredicate = errors.New("invalid predicate")

	// ErrUnknownColumn is returned when a predicate references a column the row does not have.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrTypeMismatch is returned when a predicate compares incompatible values.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidStruct is returned when a struct literal cannot be parsed.
	ErrInvalidStruct = errors.New("invalid struct literal")
)
