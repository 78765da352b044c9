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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidIdentifier indicates a table or column name failed validation.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrEmptyKeyColumns indicates no key columns were supplied.
	ErrEmptyKeyColumns = errors.New("key columns cannot be empty")

	// ErrWildcardKeyColumn indicates a key column list contains "*".
	ErrWildcardKeyColumn = errors.New("key columns cannot contain a wildcard")

	// ErrDuplicateColumn indicates a column appears more than once in a list.
	ErrDuplicateColumn = errors.New("duplicate column")

	// ErrUnsupportedValue indicates a value cannot be represented in a Row.
	ErrUnsupportedValue = errors.New("unsupported value")
)
