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

import (
	"fmt"
	"regexp"
	"strings"
)

// Wildcard selects every column of a table.
const Wildcard = "*"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateColumnName validates a single column identifier.
//
// Validation rules:
//   - must start with a letter or underscore
//   - may contain only letters, digits and underscores
func ValidateColumnName(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: column %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// ValidateTableName validates a table identifier.
// Tables may be qualified with dot-separated parts (dataset.table).
func ValidateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: table name is empty", ErrInvalidIdentifier)
	}
	for _, part := range strings.Split(name, ".") {
		if !identifierPattern.MatchString(part) {
			return fmt.Errorf("%w: table %q", ErrInvalidIdentifier, name)
		}
	}
	return nil
}

// ValidateKeyColumns validates the key column list of a run.
//
// Validation rules:
//   - at least one column
//   - no wildcard entries
//   - every entry is a valid column identifier
//   - no duplicates
func ValidateKeyColumns(columns []string) error {
	if len(columns) == 0 {
		return ErrEmptyKeyColumns
	}
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if strings.Contains(c, Wildcard) {
			return fmt.Errorf("%w: %q", ErrWildcardKeyColumn, c)
		}
		if err := ValidateColumnName(c); err != nil {
			return err
		}
		if _, ok := seen[c]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateColumn, c)
		}
		seen[c] = struct{}{}
	}
	return nil
}
