package core

import (
	"errors"
	"testing"
)

func TestValidateTableName(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		wantErr error
	}{
		{name: "simple", table: "documents", wantErr: nil},
		{name: "qualified", table: "corpus.documents", wantErr: nil},
		{name: "underscore prefix", table: "_staging", wantErr: nil},
		{name: "empty", table: "", wantErr: ErrInvalidIdentifier},
		{name: "trailing dot", table: "corpus.", wantErr: ErrInvalidIdentifier},
		{name: "leading digit", table: "1docs", wantErr: ErrInvalidIdentifier},
		{name: "injection attempt", table: "docs; DROP TABLE docs", wantErr: ErrInvalidIdentifier},
		{name: "quoted", table: `"docs"`, wantErr: ErrInvalidIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTableName(tt.table)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateTableName(%q) = %v, want nil", tt.table, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateTableName(%q) = %v, want %v", tt.table, err, tt.wantErr)
			}
		})
	}
}

func TestValidateKeyColumns(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		wantErr error
	}{
		{name: "single column", columns: []string{"id"}, wantErr: nil},
		{name: "composite key", columns: []string{"tenant", "doc_id"}, wantErr: nil},
		{name: "empty", columns: nil, wantErr: ErrEmptyKeyColumns},
		{name: "wildcard", columns: []string{"*"}, wantErr: ErrWildcardKeyColumn},
		{name: "wildcard among others", columns: []string{"id", "*"}, wantErr: ErrWildcardKeyColumn},
		{name: "duplicate", columns: []string{"id", "id"}, wantErr: ErrDuplicateColumn},
		{name: "invalid name", columns: []string{"doc-id"}, wantErr: ErrInvalidIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKeyColumns(tt.columns)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateKeyColumns(%v) = %v, want nil", tt.columns, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateKeyColumns(%v) = %v, want %v", tt.columns, err, tt.wantErr)
			}
		})
	}
}
