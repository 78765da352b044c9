package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestIDFromContent(t *testing.T) {
	if IDFromContent("test content") != IDFromContent("test content") {
		t.Error("IDFromContent() produced different IDs for same content")
	}
	if IDFromContent("a") == IDFromContent("b") {
		t.Error("IDFromContent() produced same ID for different content")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{status: "", want: false},
		{status: "SUCCESS", want: false},
		{status: "A retryable error occurred: timeout", want: true},
		{status: "A retryable error occurred:", want: true},
		{status: "PERMISSION_DENIED", want: false},
		{status: " A retryable error occurred: leading space", want: false},
		{status: "a retryable error occurred: lowercase", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			if got := IsRetryable(tt.status); got != tt.want {
				t.Errorf("IsRetryable(%q) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestFilterAccepted(t *testing.T) {
	rows := []Row{
		{"id": int64(1), StatusColumn: "SUCCESS"},
		{"id": int64(2), StatusColumn: "A retryable error occurred: timeout"},
		{"id": int64(3), StatusColumn: "PERMISSION_DENIED"},
		{"id": int64(4)},
	}

	accepted := FilterAccepted(rows)
	if len(accepted) != 3 {
		t.Fatalf("FilterAccepted() returned %d rows, want 3", len(accepted))
	}
	for i, want := range []int64{1, 3, 4} {
		if accepted[i]["id"] != want {
			t.Errorf("accepted[%d] id = %v, want %d", i, accepted[i]["id"], want)
		}
	}
}

func TestRetryableStatus(t *testing.T) {
	status := RetryableStatus("rate limited")
	if !IsRetryable(status) {
		t.Errorf("RetryableStatus() = %q is not retryable", status)
	}
	if status != "A retryable error occurred: rate limited" {
		t.Errorf("RetryableStatus() = %q", status)
	}
}

func TestRowKeyAndProject(t *testing.T) {
	row := Row{"tenant": "acme", "id": int64(7), "body": "hello"}

	key := row.Key([]string{"tenant", "id"})
	if len(key) != 2 || key[0] != "acme" || key[1] != int64(7) {
		t.Errorf("Key() = %v", key)
	}

	missing := row.Key([]string{"nope"})
	if len(missing) != 1 || missing[0] != nil {
		t.Errorf("Key() with missing column = %v", missing)
	}

	projected := row.Project([]string{"id", "body"})
	if len(projected) != 2 || projected["body"] != "hello" {
		t.Errorf("Project() = %v", projected)
	}
	if _, ok := projected["tenant"]; ok {
		t.Error("Project() kept unprojected column")
	}
}

func TestNormalizeValue(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))

	tests := []struct {
		name    string
		in      any
		want    any
		wantErr bool
	}{
		{name: "nil", in: nil, want: nil},
		{name: "int", in: 5, want: int64(5)},
		{name: "int32", in: int32(-3), want: int64(-3)},
		{name: "float32", in: float32(1.5), want: float64(1.5)},
		{name: "json integer", in: json.Number("42"), want: int64(42)},
		{name: "json float", in: json.Number("4.25"), want: float64(4.25)},
		{name: "time to utc", in: ts, want: ts.UTC()},
		{name: "struct", in: struct{}{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeValue(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedValue) {
					t.Errorf("NormalizeValue(%v) error = %v, want ErrUnsupportedValue", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeValue(%v) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeValue(%v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeValueVector(t *testing.T) {
	got, err := NormalizeValue([]any{json.Number("1"), json.Number("0.5")})
	if err != nil {
		t.Fatalf("NormalizeValue() error = %v", err)
	}
	vec, ok := got.([]float32)
	if !ok || len(vec) != 2 || vec[0] != 1 || vec[1] != 0.5 {
		t.Errorf("NormalizeValue() = %#v", got)
	}

	_, err = NormalizeValue([]any{"x"})
	if !errors.Is(err, ErrUnsupportedValue) {
		t.Errorf("NormalizeValue() with string element error = %v", err)
	}
}

func TestParseColumnType(t *testing.T) {
	for ct := ColumnTypeString; ct <= ColumnTypeVector; ct++ {
		got, ok := ParseColumnType(ct.String())
		if !ok || got != ct {
			t.Errorf("ParseColumnType(%q) = %v, %v", ct.String(), got, ok)
		}
	}
	if _, ok := ParseColumnType("blob"); ok {
		t.Error("ParseColumnType(blob) should fail")
	}
}
