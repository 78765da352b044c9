package query

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/poiesic/embedfill/core"
)

// truth is a SQL three-valued logic result.
type truth int

const (
	unknown truth = iota
	isFalse
	isTrue
)

func fromBool(b bool) truth {
	if b {
		return isTrue
	}
	return isFalse
}

func (t truth) not() truth {
	switch t {
	case isTrue:
		return isFalse
	case isFalse:
		return isTrue
	default:
		return unknown
	}
}

// Eval evaluates a predicate against a row using SQL three-valued logic.
// A row matches only when the predicate is TRUE; UNKNOWN (NULL comparisons) does not match.
func Eval(p Predicate, row core.Row) (bool, error) {
	t, err := eval(p, row)
	if err != nil {
		return false, err
	}
	return t == isTrue, nil
}

func eval(p Predicate, row core.Row) (truth, error) {
	switch n := p.(type) {
	case Literal:
		return fromBool(n.Value), nil
	case Comparison:
		v, ok := row[n.Column]
		if !ok {
			return unknown, fmt.Errorf("%w: %s", ErrUnknownColumn, n.Column)
		}
		if v == nil || n.Value == nil {
			return unknown, nil
		}
		cmp, err := compare(v, n.Value)
		if err != nil {
			return unknown, err
		}
		switch n.Op {
		case OpEq:
			return fromBool(cmp == 0), nil
		case OpNe:
			return fromBool(cmp != 0), nil
		case OpLt:
			return fromBool(cmp < 0), nil
		case OpLte:
			return fromBool(cmp <= 0), nil
		case OpGt:
			return fromBool(cmp > 0), nil
		case OpGte:
			return fromBool(cmp >= 0), nil
		default:
			return unknown, fmt.Errorf("%w: operator %q", ErrInvalidPredicate, n.Op)
		}
	case IsNull:
		v, ok := row[n.Column]
		if !ok {
			return unknown, fmt.Errorf("%w: %s", ErrUnknownColumn, n.Column)
		}
		return fromBool((v == nil) != n.Negate), nil
	case In:
		v, ok := row[n.Column]
		if !ok {
			return unknown, fmt.Errorf("%w: %s", ErrUnknownColumn, n.Column)
		}
		result, err := evalIn(v, n.Values)
		if err != nil {
			return unknown, err
		}
		if n.Negate {
			return result.not(), nil
		}
		return result, nil
	case Like:
		v, ok := row[n.Column]
		if !ok {
			return unknown, fmt.Errorf("%w: %s", ErrUnknownColumn, n.Column)
		}
		if v == nil {
			return unknown, nil
		}
		s, ok := v.(string)
		if !ok {
			return unknown, fmt.Errorf("%w: LIKE on non-string column %s", ErrTypeMismatch, n.Column)
		}
		re, err := likePattern(n.Pattern)
		if err != nil {
			return unknown, err
		}
		return fromBool(re.MatchString(s) != n.Negate), nil
	case And:
		result := isTrue
		for _, term := range n.Terms {
			t, err := eval(term, row)
			if err != nil {
				return unknown, err
			}
			if t == isFalse {
				return isFalse, nil
			}
			if t == unknown {
				result = unknown
			}
		}
		return result, nil
	case Or:
		result := isFalse
		for _, term := range n.Terms {
			t, err := eval(term, row)
			if err != nil {
				return unknown, err
			}
			if t == isTrue {
				return isTrue, nil
			}
			if t == unknown {
				result = unknown
			}
		}
		return result, nil
	case Not:
		t, err := eval(n.Operand, row)
		if err != nil {
			return unknown, err
		}
		return t.not(), nil
	default:
		return unknown, fmt.Errorf("%w: %T", ErrInvalidPredicate, p)
	}
}

func evalIn(v any, values []any) (truth, error) {
	if v == nil {
		return unknown, nil
	}
	result := isFalse
	for _, candidate := range values {
		if candidate == nil {
			result = unknown
			continue
		}
		cmp, err := compare(v, candidate)
		if err != nil {
			return unknown, err
		}
		if cmp == 0 {
			return isTrue, nil
		}
	}
	return result, nil
}

// compare orders two non-nil values. Integers and floats compare numerically;
// timestamps compare against RFC 3339 strings.
func compare(a, b any) (int, error) {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			if ia, ok := a.(int64); ok {
				if ib, ok := b.(int64); ok {
					return cmpOrdered(ia, ib), nil
				}
			}
			return cmpOrdered(fa, fb), nil
		}
		return 0, fmt.Errorf("%w: %T and %T", ErrTypeMismatch, a, b)
	}
	switch va := a.(type) {
	case string:
		if vb, ok := b.(string); ok {
			return strings.Compare(va, vb), nil
		}
	case bool:
		if vb, ok := b.(bool); ok {
			if va == vb {
				return 0, nil
			}
			if !va {
				return -1, nil
			}
			return 1, nil
		}
	case time.Time:
		switch vb := b.(type) {
		case time.Time:
			return va.Compare(vb), nil
		case string:
			tb, err := parseTime(vb)
			if err != nil {
				return 0, err
			}
			return va.Compare(tb), nil
		}
	}
	return 0, fmt.Errorf("%w: %T and %T", ErrTypeMismatch, a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot compare timestamp with %q", ErrTypeMismatch, s)
}

func likePattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile("(?s)" + sb.String())
}
