package query

import (
	"fmt"
	"strings"
)

// Op is a comparison operator.
type Op string

// Comparison operators.
const (
	OpEq  Op = "="
	OpNe  Op = "<>"
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

// Predicate is a boolean expression over a row.
// The set of implementations is closed; stores switch over them exhaustively.
type Predicate interface {
	fmt.Stringer
	isPredicate()
}

// Literal is a constant boolean: TRUE or FALSE.
type Literal struct {
	Value bool
}

// Comparison compares a column against a constant.
type Comparison struct {
	Column string
	Op     Op
	Value  any
}

// IsNull tests a column for NULL. Negate turns it into IS NOT NULL.
type IsNull struct {
	Column string
	Negate bool
}

// In tests column membership in a constant list.
type In struct {
	Column string
	Values []any
	Negate bool
}

// Like matches a string column against a SQL LIKE pattern (% and _ wildcards).
type Like struct {
	Column  string
	Pattern string
	Negate  bool
}

// And is the conjunction of its terms.
type And struct {
	Terms []Predicate
}

// Or is the disjunction of its terms.
type Or struct {
	Terms []Predicate
}

// Not negates its operand.
type Not struct {
	Operand Predicate
}

// True is the predicate that matches every row.
var True Predicate = Literal{Value: true}

func (Literal) isPredicate()    {}
func (Comparison) isPredicate() {}
func (IsNull) isPredicate()     {}
func (In) isPredicate()         {}
func (Like) isPredicate()       {}
func (And) isPredicate()        {}
func (Or) isPredicate()         {}
func (Not) isPredicate()        {}

func (p Literal) String() string {
	if p.Value {
		return "TRUE"
	}
	return "FALSE"
}

func (p Comparison) String() string {
	return fmt.Sprintf("%s %s %s", p.Column, p.Op, formatLiteral(p.Value))
}

func (p IsNull) String() string {
	if p.Negate {
		return p.Column + " IS NOT NULL"
	}
	return p.Column + " IS NULL"
}

func (p In) String() string {
	items := make([]string, len(p.Values))
	for i, v := range p.Values {
		items[i] = formatLiteral(v)
	}
	op := " IN "
	if p.Negate {
		op = " NOT IN "
	}
	return p.Column + op + "(" + strings.Join(items, ", ") + ")"
}

func (p Like) String() string {
	op := " LIKE "
	if p.Negate {
		op = " NOT LIKE "
	}
	return p.Column + op + formatLiteral(p.Pattern)
}

func (p And) String() string {
	return joinTerms(p.Terms, " AND ")
}

func (p Or) String() string {
	return joinTerms(p.Terms, " OR ")
}

func (p Not) String() string {
	return "NOT (" + p.Operand.String() + ")"
}

func joinTerms(terms []Predicate, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = "(" + t.String() + ")"
	}
	return strings.Join(parts, sep)
}

func formatLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprint(val)
	}
}

// Columns returns the distinct column names referenced by a predicate, in first-use order.
func Columns(p Predicate) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(c string) {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	var walk func(Predicate)
	walk = func(p Predicate) {
		switch n := p.(type) {
		case Comparison:
			add(n.Column)
		case IsNull:
			add(n.Column)
		case In:
			add(n.Column)
		case Like:
			add(n.Column)
		case And:
			for _, t := range n.Terms {
				walk(t)
			}
		case Or:
			for _, t := range n.Terms {
				walk(t)
			}
		case Not:
			walk(n.Operand)
		}
	}
	walk(p)
	return out
}
