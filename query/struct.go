package query

import (
	"fmt"
	"strings"
)

// ParseStruct parses a struct literal of the form
//
//	STRUCT(<literal> AS <name>, ...)
//
// into a map keyed by lowercased field name. Literals follow the predicate
// grammar: strings, numbers, TRUE, FALSE and NULL.
func ParseStruct(input string) (map[string]any, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStruct, err)
	}
	p := &parser{tokens: tokens}

	if kw := p.next(); !kw.keyword("STRUCT") {
		return nil, fmt.Errorf("%w: expected STRUCT at %d", ErrInvalidStruct, kw.pos)
	}
	if open := p.next(); open.kind != tokLParen {
		return nil, fmt.Errorf("%w: expected '(' at %d", ErrInvalidStruct, open.pos)
	}

	fields := make(map[string]any)
	if p.peek().kind == tokRParen {
		p.next()
	} else {
		for {
			value, err := p.parseLiteral()
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidStruct, err)
			}
			if as := p.next(); !as.keyword("AS") {
				return nil, fmt.Errorf("%w: expected AS at %d", ErrInvalidStruct, as.pos)
			}
			name := p.next()
			if name.kind != tokIdent && name.kind != tokQuotedIdent {
				return nil, fmt.Errorf("%w: expected field name at %d", ErrInvalidStruct, name.pos)
			}
			key := strings.ToLower(name.text)
			if _, dup := fields[key]; dup {
				return nil, fmt.Errorf("%w: duplicate field %s", ErrInvalidStruct, name.text)
			}
			fields[key] = value

			sep := p.next()
			if sep.kind == tokRParen {
				break
			}
			if sep.kind != tokComma {
				return nil, fmt.Errorf("%w: expected ',' or ')' at %d", ErrInvalidStruct, sep.pos)
			}
		}
	}

	if tok := p.peek(); tok.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrInvalidStruct, tok.text, tok.pos)
	}
	return fields, nil
}
