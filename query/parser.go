package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokQuotedIdent
	tokString
	tokNumber
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// keyword reports whether an unquoted identifier token is the given keyword.
func (t token) keyword(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func lex(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i})
			i++
		case r == '\'':
			start := i
			var sb strings.Builder
			i++
			closed := false
			for i < len(runes) {
				if runes[i] == '\'' {
					if i+1 < len(runes) && runes[i+1] == '\'' {
						sb.WriteRune('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteRune(runes[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("%w: unterminated string at %d", ErrInvalidPredicate, start)
			}
			tokens = append(tokens, token{kind: tokString, text: sb.String(), pos: start})
		case r == '`' || r == '"':
			start := i
			quote := r
			i++
			j := i
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("%w: unterminated identifier at %d", ErrInvalidPredicate, start)
			}
			tokens = append(tokens, token{kind: tokQuotedIdent, text: string(runes[i:j]), pos: start})
			i = j + 1
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.' || runes[i] == 'e' || runes[i] == 'E' ||
				((runes[i] == '+' || runes[i] == '-') && (runes[i-1] == 'e' || runes[i-1] == 'E'))) {
				i++
			}
			tokens = append(tokens, token{kind: tokNumber, text: string(runes[start:i]), pos: start})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: string(runes[start:i]), pos: start})
		case strings.ContainsRune("=<>!-", r):
			start := i
			op := string(r)
			if i+1 < len(runes) {
				two := string(runes[i : i+2])
				if two == "<=" || two == ">=" || two == "<>" || two == "!=" {
					op = two
				}
			}
			if op == "!" {
				return nil, fmt.Errorf("%w: unexpected '!' at %d", ErrInvalidPredicate, start)
			}
			i += len(op)
			tokens = append(tokens, token{kind: tokOp, text: op, pos: start})
		default:
			return nil, fmt.Errorf("%w: unexpected character %q at %d", ErrInvalidPredicate, r, i)
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(runes)})
	return tokens, nil
}

type parser struct {
	tokens []token
	pos    int
}

// ParsePredicate parses a SQL-style boolean filter expression into a Predicate.
// An empty or blank input parses to True.
func ParsePredicate(input string) (Predicate, error) {
	if strings.TrimSpace(input) == "" {
		return True, nil
	}
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	pred, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrInvalidPredicate, tok.text, tok.pos)
	}
	return pred, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) parseOr() (Predicate, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Predicate{first}
	for p.peek().keyword("OR") {
		p.next()
		term, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return Or{Terms: terms}, nil
}

func (p *parser) parseAnd() (Predicate, error) {
	first, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	terms := []Predicate{first}
	for p.peek().keyword("AND") {
		p.next()
		term, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return And{Terms: terms}, nil
}

func (p *parser) parseNot() (Predicate, error) {
	if p.peek().keyword("NOT") {
		p.next()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Not{Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Predicate, error) {
	tok := p.peek()
	switch {
	case tok.kind == tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, fmt.Errorf("%w: expected ')' at %d", ErrInvalidPredicate, closing.pos)
		}
		return inner, nil
	case tok.keyword("TRUE"):
		p.next()
		return Literal{Value: true}, nil
	case tok.keyword("FALSE"):
		p.next()
		return Literal{Value: false}, nil
	case tok.kind == tokIdent && !isReserved(tok.text), tok.kind == tokQuotedIdent:
		p.next()
		return p.parseColumnPredicate(tok.text)
	case tok.kind == tokEOF:
		return nil, fmt.Errorf("%w: unexpected end of expression", ErrInvalidPredicate)
	default:
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrInvalidPredicate, tok.text, tok.pos)
	}
}

func (p *parser) parseColumnPredicate(column string) (Predicate, error) {
	tok := p.next()
	switch {
	case tok.kind == tokOp && tok.text != "-":
		value, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return Comparison{Column: column, Op: normalizeOp(tok.text), Value: value}, nil
	case tok.keyword("IS"):
		negate := false
		if p.peek().keyword("NOT") {
			p.next()
			negate = true
		}
		if n := p.next(); !n.keyword("NULL") {
			return nil, fmt.Errorf("%w: expected NULL at %d", ErrInvalidPredicate, n.pos)
		}
		return IsNull{Column: column, Negate: negate}, nil
	case tok.keyword("NOT"):
		next := p.next()
		switch {
		case next.keyword("IN"):
			return p.parseIn(column, true)
		case next.keyword("LIKE"):
			return p.parseLike(column, true)
		default:
			return nil, fmt.Errorf("%w: expected IN or LIKE at %d", ErrInvalidPredicate, next.pos)
		}
	case tok.keyword("IN"):
		return p.parseIn(column, false)
	case tok.keyword("LIKE"):
		return p.parseLike(column, false)
	default:
		return nil, fmt.Errorf("%w: expected operator after %s at %d", ErrInvalidPredicate, column, tok.pos)
	}
}

func (p *parser) parseIn(column string, negate bool) (Predicate, error) {
	if open := p.next(); open.kind != tokLParen {
		return nil, fmt.Errorf("%w: expected '(' at %d", ErrInvalidPredicate, open.pos)
	}
	var values []any
	for {
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		sep := p.next()
		if sep.kind == tokRParen {
			break
		}
		if sep.kind != tokComma {
			return nil, fmt.Errorf("%w: expected ',' or ')' at %d", ErrInvalidPredicate, sep.pos)
		}
	}
	return In{Column: column, Values: values, Negate: negate}, nil
}

func (p *parser) parseLike(column string, negate bool) (Predicate, error) {
	tok := p.next()
	if tok.kind != tokString {
		return nil, fmt.Errorf("%w: LIKE requires a string pattern at %d", ErrInvalidPredicate, tok.pos)
	}
	return Like{Column: column, Pattern: tok.text, Negate: negate}, nil
}

func (p *parser) parseLiteral() (any, error) {
	tok := p.next()
	switch {
	case tok.kind == tokString:
		return tok.text, nil
	case tok.kind == tokNumber:
		return parseNumber(tok.text, false, tok.pos)
	case tok.kind == tokOp && tok.text == "-":
		num := p.next()
		if num.kind != tokNumber {
			return nil, fmt.Errorf("%w: expected number at %d", ErrInvalidPredicate, num.pos)
		}
		return parseNumber(num.text, true, num.pos)
	case tok.keyword("TRUE"):
		return true, nil
	case tok.keyword("FALSE"):
		return false, nil
	case tok.keyword("NULL"):
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: expected literal at %d", ErrInvalidPredicate, tok.pos)
	}
}

func parseNumber(text string, negative bool, pos int) (any, error) {
	if negative {
		text = "-" + text
	}
	if !strings.ContainsAny(text, ".eE") {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return i, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid number %q at %d", ErrInvalidPredicate, text, pos)
	}
	return f, nil
}

func normalizeOp(op string) Op {
	if op == "!=" {
		return OpNe
	}
	return Op(op)
}

var reserved = map[string]struct{}{
	"AND": {}, "OR": {}, "NOT": {}, "IS": {}, "NULL": {}, "IN": {}, "LIKE": {}, "TRUE": {}, "FALSE": {},
}

func isReserved(word string) bool {
	_, ok := reserved[strings.ToUpper(word)]
	return ok
}
