// Package calculator evaluates pure arithmetic expressions with a small
// recursive-descent parser. No names, no functions, no generic evaluator:
// only numeric literals and + - * / % ( ).
package calculator

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/knowbase/knowledge-assistant/internal/core/domain"
)

type Calculator struct{}

func New() *Calculator {
	return &Calculator{}
}

// Evaluate validates the expression against the character whitelist and, if
// clean, parses and computes it. Every failure comes back as a structured
// Calculation; nothing is raised past this boundary.
func (c *Calculator) Evaluate(expression string) domain.Calculation {
	cleaned := strings.TrimSpace(expression)
	if cleaned == "" {
		return failure(expression, "empty expression")
	}
	if bad, ok := firstDisallowedChar(cleaned); !ok {
		return failure(expression, fmt.Sprintf("invalid character %q in expression", bad))
	}

	p := &parser{input: []rune(cleaned)}
	value, err := p.parseExpression()
	if err != nil {
		return failure(expression, err.Error())
	}
	p.skipSpaces()
	if !p.eof() {
		return failure(expression, fmt.Sprintf("unexpected %q at position %d", p.peek(), p.pos))
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return failure(expression, "result is not a finite number")
	}

	return domain.Calculation{
		Success:    true,
		Expression: cleaned,
		Result:     strconv.FormatFloat(value, 'f', -1, 64),
	}
}

func failure(expression, reason string) domain.Calculation {
	return domain.Calculation{
		Success:    false,
		Expression: expression,
		Error:      reason,
	}
}

func firstDisallowedChar(s string) (rune, bool) {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '+' || r == '-' || r == '*' || r == '/' || r == '.' || r == '(' || r == ')' || r == '%':
		case r == ' ' || r == '\t':
		default:
			return r, false
		}
	}
	return 0, true
}

// Grammar:
//
//	expression = term  { ("+" | "-") term }
//	term       = unary { ("*" | "/" | "%") unary }
//	unary      = { "+" | "-" } primary
//	primary    = number | "(" expression ")"
type parser struct {
	input []rune
	pos   int
}

func (p *parser) parseExpression() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.accept('+'):
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case p.accept('-'):
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.accept('*'):
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			left *= right
		case p.accept('/'):
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		case p.accept('%'):
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("modulo by zero")
			}
			left = math.Mod(left, right)
		default:
			return left, nil
		}
	}
}

func (p *parser) parseUnary() (float64, error) {
	p.skipSpaces()
	switch {
	case p.accept('-'):
		v, err := p.parseUnary()
		return -v, err
	case p.accept('+'):
		return p.parseUnary()
	default:
		return p.parsePrimary()
	}
}

func (p *parser) parsePrimary() (float64, error) {
	p.skipSpaces()
	if p.accept('(') {
		v, err := p.parseExpression()
		if err != nil {
			return 0, err
		}
		p.skipSpaces()
		if !p.accept(')') {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		return v, nil
	}
	return p.parseNumber()
}

func (p *parser) parseNumber() (float64, error) {
	p.skipSpaces()
	start := p.pos
	for !p.eof() && (p.peek() >= '0' && p.peek() <= '9' || p.peek() == '.') {
		p.pos++
	}
	if start == p.pos {
		if p.eof() {
			return 0, fmt.Errorf("unexpected end of expression")
		}
		return 0, fmt.Errorf("unexpected %q at position %d", p.peek(), p.pos)
	}
	literal := string(p.input[start:p.pos])
	v, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed number %q", literal)
	}
	return v, nil
}

func (p *parser) skipSpaces() {
	for !p.eof() && (p.peek() == ' ' || p.peek() == '\t') {
		p.pos++
	}
}

func (p *parser) accept(r rune) bool {
	if p.eof() || p.peek() != r {
		return false
	}
	p.pos++
	return true
}

func (p *parser) peek() rune {
	return p.input[p.pos]
}

func (p *parser) eof() bool {
	return p.pos >= len(p.input)
}
