package billing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/condo/backend/internal/domain/shared"
)

// Expression error codes
const (
	ErrCodeExpressionForbidden      = "EXPRESSION_FORBIDDEN_PATTERN"
	ErrCodeExpressionUnknownVar     = "EXPRESSION_UNKNOWN_VARIABLE"
	ErrCodeExpressionSyntax         = "EXPRESSION_SYNTAX"
	ErrCodeExpressionDivisionByZero = "EXPRESSION_DIVISION_BY_ZERO"
)

// BuiltinVariables are the unit attributes every expression may reference
// without declaring them on the formula.
var BuiltinVariables = []string{
	"base_rate",
	"aliquot_percentage",
	"area_m2",
	"unit_count",
	"floor",
	"parking_spaces",
}

// forbiddenKeywords are substrings that must never appear in an expression.
// Matching is case-insensitive and runs before any parsing, so an expression
// carrying one of these is rejected even when it would not tokenize.
var forbiddenKeywords = []string{
	"function",
	"eval",
	"exec",
	"import",
	"require",
	"process",
	"global",
	"window",
	"document",
	"fetch",
	"xmlhttprequest",
}

// forbiddenChars are single characters outside the arithmetic grammar.
const forbiddenChars = "[]{};=<>!&|%$#@\"'`\\,?:~^"

func newForbiddenPatternError() *shared.DomainError {
	return shared.NewDomainError(ErrCodeExpressionForbidden, "Expression contains forbidden characters or keywords")
}

func newUnknownVariableError(name string, allowed []string) *shared.DomainError {
	sorted := append([]string(nil), allowed...)
	sort.Strings(sorted)
	return shared.NewDomainError(ErrCodeExpressionUnknownVar,
		fmt.Sprintf("Unknown variable: %s. Allowed variables: %s", name, strings.Join(sorted, ", ")))
}

func newSyntaxError(detail string) *shared.DomainError {
	return shared.NewDomainError(ErrCodeExpressionSyntax, detail)
}

func newDivisionByZeroError() *shared.DomainError {
	return shared.NewDomainError(ErrCodeExpressionDivisionByZero, "Division by zero in expression")
}

// exprNode is a node of the parsed expression tree. The grammar is closed:
// the only node kinds are numeric literals, variable references and binary
// arithmetic, so a parsed expression can never reach anything outside the
// evaluation environment.
type exprNode interface {
	eval(env map[string]decimal.Decimal) (decimal.Decimal, error)
}

type numberNode struct {
	value decimal.Decimal
}

func (n *numberNode) eval(map[string]decimal.Decimal) (decimal.Decimal, error) {
	return n.value, nil
}

type variableNode struct {
	name string
}

func (n *variableNode) eval(env map[string]decimal.Decimal) (decimal.Decimal, error) {
	v, ok := env[n.name]
	if !ok {
		names := make([]string, 0, len(env))
		for name := range env {
			names = append(names, name)
		}
		return decimal.Zero, newUnknownVariableError(n.name, names)
	}
	return v, nil
}

type binaryNode struct {
	op    byte
	left  exprNode
	right exprNode
}

func (n *binaryNode) eval(env map[string]decimal.Decimal) (decimal.Decimal, error) {
	left, err := n.left.eval(env)
	if err != nil {
		return decimal.Zero, err
	}
	right, err := n.right.eval(env)
	if err != nil {
		return decimal.Zero, err
	}
	switch n.op {
	case '+':
		return left.Add(right), nil
	case '-':
		return left.Sub(right), nil
	case '*':
		return left.Mul(right), nil
	case '/':
		if right.IsZero() {
			return decimal.Zero, newDivisionByZeroError()
		}
		return left.Div(right), nil
	}
	return decimal.Zero, newSyntaxError(fmt.Sprintf("Unsupported operator: %c", n.op))
}

// Expression is a validated arithmetic expression over named variables.
type Expression struct {
	source    string
	root      exprNode
	variables []string
}

// Source returns the original expression text.
func (e *Expression) Source() string {
	return e.source
}

// Variables returns the distinct variable names the expression references,
// in order of first appearance.
func (e *Expression) Variables() []string {
	return append([]string(nil), e.variables...)
}

// Evaluate computes the expression against the given environment.
func (e *Expression) Evaluate(env map[string]decimal.Decimal) (decimal.Decimal, error) {
	return e.root.eval(env)
}

// ParseExpression validates and parses an expression. The allowed set is the
// complete list of variable names the expression may reference; every
// identifier outside it is rejected at parse time, not at evaluation time.
func ParseExpression(source string, allowed []string) (*Expression, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return nil, newSyntaxError("Expression cannot be empty")
	}

	if err := scanForbidden(trimmed); err != nil {
		return nil, err
	}
	if err := checkParentheses(trimmed); err != nil {
		return nil, err
	}

	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	root, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, newSyntaxError(fmt.Sprintf("Unexpected token: %s", p.peek().text))
	}

	allowedSet := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		allowedSet[name] = struct{}{}
	}

	var variables []string
	seen := make(map[string]struct{})
	for _, tok := range tokens {
		if tok.kind != tokenIdent {
			continue
		}
		if _, ok := allowedSet[tok.text]; !ok {
			return nil, newUnknownVariableError(tok.text, allowed)
		}
		if _, ok := seen[tok.text]; !ok {
			seen[tok.text] = struct{}{}
			variables = append(variables, tok.text)
		}
	}

	return &Expression{source: trimmed, root: root, variables: variables}, nil
}

// ValidateExpression checks an expression without keeping the parse result.
func ValidateExpression(source string, allowed []string) error {
	_, err := ParseExpression(source, allowed)
	return err
}

func scanForbidden(source string) error {
	lower := strings.ToLower(source)
	for _, kw := range forbiddenKeywords {
		if strings.Contains(lower, kw) {
			return newForbiddenPatternError()
		}
	}
	if strings.ContainsAny(source, forbiddenChars) {
		return newForbiddenPatternError()
	}
	return nil
}

func checkParentheses(source string) error {
	depth := 0
	for _, r := range source {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return newSyntaxError("Unbalanced parentheses in expression")
			}
		}
	}
	if depth != 0 {
		return newSyntaxError("Unbalanced parentheses in expression")
	}
	return nil
}

type tokenKind int

const (
	tokenNumber tokenKind = iota
	tokenIdent
	tokenOperator
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(source string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(source) {
		c := source[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			tokens = append(tokens, token{tokenLParen, "("})
			i++
		case c == ')':
			tokens = append(tokens, token{tokenRParen, ")"})
			i++
		case c == '+' || c == '-' || c == '*' || c == '/':
			tokens = append(tokens, token{tokenOperator, string(c)})
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			dots := 0
			for i < len(source) && (source[i] >= '0' && source[i] <= '9' || source[i] == '.') {
				if source[i] == '.' {
					dots++
				}
				i++
			}
			if dots > 1 {
				return nil, newSyntaxError(fmt.Sprintf("Invalid number: %s", source[start:i]))
			}
			tokens = append(tokens, token{tokenNumber, source[start:i]})
		case isIdentStart(c):
			start := i
			for i < len(source) && isIdentPart(source[i]) {
				i++
			}
			tokens = append(tokens, token{tokenIdent, source[start:i]})
		default:
			return nil, newForbiddenPatternError()
		}
	}
	if len(tokens) == 0 {
		return nil, newSyntaxError("Expression cannot be empty")
	}
	return tokens, nil
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

// parser is a recursive-descent parser over the token stream.
//
//	expression := term (('+' | '-') term)*
//	term       := factor (('*' | '/') factor)*
//	factor     := number | identifier | '(' expression ')' | '-' factor
type parser struct {
	tokens []token
	pos    int
}

func (p *parser) atEnd() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) parseExpression() (exprNode, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for !p.atEnd() && p.peek().kind == tokenOperator && (p.peek().text == "+" || p.peek().text == "-") {
		op := p.next().text[0]
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (exprNode, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for !p.atEnd() && p.peek().kind == tokenOperator && (p.peek().text == "*" || p.peek().text == "/") {
		op := p.next().text[0]
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseFactor() (exprNode, error) {
	if p.atEnd() {
		return nil, newSyntaxError("Unexpected end of expression")
	}

	tok := p.next()
	switch tok.kind {
	case tokenNumber:
		value, err := decimal.NewFromString(tok.text)
		if err != nil {
			return nil, newSyntaxError(fmt.Sprintf("Invalid number: %s", tok.text))
		}
		return &numberNode{value: value}, nil
	case tokenIdent:
		return &variableNode{name: tok.text}, nil
	case tokenLParen:
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.atEnd() || p.peek().kind != tokenRParen {
			return nil, newSyntaxError("Unbalanced parentheses in expression")
		}
		p.next()
		return inner, nil
	case tokenOperator:
		if tok.text == "-" {
			inner, err := p.parseFactor()
			if err != nil {
				return nil, err
			}
			return &binaryNode{op: '-', left: &numberNode{value: decimal.Zero}, right: inner}, nil
		}
	}
	return nil, newSyntaxError(fmt.Sprintf("Unexpected token: %s", tok.text))
}
