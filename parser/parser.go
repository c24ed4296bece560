// Package parser is a Pratt parser turning formula text into an ast.Node.
// Operators become calls to the matching library function (a + b is ADD(a, b))
// so the tree only has the four ast node kinds.
package parser

import (
	"strconv"
	"strings"

	"calcfield.io/calc/ast"
	"calcfield.io/calc/lexer"
	"calcfield.io/calc/object"
	"calcfield.io/calc/token"
	"fortio.org/log"
)

type Priority int8

const (
	_ Priority = iota
	LOWEST
	LAMBDA      // x -> ...
	OR          // ||
	AND         // &&
	EQUALS      // == !=
	LESSGREATER // > or <
	SUM         // +
	PRODUCT     // *
	EXPONENT    // ^
	PREFIX      // -X or !X
	CALL        // myFunction(X) x[i] x.y
)

var precedences = map[token.Type]Priority{
	token.ARROW:    LAMBDA,
	token.OR:       OR,
	token.AND:      AND,
	token.EQ:       EQUALS,
	token.NOTEQ:    EQUALS,
	token.LT:       LESSGREATER,
	token.GT:       LESSGREATER,
	token.LTEQ:     LESSGREATER,
	token.GTEQ:     LESSGREATER,
	token.PLUS:     SUM,
	token.MINUS:    SUM,
	token.ASTERISK: PRODUCT,
	token.SLASH:    PRODUCT,
	token.PERCENT:  PRODUCT,
	token.CARET:    EXPONENT,
	token.LPAREN:   CALL,
	token.LBRACKET: CALL,
	token.DOT:      CALL,
}

var infixFunctions = map[token.Type]string{
	token.OR:       "OR",
	token.AND:      "AND",
	token.EQ:       "EQ",
	token.NOTEQ:    "NEQ",
	token.LT:       "LT",
	token.GT:       "GT",
	token.LTEQ:     "LTE",
	token.GTEQ:     "GTE",
	token.PLUS:     "ADD",
	token.MINUS:    "SUBTRACT",
	token.ASTERISK: "MULTIPLY",
	token.SLASH:    "DIVIDE",
	token.PERCENT:  "MOD",
	token.CARET:    "POW",
}

type (
	prefixParseFn func() ast.Node
	infixParseFn  func(ast.Node) ast.Node
)

type Parser struct {
	l *lexer.Lexer

	curToken  token.Token
	peekToken token.Token

	errors []*object.FormulaError

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn
}

func (p *Parser) registerPrefix(t token.Type, fn prefixParseFn) {
	p.prefixParseFns[t] = fn
}

func (p *Parser) registerInfix(t token.Type, fn infixParseFn) {
	p.infixParseFns[t] = fn
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}

	p.prefixParseFns = make(map[token.Type]prefixParseFn)
	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.NUMBER, p.parseNumberLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.TRUE, p.parseKeywordLiteral)
	p.registerPrefix(token.FALSE, p.parseKeywordLiteral)
	p.registerPrefix(token.NULL, p.parseKeywordLiteral)
	p.registerPrefix(token.UNDEFINED, p.parseKeywordLiteral)
	p.registerPrefix(token.MINUS, p.parsePrefixExpression)
	p.registerPrefix(token.BANG, p.parsePrefixExpression)
	p.registerPrefix(token.LPAREN, p.parseGroupOrLambda)
	p.registerPrefix(token.LBRACKET, p.parseArrayLiteral)
	p.registerPrefix(token.LBRACE, p.parseDictionaryLiteral)

	p.infixParseFns = make(map[token.Type]infixParseFn)
	for t := range infixFunctions {
		p.registerInfix(t, p.parseInfixExpression)
	}
	p.registerInfix(token.LPAREN, p.parseCallExpression)
	p.registerInfix(token.LBRACKET, p.parseIndexExpression)
	p.registerInfix(token.DOT, p.parseMemberExpression)
	p.registerInfix(token.ARROW, p.parseSingleParamLambda)

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()
	return p
}

// Parse is the parse(text) boundary: the formula tree or the first syntax error.
func Parse(text string) (ast.Node, error) {
	p := New(lexer.New(text))
	node := p.ParseFormula()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, errs[0]
	}
	return node, nil
}

func (p *Parser) Errors() []*object.FormulaError {
	return p.errors
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// ParseFormula parses a whole formula, which must be a single expression.
func (p *Parser) ParseFormula() ast.Node {
	if p.curTokenIs(token.EOF) {
		p.errorf(p.curToken.Pos, "empty formula")
		return nil
	}
	node := p.parseExpression(LOWEST)
	if node != nil && !p.peekTokenIs(token.EOF) {
		p.unexpected(p.peekToken)
	}
	return node
}

func (p *Parser) errorf(pos int, format string, args ...any) {
	if len(p.errors) > 0 {
		return // first error is the meaningful one, the rest is fallout.
	}
	err := object.NewSyntaxError(pos, format, args...)
	log.LogVf("parse error: %v", err)
	p.errors = append(p.errors, err)
}

func (p *Parser) unexpected(t token.Token) {
	switch t.Type { //nolint:exhaustive // only special cases.
	case token.EOF:
		p.errorf(t.Pos, "unexpected end of formula")
	case token.ILLEGAL:
		p.errorf(t.Pos, "illegal %q", t.Literal)
	default:
		p.errorf(t.Pos, "unexpected %q", t.Literal)
	}
}

func (p *Parser) curTokenIs(t token.Type) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t token.Type) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t token.Type) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	log.Debugf("expected next token to be %s, got %s instead", t, p.peekToken)
	p.unexpected(p.peekToken)
	return false
}

func (p *Parser) peekPrecedence() Priority {
	if p, ok := precedences[p.peekToken.Type]; ok {
		return p
	}
	return LOWEST
}

func (p *Parser) curPrecedence() Priority {
	if p, ok := precedences[p.curToken.Type]; ok {
		return p
	}
	return LOWEST
}

func (p *Parser) parseExpression(precedence Priority) ast.Node {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.unexpected(p.curToken)
		return nil
	}
	leftExp := prefix()
	for leftExp != nil && !p.peekTokenIs(token.EOF) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
	}
	return leftExp
}

func (p *Parser) parseIdentifier() ast.Node {
	return &ast.Reference{Name: p.curToken.Literal}
}

func (p *Parser) parseNumberLiteral() ast.Node {
	value, err := strconv.ParseFloat(strings.ReplaceAll(p.curToken.Literal, "_", ""), 64)
	if err != nil {
		p.errorf(p.curToken.Pos, "could not parse %q as number", p.curToken.Literal)
		return nil
	}
	return &ast.Literal{Value: object.Number{Value: value}}
}

func (p *Parser) parseStringLiteral() ast.Node {
	return &ast.Literal{Value: object.String{Value: p.curToken.Literal}}
}

func (p *Parser) parseKeywordLiteral() ast.Node {
	switch p.curToken.Type { //nolint:exhaustive // only called for keyword literals.
	case token.TRUE:
		return &ast.Literal{Value: object.TRUE}
	case token.FALSE:
		return &ast.Literal{Value: object.FALSE}
	case token.NULL:
		return &ast.Literal{Value: object.NULL}
	default:
		return &ast.Literal{Value: object.UNDEFINED}
	}
}

func (p *Parser) parsePrefixExpression() ast.Node {
	operator := p.curToken
	p.nextToken()
	right := p.parseExpression(PREFIX)
	if right == nil {
		return nil
	}
	if operator.Type == token.BANG {
		return &ast.Call{Name: "NOT", Args: []ast.Node{right}}
	}
	// Fold negative number literals.
	if lit, ok := right.(*ast.Literal); ok {
		if n, ok := lit.Value.(object.Number); ok {
			return &ast.Literal{Value: object.Number{Value: -n.Value}}
		}
	}
	return &ast.Call{Name: "NEGATE", Args: []ast.Node{right}}
}

func (p *Parser) parseInfixExpression(left ast.Node) ast.Node {
	operator := p.curToken
	precedence := p.curPrecedence()
	if operator.Type == token.CARET {
		precedence-- // right associative: 2^3^2 is 2^(3^2)
	}
	p.nextToken()
	right := p.parseExpression(precedence)
	if right == nil {
		return nil
	}
	return &ast.Call{Name: infixFunctions[operator.Type], Args: []ast.Node{left, right}}
}

// Either `(expr)` or the parameter list of a lambda: `(a, b) -> body` or `() -> body`.
func (p *Parser) parseGroupOrLambda() ast.Node {
	start := p.curToken.Pos
	exps := p.parseExpressionList(token.RPAREN)
	if exps == nil {
		return nil
	}
	if p.peekTokenIs(token.ARROW) {
		params := make([]string, 0, len(exps))
		for _, e := range exps {
			ref, ok := e.(*ast.Reference)
			if !ok || strings.Contains(ref.Name, ".") {
				p.errorf(start, "lambda parameters must be plain names, got %s", e)
				return nil
			}
			params = append(params, ref.Name)
		}
		p.nextToken()
		return p.parseLambdaBody(params)
	}
	if len(exps) != 1 {
		p.errorf(start, "expected a single expression in parentheses, got %d", len(exps))
		return nil
	}
	return exps[0]
}

func (p *Parser) parseSingleParamLambda(left ast.Node) ast.Node {
	ref, ok := left.(*ast.Reference)
	if !ok || strings.Contains(ref.Name, ".") {
		p.errorf(p.curToken.Pos, "lambda parameter must be a plain name, got %s", left)
		return nil
	}
	return p.parseLambdaBody([]string{ref.Name})
}

// Called with the -> as current token.
func (p *Parser) parseLambdaBody(params []string) ast.Node {
	seen := make(map[string]bool, len(params))
	for _, param := range params {
		if seen[param] {
			p.errorf(p.curToken.Pos, "duplicate lambda parameter %q", param)
			return nil
		}
		seen[param] = true
	}
	p.nextToken()
	body := p.parseExpression(LOWEST)
	if body == nil {
		return nil
	}
	return &ast.Lambda{Parameters: params, Body: body}
}

func (p *Parser) parseCallExpression(function ast.Node) ast.Node {
	ref, ok := function.(*ast.Reference)
	if !ok || strings.Contains(ref.Name, ".") {
		p.errorf(p.curToken.Pos, "%s is not a function name", function)
		return nil
	}
	args := p.parseExpressionList(token.RPAREN)
	if args == nil {
		return nil
	}
	return &ast.Call{Name: ref.Name, Args: args}
}

func (p *Parser) parseIndexExpression(left ast.Node) ast.Node {
	p.nextToken()
	index := p.parseExpression(LOWEST)
	if index == nil || !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return &ast.Call{Name: "INDEX", Args: []ast.Node{left, index}}
}

// a.b on a reference extends the dotted reference, on anything else it's INDEX(x, "b").
// items.0 is accepted as a numeric segment.
func (p *Parser) parseMemberExpression(left ast.Node) ast.Node {
	if p.peekTokenIs(token.NUMBER) && isIndex(p.peekToken.Literal) {
		p.nextToken()
	} else if !p.expectPeek(token.IDENT) {
		return nil
	}
	member := p.curToken.Literal
	if ref, ok := left.(*ast.Reference); ok {
		return &ast.Reference{Name: ref.Name + "." + member}
	}
	return &ast.Call{Name: "INDEX", Args: []ast.Node{left, &ast.Literal{Value: object.String{Value: member}}}}
}

func isIndex(s string) bool {
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func (p *Parser) parseArrayLiteral() ast.Node {
	elements := p.parseExpressionList(token.RBRACKET)
	if elements == nil {
		return nil
	}
	values := make([]object.Value, 0, len(elements))
	for _, e := range elements {
		lit, ok := e.(*ast.Literal)
		if !ok {
			return &ast.Call{Name: "ARRAY", Args: elements}
		}
		values = append(values, lit.Value.(object.Value))
	}
	return &ast.Literal{Value: object.NewArray(values...)}
}

func (p *Parser) parseDictionaryLiteral() ast.Node {
	var args []ast.Node
	allLiterals := true
	for !p.peekTokenIs(token.RBRACE) {
		p.nextToken()
		if !p.curTokenIs(token.IDENT) && !p.curTokenIs(token.STRING) {
			p.unexpected(p.curToken)
			return nil
		}
		key := p.curToken.Literal
		if !p.expectPeek(token.COLON) {
			return nil
		}
		p.nextToken()
		value := p.parseExpression(LOWEST)
		if value == nil {
			return nil
		}
		if _, ok := value.(*ast.Literal); !ok {
			allLiterals = false
		}
		args = append(args, &ast.Literal{Value: object.String{Value: key}}, value)
		if !p.peekTokenIs(token.RBRACE) && !p.expectPeek(token.COMMA) {
			return nil
		}
	}
	p.nextToken()
	if !allLiterals {
		return &ast.Call{Name: "DICT", Args: args}
	}
	dict := make(object.Dictionary, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key := args[i].(*ast.Literal).Value.(object.String).Value
		dict[key] = args[i+1].(*ast.Literal).Value.(object.Value)
	}
	return &ast.Literal{Value: dict}
}

// Parses a comma separated list up to the end token, current token being the opening one.
// Returns nil on error and a non nil empty slice for an empty list.
func (p *Parser) parseExpressionList(end token.Type) []ast.Node {
	list := []ast.Node{}
	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}
	p.nextToken()
	e := p.parseExpression(LOWEST)
	if e == nil {
		return nil
	}
	list = append(list, e)
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		e = p.parseExpression(LOWEST)
		if e == nil {
			return nil
		}
		list = append(list, e)
	}
	if !p.expectPeek(end) {
		return nil
	}
	return list
}
