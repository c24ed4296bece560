// Package token defines the lexical tokens of the formula language.
package token

import "fortio.org/log"

type Type uint8

// Token is one lexical unit. Pos is the byte offset of its first character.
type Token struct {
	Type    Type
	Literal string
	Pos     int
}

const (
	ILLEGAL Type = iota
	EOF

	// Identifiers + literals.
	IDENT  // text1, table1, row
	NUMBER // 1343456, 1.5, 1e3
	STRING // "foo" or 'foo'

	// Keywords.
	TRUE
	FALSE
	NULL
	UNDEFINED

	// Operators.
	PLUS
	MINUS
	ASTERISK
	SLASH
	PERCENT
	CARET
	BANG

	EQ
	NOTEQ
	LT
	GT
	LTEQ
	GTEQ

	AND
	OR
	ARROW // -> or =>

	// Delimiters.
	COMMA
	COLON
	DOT

	LPAREN
	RPAREN
	LBRACKET
	RBRACKET
	LBRACE
	RBRACE

	LAST
)

var typeNames = [...]string{
	ILLEGAL:   "ILLEGAL",
	EOF:       "EOF",
	IDENT:     "IDENT",
	NUMBER:    "NUMBER",
	STRING:    "STRING",
	TRUE:      "TRUE",
	FALSE:     "FALSE",
	NULL:      "NULL",
	UNDEFINED: "UNDEFINED",
	PLUS:      "PLUS",
	MINUS:     "MINUS",
	ASTERISK:  "ASTERISK",
	SLASH:     "SLASH",
	PERCENT:   "PERCENT",
	CARET:     "CARET",
	BANG:      "BANG",
	EQ:        "EQ",
	NOTEQ:     "NOTEQ",
	LT:        "LT",
	GT:        "GT",
	LTEQ:      "LTEQ",
	GTEQ:      "GTEQ",
	AND:       "AND",
	OR:        "OR",
	ARROW:     "ARROW",
	COMMA:     "COMMA",
	COLON:     "COLON",
	DOT:       "DOT",
	LPAREN:    "LPAREN",
	RPAREN:    "RPAREN",
	LBRACKET:  "LBRACKET",
	RBRACKET:  "RBRACKET",
	LBRACE:    "LBRACE",
	RBRACE:    "RBRACE",
	LAST:      "LAST",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Type(?)"
}

var keywords = map[string]Type{
	"true":      TRUE,
	"false":     FALSE,
	"null":      NULL,
	"undefined": UNDEFINED,
}

// Operators and delimiters with their literal, used by the lexer for
// single and double character lookups.
var operators = map[string]Type{
	"+":  PLUS,
	"-":  MINUS,
	"*":  ASTERISK,
	"/":  SLASH,
	"%":  PERCENT,
	"^":  CARET,
	"!":  BANG,
	"==": EQ,
	"=":  EQ, // spreadsheet style equality
	"!=": NOTEQ,
	"<>": NOTEQ,
	"<":  LT,
	">":  GT,
	"<=": LTEQ,
	">=": GTEQ,
	"&&": AND,
	"||": OR,
	"->": ARROW,
	"=>": ARROW,
	",":  COMMA,
	":":  COLON,
	".":  DOT,
	"(":  LPAREN,
	")":  RPAREN,
	"[":  LBRACKET,
	"]":  RBRACKET,
	"{":  LBRACE,
	"}":  RBRACE,
}

// LookupIdent returns the keyword type for ident or IDENT.
func LookupIdent(ident string) Type {
	if tok, ok := keywords[ident]; ok {
		log.Debugf("LookupIdent(%s) found %s", ident, tok)
		return tok
	}
	return IDENT
}

// LookupOperator returns the operator type for the literal op, if any.
func LookupOperator(op string) (Type, bool) {
	t, ok := operators[op]
	return t, ok
}

func (t Token) String() string {
	return t.Type.String() + ":" + t.Literal
}
