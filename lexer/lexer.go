// Package lexer turns formula text into tokens.
package lexer

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"calcfield.io/calc/token"
)

type Lexer struct {
	input []byte
	pos   int
	// Previous token was a `.`, numbers are member indexes: `a.0.1` is a.0 then .1
	member bool
}

func New(input string) *Lexer {
	return &Lexer{input: []byte(input)}
}

func (l *Lexer) Pos() int {
	return l.pos
}

func (l *Lexer) NextToken() token.Token {
	tok := l.nextToken()
	l.member = tok.Type == token.DOT
	return tok
}

func (l *Lexer) nextToken() token.Token {
	l.skipWhitespace()
	start := l.pos
	ch := l.readChar()
	switch {
	case ch == 0:
		return token.Token{Type: token.EOF, Pos: start}
	case ch == '"' || ch == '\'':
		str, problem := l.readString(ch)
		if problem != "" {
			return token.Token{Type: token.ILLEGAL, Literal: problem, Pos: start}
		}
		return token.Token{Type: token.STRING, Literal: str, Pos: start}
	case isLetter(ch):
		ident := l.readIdentifier()
		return token.Token{Type: token.LookupIdent(ident), Literal: ident, Pos: start}
	case isDigit(ch) && l.member:
		return token.Token{Type: token.NUMBER, Literal: l.readIndex(), Pos: start}
	case isDigit(ch):
		return token.Token{Type: token.NUMBER, Literal: l.readNumber(), Pos: start}
	}
	if next := l.peekChar(); next != 0 {
		two := string([]byte{ch, next})
		if t, ok := token.LookupOperator(two); ok {
			l.pos++
			return token.Token{Type: t, Literal: two, Pos: start}
		}
	}
	one := string(ch)
	if t, ok := token.LookupOperator(one); ok {
		return token.Token{Type: t, Literal: one, Pos: start}
	}
	return token.Token{Type: token.ILLEGAL, Literal: one, Pos: start}
}

func isWhiteSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func (l *Lexer) skipWhitespace() {
	for isWhiteSpace(l.peekChar()) {
		l.pos++
	}
}

func (l *Lexer) readChar() byte {
	ch := l.peekChar()
	l.pos++
	return ch
}

func (l *Lexer) peekChar() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func hexCharToHex(ch byte) (byte, bool) {
	switch {
	case '0' <= ch && ch <= '9':
		return ch - '0', true
	case 'a' <= ch && ch <= 'f':
		return ch - 'a' + 10, true
	case 'A' <= ch && ch <= 'F':
		return ch - 'A' + 10, true
	}
	return 0, false
}

func (l *Lexer) readUnicode16() (rune, bool) {
	var r rune
	for range 4 {
		h, ok := hexCharToHex(l.readChar())
		if !ok {
			return 0, false
		}
		r = r<<4 | rune(h)
	}
	return r, true
}

// Reads a string up to the sep quote, handling backslash escapes.
// Returns what is wrong with the string, if anything.
func (l *Lexer) readString(sep byte) (string, string) {
	buf := strings.Builder{}
	for {
		ch := l.readChar()
		switch ch {
		case 0:
			if l.pos > len(l.input) {
				return buf.String(), "unterminated string"
			}
		case sep:
			return buf.String(), ""
		case '\\':
			escPos := l.pos - 1
			ch = l.readChar()
			switch ch {
			case 'r':
				ch = '\r'
			case 'n':
				ch = '\n'
			case 't':
				ch = '\t'
			case 'u':
				r, ok := l.readUnicode16()
				if !ok {
					return buf.String(), "invalid escape " + strconv.Quote(string(l.input[escPos:min(l.pos, len(l.input))]))
				}
				buf.WriteRune(r)
				continue
			case '\\', '"', '\'', '/':
			case 0:
				return buf.String(), "unterminated string"
			default:
				_, size := utf8.DecodeRune(l.input[l.pos-1:])
				return buf.String(), "invalid escape " + strconv.Quote(string(l.input[escPos:l.pos-1+size]))
			}
		}
		buf.WriteByte(ch)
	}
}

func (l *Lexer) readIdentifier() string {
	pos := l.pos - 1
	for IsAlphaNum(l.peekChar()) {
		l.pos++
	}
	return string(l.input[pos:l.pos])
}

// readIndex reads the digits of a member index.
func (l *Lexer) readIndex() string {
	pos := l.pos - 1
	for isDigit(l.peekChar()) {
		l.pos++
	}
	return string(l.input[pos:l.pos])
}

// readNumber reads the rest of a number whose first digit was already consumed.
// Underscores are kept in the literal, the parser strips them.
func (l *Lexer) readNumber() string {
	pos := l.pos - 1
	for isDigitOrUnderscore(l.peekChar()) {
		l.pos++
	}
	// Fractional part, only when followed by a digit so `1.a` isn't eaten.
	if l.peekChar() == '.' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]) {
		l.pos++
		for isDigitOrUnderscore(l.peekChar()) {
			l.pos++
		}
	}
	peek := l.peekChar()
	if peek != 'e' && peek != 'E' {
		return string(l.input[pos:l.pos])
	}
	errPos := l.pos
	l.pos++
	if peek = l.peekChar(); peek == '+' || peek == '-' {
		l.pos++
	}
	if !isDigit(l.peekChar()) {
		// not an exponent, leave the e for the next token.
		l.pos = errPos
		return string(l.input[pos:l.pos])
	}
	for isDigitOrUnderscore(l.peekChar()) {
		l.pos++
	}
	return string(l.input[pos:l.pos])
}

func isLetter(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_' || ch == '$'
}

func IsAlphaNum(ch byte) bool {
	return isLetter(ch) || isDigit(ch)
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isDigitOrUnderscore(ch byte) bool {
	return isDigit(ch) || ch == '_'
}
