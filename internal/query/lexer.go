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
	tokWord          // keywords, prefixed names, numbers, true/false
	tokVar           // ?name
	tokIRI           // <...>
	tokString        // "..." or '...'
	tokPunct         // { } ( ) . *
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of query"
	case tokVar:
		return "?" + t.text
	case tokIRI:
		return "<" + t.text + ">"
	case tokString:
		return strconv.Quote(t.text)
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

// is reports whether t is the keyword or punctuation s (keywords compare
// case-insensitively).
func (t token) is(s string) bool {
	switch t.kind {
	case tokPunct:
		return t.text == s
	case tokWord:
		return strings.EqualFold(t.text, s)
	default:
		return false
	}
}

// lexer produces tokens on demand so the parser can switch to raw scanning for
// FILTER expressions.
type lexer struct {
	src    string
	pos    int
	peeked *token
}

func isPunct(r byte) bool {
	switch r {
	case '{', '}', '(', ')', '*':
		return true
	}
	return false
}

func (l *lexer) peek() (token, error) {
	if l.peeked == nil {
		t, err := l.scan()
		if err != nil {
			return token{}, err
		}
		l.peeked = &t
	}
	return *l.peeked, nil
}

func (l *lexer) next() (token, error) {
	t, err := l.peek()
	l.peeked = nil
	return t, err
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case unicode.IsSpace(rune(c)):
			l.pos++
		default:
			return
		}
	}
}

func (l *lexer) scan() (token, error) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}

	c := l.src[l.pos]
	switch {
	case isPunct(c):
		l.pos++
		return token{kind: tokPunct, text: string(c), pos: start}, nil

	case c == '.':
		l.pos++
		return token{kind: tokPunct, text: ".", pos: start}, nil

	case c == '?' || c == '$':
		l.pos++
		for l.pos < len(l.src) && isNameByte(l.src[l.pos]) {
			l.pos++
		}
		name := l.src[start+1 : l.pos]
		if name == "" {
			return token{}, fmt.Errorf("expected a variable name after %q at offset %d", c, start)
		}
		return token{kind: tokVar, text: name, pos: start}, nil

	case c == '<':
		end := strings.IndexByte(l.src[l.pos:], '>')
		if end < 0 {
			return token{}, fmt.Errorf("expected '>' to close the IRI at offset %d", start)
		}
		l.pos += end + 1
		return token{kind: tokIRI, text: l.src[start+1 : l.pos-1], pos: start}, nil

	case c == '"' || c == '\'':
		s, err := l.scanString(c)
		if err != nil {
			return token{}, err
		}
		return token{kind: tokString, text: s, pos: start}, nil
	}

	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if unicode.IsSpace(rune(c)) || isPunct(c) || c == '"' || c == '\'' || c == '<' {
			break
		}
		l.pos++
	}
	// a trailing '.' terminates the triple rather than belonging to the name
	for l.pos > start+1 && l.src[l.pos-1] == '.' {
		l.pos--
	}
	return token{kind: tokWord, text: l.src[start:l.pos], pos: start}, nil
}

func isNameByte(c byte) bool {
	return c == '_' || c == '-' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func (l *lexer) scanString(quote byte) (string, error) {
	start := l.pos
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == quote:
			l.pos++
			return b.String(), nil
		case c == '\\' && l.pos+1 < len(l.src):
			l.pos++
			switch e := l.src[l.pos]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
		l.pos++
	}
	return "", fmt.Errorf("expected closing %c for the string at offset %d", quote, start)
}

// rawParens returns the text between a '(' at the current position and its
// matching ')', skipping over string literals.
func (l *lexer) rawParens() (string, error) {
	if l.peeked != nil {
		if !l.peeked.is("(") {
			return "", fmt.Errorf("expected '(' after FILTER but found %s", *l.peeked)
		}
		l.pos = l.peeked.pos
		l.peeked = nil
	}
	l.skipSpace()
	if l.pos >= len(l.src) || l.src[l.pos] != '(' {
		return "", fmt.Errorf("expected '(' after FILTER at offset %d", l.pos)
	}

	open := l.pos
	depth := 0
	for l.pos < len(l.src) {
		switch c := l.src[l.pos]; c {
		case '"', '\'':
			if _, err := l.scanString(c); err != nil {
				return "", err
			}
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				l.pos++
				return l.src[open+1 : l.pos-1], nil
			}
		}
		l.pos++
	}
	return "", fmt.Errorf("expected ')' to close FILTER opened at offset %d", open)
}
