package rcs

import (
	"fmt"
	"strings"
)

// lexer tokenizes RCS ",v" syntax: bare words, numbers, and '@'-quoted
// strings (where a literal '@' is doubled). RCS has no other quoting
// convention, so a hand-rolled scanner is simpler and more direct here
// than pressing text/scanner (built for Go source) into service.
type lexer struct {
	data []byte
	pos  int
}

func newLexer(data []byte) *lexer {
	return &lexer{data: data}
}

func (l *lexer) peekByte() (byte, bool) {
	if l.pos >= len(l.data) {
		return 0, false
	}
	return l.data[l.pos], true
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		switch l.data[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

// token returns the next bare token (up to whitespace, ';', or ':'),
// the next '@'-quoted string with the quoting unescaped, or an error at
// end of input.
func (l *lexer) token() (string, error) {
	l.skipSpace()
	b, ok := l.peekByte()
	if !ok {
		return "", fmt.Errorf("rcs: unexpected end of file")
	}
	if b == '@' {
		return l.quotedString()
	}
	start := l.pos
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ';' || c == ':' {
			break
		}
		l.pos++
	}
	return string(l.data[start:l.pos]), nil
}

// quotedString reads an '@'-delimited string starting at the current '@',
// where "@@" within the string is an escaped literal '@'.
func (l *lexer) quotedString() (string, error) {
	if b, ok := l.peekByte(); !ok || b != '@' {
		return "", fmt.Errorf("rcs: expected '@' at offset %d", l.pos)
	}
	l.pos++ // consume opening '@'
	var b strings.Builder
	for {
		idx := indexByte(l.data, '@', l.pos)
		if idx < 0 {
			return "", fmt.Errorf("rcs: unterminated string starting at offset %d", l.pos)
		}
		b.Write(l.data[l.pos:idx])
		if idx+1 < len(l.data) && l.data[idx+1] == '@' {
			b.WriteByte('@')
			l.pos = idx + 2
			continue
		}
		l.pos = idx + 1
		return b.String(), nil
	}
}

func indexByte(data []byte, c byte, from int) int {
	for i := from; i < len(data); i++ {
		if data[i] == c {
			return i
		}
	}
	return -1
}

// expectByte consumes the next non-space byte, which must equal want.
func (l *lexer) expectByte(want byte) error {
	l.skipSpace()
	b, ok := l.peekByte()
	if !ok || b != want {
		return fmt.Errorf("rcs: expected %q at offset %d", want, l.pos)
	}
	l.pos++
	return nil
}

// skipToSemicolon advances past the next ';', honoring '@'-quoted strings
// so a ';' inside a log message or text body does not terminate early.
func (l *lexer) skipToSemicolon() error {
	for {
		l.skipSpace()
		b, ok := l.peekByte()
		if !ok {
			return fmt.Errorf("rcs: unexpected end of file seeking ';'")
		}
		if b == '@' {
			if _, err := l.quotedString(); err != nil {
				return err
			}
			continue
		}
		if b == ';' {
			l.pos++
			return nil
		}
		l.pos++
	}
}

func (l *lexer) atEOF() bool {
	l.skipSpace()
	return l.pos >= len(l.data)
}
