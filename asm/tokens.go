package asm

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes, starting at 1 to stay clear of parsly.EOF.
const (
	whitespaceCode = iota + 1
	identifierCode
	numberCode
	stringCode
	commaCode
	colonCode
	openParenCode
	closeParenCode
	commentCode
)

var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	identifierToken = parsly.NewToken(identifierCode, "Identifier", &identifierMatcher{})
	numberToken     = parsly.NewToken(numberCode, "Number", &numberMatcher{})
	stringToken     = parsly.NewToken(stringCode, "String", &stringMatcher{})
	commaToken      = parsly.NewToken(commaCode, ",", matcher.NewByte(','))
	colonToken      = parsly.NewToken(colonCode, ":", matcher.NewByte(':'))
	openParenToken  = parsly.NewToken(openParenCode, "(", matcher.NewByte('('))
	closeParenToken = parsly.NewToken(closeParenCode, ")", matcher.NewByte(')'))
	commentToken    = parsly.NewToken(commentCode, "Comment", &commentMatcher{})
)

// identifierMatcher matches mnemonics, registers, labels and directives.
type identifierMatcher struct{}

func (m *identifierMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos

	if pos >= cursor.InputSize {
		return 0
	}

	if !isLetter(input[pos]) && input[pos] != '_' && input[pos] != '.' {
		return 0
	}

	matched := 1
	for i := pos + 1; i < cursor.InputSize; i++ {
		c := input[i]
		if isLetter(c) || isDigit(c) || c == '_' || c == '.' {
			matched++
			continue
		}
		break
	}

	return matched
}

// numberMatcher matches signed decimal and 0x prefixed hexadecimal integers.
type numberMatcher struct{}

func (m *numberMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	i := pos
	if i < size && input[i] == '-' {
		i++
	}

	if i >= size || !isDigit(input[i]) {
		return 0
	}

	if input[i] == '0' && i+1 < size && (input[i+1] == 'x' || input[i+1] == 'X') {
		i += 2
		start := i
		for i < size && isHexDigit(input[i]) {
			i++
		}
		if i == start {
			return 0
		}
		return i - pos
	}

	for i < size && isDigit(input[i]) {
		i++
	}

	return i - pos
}

// stringMatcher matches a double quoted literal with backslash escapes.
type stringMatcher struct{}

func (m *stringMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos

	if pos >= cursor.InputSize || input[pos] != '"' {
		return 0
	}

	for i := pos + 1; i < cursor.InputSize; i++ {
		switch input[i] {
		case '\\':
			i++
		case '"':
			return i - pos + 1
		}
	}

	return 0
}

// commentMatcher matches '#' or ';' through the end of the line.
type commentMatcher struct{}

func (m *commentMatcher) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos

	if pos >= cursor.InputSize {
		return 0
	}

	if c := cursor.Input[pos]; c != '#' && c != ';' {
		return 0
	}

	return cursor.InputSize - pos
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
