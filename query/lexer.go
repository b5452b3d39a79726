package query

import (
	"regexp"
	"strings"
)

// LexKind represents the type of a lexical item.
type LexKind int

const (
	LexWord LexKind = iota
	LexFilter
	LexOpenParen
	LexCloseParen
)

func (k LexKind) String() string {
	switch k {
	case LexWord:
		return "word"
	case LexFilter:
		return "filter"
	case LexOpenParen:
		return "("
	case LexCloseParen:
		return ")"
	default:
		return "unknown"
	}
}

// LexItem is one lexical unit of raw query text.
//
// Words carry Text (unescaped when Quoted). Filters carry the raw Key,
// which may start with "!", and either a scalar Value or a bracket List.
type LexItem struct {
	Kind   LexKind
	Text   string
	Quoted bool

	Key    string
	Value  string
	IsList bool
	List   []ListItem
}

var (
	simpleKeyPattern  = regexp.MustCompile(`^[A-Za-z0-9_@][A-Za-z0-9_.\-@]*$`)
	bracketKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*\[(?:"(?:[^"\\]|\\.)*"|[^\[\]",\s]+)(?:,\s*[A-Za-z_]+)?\]$`)
)

// ValidKey reports whether key can be written as a filter key.
func ValidKey(key string) bool {
	return simpleKeyPattern.MatchString(key) || bracketKeyPattern.MatchString(key)
}

// lexer tokenizes raw query text. It never fails: unterminated quotes and
// brackets extend to the end of the input.
type lexer struct {
	input string
	pos   int
}

// newLexer creates a new lexer for the given input.
func newLexer(input string) *lexer {
	return &lexer{
		input: input,
		pos:   0,
	}
}

// Tokenize splits raw query text into lexical items.
func Tokenize(raw string) []LexItem {
	return newLexer(raw).tokenize()
}

// tokenize converts the input string into a slice of items.
func (l *lexer) tokenize() []LexItem {
	var items []LexItem

	for l.pos < len(l.input) {
		ch := l.input[l.pos]

		switch {
		case isSpace(ch):
			l.pos++
		case ch == '(':
			items = append(items, LexItem{Kind: LexOpenParen, Text: "("})
			l.pos++
		case ch == ')':
			items = append(items, LexItem{Kind: LexCloseParen, Text: ")"})
			l.pos++
		default:
			items = append(items, classifyRun(l.readRun()))
		}
	}

	return items
}

// readRun reads a maximal run of characters up to an unquoted, unbracketed
// space or parenthesis.
func (l *lexer) readRun() string {
	start := l.pos
	depth := 0

	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '"' {
			l.pos, _ = readQuoted(l.input, l.pos)
			continue
		}
		if depth == 0 && (isSpace(ch) || ch == '(' || ch == ')') {
			break
		}
		switch ch {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		}
		l.pos++
	}

	return l.input[start:l.pos]
}

// readQuoted returns the offset just past the quoted string starting at
// s[start] and whether a closing quote was found.
func readQuoted(s string, start int) (int, bool) {
	pos := start + 1 // skip opening quote
	for pos < len(s) {
		switch s[pos] {
		case '\\':
			if pos+1 < len(s) {
				pos += 2
				continue
			}
		case '"':
			return pos + 1, true
		}
		pos++
	}
	return len(s), false
}

// unquote returns the content of s if s is exactly one terminated quoted string.
func unquote(s string) (string, bool) {
	if len(s) < 2 || s[0] != '"' {
		return "", false
	}
	end, ok := readQuoted(s, 0)
	if !ok || end != len(s) {
		return "", false
	}

	var value strings.Builder
	inner := s[1 : len(s)-1]
	for i := 0; i < len(inner); i++ {
		ch := inner[i]
		if ch == '\\' && i+1 < len(inner) {
			next := inner[i+1]
			if next == '"' || next == '\\' {
				value.WriteByte(next)
				i++
				continue
			}
		}
		value.WriteByte(ch)
	}
	return value.String(), true
}

// classifyRun turns a run into a word or a filter item.
func classifyRun(run string) LexItem {
	if text, ok := unquote(run); ok {
		return LexItem{Kind: LexWord, Text: text, Quoted: true}
	}

	colon := findColon(run)
	if colon <= 0 {
		return LexItem{Kind: LexWord, Text: run}
	}

	key := run[:colon]
	if !ValidKey(strings.TrimPrefix(key, "!")) {
		return LexItem{Kind: LexWord, Text: run}
	}

	item := LexItem{Kind: LexFilter, Key: key}
	value := run[colon+1:]

	if inner, ok := bracketBody(value); ok {
		item.IsList = true
		item.List = splitList(inner)
		return item
	}
	if text, ok := unquote(value); ok {
		item.Value = text
		item.Quoted = true
		return item
	}
	item.Value = value
	return item
}

// findColon returns the index of the first colon outside quotes and
// brackets, or -1.
func findColon(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			end, _ := readQuoted(s, i)
			i = end - 1
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// bracketBody returns the text between a leading '[' and its matching ']'
// when that ']' is the last character of s.
func bracketBody(s string) (string, bool) {
	if len(s) < 2 || s[0] != '[' {
		return "", false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			end, ok := readQuoted(s, i)
			if !ok {
				return "", false
			}
			i = end - 1
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				if i != len(s)-1 {
					return "", false
				}
				return s[1:i], true
			}
		}
	}
	return "", false
}

// splitList splits the body of a bracket list on top-level commas.
func splitList(body string) []ListItem {
	var items []ListItem
	depth := 0
	start := 0

	flush := func(end int) {
		segment := strings.TrimSpace(body[start:end])
		op, rest, _ := splitWildcard(segment)
		if text, ok := unquote(rest); ok {
			items = append(items, ListItem{Value: text, Quoted: true, Wildcard: op})
			return
		}
		if rest == "" && op == "" {
			return
		}
		items = append(items, ListItem{Value: rest, Wildcard: op})
	}

	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '"':
			end, _ := readQuoted(body, i)
			i = end - 1
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(body))

	return items
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}
