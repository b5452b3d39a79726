package query

import "strings"

// Option configures classification.
type Option func(*parser)

// WithFlattenParenGroups drops "(" and ")" from the classified output.
// Callers that only extract filters use it; formatting needs the groups.
func WithFlattenParenGroups() Option {
	return func(p *parser) {
		p.flattenParenGroups = true
	}
}

// parser classifies lexical items into tokens.
type parser struct {
	items              []LexItem
	pos                int
	flattenParenGroups bool
}

// newParser creates a new parser for the given items.
func newParser(items []LexItem, opts ...Option) *parser {
	p := &parser{items: items}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Classify converts lexical items into an ordered token list.
func Classify(items []LexItem, opts ...Option) []Token {
	return newParser(items, opts...).parse()
}

// ParseTokens tokenizes and classifies raw query text.
func ParseTokens(raw string, opts ...Option) []Token {
	return Classify(Tokenize(raw), opts...)
}

// parse classifies every item in source order.
func (p *parser) parse() []Token {
	tokens := make([]Token, 0, len(p.items))

	for p.pos < len(p.items) {
		item := p.items[p.pos]
		p.pos++

		switch item.Kind {
		case LexOpenParen:
			if !p.flattenParenGroups {
				tokens = append(tokens, GroupOpen())
			}
		case LexCloseParen:
			if !p.flattenParenGroups {
				tokens = append(tokens, GroupClose())
			}
		case LexFilter:
			tokens = append(tokens, classifyFilter(item))
		default:
			tokens = append(tokens, classifyWord(item))
		}
	}

	return tokens
}

// classifyWord returns a boolean operator for unquoted AND/OR, free text otherwise.
func classifyWord(item LexItem) Token {
	if !item.Quoted {
		switch {
		case strings.EqualFold(item.Text, string(BoolAnd)):
			return Bool(BoolAnd)
		case strings.EqualFold(item.Text, string(BoolOr)):
			return Bool(BoolOr)
		}
	}
	return FreeText(item.Text)
}

// classifyFilter derives the operator and value of a key:value item.
func classifyFilter(item LexItem) Token {
	key := item.Key
	negated := false
	if strings.HasPrefix(key, "!") {
		negated = true
		key = key[1:]
	}

	token := Token{Kind: TokenFilter, Key: key, Negated: negated}

	switch {
	case item.IsList:
		token.Operator = OpInList
		token.List = item.List
	case key == hasKey:
		token.Operator = OpHas
		token.Value = item.Value
	case item.Quoted:
		token.Operator = OpEquals
		token.Value = item.Value
	default:
		token.Operator, token.Value = splitOperator(item.Value)
	}

	return token
}

// comparisonPrefixes is ordered so two-character operators match first.
var comparisonPrefixes = []struct {
	prefix string
	op     Operator
}{
	{">=", OpGreaterEq},
	{"<=", OpLessEq},
	{">", OpGreater},
	{"<", OpLess},
}

// splitOperator reads a wildcard marker or comparison prefix from a bare value.
func splitOperator(value string) (Operator, string) {
	if op, rest, ok := splitWildcard(value); ok {
		return op, unquoteOrRaw(rest)
	}
	for _, c := range comparisonPrefixes {
		if strings.HasPrefix(value, c.prefix) {
			return c.op, unquoteOrRaw(value[len(c.prefix):])
		}
	}
	return OpEquals, value
}

func unquoteOrRaw(s string) string {
	if text, ok := unquote(s); ok {
		return text
	}
	return s
}
