package query

import "strings"

// Format renders tokens as canonical query text.
//
// Tokens are separated by a single space, parentheses included, so
// "(a:a OR b:b)" becomes "( a:a OR b:b )". Values are quoted only when
// the unquoted form would lex differently.
func Format(tokens []Token) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if s, ok := formatToken(t); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func formatToken(t Token) (string, bool) {
	switch t.Kind {
	case TokenFreeText:
		return formatFreeText(t.Text), true
	case TokenFilter:
		return formatFilter(t), true
	case TokenBoolOp:
		if t.Bool == BoolOr {
			return string(BoolOr), true
		}
		return string(BoolAnd), true
	case TokenGroupOpen:
		return "(", true
	case TokenGroupClose:
		return ")", true
	default:
		return "", false
	}
}

func formatFreeText(text string) string {
	if text == "" || strings.ContainsAny(text, " \t\n\r()\"\\:") || !bracketsBalanced(text) ||
		strings.EqualFold(text, string(BoolAnd)) || strings.EqualFold(text, string(BoolOr)) {
		return quote(text)
	}
	return text
}

func formatFilter(t Token) string {
	var b strings.Builder
	if t.Negated {
		b.WriteByte('!')
	}
	b.WriteString(t.Key)
	b.WriteByte(':')

	switch t.Operator {
	case OpInList:
		b.WriteByte('[')
		for i, item := range t.List {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(formatListItem(item))
		}
		b.WriteByte(']')
	case OpGreater, OpGreaterEq, OpLess, OpLessEq:
		b.WriteString(comparisonSymbol(t.Operator))
		value := t.Value
		if needsQuote(value) || (t.Operator == OpGreater || t.Operator == OpLess) && strings.HasPrefix(value, "=") {
			value = quote(value)
		}
		b.WriteString(value)
	case OpContains, OpStartsWith, OpEndsWith:
		b.WriteString(wildcardPrefix(t.Operator))
		b.WriteString(maybeQuote(t.Value))
	case OpHas:
		value := t.Value
		if needsQuote(value) || strings.HasPrefix(value, "[") {
			value = quote(value)
		}
		b.WriteString(value)
	default:
		value := t.Value
		if needsQuote(value) || startsAmbiguous(value) {
			value = quote(value)
		}
		b.WriteString(value)
	}

	return b.String()
}

func formatListItem(item ListItem) string {
	var prefix string
	if item.Wildcard.IsWildcard() {
		prefix = wildcardPrefix(item.Wildcard)
	}
	value := item.Value
	if item.Quoted || value == "" || strings.ContainsAny(value, ", \t\n\r\"\\") || !listItemBalanced(value) ||
		(prefix == "" && strings.HasPrefix(value, wildcardMarker)) {
		value = quote(value)
	}
	return prefix + value
}

func comparisonSymbol(op Operator) string {
	for _, c := range comparisonPrefixes {
		if c.op == op {
			return c.prefix
		}
	}
	return ""
}

// needsQuote reports whether a scalar value must be quoted to lex back unchanged.
func needsQuote(value string) bool {
	return value == "" || strings.ContainsAny(value, " \t\n\r()\"\\") || !bracketsBalanced(value)
}

// startsAmbiguous reports whether an equals value would be read as a list,
// a comparison or a wildcard when unquoted.
func startsAmbiguous(value string) bool {
	return strings.HasPrefix(value, "[") || strings.HasPrefix(value, ">") ||
		strings.HasPrefix(value, "<") || strings.HasPrefix(value, wildcardMarker)
}

func maybeQuote(value string) string {
	if needsQuote(value) {
		return quote(value)
	}
	return value
}

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}

// bracketsBalanced reports whether every '[' in s is closed. Unclosed
// brackets would swallow the rest of the input when lexed.
func bracketsBalanced(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		}
	}
	return depth == 0
}

// listItemBalanced is bracketsBalanced without tolerance for a stray ']',
// which would close the surrounding list early.
func listItemBalanced(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			if depth == 0 {
				return false
			}
			depth--
		}
	}
	return depth == 0
}
