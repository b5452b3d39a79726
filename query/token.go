package query

import "strings"

// TokenKind identifies the variant held by a Token.
type TokenKind string

const (
	TokenFreeText   TokenKind = "free_text"
	TokenFilter     TokenKind = "filter"
	TokenBoolOp     TokenKind = "bool_op"
	TokenGroupOpen  TokenKind = "group_open"
	TokenGroupClose TokenKind = "group_close"
	TokenSpacer     TokenKind = "spacer"
)

// Operator is the comparison a filter applies to its value.
type Operator string

const (
	OpEquals     Operator = "equals"
	OpGreater    Operator = "greater"
	OpGreaterEq  Operator = "greater_eq"
	OpLess       Operator = "less"
	OpLessEq     Operator = "less_eq"
	OpInList     Operator = "in_list"
	OpHas        Operator = "has"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
)

// IsWildcard reports whether op is one of contains, starts_with or ends_with.
func (op Operator) IsWildcard() bool {
	return op == OpContains || op == OpStartsWith || op == OpEndsWith
}

// BoolKind is an explicit boolean connective.
type BoolKind string

const (
	BoolAnd BoolKind = "AND"
	BoolOr  BoolKind = "OR"
)

// ListItem is one entry of a bracket-list value.
type ListItem struct {
	Value    string   `json:"value"`
	Quoted   bool     `json:"quoted,omitempty"`   // Item was written inside double quotes
	Wildcard Operator `json:"wildcard,omitempty"` // Set for wildcard list variants
}

// Token is one element of a parsed query. Kind selects which fields apply.
type Token struct {
	Kind TokenKind `json:"kind"`

	// Free text
	Text string `json:"text,omitempty"`

	// Filter
	Key      string     `json:"key,omitempty"`
	Negated  bool       `json:"negated,omitempty"`
	Operator Operator   `json:"operator,omitempty"`
	Value    string     `json:"value,omitempty"`
	List     []ListItem `json:"list,omitempty"`

	// Boolean operator
	Bool BoolKind `json:"bool,omitempty"`
}

// FreeText returns a free-text token.
func FreeText(text string) Token {
	return Token{Kind: TokenFreeText, Text: text}
}

// Filter returns a scalar filter token. The key "has" always yields a has filter.
func Filter(key string, op Operator, value string) Token {
	if key == hasKey {
		op = OpHas
	}
	return Token{Kind: TokenFilter, Key: key, Operator: op, Value: value}
}

// ListFilter returns an in_list filter token. wildcard may be empty.
func ListFilter(key string, wildcard Operator, values []string) Token {
	items := make([]ListItem, len(values))
	for i, v := range values {
		items[i] = ListItem{Value: v, Wildcard: wildcard}
	}
	return Token{Kind: TokenFilter, Key: key, Operator: OpInList, List: items}
}

// Bool returns an AND/OR token.
func Bool(kind BoolKind) Token {
	return Token{Kind: TokenBoolOp, Bool: kind}
}

// GroupOpen returns a "(" token.
func GroupOpen() Token { return Token{Kind: TokenGroupOpen} }

// GroupClose returns a ")" token.
func GroupClose() Token { return Token{Kind: TokenGroupClose} }

// Spacer returns a separator token. It only affects serialization.
func Spacer() Token { return Token{Kind: TokenSpacer} }

// IsFilter reports whether t is a filter on key.
func (t Token) IsFilter(key string) bool {
	return t.Kind == TokenFilter && t.Key == key
}

// Values returns the filter's values: the list items for in_list filters,
// otherwise the single scalar value.
func (t Token) Values() []string {
	if t.Kind != TokenFilter {
		return nil
	}
	if t.Operator == OpInList {
		values := make([]string, len(t.List))
		for i, item := range t.List {
			values[i] = item.Value
		}
		return values
	}
	return []string{t.Value}
}

// Equal reports whether two tokens are identical.
func (t Token) Equal(o Token) bool {
	if t.Kind != o.Kind || t.Text != o.Text || t.Key != o.Key || t.Negated != o.Negated ||
		t.Operator != o.Operator || t.Value != o.Value || t.Bool != o.Bool || len(t.List) != len(o.List) {
		return false
	}
	for i := range t.List {
		if t.List[i] != o.List[i] {
			return false
		}
	}
	return true
}

// clone returns a deep copy of t.
func (t Token) clone() Token {
	if t.List != nil {
		t.List = append([]ListItem(nil), t.List...)
	}
	return t
}

func cloneTokens(tokens []Token) []Token {
	out := make([]Token, len(tokens))
	for i, t := range tokens {
		out[i] = t.clone()
	}
	return out
}

// wildcardMarker delimits the wildcard operator tag inside a serialized value.
// It is a private-use codepoint that never appears in typed input.
const wildcardMarker = "\uf00d"

var wildcardTags = map[Operator]string{
	OpContains:   "Contains",
	OpStartsWith: "StartsWith",
	OpEndsWith:   "EndsWith",
}

// wildcardPrefix returns the marker string that precedes a wildcard value.
func wildcardPrefix(op Operator) string {
	return wildcardMarker + wildcardTags[op] + wildcardMarker
}

// splitWildcard strips a leading wildcard marker from s.
func splitWildcard(s string) (Operator, string, bool) {
	if !strings.HasPrefix(s, wildcardMarker) {
		return "", s, false
	}
	for op, tag := range wildcardTags {
		prefix := wildcardMarker + tag + wildcardMarker
		if strings.HasPrefix(s, prefix) {
			return op, s[len(prefix):], true
		}
	}
	return "", s, false
}

const hasKey = "has"
