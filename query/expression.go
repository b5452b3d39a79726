package query

import "strings"

// Expression is a mutable query. Every mutation returns the expression so
// calls can be chained:
//
//	q := query.Parse("is:unresolved browser:Chrome").
//		RemoveFilter("browser").
//		AddDisjunctionFilterValues("release", []string{"1.0", "1.1"})
//	q.String() // "is:unresolved ( release:1.0 OR release:1.1 )"
//
// Operations on keys that are not present are no-ops. An Expression is not
// safe for concurrent mutation; separate instances share nothing.
type Expression struct {
	tokens []Token
}

// New returns an empty expression.
func New() *Expression {
	return &Expression{}
}

// Parse returns an expression holding the tokens of raw.
func Parse(raw string) *Expression {
	return &Expression{tokens: ParseTokens(raw)}
}

// FromClauses builds an expression from pre-split clause strings.
func FromClauses(clauses []string) *Expression {
	e := New()
	for _, c := range clauses {
		e.AddStringFilter(c)
	}
	return e
}

// FromTokens returns an expression holding a copy of tokens.
func FromTokens(tokens []Token) *Expression {
	return &Expression{tokens: cloneTokens(tokens)}
}

// Tokens returns a copy of the current token list.
func (e *Expression) Tokens() []Token {
	return cloneTokens(e.tokens)
}

// Copy returns an independent copy of e.
func (e *Expression) Copy() *Expression {
	return FromTokens(e.tokens)
}

// FormatString renders the expression as canonical query text.
func (e *Expression) FormatString() string {
	return Format(e.tokens)
}

func (e *Expression) String() string {
	return e.FormatString()
}

// AddFreeText appends a free-text word or phrase.
func (e *Expression) AddFreeText(word string) *Expression {
	if word == "" {
		return e
	}
	e.tokens = append(e.tokens, FreeText(word))
	return e
}

// SetFreeText removes all free text and appends words at the end.
func (e *Expression) SetFreeText(words []string) *Expression {
	if e.hasToken(func(t Token) bool { return t.Kind == TokenFreeText }) {
		e.tokens = rewriteTokens(e.tokens, func(t Token) []Token {
			if t.Kind == TokenFreeText {
				return nil
			}
			return []Token{t}
		})
	}
	for _, w := range words {
		e.AddFreeText(w)
	}
	return e
}

// FreeText returns the free-text words in document order.
func (e *Expression) FreeText() []string {
	var words []string
	for _, t := range e.tokens {
		if t.Kind == TokenFreeText {
			words = append(words, t.Text)
		}
	}
	return words
}

// AddStringFilter parses a clause such as `browser:"Chrome 36"` and appends its tokens.
func (e *Expression) AddStringFilter(clause string) *Expression {
	e.tokens = append(e.tokens, ParseTokens(clause)...)
	return e
}

// AddOp appends "(", ")", "AND" or "OR". Anything else is ignored.
func (e *Expression) AddOp(op string) *Expression {
	switch {
	case op == "(":
		e.tokens = append(e.tokens, GroupOpen())
	case op == ")":
		e.tokens = append(e.tokens, GroupClose())
	case strings.EqualFold(op, string(BoolAnd)):
		e.tokens = append(e.tokens, Bool(BoolAnd))
	case strings.EqualFold(op, string(BoolOr)):
		e.tokens = append(e.tokens, Bool(BoolOr))
	}
	return e
}

// AddFilterValue appends key:value.
func (e *Expression) AddFilterValue(key, value string) *Expression {
	return e.addValues(key, OpEquals, []string{value})
}

// AddFilterValues appends one key:value filter per value.
func (e *Expression) AddFilterValues(key string, values []string) *Expression {
	return e.addValues(key, OpEquals, values)
}

// AddNegatedFilterValue appends !key:value.
func (e *Expression) AddNegatedFilterValue(key, value string) *Expression {
	if !ValidKey(key) || value == "" {
		return e
	}
	t := filterToken(key, OpEquals, value)
	t.Negated = true
	e.tokens = append(e.tokens, t)
	return e
}

func (e *Expression) AddContainsFilterValue(key, value string) *Expression {
	return e.addValues(key, OpContains, []string{value})
}

func (e *Expression) AddContainsFilterValues(key string, values []string) *Expression {
	return e.addValues(key, OpContains, values)
}

func (e *Expression) AddStartsWithFilterValue(key, value string) *Expression {
	return e.addValues(key, OpStartsWith, []string{value})
}

func (e *Expression) AddStartsWithFilterValues(key string, values []string) *Expression {
	return e.addValues(key, OpStartsWith, values)
}

func (e *Expression) AddEndsWithFilterValue(key, value string) *Expression {
	return e.addValues(key, OpEndsWith, []string{value})
}

func (e *Expression) AddEndsWithFilterValues(key string, values []string) *Expression {
	return e.addValues(key, OpEndsWith, values)
}

// AddFilterValueList appends key:[v1,v2,...].
func (e *Expression) AddFilterValueList(key string, values []string) *Expression {
	return e.addList(key, "", values)
}

func (e *Expression) AddContainsFilterValueList(key string, values []string) *Expression {
	return e.addList(key, OpContains, values)
}

func (e *Expression) AddStartsWithFilterValueList(key string, values []string) *Expression {
	return e.addList(key, OpStartsWith, values)
}

func (e *Expression) AddEndsWithFilterValueList(key string, values []string) *Expression {
	return e.addList(key, OpEndsWith, values)
}

// AddDisjunctionFilterValues appends ( key:v1 OR key:v2 ... ).
func (e *Expression) AddDisjunctionFilterValues(key string, values []string) *Expression {
	return e.addDisjunction(key, OpEquals, values)
}

func (e *Expression) AddContainsDisjunctionFilterValues(key string, values []string) *Expression {
	return e.addDisjunction(key, OpContains, values)
}

func (e *Expression) AddStartsWithDisjunctionFilterValues(key string, values []string) *Expression {
	return e.addDisjunction(key, OpStartsWith, values)
}

func (e *Expression) AddEndsWithDisjunctionFilterValues(key string, values []string) *Expression {
	return e.addDisjunction(key, OpEndsWith, values)
}

// SetFilterValues replaces every filter on key with one filter per value,
// placed where key first appeared. Operators joining other clauses are kept;
// groups left with a single operand lose their parentheses.
func (e *Expression) SetFilterValues(key string, values []string) *Expression {
	return e.setFilter(key, valueTokens(key, OpEquals, values))
}

func (e *Expression) SetContainsFilterValues(key string, values []string) *Expression {
	return e.setFilter(key, valueTokens(key, OpContains, values))
}

func (e *Expression) SetStartsWithFilterValues(key string, values []string) *Expression {
	return e.setFilter(key, valueTokens(key, OpStartsWith, values))
}

func (e *Expression) SetEndsWithFilterValues(key string, values []string) *Expression {
	return e.setFilter(key, valueTokens(key, OpEndsWith, values))
}

// SetFilterValueList replaces every filter on key with a single key:[...] filter.
func (e *Expression) SetFilterValueList(key string, values []string) *Expression {
	values = nonEmpty(values)
	if len(values) == 0 {
		return e.RemoveFilter(key)
	}
	return e.setFilter(key, []Token{ListFilter(key, "", values)})
}

// RemoveFilter removes every filter on key, including inside nested
// groups, and simplifies the boolean structure around the removed clauses.
// A key written as "!key" only matches negated filters.
func (e *Expression) RemoveFilter(key string) *Expression {
	if !e.HasFilter(key) {
		return e
	}
	e.tokens = rewriteTokens(e.tokens, func(t Token) []Token {
		if matchesKey(t, key) {
			return nil
		}
		return []Token{t}
	})
	return e
}

// RemoveFilterValue removes filters on key whose value is value. List
// filters lose the matching items and are dropped once empty.
func (e *Expression) RemoveFilterValue(key, value string) *Expression {
	found := e.hasToken(func(t Token) bool {
		if !matchesKey(t, key) {
			return false
		}
		for _, v := range t.Values() {
			if v == value {
				return true
			}
		}
		return false
	})
	if !found {
		return e
	}

	e.tokens = rewriteTokens(e.tokens, func(t Token) []Token {
		if !matchesKey(t, key) {
			return []Token{t}
		}
		if t.Operator != OpInList {
			if t.Value == value {
				return nil
			}
			return []Token{t}
		}
		kept := make([]ListItem, 0, len(t.List))
		for _, item := range t.List {
			if item.Value != value {
				kept = append(kept, item)
			}
		}
		if len(kept) == 0 {
			return nil
		}
		t.List = kept
		return []Token{t}
	})
	return e
}

// HasFilter reports whether any filter on key is present.
func (e *Expression) HasFilter(key string) bool {
	if key == "" {
		return false
	}
	return e.hasToken(func(t Token) bool { return matchesKey(t, key) })
}

// FilterKeys returns filter keys in order of first appearance, without duplicates.
func (e *Expression) FilterKeys() []string {
	var keys []string
	seen := make(map[string]bool)
	for _, t := range e.tokens {
		if t.Kind != TokenFilter || seen[t.Key] {
			continue
		}
		seen[t.Key] = true
		keys = append(keys, t.Key)
	}
	return keys
}

// FilterValues returns every value of key in document order. List filters
// contribute each item separately.
func (e *Expression) FilterValues(key string) []string {
	values := []string{}
	for _, t := range e.tokens {
		if matchesKey(t, key) {
			values = append(values, t.Values()...)
		}
	}
	return values
}

// Filters returns copies of the filter tokens on key.
func (e *Expression) Filters(key string) []Token {
	var filters []Token
	for _, t := range e.tokens {
		if matchesKey(t, key) {
			filters = append(filters, t.clone())
		}
	}
	return filters
}

func (e *Expression) addValues(key string, op Operator, values []string) *Expression {
	if !ValidKey(key) {
		return e
	}
	e.tokens = append(e.tokens, valueTokens(key, op, values)...)
	return e
}

func (e *Expression) addList(key string, wildcard Operator, values []string) *Expression {
	values = nonEmpty(values)
	if !ValidKey(key) || len(values) == 0 {
		return e
	}
	e.tokens = append(e.tokens, ListFilter(key, wildcard, values))
	return e
}

func (e *Expression) addDisjunction(key string, op Operator, values []string) *Expression {
	values = nonEmpty(values)
	if !ValidKey(key) || len(values) == 0 {
		return e
	}
	e.tokens = append(e.tokens, GroupOpen())
	for i, v := range values {
		if i > 0 {
			e.tokens = append(e.tokens, Bool(BoolOr))
		}
		e.tokens = append(e.tokens, filterToken(key, op, v))
	}
	e.tokens = append(e.tokens, GroupClose())
	return e
}

// setFilter swaps the first filter on key for replacement and removes the rest.
// When key is absent the replacement is appended.
func (e *Expression) setFilter(key string, replacement []Token) *Expression {
	if !ValidKey(key) {
		return e
	}
	if !e.HasFilter(key) {
		e.tokens = append(e.tokens, replacement...)
		return e
	}

	replaced := false
	e.tokens = rewriteTokens(e.tokens, func(t Token) []Token {
		if !matchesKey(t, key) {
			return []Token{t}
		}
		if replaced {
			return nil
		}
		replaced = true
		return replacement
	})
	return e
}

func (e *Expression) hasToken(match func(Token) bool) bool {
	for _, t := range e.tokens {
		if match(t) {
			return true
		}
	}
	return false
}

func valueTokens(key string, op Operator, values []string) []Token {
	values = nonEmpty(values)
	tokens := make([]Token, 0, len(values))
	for _, v := range values {
		tokens = append(tokens, filterToken(key, op, v))
	}
	return tokens
}

// nonEmpty drops empty strings. Builder inputs that are empty are ignored.
func nonEmpty(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func filterToken(key string, op Operator, value string) Token {
	return Filter(key, op, value)
}

// matchesKey reports whether t is a filter on key. "!key" matches only
// negated filters.
func matchesKey(t Token, key string) bool {
	if t.Kind != TokenFilter || key == "" {
		return false
	}
	if strings.HasPrefix(key, "!") {
		return t.Negated && t.Key == key[1:]
	}
	return t.Key == key
}
