// Package query parses, edits and formats search query text.
//
// The syntax supports:
//   - free text: error "connection reset"
//   - filters: key:value, key:"quoted value", !key:value
//   - comparisons: duration:>100, duration:<=5
//   - lists: event.type:[error,default]
//   - presence: has:user.email, !has:user.email
//   - booleans: AND, OR and adjacency (AND), grouped with ( )
//
// AND binds tighter than OR. Parsing never fails; Lint reports the problems
// the parser silently repaired.
package query

import "encoding/json"

// Result summarizes a parsed query.
type Result struct {
	Valid  bool     `json:"valid"`
	Query  string   `json:"query"` // canonical text
	Tokens []Token  `json:"tokens"`
	Keys   []string `json:"keys,omitempty"`
	Issues []Issue  `json:"issues,omitempty"`
}

// Compile parses raw query text and returns its canonical form, tokens and lint issues.
func Compile(raw string) *Result {
	return Summarize(Parse(raw))
}

// Summarize describes an expression. Issues are reported against its
// current tokens.
func Summarize(e *Expression) *Result {
	tokens := e.Tokens()
	issues := Lint(tokens)
	return &Result{
		Valid:  len(issues) == 0,
		Query:  Format(tokens),
		Tokens: tokens,
		Keys:   e.FilterKeys(),
		Issues: issues,
	}
}

// CompileToJSON compiles raw query text and returns the result as JSON.
func CompileToJSON(raw string) ([]byte, error) {
	result := Compile(raw)
	return json.Marshal(result)
}
