// Package query is a minimal stand-in used by the analyzer tests.
package query

type Expression struct{ text string }

type Edit struct{ Op string }

type Result struct{ Query string }

func New() *Expression { return &Expression{} }

func Parse(raw string) *Expression { return &Expression{text: raw} }

func Compile(raw string) *Result { return &Result{Query: raw} }

func (e *Expression) AddFilterValue(key, value string) *Expression { return e }

func (e *Expression) RemoveFilter(key string) *Expression { return e }

func (e *Expression) Copy() *Expression { return &Expression{text: e.text} }

func (e *Expression) FormatString() string { return e.text }

func (e *Expression) Apply(edits ...Edit) error { return nil }

func (e *Expression) Reset() { e.text = "" }

func (e Expression) Len() int { return len(e.text) }
