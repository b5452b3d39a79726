package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name  string
		input string
		edits []Edit
		want  string
	}{
		{
			name:  "replace browser with release disjunction",
			input: "is:unresolved browser:Chrome",
			edits: []Edit{
				{Op: EditRemoveFilter, Key: "browser"},
				{Op: EditAddDisjunction, Key: "release", Values: []string{"1.0", "1.1"}},
			},
			want: "is:unresolved ( release:1.0 OR release:1.1 )",
		},
		{
			name:  "set filter with wildcard",
			input: "msg:x",
			edits: []Edit{{Op: EditSetFilter, Key: "msg", Value: "timeout", Operator: OpContains}},
			want:  "msg:\uf00dContains\uf00dtimeout",
		},
		{
			name:  "free text",
			input: "error level:fatal",
			edits: []Edit{
				{Op: EditSetFreeText, Values: []string{"crash"}},
				{Op: EditAddFreeText, Text: "oom"},
			},
			want: "level:fatal crash oom",
		},
		{
			name:  "clauses and operators",
			input: "",
			edits: []Edit{
				{Op: EditAddClause, Text: "a:1"},
				{Op: EditAddOp, Text: "OR"},
				{Op: EditAddFilter, Key: "b", Values: []string{"2"}},
				{Op: EditAddNegatedFilter, Key: "c", Value: "3"},
			},
			want: "a:1 OR b:2 !c:3",
		},
		{
			name:  "lists",
			input: "transaction:[alpha,beta]",
			edits: []Edit{
				{Op: EditRemoveFilterValue, Key: "transaction", Value: "alpha"},
				{Op: EditAddFilterList, Key: "f", Values: []string{"x"}, Operator: OpStartsWith},
			},
			want: "transaction:[beta] f:[\uf00dStartsWith\uf00dx]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Parse(tt.input)
			require.NoError(t, e.Apply(tt.edits...))
			assert.Equal(t, tt.want, e.String())
		})
	}
}

func TestApply_UnknownOp(t *testing.T) {
	e := Parse("a:1")
	err := e.Apply(Edit{Op: EditRemoveFilter, Key: "a"}, Edit{Op: "explode"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownEdit)
	assert.Contains(t, err.Error(), "edit 1")
	// Edits before the failing one stay applied
	assert.Empty(t, e.String())
}

func TestApply_UnsupportedOperator(t *testing.T) {
	for _, op := range []EditOp{EditAddFilter, EditAddFilterList, EditAddDisjunction, EditSetFilter} {
		err := New().Apply(Edit{Op: op, Key: "a", Value: "1", Operator: OpGreater})
		assert.ErrorIs(t, err, ErrUnknownEdit, "op %s", op)
	}
}

func TestEdit_JSON(t *testing.T) {
	var edits []Edit
	data := `[{"op":"remove_filter","key":"browser"},{"op":"set_filter","key":"level","values":["error","fatal"]}]`
	require.NoError(t, json.Unmarshal([]byte(data), &edits))

	e := Parse("browser:Chrome level:info")
	require.NoError(t, e.Apply(edits...))
	assert.Equal(t, "level:error level:fatal", e.String())
}
