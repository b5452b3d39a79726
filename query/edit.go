package query

import (
	"errors"
	"fmt"
)

// ErrUnknownEdit is returned by Apply for an edit whose Op is not recognized.
var ErrUnknownEdit = errors.New("unknown edit operation")

// EditOp names an Expression mutation.
type EditOp string

const (
	EditAddFreeText       EditOp = "add_free_text"
	EditSetFreeText       EditOp = "set_free_text"
	EditAddClause         EditOp = "add_clause"
	EditAddFilter         EditOp = "add_filter"
	EditAddNegatedFilter  EditOp = "add_negated_filter"
	EditAddFilterList     EditOp = "add_filter_list"
	EditAddDisjunction    EditOp = "add_disjunction"
	EditAddOp             EditOp = "add_op"
	EditSetFilter         EditOp = "set_filter"
	EditRemoveFilter      EditOp = "remove_filter"
	EditRemoveFilterValue EditOp = "remove_filter_value"
)

// Edit is a serializable Expression mutation, as sent by the search input
// over HTTP or the websocket and read from CLI edit files.
type Edit struct {
	Op       EditOp   `json:"op" yaml:"op"`
	Key      string   `json:"key,omitempty" yaml:"key,omitempty"`
	Value    string   `json:"value,omitempty" yaml:"value,omitempty"`
	Values   []string `json:"values,omitempty" yaml:"values,omitempty"`
	Operator Operator `json:"operator,omitempty" yaml:"operator,omitempty"` // equals (default) or a wildcard operator
	Text     string   `json:"text,omitempty" yaml:"text,omitempty"`         // free text, clause or op symbol
}

// values returns Values, or Value as a single-element slice.
func (ed Edit) values() []string {
	if len(ed.Values) > 0 {
		return ed.Values
	}
	if ed.Value != "" {
		return []string{ed.Value}
	}
	return nil
}

// Apply runs edits in order. It stops at the first edit with an unknown Op;
// edits before it have already been applied.
func (e *Expression) Apply(edits ...Edit) error {
	for i, ed := range edits {
		if err := e.apply(ed); err != nil {
			return fmt.Errorf("edit %d: %w", i, err)
		}
	}
	return nil
}

func (e *Expression) apply(ed Edit) error {
	switch ed.Op {
	case EditAddFreeText:
		e.AddFreeText(ed.Text)
	case EditSetFreeText:
		words := ed.Values
		if len(words) == 0 && ed.Text != "" {
			words = []string{ed.Text}
		}
		e.SetFreeText(words)
	case EditAddClause:
		e.AddStringFilter(ed.Text)
	case EditAddFilter:
		switch ed.Operator {
		case "", OpEquals:
			e.AddFilterValues(ed.Key, ed.values())
		case OpContains, OpStartsWith, OpEndsWith:
			e.addValues(ed.Key, ed.Operator, ed.values())
		default:
			return fmt.Errorf("%w: %s with operator %q", ErrUnknownEdit, ed.Op, ed.Operator)
		}
	case EditAddNegatedFilter:
		e.AddNegatedFilterValue(ed.Key, ed.Value)
	case EditAddFilterList:
		if ed.Operator != "" && ed.Operator != OpEquals && !ed.Operator.IsWildcard() {
			return fmt.Errorf("%w: %s with operator %q", ErrUnknownEdit, ed.Op, ed.Operator)
		}
		wildcard := ed.Operator
		if wildcard == OpEquals {
			wildcard = ""
		}
		e.addList(ed.Key, wildcard, ed.values())
	case EditAddDisjunction:
		op, err := scalarOperator(ed)
		if err != nil {
			return err
		}
		e.addDisjunction(ed.Key, op, ed.values())
	case EditAddOp:
		e.AddOp(ed.Text)
	case EditSetFilter:
		op, err := scalarOperator(ed)
		if err != nil {
			return err
		}
		e.setFilter(ed.Key, valueTokens(ed.Key, op, ed.values()))
	case EditRemoveFilter:
		e.RemoveFilter(ed.Key)
	case EditRemoveFilterValue:
		e.RemoveFilterValue(ed.Key, ed.Value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEdit, ed.Op)
	}
	return nil
}

// scalarOperator returns the operator for edits that produce scalar filters.
func scalarOperator(ed Edit) (Operator, error) {
	switch ed.Operator {
	case "":
		return OpEquals, nil
	case OpEquals, OpContains, OpStartsWith, OpEndsWith:
		return ed.Operator, nil
	}
	return "", fmt.Errorf("%w: %s with operator %q", ErrUnknownEdit, ed.Op, ed.Operator)
}
