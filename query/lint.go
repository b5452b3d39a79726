package query

import "fmt"

// Issue is a problem found by Lint. Index is the offending token's position.
type Issue struct {
	Message string `json:"message"`
	Index   int    `json:"index"`
}

func (i Issue) String() string {
	return fmt.Sprintf("token %d: %s", i.Index, i.Message)
}

// Lint reports structural problems in a token list without changing it.
// Parsing itself never fails; Lint is the strict check for callers that
// want to warn about text the engine would silently repair.
func Lint(tokens []Token) []Issue {
	var issues []Issue
	var open []int // indexes of unclosed "("

	// prev is the kind of the last non-spacer token, or "" at the start.
	var prev TokenKind
	prevIndex := -1

	for i, t := range tokens {
		switch t.Kind {
		case TokenSpacer:
			continue
		case TokenGroupOpen:
			open = append(open, i)
		case TokenGroupClose:
			if len(open) == 0 {
				issues = append(issues, Issue{Message: "unmatched ')'", Index: i})
				break
			}
			open = open[:len(open)-1]
			switch prev {
			case TokenGroupOpen:
				issues = append(issues, Issue{Message: "empty group", Index: prevIndex})
			case TokenBoolOp:
				issues = append(issues, Issue{Message: fmt.Sprintf("%s at end of group", tokens[prevIndex].Bool), Index: prevIndex})
			}
		case TokenBoolOp:
			switch prev {
			case "", TokenGroupOpen:
				issues = append(issues, Issue{Message: fmt.Sprintf("%s without left operand", t.Bool), Index: i})
			case TokenBoolOp:
				issues = append(issues, Issue{Message: fmt.Sprintf("%s follows %s", t.Bool, tokens[prevIndex].Bool), Index: i})
			}
		case TokenFilter:
			if !ValidKey(t.Key) {
				issues = append(issues, Issue{Message: fmt.Sprintf("invalid filter key %q", t.Key), Index: i})
			}
		}
		prev = t.Kind
		prevIndex = i
	}

	if prev == TokenBoolOp {
		issues = append(issues, Issue{Message: fmt.Sprintf("%s without right operand", tokens[prevIndex].Bool), Index: prevIndex})
	}
	for _, idx := range open {
		issues = append(issues, Issue{Message: "unclosed '('", Index: idx})
	}

	return issues
}
