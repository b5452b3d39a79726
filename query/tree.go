package query

// The token list is flat. Structural edits build a temporary boolean tree,
// rewrite its leaves, collapse what is left and flatten it back.
//
// Grammar, with AND (explicit or by adjacency) binding tighter than OR:
//
//	sequence → conj ('OR' conj)*
//	conj     → operand (['AND'] operand)*
//	operand  → '(' sequence ')' | leaf

// nodeKind represents the type of tree node.
type nodeKind int

const (
	nodeLeaf nodeKind = iota
	nodeAnd
	nodeOr
	nodeGroup
)

type node struct {
	kind     nodeKind
	token    Token   // leaf
	children []*node // and/or operands, or the single group body
	explicit []bool  // and: children[i] was preceded by an AND keyword
}

func (n *node) addOperand(child *node, explicit bool) {
	n.children = append(n.children, child)
	n.explicit = append(n.explicit, explicit && len(n.children) > 1)
}

// treeBuilder reads a flat token list into a tree. Stray ")" and dangling
// boolean operators are dropped; an unclosed "(" is closed at the end.
type treeBuilder struct {
	tokens []Token
	pos    int
}

func buildTree(tokens []Token) *node {
	b := &treeBuilder{tokens: tokens}
	return b.sequence(false)
}

// sequence parses until the end of input or, when nested, the matching ")".
func (b *treeBuilder) sequence(nested bool) *node {
	var branches []*node
	conj := &node{kind: nodeAnd}
	explicitAnd := false

	for b.pos < len(b.tokens) {
		t := b.tokens[b.pos]
		b.pos++

		switch t.Kind {
		case TokenGroupClose:
			if nested {
				return orOf(append(branches, conj))
			}
		case TokenGroupOpen:
			body := b.sequence(true)
			group := &node{kind: nodeGroup}
			if body != nil {
				group.children = []*node{body}
			}
			conj.addOperand(group, explicitAnd)
			explicitAnd = false
		case TokenBoolOp:
			if len(conj.children) == 0 {
				continue
			}
			if t.Bool == BoolOr {
				branches = append(branches, conj)
				conj = &node{kind: nodeAnd}
				explicitAnd = false
			} else {
				explicitAnd = true
			}
		case TokenSpacer:
		default:
			conj.addOperand(&node{kind: nodeLeaf, token: t}, explicitAnd)
			explicitAnd = false
		}
	}

	return orOf(append(branches, conj))
}

// orOf builds an OR node over non-empty conjunctions, or nil if none.
func orOf(conjs []*node) *node {
	or := &node{kind: nodeOr}
	for _, c := range conjs {
		if len(c.children) > 0 {
			or.children = append(or.children, c)
		}
	}
	if len(or.children) == 0 {
		return nil
	}
	return or
}

// leafRewriter returns the replacement tokens for a leaf; none removes it.
type leafRewriter func(Token) []Token

// rewrite applies fn to every leaf in document order and simplifies the
// result: empty nodes disappear together with the operator joining them,
// single-child nodes are replaced by their child, and a group is kept only
// around a conjunction or disjunction of two or more operands.
func rewrite(n *node, fn leafRewriter) *node {
	if n == nil {
		return nil
	}

	switch n.kind {
	case nodeLeaf:
		replacement := fn(n.token)
		switch len(replacement) {
		case 0:
			return nil
		case 1:
			return &node{kind: nodeLeaf, token: replacement[0]}
		}
		conj := &node{kind: nodeAnd}
		for _, t := range replacement {
			conj.addOperand(&node{kind: nodeLeaf, token: t}, false)
		}
		return conj

	case nodeGroup:
		if len(n.children) == 0 {
			return nil
		}
		body := rewrite(n.children[0], fn)
		if body == nil {
			return nil
		}
		if body.kind == nodeLeaf || body.kind == nodeGroup {
			return body
		}
		return &node{kind: nodeGroup, children: []*node{body}}

	default:
		out := &node{kind: n.kind}
		for i, child := range n.children {
			c := rewrite(child, fn)
			if c == nil {
				continue
			}
			explicit := n.kind == nodeAnd && n.explicit[i]
			out.addOperand(c, explicit)
		}
		switch len(out.children) {
		case 0:
			return nil
		case 1:
			return out.children[0]
		}
		return out
	}
}

// flatten writes the tree back as tokens. An OR node directly under an AND
// node is parenthesized since AND binds tighter.
func flatten(n *node, out []Token) []Token {
	if n == nil {
		return out
	}

	switch n.kind {
	case nodeLeaf:
		out = append(out, n.token)
	case nodeGroup:
		out = append(out, GroupOpen())
		for _, c := range n.children {
			out = flatten(c, out)
		}
		out = append(out, GroupClose())
	case nodeAnd:
		for i, c := range n.children {
			if i > 0 && n.explicit[i] {
				out = append(out, Bool(BoolAnd))
			}
			if c.kind == nodeOr {
				out = append(out, GroupOpen())
				out = flatten(c, out)
				out = append(out, GroupClose())
				continue
			}
			out = flatten(c, out)
		}
	case nodeOr:
		for i, c := range n.children {
			if i > 0 {
				out = append(out, Bool(BoolOr))
			}
			out = flatten(c, out)
		}
	}

	return out
}

// rewriteTokens rebuilds tokens through the tree with fn applied to each leaf.
func rewriteTokens(tokens []Token, fn leafRewriter) []Token {
	root := rewrite(buildTree(tokens), fn)
	return flatten(root, []Token{})
}
