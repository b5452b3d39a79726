package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_Canonical(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"unneeded quotes dropped", `a:"a"`, "a:a"},
		{"quoted with space kept", `browser:"Chrome 36"`, `browser:"Chrome 36"`},
		{"lone quote stays escaped", `a:"\""`, `a:"\""`},
		{"escaped quotes", `message:"say \"hi\""`, `message:"say \"hi\""`},
		{"parens get spaces", "(a:a OR b:b)", "( a:a OR b:b )"},
		{"boolean case normalized", "error and warning or fatal", "error AND warning OR fatal"},
		{"whitespace collapsed", "  a:1 \t  b:2  ", "a:1 b:2"},
		{"list compacted", "transaction:[alpha, beta]", "transaction:[alpha,beta]"},
		{"quoted list item preserved", `transaction:["alpha",beta]`, `transaction:["alpha",beta]`},
		{"list item with comma", `tags:["a,b",c]`, `tags:["a,b",c]`},
		{"nested list item", "tags:[test,[test2]]", "tags:[test,[test2]]"},
		{"wildcard", "f:\uf00dContains\uf00dtest", "f:\uf00dContains\uf00dtest"},
		{"wildcard quoted value", "f:\uf00dStartsWith\uf00d\"a b\"", "f:\uf00dStartsWith\uf00d\"a b\""},
		{"has", "has:user.email", "has:user.email"},
		{"negated has", "!has:user.email", "!has:user.email"},
		{"comparison", "duration:>=100", "duration:>=100"},
		{"literal comparison value", `duration:">5"`, `duration:">5"`},
		{"literal list value", `tags:"[a]"`, `tags:"[a]"`},
		{"free text phrase", `"connection reset"`, `"connection reset"`},
		{"free text keyword", `"AND"`, `"AND"`},
		{"free text colon", `"a:b"`, `"a:b"`},
		{"empty value", "level:", `level:""`},
		{"bracket key", `tags["sentry:user",string]:alice`, `tags["sentry:user",string]:alice`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(ParseTokens(tt.input)))
		})
	}
}

func TestFormat_SkipsSpacers(t *testing.T) {
	tokens := []Token{FreeText("a"), Spacer(), FreeText("b")}
	assert.Equal(t, "a b", Format(tokens))
}

func TestFormat_BuiltTokens(t *testing.T) {
	tokens := []Token{
		Filter("message", OpEquals, "(boom)"),
		Filter("path", OpEquals, `C:\temp`),
		ListFilter("release", "", []string{"1.0", "2.0 beta", ""}),
		Filter("has", OpEquals, "user.id"),
	}
	assert.Equal(t, `message:"(boom)" path:"C:\\temp" release:[1.0,"2.0 beta",""] has:user.id`, Format(tokens))
}

func TestFormat_RoundTrip(t *testing.T) {
	inputs := []string{
		`is:unresolved browser:"Chrome 36" ( release:1.0 OR release:1.1 )`,
		"!has:user.email duration:>=100 error",
		`event.type:[error,default] "connection reset"`,
		"f:\uf00dContains\uf00dtest g:[\uf00dEndsWith\uf00dx,y]",
		"a or b and c",
		`message:"say \"hi\"" path:"C:\\temp"`,
		`tags["sentry:user",string]:foo`,
		`title:>"a b" level: "(" ")"`,
		"(a:1 OR (b:2 c:3)) d",
		`"unterminated value`,
		`k:["a]","a]b",[c]]`,
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			tokens := ParseTokens(in)
			formatted := Format(tokens)

			reparsed := ParseTokens(formatted)
			require.Len(t, reparsed, len(tokens))
			for i := range tokens {
				assert.True(t, tokens[i].Equal(reparsed[i]), "token %d: %+v != %+v", i, tokens[i], reparsed[i])
			}
			assert.Equal(t, formatted, Format(reparsed))
		})
	}
}

func TestFormat_ListItemStrayBracket(t *testing.T) {
	tests := []struct {
		name  string
		token Token
		want  string
	}{
		{"trailing bracket", ListFilter("k", "", []string{"a]"}), `k:["a]"]`},
		{"inner bracket", ListFilter("k", "", []string{"a]b", "c"}), `k:["a]b",c]`},
		{"reversed brackets", ListFilter("k", "", []string{"]["}), `k:["]["]`},
		{"wildcard item", ListFilter("k", OpContains, []string{"x]"}), "k:[\uf00dContains\uf00d\"x]\"]"},
		{"nested item stays bare", ListFilter("tags", "", []string{"test", "[test2]"}), "tags:[test,[test2]]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatted := Format([]Token{tt.token})
			assert.Equal(t, tt.want, formatted)

			reparsed := ParseTokens(formatted)
			require.Len(t, reparsed, 1)
			assert.Equal(t, OpInList, reparsed[0].Operator)
			assert.Equal(t, tt.token.Values(), reparsed[0].Values())
			assert.Equal(t, formatted, Format(reparsed))
		})
	}
}
