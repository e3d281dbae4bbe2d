// browser/selector/parser_test.go
package selector

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html/atom"
)

func TestParseBasicSelectors(t *testing.T) {
	t.Run("known tag becomes an atom", func(t *testing.T) {
		sel, err := Parse("div")
		require.NoError(t, err)
		require.Len(t, sel.First.Parts, 1)
		assert.Equal(t, PartTag, sel.First.Parts[0].Kind)
		assert.Equal(t, atom.Div, sel.First.Parts[0].Tag)
		assert.Empty(t, sel.Segments)
	})

	t.Run("tag case folds before interning", func(t *testing.T) {
		sel, err := Parse("DIV")
		require.NoError(t, err)
		assert.Equal(t, atom.Div, sel.First.Parts[0].Tag)
	})

	t.Run("custom element keeps its name", func(t *testing.T) {
		sel, err := Parse("X-Widget")
		require.NoError(t, err)
		require.Len(t, sel.First.Parts, 1)
		assert.Equal(t, PartTagName, sel.First.Parts[0].Kind)
		assert.Equal(t, "x-widget", sel.First.Parts[0].Name)
	})

	t.Run("id", func(t *testing.T) {
		sel, err := Parse("#main")
		require.NoError(t, err)
		require.Len(t, sel.First.Parts, 1)
		assert.Equal(t, PartID, sel.First.Parts[0].Kind)
		assert.Equal(t, "main", sel.First.Parts[0].Name)
	})

	t.Run("class case is preserved", func(t *testing.T) {
		sel, err := Parse(".FooBar")
		require.NoError(t, err)
		assert.Equal(t, PartClass, sel.First.Parts[0].Kind)
		assert.Equal(t, "FooBar", sel.First.Parts[0].Name)
	})

	t.Run("universal", func(t *testing.T) {
		sel, err := Parse("*")
		require.NoError(t, err)
		assert.Equal(t, PartUniversal, sel.First.Parts[0].Kind)
	})

	t.Run("compound keeps source order", func(t *testing.T) {
		sel, err := Parse("div#main.container")
		require.NoError(t, err)
		require.Len(t, sel.First.Parts, 3)
		assert.Equal(t, PartTag, sel.First.Parts[0].Kind)
		assert.Equal(t, PartID, sel.First.Parts[1].Kind)
		assert.Equal(t, PartClass, sel.First.Parts[2].Kind)
	})

	t.Run("identifier grammar", func(t *testing.T) {
		for _, input := range []string{"_private", "-draft", "café"} {
			sel, err := Parse("." + input)
			require.NoError(t, err, "class %q", input)
			assert.Equal(t, input, sel.First.Parts[0].Name)
		}
	})
}

func TestParseCombinators(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []Combinator
	}{
		{"descendant", "div p", []Combinator{CombinatorDescendant}},
		{"child", "div > p", []Combinator{CombinatorChild}},
		{"child without spaces", "div>p", []Combinator{CombinatorChild}},
		{"next sibling", "div + p", []Combinator{CombinatorNextSibling}},
		{"subsequent sibling", "div ~ p", []Combinator{CombinatorSubsequentSibling}},
		{"mixed chain", "ul > li a + span", []Combinator{CombinatorChild, CombinatorDescendant, CombinatorNextSibling}},
		{"newlines and tabs as descendant", "div\t\n p", []Combinator{CombinatorDescendant}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sel, err := Parse(tc.input)
			require.NoError(t, err)
			require.Len(t, sel.Segments, len(tc.expected))
			for i, comb := range tc.expected {
				assert.Equal(t, comb, sel.Segments[i].Combinator, "segment %d", i)
			}
		})
	}
}

func TestParseAttributeSelectors(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected Attribute
	}{
		{"presence", "[disabled]", Attribute{Name: "disabled", Match: AttrPresence}},
		{"exact bare", "[type=text]", Attribute{Name: "type", Match: AttrExact, Value: "text"}},
		{"exact double quoted", `[data-v="hello world"]`, Attribute{Name: "data-v", Match: AttrExact, Value: "hello world"}},
		{"exact single quoted", "[data-v='a.b#c']", Attribute{Name: "data-v", Match: AttrExact, Value: "a.b#c"}},
		{"empty quoted value", `[alt=""]`, Attribute{Name: "alt", Match: AttrExact, Value: ""}},
		{"word", "[class~=active]", Attribute{Name: "class", Match: AttrWord, Value: "active"}},
		{"dash prefix", "[lang|=en]", Attribute{Name: "lang", Match: AttrPrefixDash, Value: "en"}},
		{"starts with", "[href^=https]", Attribute{Name: "href", Match: AttrStartsWith, Value: "https"}},
		{"ends with", `[src$=".png"]`, Attribute{Name: "src", Match: AttrEndsWith, Value: ".png"}},
		{"substring", "[title*=note]", Attribute{Name: "title", Match: AttrSubstring, Value: "note"}},
		{"name is lower cased", "[DATA-X=y]", Attribute{Name: "data-x", Match: AttrExact, Value: "y"}},
		{"interior whitespace", "[ type = text ]", Attribute{Name: "type", Match: AttrExact, Value: "text"}},
		{"case insensitive flag", `[type="TEXT" i]`, Attribute{Name: "type", Match: AttrExact, Value: "TEXT", CaseInsensitive: true}},
		{"flag right after quote", `[type="TEXT"i]`, Attribute{Name: "type", Match: AttrExact, Value: "TEXT", CaseInsensitive: true}},
		{"explicit sensitive flag", "[type=text s]", Attribute{Name: "type", Match: AttrExact, Value: "text"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sel, err := Parse(tc.input)
			require.NoError(t, err)
			require.Len(t, sel.First.Parts, 1)
			require.Equal(t, PartAttribute, sel.First.Parts[0].Kind)
			assert.Equal(t, tc.expected, sel.First.Parts[0].Attr)
		})
	}
}

func TestParsePseudoClasses(t *testing.T) {
	t.Run("simple names", func(t *testing.T) {
		names := map[string]PseudoKind{
			"root":          PseudoRoot,
			"empty":         PseudoEmpty,
			"checked":       PseudoChecked,
			"first-child":   PseudoFirstChild,
			"last-of-type":  PseudoLastOfType,
			"focus-within":  PseudoFocusWithin,
			"target":        PseudoTarget,
			"only-child":    PseudoOnlyChild,
			"FIRST-CHILD":   PseudoFirstChild, // names are case-folded
			"visited":       PseudoVisited,
			"optional":      PseudoOptional,
			"first-of-type": PseudoFirstOfType,
		}
		for name, kind := range names {
			sel, err := Parse(":" + name)
			require.NoError(t, err, ":%s", name)
			require.Len(t, sel.First.Parts, 1)
			require.Equal(t, PartPseudo, sel.First.Parts[0].Kind)
			assert.Equal(t, kind, sel.First.Parts[0].Pseudo.Kind, ":%s", name)
		}
	})

	t.Run("functional with inner list", func(t *testing.T) {
		sel, err := Parse(":is(h1, h2.wide)")
		require.NoError(t, err)
		ps := sel.First.Parts[0].Pseudo
		assert.Equal(t, PseudoIs, ps.Kind)
		require.Len(t, ps.Selectors, 2)
		assert.Equal(t, atom.H1, ps.Selectors[0].First.Parts[0].Tag)
		require.Len(t, ps.Selectors[1].First.Parts, 2)
	})

	t.Run("nested functional", func(t *testing.T) {
		sel, err := Parse(":not(:is(a, b))")
		require.NoError(t, err)
		outer := sel.First.Parts[0].Pseudo
		require.Equal(t, PseudoNot, outer.Kind)
		require.Len(t, outer.Selectors, 1)
		inner := outer.Selectors[0].First.Parts[0].Pseudo
		assert.Equal(t, PseudoIs, inner.Kind)
		assert.Len(t, inner.Selectors, 2)
	})

	t.Run("has with complex inner selector", func(t *testing.T) {
		sel, err := Parse("section:has(div > p)")
		require.NoError(t, err)
		require.Len(t, sel.First.Parts, 2)
		ps := sel.First.Parts[1].Pseudo
		require.Equal(t, PseudoHas, ps.Kind)
		require.Len(t, ps.Selectors, 1)
		assert.Len(t, ps.Selectors[0].Segments, 1)
	})

	t.Run("nth payloads", func(t *testing.T) {
		sel, err := Parse("li:nth-child(2n+1)")
		require.NoError(t, err)
		ps := sel.First.Parts[1].Pseudo
		assert.Equal(t, PseudoNthChild, ps.Kind)
		assert.Equal(t, NthPattern{A: 2, B: 1}, ps.Nth)

		sel, err = Parse(":nth-last-of-type( even )")
		require.NoError(t, err)
		ps = sel.First.Parts[0].Pseudo
		assert.Equal(t, PseudoNthLastOfType, ps.Kind)
		assert.Equal(t, NthPattern{A: 2, B: 0}, ps.Nth)
	})
}

func TestParseNthPattern(t *testing.T) {
	valid := []struct {
		input    string
		expected NthPattern
	}{
		{"odd", NthPattern{A: 2, B: 1}},
		{"even", NthPattern{A: 2, B: 0}},
		{"Odd", NthPattern{A: 2, B: 1}},
		{"2n+1", NthPattern{A: 2, B: 1}},
		{"2n", NthPattern{A: 2, B: 0}},
		{"n", NthPattern{A: 1, B: 0}},
		{"N+2", NthPattern{A: 1, B: 2}},
		{"-n+3", NthPattern{A: -1, B: 3}},
		{"10n-1", NthPattern{A: 10, B: -1}},
		{"3", NthPattern{A: 0, B: 3}},
		{"+4", NthPattern{A: 0, B: 4}},
		{"-2", NthPattern{A: 0, B: -2}},
		{" 2n + 1 ", NthPattern{A: 2, B: 1}},
		{"2n- 3", NthPattern{A: 2, B: -3}},
	}
	for _, tc := range valid {
		t.Run(tc.input, func(t *testing.T) {
			got, err := parseNthPattern(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}

	invalid := []string{"", " ", "n+", "2n-", "foo", "2m+1", "+ 2", "- n", "nn", "2n3", "n + ", "2n+1x"}
	for _, input := range invalid {
		t.Run("invalid "+input, func(t *testing.T) {
			_, err := parseNthPattern(input)
			assert.ErrorIs(t, err, ErrInvalidNthPattern)
		})
	}
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected error
	}{
		{"empty", "", ErrInvalidSelector},
		{"whitespace only", "   ", ErrInvalidSelector},
		{"bare hash", "#", ErrInvalidIDSelector},
		{"id starting with digit", "#1a", ErrInvalidIDSelector},
		{"bare dot", ".", ErrInvalidClassSelector},
		{"class with double dash", ".--var", ErrInvalidClassSelector},
		{"tag with digit after dash", "-2x", ErrInvalidTagSelector},
		{"tag with double dash", "--custom", ErrInvalidTagSelector},
		{"unclosed attribute", "[", ErrInvalidAttributeSelector},
		{"attribute missing name", "[=x]", ErrInvalidAttributeSelector},
		{"attribute missing value", "[a=]", ErrInvalidAttributeSelector},
		{"attribute unterminated quote", "[a='q]", ErrInvalidAttributeSelector},
		{"attribute garbage operator", "[a b]", ErrInvalidAttributeSelector},
		{"attribute missing close", "[a=b", ErrInvalidAttributeSelector},
		{"bare colon", ":", ErrInvalidPseudoClass},
		{"unknown pseudo", ":bogus", ErrUnknownPseudoClass},
		{"unknown functional pseudo", ":blink(2)", ErrUnknownPseudoClass},
		{"nth with garbage", ":nth-child(2x)", ErrInvalidNthPattern},
		{"nth missing close paren", ":nth-child(2", ErrInvalidPseudoClass},
		{"not with empty list", ":not()", ErrInvalidSelector},
		{"not propagates inner error", ":not(:bogus)", ErrUnknownPseudoClass},
		{"has rejects leading combinator", ":has(> p)", ErrInvalidSelector},
		{"trailing combinator", "div >", ErrInvalidSelector},
		{"leading combinator", "> div", ErrInvalidSelector},
		{"double combinator", "div > > p", ErrInvalidSelector},
		{"garbage between compounds", "div @ p", ErrInvalidSelector},
		{"garbage glued to compound", "div%", ErrInvalidSelector},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.input)
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestParseList(t *testing.T) {
	t.Run("splits on top level commas", func(t *testing.T) {
		list, err := ParseList("div, p , span")
		require.NoError(t, err)
		assert.Len(t, list, 3)
	})

	t.Run("keeps commas inside functional pseudos", func(t *testing.T) {
		list, err := ParseList(":is(a, b), p")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Len(t, list[0].First.Parts[0].Pseudo.Selectors, 2)
	})

	t.Run("single selector", func(t *testing.T) {
		list, err := ParseList("div#a")
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("any failing member fails the list", func(t *testing.T) {
		_, err := ParseList("div, #")
		assert.ErrorIs(t, err, ErrInvalidIDSelector)
	})

	t.Run("empty member fails the list", func(t *testing.T) {
		_, err := ParseList("div,, p")
		assert.ErrorIs(t, err, ErrInvalidSelector)

		_, err = ParseList("div,")
		assert.ErrorIs(t, err, ErrInvalidSelector)
	})
}

func TestParseDeterminism(t *testing.T) {
	inputs := []string{
		"div#main.container > ul li:nth-child(2n+1) + a[href^='https'] ~ span",
		":is(h1, h2):not(.skip) [data-x=\"1\"]",
		"form:has(input[required]) fieldset:invalid",
	}
	for _, input := range inputs {
		first, err := Parse(input)
		require.NoError(t, err)
		second, err := Parse(input)
		require.NoError(t, err)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("parses of %q differ (-first +second):\n%s", input, diff)
		}
	}
}
