// browser/selector/selector.go
package selector

import (
	"errors"

	"golang.org/x/net/html/atom"
)

// Parse errors. All are terminal for the selector string being parsed; there
// is no partial-selector recovery.
var (
	ErrInvalidSelector          = errors.New("invalid selector")
	ErrInvalidIDSelector        = errors.New("invalid id selector")
	ErrInvalidClassSelector     = errors.New("invalid class selector")
	ErrInvalidTagSelector       = errors.New("invalid tag selector")
	ErrInvalidAttributeSelector = errors.New("invalid attribute selector")
	ErrInvalidPseudoClass       = errors.New("invalid pseudo-class")
	ErrUnknownPseudoClass       = errors.New("unknown pseudo-class")
	ErrInvalidNthPattern        = errors.New("invalid nth pattern")
)

// Selector is one parsed complex selector: a first compound plus a sequence
// of combinator/compound segments, stored left-to-right in source order and
// matched right-to-left. A Selector is immutable after parsing and can be
// reused across any number of matches against different roots.
type Selector struct {
	First    Compound
	Segments []Segment
}

// Segment pairs a combinator with the compound that follows it.
type Segment struct {
	Combinator Combinator
	Compound   Compound
}

// compoundCount returns the number of compounds, including First.
func (s *Selector) compoundCount() int { return len(s.Segments) + 1 }

// compoundAt returns compound i, where index 0 is First.
func (s *Selector) compoundAt(i int) *Compound {
	if i == 0 {
		return &s.First
	}
	return &s.Segments[i-1].Compound
}

// Compound is a set of parts that must all match one element. The stored
// order is source order; it does not affect match semantics.
type Compound struct {
	Parts []Part
}

// Combinator relates two adjacent compounds.
type Combinator int

const (
	// CombinatorDescendant is whitespace: the left compound matches any ancestor.
	CombinatorDescendant Combinator = iota
	// CombinatorChild is '>': the left compound matches the parent exactly.
	CombinatorChild
	// CombinatorNextSibling is '+': the left compound matches the nearest
	// preceding element sibling exactly.
	CombinatorNextSibling
	// CombinatorSubsequentSibling is '~': the left compound matches any
	// preceding element sibling.
	CombinatorSubsequentSibling
)

func (c Combinator) String() string {
	switch c {
	case CombinatorDescendant:
		return " "
	case CombinatorChild:
		return ">"
	case CombinatorNextSibling:
		return "+"
	case CombinatorSubsequentSibling:
		return "~"
	}
	return "?"
}

// PartKind discriminates the Part variants.
type PartKind int

const (
	PartID PartKind = iota
	PartClass
	// PartTag is the fast path for tag names interned by x/net/html's atom
	// table; PartTagName is the lower-cased string fallback for custom
	// elements.
	PartTag
	PartTagName
	PartUniversal
	PartAttribute
	PartPseudo
)

// Part is one constraint within a compound.
type Part struct {
	Kind PartKind
	// Name holds the id, class name, or lower-cased tag name, depending on Kind.
	Name string
	// Tag is set for PartTag.
	Tag atom.Atom
	// Attr is set for PartAttribute.
	Attr Attribute
	// Pseudo is set for PartPseudo.
	Pseudo PseudoClass
}

// AttrMatch discriminates how an attribute value is compared.
type AttrMatch int

const (
	AttrPresence   AttrMatch = iota // [attr]
	AttrExact                       // [attr=v]
	AttrWord                        // [attr~=v], space-tokenized equality
	AttrPrefixDash                  // [attr|=v], v or v-*
	AttrStartsWith                  // [attr^=v]
	AttrEndsWith                    // [attr$=v]
	AttrSubstring                   // [attr*=v]
)

// Attribute is one attribute constraint. Name is stored lower-cased; value
// comparison folds case only when CaseInsensitive is set (the trailing 'i'
// flag).
type Attribute struct {
	Name            string
	Match           AttrMatch
	Value           string
	CaseInsensitive bool
}

// PseudoKind discriminates the pseudo-class variants.
type PseudoKind int

const (
	// State.
	PseudoRoot PseudoKind = iota
	PseudoEmpty
	PseudoChecked
	PseudoDisabled
	PseudoEnabled
	PseudoRequired
	PseudoOptional
	PseudoValid
	PseudoInvalid
	PseudoFocus
	PseudoFocusWithin
	PseudoTarget
	PseudoLink
	PseudoVisited

	// Tree-structural.
	PseudoFirstChild
	PseudoLastChild
	PseudoOnlyChild
	PseudoFirstOfType
	PseudoLastOfType
	PseudoOnlyOfType
	PseudoNthChild
	PseudoNthLastChild
	PseudoNthOfType
	PseudoNthLastOfType

	// Functional, holding fully parsed inner selector lists.
	PseudoNot
	PseudoIs
	PseudoWhere
	PseudoHas
)

// PseudoClass is one pseudo-class constraint. Nth is set for the nth-*
// kinds; Selectors is set for not/is/where/has.
type PseudoClass struct {
	Kind      PseudoKind
	Nth       NthPattern
	Selectors []Selector
}

// NthPattern encodes the CSS An+B micro-syntax. A of zero means "exact
// index B".
type NthPattern struct {
	A int
	B int
}
