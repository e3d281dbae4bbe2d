// browser/selector/parser.go
package selector

import (
	"strconv"
	"strings"

	"golang.org/x/net/html/atom"
)

// Parser holds the state for one lexical scan over a selector string.
type Parser struct {
	input string
	pos   int
}

// ParseList parses a comma-separated selector list. Commas nested inside
// functional pseudo-classes are not split points. Any member failing to
// parse fails the whole list.
func ParseList(input string) ([]Selector, error) {
	pieces := splitTopLevel(input)
	selectors := make([]Selector, 0, len(pieces))
	for _, piece := range pieces {
		sel, err := Parse(piece)
		if err != nil {
			return nil, err
		}
		selectors = append(selectors, sel)
	}
	if len(selectors) == 0 {
		return nil, ErrInvalidSelector
	}
	return selectors, nil
}

// Parse parses a single complex selector.
func Parse(input string) (Selector, error) {
	p := &Parser{input: input}
	p.consumeWhitespace()
	if p.eof() {
		return Selector{}, ErrInvalidSelector
	}
	first, err := p.parseCompound()
	if err != nil {
		return Selector{}, err
	}
	if len(first.Parts) == 0 {
		return Selector{}, ErrInvalidSelector
	}
	sel := Selector{First: first}
	for {
		sawSpace := p.consumeWhitespace()
		if p.eof() {
			break
		}
		combinator := CombinatorDescendant
		explicit := true
		switch p.currentChar() {
		case '>':
			combinator = CombinatorChild
		case '+':
			combinator = CombinatorNextSibling
		case '~':
			combinator = CombinatorSubsequentSibling
		default:
			explicit = false
		}
		if explicit {
			p.consumeChar()
			p.consumeWhitespace()
		} else if !sawSpace {
			return Selector{}, ErrInvalidSelector
		}
		compound, err := p.parseCompound()
		if err != nil {
			return Selector{}, err
		}
		if len(compound.Parts) == 0 {
			// Trailing combinator, or garbage where a compound should be.
			return Selector{}, ErrInvalidSelector
		}
		sel.Segments = append(sel.Segments, Segment{Combinator: combinator, Compound: compound})
	}
	return sel, nil
}

// splitTopLevel splits on commas at paren depth zero. The split is purely
// lexical; each piece is parsed independently.
func splitTopLevel(input string) []string {
	var pieces []string
	depth, start := 0, 0
	for i := 0; i < len(input); i++ {
		switch input[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				pieces = append(pieces, input[start:i])
				start = i + 1
			}
		}
	}
	return append(pieces, input[start:])
}

// parseCompound accumulates parts until a character that cannot start one.
// The caller decides whether stopping there is legal.
func (p *Parser) parseCompound() (Compound, error) {
	var compound Compound
	for !p.eof() {
		switch ch := p.currentChar(); {
		case ch == '#':
			p.consumeChar()
			name := p.parseIdentifier()
			if name == "" {
				return Compound{}, ErrInvalidIDSelector
			}
			compound.Parts = append(compound.Parts, Part{Kind: PartID, Name: name})
		case ch == '.':
			p.consumeChar()
			name := p.parseIdentifier()
			if name == "" {
				return Compound{}, ErrInvalidClassSelector
			}
			compound.Parts = append(compound.Parts, Part{Kind: PartClass, Name: name})
		case ch == '*':
			p.consumeChar()
			compound.Parts = append(compound.Parts, Part{Kind: PartUniversal})
		case ch == '[':
			attr, err := p.parseAttribute()
			if err != nil {
				return Compound{}, err
			}
			compound.Parts = append(compound.Parts, Part{Kind: PartAttribute, Attr: attr})
		case ch == ':':
			pseudo, err := p.parsePseudoClass()
			if err != nil {
				return Compound{}, err
			}
			compound.Parts = append(compound.Parts, Part{Kind: PartPseudo, Pseudo: pseudo})
		case isValidIdentifierStart(ch):
			name := p.parseIdentifier()
			if name == "" {
				return Compound{}, ErrInvalidTagSelector
			}
			lower := strings.ToLower(name)
			if a := atom.Lookup([]byte(lower)); a != 0 {
				compound.Parts = append(compound.Parts, Part{Kind: PartTag, Tag: a})
			} else {
				compound.Parts = append(compound.Parts, Part{Kind: PartTagName, Name: lower})
			}
		default:
			return compound, nil
		}
	}
	return compound, nil
}

// parseAttribute parses everything between '[' and ']': a name, an optional
// operator and value, and an optional trailing case flag. Quoted values keep
// their content verbatim; the quotes themselves are stripped.
func (p *Parser) parseAttribute() (Attribute, error) {
	p.consumeChar() // '['
	p.consumeWhitespace()
	name := p.parseIdentifier()
	if name == "" {
		return Attribute{}, ErrInvalidAttributeSelector
	}
	attr := Attribute{Name: strings.ToLower(name)}
	p.consumeWhitespace()
	if p.eof() {
		return Attribute{}, ErrInvalidAttributeSelector
	}
	if p.currentChar() == ']' {
		p.consumeChar()
		return attr, nil
	}
	switch p.currentChar() {
	case '=':
		attr.Match = AttrExact
		p.consumeChar()
	case '~', '|', '^', '$', '*':
		switch p.consumeChar() {
		case '~':
			attr.Match = AttrWord
		case '|':
			attr.Match = AttrPrefixDash
		case '^':
			attr.Match = AttrStartsWith
		case '$':
			attr.Match = AttrEndsWith
		case '*':
			attr.Match = AttrSubstring
		}
		if p.eof() || p.consumeChar() != '=' {
			return Attribute{}, ErrInvalidAttributeSelector
		}
	default:
		return Attribute{}, ErrInvalidAttributeSelector
	}
	p.consumeWhitespace()
	value, ok := p.parseAttributeValue()
	if !ok {
		return Attribute{}, ErrInvalidAttributeSelector
	}
	attr.Value = value
	p.consumeWhitespace()
	if !p.eof() {
		switch p.currentChar() {
		case 'i', 'I':
			attr.CaseInsensitive = true
			p.consumeChar()
			p.consumeWhitespace()
		case 's', 'S':
			// Explicit case sensitivity, the default.
			p.consumeChar()
			p.consumeWhitespace()
		}
	}
	if p.eof() || p.consumeChar() != ']' {
		return Attribute{}, ErrInvalidAttributeSelector
	}
	return attr, nil
}

func (p *Parser) parseAttributeValue() (string, bool) {
	if p.eof() {
		return "", false
	}
	switch quote := p.currentChar(); quote {
	case '"', '\'':
		p.consumeChar()
		start := p.pos
		for !p.eof() && p.currentChar() != quote {
			p.pos++
		}
		if p.eof() {
			return "", false // unterminated quote
		}
		value := p.input[start:p.pos]
		p.consumeChar()
		return value, true
	default:
		value := p.parseIdentifier()
		return value, value != ""
	}
}

// parsePseudoClass parses the pseudo-class after a ':'. The name comparison
// is case-folded; payload parsing depends on the name.
func (p *Parser) parsePseudoClass() (PseudoClass, error) {
	p.consumeChar() // ':'
	name := p.parsePseudoName()
	if name == "" {
		return PseudoClass{}, ErrInvalidPseudoClass
	}
	name = strings.ToLower(name)
	if !p.eof() && p.currentChar() == '(' {
		return p.parseFunctionalPseudo(name)
	}
	kind, ok := simplePseudoKinds[name]
	if !ok {
		return PseudoClass{}, ErrUnknownPseudoClass
	}
	return PseudoClass{Kind: kind}, nil
}

func (p *Parser) parsePseudoName() string {
	start := p.pos
	for !p.eof() {
		ch := p.currentChar()
		if !isAlpha(ch) && !isDigit(ch) && ch != '-' {
			break
		}
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *Parser) parseFunctionalPseudo(name string) (PseudoClass, error) {
	p.consumeChar() // '('
	body, ok := p.consumeUntilCloseParen()
	if !ok {
		return PseudoClass{}, ErrInvalidPseudoClass
	}
	switch name {
	case "nth-child", "nth-last-child", "nth-of-type", "nth-last-of-type":
		nth, err := parseNthPattern(body)
		if err != nil {
			return PseudoClass{}, err
		}
		kinds := map[string]PseudoKind{
			"nth-child":        PseudoNthChild,
			"nth-last-child":   PseudoNthLastChild,
			"nth-of-type":      PseudoNthOfType,
			"nth-last-of-type": PseudoNthLastOfType,
		}
		return PseudoClass{Kind: kinds[name], Nth: nth}, nil
	case "not", "is", "where", "has":
		inner, err := ParseList(body)
		if err != nil {
			return PseudoClass{}, err
		}
		kinds := map[string]PseudoKind{
			"not":   PseudoNot,
			"is":    PseudoIs,
			"where": PseudoWhere,
			"has":   PseudoHas,
		}
		return PseudoClass{Kind: kinds[name], Selectors: inner}, nil
	default:
		return PseudoClass{}, ErrUnknownPseudoClass
	}
}

// consumeUntilCloseParen returns the body up to the matching ')', consuming
// it. Nested parens are tracked so inner functional pseudo-classes survive
// intact.
func (p *Parser) consumeUntilCloseParen() (string, bool) {
	start := p.pos
	depth := 1
	for !p.eof() {
		switch p.consumeChar() {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return p.input[start : p.pos-1], true
			}
		}
	}
	return "", false
}

// parseNthPattern parses the An+B micro-syntax plus the odd/even keywords.
// A bare signed integer k parses as {0, k}, matched as an exact index.
func parseNthPattern(input string) (NthPattern, error) {
	s := strings.TrimSpace(input)
	switch strings.ToLower(s) {
	case "odd":
		return NthPattern{A: 2, B: 1}, nil
	case "even":
		return NthPattern{A: 2, B: 0}, nil
	}
	if s == "" {
		return NthPattern{}, ErrInvalidNthPattern
	}
	pos := 0
	sign := 1
	switch s[pos] {
	case '+':
		pos++
	case '-':
		sign = -1
		pos++
	}
	numStart := pos
	for pos < len(s) && isDigit(s[pos]) {
		pos++
	}
	hasCoeff := pos > numStart
	coeff := 0
	if hasCoeff {
		n, err := strconv.Atoi(s[numStart:pos])
		if err != nil {
			return NthPattern{}, ErrInvalidNthPattern
		}
		coeff = n
	}
	if pos >= len(s) || (s[pos] != 'n' && s[pos] != 'N') {
		// No n term: the whole input must have been one signed integer.
		if !hasCoeff || pos != len(s) {
			return NthPattern{}, ErrInvalidNthPattern
		}
		return NthPattern{A: 0, B: sign * coeff}, nil
	}
	pos++ // 'n'
	if !hasCoeff {
		coeff = 1
	}
	a := sign * coeff
	for pos < len(s) && isWhitespace(s[pos]) {
		pos++
	}
	if pos == len(s) {
		return NthPattern{A: a, B: 0}, nil
	}
	bSign := 0
	switch s[pos] {
	case '+':
		bSign = 1
	case '-':
		bSign = -1
	default:
		return NthPattern{}, ErrInvalidNthPattern
	}
	pos++
	for pos < len(s) && isWhitespace(s[pos]) {
		pos++
	}
	offStart := pos
	for pos < len(s) && isDigit(s[pos]) {
		pos++
	}
	if pos == offStart || pos != len(s) {
		return NthPattern{}, ErrInvalidNthPattern
	}
	b, err := strconv.Atoi(s[offStart:pos])
	if err != nil {
		return NthPattern{}, ErrInvalidNthPattern
	}
	return NthPattern{A: a, B: bSign * b}, nil
}

// parseIdentifier scans one identifier and returns "" when the current
// position cannot start one. Identifiers may begin with a letter, '_', a
// byte >= 0x80 (multi-byte UTF-8 passes through untouched), or a '-' not
// followed by another '-' or a digit.
func (p *Parser) parseIdentifier() string {
	if p.eof() || !isValidIdentifierStart(p.currentChar()) {
		return ""
	}
	if p.currentChar() == '-' {
		next, ok := p.peekChar()
		if !ok || next == '-' || isDigit(next) {
			return ""
		}
	}
	start := p.pos
	p.pos++
	for !p.eof() && isValidIdentifierChar(p.currentChar()) {
		p.pos++
	}
	return p.input[start:p.pos]
}

var simplePseudoKinds = map[string]PseudoKind{
	"root":          PseudoRoot,
	"empty":         PseudoEmpty,
	"checked":       PseudoChecked,
	"disabled":      PseudoDisabled,
	"enabled":       PseudoEnabled,
	"required":      PseudoRequired,
	"optional":      PseudoOptional,
	"valid":         PseudoValid,
	"invalid":       PseudoInvalid,
	"focus":         PseudoFocus,
	"focus-within":  PseudoFocusWithin,
	"target":        PseudoTarget,
	"link":          PseudoLink,
	"visited":       PseudoVisited,
	"first-child":   PseudoFirstChild,
	"last-child":    PseudoLastChild,
	"only-child":    PseudoOnlyChild,
	"first-of-type": PseudoFirstOfType,
	"last-of-type":  PseudoLastOfType,
	"only-of-type":  PseudoOnlyOfType,
}

func (p *Parser) eof() bool { return p.pos >= len(p.input) }

func (p *Parser) currentChar() byte { return p.input[p.pos] }

func (p *Parser) consumeChar() byte {
	ch := p.input[p.pos]
	p.pos++
	return ch
}

func (p *Parser) peekChar() (byte, bool) {
	if p.pos+1 >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos+1], true
}

// consumeWhitespace advances past whitespace and reports whether any was
// consumed.
func (p *Parser) consumeWhitespace() bool {
	start := p.pos
	for !p.eof() && isWhitespace(p.currentChar()) {
		p.pos++
	}
	return p.pos > start
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// isValidIdentifierStart reports whether ch can begin an identifier. The
// extra lookahead for '-' lives in parseIdentifier.
func isValidIdentifierStart(ch byte) bool {
	return isAlpha(ch) || ch == '_' || ch == '-' || ch >= 0x80
}

func isValidIdentifierChar(ch byte) bool {
	return isValidIdentifierStart(ch) || isDigit(ch)
}
