// browser/selector/matcher.go
package selector

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/strixweb/strix/internal/browser/dom"
)

// matchContext carries the document capabilities a match may need (id
// index, active element, URL fragment) plus the boundary for upward walks.
// A nil scope leaves ancestor walks unbounded.
type matchContext struct {
	doc   *dom.Document
	scope *html.Node
}

// Collect walks root's subtree in document order and returns every element
// matching any selector in the list. Root itself is never a candidate; each
// element appears once, in the order the walk reaches it.
func Collect(doc *dom.Document, root *html.Node, selectors []Selector) []*html.Node {
	var out []*html.Node
	forEachMatch(doc, root, selectors, func(n *html.Node) bool {
		out = append(out, n)
		return true
	})
	return out
}

// FindFirst returns the document-order first element under root matching
// any selector in the list, or nil.
func FindFirst(doc *dom.Document, root *html.Node, selectors []Selector) *html.Node {
	var found *html.Node
	forEachMatch(doc, root, selectors, func(n *html.Node) bool {
		found = n
		return false
	})
	return found
}

// Matches reports whether node itself matches any selector in the list,
// with no boundary on upward walks.
func Matches(doc *dom.Document, node *html.Node, selectors []Selector) bool {
	ctx := &matchContext{doc: doc}
	for i := range selectors {
		if ctx.matches(node, &selectors[i]) {
			return true
		}
	}
	return false
}

// forEachMatch drives the walk. A single-selector query goes through the
// ID-anchored plan; a multi-selector list walks the subtree once testing
// every member against each element, so the emitted order stays tree order
// regardless of which member matched.
func forEachMatch(doc *dom.Document, root *html.Node, selectors []Selector, visit func(*html.Node) bool) {
	if root == nil || len(selectors) == 0 {
		return
	}
	if len(selectors) == 1 {
		collectOne(doc, root, &selectors[0], visit)
		return
	}
	ctx := &matchContext{doc: doc, scope: root}
	walkElements(root, func(n *html.Node) bool {
		if n == root {
			return true
		}
		for i := range selectors {
			if ctx.matches(n, &selectors[i]) {
				return visit(n)
			}
		}
		return true
	})
}

func collectOne(doc *dom.Document, root *html.Node, sel *Selector, visit func(*html.Node) bool) {
	walkRoot, matchSel, ctx, ok := planQuery(doc, root, sel)
	if !ok {
		return
	}
	walkElements(walkRoot, func(n *html.Node) bool {
		if n == root {
			return true // the query root is never its own match
		}
		if ctx.matches(n, matchSel) {
			return visit(n)
		}
		return true
	})
}

// planQuery decides where the walk starts. A compound that is exactly one
// id part lets the walk re-root at that element via the document's id index
// instead of scanning the whole subtree. The prefix to the left of the id,
// if any, is validated once against the id element; failing it means no
// candidate anywhere can complete the chain.
func planQuery(doc *dom.Document, root *html.Node, sel *Selector) (*html.Node, *Selector, *matchContext, bool) {
	anchor, id, ok := 0, "", false
	if doc != nil {
		anchor, id, ok = findIDAnchor(sel)
	}
	if !ok {
		return root, sel, &matchContext{doc: doc, scope: root}, true
	}
	idNode := doc.ElementByID(id)
	if idNode == nil || !dom.Contains(root, idNode) {
		// Legitimate for detached subtrees: the id element exists but not
		// under this root, so nothing here can match.
		return nil, nil, nil, false
	}
	if anchor > 0 {
		prefix := &Selector{First: sel.First, Segments: sel.Segments[:anchor]}
		ctx := &matchContext{doc: doc, scope: root}
		if !ctx.matches(idNode, prefix) {
			return nil, nil, nil, false
		}
	}
	suffix := &Selector{First: *sel.compoundAt(anchor), Segments: sel.Segments[anchor:]}
	return idNode, suffix, &matchContext{doc: doc, scope: idNode}, true
}

// findIDAnchor scans compounds right-to-left for one that is exactly an id
// part. A sibling combinator directly after the id disqualifies the whole
// optimization, since the rest of the match would then live outside the id
// element's subtree.
func findIDAnchor(sel *Selector) (int, string, bool) {
	for i := sel.compoundCount() - 1; i >= 0; i-- {
		c := sel.compoundAt(i)
		if len(c.Parts) != 1 || c.Parts[0].Kind != PartID {
			continue
		}
		if i < len(sel.Segments) {
			switch sel.Segments[i].Combinator {
			case CombinatorNextSibling, CombinatorSubsequentSibling:
				return 0, "", false
			}
		}
		return i, c.Parts[0].Name, true
	}
	return 0, "", false
}

// walkElements runs fn over every element in n's subtree in document order,
// n itself included. fn returning false stops the walk.
func walkElements(n *html.Node, fn func(*html.Node) bool) bool {
	if n.Type == html.ElementNode && !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walkElements(c, fn) {
			return false
		}
	}
	return true
}

func (m *matchContext) matches(n *html.Node, sel *Selector) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	return m.recursiveMatch(n, sel, sel.compoundCount()-1)
}

// recursiveMatch checks the compound at index against node, then walks the
// combinator to its left. Descendant and subsequent-sibling moves are
// existential and retried across every candidate; child and next-sibling
// are exact with no backtracking.
func (m *matchContext) recursiveMatch(node *html.Node, sel *Selector, index int) bool {
	if node == nil || node.Type != html.ElementNode {
		return false
	}
	if !m.matchCompound(node, sel.compoundAt(index)) {
		return false
	}
	if index == 0 {
		return true
	}
	switch sel.Segments[index-1].Combinator {
	case CombinatorDescendant:
		// Ancestors up to and including the scope node; never past it.
		for cur := node; cur != m.scope && cur.Parent != nil; cur = cur.Parent {
			if m.recursiveMatch(cur.Parent, sel, index-1) {
				return true
			}
		}
		return false
	case CombinatorChild:
		if node == m.scope {
			return false
		}
		return m.recursiveMatch(node.Parent, sel, index-1)
	case CombinatorNextSibling:
		return m.recursiveMatch(dom.PreviousElementSibling(node), sel, index-1)
	case CombinatorSubsequentSibling:
		for sib := dom.PreviousElementSibling(node); sib != nil; sib = dom.PreviousElementSibling(sib) {
			if m.recursiveMatch(sib, sel, index-1) {
				return true
			}
		}
		return false
	}
	return false
}

func (m *matchContext) matchCompound(node *html.Node, c *Compound) bool {
	for i := range c.Parts {
		if !m.matchPart(node, &c.Parts[i]) {
			return false
		}
	}
	return true
}

func (m *matchContext) matchPart(node *html.Node, part *Part) bool {
	switch part.Kind {
	case PartID:
		id, ok := dom.GetAttribute(node, "id")
		return ok && id == part.Name
	case PartClass:
		return hasClass(node, part.Name)
	case PartTag:
		return node.DataAtom == part.Tag
	case PartTagName:
		return dom.TagName(node) == part.Name
	case PartUniversal:
		return true
	case PartAttribute:
		return matchAttribute(node, &part.Attr)
	case PartPseudo:
		return m.matchPseudo(node, &part.Pseudo)
	}
	return false
}

func hasClass(node *html.Node, class string) bool {
	v, ok := dom.GetAttribute(node, "class")
	if !ok {
		return false
	}
	for _, f := range strings.Fields(v) {
		if f == class {
			return true
		}
	}
	return false
}

// matchAttribute compares one attribute constraint. Attribute names are
// case-insensitive; value comparison folds case only under the 'i' flag.
func matchAttribute(node *html.Node, attr *Attribute) bool {
	value, ok := dom.GetAttribute(node, attr.Name)
	if !ok {
		return false
	}
	if attr.Match == AttrPresence {
		return true
	}
	want := attr.Value
	if attr.CaseInsensitive {
		value = strings.ToLower(value)
		want = strings.ToLower(want)
	}
	switch attr.Match {
	case AttrExact:
		return value == want
	case AttrWord:
		for _, f := range strings.Fields(value) {
			if f == want {
				return true
			}
		}
		return false
	case AttrPrefixDash:
		return value == want || strings.HasPrefix(value, want+"-")
	case AttrStartsWith:
		return want != "" && strings.HasPrefix(value, want)
	case AttrEndsWith:
		return want != "" && strings.HasSuffix(value, want)
	case AttrSubstring:
		return want != "" && strings.Contains(value, want)
	}
	return false
}
