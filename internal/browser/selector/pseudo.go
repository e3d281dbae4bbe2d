// browser/selector/pseudo.go
package selector

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/strixweb/strix/internal/browser/dom"
)

func (m *matchContext) matchPseudo(node *html.Node, ps *PseudoClass) bool {
	switch ps.Kind {
	case PseudoRoot:
		return node.Parent != nil && node.Parent.Type == html.DocumentNode
	case PseudoEmpty:
		return isEmptyElement(node)
	case PseudoChecked:
		return isChecked(node)
	case PseudoDisabled:
		return isFormControl(node) && dom.HasAttribute(node, "disabled")
	case PseudoEnabled:
		return isFormControl(node) && !dom.HasAttribute(node, "disabled")
	case PseudoRequired:
		return requiredApplicable(node) && dom.HasAttribute(node, "required")
	case PseudoOptional:
		return requiredApplicable(node) && !dom.HasAttribute(node, "required")
	case PseudoValid:
		return validityApplies(node) && isValid(node)
	case PseudoInvalid:
		return validityApplies(node) && !isValid(node)
	case PseudoFocus:
		return m.doc != nil && m.doc.ActiveElement() == node
	case PseudoFocusWithin:
		return m.doc != nil && m.doc.ActiveElement() != nil &&
			dom.Contains(node, m.doc.ActiveElement())
	case PseudoTarget:
		if m.doc == nil {
			return false
		}
		frag := m.doc.Fragment()
		if frag == "" {
			return false
		}
		id, ok := dom.GetAttribute(node, "id")
		return ok && id == frag
	case PseudoLink:
		return (node.DataAtom == atom.A || node.DataAtom == atom.Area) &&
			dom.HasAttribute(node, "href")
	case PseudoVisited:
		// No history store; nothing is ever visited.
		return false

	case PseudoFirstChild:
		return dom.PreviousElementSibling(node) == nil
	case PseudoLastChild:
		return dom.NextElementSibling(node) == nil
	case PseudoOnlyChild:
		return dom.PreviousElementSibling(node) == nil && dom.NextElementSibling(node) == nil
	case PseudoFirstOfType:
		return previousSiblingOfType(node) == nil
	case PseudoLastOfType:
		return nextSiblingOfType(node) == nil
	case PseudoOnlyOfType:
		return previousSiblingOfType(node) == nil && nextSiblingOfType(node) == nil
	case PseudoNthChild:
		return matchesNthPattern(elementIndex(node), ps.Nth)
	case PseudoNthLastChild:
		return matchesNthPattern(elementIndexFromEnd(node), ps.Nth)
	case PseudoNthOfType:
		return matchesNthPattern(typeIndex(node), ps.Nth)
	case PseudoNthLastOfType:
		return matchesNthPattern(typeIndexFromEnd(node), ps.Nth)

	case PseudoNot:
		for i := range ps.Selectors {
			if m.matches(node, &ps.Selectors[i]) {
				return false
			}
		}
		return true
	case PseudoIs, PseudoWhere:
		for i := range ps.Selectors {
			if m.matches(node, &ps.Selectors[i]) {
				return true
			}
		}
		return false
	case PseudoHas:
		return hasMatchingDescendant(m.doc, node, ps.Selectors)
	}
	return false
}

// matchesNthPattern solves index = A*n + B for a non-negative integer n.
// With A of zero the pattern is an exact index. Division truncates toward
// zero.
func matchesNthPattern(index int, p NthPattern) bool {
	if p.A == 0 {
		return index == p.B
	}
	diff := index - p.B
	if diff%p.A != 0 {
		return false
	}
	return diff/p.A >= 0
}

// elementIndex is the 1-based position among element siblings. Text and
// comment nodes never count.
func elementIndex(node *html.Node) int {
	i := 1
	for sib := dom.PreviousElementSibling(node); sib != nil; sib = dom.PreviousElementSibling(sib) {
		i++
	}
	return i
}

func elementIndexFromEnd(node *html.Node) int {
	i := 1
	for sib := dom.NextElementSibling(node); sib != nil; sib = dom.NextElementSibling(sib) {
		i++
	}
	return i
}

func typeIndex(node *html.Node) int {
	i := 1
	for sib := previousSiblingOfType(node); sib != nil; sib = previousSiblingOfType(sib) {
		i++
	}
	return i
}

func typeIndexFromEnd(node *html.Node) int {
	i := 1
	for sib := nextSiblingOfType(node); sib != nil; sib = nextSiblingOfType(sib) {
		i++
	}
	return i
}

func previousSiblingOfType(node *html.Node) *html.Node {
	for sib := dom.PreviousElementSibling(node); sib != nil; sib = dom.PreviousElementSibling(sib) {
		if sameType(sib, node) {
			return sib
		}
	}
	return nil
}

func nextSiblingOfType(node *html.Node) *html.Node {
	for sib := dom.NextElementSibling(node); sib != nil; sib = dom.NextElementSibling(sib) {
		if sameType(sib, node) {
			return sib
		}
	}
	return nil
}

func sameType(a, b *html.Node) bool {
	if a.DataAtom != 0 || b.DataAtom != 0 {
		return a.DataAtom == b.DataAtom
	}
	return dom.TagName(a) == dom.TagName(b)
}

// hasMatchingDescendant reports whether any strict descendant of node
// matches any of the inner selectors. Inner chains are bounded by node, so
// the search never escapes its subtree.
func hasMatchingDescendant(doc *dom.Document, node *html.Node, selectors []Selector) bool {
	inner := &matchContext{doc: doc, scope: node}
	found := false
	walkElements(node, func(n *html.Node) bool {
		if n == node {
			return true
		}
		for i := range selectors {
			if inner.matches(n, &selectors[i]) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// isEmptyElement is true when the element has no child elements and no
// non-empty text. Comments are ignored.
func isEmptyElement(node *html.Node) bool {
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			return false
		case html.TextNode:
			if c.Data != "" {
				return false
			}
		}
	}
	return true
}

func isChecked(node *html.Node) bool {
	switch node.DataAtom {
	case atom.Input:
		switch inputType(node) {
		case "checkbox", "radio":
			return dom.HasAttribute(node, "checked")
		}
		return false
	case atom.Option:
		return dom.HasAttribute(node, "selected")
	}
	return false
}

func isFormControl(node *html.Node) bool {
	switch node.DataAtom {
	case atom.Input, atom.Button, atom.Select, atom.Textarea, atom.Optgroup, atom.Option, atom.Fieldset:
		return true
	}
	return false
}

// requiredApplicable limits :required/:optional to controls where the
// required attribute has meaning. Hidden inputs and the button-like input
// types match neither pseudo-class.
func requiredApplicable(node *html.Node) bool {
	switch node.DataAtom {
	case atom.Select, atom.Textarea:
		return true
	case atom.Input:
		switch inputType(node) {
		case "hidden", "submit", "reset", "button", "image":
			return false
		}
		return true
	}
	return false
}

// validityApplies limits :valid/:invalid to elements carrying constraint
// validation semantics.
func validityApplies(node *html.Node) bool {
	switch node.DataAtom {
	case atom.Input, atom.Select, atom.Textarea, atom.Button, atom.Form, atom.Fieldset:
		return true
	}
	return false
}

// isValid evaluates constraint validation. Forms and fieldsets are valid
// when every control under them is. Input types barred from validation
// (hidden, submit, reset, button, image) are always valid, required or not.
func isValid(node *html.Node) bool {
	switch node.DataAtom {
	case atom.Form, atom.Fieldset:
		ok := true
		walkElements(node, func(n *html.Node) bool {
			if n == node {
				return true
			}
			switch n.DataAtom {
			case atom.Input, atom.Select, atom.Textarea:
				if !controlValid(n) {
					ok = false
					return false
				}
			}
			return true
		})
		return ok
	case atom.Input, atom.Select, atom.Textarea:
		return controlValid(node)
	}
	return true
}

func controlValid(node *html.Node) bool {
	switch node.DataAtom {
	case atom.Input:
		typ := inputType(node)
		switch typ {
		case "hidden", "submit", "reset", "button", "image":
			return true
		}
		if !dom.HasAttribute(node, "required") {
			return true
		}
		switch typ {
		case "checkbox", "radio":
			return dom.HasAttribute(node, "checked")
		}
		v, _ := dom.GetAttribute(node, "value")
		return v != ""
	case atom.Select:
		if !dom.HasAttribute(node, "required") {
			return true
		}
		return selectValue(node) != ""
	case atom.Textarea:
		if !dom.HasAttribute(node, "required") {
			return true
		}
		return dom.TextContent(node) != ""
	}
	return true
}

// selectValue follows the browser's selectedness rules closely enough for
// validation: the first option bearing selected wins, otherwise the first
// option is implicitly selected. An option without a value attribute falls
// back to its trimmed text.
func selectValue(node *html.Node) string {
	var first, selected *html.Node
	walkElements(node, func(n *html.Node) bool {
		if n.DataAtom != atom.Option {
			return true
		}
		if first == nil {
			first = n
		}
		if dom.HasAttribute(n, "selected") {
			selected = n
			return false
		}
		return true
	})
	if selected == nil {
		selected = first
	}
	if selected == nil {
		return ""
	}
	if v, ok := dom.GetAttribute(selected, "value"); ok {
		return v
	}
	return strings.TrimSpace(dom.TextContent(selected))
}

func inputType(node *html.Node) string {
	v, ok := dom.GetAttribute(node, "type")
	if !ok {
		return "text"
	}
	return strings.ToLower(strings.TrimSpace(v))
}
