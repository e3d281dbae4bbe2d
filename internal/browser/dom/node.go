// browser/dom/node.go
package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// IsElement reports whether n is an element node.
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// Tag returns the interned atom for n's tag, 0 for custom elements.
func Tag(n *html.Node) atom.Atom { return n.DataAtom }

// TagName returns n's tag name, lower-cased. The x/net/html parser already
// folds standard HTML tags; the ToLower covers synthetic trees.
func TagName(n *html.Node) string {
	if n.DataAtom != 0 {
		return n.DataAtom.String()
	}
	return strings.ToLower(n.Data)
}

// GetAttribute looks up an attribute by name, case-insensitively, and reports
// whether it is present at all (an empty value is still present).
func GetAttribute(n *html.Node, name string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Namespace == "" && strings.EqualFold(attr.Key, name) {
			return attr.Val, true
		}
	}
	return "", false
}

// HasAttribute reports attribute presence without the value.
func HasAttribute(n *html.Node, name string) bool {
	_, ok := GetAttribute(n, name)
	return ok
}

// PreviousElementSibling returns the nearest preceding sibling that is an
// element, skipping text and comment nodes.
func PreviousElementSibling(n *html.Node) *html.Node {
	for sibling := n.PrevSibling; sibling != nil; sibling = sibling.PrevSibling {
		if sibling.Type == html.ElementNode {
			return sibling
		}
	}
	return nil
}

// NextElementSibling returns the nearest following element sibling.
func NextElementSibling(n *html.Node) *html.Node {
	for sibling := n.NextSibling; sibling != nil; sibling = sibling.NextSibling {
		if sibling.Type == html.ElementNode {
			return sibling
		}
	}
	return nil
}

// TextContent concatenates every text node under n in tree order, the
// DOM textContent contract. Comments contribute nothing.
func TextContent(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// Contains reports whether node is ancestor or sits anywhere below it.
func Contains(ancestor, node *html.Node) bool {
	if ancestor == nil || node == nil {
		return false
	}
	for n := node; n != nil; n = n.Parent {
		if n == ancestor {
			return true
		}
	}
	return false
}
