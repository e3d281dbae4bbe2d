// browser/dom/document.go
package dom

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document wraps a parsed HTML tree with the bookkeeping the selector engine
// needs: an id index for O(1) getElementById, the document URL (for :target),
// and the tracked active element (for :focus).
type Document struct {
	root   *html.Node
	url    *url.URL
	ids    map[string]*html.Node
	active *html.Node
}

// Parse reads and parses an HTML document. base becomes the document URL and
// may be nil for detached documents.
func Parse(r io.Reader, base *url.URL) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	return New(root, base), nil
}

// New wraps an already-parsed tree. The id index is built once here; callers
// that mutate the tree afterwards must call RefreshIDIndex.
func New(root *html.Node, base *url.URL) *Document {
	d := &Document{root: root, url: base}
	d.RefreshIDIndex()
	return d
}

// Root returns the document node the tree is rooted at.
func (d *Document) Root() *html.Node { return d.root }

// URL returns the document URL, or nil for detached documents.
func (d *Document) URL() *url.URL { return d.url }

// Fragment returns the document URL's fragment without its leading '#'.
// Empty when there is no URL or no fragment.
func (d *Document) Fragment() string {
	if d.url == nil {
		return ""
	}
	return strings.TrimPrefix(d.url.Fragment, "#")
}

// DocumentElement returns the root element (<html> for HTML documents).
func (d *Document) DocumentElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// ElementByID returns the first element carrying the given id, or nil.
func (d *Document) ElementByID(id string) *html.Node {
	if id == "" {
		return nil
	}
	return d.ids[id]
}

// RefreshIDIndex rebuilds the id index with a full tree walk. The first
// element seen for each id wins, matching getElementById.
func (d *Document) RefreshIDIndex() {
	d.ids = make(map[string]*html.Node)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id, ok := GetAttribute(n, "id"); ok && id != "" {
				if _, taken := d.ids[id]; !taken {
					d.ids[id] = n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
}

// ActiveElement returns the element currently tracked as focused, or nil.
func (d *Document) ActiveElement() *html.Node { return d.active }

// SetActiveElement records the focused element. Non-element nodes clear it.
func (d *Document) SetActiveElement(n *html.Node) {
	if n != nil && n.Type != html.ElementNode {
		n = nil
	}
	d.active = n
}

// Body returns the <body> element, or nil.
func (d *Document) Body() *html.Node {
	docEl := d.DocumentElement()
	if docEl == nil {
		return nil
	}
	for c := docEl.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Body {
			return c
		}
	}
	return nil
}
