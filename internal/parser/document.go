package parser

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// Signature identifies nodes by structure: tag name, class prefix and an
// attribute value prefix. Empty fields match anything.
type Signature struct {
	Tag         string
	ClassPrefix string
	Attr        string
	AttrPrefix  string
}

// Selector renders the signature as a CSS selector. A class prefix matches
// the first class or any later class in the attribute.
func (s Signature) Selector() string {
	tag := s.Tag
	if tag == "" {
		tag = "*"
	}
	attr := ""
	if s.Attr != "" {
		if s.AttrPrefix != "" {
			attr = fmt.Sprintf(`[%s^=%q]`, s.Attr, s.AttrPrefix)
		} else {
			attr = fmt.Sprintf(`[%s]`, s.Attr)
		}
	}
	if s.ClassPrefix == "" {
		return tag + attr
	}
	return fmt.Sprintf(`%s[class^=%q]%s, %s[class*=%q]%s`,
		tag, s.ClassPrefix, attr, tag, " "+s.ClassPrefix, attr)
}

// Document is a parsed page.
type Document struct {
	doc *goquery.Document
	url string
}

// URL is the final page URL the document was fetched from.
func (d *Document) URL() string {
	return d.url
}

// Find returns every node matching sig in document order.
func (d *Document) Find(sig Signature) []Node {
	return nodes(d.doc.Find(sig.Selector()))
}

// Node is one element of a Document.
type Node struct {
	sel *goquery.Selection
}

// Find returns the descendants of n matching sig in document order.
func (n Node) Find(sig Signature) []Node {
	return nodes(n.sel.Find(sig.Selector()))
}

// Text is the concatenated text of the node and its descendants, unmodified.
func (n Node) Text() string {
	return n.sel.Text()
}

// Attr returns the named attribute.
func (n Node) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

// Is reports whether n itself matches sig.
func (n Node) Is(sig Signature) bool {
	return n.sel.Is(sig.Selector())
}

// HasAncestor reports whether any ancestor of n matches sig.
func (n Node) HasAncestor(sig Signature) bool {
	return n.sel.ParentsFiltered(sig.Selector()).Length() > 0
}

func nodes(sel *goquery.Selection) []Node {
	out := make([]Node, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, Node{sel: s})
	})
	return out
}
