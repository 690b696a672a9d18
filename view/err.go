package view

import (
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
)

// ComponentError is an error in a template, tied to the element it occurred in.
type ComponentError struct {
	name string
	err  error
	path string
	doc  *etree.Element
}

func newComponentError(compName string, t etree.Token, err error) *ComponentError {
	var path string
	if el, ok := t.(*etree.Element); ok {
		path = el.GetPath()
	} else if t.Parent() != nil {
		path = t.Parent().GetPath()
	}
	return &ComponentError{
		name: compName,
		err:  err,
		path: path,
		doc:  buildErrorContext(t),
	}
}

func (e *ComponentError) Error() string {
	return e.name + ":" + e.path + ": " + e.err.Error()
}

func (e *ComponentError) Unwrap() error {
	return e.err
}

// Component is the name of the template the error belongs to.
func (e *ComponentError) Component() string {
	return e.name
}

// Path is the slash-separated element path to the failing node.
func (e *ComponentError) Path() string {
	return e.path
}

// HTMLContext renders the failing node with up to two siblings on each side.
func (e *ComponentError) HTMLContext() string {
	return renderErrorContext(e.doc)
}

// errorContextBuilder organizes helper functions for building error context trees.
type errorContextBuilder struct{}

func (b errorContextBuilder) addSiblings(doc *etree.Element, t etree.Token, step int) {
	if t.Parent() == nil {
		return
	}

	siblings := t.Parent().Child
	added := 0
	for j := t.Index() + step; j >= 0 && j < len(siblings); j += step {
		if cd, ok := siblings[j].(*etree.CharData); ok && cd.IsWhitespace() {
			continue
		}
		if added == 2 {
			doc.AddChild(etree.NewText("..."))
			return
		}
		b.addToken(doc, siblings[j])
		added++
	}
}

func (b errorContextBuilder) addToken(doc *etree.Element, t etree.Token) {
	switch el := t.(type) {
	case *etree.Element:
		clone := etree.NewElement(el.FullTag())
		clone.Attr = append([]etree.Attr(nil), el.Attr...)
		if len(el.ChildElements()) > 0 {
			clone.AddChild(etree.NewText("..."))
		} else {
			clone.SetText(el.Text())
		}
		doc.AddChild(clone)
	case *etree.CharData:
		if !el.IsWhitespace() {
			doc.AddChild(etree.NewText(el.Data))
		}
	}
}

func (b errorContextBuilder) wrapParent(doc *etree.Element, t etree.Token) *etree.Element {
	parent := t.Parent()
	if parent == nil || parent.Tag == "" {
		return doc // the document itself is not wrapped
	}

	doc.Space = parent.Space
	doc.Tag = parent.Tag
	doc.Attr = append([]etree.Attr(nil), parent.Attr...)

	wrapper := &etree.Element{}
	wrapper.AddChild(doc)
	return wrapper
}

// buildErrorContext creates a tree around the token t to show where an error happened.
// Preceding siblings are collected in reverse order and flipped afterwards.
func buildErrorContext(t etree.Token) *etree.Element {
	b := errorContextBuilder{}

	prev := &etree.Element{}
	b.addSiblings(prev, t, -1)

	toks := append([]etree.Token(nil), prev.Child...)
	doc := &etree.Element{}
	for i := len(toks) - 1; i >= 0; i-- {
		doc.AddChild(toks[i])
	}
	b.addToken(doc, t)
	b.addSiblings(doc, t, +1)

	return b.wrapParent(doc, t)
}

func renderErrorContext(doc *etree.Element) string {
	dst := &html.Node{Type: html.DocumentNode}

	var render func(*html.Node, *etree.Element)
	render = func(dst *html.Node, src *etree.Element) {
		for _, c := range src.Child {
			switch t := c.(type) {
			case *etree.Element:
				n := &html.Node{Type: html.ElementNode, Data: t.FullTag()}
				for _, a := range t.Attr {
					n.Attr = append(n.Attr, html.Attribute{Key: a.FullKey(), Val: a.Value})
				}
				dst.AppendChild(n)
				render(n, t)
			case *etree.CharData:
				dst.AppendChild(&html.Node{Type: html.TextNode, Data: t.Data})
			}
		}
	}
	render(dst, doc)

	var buf strings.Builder
	_ = html.Render(&buf, dst)
	return buf.String()
}
