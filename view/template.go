package view

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
)

// Template is a component parsed from HTML markup. Text and attribute values may contain
// ${}-style placeholders, which are evaluated against the scope variables on every render.
//
// The markup is read as permissive XML: elements must be closed, several root elements are
// allowed, and whitespace-only text between elements is dropped.
type Template struct {
	name  string
	nodes []*tmplNode
}

var _ Component = (*Template)(nil)

// tmplNode is a compiled node of the template.
type tmplNode struct {
	typ      html.NodeType
	data     string // tag name or doctype
	text     Expr
	attrs    []tmplAttr
	children []*tmplNode
	src      etree.Token // for error reporting
}

type tmplAttr struct {
	key string
	val Expr
}

// rawTextElements keep whitespace-only text.
var rawTextElements = map[string]bool{"pre": true, "textarea": true, "script": true, "style": true}

// Parse reads a template from r. The name is used in error messages.
func Parse(r io.Reader, name string) (*Template, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	t := &Template{name: name}
	if len(bytes.TrimSpace(data)) == 0 {
		return t, nil
	}

	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = true

	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	var errs []error
	t.nodes = t.compile(doc.Child, false, &errs)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return t, nil
}

// ParseString is a shortcut for Parse(strings.NewReader(s), name).
func ParseString(s, name string) (*Template, error) {
	return Parse(strings.NewReader(s), name)
}

// ParseFile reads a template from the file system. It returns ErrComponentNotFound if the
// file does not exist.
func ParseFile(fsys fs.FS, path string) (*Template, error) {
	f, err := fsys.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrComponentNotFound
		}
		return nil, err
	}
	defer f.Close()

	return Parse(f, path)
}

// Name returns the name the template was parsed with.
func (t *Template) Name() string {
	return t.name
}

func (t *Template) compile(tokens []etree.Token, keepSpace bool, errs *[]error) []*tmplNode {
	var nodes []*tmplNode

	for _, tok := range tokens {
		switch tok := tok.(type) {
		case *etree.Element:
			n := &tmplNode{typ: html.ElementNode, data: tok.FullTag(), src: tok}
			for _, a := range tok.Attr {
				x, err := NewExpr(a.Value)
				if err != nil {
					*errs = append(*errs, newComponentError(t.name, tok,
						fmt.Errorf("attribute %s: %w", a.FullKey(), err)))
					continue
				}
				n.attrs = append(n.attrs, tmplAttr{key: a.FullKey(), val: x})
			}
			n.children = t.compile(tok.Child, keepSpace || rawTextElements[tok.Tag], errs)
			nodes = append(nodes, n)
		case *etree.CharData:
			if tok.IsWhitespace() && !keepSpace {
				continue
			}
			x, err := NewExpr(tok.Data)
			if err != nil {
				*errs = append(*errs, newComponentError(t.name, tok, err))
				continue
			}
			nodes = append(nodes, &tmplNode{typ: html.TextNode, text: x, src: tok})
		case *etree.Directive:
			if d, ok := strings.CutPrefix(tok.Data, "DOCTYPE "); ok {
				nodes = append(nodes, &tmplNode{typ: html.DoctypeNode, data: strings.TrimSpace(d), src: tok})
			}
		}
		// comments and processing instructions are not rendered
	}

	return nodes
}

// Render evaluates the template against the scope variables and returns a new *html.Node
// of type html.DocumentNode holding the rendered fragment.
func (t *Template) Render(s Scope) (any, error) {
	env := make(map[string]any, len(s.Vars()))
	for k, v := range s.Vars() {
		env[k] = v
	}

	root := &html.Node{Type: html.DocumentNode}

	var errs []error
	t.render(root, t.nodes, env, &errs)

	return root, errors.Join(errs...)
}

func (t *Template) render(dst *html.Node, nodes []*tmplNode, env map[string]any, errs *[]error) {
	for _, n := range nodes {
		switch n.typ {
		case html.ElementNode:
			el := &html.Node{Type: html.ElementNode, Data: n.data}
			for _, a := range n.attrs {
				v, err := a.val.Value(env)
				if err != nil {
					*errs = append(*errs, newComponentError(t.name, n.src,
						fmt.Errorf("attribute %s: %w", a.key, err)))
					continue
				}
				switch v := v.(type) {
				case nil:
					continue // absent values omit the attribute
				case bool:
					if v {
						el.Attr = append(el.Attr, html.Attribute{Key: a.key})
					}
				default:
					el.Attr = append(el.Attr, html.Attribute{Key: a.key, Val: stringify(v)})
				}
			}
			dst.AppendChild(el)
			t.render(el, n.children, env, errs)
		case html.TextNode:
			v, err := n.text.String(env)
			if err != nil {
				*errs = append(*errs, newComponentError(t.name, n.src, err))
				continue
			}
			dst.AppendChild(&html.Node{Type: html.TextNode, Data: v})
		case html.DoctypeNode:
			dst.AppendChild(&html.Node{Type: html.DoctypeNode, Data: n.data})
		}
	}
}

// RenderString serializes a render result. HTML nodes are rendered with html.Render,
// other values are formatted as text.
func RenderString(v any) (string, error) {
	n, ok := v.(*html.Node)
	if !ok {
		return stringify(v), nil
	}

	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return "", err
	}
	return sb.String(), nil
}
