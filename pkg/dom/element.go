package dom

import (
	"sort"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Element is a handle on one element node of a Document.
type Element struct {
	node *html.Node
	doc  *Document
}

// Node returns the underlying html node.
func (e *Element) Node() *html.Node {
	return e.node
}

// Document returns the document the element belongs to.
func (e *Element) Document() *Document {
	return e.doc
}

// Tag returns the lower-case tag name.
func (e *Element) Tag() string {
	return e.node.Data
}

// ID returns the id attribute.
func (e *Element) ID() string {
	return e.Attr("id")
}

// Name returns the declared name attribute.
func (e *Element) Name() string {
	return e.Attr("name")
}

// Attr returns the value of attribute key, or "" if absent.
func (e *Element) Attr(key string) string {
	v, _ := e.LookupAttr(key)
	return v
}

// LookupAttr returns the value of attribute key and whether it is present.
func (e *Element) LookupAttr(key string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether attribute key is present.
func (e *Element) HasAttr(key string) bool {
	_, ok := e.LookupAttr(key)
	return ok
}

// SetAttr sets attribute key to val, adding it if absent.
func (e *Element) SetAttr(key, val string) {
	for i, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == key {
			e.node.Attr[i].Val = val
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes attribute key.
func (e *Element) RemoveAttr(key string) {
	attrs := e.node.Attr[:0]
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		attrs = append(attrs, a)
	}
	e.node.Attr = attrs
}

// Attrs returns a copy of all attributes keyed by name.
func (e *Element) Attrs() map[string]string {
	out := make(map[string]string, len(e.node.Attr))
	for _, a := range e.node.Attr {
		out[a.Key] = a.Val
	}
	return out
}

// AttrNames returns attribute names in source order.
func (e *Element) AttrNames() []string {
	names := make([]string, 0, len(e.node.Attr))
	for _, a := range e.node.Attr {
		names = append(names, a.Key)
	}
	return names
}

// Classes returns the class list.
func (e *Element) Classes() []string {
	return strings.Fields(e.Attr("class"))
}

// HasClass reports whether class c is in the class list.
func (e *Element) HasClass(c string) bool {
	for _, have := range e.Classes() {
		if have == c {
			return true
		}
	}
	return false
}

// AddClass appends class c if not already present.
func (e *Element) AddClass(c string) {
	if e.HasClass(c) {
		return
	}
	classes := append(e.Classes(), c)
	e.SetAttr("class", strings.Join(classes, " "))
}

// RemoveClass removes class c from the class list.
func (e *Element) RemoveClass(c string) {
	if !e.HasClass(c) {
		return
	}
	var keep []string
	for _, have := range e.Classes() {
		if have != c {
			keep = append(keep, have)
		}
	}
	if len(keep) == 0 {
		e.RemoveAttr("class")
		return
	}
	e.SetAttr("class", strings.Join(keep, " "))
}

// HasValue reports whether the element exposes a form value
// (input, select, textarea, button, option, output).
func (e *Element) HasValue() bool {
	switch e.Tag() {
	case "input", "select", "textarea", "button", "option", "output":
		return true
	}
	return false
}

// Value returns the element's current value the way a browser reports it.
// Elements without a value property return "".
func (e *Element) Value() string {
	switch e.Tag() {
	case "textarea", "output":
		return e.Text()
	case "select":
		var first *Element
		for _, opt := range e.QueryAll("option") {
			if first == nil {
				first = opt
			}
			if opt.HasAttr("selected") {
				return opt.Value()
			}
		}
		if first != nil {
			return first.Value()
		}
		return ""
	case "option":
		if v, ok := e.LookupAttr("value"); ok {
			return v
		}
		return strings.TrimSpace(e.Text())
	case "input":
		if v, ok := e.LookupAttr("value"); ok {
			return v
		}
		switch e.Type() {
		case "checkbox", "radio":
			return "on"
		}
		return ""
	case "button":
		return e.Attr("value")
	}
	return ""
}

// SetValue sets the element's current value. For select elements the
// matching option becomes the selected one.
func (e *Element) SetValue(v string) {
	switch e.Tag() {
	case "textarea", "output":
		e.SetText(v)
	case "select":
		for _, opt := range e.QueryAll("option") {
			if opt.Value() == v {
				opt.SetAttr("selected", "")
			} else {
				opt.RemoveAttr("selected")
			}
		}
	default:
		e.SetAttr("value", v)
	}
}

// Type returns the lower-cased type attribute ("text" for inputs without one).
func (e *Element) Type() string {
	t := strings.ToLower(e.Attr("type"))
	if t == "" && e.Tag() == "input" {
		return "text"
	}
	return t
}

// Checked reports whether a checkbox or radio is checked.
func (e *Element) Checked() bool {
	return e.HasAttr("checked")
}

// SetChecked toggles the checked attribute.
func (e *Element) SetChecked(on bool) {
	if on {
		e.SetAttr("checked", "")
		return
	}
	e.RemoveAttr("checked")
}

// Disabled reports whether the element carries the disabled attribute.
func (e *Element) Disabled() bool {
	return e.HasAttr("disabled")
}

// IsFormLike reports whether the element is a form container.
func (e *Element) IsFormLike() bool {
	return e.Tag() == "form"
}

// IsControl reports whether the element is a named-value form control.
func (e *Element) IsControl() bool {
	switch e.Tag() {
	case "input", "select", "textarea":
		return true
	}
	return false
}

// IsRootContainer reports whether the element is one of the two document
// root containers (html, body).
func (e *Element) IsRootContainer() bool {
	switch e.Tag() {
	case "html", "body":
		return true
	}
	return false
}

// Parent returns the parent element, or nil at the top of the tree.
func (e *Element) Parent() *Element {
	for p := e.node.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return e.doc.wrap(p)
		}
		if p.Type == html.DocumentNode {
			return nil
		}
	}
	return nil
}

// Ancestors returns the element's ancestors from the parent upward.
func (e *Element) Ancestors() []*Element {
	var out []*Element
	for p := e.Parent(); p != nil; p = p.Parent() {
		out = append(out, p)
	}
	return out
}

// Children returns the element children.
func (e *Element) Children() []*Element {
	var out []*Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.doc.wrap(c))
		}
	}
	return out
}

// NextElementSibling returns the next sibling element, or nil.
func (e *Element) NextElementSibling() *Element {
	for s := e.node.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return e.doc.wrap(s)
		}
	}
	return nil
}

// Matches reports whether the element matches selector.
func (e *Element) Matches(selector string) bool {
	m := e.doc.compile(selector)
	return m != nil && m.Match(e.node)
}

// Closest returns the element itself or its nearest ancestor matching
// selector, or nil.
func (e *Element) Closest(selector string) *Element {
	m := e.doc.compile(selector)
	if m == nil {
		return nil
	}
	for el := e; el != nil; el = el.Parent() {
		if m.Match(el.node) {
			return el
		}
	}
	return nil
}

// Contains reports whether other is e or one of its descendants.
func (e *Element) Contains(other *Element) bool {
	for el := other; el != nil; el = el.Parent() {
		if el == e {
			return true
		}
	}
	return false
}

// Query returns the first descendant matching selector.
func (e *Element) Query(selector string) *Element {
	m := e.doc.compile(selector)
	if m == nil {
		return nil
	}
	return e.doc.wrap(cascadia.Query(e.node, m))
}

// QueryAll returns all descendants matching selector, in document order.
func (e *Element) QueryAll(selector string) []*Element {
	m := e.doc.compile(selector)
	if m == nil {
		return nil
	}
	return e.doc.wrapAll(cascadia.QueryAll(e.node, m))
}

// Text returns the concatenated text content.
func (e *Element) Text() string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return b.String()
}

// SetText replaces the element's children with a single text node.
func (e *Element) SetText(text string) {
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
	if text != "" {
		e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

// AppendChild appends a detached element as the last child.
func (e *Element) AppendChild(child *Element) {
	if child == nil || child.node.Parent != nil {
		return
	}
	e.node.AppendChild(child.node)
}

// InsertAfter inserts a detached element directly after e.
func (e *Element) InsertAfter(sibling *Element) {
	parent := e.node.Parent
	if parent == nil || sibling == nil || sibling.node.Parent != nil {
		return
	}
	parent.InsertBefore(sibling.node, e.node.NextSibling)
}

// DataAttrs returns data-* attributes keyed by their suffix, sorted by key.
func (e *Element) DataAttrs() map[string]string {
	out := make(map[string]string)
	for _, a := range e.node.Attr {
		if strings.HasPrefix(a.Key, "data-") && len(a.Key) > len("data-") {
			out[strings.TrimPrefix(a.Key, "data-")] = a.Val
		}
	}
	return out
}

// String returns a short selector-like description used in logs.
func (e *Element) String() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.Tag())
	if id := e.ID(); id != "" {
		b.WriteString("#" + id)
	}
	classes := e.Classes()
	sort.Strings(classes)
	for _, c := range classes {
		b.WriteString("." + c)
	}
	if name := e.Name(); name != "" {
		b.WriteString(`[name="` + name + `"]`)
	}
	return b.String()
}
