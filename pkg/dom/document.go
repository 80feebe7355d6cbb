package dom

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Listener handles a dispatched event.
type Listener func(ev *Event)

// Document is a parsed document tree with an event listener table.
type Document struct {
	root      *html.Node
	elements  map[*html.Node]*Element
	listeners map[*html.Node]map[string][]Listener
	selectors map[string]cascadia.Matcher
}

// Parse reads an HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return newDocument(root), nil
}

// ParseString parses an HTML document held in a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// MustParse is like ParseString but panics on error. Intended for tests.
func MustParse(s string) *Document {
	doc, err := ParseString(s)
	if err != nil {
		panic(err)
	}
	return doc
}

func newDocument(root *html.Node) *Document {
	return &Document{
		root:      root,
		elements:  make(map[*html.Node]*Element),
		listeners: make(map[*html.Node]map[string][]Listener),
		selectors: make(map[string]cascadia.Matcher),
	}
}

// Root returns the underlying document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Body returns the body element, or nil if the tree has none.
func (d *Document) Body() *Element {
	return d.Query("body")
}

// Query returns the first element in document order matching selector.
// Invalid selectors match nothing.
func (d *Document) Query(selector string) *Element {
	sel := d.compile(selector)
	if sel == nil {
		return nil
	}
	return d.wrap(cascadia.Query(d.root, sel))
}

// QueryAll returns every element matching selector, in document order.
func (d *Document) QueryAll(selector string) []*Element {
	sel := d.compile(selector)
	if sel == nil {
		return nil
	}
	return d.wrapAll(cascadia.QueryAll(d.root, sel))
}

// CreateElement returns a new detached element.
func (d *Document) CreateElement(tag string) *Element {
	tag = strings.ToLower(tag)
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	return d.wrap(n)
}

// AddEventListener registers fn for events of type typ on el.
func (d *Document) AddEventListener(el *Element, typ string, fn Listener) {
	if el == nil || fn == nil {
		return
	}
	byType, ok := d.listeners[el.node]
	if !ok {
		byType = make(map[string][]Listener)
		d.listeners[el.node] = byType
	}
	byType[typ] = append(byType[typ], fn)
}

// ListenerCount returns the number of listeners for typ attached to el.
func (d *Document) ListenerCount(el *Element, typ string) int {
	if el == nil {
		return 0
	}
	return len(d.listeners[el.node][typ])
}

// Dispatch fires an event of type typ at target and returns it once every
// listener on the propagation path has run.
func (d *Document) Dispatch(ctx context.Context, target *Element, typ string) *Event {
	if ctx == nil {
		ctx = context.Background()
	}
	ev := &Event{Type: typ, Target: target, ctx: ctx}
	if target == nil {
		return ev
	}

	path := []*Element{target}
	if Bubbles(typ) {
		for p := target.Parent(); p != nil; p = p.Parent() {
			path = append(path, p)
		}
	}

	for _, el := range path {
		fns := d.listeners[el.node][typ]
		if len(fns) == 0 {
			continue
		}
		ev.CurrentTarget = el
		// Copy so listeners added during dispatch do not run in this pass.
		for _, fn := range append([]Listener(nil), fns...) {
			fn(ev)
		}
		if ev.stopped {
			break
		}
	}
	ev.CurrentTarget = nil
	return ev
}

// Render writes the current tree as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String returns the current tree as HTML.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// compile parses selector once per document. Invalid selectors are cached
// as nil so they are not reparsed.
func (d *Document) compile(selector string) cascadia.Matcher {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil
	}
	if m, ok := d.selectors[selector]; ok {
		return m
	}
	var m cascadia.Matcher
	if group, err := cascadia.ParseGroup(selector); err == nil {
		m = group
	}
	d.selectors[selector] = m
	return m
}

func (d *Document) wrap(n *html.Node) *Element {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	if el, ok := d.elements[n]; ok {
		return el
	}
	el := &Element{node: n, doc: d}
	d.elements[n] = el
	return el
}

func (d *Document) wrapAll(nodes []*html.Node) []*Element {
	out := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		if el := d.wrap(n); el != nil {
			out = append(out, el)
		}
	}
	return out
}
