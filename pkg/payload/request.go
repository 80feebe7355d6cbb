package payload

import (
	"sort"

	"github.com/vango-dev/eventwire/pkg/dom"
)

// Request is the base request type: a collected Payload bound to the
// element and selector it was built from. Handlers without a declared
// request type receive a *Request.
type Request struct {
	// Data is the collected record.
	Data Payload

	doc      *dom.Document
	el       *dom.Element
	selector string
}

// NewRequest collects a Request for el. When el is nil it is resolved from
// selector against doc.
func NewRequest(doc *dom.Document, el *dom.Element, selector string) *Request {
	if el == nil && doc != nil {
		el = doc.Query(selector)
	}
	if doc == nil && el != nil {
		doc = el.Document()
	}
	return &Request{
		Data:     Collect(el),
		doc:      doc,
		el:       el,
		selector: selector,
	}
}

// Base returns r. Request types that embed *Request inherit it, which lets
// callers reach the bound payload of any request type.
func (r *Request) Base() *Request {
	return r
}

// Element returns the element the request was collected from.
func (r *Request) Element() *dom.Element {
	return r.el
}

// Document returns the document the request is bound to.
func (r *Request) Document() *dom.Document {
	return r.doc
}

// Selector returns the selector the request is bound to.
func (r *Request) Selector() string {
	return r.selector
}

// Form returns the bound form root: the element itself when it is a form,
// else its closest enclosing form, else nil.
func (r *Request) Form() *dom.Element {
	if r.el == nil {
		return nil
	}
	if r.el.IsFormLike() {
		return r.el
	}
	return enclosingForm(r.el)
}

// Recollect rebuilds Data from the live tree.
func (r *Request) Recollect() {
	r.Data = Collect(r.el)
}

// All returns the collected record.
func (r *Request) All() Payload {
	return r.Data
}

// Get returns the payload field name, or nil.
func (r *Request) Get(name string) any {
	return r.Data.Get(name)
}

// Field returns the payload field name and whether it is present.
func (r *Request) Field(name string) (any, bool) {
	return r.Data.Lookup(name)
}

// Property returns one of the request's own named properties.
func (r *Request) Property(name string) (any, bool) {
	switch name {
	case "selector":
		return r.selector, true
	case "data":
		return r.Data, true
	case "element":
		if r.el == nil {
			return nil, false
		}
		return r.el, true
	case "form":
		if f := r.Form(); f != nil {
			return f, true
		}
	}
	return nil, false
}

// Keys returns the payload field names in sorted order.
func (r *Request) Keys() []string {
	return r.Data.Keys()
}

// UnionKeys merges key lists, dropping duplicates, and sorts the result.
func UnionKeys(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range lists {
		for _, k := range l {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}
