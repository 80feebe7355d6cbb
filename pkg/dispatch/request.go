package dispatch

import (
	"strings"
	"sync"
	"unicode"

	"github.com/vango-dev/eventwire/pkg/dom"
	"github.com/vango-dev/eventwire/pkg/payload"
	"github.com/vango-dev/eventwire/pkg/validation"
)

// Request is what handlers receive as their request. *payload.Request and
// *validation.FormRequest implement it.
type Request interface {
	// All returns the collected payload.
	All() payload.Payload

	// Property returns one of the request's own properties.
	Property(name string) (any, bool)

	// Get is the request's field accessor.
	Get(name string) any

	Element() *dom.Element
	Selector() string
}

// Authorizer is implemented by requests that gate execution.
type Authorizer interface {
	Authorize() validation.Authorization
}

// Validator is implemented by requests that validate on submit.
type Validator interface {
	Validate() validation.Errors
}

// RequestFactory constructs a request bound to el, which matched selector.
type RequestFactory func(doc *dom.Document, el *dom.Element, selector string) (Request, error)

// Resolver looks up request types missing from the registry. It reports
// false when it has no type called name.
type Resolver interface {
	ResolveRequestType(name string) (RequestFactory, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) (RequestFactory, bool)

// ResolveRequestType implements Resolver.
func (f ResolverFunc) ResolveRequestType(name string) (RequestFactory, bool) {
	return f(name)
}

// BaseRequest is the default request type: a plain collected payload
// without authorization or validation.
func BaseRequest(doc *dom.Document, el *dom.Element, selector string) (Request, error) {
	return payload.NewRequest(doc, el, selector), nil
}

// FormRequestType returns a factory for requests validated against spec.
func FormRequestType(spec validation.Spec) RequestFactory {
	return func(doc *dom.Document, el *dom.Element, selector string) (Request, error) {
		return validation.NewFormRequest(doc, el, selector, spec), nil
	}
}

// requestTypes is the registered request type table.
type requestTypes struct {
	mu    sync.RWMutex
	types map[string]RequestFactory
}

func (t *requestTypes) register(name string, f RequestFactory) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.types == nil {
		t.types = make(map[string]RequestFactory)
	}
	t.types[name] = f
}

func (t *requestTypes) lookup(name string) (RequestFactory, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.types[name]
	return f, ok && f != nil
}

// requestTypeName returns the request type a handler declares: the
// explicit RequestType, else a capitalized first parameter.
func requestTypeName(h Handler) string {
	if h.RequestType != "" {
		return h.RequestType
	}
	if len(h.Params) == 0 {
		return ""
	}
	first := h.Params[0]
	if first == "" || strings.EqualFold(first, "request") {
		return ""
	}
	if r := []rune(first)[0]; unicode.IsUpper(r) {
		return first
	}
	return ""
}

// isRequestParam reports whether a parameter receives the request itself.
func isRequestParam(name, typeName string) bool {
	if strings.EqualFold(name, "request") {
		return true
	}
	if typeName != "" && name == typeName {
		return true
	}
	return strings.HasSuffix(name, "Request")
}

// resolveParam resolves a named parameter from req: payload field, then
// the request's own property, then its accessor. Nil when nothing hits.
func resolveParam(req Request, name string) any {
	if req == nil {
		return nil
	}
	if v, ok := req.All().Lookup(name); ok && v != nil {
		return v
	}
	if v, ok := req.Property(name); ok && v != nil {
		return v
	}
	return req.Get(name)
}

// lookupPath reads a dotted field path from p.
func lookupPath(p payload.Payload, path string) any {
	parts := strings.Split(path, ".")
	cur := p
	for i, part := range parts {
		v, ok := cur.Lookup(part)
		if !ok {
			return nil
		}
		if i == len(parts)-1 {
			return v
		}
		cur = cur.Nested(part)
		if cur == nil {
			return nil
		}
	}
	return nil
}
