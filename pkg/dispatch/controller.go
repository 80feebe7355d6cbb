package dispatch

import (
	"context"
	"sort"

	"github.com/vango-dev/eventwire/pkg/dom"
	"github.com/vango-dev/eventwire/pkg/route"
)

// Controller groups the handlers bound to the elements matching one
// selector. Name must match the owner name used in route handler
// references.
//
// A controller may also implement route.PreSender to rewrite outbound data
// and AuthorizeErrorHandler to receive authorization rejections.
type Controller interface {
	Name() string
	Selector() string
	Handlers() map[string]Handler
}

// AuthorizeErrorHandler receives authorization rejection messages in place
// of the engine's alert sink.
type AuthorizeErrorHandler interface {
	OnAuthorizeError(msg string)
}

// HandlerFunc runs a handler.
type HandlerFunc func(c *Call) (any, error)

// Handler is the declarative binding of one controller member.
type Handler struct {
	// On is the event category. Empty derives it from the member name.
	On string

	// Params are the declared parameter names, in order. "request" receives
	// the request and "event" the triggering event. A capitalized first
	// parameter names a request type. Other names resolve from the
	// request's payload.
	Params []string

	// RequestType names the request type explicitly. It overrides a
	// capitalized first parameter.
	RequestType string

	// Fields stage payload fields into the invocation scope, keyed by local
	// name. Values are field names; dots select nested records
	// ("account.plan").
	Fields map[string]string

	// Results stage values computed from a remote response into the
	// invocation scope, keyed by local name. Values are expressions over
	// response and request, e.g. "response.data.id".
	Results map[string]string

	// Func is the handler body. Nil handlers do nothing.
	Func HandlerFunc
}

// Call is what a handler receives.
type Call struct {
	ctx context.Context

	// ID identifies the invocation.
	ID string

	// Controller and Member identify the handler.
	Controller Controller
	Member     string

	// Args are the resolved parameters, in Params order.
	Args []any

	// Request is the request the handler runs with.
	Request Request

	// Event is the triggering event.
	Event *dom.Event

	// Element is the resolved target element.
	Element *dom.Element

	// Response is the remote response, nil for local invocations.
	Response *route.Response

	// Scope holds the names staged for this invocation.
	Scope Scope

	params []string
}

// Context returns the invocation context.
func (c *Call) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Arg returns the argument bound to parameter name, or nil.
func (c *Call) Arg(name string) any {
	for i, p := range c.params {
		if p == name && i < len(c.Args) {
			return c.Args[i]
		}
	}
	return nil
}

// Scope is the per-invocation name table. It replaces shared global state:
// every invocation gets its own.
type Scope map[string]any

// Get returns the value bound to name, or nil.
func (s Scope) Get(name string) any {
	return s[name]
}

// Keys returns the bound names in sorted order.
func (s Scope) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ControllerFunc adapts a name, selector and handler table to Controller.
type ControllerFunc struct {
	ControllerName     string
	ControllerSelector string
	Table              map[string]Handler

	// AuthorizeError, when set, receives authorization rejections.
	AuthorizeError func(msg string)

	// Presend, when set, rewrites outbound data and options.
	Presend func(data any, opts route.Options) (any, route.Options)
}

func (c *ControllerFunc) Name() string                 { return c.ControllerName }
func (c *ControllerFunc) Selector() string             { return c.ControllerSelector }
func (c *ControllerFunc) Handlers() map[string]Handler { return c.Table }

// OnAuthorizeError implements AuthorizeErrorHandler. Without a callback it
// reports false through HandlesAuthorizeError and the engine alerts.
func (c *ControllerFunc) OnAuthorizeError(msg string) {
	if c.AuthorizeError != nil {
		c.AuthorizeError(msg)
	}
}

// HandlesAuthorizeError reports whether an authorization callback is set.
func (c *ControllerFunc) HandlesAuthorizeError() bool {
	return c.AuthorizeError != nil
}

// BeforeSend implements route.PreSender.
func (c *ControllerFunc) BeforeSend(data any, opts route.Options) (any, route.Options) {
	if c.Presend == nil {
		return data, opts
	}
	return c.Presend(data, opts)
}
