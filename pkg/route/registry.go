package route

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// Registry is an ordered route table per HTTP method plus the owners that
// handle dispatched routes. Routes are registered once at startup; lookups
// are safe for concurrent use, registration during dispatch is not
// supported.
type Registry struct {
	mu       sync.RWMutex
	routes   map[string][]Entry
	owners   map[string]OwnerFactory
	prefixes []string

	basePath  string
	transport Transport
	logger    *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithBasePath sets the base path prepended to relative call URLs.
func WithBasePath(base string) Option {
	return func(r *Registry) {
		r.basePath = base
	}
}

// WithTransport sets the outbound transport.
func WithTransport(t Transport) Option {
	return func(r *Registry) {
		if t != nil {
			r.transport = t
		}
	}
}

// WithHTTPClient uses client for outbound calls.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Registry) {
		r.transport = &HTTPTransport{Client: client}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		routes:    make(map[string][]Entry),
		owners:    make(map[string]OwnerFactory),
		transport: &HTTPTransport{},
		logger:    slog.Default().With("component", "route"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BasePath returns the configured base path.
func (r *Registry) BasePath() string {
	return r.basePath
}

// Register appends a route. Duplicates are kept; the first registered
// pattern shadows later ones.
func (r *Registry) Register(method, pattern string, ref HandlerRef, opts Options) {
	method = strings.ToUpper(method)
	r.mu.Lock()
	defer r.mu.Unlock()
	pattern = strings.Join(r.prefixes, "") + pattern
	r.routes[method] = append(r.routes[method], Entry{
		Method:  method,
		Pattern: pattern,
		Handler: ref,
		Options: opts,
	})
}

// Get registers a GET route.
func (r *Registry) Get(pattern string, ref HandlerRef, opts Options) {
	r.Register(http.MethodGet, pattern, ref, opts)
}

// Post registers a POST route.
func (r *Registry) Post(pattern string, ref HandlerRef, opts Options) {
	r.Register(http.MethodPost, pattern, ref, opts)
}

// Put registers a PUT route.
func (r *Registry) Put(pattern string, ref HandlerRef, opts Options) {
	r.Register(http.MethodPut, pattern, ref, opts)
}

// Delete registers a DELETE route.
func (r *Registry) Delete(pattern string, ref HandlerRef, opts Options) {
	r.Register(http.MethodDelete, pattern, ref, opts)
}

// Patch registers a PATCH route.
func (r *Registry) Patch(pattern string, ref HandlerRef, opts Options) {
	r.Register(http.MethodPatch, pattern, ref, opts)
}

// Group prefixes every pattern registered inside fn with prefix. Groups
// nest.
func (r *Registry) Group(prefix string, fn func(r *Registry)) {
	r.mu.Lock()
	r.prefixes = append(r.prefixes, prefix)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.prefixes = r.prefixes[:len(r.prefixes)-1]
		r.mu.Unlock()
	}()
	fn(r)
}

// Find returns the first route for method whose pattern equals url.
func (r *Registry) Find(method, url string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.routes[strings.ToUpper(method)] {
		if e.Pattern == url {
			return e, true
		}
	}
	return Entry{}, false
}

// FindHandler returns the first route handled by owner's member, scanning
// methods in Methods order.
func (r *Registry) FindHandler(owner, member string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range Methods {
		for _, e := range r.routes[m] {
			if e.Handler.Owner == owner && e.Handler.Member == member {
				return e, true
			}
		}
	}
	return Entry{}, false
}

// All returns a copy of the route table keyed by method.
func (r *Registry) All() map[string][]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]Entry, len(r.routes))
	for m, entries := range r.routes {
		out[m] = append([]Entry(nil), entries...)
	}
	return out
}

// Routes returns every route, methods in Methods order followed by any
// other methods in registration order.
func (r *Registry) Routes() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	seen := make(map[string]bool, len(Methods))
	for _, m := range Methods {
		seen[m] = true
		out = append(out, r.routes[m]...)
	}
	for m, entries := range r.routes {
		if !seen[m] {
			out = append(out, entries...)
		}
	}
	return out
}

// Len returns the number of registered routes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, entries := range r.routes {
		n += len(entries)
	}
	return n
}

// Clear removes every route. Owners stay registered.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = make(map[string][]Entry)
}

// RegisterOwner registers the factory for owner name.
func (r *Registry) RegisterOwner(name string, factory OwnerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[name] = factory
}

func (r *Registry) owner(name string) (OwnerFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.owners[name]
	return f, ok && f != nil
}

// Dispatch finds the route for method and url, constructs its owner, lets
// the owner rewrite data and options, performs the outbound call and
// invokes the route's member with the response.
func (r *Registry) Dispatch(ctx context.Context, method, url string, data any, opts Options) (any, error) {
	method = strings.ToUpper(method)
	entry, ok := r.Find(method, url)
	if !ok {
		return nil, fmt.Errorf("%w for %s %s", ErrRouteNotFound, method, url)
	}

	factory, ok := r.owner(entry.Handler.Owner)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOwnerNotRegistered, entry.Handler.Owner)
	}
	owner, err := factory()
	if err != nil {
		return nil, fmt.Errorf("construct %s: %w", entry.Handler.Owner, err)
	}

	opts = entry.Options.Merge(opts)
	if ps, ok := owner.(PreSender); ok {
		data, opts = ps.BeforeSend(data, opts)
	}

	resp, err := r.Call(ctx, entry.Method, entry.Pattern, data, opts)
	if err != nil {
		return nil, err
	}
	return owner.Invoke(ctx, entry.Handler.Member, resp)
}
