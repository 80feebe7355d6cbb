package manifest

import (
	"context"
	"log/slog"
	"sort"

	"github.com/vango-dev/eventwire/pkg/dispatch"
	"github.com/vango-dev/eventwire/pkg/dom"
	"github.com/vango-dev/eventwire/pkg/payload"
	"github.com/vango-dev/eventwire/pkg/route"
	"github.com/vango-dev/eventwire/pkg/validation"
)

// RegisterRoutes adds the manifest's routes to r, applying group prefixes
// through r.Group, and registers an owner for every controller.
func (m *Manifest) RegisterRoutes(r *route.Registry) {
	for _, rt := range m.Routes {
		register(r, rt)
	}
	var walk func(groups []Group)
	walk = func(groups []Group) {
		for _, g := range groups {
			r.Group(g.Prefix, func(r *route.Registry) {
				for _, rt := range g.Routes {
					register(r, rt)
				}
				walk(g.Groups)
			})
		}
	}
	walk(m.Groups)

	for _, c := range m.Controllers {
		r.RegisterOwner(c.Name, ownerFactory(c))
	}
}

func register(r *route.Registry, rt Route) {
	// Validate has already rejected unparsable references.
	ref, _ := route.ParseHandlerRef(rt.Handler)
	r.Register(rt.Method, rt.Path, ref, route.Options{Headers: rt.Headers, Query: rt.Query})
}

// ownerFactory builds a route owner whose members return the response
// data.
func ownerFactory(c Controller) route.OwnerFactory {
	return func() (route.Owner, error) {
		members := make(route.Members, len(c.Handlers))
		for _, h := range c.Handlers {
			members[h.Name] = func(_ context.Context, resp *route.Response) (any, error) {
				if resp == nil {
					return nil, nil
				}
				return resp.Data, nil
			}
		}
		return members, nil
	}
}

// RequestTypes returns a factory per declared request type.
func (m *Manifest) RequestTypes() map[string]dispatch.RequestFactory {
	out := make(map[string]dispatch.RequestFactory, len(m.Requests))
	for _, r := range m.Requests {
		out[r.Name] = dispatch.FormRequestType(r.spec())
	}
	return out
}

func (r Request) spec() validation.Spec {
	rules := make(validation.Ruleset, len(r.Rules))
	for field, s := range r.Rules {
		rules[field] = validation.ParseRules(s)
	}
	spec := validation.Spec{Rules: rules, Messages: r.Messages}
	if r.Deny != "" {
		msg := r.Deny
		spec.Authorize = func(*validation.FormRequest) validation.Authorization {
			return validation.Deny(msg)
		}
	}
	return spec
}

// ControllerSet builds the declared controllers. Their handlers return a
// Snapshot of the invocation.
func (m *Manifest) ControllerSet(logger *slog.Logger) []*dispatch.ControllerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]*dispatch.ControllerFunc, 0, len(m.Controllers))
	for _, c := range m.Controllers {
		table := make(map[string]dispatch.Handler, len(c.Handlers))
		for _, h := range c.Handlers {
			table[h.Name] = dispatch.Handler{
				On:          h.On,
				Params:      h.Params,
				RequestType: h.RequestType,
				Fields:      h.Fields,
				Results:     h.Results,
				Func:        snapshot,
			}
		}
		ctrl := &dispatch.ControllerFunc{
			ControllerName:     c.Name,
			ControllerSelector: c.Selector,
			Table:              table,
		}
		if c.AuthorizeError {
			name := c.Name
			ctrl.AuthorizeError = func(msg string) {
				logger.Warn("authorization rejected", "owner", name, "message", msg)
			}
		}
		out = append(out, ctrl)
	}
	return out
}

// Apply registers request types on e, adds routes to e's registry when it
// has one, and binds every declared controller. It returns the number of
// new bindings.
func (m *Manifest) Apply(e *dispatch.Engine, logger *slog.Logger) int {
	for name, f := range m.RequestTypes() {
		e.RegisterRequestType(name, f)
	}
	if r := e.Routes(); r != nil {
		m.RegisterRoutes(r)
	}
	n := 0
	for _, c := range m.ControllerSet(logger) {
		n += e.Bind(c)
	}
	return n
}

// Snapshot is what declarative handlers return.
type Snapshot struct {
	Member string         `json:"member"`
	Args   map[string]any `json:"args"`
	Scope  map[string]any `json:"scope"`
}

func snapshot(c *dispatch.Call) (any, error) {
	s := Snapshot{
		Member: c.Member,
		Args:   make(map[string]any, len(c.Args)),
		Scope:  make(map[string]any, len(c.Scope)),
	}
	for _, name := range paramNames(c) {
		s.Args[name] = plain(c.Arg(name))
	}
	for _, k := range c.Scope.Keys() {
		s.Scope[k] = plain(c.Scope[k])
	}
	return s, nil
}

func paramNames(c *dispatch.Call) []string {
	h := c.Controller.Handlers()[c.Member]
	names := append([]string(nil), h.Params...)
	sort.Strings(names)
	return names
}

// plain converts invocation values into JSON-friendly ones.
func plain(v any) any {
	switch t := v.(type) {
	case dispatch.Request:
		return t.All().Map()
	case payload.Payload:
		return t.Map()
	case *route.Response:
		return map[string]any{"status": t.Status, "data": t.Data}
	case *dom.Event:
		return t.Type
	case *dom.Element:
		return t.String()
	default:
		return v
	}
}
