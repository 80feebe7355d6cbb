// Package manifest loads declarative route, controller and request type
// definitions from TOML.
//
//	base_path = "https://api.example.test"
//
//	[[route]]
//	method  = "POST"
//	path    = "/save"
//	handler = "UserController@save"
//
//	[[controller]]
//	name     = "UserController"
//	selector = "#user-form"
//
//	[[controller.handler]]
//	name    = "save"
//	on      = "submit"
//	params  = ["StoreUserRequest"]
//	results = { id = "response.data.id" }
//
//	[[request]]
//	name  = "StoreUserRequest"
//	rules = { name = "required|string", email = "required|email" }
package manifest

import (
	"bytes"
	"fmt"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	wireerrors "github.com/vango-dev/eventwire/internal/errors"
	"github.com/vango-dev/eventwire/pkg/route"
)

// Manifest is the top-level document.
type Manifest struct {
	BasePath    string       `toml:"base_path"`
	Routes      []Route      `toml:"route"`
	Groups      []Group      `toml:"group"`
	Controllers []Controller `toml:"controller"`
	Requests    []Request    `toml:"request"`
}

// Route maps a method and path to a controller member.
type Route struct {
	Method  string            `toml:"method"`
	Path    string            `toml:"path"`
	Handler string            `toml:"handler"`
	Headers map[string]string `toml:"headers"`
	Query   map[string]string `toml:"query"`
}

// Group prefixes the paths of its routes. Groups nest.
type Group struct {
	Prefix string  `toml:"prefix"`
	Routes []Route `toml:"route"`
	Groups []Group `toml:"group"`
}

// Controller declares a selector and its handlers.
type Controller struct {
	Name     string    `toml:"name"`
	Selector string    `toml:"selector"`
	Handlers []Handler `toml:"handler"`

	// AuthorizeError, when true, records authorization messages on the
	// controller instead of raising the engine alert.
	AuthorizeError bool `toml:"authorize_error"`
}

// Handler declares one controller member.
type Handler struct {
	Name        string            `toml:"name"`
	On          string            `toml:"on"`
	Params      []string          `toml:"params"`
	RequestType string            `toml:"request_type"`
	Fields      map[string]string `toml:"fields"`
	Results     map[string]string `toml:"results"`
}

// Request declares a validated request type.
type Request struct {
	Name     string            `toml:"name"`
	Rules    map[string]string `toml:"rules"`
	Messages map[string]string `toml:"messages"`

	// Deny, when non-empty, rejects every request with this message.
	Deny string `toml:"deny"`
}

// Load parses and validates a manifest. Unknown keys are rejected.
func Load(data []byte) (*Manifest, error) {
	var m Manifest
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, wireerrors.New("E300").Wrap(err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks routes, controllers and request types for consistency.
func (m *Manifest) Validate() error {
	for _, r := range m.allRoutes() {
		if err := r.validate(); err != nil {
			return err
		}
	}

	requests := make(map[string]bool, len(m.Requests))
	for _, r := range m.Requests {
		if r.Name == "" {
			return wireerrors.New("E300").WithDetail("request type without a name")
		}
		requests[r.Name] = true
	}

	seen := make(map[string]bool, len(m.Controllers))
	for _, c := range m.Controllers {
		if c.Name == "" || c.Selector == "" {
			return wireerrors.New("E300").WithDetailf("controller %q needs a name and a selector", c.Name)
		}
		if seen[c.Name] {
			return wireerrors.New("E301").WithDetail(c.Name)
		}
		seen[c.Name] = true

		for _, h := range c.Handlers {
			if h.Name == "" {
				return wireerrors.New("E300").WithDetailf("controller %s has a handler without a name", c.Name)
			}
			if h.RequestType != "" && !requests[h.RequestType] {
				return wireerrors.New("E302").
					WithDetailf("%s@%s uses %s", c.Name, h.Name, h.RequestType).
					WithSuggestion("Declare it in a [[request]] table")
			}
		}
	}
	return nil
}

func (r Route) validate() error {
	method := strings.ToUpper(r.Method)
	known := false
	for _, m := range route.Methods {
		if m == method {
			known = true
			break
		}
	}
	if !known {
		return wireerrors.New("E300").WithDetailf("route %s: unsupported method %q", r.Path, r.Method)
	}
	if r.Path == "" {
		return wireerrors.New("E300").WithDetail("route without a path")
	}
	if _, err := route.ParseHandlerRef(r.Handler); err != nil {
		return wireerrors.New("E243").WithDetail(r.Handler).Wrap(err)
	}
	return nil
}

// allRoutes returns top-level and grouped routes in declaration order.
func (m *Manifest) allRoutes() []Route {
	out := append([]Route(nil), m.Routes...)
	var walk func(groups []Group)
	walk = func(groups []Group) {
		for _, g := range groups {
			out = append(out, g.Routes...)
			walk(g.Groups)
		}
	}
	walk(m.Groups)
	return out
}

// String returns a one-line summary.
func (m *Manifest) String() string {
	return fmt.Sprintf("manifest(routes=%d, controllers=%d, requests=%d)",
		len(m.allRoutes()), len(m.Controllers), len(m.Requests))
}
