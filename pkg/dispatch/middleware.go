package dispatch

import (
	"context"

	"github.com/vango-dev/eventwire/pkg/dom"
)

// Invocation describes one triggered handler before it runs.
type Invocation struct {
	ID         string
	Controller Controller
	Member     string
	Handler    Handler
	Category   string
	Selector   string
	Event      *dom.Event
}

// Owner returns the controller name.
func (inv *Invocation) Owner() string {
	if inv.Controller == nil {
		return ""
	}
	return inv.Controller.Name()
}

// Path returns "Owner@member", the label middleware reports invocations
// under.
func (inv *Invocation) Path() string {
	return inv.Owner() + "@" + inv.Member
}

// Middleware wraps every invocation.
type Middleware interface {
	Wrap(ctx context.Context, inv *Invocation, next func(ctx context.Context) *Outcome) *Outcome
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, inv *Invocation, next func(ctx context.Context) *Outcome) *Outcome

// Wrap implements Middleware.
func (f MiddlewareFunc) Wrap(ctx context.Context, inv *Invocation, next func(ctx context.Context) *Outcome) *Outcome {
	return f(ctx, inv, next)
}

// chain composes middleware around run; the first middleware is outermost.
func chain(mw []Middleware, run func(ctx context.Context, inv *Invocation) *Outcome) func(ctx context.Context, inv *Invocation) *Outcome {
	h := run
	for i := len(mw) - 1; i >= 0; i-- {
		m, next := mw[i], h
		h = func(ctx context.Context, inv *Invocation) *Outcome {
			return m.Wrap(ctx, inv, func(ctx context.Context) *Outcome {
				return next(ctx, inv)
			})
		}
	}
	return h
}
