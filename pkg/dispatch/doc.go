// Package dispatch binds document elements to controller handlers and runs
// the per-invocation lifecycle.
//
// # Controllers
//
// A Controller names a selector and a table of handlers. Each Handler
// declares up front what it needs: parameter names, payload field aliases
// and result expressions evaluated against the remote response.
//
//	type UserController struct{}
//
//	func (UserController) Name() string     { return "UserController" }
//	func (UserController) Selector() string { return "#user-form" }
//	func (UserController) Handlers() map[string]dispatch.Handler {
//	    return map[string]dispatch.Handler{
//	        "save": {
//	            On:      "submit",
//	            Params:  []string{"StoreUserRequest", "name"},
//	            Results: map[string]string{"id": "response.data.id"},
//	            Func: func(c *dispatch.Call) (any, error) {
//	                return c.Scope["id"], nil
//	            },
//	        },
//	    }
//	}
//
// # Binding
//
// Bind attaches one listener per (controller, member, element). The event
// category is Handler.On, else the member name with an optional "on"
// prefix stripped ("onClick" binds click). Members that name no known
// category are skipped silently. Binding twice is a no-op.
//
// # Lifecycle
//
// Every triggered invocation resolves its target, builds a request
// (optionally a registered request type), authorizes it, validates it for
// submit events, and then either runs the handler locally or, when the
// route table holds a route for the controller member, posts the enclosing
// form through the route table first and exposes the response to the
// handler's scope. Failures while building, authorizing a remote call or
// sending it fall back to running the handler with a bare request.
//
// Nothing escapes the invocation. Each one reports an Outcome to the
// engine's observers and to Fire's caller.
package dispatch
