// Package route is the client-side route table for remote handler
// invocation.
//
// Routes map an HTTP method and an exact URL pattern to a handler
// reference ("Owner@member"). There are no path parameters or wildcards:
// "/users" never matches "/users/1".
//
//	routes := route.New(route.WithBasePath("https://api.example.test"))
//	routes.Post("/save", route.HandlerRef{Owner: "UserController", Member: "save"}, route.Options{})
//	routes.Group("/admin", func(r *route.Registry) {
//	    r.Get("/stats", route.HandlerRef{Owner: "StatsController", Member: "show"}, route.Options{})
//	})
//
// Call is the only network-facing primitive. Dispatch combines lookup,
// owner construction, the owner's BeforeSend hook, Call and member
// invocation.
package route
