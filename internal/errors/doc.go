// Package errors provides coded, actionable errors for eventwire.
//
// Each error has a unique code (e.g., "E240") that maps to a category, a
// short message and a documentation URL. Errors wrap their cause so
// errors.Is and errors.As keep working across package boundaries, and two
// WireErrors compare equal under errors.Is when their codes match.
//
// # Categories
//
//   - collection: payload and request construction
//   - authorization: a request's authorize hook rejected the interaction
//   - validation: declarative rules produced field errors
//   - route: route lookup and handler references
//   - transport: outbound calls and non-2xx responses
//   - invocation: handler execution and result extraction
//   - manifest, config, cli: loading and command-line errors
//   - session: WebSocket frames and session limits
//
// # Usage
//
//	err := errors.New("E240").
//	    WithDetailf("POST %s", url).
//	    WithSuggestion("Register the route in the manifest")
//
//	fmt.Println(err.Format())
package errors
