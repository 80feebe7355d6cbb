package route

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Methods lists the HTTP methods the registry keeps tables for, in the
// order FindHandler scans them.
var Methods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
}

var (
	// ErrRouteNotFound is returned by Dispatch when no route matches.
	ErrRouteNotFound = errors.New("route not found")

	// ErrOwnerNotRegistered is returned by Dispatch when a route names an
	// owner without a registered factory.
	ErrOwnerNotRegistered = errors.New("route owner not registered")

	// ErrMemberNotFound is returned by owners asked for an unknown member.
	ErrMemberNotFound = errors.New("member not found")

	// ErrInvalidHandlerRef is returned when a handler reference cannot be
	// parsed.
	ErrInvalidHandlerRef = errors.New("invalid handler reference")

	// ErrTransport wraps every outbound call failure.
	ErrTransport = errors.New("failed to send request")

	// ErrHTTPStatus matches StatusErrors.
	ErrHTTPStatus = errors.New("unexpected HTTP status")
)

// HandlerRef names the member of an owner that handles a route.
type HandlerRef struct {
	Owner  string `json:"owner"`
	Member string `json:"member"`
}

// ParseHandlerRef parses "Owner@member".
func ParseHandlerRef(s string) (HandlerRef, error) {
	owner, member, ok := strings.Cut(strings.TrimSpace(s), "@")
	if !ok || owner == "" || member == "" || strings.Contains(member, "@") {
		return HandlerRef{}, fmt.Errorf("%w: %q", ErrInvalidHandlerRef, s)
	}
	return HandlerRef{Owner: owner, Member: member}, nil
}

// String returns "Owner@member".
func (h HandlerRef) String() string {
	return h.Owner + "@" + h.Member
}

// Options are per-route and per-call request options.
type Options struct {
	// Headers are added to the outbound request, overriding the defaults.
	Headers map[string]string `json:"headers,omitempty"`

	// Query is appended to the request URL.
	Query map[string]string `json:"query,omitempty"`
}

// Merge returns o overlaid with other. Keys in other win.
func (o Options) Merge(other Options) Options {
	return Options{
		Headers: mergeMaps(o.Headers, other.Headers),
		Query:   mergeMaps(o.Query, other.Query),
	}
}

func mergeMaps(a, b map[string]string) map[string]string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Entry is one registered route.
type Entry struct {
	Method  string     `json:"method"`
	Pattern string     `json:"pattern"`
	Handler HandlerRef `json:"handler"`
	Options Options    `json:"options"`
}

// Response is the result of an outbound call.
type Response struct {
	// Data is the decoded JSON body, or the body text.
	Data       any         `json:"data"`
	Status     int         `json:"status"`
	StatusText string      `json:"statusText"`
	Headers    http.Header `json:"headers"`
	Success    bool        `json:"success"`
	URL        string      `json:"url"`
}

// Owner handles routed calls for one named owner.
type Owner interface {
	// Invoke runs member with the outbound call's response.
	Invoke(ctx context.Context, member string, resp *Response) (any, error)
}

// PreSender is implemented by owners that rewrite outbound data and
// options before every call.
type PreSender interface {
	BeforeSend(data any, opts Options) (any, Options)
}

// OwnerFactory constructs an owner for one dispatch.
type OwnerFactory func() (Owner, error)

// MemberFunc handles one routed call.
type MemberFunc func(ctx context.Context, resp *Response) (any, error)

// Members is an Owner backed by a table of member functions.
type Members map[string]MemberFunc

// Invoke implements Owner.
func (m Members) Invoke(ctx context.Context, member string, resp *Response) (any, error) {
	fn, ok := m[member]
	if !ok || fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, member)
	}
	return fn(ctx, resp)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status     int
	StatusText string
	Response   *Response
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d %s", e.Status, e.StatusText)
}

// Is matches ErrHTTPStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrHTTPStatus
}
