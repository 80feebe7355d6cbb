package validation

import (
	"sort"
	"strings"

	"github.com/vango-dev/eventwire/pkg/dom"
	"github.com/vango-dev/eventwire/pkg/payload"
)

// AuthorizeKey is the reserved error key set when authorization fails
// during Validate.
const AuthorizeKey = "_authorize"

// UnauthorizedMessage is the Validate error for a rejected request.
const UnauthorizedMessage = "You are not authorized to perform this action"

// DefaultDenyMessage is reported when a rejection carries no message.
const DefaultDenyMessage = "Unauthorized"

// Authorization is the result of an authorization check.
type Authorization struct {
	Allowed bool
	Message string
}

// Allow permits the request.
func Allow() Authorization {
	return Authorization{Allowed: true}
}

// Deny rejects the request with msg.
func Deny(msg string) Authorization {
	return Authorization{Message: msg}
}

// Reason returns the rejection message, or DefaultDenyMessage when none
// was given.
func (a Authorization) Reason() string {
	if a.Message == "" {
		return DefaultDenyMessage
	}
	return a.Message
}

// Errors maps a field to its first failing message.
type Errors map[string]string

// Has reports whether field has an error.
func (e Errors) Has(field string) bool {
	return strings.TrimSpace(e[field]) != ""
}

// Fields returns the failing fields in sorted order.
func (e Errors) Fields() []string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Spec declares a request type.
type Spec struct {
	// Authorize decides whether the request may proceed. Nil allows.
	Authorize func(*FormRequest) Authorization

	// Rules is the per-field ruleset.
	Rules Ruleset

	// Messages overrides default messages, keyed "field.rule".
	Messages map[string]string
}

// FormRequest is a request validated against a Spec.
type FormRequest struct {
	*payload.Request

	spec   Spec
	errors Errors
}

// NewFormRequest collects a request for el (or selector) and binds spec.
func NewFormRequest(doc *dom.Document, el *dom.Element, selector string, spec Spec) *FormRequest {
	return Wrap(payload.NewRequest(doc, el, selector), spec)
}

// Wrap binds spec to an already collected request.
func Wrap(req *payload.Request, spec Spec) *FormRequest {
	return &FormRequest{Request: req, spec: spec, errors: Errors{}}
}

// Authorize runs the spec's authorization check.
func (f *FormRequest) Authorize() Authorization {
	if f.spec.Authorize == nil {
		return Allow()
	}
	return f.spec.Authorize(f)
}

// Rules returns the spec's ruleset.
func (f *FormRequest) Rules() Ruleset {
	if f.spec.Rules == nil {
		return Ruleset{}
	}
	return f.spec.Rules
}

// Messages returns the spec's custom messages.
func (f *FormRequest) Messages() map[string]string {
	if f.spec.Messages == nil {
		return map[string]string{}
	}
	return f.spec.Messages
}

// Errors returns the errors recorded by the last Validate.
func (f *FormRequest) Errors() Errors {
	return f.errors
}

// Message resolves the message for field failing rule token tok.
func (f *FormRequest) Message(field, tok string) string {
	tok = strings.TrimSpace(tok)
	name, param := splitToken(tok)
	msgs := f.Messages()
	if m, ok := msgs[field+"."+tok]; ok && m != "" {
		return m
	}
	if m, ok := msgs[field+"."+name]; ok && m != "" {
		return m
	}
	return defaultMessage(field, name, param)
}

// Validate checks the live payload against the ruleset and marks the bound
// form. It returns the recorded errors; an empty map means valid.
func (f *FormRequest) Validate() Errors {
	if auth := f.Authorize(); !auth.Allowed {
		f.errors = Errors{AuthorizeKey: UnauthorizedMessage}
		return f.errors
	}

	f.errors = Errors{}
	form := f.Form()
	if form != nil {
		f.Recollect()
	}
	if f.Data == nil {
		f.Data = payload.Payload{}
	}

	ruleset := f.Rules()
	for _, field := range ruleset.Fields() {
		value, present := f.Data.Lookup(field)
		for _, tok := range ruleset[field] {
			name, param := splitToken(tok)
			fn, ok := LookupRule(name)
			if !ok {
				continue
			}
			if !fn(value, present, param) {
				f.errors[field] = f.Message(field, tok)
				break
			}
		}
	}

	if form != nil {
		Mark(form, f.errors)
	}
	return f.errors
}

// Property returns one of the request's own properties. errors is added to
// those of the base request.
func (f *FormRequest) Property(name string) (any, bool) {
	if name == "errors" {
		return f.errors, true
	}
	return f.Request.Property(name)
}

// Field returns the request's own property name if it has one, else the
// payload field.
func (f *FormRequest) Field(name string) (any, bool) {
	if v, ok := f.Property(name); ok {
		return v, true
	}
	return f.Request.Field(name)
}

// Keys unions the request's own property names with the payload fields.
func (f *FormRequest) Keys() []string {
	return payload.UnionKeys([]string{"errors", "selector"}, f.Request.Keys())
}
