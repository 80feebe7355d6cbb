package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/vango-dev/eventwire/pkg/route"
	"github.com/vango-dev/eventwire/pkg/validation"
)

var (
	// ErrNoForm is recorded when a submit fires outside any form.
	ErrNoForm = errors.New("no enclosing form")

	// ErrAuthorizationRejected is recorded when a request's Authorize
	// rejects it.
	ErrAuthorizationRejected = errors.New("authorization rejected")

	// ErrValidationFailed is recorded when a submit fails validation.
	ErrValidationFailed = errors.New("validation failed")

	// ErrRequestType is recorded when a request type factory fails.
	ErrRequestType = errors.New("request type could not be constructed")

	// ErrHandlerPanic is recorded when a handler panics.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrStepPanic is recorded when authorization, validation or the
	// remote call panics before the handler runs.
	ErrStepPanic = errors.New("invocation step panicked")

	// ErrResultExpression is recorded when a result expression fails.
	ErrResultExpression = errors.New("result expression failed")
)

// Stage is a step of the invocation lifecycle.
type Stage string

const (
	StageCollecting       Stage = "collecting"
	StageAuthorizing      Stage = "authorizing"
	StageValidating       Stage = "validating"
	StageRejected         Stage = "rejected"
	StageExecuting        Stage = "executing"
	StageLocalDone        Stage = "local_done"
	StageRemoteDispatched Stage = "remote_dispatched"
	StageFallback         Stage = "fallback"
	StageSkipped          Stage = "skipped"
	StageDone             Stage = "done"
)

// Outcome reports how one invocation ended. Failures never escape an
// invocation; they are recorded here instead.
type Outcome struct {
	ID       string `json:"id"`
	Owner    string `json:"owner"`
	Member   string `json:"member"`
	Category string `json:"category"`
	Selector string `json:"selector"`

	// Stage is the last lifecycle stage before done: skipped, rejected,
	// local_done, remote_dispatched or fallback.
	Stage Stage `json:"stage"`

	// Stages lists every stage entered, in order.
	Stages []Stage `json:"stages"`

	// Remote reports whether the invocation took the remote path.
	Remote bool `json:"remote"`

	// Route is the route taken by a remote invocation.
	Route *route.Entry `json:"route,omitempty"`

	// RequestType is the resolved request type name, if any.
	RequestType string `json:"requestType,omitempty"`

	// Result is what the handler returned.
	Result any `json:"result,omitempty"`

	// Err is the failure that ended or diverted the invocation.
	Err error `json:"-"`

	// Errors holds validation errors for rejected submits.
	Errors validation.Errors `json:"errors,omitempty"`

	// Alert is the authorization message surfaced to the user.
	Alert string `json:"alert,omitempty"`

	// Fallback reports whether the handler ran with a bare request after a
	// failure.
	Fallback bool `json:"fallback"`

	// FallbackErr is the fallback execution's own failure.
	FallbackErr error `json:"-"`

	// Scope is the invocation's name table.
	Scope Scope `json:"-"`

	// Response is the remote response.
	Response *route.Response `json:"response,omitempty"`

	Duration time.Duration `json:"duration"`
}

// OK reports whether the handler ran without any recorded failure.
func (o *Outcome) OK() bool {
	return o.Err == nil && o.FallbackErr == nil &&
		(o.Stage == StageLocalDone || o.Stage == StageRemoteDispatched)
}

// Reached reports whether the invocation entered stage s.
func (o *Outcome) Reached(s Stage) bool {
	for _, have := range o.Stages {
		if have == s {
			return true
		}
	}
	return false
}

func (o *Outcome) enter(s Stage) {
	o.Stages = append(o.Stages, s)
	if s != StageCollecting && s != StageAuthorizing && s != StageValidating && s != StageExecuting && s != StageDone {
		o.Stage = s
	}
}

// lastStage returns the stage most recently entered.
func lastStage(o *Outcome) Stage {
	if len(o.Stages) == 0 {
		return ""
	}
	return o.Stages[len(o.Stages)-1]
}

// Observer receives every outcome.
type Observer func(ctx context.Context, o *Outcome)

type collectorKey struct{}

// outcomeCollector gathers the outcomes of one Fire call.
type outcomeCollector struct {
	outcomes []*Outcome
}

func withCollector(ctx context.Context, c *outcomeCollector) context.Context {
	return context.WithValue(ctx, collectorKey{}, c)
}

func collectorFrom(ctx context.Context) *outcomeCollector {
	c, _ := ctx.Value(collectorKey{}).(*outcomeCollector)
	return c
}
