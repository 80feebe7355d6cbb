package server

import (
	"context"
	"sort"
	"strings"

	wireerrors "github.com/vango-dev/eventwire/internal/errors"
	"github.com/vango-dev/eventwire/pkg/dispatch"
	"github.com/vango-dev/eventwire/pkg/dom"
)

// FrameType names a WebSocket frame.
type FrameType string

const (
	FrameHello   FrameType = "hello"
	FrameEvent   FrameType = "event"
	FramePing    FrameType = "ping"
	FramePong    FrameType = "pong"
	FrameOutcome FrameType = "outcome"
	FrameError   FrameType = "error"
)

// EventRequest asks for one event to be fired. Values are applied to the
// document first, keyed by selector.
type EventRequest struct {
	Selector string            `json:"selector"`
	Event    string            `json:"event"`
	Values   map[string]string `json:"values,omitempty"`
}

// ClientFrame is a frame sent by the client.
type ClientFrame struct {
	Type FrameType `json:"type"`
	// ID is echoed on the reply.
	ID string `json:"id,omitempty"`
	EventRequest
}

// ServerFrame is a frame sent by the server.
type ServerFrame struct {
	Type     FrameType     `json:"type"`
	ID       string        `json:"id,omitempty"`
	Session  string        `json:"session,omitempty"`
	Outcomes []OutcomeView `json:"outcomes,omitempty"`
	Code     string        `json:"code,omitempty"`
	Message  string        `json:"message,omitempty"`
}

// OutcomeView is the wire form of a dispatch outcome.
type OutcomeView struct {
	*dispatch.Outcome
	OK            bool   `json:"ok"`
	Error         string `json:"error,omitempty"`
	ErrorCode     string `json:"errorCode,omitempty"`
	FallbackError string `json:"fallbackError,omitempty"`
}

// Views converts outcomes to their wire form.
func Views(outs []*dispatch.Outcome) []OutcomeView {
	views := make([]OutcomeView, 0, len(outs))
	for _, o := range outs {
		v := OutcomeView{Outcome: o, OK: o.OK()}
		if o.Err != nil {
			v.Error = o.Err.Error()
			v.ErrorCode = wireerrors.CodeOf(o.Err)
		}
		if o.FallbackErr != nil {
			v.FallbackError = o.FallbackErr.Error()
		}
		views = append(views, v)
	}
	return views
}

func errorFrame(id string, err error) ServerFrame {
	return ServerFrame{Type: FrameError, ID: id, Code: wireerrors.CodeOf(err), Message: err.Error()}
}

// Fire applies req.Values to e's document, then fires req.Event at the
// first element matching req.Selector.
func Fire(ctx context.Context, e *dispatch.Engine, req EventRequest) ([]*dispatch.Outcome, error) {
	if req.Selector == "" || req.Event == "" {
		return nil, wireerrors.New("E341").WithDetail("selector and event are required")
	}
	doc := e.Document()
	if err := ApplyValues(doc, req.Values); err != nil {
		return nil, err
	}
	el := doc.Query(req.Selector)
	if el == nil {
		return nil, wireerrors.New("E340").WithDetail(req.Selector)
	}
	return e.Fire(ctx, el, req.Event), nil
}

// ApplyValues sets the value of every element matching each selector.
// Checkboxes and radios are checked unless the value is "", "0" or
// "false".
func ApplyValues(doc *dom.Document, values map[string]string) error {
	selectors := make([]string, 0, len(values))
	for sel := range values {
		selectors = append(selectors, sel)
	}
	sort.Strings(selectors)

	for _, sel := range selectors {
		els := doc.QueryAll(sel)
		if len(els) == 0 {
			return wireerrors.New("E340").WithDetail(sel)
		}
		v := values[sel]
		for _, el := range els {
			switch el.Type() {
			case "checkbox", "radio":
				el.SetChecked(truthy(v))
			default:
				el.SetValue(v)
			}
		}
	}
	return nil
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "off":
		return false
	}
	return true
}
