package dom

import "context"

// Event is a dispatched interaction.
type Event struct {
	// Type is the event type ("click", "submit", ...).
	Type string

	// Target is the element the event was fired at.
	Target *Element

	// CurrentTarget is the element whose listeners are running.
	CurrentTarget *Element

	ctx              context.Context
	defaultPrevented bool
	stopped          bool
}

// Context returns the context the event was dispatched with.
func (e *Event) Context() context.Context {
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

// PreventDefault marks the default action (navigation, submission) as cancelled.
func (e *Event) PreventDefault() {
	e.defaultPrevented = true
}

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

// StopPropagation stops the event from reaching further ancestors.
func (e *Event) StopPropagation() {
	e.stopped = true
}

// nonBubbling lists event types that only fire on their target.
var nonBubbling = map[string]bool{
	"focus":        true,
	"blur":         true,
	"mouseenter":   true,
	"mouseleave":   true,
	"load":         true,
	"unload":       true,
	"scroll":       true,
	"invalid":      true,
	"error":        true,
	"play":         true,
	"pause":        true,
	"ended":        true,
	"volumechange": true,
	"timeupdate":   true,
}

// Bubbles reports whether events of type typ propagate to ancestors.
func Bubbles(typ string) bool {
	return !nonBubbling[typ]
}
