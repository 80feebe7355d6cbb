package payload

import (
	"strings"

	"github.com/vango-dev/eventwire/pkg/dom"
)

// controlSelector matches the named-value controls of a form.
const controlSelector = "input, select, textarea"

// Collect builds the structured record for el.
//
// A form contributes every named descendant control. An element inside a
// form is seeded with that form's controls. The element's own data-*
// attributes, non-empty value and id are folded in next; its declared name
// never is. Each named ancestor below body/html then contributes a nested
// record under its name.
//
// Collect never panics. Any failure yields an empty Payload.
func Collect(el *dom.Element) (p Payload) {
	defer func() {
		if r := recover(); r != nil {
			p = Payload{}
		}
	}()

	p = Payload{}
	if el == nil {
		return p
	}

	if el.IsFormLike() {
		p.Merge(Controls(el))
	} else if form := enclosingForm(el); form != nil {
		p.Merge(Controls(form))
	}

	own := fields(el)
	addAncestors(own, el.Parent())
	p.Merge(own)
	return p
}

// Controls returns the current value of every named control under form,
// keyed by name. Unset values are "".
func Controls(form *dom.Element) Payload {
	out := Payload{}
	if form == nil {
		return out
	}
	for _, c := range form.QueryAll(controlSelector) {
		if name := c.Name(); name != "" {
			out[name] = c.Value()
		}
	}
	return out
}

// NormalizeKey turns a data attribute suffix into a payload key.
func NormalizeKey(key string) string {
	return strings.ReplaceAll(key, "-", "_")
}

// fields collects an element's own record: data attributes, value, id and,
// for forms, their controls.
func fields(el *dom.Element) Payload {
	out := Payload{}
	for k, v := range el.DataAttrs() {
		out[NormalizeKey(k)] = v
	}
	if v := el.Value(); v != "" {
		out["value"] = v
	}
	if id := el.ID(); id != "" {
		out["id"] = id
	}
	if el.IsFormLike() {
		out.Merge(Controls(el))
	}
	return out
}

// addAncestors attaches the first named ancestor of start (below the root
// containers) to into, then recurses from that ancestor's parent into the
// nested record.
func addAncestors(into Payload, start *dom.Element) {
	for a := start; a != nil && !a.IsRootContainer(); a = a.Parent() {
		name := a.Name()
		if name == "" {
			continue
		}
		nested := fields(a)
		addAncestors(nested, a.Parent())
		into[name] = nested
		return
	}
}

func enclosingForm(el *dom.Element) *dom.Element {
	for a := el.Parent(); a != nil; a = a.Parent() {
		if a.IsFormLike() {
			return a
		}
	}
	return nil
}
