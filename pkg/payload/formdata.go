package payload

import "github.com/vango-dev/eventwire/pkg/dom"

// FormData returns the submission data of form the way a browser would
// build it: named, enabled controls only, unchecked checkboxes and radios
// skipped, button-like and file inputs skipped. Repeated names keep the
// last value.
func FormData(form *dom.Element) Payload {
	out := Payload{}
	if form == nil {
		return out
	}
	for _, c := range form.QueryAll(controlSelector) {
		name := c.Name()
		if name == "" || c.Disabled() {
			continue
		}
		if c.Tag() == "input" {
			switch c.Type() {
			case "submit", "button", "reset", "image", "file":
				continue
			case "checkbox", "radio":
				if !c.Checked() {
					continue
				}
			}
		}
		out[name] = c.Value()
	}
	return out
}
