package validation

import "github.com/vango-dev/eventwire/pkg/dom"

const (
	// InvalidClass marks a control that failed validation.
	InvalidClass = "is-invalid"

	// MessageClass is the class of the element holding a control's message.
	MessageClass = "error-message"

	messageStyle = "color: red; font-size: 12px; margin-top: 5px;"
)

// Mark updates every control of form from errs: failing controls gain
// InvalidClass, passing ones lose it, and each control's following
// MessageClass sibling (created when missing) shows its message.
func Mark(form *dom.Element, errs Errors) {
	if form == nil {
		return
	}
	doc := form.Document()
	for _, c := range form.QueryAll("input, select, textarea") {
		name := c.Name()
		if errs.Has(name) {
			c.AddClass(InvalidClass)
		} else {
			c.RemoveClass(InvalidClass)
		}

		msg := c.NextElementSibling()
		if msg == nil || !msg.HasClass(MessageClass) {
			msg = doc.CreateElement("div")
			msg.SetAttr("class", MessageClass)
			msg.SetAttr("style", messageStyle)
			c.InsertAfter(msg)
		}
		msg.SetText(errs[name])
	}
}
