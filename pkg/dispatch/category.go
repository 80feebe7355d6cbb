package dispatch

import "strings"

// Categories lists the interaction categories a handler can bind to.
var Categories = []string{
	// Form lifecycle
	"submit", "reset",

	// Input and focus
	"change", "input", "blur", "focus", "focusin", "focusout", "select", "invalid",

	// Pointer
	"click", "dblclick", "contextmenu",
	"mouseenter", "mouseleave", "mouseover", "mouseout",
	"mousedown", "mouseup", "mousemove", "wheel",

	// Keyboard
	"keyup", "keydown", "keypress",

	// Touch
	"touchstart", "touchend", "touchmove", "touchcancel",

	// Drag and drop
	"drag", "dragstart", "dragend", "dragover", "dragenter", "dragleave", "drop",

	// Window and document
	"scroll", "resize", "load", "unload", "beforeunload", "error",

	// Media
	"play", "pause", "ended", "volumechange", "timeupdate",
}

var categorySet = func() map[string]bool {
	m := make(map[string]bool, len(Categories))
	for _, c := range Categories {
		m[c] = true
	}
	return m
}()

// CategoryFor returns the category a handler binds to: on when set, else
// derived from member. An "on" prefix is stripped and the next letter
// lower-cased ("onClick" is click); the result is matched exactly, then
// case-insensitively. It returns "" when nothing matches.
func CategoryFor(member, on string) string {
	name := on
	if name == "" {
		name = member
		if len(name) > 2 && strings.EqualFold(name[:2], "on") {
			name = name[2:]
			name = strings.ToLower(name[:1]) + name[1:]
		}
	}
	if categorySet[name] {
		return name
	}
	lower := strings.ToLower(name)
	if categorySet[lower] {
		return lower
	}
	return ""
}
