// Package dom provides the document tree that eventwire binds handlers to.
//
// A Document wraps a parsed HTML tree (golang.org/x/net/html) and adds the
// pieces an interactive runtime needs: CSS selector queries (cascadia),
// stable element handles, live control values and an event listener table
// with bubbling dispatch.
//
// # Elements
//
// Element is a handle on one element node. The Document hands out exactly
// one *Element per node, so pointer equality is element identity:
//
//	form := doc.Query("#signup")
//	name := form.QueryAll("input[name]")[0]
//	name.SetValue("ada")
//	form == name.Closest("form") // true
//
// # Events
//
// Listeners are attached per element and event type. Dispatch walks from the
// target up through its ancestors for bubbling types and only visits the
// target for non-bubbling ones (focus, blur, mouseenter, ...):
//
//	doc.AddEventListener(form, "submit", func(ev *dom.Event) {
//	    ev.PreventDefault()
//	})
//	doc.Dispatch(ctx, button, "submit")
//
// A Document is not safe for concurrent use. The owner of a document
// processes its events on a single goroutine.
package dom
