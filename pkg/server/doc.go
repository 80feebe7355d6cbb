// Package server exposes a dispatch engine over HTTP and WebSocket.
//
// The server is a thin front end over pkg/dispatch. It never shares a
// document between connections: every WebSocket session and every one-shot
// POST builds its own engine through an EngineFactory, so each document is
// only ever touched by one goroutine.
//
// # Endpoints
//
//   - GET  /healthz      liveness
//   - GET  /metrics      Prometheus exposition
//   - GET  /api/routes   the route table of a fresh engine
//   - POST /api/events   fire one event against a fresh document
//   - GET  /ws           a long-lived session
//
// # Sessions
//
// Each WebSocket connection creates a Session that owns:
//   - a private document and engine
//   - a bounded event queue
//
// The session runs three goroutines:
//   - ReadLoop: decodes JSON frames and queues events
//   - EventLoop: fires queued events one at a time and writes outcomes
//   - WriteLoop: sends heartbeat pings
//
// # Frames
//
// Client to server:
//
//	{"type":"event","id":"1","selector":"#save","event":"click","values":{"#name":"Ada"}}
//	{"type":"ping"}
//
// Server to client:
//
//	{"type":"hello","session":"<uuid>"}
//	{"type":"outcome","id":"1","outcomes":[...]}
//	{"type":"pong"}
//	{"type":"error","id":"1","code":"E340","message":"..."}
//
// # Example Usage
//
//	srv := server.New(func(ctx context.Context) (*dispatch.Engine, error) {
//	    doc, err := dom.ParseString(page)
//	    if err != nil {
//	        return nil, err
//	    }
//	    e := dispatch.New(doc, route.New())
//	    m.Apply(e, nil)
//	    return e, nil
//	}, server.DefaultConfig())
//
//	err := srv.Serve(ctx)
package server
