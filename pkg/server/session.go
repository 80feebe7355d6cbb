package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	wireerrors "github.com/vango-dev/eventwire/internal/errors"
	"github.com/vango-dev/eventwire/pkg/dispatch"
	"github.com/vango-dev/eventwire/pkg/middleware"
)

// Session is one WebSocket connection with its own document and engine.
// Events are fired on the EventLoop goroutine only.
type Session struct {
	ID        string
	IP        string
	CreatedAt time.Time

	conn   *websocket.Conn
	engine *dispatch.Engine
	config *SessionConfig
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// mu serializes data frame writes.
	mu         sync.Mutex
	closed     atomic.Bool
	lastActive atomic.Int64

	events chan ClientFrame
	done   chan struct{}

	eventCount atomic.Uint64
	onClose    func(*Session)
}

func newSession(ctx context.Context, id string, conn *websocket.Conn, engine *dispatch.Engine, config *SessionConfig, logger *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		conn:      conn,
		engine:    engine,
		config:    config,
		logger:    logger.With("session_id", id),
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan ClientFrame, config.MaxEventQueue),
		done:      make(chan struct{}),
	}
	s.touch()
	return s
}

// Engine returns the session's dispatch engine. Only the EventLoop may fire
// events through it.
func (s *Session) Engine() *dispatch.Engine {
	return s.engine
}

// LastActive returns the time of the last client message.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// EventCount returns the number of events processed.
func (s *Session) EventCount() uint64 {
	return s.eventCount.Load()
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// Start runs the event and write loops in the background.
func (s *Session) Start() {
	go s.EventLoop()
	go s.WriteLoop()
}

// ReadLoop reads client frames until the connection fails or the session
// closes. It closes the session on return.
func (s *Session) ReadLoop() {
	defer s.Close()

	s.conn.SetReadLimit(s.config.MaxMessageSize)
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		return s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})

	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
				middleware.RecordWebSocketError("read")
			}
			return
		}
		s.touch()

		var f ClientFrame
		if err := json.Unmarshal(msg, &f); err != nil {
			middleware.RecordWebSocketError("decode")
			_ = s.send(errorFrame("", wireerrors.New("E341").Wrap(err)))
			continue
		}

		switch f.Type {
		case FramePing:
			_ = s.send(ServerFrame{Type: FramePong, ID: f.ID})
		case FrameEvent:
			if err := s.QueueEvent(f); err != nil {
				_ = s.send(errorFrame(f.ID, err))
			}
		default:
			_ = s.send(errorFrame(f.ID, wireerrors.New("E341").WithDetailf("unknown frame type %q", f.Type)))
		}
	}
}

// EventLoop fires queued events one at a time.
func (s *Session) EventLoop() {
	for {
		select {
		case f := <-s.events:
			s.handleEvent(f)
		case <-s.done:
			return
		}
	}
}

func (s *Session) handleEvent(f ClientFrame) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event panic", "panic", r, "stack", string(debug.Stack()))
			_ = s.send(errorFrame(f.ID, fmt.Errorf("event panicked: %v", r)))
		}
	}()

	s.eventCount.Add(1)
	outs, err := Fire(s.ctx, s.engine, f.EventRequest)
	if err != nil {
		s.logger.Debug("event rejected", "selector", f.Selector, "event", f.Event, "error", err)
		_ = s.send(errorFrame(f.ID, err))
		return
	}
	_ = s.send(ServerFrame{Type: FrameOutcome, ID: f.ID, Outcomes: Views(outs)})
}

// WriteLoop sends heartbeat pings until the session closes.
func (s *Session) WriteLoop() {
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.config.WriteTimeout)); err != nil {
				s.logger.Debug("ping failed", "error", err)
				middleware.RecordWebSocketError("ping")
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// QueueEvent queues an event frame for the EventLoop.
func (s *Session) QueueEvent(f ClientFrame) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	select {
	case s.events <- f:
		return nil
	default:
		s.logger.Warn("event queue full, dropping event", "selector", f.Selector, "event", f.Event)
		return &SessionError{SessionID: s.ID, Op: "queue", Err: ErrEventQueueFull}
	}
}

// send writes one frame. Frames that cannot be encoded are replaced by an
// error frame.
func (s *Session) send(f ServerFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		s.logger.Error("frame encode error", "type", f.Type, "error", err)
		data, _ = json.Marshal(errorFrame(f.ID, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return ErrSessionClosed
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("write error", "error", err)
		middleware.RecordWebSocketError("write")
		go s.Close()
		return err
	}
	return nil
}

// Close ends the session. It is safe to call more than once.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	close(s.done)
	s.cancel()

	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	_ = s.conn.Close()

	if s.onClose != nil {
		s.onClose(s)
	}
	s.logger.Info("session closed",
		"events", s.eventCount.Load(),
		"duration", time.Since(s.CreatedAt))
}

// IsClosed reports whether the session has closed.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done returns a channel closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
