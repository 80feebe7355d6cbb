package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/eventwire/pkg/dispatch"
	"github.com/vango-dev/eventwire/pkg/dom"
	"github.com/vango-dev/eventwire/pkg/route"
)

const formPage = `<html><body>
<form id="f">
  <input name="name">
  <input type="checkbox" name="agree" value="yes">
  <button id="save" type="button">Save</button>
</form>
</body></html>`

func testFactory(t *testing.T) EngineFactory {
	t.Helper()
	return func(context.Context) (*dispatch.Engine, error) {
		doc, err := dom.ParseString(formPage)
		if err != nil {
			return nil, err
		}
		routes := route.New()
		routes.Get("/users", route.HandlerRef{Owner: "UserController", Member: "list"}, route.Options{})

		e := dispatch.New(doc, routes)
		e.Bind(&dispatch.ControllerFunc{
			ControllerName:     "FormController",
			ControllerSelector: "#save",
			Table: map[string]dispatch.Handler{
				"onClick": {
					Params: []string{"request"},
					Func: func(c *dispatch.Call) (any, error) {
						return c.Arg("request").(dispatch.Request).All().Get("name"), nil
					},
				},
			},
		})
		return e, nil
	}
}

func seqIDs() func() string {
	var n atomic.Int64
	return func() string {
		return "sess-" + strconv.FormatInt(n.Add(1), 10)
	}
}

func newTestServer(t *testing.T, cfg *Config, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	opts = append([]Option{WithSessionIDGenerator(seqIDs())}, opts...)
	srv := New(testFactory(t), cfg, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Sessions().Shutdown()
		ts.Close()
	})
	return srv, ts
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Status   string       `json:"status"`
		Sessions ManagerStats `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 0, body.Sessions.Active)
}

func TestRoutesEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/routes")
	require.NoError(t, err)
	defer resp.Body.Close()

	var routes []route.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&routes))
	require.Len(t, routes, 1)
	assert.Equal(t, "GET", routes[0].Method)
	assert.Equal(t, "/users", routes[0].Pattern)
	assert.Equal(t, "UserController", routes[0].Handler.Owner)
}

func postEvent(t *testing.T, url string, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestEventsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, raw := postEvent(t, ts.URL+"/api/events?render=1",
		`{"selector":"#save","event":"click","values":{"input[name=name]":"Ada","input[name=agree]":"on"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var body struct {
		Outcomes []struct {
			OK     bool   `json:"ok"`
			Stage  string `json:"stage"`
			Owner  string `json:"owner"`
			Member string `json:"member"`
			Result any    `json:"result"`
		} `json:"outcomes"`
		Document string `json:"document"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Len(t, body.Outcomes, 1)
	out := body.Outcomes[0]
	assert.True(t, out.OK)
	assert.Equal(t, "local_done", out.Stage)
	assert.Equal(t, "FormController", out.Owner)
	assert.Equal(t, "onClick", out.Member)
	assert.Equal(t, "Ada", out.Result)
	assert.Contains(t, body.Document, `value="Ada"`)
	assert.Contains(t, body.Document, `checked=""`)
}

func TestEventsEndpointErrors(t *testing.T) {
	_, ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"bad json", `{`, http.StatusBadRequest, "E341"},
		{"missing event", `{"selector":"#save"}`, http.StatusBadRequest, "E341"},
		{"unknown target", `{"selector":"#nope","event":"click"}`, http.StatusNotFound, "E340"},
		{"unknown value selector", `{"selector":"#save","event":"click","values":{"#nope":"x"}}`, http.StatusNotFound, "E340"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, raw := postEvent(t, ts.URL+"/api/events", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			var body errorResponse
			require.NoError(t, json.Unmarshal(raw, &body))
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "server_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	_, ts := newTestServer(t, &Config{Gatherer: reg})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	assert.Contains(t, buf.String(), "server_test_total 1")
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) ServerFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var f struct {
		ServerFrame
		Outcomes []struct {
			Result any    `json:"result"`
			Stage  string `json:"stage"`
		} `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal(msg, &f))
	out := f.ServerFrame
	out.Outcomes = nil
	for _, o := range f.Outcomes {
		out.Outcomes = append(out.Outcomes, OutcomeView{Outcome: &dispatch.Outcome{Result: o.Result, Stage: dispatch.Stage(o.Stage)}})
	}
	return out
}

func TestWebSocketSession(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	conn := dial(t, ts)

	hello := readFrame(t, conn)
	assert.Equal(t, FrameHello, hello.Type)
	assert.Equal(t, "sess-1", hello.Session)
	assert.Equal(t, 1, srv.Sessions().Count())
	require.NotNil(t, srv.Sessions().Get("sess-1"))

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping", "id": "p"}))
	pong := readFrame(t, conn)
	assert.Equal(t, FramePong, pong.Type)
	assert.Equal(t, "p", pong.ID)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "event", "id": "1", "selector": "#save", "event": "click",
		"values": map[string]string{"input[name=name]": "Ada"},
	}))
	out := readFrame(t, conn)
	assert.Equal(t, FrameOutcome, out.Type)
	assert.Equal(t, "1", out.ID)
	require.Len(t, out.Outcomes, 1)
	assert.Equal(t, "Ada", out.Outcomes[0].Result)
	assert.Equal(t, dispatch.StageLocalDone, out.Outcomes[0].Stage)

	// The session keeps its document between events.
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "event", "id": "2", "selector": "#save", "event": "click"}))
	out = readFrame(t, conn)
	assert.Equal(t, "2", out.ID)
	require.Len(t, out.Outcomes, 1)
	assert.Equal(t, "Ada", out.Outcomes[0].Result)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "event", "id": "3", "selector": "#nope", "event": "click"}))
	errFrame := readFrame(t, conn)
	assert.Equal(t, FrameError, errFrame.Type)
	assert.Equal(t, "3", errFrame.ID)
	assert.Equal(t, "E340", errFrame.Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	errFrame = readFrame(t, conn)
	assert.Equal(t, "E341", errFrame.Code)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "bogus", "id": "4"}))
	errFrame = readFrame(t, conn)
	assert.Equal(t, "E341", errFrame.Code)
	assert.Equal(t, "4", errFrame.ID)

	assert.EqualValues(t, 3, srv.Sessions().Get("sess-1").EventCount())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return srv.Sessions().Count() == 0 }, 5*time.Second, 10*time.Millisecond)
	stats := srv.Sessions().Stats()
	assert.EqualValues(t, 1, stats.TotalCreated)
	assert.EqualValues(t, 1, stats.TotalClosed)
	assert.Equal(t, 1, stats.Peak)
}

func TestSessionsAreIsolated(t *testing.T) {
	_, ts := newTestServer(t, nil)
	a := dial(t, ts)
	b := dial(t, ts)
	readFrame(t, a)
	readFrame(t, b)

	require.NoError(t, a.WriteJSON(map[string]any{
		"type": "event", "selector": "#save", "event": "click",
		"values": map[string]string{"input[name=name]": "Ada"},
	}))
	assert.Equal(t, "Ada", readFrame(t, a).Outcomes[0].Result)

	require.NoError(t, b.WriteJSON(map[string]any{"type": "event", "selector": "#save", "event": "click"}))
	assert.Empty(t, readFrame(t, b).Outcomes[0].Result)
}

func TestSessionLimit(t *testing.T) {
	_, ts := newTestServer(t, &Config{MaxSessions: 1})
	first := dial(t, ts)
	readFrame(t, first)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServeListener(t *testing.T) {
	srv := New(testFactory(t), nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ctx, ln) }()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, 5*time.Second, 10*time.Millisecond)
	resp, err := http.Get("http://" + srv.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestSameOriginCheck(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example.com/ws", nil)
	assert.True(t, SameOriginCheck(r))

	r.Header.Set("Origin", "http://example.com")
	assert.True(t, SameOriginCheck(r))

	r.Header.Set("Origin", "http://evil.example")
	assert.False(t, SameOriginCheck(r))
}

func TestConfigDefaults(t *testing.T) {
	cfg := (&Config{Session: &SessionConfig{MaxEventQueue: 3}}).withDefaults()
	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, 3, cfg.Session.MaxEventQueue)
	assert.Equal(t, DefaultSessionConfig().ReadTimeout, cfg.Session.ReadTimeout)
	assert.NotNil(t, cfg.CheckOrigin)
}
