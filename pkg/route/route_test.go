package route

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var users = HandlerRef{Owner: "UserController", Member: "index"}

func TestParseHandlerRef(t *testing.T) {
	ref, err := ParseHandlerRef("UserController@save")
	require.NoError(t, err)
	assert.Equal(t, HandlerRef{Owner: "UserController", Member: "save"}, ref)
	assert.Equal(t, "UserController@save", ref.String())

	for _, bad := range []string{"", "UserController", "@save", "UserController@", "a@b@c"} {
		_, err := ParseHandlerRef(bad)
		assert.ErrorIs(t, err, ErrInvalidHandlerRef, bad)
	}
}

func TestFindExactMatchOnly(t *testing.T) {
	r := New()
	r.Get("/users", users, Options{})

	_, ok := r.Find("GET", "/users/1")
	assert.False(t, ok)

	e, ok := r.Find("get", "/users")
	require.True(t, ok)
	assert.Equal(t, "GET", e.Method)

	_, ok = r.Find("POST", "/users")
	assert.False(t, ok)
}

func TestRegisterNoDedupFirstWins(t *testing.T) {
	r := New()
	first := HandlerRef{Owner: "A", Member: "one"}
	r.Post("/save", first, Options{})
	r.Post("/save", HandlerRef{Owner: "B", Member: "two"}, Options{})

	assert.Len(t, r.All()["POST"], 2)
	e, ok := r.Find("POST", "/save")
	require.True(t, ok)
	assert.Equal(t, first, e.Handler)
}

func TestFindHandlerScanOrder(t *testing.T) {
	r := New()
	ref := HandlerRef{Owner: "C", Member: "m"}
	r.Patch("/p", ref, Options{})
	r.Put("/u", ref, Options{})

	e, ok := r.FindHandler("C", "m")
	require.True(t, ok)
	assert.Equal(t, "PUT", e.Method)

	_, ok = r.FindHandler("C", "other")
	assert.False(t, ok)
}

func TestGroupPrefixes(t *testing.T) {
	r := New()
	r.Group("/api", func(r *Registry) {
		r.Get("/users", users, Options{})
		r.Group("/v2", func(r *Registry) {
			r.Get("/users", users, Options{})
		})
	})
	r.Get("/home", users, Options{})

	var patterns []string
	for _, e := range r.Routes() {
		patterns = append(patterns, e.Pattern)
	}
	assert.Equal(t, []string{"/api/users", "/api/v2/users", "/home"}, patterns)
	assert.Equal(t, 3, r.Len())

	r.Clear()
	assert.Zero(t, r.Len())
}

func TestOptionsMerge(t *testing.T) {
	a := Options{Headers: map[string]string{"X-A": "1", "X-B": "1"}}
	b := Options{Headers: map[string]string{"X-B": "2"}, Query: map[string]string{"q": "v"}}

	got := a.Merge(b)
	assert.Equal(t, map[string]string{"X-A": "1", "X-B": "2"}, got.Headers)
	assert.Equal(t, map[string]string{"q": "v"}, got.Query)
	assert.Equal(t, Options{}, Options{}.Merge(Options{}))
}

func TestCallPostJSON(t *testing.T) {
	var gotBody map[string]any
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/save", r.URL.Path)
		gotHeaders = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"id":7}`))
	}))
	defer srv.Close()

	r := New(WithBasePath(srv.URL))
	resp, err := r.Call(context.Background(), "post", "/save", map[string]any{"name": "a"},
		Options{Headers: map[string]string{"X-Token": "t"}})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"name": "a"}, gotBody)
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "application/json", gotHeaders.Get("Accept"))
	assert.Equal(t, "t", gotHeaders.Get("X-Token"))

	assert.True(t, resp.Success)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "OK", resp.StatusText)
	assert.Equal(t, srv.URL+"/save", resp.URL)
	assert.Equal(t, map[string]any{"id": float64(7)}, resp.Data)
}

func TestCallGetQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("plain"))
	}))
	defer srv.Close()

	r := New()
	resp, err := r.Call(context.Background(), "GET", srv.URL+"/search",
		map[string]any{"q": "go", "page": 2}, Options{Query: map[string]string{"lang": "en"}})
	require.NoError(t, err)
	assert.Equal(t, "page=2&q=go&lang=en", gotQuery)
	assert.Equal(t, "plain", resp.Data)
}

func TestCallBadJSONFallsBackToText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{broken"))
	}))
	defer srv.Close()

	resp, err := New().Call(context.Background(), "GET", srv.URL, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "{broken", resp.Data)
}

func TestCallNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := New().Call(context.Background(), "POST", srv.URL, map[string]any{}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, ErrHTTPStatus)
	assert.Equal(t, "failed to send request: HTTP error! status: 422 Unprocessable Entity", err.Error())

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 422, se.Status)
}

func TestCallTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := New().Call(context.Background(), "GET", addr, nil, Options{})
	assert.ErrorIs(t, err, ErrTransport)
}

func TestResolveURL(t *testing.T) {
	r := New(WithBasePath("https://api.test/"))
	assert.Equal(t, "https://api.test/save", r.ResolveURL("/save"))
	assert.Equal(t, "https://api.test/save", r.ResolveURL("save"))
	assert.Equal(t, "http://other/x", r.ResolveURL("http://other/x"))
	assert.Equal(t, "/save", New().ResolveURL("/save"))
}

type fakeTransport struct {
	calls   int
	method  string
	url     string
	body    []byte
	headers http.Header
	resp    *RawResponse
}

func (f *fakeTransport) RoundTrip(_ context.Context, method, url string, body []byte, headers http.Header) (*RawResponse, error) {
	f.calls++
	f.method, f.url, f.body, f.headers = method, url, body, headers
	return f.resp, nil
}

type presendOwner struct {
	Members
}

func (presendOwner) BeforeSend(data any, opts Options) (any, Options) {
	m := data.(map[string]any)
	m["extra"] = "1"
	return m, opts.Merge(Options{Headers: map[string]string{"X-Before": "yes"}})
}

func TestDispatch(t *testing.T) {
	ft := &fakeTransport{resp: &RawResponse{
		Status: 201, StatusText: "Created",
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   []byte(`{"ok":true}`),
	}}
	r := New(WithTransport(ft), WithBasePath("https://api.test"))
	r.Post("/users", HandlerRef{Owner: "Users", Member: "store"}, Options{Headers: map[string]string{"X-Route": "r"}})

	var seen *Response
	r.RegisterOwner("Users", func() (Owner, error) {
		return presendOwner{Members{"store": func(_ context.Context, resp *Response) (any, error) {
			seen = resp
			return "stored", nil
		}}}, nil
	})

	out, err := r.Dispatch(context.Background(), "post", "/users", map[string]any{"name": "a"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "stored", out)
	assert.Equal(t, 1, ft.calls)
	assert.Equal(t, "POST", ft.method)
	assert.Equal(t, "https://api.test/users", ft.url)
	assert.JSONEq(t, `{"name":"a","extra":"1"}`, string(ft.body))
	assert.Equal(t, "r", ft.headers.Get("X-Route"))
	assert.Equal(t, "yes", ft.headers.Get("X-Before"))
	require.NotNil(t, seen)
	assert.Equal(t, map[string]any{"ok": true}, seen.Data)
	assert.Equal(t, "https://api.test/users", seen.URL)
}

func TestDispatchErrors(t *testing.T) {
	r := New(WithTransport(&fakeTransport{resp: &RawResponse{Status: 200}}))

	_, err := r.Dispatch(context.Background(), "GET", "/missing", nil, Options{})
	assert.ErrorIs(t, err, ErrRouteNotFound)
	assert.Equal(t, "route not found for GET /missing", err.Error())

	r.Get("/x", HandlerRef{Owner: "Nobody", Member: "m"}, Options{})
	_, err = r.Dispatch(context.Background(), "GET", "/x", nil, Options{})
	assert.ErrorIs(t, err, ErrOwnerNotRegistered)

	r.RegisterOwner("Nobody", func() (Owner, error) { return Members{}, nil })
	_, err = r.Dispatch(context.Background(), "GET", "/x", nil, Options{})
	assert.ErrorIs(t, err, ErrMemberNotFound)
}
