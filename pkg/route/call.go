package route

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// RawResponse is what a Transport returns.
type RawResponse struct {
	Status     int
	StatusText string
	Header     http.Header
	Body       []byte
	URL        string
}

// Transport performs one outbound request. It does not retry and enforces
// no timeout beyond what ctx carries.
type Transport interface {
	RoundTrip(ctx context.Context, method, url string, body []byte, headers http.Header) (*RawResponse, error)
}

// HTTPTransport is a Transport over an *http.Client.
type HTTPTransport struct {
	// Client is the HTTP client. Nil uses http.DefaultClient.
	Client *http.Client
}

// RoundTrip implements Transport.
func (t *HTTPTransport) RoundTrip(ctx context.Context, method, target string, body []byte, headers http.Header) (*RawResponse, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, err
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &RawResponse{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Header:     resp.Header,
		Body:       data,
		URL:        finalURL,
	}, nil
}

// statusText extracts the reason phrase from resp.Status ("404 Not Found").
func statusText(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	if text := strings.TrimSpace(strings.TrimPrefix(resp.Status, code)); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

// Call performs one outbound request. Relative URLs are resolved against
// the base path. GET and HEAD encode data as a query string; other methods
// send it as a JSON body. Non-2xx responses fail with a *StatusError.
// Every failure wraps ErrTransport.
func (r *Registry) Call(ctx context.Context, method, target string, data any, opts Options) (*Response, error) {
	method = strings.ToUpper(method)
	target = r.ResolveURL(target)

	var body []byte
	if method == http.MethodGet || method == http.MethodHead {
		q, err := encodeQuery(data)
		if err != nil {
			return nil, r.callError(method, target, err)
		}
		target = appendQuery(target, q)
	} else if data != nil {
		b, err := encodeBody(data)
		if err != nil {
			return nil, r.callError(method, target, err)
		}
		body = b
	}
	if len(opts.Query) > 0 {
		q := url.Values{}
		for k, v := range opts.Query {
			q.Set(k, v)
		}
		target = appendQuery(target, q)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")
	for k, v := range opts.Headers {
		headers.Set(k, v)
	}

	raw, err := r.transport.RoundTrip(ctx, method, target, body, headers)
	if err != nil {
		return nil, r.callError(method, target, err)
	}

	resp := &Response{
		Status:     raw.Status,
		StatusText: raw.StatusText,
		Headers:    raw.Header,
		Success:    raw.Status >= 200 && raw.Status < 300,
		URL:        raw.URL,
	}
	if resp.URL == "" {
		resp.URL = target
	}
	if !resp.Success {
		resp.Data = string(raw.Body)
		return nil, r.callError(method, target, &StatusError{
			Status:     raw.Status,
			StatusText: raw.StatusText,
			Response:   resp,
		})
	}
	resp.Data = decodeBody(raw)
	return resp, nil
}

// ResolveURL prefixes relative URLs with the base path.
func (r *Registry) ResolveURL(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	if r.basePath == "" {
		return target
	}
	base := strings.TrimSuffix(r.basePath, "/")
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return base + target
}

func (r *Registry) callError(method, target string, err error) error {
	r.logger.Error("failed to send request",
		"method", method,
		"url", target,
		"error", err,
	)
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

func encodeBody(data any) ([]byte, error) {
	switch v := data.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return json.Marshal(data)
}

// encodeQuery flattens data into query values. Scalars are formatted with
// %v; nested values are JSON encoded.
func encodeQuery(data any) (url.Values, error) {
	q := url.Values{}
	if data == nil {
		return q, nil
	}
	if s, ok := data.(map[string]string); ok {
		for k, v := range s {
			q.Set(k, v)
		}
		return q, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("query data must be an object: %w", err)
	}
	for k, v := range fields {
		switch tv := v.(type) {
		case nil:
			q.Set(k, "")
		case string:
			q.Set(k, tv)
		case map[string]any, []any:
			b, _ := json.Marshal(tv)
			q.Set(k, string(b))
		default:
			q.Set(k, fmt.Sprint(tv))
		}
	}
	return q, nil
}

func appendQuery(target string, q url.Values) string {
	if len(q) == 0 {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + q.Encode()
}

// decodeBody parses JSON bodies and falls back to text.
func decodeBody(raw *RawResponse) any {
	if strings.Contains(raw.Header.Get("Content-Type"), "application/json") {
		var v any
		if err := json.Unmarshal(raw.Body, &v); err == nil {
			return v
		}
	}
	return string(raw.Body)
}
