package server

import (
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/eventwire/pkg/dom"
)

func TestClientIP(t *testing.T) {
	proxies := newProxyMatcher([]string{"10.0.0.0/8", "192.0.2.1", "not-an-ip"}, slog.Default())

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		proxies *proxyMatcher
		want    string
	}{
		{"no proxies", "203.0.113.5:1234", map[string]string{"X-Forwarded-For": "1.1.1.1"}, nil, "203.0.113.5"},
		{"untrusted peer", "203.0.113.5:1234", map[string]string{"X-Forwarded-For": "1.1.1.1"}, proxies, "203.0.113.5"},
		{"xff through trusted", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.2"}, proxies, "203.0.113.9"},
		{"forwarded v6", "192.0.2.1:80", map[string]string{"Forwarded": `for="[2001:db8::1]:4711";proto=https`}, proxies, "2001:db8::1"},
		{"all hops trusted", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "10.0.0.3, 10.0.0.2"}, proxies, "10.0.0.3"},
		{"no forwarded headers", "10.0.0.1:80", nil, proxies, "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(r, tt.proxies))
		})
	}
}

func TestApplyValues(t *testing.T) {
	doc := dom.MustParse(formPage)

	require.NoError(t, ApplyValues(doc, map[string]string{
		"input[name=name]":  "Grace",
		"input[name=agree]": "true",
	}))
	assert.Equal(t, "Grace", doc.Query("input[name=name]").Value())
	assert.True(t, doc.Query("input[name=agree]").Checked())

	require.NoError(t, ApplyValues(doc, map[string]string{"input[name=agree]": "false"}))
	assert.False(t, doc.Query("input[name=agree]").Checked())

	err := ApplyValues(doc, map[string]string{"#missing": "x"})
	require.Error(t, err)
}
