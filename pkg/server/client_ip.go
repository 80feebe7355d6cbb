package server

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// proxyMatcher reports whether a peer is a trusted reverse proxy.
type proxyMatcher struct {
	ips  map[string]struct{}
	nets []*net.IPNet
}

func newProxyMatcher(entries []string, logger *slog.Logger) *proxyMatcher {
	if len(entries) == 0 {
		return nil
	}
	m := &proxyMatcher{ips: make(map[string]struct{})}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		switch {
		case entry == "":
		case strings.Contains(entry, "/"):
			_, network, err := net.ParseCIDR(entry)
			if err != nil {
				logger.Warn("invalid trusted proxy CIDR", "entry", entry, "error", err)
				continue
			}
			m.nets = append(m.nets, network)
		default:
			ip := net.ParseIP(entry)
			if ip == nil {
				logger.Warn("invalid trusted proxy IP", "entry", entry)
				continue
			}
			m.ips[ip.String()] = struct{}{}
		}
	}
	return m
}

func (m *proxyMatcher) trusted(ip net.IP) bool {
	if m == nil || ip == nil {
		return false
	}
	if _, ok := m.ips[ip.String()]; ok {
		return true
	}
	for _, n := range m.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// clientIP returns the peer address, or the right-most untrusted forwarded
// address when the peer is a trusted proxy.
func clientIP(r *http.Request, proxies *proxyMatcher) string {
	peer := parseIP(r.RemoteAddr)
	if peer == nil {
		return ""
	}
	if !proxies.trusted(peer) {
		return peer.String()
	}

	hops := forwardedFor(r.Header.Get("Forwarded"))
	if len(hops) == 0 {
		for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
			if ip := parseIP(part); ip != nil {
				hops = append(hops, ip)
			}
		}
	}
	for i := len(hops) - 1; i >= 0; i-- {
		if !proxies.trusted(hops[i]) {
			return hops[i].String()
		}
	}
	if len(hops) > 0 {
		return hops[0].String()
	}
	return peer.String()
}

// forwardedFor extracts the for= parameters of an RFC 7239 header.
func forwardedFor(header string) []net.IP {
	var out []net.IP
	for _, elem := range strings.Split(header, ",") {
		for _, pair := range strings.Split(elem, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || !strings.EqualFold(k, "for") {
				continue
			}
			if ip := parseIP(v); ip != nil {
				out = append(out, ip)
			}
		}
	}
	return out
}

// parseIP accepts bare addresses, host:port, [v6]:port and quoted forms.
func parseIP(s string) net.IP {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	if s == "" || strings.EqualFold(s, "unknown") {
		return nil
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.Trim(s, "[]")
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}
	return net.ParseIP(s)
}
