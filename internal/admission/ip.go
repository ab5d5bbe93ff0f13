package admission

import (
	"net"
	"net/http"
	"strings"
)

// shorthandCIDRs expands the trusted-proxy shorthand tags the spec allows
// alongside explicit CIDRs.
var shorthandCIDRs = map[string][]string{
	"loopback": {"127.0.0.0/8", "::1/128"},
	"private":  {"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7"},
	"docker":   {"172.17.0.0/16"},
}

// TrustedProxies parses a comma-separated list of CIDRs and/or shorthand
// tags into a usable matcher.
type TrustedProxies struct {
	nets []*net.IPNet
}

// ParseTrustedProxies builds a TrustedProxies matcher from configuration.
func ParseTrustedProxies(raw string) (TrustedProxies, error) {
	var tp TrustedProxies
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		cidrs, ok := shorthandCIDRs[tok]
		if !ok {
			cidrs = []string{tok}
		}
		for _, c := range cidrs {
			_, n, err := net.ParseCIDR(c)
			if err != nil {
				return TrustedProxies{}, err
			}
			tp.nets = append(tp.nets, n)
		}
	}
	return tp, nil
}

// Contains reports whether ip falls within any trusted CIDR.
func (tp TrustedProxies) Contains(ip net.IP) bool {
	for _, n := range tp.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP extracts the normalized client IP from an incoming request: if
// the direct peer is trusted, the leftmost X-Forwarded-For entry (falling
// back to X-Real-IP) is used; otherwise the peer address is used.
// IPv4-mapped IPv6 addresses are normalized to their IPv4 form.
func ClientIP(r *http.Request, trusted TrustedProxies) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer := net.ParseIP(host)

	if peer != nil && trusted.Contains(peer) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if ip := net.ParseIP(first); ip != nil {
				return normalize(ip)
			}
		}
		if real := r.Header.Get("X-Real-IP"); real != "" {
			if ip := net.ParseIP(strings.TrimSpace(real)); ip != nil {
				return normalize(ip)
			}
		}
	}

	if peer != nil {
		return normalize(peer)
	}
	return host
}

func normalize(ip net.IP) string {
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return ip.String()
}
