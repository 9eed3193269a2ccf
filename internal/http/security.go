package http

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
)

// securityMetrics counts security-relevant events across the server's
// lifetime.
type securityMetrics struct {
	rateLimitHits      int64
	invalidIPAttempts  int64
	suspiciousRequests int64
}

// trustedProxyNets are the only sources whose forwarding headers are
// believed. Anything else gets its direct remote address.
var trustedProxyNets = []*net.IPNet{
	mustCIDR("127.0.0.0/8"),
	mustCIDR("10.0.0.0/8"),
	mustCIDR("172.16.0.0/12"),
	mustCIDR("192.168.0.0/16"),
}

func mustCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("bad trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

func fromTrustedProxy(ip net.IP) bool {
	for _, network := range trustedProxyNets {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// extractClientIP resolves the client address used for rate limiting.
// X-Forwarded-For and X-Real-IP are honored only when the direct peer is a
// trusted proxy, so a client cannot spoof its way past the limiter.
func extractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil {
		return directIP
	}

	if fromTrustedProxy(parsed) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if net.ParseIP(first) != nil {
				return first
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if net.ParseIP(xri) != nil {
				return xri
			}
		}
	}

	return directIP
}

// probePatterns are path/query fragments that never occur in legitimate
// calls to this API and usually mean a vulnerability scanner.
var probePatterns = []string{
	"../", "..\\", ".env", ".git", ".ssh",
	"wp-admin", "phpmyadmin", "admin.php", "config.php",
	"eval(", "javascript:", "<script", "union select",
	"etc/passwd", "cmd.exe",
}

// scannerAgents are User-Agent substrings of common scanning tools. Plain
// curl/wget are deliberately absent: this is a JSON API and script clients
// are expected.
var scannerAgents = []string{
	"sqlmap", "nmap", "nikto", "gobuster", "dirb", "scanner",
}

// detectSuspiciousRequest flags requests that look like probing rather than
// API usage. Flagged requests are logged, never blocked.
func detectSuspiciousRequest(r *http.Request, metrics *securityMetrics) bool {
	suspicious := false

	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	for _, pattern := range probePatterns {
		if strings.Contains(path, pattern) || strings.Contains(query, pattern) {
			suspicious = true
			break
		}
	}

	if !suspicious {
		agent := strings.ToLower(r.Header.Get("User-Agent"))
		for _, s := range scannerAgents {
			if strings.Contains(agent, s) {
				suspicious = true
				break
			}
		}
	}

	switch r.Method {
	case "TRACE", "TRACK", "CONNECT":
		suspicious = true
	}

	// No legitimate request to this API carries a URL anywhere near this
	// long.
	if len(r.URL.String()) > 2048 {
		suspicious = true
	}

	if xff := r.Header.Get("X-Forwarded-For"); strings.Count(xff, ",") > 5 {
		suspicious = true
	}

	if suspicious && metrics != nil {
		atomic.AddInt64(&metrics.suspiciousRequests, 1)
	}

	return suspicious
}
