package openai

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var defaultPorts = map[string]string{"http": "80", "https": "443"}

// CheckReachable 只做一次 TCP 拨号，用来在真正调用模型前区分网络问题与鉴权问题。
func CheckReachable(ctx context.Context, baseURL string) error {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return nil
	}
	parsed, err := url.Parse(normalizeBaseURL(raw))
	if err != nil {
		return fmt.Errorf("invalid base_url %q: %w", baseURL, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	host := parsed.Hostname()
	if scheme == "" || host == "" {
		return fmt.Errorf("invalid base_url %q: scheme=%q host=%q", baseURL, parsed.Scheme, parsed.Host)
	}
	port := parsed.Port()
	if port == "" {
		var ok bool
		if port, ok = defaultPorts[scheme]; !ok {
			return fmt.Errorf("unsupported base_url scheme %q", parsed.Scheme)
		}
	}
	addr := net.JoinHostPort(host, port)
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("cannot connect to %s: %w", addr, err)
	}
	return conn.Close()
}
