// Package proxy rotates requests across the proxies listed in configuration.
package proxy

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Rotator hands out configured proxies in round-robin order.
type Rotator struct {
	mu      sync.Mutex
	proxies []*url.URL
	next    int
}

// NewRotator parses the configured proxy entries. Accepted forms are
// host:port, http://host:port, https://host:port and socks5://host:port,
// optionally with user:pass@ credentials.
func NewRotator(entries []string) (*Rotator, error) {
	r := &Rotator{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}
		u, err := parseProxy(entry)
		if err != nil {
			return nil, err
		}
		r.proxies = append(r.proxies, u)
	}
	return r, nil
}

func parseProxy(entry string) (*url.URL, error) {
	if !strings.Contains(entry, "://") {
		entry = "http://" + entry
	}
	u, err := url.Parse(entry)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", entry, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return nil, fmt.Errorf("invalid proxy %q: unsupported scheme %s", entry, u.Scheme)
	}
	if u.Port() == "" {
		return nil, fmt.Errorf("invalid proxy %q: missing port", entry)
	}
	return u, nil
}

// Len returns the number of configured proxies.
func (r *Rotator) Len() int {
	return len(r.proxies)
}

// Proxy is suitable for http.Transport.Proxy. With no proxies configured
// every request goes direct.
func (r *Rotator) Proxy(_ *http.Request) (*url.URL, error) {
	if len(r.proxies) == 0 {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.proxies[r.next]
	r.next = (r.next + 1) % len(r.proxies)
	return u, nil
}
