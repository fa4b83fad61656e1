package fetcher

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
)

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// Rotator hands out user agents and proxies round-robin.
type Rotator struct {
	mu         sync.Mutex
	userAgents []string
	proxies    []*url.URL
	agentIndex int
	proxyIndex int
}

// NewRotator falls back to a small set of desktop browser agents when none
// are given. Proxy entries that do not parse are reported as an error.
func NewRotator(userAgents, proxies []string) (*Rotator, error) {
	if len(userAgents) == 0 {
		userAgents = defaultUserAgents
	}
	r := &Rotator{userAgents: userAgents}
	for _, p := range proxies {
		u, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", p, err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("invalid proxy %q: missing host", p)
		}
		r.proxies = append(r.proxies, u)
	}
	return r, nil
}

// UserAgent returns the next user agent.
func (r *Rotator) UserAgent() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ua := r.userAgents[r.agentIndex]
	r.agentIndex = (r.agentIndex + 1) % len(r.userAgents)
	return ua
}

// Proxy matches http.Transport.Proxy. With no proxies configured it defers
// to the environment.
func (r *Rotator) Proxy(req *http.Request) (*url.URL, error) {
	if len(r.proxies) == 0 {
		return http.ProxyFromEnvironment(req)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.proxies[r.proxyIndex]
	r.proxyIndex = (r.proxyIndex + 1) % len(r.proxies)
	return p, nil
}
