// Package connectivity answers "can we reach the cloud backend right
// now" with a cached HTTP probe.
package connectivity

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	probeTimeout = 3 * time.Second
	cacheTTL     = 15 * time.Second
)

// Probe checks reachability of a URL with a HEAD request. Results are
// cached briefly so routing decisions do not hammer the network.
type Probe struct {
	url    string
	client *http.Client

	mu      sync.Mutex
	online  bool
	checked time.Time
}

// New creates a Probe against the given URL.
func New(url string) *Probe {
	return &Probe{
		url:    url,
		client: &http.Client{Timeout: probeTimeout},
	}
}

// Online reports whether the probe URL answered recently.
func (p *Probe) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.checked) < cacheTTL {
		return p.online
	}
	p.online = p.check()
	p.checked = time.Now()
	return p.online
}

func (p *Probe) check() bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < http.StatusInternalServerError
}
