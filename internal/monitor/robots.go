package monitor

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsCache fetches and caches per-host robots.txt groups for the
// monitor's user agent. A host whose robots.txt cannot be fetched or
// parsed is treated as allow-all, matching crawler convention.
type robotsCache struct {
	userAgent string
	client    *http.Client

	mu     sync.Mutex
	groups map[string]*robotstxt.Group
}

func newRobotsCache(userAgent string, timeout time.Duration) *robotsCache {
	return &robotsCache{
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		groups:    make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether the user agent may fetch the URL
func (c *robotsCache) Allowed(ctx context.Context, pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return true
	}

	c.mu.Lock()
	group, cached := c.groups[u.Host]
	c.mu.Unlock()

	if !cached {
		group = c.fetchGroup(ctx, u)
		c.mu.Lock()
		c.groups[u.Host] = group
		c.mu.Unlock()
	}
	if group == nil {
		return true
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (c *robotsCache) fetchGroup(ctx context.Context, u *url.URL) *robotstxt.Group {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data.FindGroup(c.userAgent)
}
