package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultUserAgent    = "Mozilla/5.0 (compatible; CompIQMonitor/1.0)"
	maxRedirects        = 10
)

// FetchErrorKind classifies fetch failures for per-source error state
type FetchErrorKind string

const (
	FetchErrTimeout          FetchErrorKind = "timeout"
	FetchErrTooManyRedirects FetchErrorKind = "too_many_redirects"
	FetchErrHTTPStatus       FetchErrorKind = "http_status"
	FetchErrBlocked          FetchErrorKind = "blocked"
	FetchErrNetwork          FetchErrorKind = "network"
)

var errTooManyRedirects = errors.New("stopped after 10 redirects")

// FetchError describes a failed page retrieval. Its message is what
// operators see in a source's last_error.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchErrTimeout:
		return fmt.Sprintf("timeout fetching %s", e.URL)
	case FetchErrTooManyRedirects:
		return fmt.Sprintf("too many redirects fetching %s", e.URL)
	case FetchErrBlocked:
		return fmt.Sprintf("robots.txt disallows fetching %s", e.URL)
	case FetchErrHTTPStatus:
		return fmt.Sprintf("unexpected status %d fetching %s", e.StatusCode, e.URL)
	default:
		return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves competitor pages over HTTP
type Fetcher struct {
	client    *http.Client
	userAgent string
	robots    *robotsCache // nil when the robots gate is disabled
}

// NewFetcher creates a fetcher with the given timeout and user agent.
// When respectRobots is set, URLs disallowed by the host's robots.txt
// fail with a blocked error instead of being fetched.
func NewFetcher(timeout time.Duration, userAgent string, respectRobots bool) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	f := &Fetcher{
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		},
	}
	if respectRobots {
		f.robots = newRobotsCache(userAgent, timeout)
	}
	return f
}

// Fetch retrieves one URL and returns the raw body
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if f.robots != nil && !f.robots.Allowed(ctx, pageURL) {
		return "", &FetchError{Kind: FetchErrBlocked, URL: pageURL}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &FetchError{Kind: FetchErrNetwork, URL: pageURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", classifyTransportError(pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &FetchError{Kind: FetchErrHTTPStatus, URL: pageURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyTransportError(pageURL, err)
	}
	return string(body), nil
}

func classifyTransportError(pageURL string, err error) *FetchError {
	if errors.Is(err, errTooManyRedirects) {
		return &FetchError{Kind: FetchErrTooManyRedirects, URL: pageURL, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: FetchErrTimeout, URL: pageURL, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Kind: FetchErrTimeout, URL: pageURL, Err: err}
	}
	return &FetchError{Kind: FetchErrNetwork, URL: pageURL, Err: err}
}
