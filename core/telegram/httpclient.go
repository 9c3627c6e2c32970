package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/taxibot/core/telegram/netutil"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultRetryAttempts     = 3
	defaultRetryBackoff      = 2 * time.Second

	// getUpdates holds the response open for the poll timeout, so header and
	// total deadlines are measured on top of it.
	responseSlack = 10 * time.Second
	clientSlack   = 20 * time.Second
)

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls made by
// poll loops whose getUpdates requests block for up to pollTimeout.
// The client is shared by every front-end.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	if pollTimeout <= 0 {
		pollTimeout = defaultLongPollTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ResponseHeaderTimeout: pollTimeout + responseSlack,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout: pollTimeout + clientSlack,
		Transport: &retryTransport{
			base:     transport,
			attempts: defaultRetryAttempts + 1,
			backoff:  netutil.Backoff{Step: defaultRetryBackoff, Max: 3 * defaultRetryBackoff},
		},
	}
}

// retryTransport repeats requests that failed before reaching the API, as
// long as the body can be replayed.
type retryTransport struct {
	base     http.RoundTripper
	attempts int
	backoff  netutil.Backoff
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for n := 1; err != nil && n < t.attempts && netutil.ShouldRetry(err); n++ {
		if req.Body != nil && req.GetBody == nil {
			break
		}
		if werr := t.backoff.Wait(req.Context(), n); werr != nil {
			return nil, werr
		}
		next := req.Clone(req.Context())
		if req.GetBody != nil {
			body, berr := req.GetBody()
			if berr != nil {
				return nil, berr
			}
			next.Body = body
		}
		resp, err = t.base.RoundTrip(next)
	}
	return resp, err
}
