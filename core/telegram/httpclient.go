package telegram

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/dialogbot/core/logger"
	"github.com/m3rciful/dialogbot/core/telegram/netutil"
)

// Bot API client limits. The poll timeout is added on top of the header and
// overall deadlines so getUpdates is not cut short.
const (
	dialTimeout     = 5 * time.Second
	keepAlive       = 30 * time.Second
	tlsTimeout      = 5 * time.Second
	idleTimeout     = 30 * time.Second
	headerTimeout   = 5 * time.Second
	requestTimeout  = 30 * time.Second
	transportTries  = 4
	transportPause  = 2 * time.Second
	maxIdlePerHost  = 10
	maxIdleOverall  = 100
	continueTimeout = time.Second
)

// BuildHTTPClient returns the client telebot uses for Bot API calls. Dial
// failures and timeouts are retried when the request body can be replayed.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	pollTimeout = max(pollTimeout, 0)
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxIdleOverall,
		MaxIdleConnsPerHost:   maxIdlePerHost,
		IdleConnTimeout:       idleTimeout,
		TLSHandshakeTimeout:   tlsTimeout,
		ResponseHeaderTimeout: headerTimeout + pollTimeout,
		ExpectContinueTimeout: continueTimeout,
	}
	return &http.Client{
		Timeout: requestTimeout + pollTimeout,
		Transport: &replayTransport{
			next:   base,
			policy: netutil.Policy{Attempts: transportTries, Backoff: transportPause},
		},
	}
}

var errNotReplayable = errors.New("telegram: request body cannot be replayed")

type replayTransport struct {
	next   http.RoundTripper
	policy netutil.Policy
}

func (t *replayTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	var resp *http.Response
	err := netutil.Retry(req.Context(), t.policy, func(attempt int) error {
		r, err := replay(req, attempt)
		if err != nil {
			return err
		}
		resp, err = next.RoundTrip(r)
		return err
	}, func(attempt int, delay time.Duration, err error) {
		logger.Debug(req.Context(), "tg.http", "http.retry",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("err_code", netutil.Classify(err)),
		)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// replay returns req for the first attempt and a clone with a fresh body
// after that.
func replay(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 1 {
		return req, nil
	}
	clone := req.Clone(req.Context())
	switch {
	case req.GetBody != nil:
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	case req.Body != nil && req.Body != http.NoBody:
		return nil, errNotReplayable
	}
	return clone, nil
}
