// Package netutil classifies Telegram transport failures and retries the
// transient ones.
package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Error codes reported by Classify.
const (
	CodeFlood   = "flood"
	CodeTimeout = "timeout"
	CodeDial    = "dial"
	CodeDNS     = "dns"
	CodeTLS     = "tls"
	Code4xx     = "http_4xx"
	Code5xx     = "http_5xx"
	CodeUnknown = "unknown"
)

var retryable = map[string]bool{CodeFlood: true, CodeTimeout: true, CodeDial: true}

// ShouldRetry reports whether err is a dial failure, a timeout or Telegram
// flood control.
func ShouldRetry(err error) bool {
	return err != nil && retryable[Classify(err)]
}

// Classify maps err onto a short code for logs and retry decisions. A nil
// error yields "".
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return CodeFlood
	}
	if errors.Is(err, context.Canceled) {
		return CodeUnknown
	}
	var dns *net.DNSError
	if errors.As(err, &dns) && !dns.IsTimeout {
		return CodeDNS
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return CodeTimeout
	}
	var op *net.OpError
	if errors.As(err, &op) && op.Op == "dial" {
		return CodeDial
	}
	var alert tls.AlertError
	if errors.As(err, &alert) {
		return CodeTLS
	}
	switch status := StatusCode(err); {
	case status >= 500:
		return Code5xx
	case status >= 400:
		return Code4xx
	}
	return CodeUnknown
}

// StatusCode extracts the Bot API status from err, or 0.
func StatusCode(err error) int {
	var api *tele.Error
	if errors.As(err, &api) {
		return api.Code
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return http.StatusTooManyRequests
	}
	var group tele.GroupError
	if errors.As(err, &group) {
		return http.StatusBadRequest
	}
	// telebot renders other API failures as "... (NNN)".
	msg := err.Error()
	open, closing := strings.LastIndexByte(msg, '('), strings.LastIndexByte(msg, ')')
	if open < 0 || closing <= open+1 {
		return 0
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(msg[open+1 : closing]))
	if convErr != nil {
		return 0
	}
	return code
}

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Redact returns the error text with any bot token masked.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}

// Policy bounds a retry loop. Attempt n waits Backoff*n before the next try.
type Policy struct {
	Attempts int
	Backoff  time.Duration
}

// Retry calls fn until it succeeds, returns a permanent error, attempts run
// out or ctx ends. onRetry, when set, sees every scheduled retry.
func Retry(ctx context.Context, p Policy, fn func(attempt int) error, onRetry func(attempt int, delay time.Duration, err error)) error {
	attempts := max(p.Attempts, 1)
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if attempt >= attempts || !ShouldRetry(err) {
			return err
		}
		delay := p.Backoff * time.Duration(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		if delay <= 0 {
			continue
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(ctx.Err(), err)
		case <-t.C:
		}
	}
}
