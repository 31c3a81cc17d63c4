package telegram

import (
	"net"
	"strconv"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/dialogbot/core/config"

	tele "gopkg.in/telebot.v4"
)

// DefaultLongPollTimeout is used when no positive timeout is configured.
const DefaultLongPollTimeout = 10 * time.Second

// WebhookOptions is where the webhook listens and what Telegram calls.
type WebhookOptions struct {
	Listen string
	Port   int
	URL    string
}

// PollerOptions selects and tunes the update source.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
}

// BuildPoller returns a webhook listener for run mode "webhook" and a long
// poller otherwise.
func BuildPoller(opts PollerOptions) tele.Poller {
	if !strings.EqualFold(strings.TrimSpace(opts.RunMode), coreconfig.RunModeWebhook) {
		return &tele.LongPoller{Timeout: LongPollTimeout(opts.LongPollTimeoutSeconds)}
	}
	w := opts.Webhook
	return &tele.Webhook{
		Listen:   net.JoinHostPort(w.Listen, strconv.Itoa(w.Port)),
		Endpoint: &tele.WebhookEndpoint{PublicURL: w.URL},
	}
}

// LongPollTimeout turns configured seconds into a poll timeout.
func LongPollTimeout(seconds int) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return DefaultLongPollTimeout
}
