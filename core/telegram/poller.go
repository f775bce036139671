package telegram

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/crmbot/core/config"
)

const (
	defaultLongPollTimeout = 10 * time.Second
	pollErrorPause         = 2 * time.Second
)

var allowedUpdates = []string{"message", "callback_query"}

// WebhookOptions declares webhook listener settings.
type WebhookOptions struct {
	Listen string
	Port   int
	URL    string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions

	// OnConflict is called once when another consumer holds getUpdates;
	// polling stops afterwards.
	OnConflict func(error)
	// OnError receives every other polling failure.
	OnError func(error)
}

// BuildPoller returns a Telebot poller based on provided options.
func BuildPoller(opts PollerOptions) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(opts.RunMode), coreconfig.RunModeWebhook) {
		return &tele.Webhook{
			Listen:         fmt.Sprintf("%s:%d", opts.Webhook.Listen, opts.Webhook.Port),
			Endpoint:       &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
			AllowedUpdates: allowedUpdates,
		}
	}

	timeout := defaultLongPollTimeout
	if opts.LongPollTimeoutSeconds > 0 {
		timeout = time.Duration(opts.LongPollTimeoutSeconds) * time.Second
	}
	return &ExclusivePoller{Timeout: timeout, onConflict: opts.OnConflict, onError: opts.OnError}
}

// ExclusivePoller long-polls getUpdates and stops for good on a 409
// conflict, which tele.LongPoller only reports in verbose mode.
type ExclusivePoller struct {
	Timeout time.Duration

	offset     int
	onConflict func(error)
	onError    func(error)
}

// Poll implements tele.Poller.
func (p *ExclusivePoller) Poll(b *tele.Bot, dest chan tele.Update, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		data, err := b.Raw("getUpdates", map[string]any{
			"offset":          p.offset,
			"timeout":         int(p.Timeout / time.Second),
			"allowed_updates": allowedUpdates,
		})
		if err == nil {
			var resp struct {
				Result []tele.Update `json:"result"`
			}
			if err = json.Unmarshal(data, &resp); err == nil {
				for _, u := range resp.Result {
					p.offset = u.ID + 1
					select {
					case dest <- u:
					case <-stop:
						return
					}
				}
				continue
			}
		}

		if IsConflict(err) {
			if p.onConflict != nil {
				p.onConflict(err)
			}
			return
		}
		if p.onError != nil {
			p.onError(err)
		}
		select {
		case <-stop:
			return
		case <-time.After(pollErrorPause):
		}
	}
}
