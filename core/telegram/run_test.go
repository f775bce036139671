package telegram

import (
	"errors"
	"fmt"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/crmbot/core/config"
	tgsender "github.com/m3rciful/crmbot/core/telegram/sender"
)

func TestIsConflict(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&tele.Error{Code: 409, Description: "Conflict"}, true},
		{fmt.Errorf("poll: %w", &tele.Error{Code: 409}), true},
		{errors.New("telegram: Conflict: terminated by other getUpdates request (409)"), true},
		{&tele.Error{Code: 502, Description: "Bad Gateway"}, false},
	}
	for _, tt := range tests {
		if got := IsConflict(tt.err); got != tt.want {
			t.Errorf("IsConflict(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestBuildPoller(t *testing.T) {
	p := BuildPoller(PollerOptions{RunMode: "longpoll", LongPollTimeoutSeconds: 25})
	lp, ok := p.(*ExclusivePoller)
	if !ok || lp.Timeout != 25*time.Second {
		t.Fatalf("poller = %#v", p)
	}
	wh, ok := BuildPoller(PollerOptions{
		RunMode: "WEBHOOK",
		Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://example.org/hook"},
	}).(*tele.Webhook)
	if !ok || wh.Listen != "0.0.0.0:8443" || wh.Endpoint.PublicURL != "https://example.org/hook" {
		t.Fatalf("webhook = %#v", wh)
	}
}

func TestDispatcherOptionsFromPushConfig(t *testing.T) {
	got := dispatcherOptions(coreconfig.PushConfig{PerSecond: 25, Burst: 5, Workers: 3, Retries: 4}, tgsender.Options{})
	if got.Workers != 3 || got.MaxRetries != 4 || got.Limiter == nil || got.Limiter.Burst() != 5 {
		t.Fatalf("options = %+v", got)
	}
	kept := dispatcherOptions(coreconfig.PushConfig{Workers: 3}, tgsender.Options{Workers: 1})
	if kept.Workers != 1 || kept.Limiter != nil {
		t.Fatalf("explicit options overridden: %+v", kept)
	}
}

func TestBuildHTTPClientOutlivesLongPoll(t *testing.T) {
	c := BuildHTTPClient(HTTPClientOptions{LongPollTimeout: 50 * time.Second})
	if c.Timeout <= 50*time.Second {
		t.Fatalf("client timeout %v must exceed the long-poll hold", c.Timeout)
	}
}
