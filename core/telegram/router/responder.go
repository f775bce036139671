package router

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/crmbot/core/telegram/event"
	"github.com/m3rciful/crmbot/core/telegram/keyboard"
)

// responder answers through the telebot context of the current update.
type responder struct {
	c tele.Context
}

// NewResponder wraps c as an event.Responder.
func NewResponder(c tele.Context) event.Responder {
	return &responder{c: c}
}

func (r *responder) Reply(_ context.Context, v event.View) error {
	return r.c.Send(v.Text, keyboard.SendOptions(v))
}

func (r *responder) Render(ctx context.Context, v event.View) error {
	if r.c.Callback() == nil || r.c.Message() == nil {
		return r.Reply(ctx, v)
	}
	err := r.c.Edit(v.Text, keyboard.SendOptions(v))
	if err == nil || isNotModified(err) {
		return nil
	}
	// the message may be too old or not editable
	return r.Reply(ctx, v)
}

func (r *responder) Ack(_ context.Context, text string) error {
	if r.c.Callback() == nil {
		return nil
	}
	return r.c.Respond(&tele.CallbackResponse{Text: text})
}

func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}
