package sender

import (
	"context"
	"errors"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/crmbot/core/telegram/event"
	"github.com/m3rciful/crmbot/core/telegram/keyboard"
)

// API is the subset of *tele.Bot used to push messages.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Pusher delivers messages to arbitrary chats through the dispatcher, outside
// of any inbound update.
type Pusher struct {
	api  API
	disp *Dispatcher
}

// NewPusher binds api to disp.
func NewPusher(api API, disp *Dispatcher) *Pusher {
	return &Pusher{api: api, disp: disp}
}

// Push queues v for chatID. Delivery failures are retried and logged by the
// dispatcher; only queueing errors are returned.
func (p *Pusher) Push(ctx context.Context, chatID int64, v event.View) error {
	if chatID == 0 {
		return errors.New("telegram sender: empty chat id")
	}
	opts := keyboard.SendOptions(v)
	return p.disp.Enqueue(ctx, "push", chatID, func(context.Context) error {
		_, err := p.api.Send(tele.ChatID(chatID), v.Text, opts)
		return err
	})
}
