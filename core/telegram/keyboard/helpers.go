package keyboard

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/crmbot/core/telegram/event"
)

// CancelLabel is the label of the shared cancel button.
const CancelLabel = "❌ Cancel"

// Markup converts an inline keyboard into telebot markup; nil when kb is empty.
// Callback buttons carry the raw token, so presses arrive on tele.OnCallback.
func Markup(kb event.Keyboard) *tele.ReplyMarkup {
	if len(kb) == 0 {
		return nil
	}
	inline := make([][]tele.InlineButton, 0, len(kb))
	for _, row := range kb {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			btn := tele.InlineButton{Text: b.Label}
			if b.URL != "" {
				btn.URL = b.URL
			} else {
				btn.Data = b.Token
			}
			r = append(r, btn)
		}
		inline = append(inline, r)
	}
	return &tele.ReplyMarkup{InlineKeyboard: inline}
}

// Column places every button on its own row.
func Column(buttons ...event.Button) event.Keyboard {
	return Chunk(buttons, 1)
}

// Chunk splits a flat list of buttons into rows of up to n buttons.
func Chunk(buttons []event.Button, n int) event.Keyboard {
	if n <= 0 {
		n = 1
	}
	kb := make(event.Keyboard, 0, (len(buttons)+n-1)/n)
	for i := 0; i < len(buttons); i += n {
		kb = append(kb, buttons[i:min(i+n, len(buttons))])
	}
	return kb
}

// WithCancel appends a row holding a single cancel button with the given token.
func WithCancel(kb event.Keyboard, token string) event.Keyboard {
	return append(kb, event.Row(event.Callback(CancelLabel, token)))
}

// SendOptions returns telebot options for v.
func SendOptions(v event.View) *tele.SendOptions {
	opts := &tele.SendOptions{ReplyMarkup: Markup(v.Keyboard), DisableWebPagePreview: true}
	if v.HTML {
		opts.ParseMode = tele.ModeHTML
	}
	return opts
}
