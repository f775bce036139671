package keyboard

import (
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/crmbot/core/telegram/event"
)

func TestMarkup(t *testing.T) {
	kb := event.Keyboard{
		event.Row(event.Callback("Tasks", "menu:tasks"), event.Link("Open", "https://example.org")),
		nil,
	}
	m := Markup(kb)
	if m == nil || len(m.InlineKeyboard) != 1 || len(m.InlineKeyboard[0]) != 2 {
		t.Fatalf("markup = %+v", m)
	}
	if b := m.InlineKeyboard[0][0]; b.Data != "menu:tasks" || b.URL != "" {
		t.Fatalf("callback button = %+v", b)
	}
	if b := m.InlineKeyboard[0][1]; b.URL != "https://example.org" || b.Data != "" {
		t.Fatalf("link button = %+v", b)
	}
	if Markup(nil) != nil {
		t.Fatal("empty keyboard must produce nil markup")
	}
}

func TestChunkAndCancel(t *testing.T) {
	buttons := []event.Button{
		event.Callback("1", "a"), event.Callback("2", "b"), event.Callback("3", "c"),
	}
	kb := WithCancel(Chunk(buttons, 2), "flow:cancel")
	if len(kb) != 3 || len(kb[0]) != 2 || len(kb[1]) != 1 || kb[2][0].Token != "flow:cancel" {
		t.Fatalf("kb = %+v", kb)
	}
	if len(Column(buttons...)) != 3 {
		t.Fatal("Column must place one button per row")
	}
	if opts := SendOptions(event.View{Text: "x", HTML: true}); opts.ParseMode != tele.ModeHTML || opts.ReplyMarkup != nil {
		t.Fatalf("opts = %+v", opts)
	}
}
