package router

import (
	"testing"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/crmbot/core/telegram/event"
)

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	return b
}

func textUpdate(id int, chatType tele.ChatType, text string, entities ...tele.MessageEntity) tele.Update {
	return tele.Update{
		ID: id,
		Message: &tele.Message{
			Sender:   &tele.User{ID: 7, Username: "alice"},
			Chat:     &tele.Chat{ID: -100, Type: chatType},
			Text:     text,
			Entities: entities,
		},
	}
}

func TestClassify(t *testing.T) {
	b := offlineBot(t)

	tests := []struct {
		name      string
		upd       tele.Update
		ok        bool
		kind      event.Kind
		command   string
		args      string
		mentioned bool
	}{
		{name: "command", upd: textUpdate(1, tele.ChatPrivate, "/task Fix printer"), ok: true, kind: event.KindCommand, command: "task", args: "Fix printer"},
		{name: "command for this bot", upd: textUpdate(2, tele.ChatGroup, "/group_id@CrmBot"), ok: true, kind: event.KindCommand, command: "group_id"},
		{name: "command for another bot", upd: textUpdate(3, tele.ChatGroup, "/start@OtherBot"), ok: false},
		{name: "plain text", upd: textUpdate(4, tele.ChatPrivate, "hello"), ok: true, kind: event.KindText},
		{
			name: "mention",
			upd: textUpdate(5, tele.ChatSuperGroup, "@CrmBot printer is broken",
				tele.MessageEntity{Type: tele.EntityMention, Offset: 0, Length: 7}),
			ok: true, kind: event.KindText, mentioned: true,
		},
		{
			name: "longer handle with the same prefix",
			upd: textUpdate(8, tele.ChatGroup, "ping @CrmBot_helper about the invoice",
				tele.MessageEntity{Type: tele.EntityMention, Offset: 5, Length: 14}),
			ok: true, kind: event.KindText,
		},
		{name: "email address", upd: textUpdate(9, tele.ChatGroup, "mail x@crmbot.com"), ok: true, kind: event.KindText},
		{name: "handle before punctuation", upd: textUpdate(10, tele.ChatGroup, "hi @crmbot."), ok: true, kind: event.KindText, mentioned: true},
		{name: "empty", upd: textUpdate(6, tele.ChatPrivate, "  "), ok: false},
		{
			name: "callback",
			upd:  tele.Update{ID: 7, Callback: &tele.Callback{Sender: &tele.User{ID: 7}, Data: "menu:main"}},
			ok:   true, kind: event.KindCallback,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := Classify(b.NewContext(tt.upd), "CrmBot")
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if ev.Kind != tt.kind || ev.Command != tt.command || ev.Args != tt.args || ev.Mentioned != tt.mentioned {
				t.Fatalf("event = %+v", ev)
			}
			if ev.ChatUserID != 7 || ev.UpdateID != tt.upd.ID {
				t.Fatalf("ids = %+v", ev)
			}
		})
	}
}

func TestClassifyCallbackDefaultsToPrivateChat(t *testing.T) {
	b := offlineBot(t)
	ev, ok := Classify(b.NewContext(tele.Update{Callback: &tele.Callback{Sender: &tele.User{ID: 9}, Data: "task:abc"}}), "CrmBot")
	if !ok || ev.Token != "task:abc" || ev.ChatID != 9 || ev.ChatType != event.ChatPrivate {
		t.Fatalf("event = %+v", ev)
	}
}

func TestStripMention(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"@CrmBot printer is broken", "printer is broken"},
		{"please @crmbot fix   the door", "please fix the door"},
		{"no mention", "no mention"},
		{"@CrmBot", ""},
		{"ping @CrmBot_helper now", "ping @CrmBot_helper now"},
		{"mail x@crmbot.com", "mail x@crmbot.com"},
		{"@crmbot@crmbot", "@crmbot"},
		{"İstanbul İzmir İnvoice @CrmBot", "İstanbul İzmir İnvoice"},
		{"İİİİİİİİ @CrmBot", "İİİİİİİİ"},
		{"@CRMBOT заявка на ремонт", "заявка на ремонт"},
	}
	for _, tt := range tests {
		got := StripMention(tt.in, "CrmBot")
		if got != tt.want {
			t.Errorf("StripMention(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("StripMention(%q) returned invalid UTF-8 %q", tt.in, got)
		}
	}
}
