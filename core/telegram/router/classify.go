package router

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/crmbot/core/telegram/callbacks"
	"github.com/m3rciful/crmbot/core/telegram/event"
)

// Classify converts a telebot update into an Event. It reports false for
// updates the bot ignores: non-text messages and commands addressed to
// another bot.
func Classify(c tele.Context, botUsername string) (*event.Event, bool) {
	ev := &event.Event{UpdateID: c.Update().ID}
	if user := c.Sender(); user != nil {
		ev.ChatUserID = user.ID
		ev.Username = user.Username
	}
	if chat := c.Chat(); chat != nil {
		ev.ChatID = chat.ID
		ev.ChatType = event.ChatType(chat.Type)
	}

	if cb := c.Callback(); cb != nil {
		ev.Kind = event.KindCallback
		ev.Token = callbacks.Token(cb)
		if ev.ChatID == 0 {
			ev.ChatID = ev.ChatUserID
			ev.ChatType = event.ChatPrivate
		}
		return ev, ev.ChatUserID != 0
	}

	msg := c.Message()
	if msg == nil || strings.TrimSpace(msg.Text) == "" || ev.ChatUserID == 0 {
		return nil, false
	}
	ev.Text = msg.Text

	if name, target, args, ok := parseCommand(msg.Text); ok {
		if target != "" && !strings.EqualFold(target, botUsername) {
			return nil, false
		}
		ev.Kind = event.KindCommand
		ev.Command = name
		ev.Args = args
		return ev, true
	}

	ev.Kind = event.KindText
	ev.Mentioned = mentions(msg, botUsername)
	return ev, true
}

// parseCommand splits "/name@bot rest" into its parts.
func parseCommand(text string) (name, target, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) < 2 {
		return "", "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if i := strings.IndexAny(head, "\n\t"); i >= 0 {
		rest = head[i+1:] + " " + rest
		head = head[:i]
	}
	name, target, _ = strings.Cut(head, "@")
	if name == "" {
		return "", "", "", false
	}
	return strings.ToLower(name), target, strings.TrimSpace(rest), true
}

func mentions(msg *tele.Message, botUsername string) bool {
	if botUsername == "" {
		return false
	}
	handle := "@" + botUsername
	for _, e := range msg.Entities {
		if e.Type == tele.EntityMention && strings.EqualFold(msg.EntityText(e), handle) {
			return true
		}
	}
	return indexHandle(msg.Text, handle, 0) >= 0
}

// StripMention removes every standalone "@botUsername" occurrence from text.
func StripMention(text, botUsername string) string {
	if botUsername == "" {
		return strings.TrimSpace(text)
	}
	handle := "@" + botUsername
	var b strings.Builder
	from := 0
	for {
		i := indexHandle(text, handle, from)
		if i < 0 {
			b.WriteString(text[from:])
			break
		}
		b.WriteString(text[from:i])
		from = i + len(handle)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// indexHandle returns the byte offset of the first handle in text at or after
// from that is not part of a longer username or an email address, or -1.
// Usernames are ASCII so only ASCII letters fold.
func indexHandle(text, handle string, from int) int {
	for i := from; i+len(handle) <= len(text); i++ {
		if text[i] != '@' {
			continue
		}
		if i > 0 && (isUsernameByte(text[i-1]) || text[i-1] == '@') {
			continue
		}
		end := i + len(handle)
		if end < len(text) && isUsernameByte(text[end]) {
			continue
		}
		if equalFoldASCII(text[i:end], handle) {
			return i
		}
	}
	return -1
}

func isUsernameByte(c byte) bool {
	return c == '_' || '0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if lowerASCII(a[i]) != lowerASCII(b[i]) {
			return false
		}
	}
	return true
}

func lowerASCII(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}
