package crm

import (
	"strconv"
	"strings"

	"github.com/m3rciful/crmbot/internal/store"
)

// Category is a notification kind with its own toggles.
type Category string

const (
	CatNewTask         Category = "newTask"
	CatDealCreated     Category = "dealCreated"
	CatDealWon         Category = "dealWon"
	CatMeetingReminder Category = "meetingReminder"
	CatDailyReminder   Category = "dailyReminder"
	CatGroupDigest     Category = "groupDigest"
	CatWeeklyReport    Category = "weeklyReport"
)

// Categories lists every category in display order.
var Categories = []Category{
	CatNewTask, CatDealCreated, CatDealWon, CatMeetingReminder,
	CatDailyReminder, CatGroupDigest, CatWeeklyReport,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// Channel selects the personal or the group toggle of a category.
type Channel string

const (
	ChannelPersonal Channel = "personal"
	ChannelGroup    Channel = "group"
)

func (ch Channel) field() string {
	if ch == ChannelGroup {
		return "telegramGroup"
	}
	return "telegramPersonal"
}

// Prefs is the decoded notificationPrefs/default document.
type Prefs struct {
	GroupChatID int64
	doc         store.Document
}

// PrefsFrom decodes the preferences document; nil yields defaults.
func PrefsFrom(d store.Document) Prefs {
	if d == nil {
		d = store.Document{}
	}
	p := Prefs{doc: d}
	p.GroupChatID, _ = ParseChatID(d.String("telegramGroupChatId"))
	return p
}

// Enabled reports a toggle; missing categories and toggles are on.
func (p Prefs) Enabled(c Category, ch Channel) bool {
	cat := p.doc.Map(string(c))
	if cat == nil {
		return true
	}
	v, ok := cat[ch.field()].(bool)
	return !ok || v
}

// Recipients returns the telegramUsers list of c. ok is false when the
// category carries no list.
func (p Prefs) Recipients(c Category) (users []string, ok bool) {
	cat := p.doc.Map(string(c))
	if cat == nil {
		return nil, false
	}
	if _, ok := cat["telegramUsers"]; !ok {
		return nil, false
	}
	return cat.Strings("telegramUsers"), true
}

// HasGroup reports whether a group chat is configured.
func (p Prefs) HasGroup() bool { return p.GroupChatID != 0 }

// GroupEnabled reports whether a group chat is set and the category's group
// toggle is on.
func (p Prefs) GroupEnabled(c Category) bool {
	return p.HasGroup() && p.Enabled(c, ChannelGroup)
}

// ParseChatID parses a signed Telegram chat id.
func ParseChatID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
