package menu

import (
	"testing"

	"github.com/m3rciful/crmbot/internal/crm"
)

func TestTaskListToken(t *testing.T) {
	tok := TaskList(crm.FilterOverdue, 3)
	if tok != "tasks:list:overdue:3" {
		t.Fatalf("token = %q", tok)
	}
	f, page, ok := ParseTaskList(tok)
	if !ok || f != crm.FilterOverdue || page != 3 {
		t.Fatalf("parse = %q %d %v", f, page, ok)
	}
	for _, bad := range []string{"tasks:list:soon:0", "tasks:list:all:-1", "tasks:list:all", "tasks:list:all:x"} {
		if _, _, ok := ParseTaskList(bad); ok {
			t.Errorf("ParseTaskList(%q) accepted", bad)
		}
	}
}

func TestToggleToken(t *testing.T) {
	c, ch, ok := ParseToggle(Toggle(crm.CatDealWon, crm.ChannelGroup))
	if !ok || c != crm.CatDealWon || ch != crm.ChannelGroup {
		t.Fatalf("parse = %q %q %v", c, ch, ok)
	}
	if _, _, ok := ParseToggle("settings:toggle:dealWon:email"); ok {
		t.Fatal("unknown channel accepted")
	}
	if _, _, ok := ParseToggle("settings:toggle:spam:group"); ok {
		t.Fatal("unknown category accepted")
	}
}

func TestTaskListKeyboardPaging(t *testing.T) {
	page := make([]crm.Task, PageSize)
	for i := range page {
		page[i] = crm.Task{ID: "t", Title: "x"}
	}
	kb := TaskListKeyboard(page, crm.FilterAll, 1, 25)
	// filters, 10 tasks, nav, new task, back
	if len(kb) != 14 {
		t.Fatalf("rows = %d", len(kb))
	}
	nav := kb[11]
	if len(nav) != 2 || nav[0].Token != "tasks:list:all:0" || nav[1].Token != "tasks:list:all:2" {
		t.Fatalf("nav = %+v", nav)
	}
	if kb[0][0].Label != "✅ All" {
		t.Fatalf("filter row = %+v", kb[0])
	}

	last := TaskListKeyboard(page[:5], crm.FilterAll, 2, 25)
	if got := last[6]; len(got) != 1 || got[0].Token != "tasks:list:all:1" {
		t.Fatalf("last page nav = %+v", got)
	}
}

func TestTokensFitCallbackLimit(t *testing.T) {
	id := "abcdefghijklmnopqrst"
	for _, tok := range []string{
		Statuses(id, []crm.Status{{ID: id, Name: "Done"}})[0][0].Token,
		Stages(id, []crm.Stage{{ID: id, Name: "Won"}})[0][0].Token,
		Toggle(crm.CatMeetingReminder, crm.ChannelPersonal),
	} {
		if len(tok) > 64 {
			t.Errorf("token %q is %d bytes", tok, len(tok))
		}
	}
}
