package crm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m3rciful/crmbot/internal/store"
)

var tashkent = time.FixedZone("UZT", 5*3600)

func fixedCalendar() Calendar {
	return NewCalendar(tashkent, func() time.Time {
		return time.Date(2026, 1, 25, 10, 0, 0, 0, tashkent)
	})
}

func TestUserTasksFilters(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.Seed(CollTasks,
		store.Document{"id": "a", "title": "today", "assigneeId": "u1", "endDate": "2026-01-25", "status": "New"},
		store.Document{"id": "b", "title": "late", "assigneeIds": []any{"u1"}, "endDate": "2026-01-20", "status": "In progress"},
		store.Document{"id": "c", "title": "late but done", "assigneeId": "u1", "endDate": "2026-01-20", "status": "Выполнено"},
		store.Document{"id": "d", "title": "archived", "assigneeId": "u1", "endDate": "2026-01-25", "isArchived": true},
		store.Document{"id": "e", "title": "other user", "assigneeId": "u2", "endDate": "2026-01-25"},
	)
	repo := NewRepo(mem, fixedCalendar())

	tests := []struct {
		filter TaskFilter
		want   []string
	}{
		{FilterToday, []string{"a"}},
		{FilterOverdue, []string{"b"}},
		{FilterAll, []string{"b", "c", "a"}},
	}
	for _, tt := range tests {
		got, err := repo.UserTasks(ctx, "u1", tt.filter)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("%s: got %d tasks, want %v", tt.filter, len(got), tt.want)
		}
		for i := range got {
			if got[i].ID != tt.want[i] {
				t.Fatalf("%s: got[%d] = %s, want %s", tt.filter, i, got[i].ID, tt.want[i])
			}
		}
	}
}

func TestSetDealStageRecordsWonAt(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.Seed(CollDeals, store.Document{"id": "d1", "title": "Site", "stage": "proposal", "createdAt": "2026-01-01T00:00:00.000Z"})
	repo := NewRepo(mem, fixedCalendar())

	deal, won, err := repo.SetDealStage(ctx, "d1", StageWon)
	if err != nil || !won || !deal.Won() {
		t.Fatalf("SetDealStage = %+v, %v, %v", deal, won, err)
	}
	if _, won, _ := repo.SetDealStage(ctx, "d1", StageWon); won {
		t.Fatal("second move to won must not report a transition")
	}
	today, err := repo.WonToday(ctx)
	if err != nil || len(today) != 1 || today[0].ID != "d1" {
		t.Fatalf("WonToday = %+v, %v", today, err)
	}
	if _, _, err := repo.SetDealStage(ctx, "missing", StageWon); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing deal err = %v", err)
	}
}

func TestPrefsDefaultsAndToggle(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	repo := NewRepo(mem, fixedCalendar())

	p, err := repo.Prefs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Enabled(CatNewTask, ChannelPersonal) || p.HasGroup() || p.GroupEnabled(CatDealWon) {
		t.Fatalf("defaults = %+v", p)
	}

	if err := repo.SetGroupChatID(ctx, -100123); err != nil {
		t.Fatal(err)
	}
	p, err = repo.TogglePref(ctx, CatDealWon, ChannelGroup)
	if err != nil {
		t.Fatal(err)
	}
	if p.GroupChatID != -100123 || p.GroupEnabled(CatDealWon) || !p.Enabled(CatDealWon, ChannelPersonal) {
		t.Fatalf("after toggle = %+v", p)
	}

	reread, _ := repo.Prefs(ctx)
	if reread.GroupEnabled(CatDealWon) || !reread.GroupEnabled(CatGroupDigest) {
		t.Fatal("toggle not persisted")
	}
}

func TestFindTasks(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.Seed(CollTasks,
		store.Document{"id": "t1", "title": "Renew license"},
		store.Document{"id": "t2", "title": "Buy LICENSE keys"},
		store.Document{"id": "t3", "title": "license audit"},
		store.Document{"id": "t4", "title": "Printer"},
	)
	repo := NewRepo(mem, fixedCalendar())

	m, err := repo.FindTasks(ctx, "license")
	if err != nil || m.Total != 3 || len(m.Items) != 3 {
		t.Fatalf("FindTasks(license) = %+v, %v", m, err)
	}
	m, _ = repo.FindTasks(ctx, "t4")
	if m.Total != 1 || m.Items[0].Title != "Printer" {
		t.Fatalf("FindTasks(t4) = %+v", m)
	}
	m, _ = repo.FindTasks(ctx, "nothing")
	if m.Total != 0 {
		t.Fatalf("FindTasks(nothing) = %+v", m)
	}
}

func TestMeetingStartsAt(t *testing.T) {
	m := Meeting{Date: "2026-01-25T00:00:00.000Z", Time: "14:30"}
	at, ok := m.StartsAt(tashkent)
	if !ok || at.Hour() != 14 || at.Minute() != 30 || at.Day() != 25 {
		t.Fatalf("StartsAt = %v, %v", at, ok)
	}
	if _, ok := (Meeting{Date: "soon"}).StartsAt(tashkent); ok {
		t.Fatal("unparsable date must fail")
	}
	if !(Meeting{}).Includes("anyone") || (Meeting{ParticipantIDs: []string{"u1"}}).Includes("u2") {
		t.Fatal("Includes mismatch")
	}
}
