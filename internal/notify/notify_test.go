package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/crmbot/core/telegram/event"
	"github.com/m3rciful/crmbot/internal/auth"
	"github.com/m3rciful/crmbot/internal/crm"
	"github.com/m3rciful/crmbot/internal/store"
)

var tashkent = time.FixedZone("UZT", 5*3600)

var now = time.Date(2026, 1, 25, 10, 0, 0, 0, tashkent)

type pushed struct {
	chatID int64
	view   event.View
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []pushed
}

func (f *fakeNotifier) Push(_ context.Context, chatID int64, v event.View) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, pushed{chatID: chatID, view: v})
	return nil
}

func (f *fakeNotifier) to(chatID int64) []event.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []event.View
	for _, p := range f.sent {
		if p.chatID == chatID {
			out = append(out, p.view)
		}
	}
	return out
}

type fixture struct {
	mem      *store.Memory
	repo     *crm.Repo
	sessions *auth.MemorySessions
	push     *fakeNotifier
	poller   *Poller
}

func stamp(t time.Time) string { return t.UTC().Format(crm.TimestampLayout) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, func(m *store.Memory) store.Store { return m })
}

// newFixtureOn builds the fixture on top of the store returned by wrap.
func newFixtureOn(t *testing.T, wrap func(*store.Memory) store.Store) *fixture {
	t.Helper()
	mem := store.NewMemory()
	mem.Seed(crm.CollUsers,
		store.Document{"id": "u1", "name": "Alice", "login": "alice"},
		store.Document{"id": "u2", "name": "Bob", "login": "bob"},
	)
	repo := crm.NewRepo(wrap(mem), crm.NewCalendar(tashkent, func() time.Time { return now }))
	sessions := auth.NewMemorySessions()
	svc := auth.NewService(repo, sessions, nil)
	push := &fakeNotifier{}
	f := &fixture{
		mem:      mem,
		repo:     repo,
		sessions: sessions,
		push:     push,
		poller:   NewPoller(svc, repo, push, NewMemoryLedger(), nil, Options{}),
	}
	sessions.Put(auth.Session{ChatUserID: 100, BackendUserID: "u1", LastPoll: now.Add(-time.Hour)})
	sessions.Put(auth.Session{ChatUserID: 200, BackendUserID: "u2", LastPoll: now.Add(-time.Hour)})
	return f
}

func (f *fixture) tick(t *testing.T) {
	t.Helper()
	if err := f.poller.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
}

func TestDeactivationNoticeSentOnce(t *testing.T) {
	f := newFixture(t)
	f.mem.Seed(crm.CollUsers, store.Document{"id": "u1", "isArchived": true})

	f.tick(t)
	f.tick(t)

	got := f.push.to(100)
	if len(got) != 1 || !strings.Contains(got[0].Text, "deactivated") {
		t.Fatalf("notices = %+v", got)
	}
	if _, ok := f.sessions.Get(100); ok {
		t.Fatal("session of deactivated user kept")
	}
	if _, ok := f.sessions.Get(200); !ok {
		t.Fatal("active session purged")
	}
}

func TestNewTasksWithinWatermark(t *testing.T) {
	f := newFixture(t)
	f.mem.Seed(crm.CollTasks,
		store.Document{"id": "fresh", "title": "Fresh", "assigneeId": "u1", "createdAt": stamp(now.Add(-30 * time.Minute))},
		store.Document{"id": "co", "title": "Shared", "assigneeIds": []any{"u2", "u1"}, "createdAt": stamp(now.Add(-10 * time.Minute))},
		store.Document{"id": "old", "title": "Old", "assigneeId": "u1", "createdAt": stamp(now.Add(-2 * time.Hour))},
		store.Document{"id": "nostamp", "title": "No stamp", "assigneeId": "u1", "createdAt": "yesterday"},
		store.Document{"id": "other", "title": "Other", "assigneeId": "u2", "createdAt": stamp(now.Add(-30 * time.Minute))},
	)

	f.tick(t)
	f.tick(t)

	got := f.push.to(100)
	if len(got) != 2 {
		t.Fatalf("pushes to u1 = %d: %+v", len(got), got)
	}
	if !strings.Contains(got[0].Text+got[1].Text, "Fresh") || !strings.Contains(got[0].Text+got[1].Text, "Shared") {
		t.Fatalf("unexpected cards: %+v", got)
	}
	if len(got[0].Keyboard) == 0 || !got[0].HTML {
		t.Fatal("task card without menu")
	}
	if s, _ := f.sessions.Get(100); !s.LastPoll.Equal(now) {
		t.Fatalf("watermark = %v", s.LastPoll)
	}
	if len(f.push.to(200)) != 2 {
		t.Fatalf("pushes to u2 = %+v", f.push.to(200))
	}
}

func TestPersonalToggleOff(t *testing.T) {
	f := newFixture(t)
	f.mem.Seed(crm.CollPrefs, store.Document{"id": crm.PrefsDocID, "newTask": map[string]any{"telegramPersonal": false}})
	f.mem.Seed(crm.CollTasks, store.Document{"id": "t", "title": "T", "assigneeId": "u1", "createdAt": stamp(now.Add(-time.Minute))})

	f.tick(t)
	if got := f.push.to(100); len(got) != 0 {
		t.Fatalf("pushed despite toggle: %+v", got)
	}
}

func TestNewDealRecipients(t *testing.T) {
	tests := []struct {
		name  string
		prefs map[string]any
		toU1  int
		toU2  int
	}{
		{name: "assignee without a list", prefs: map[string]any{}, toU1: 1},
		{name: "listed users", prefs: map[string]any{"telegramUsers": []any{"u2"}}, toU2: 1},
		{name: "empty list", prefs: map[string]any{"telegramUsers": []any{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.mem.Seed(crm.CollPrefs, store.Document{"id": crm.PrefsDocID, "dealCreated": tt.prefs})
			f.mem.Seed(crm.CollDeals, store.Document{"id": "d1", "title": "Printer lease", "stage": "new", "assigneeId": "u1", "createdAt": stamp(now.Add(-10 * time.Minute))})

			f.tick(t)
			f.tick(t)

			if got := f.push.to(100); len(got) != tt.toU1 {
				t.Fatalf("pushes to u1 = %+v", got)
			}
			if got := f.push.to(200); len(got) != tt.toU2 {
				t.Fatalf("pushes to u2 = %+v", got)
			}
		})
	}
}

type prefsDown struct{ *store.Memory }

func (s prefsDown) GetByID(ctx context.Context, collection, id string) (store.Document, error) {
	if collection == crm.CollPrefs {
		return nil, errors.New("prefs unavailable")
	}
	return s.Memory.GetByID(ctx, collection, id)
}

func TestSessionsValidatedWhenPrefsFail(t *testing.T) {
	f := newFixtureOn(t, func(m *store.Memory) store.Store { return prefsDown{m} })
	f.mem.Seed(crm.CollUsers, store.Document{"id": "u1", "isArchived": true})
	f.mem.Seed(crm.CollTasks, store.Document{"id": "t", "title": "T", "assigneeId": "u2", "createdAt": stamp(now.Add(-time.Minute))})

	if err := f.poller.Tick(context.Background()); err == nil {
		t.Fatal("expected the prefs error")
	}
	if _, ok := f.sessions.Get(100); ok {
		t.Fatal("session of deactivated user kept")
	}
	if got := f.push.to(100); len(got) != 1 || !strings.Contains(got[0].Text, "deactivated") {
		t.Fatalf("notices = %+v", got)
	}
	if got := f.push.to(200); len(got) != 0 {
		t.Fatalf("pushed without prefs: %+v", got)
	}
	if s, _ := f.sessions.Get(200); !s.LastPoll.Equal(now.Add(-time.Hour)) {
		t.Fatalf("watermark moved to %v", s.LastPoll)
	}
}

func TestMeetingReminderOnce(t *testing.T) {
	f := newFixture(t)
	f.mem.Seed(crm.CollMeetings,
		store.Document{"id": "m1", "title": "Standup", "date": "2026-01-25", "time": "10:10", "participantIds": []any{"u1"}},
		store.Document{"id": "m2", "title": "Later", "date": "2026-01-25", "time": "11:00"},
		store.Document{"id": "m3", "title": "Past", "date": "2026-01-25", "time": "09:50"},
	)

	f.tick(t)
	f.tick(t)

	if got := f.push.to(100); len(got) != 1 || !strings.Contains(got[0].Text, "Standup") {
		t.Fatalf("reminders to u1 = %+v", got)
	}
	if got := f.push.to(200); len(got) != 0 {
		t.Fatalf("reminders to u2 = %+v", got)
	}
}

func TestWonDealAnnouncedOnce(t *testing.T) {
	f := newFixture(t)
	f.mem.Seed(crm.CollPrefs, store.Document{"id": crm.PrefsDocID, "telegramGroupChatId": "-1001"})
	f.mem.Seed(crm.CollDeals,
		store.Document{"id": "d1", "title": "Big one", "stage": "won", "assigneeId": "u2", "wonAt": stamp(now.Add(-time.Hour)), "createdAt": stamp(now.Add(-48 * time.Hour))},
		store.Document{"id": "d2", "title": "Last week", "stage": "won", "updatedAt": stamp(now.Add(-72 * time.Hour))},
		store.Document{"id": "d3", "title": "Open", "stage": "new", "updatedAt": stamp(now)},
	)

	f.tick(t)
	f.tick(t)

	got := f.push.to(-1001)
	if len(got) != 1 || !strings.Contains(got[0].Text, "Big one") || !strings.Contains(got[0].Text, "Bob") {
		t.Fatalf("announcements = %+v", got)
	}

	deal, err := f.repo.Deal(context.Background(), "d1")
	if err != nil {
		t.Fatal(err)
	}
	prefs, _ := f.repo.Prefs(context.Background())
	if sent, err := f.poller.Announcer().AnnounceWon(context.Background(), deal, prefs); err != nil || sent {
		t.Fatalf("second announce = %v, %v", sent, err)
	}
}

func TestWonDealWithoutGroupIsNotClaimed(t *testing.T) {
	f := newFixture(t)
	f.mem.Seed(crm.CollDeals, store.Document{"id": "d1", "title": "Big one", "stage": "won", "wonAt": stamp(now)})
	f.tick(t)

	f.mem.Seed(crm.CollPrefs, store.Document{"id": crm.PrefsDocID, "telegramGroupChatId": "-1001"})
	f.tick(t)
	if got := f.push.to(-1001); len(got) != 1 {
		t.Fatalf("announcements = %+v", got)
	}
}

func TestSQLLedger(t *testing.T) {
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE notification_ledger (key VARCHAR(255) PRIMARY KEY, claimed_at BIGINT NOT NULL)`); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	l := NewSQLLedger(db)
	clock := now
	l.now = func() time.Time { return clock }

	for i, want := range []bool{true, false} {
		got, err := l.Claim(ctx, WonDealKey("d1"))
		if err != nil || got != want {
			t.Fatalf("claim %d = %v, %v", i, got, err)
		}
	}
	clock = now.Add(48 * time.Hour)
	if ok, _ := l.Claim(ctx, MeetingKey("m1", 100)); !ok {
		t.Fatal("fresh key not claimed")
	}

	n, err := l.Prune(ctx, now.Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("prune = %d, %v", n, err)
	}
	if ok, _ := l.Claim(ctx, WonDealKey("d1")); !ok {
		t.Fatal("pruned key not claimable")
	}
}

func TestMemoryLedgerPrune(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	l.now = func() time.Time { return now }
	if ok, _ := l.Claim(ctx, "a"); !ok {
		t.Fatal("claim a")
	}
	if ok, _ := l.Claim(ctx, "a"); ok {
		t.Fatal("double claim")
	}
	if n, _ := l.Prune(ctx, now.Add(time.Second)); n != 1 {
		t.Fatalf("pruned = %d", n)
	}
}
