package digest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/crmbot/core/telegram/event"
	"github.com/m3rciful/crmbot/internal/auth"
	"github.com/m3rciful/crmbot/internal/crm"
	"github.com/m3rciful/crmbot/internal/notify"
	"github.com/m3rciful/crmbot/internal/store"
)

var (
	tashkent = time.FixedZone("UZT", 5*3600)
	// a Monday
	now = time.Date(2026, 1, 26, 9, 0, 0, 0, tashkent)
)

type recorder struct {
	mu   sync.Mutex
	sent map[int64][]event.View
}

func (r *recorder) Push(_ context.Context, chatID int64, v event.View) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		r.sent = map[int64][]event.View{}
	}
	r.sent[chatID] = append(r.sent[chatID], v)
	return nil
}

func setup(t *testing.T, docs map[string][]store.Document) (*Jobs, *recorder, *notify.MemoryLedger) {
	t.Helper()
	return setupOn(t, docs, func(m *store.Memory) store.Store { return m })
}

// setupOn seeds a memory store and builds Jobs on the store returned by wrap.
func setupOn(t *testing.T, docs map[string][]store.Document, wrap func(*store.Memory) store.Store) (*Jobs, *recorder, *notify.MemoryLedger) {
	t.Helper()
	mem := store.NewMemory()
	mem.Seed(crm.CollUsers,
		store.Document{"id": "u1", "name": "Alice"},
		store.Document{"id": "u2", "name": "Bob"},
		store.Document{"id": "u3", "name": "Carol"},
	)
	for coll, ds := range docs {
		mem.Seed(coll, ds...)
	}
	repo := crm.NewRepo(wrap(mem), crm.NewCalendar(tashkent, func() time.Time { return now }))
	sessions := auth.NewMemorySessions()
	sessions.Put(auth.Session{ChatUserID: 100, BackendUserID: "u1"})
	sessions.Put(auth.Session{ChatUserID: 200, BackendUserID: "u2"})
	rec := &recorder{}
	ledger := notify.NewMemoryLedger()
	return NewJobs(auth.NewService(repo, sessions, nil), repo, rec, ledger), rec, ledger
}

func task(id, assignee, due, status, created string) store.Document {
	return store.Document{"id": id, "title": "task " + id, "assigneeId": assignee, "endDate": due, "status": status, "createdAt": created}
}

func TestDailyRemindersSkipEmpty(t *testing.T) {
	jobs, rec, _ := setup(t, map[string][]store.Document{crm.CollTasks: {
		task("a", "u1", "2026-01-26", "New", ""),
		task("b", "u1", "2026-01-20", "New", ""),
		task("c", "u2", "2026-01-20", "Done", ""),
	}})
	if err := jobs.DailyReminders(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := rec.sent[100]
	if len(got) != 1 || !strings.Contains(got[0].Text, "task a") || !strings.Contains(got[0].Text, "task b") {
		t.Fatalf("reminder = %+v", got)
	}
	if len(rec.sent[200]) != 0 {
		t.Fatalf("user without open tasks got %+v", rec.sent[200])
	}
}

// flakyUsers fails user lookups of one id and counts task collection reads.
type flakyUsers struct {
	*store.Memory
	failID    string
	taskReads int
}

func (s *flakyUsers) GetByID(ctx context.Context, collection, id string) (store.Document, error) {
	if collection == crm.CollUsers && id == s.failID {
		return nil, errors.New("backend timeout")
	}
	return s.Memory.GetByID(ctx, collection, id)
}

func (s *flakyUsers) GetAll(ctx context.Context, collection string) ([]store.Document, error) {
	if collection == crm.CollTasks {
		s.taskReads++
	}
	return s.Memory.GetAll(ctx, collection)
}

func TestDailyRemindersReadTasksOnceAndSkipFailedChecks(t *testing.T) {
	var st *flakyUsers
	jobs, rec, _ := setupOn(t, map[string][]store.Document{crm.CollTasks: {
		task("a", "u1", "2026-01-26", "New", ""),
		task("b", "u2", "2026-01-26", "New", ""),
		task("c", "u2", "2026-01-20", "New", ""),
	}}, func(m *store.Memory) store.Store {
		st = &flakyUsers{Memory: m, failID: "u1"}
		return st
	})
	if err := jobs.DailyReminders(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(rec.sent[100]) != 0 {
		t.Fatalf("user with a failed check got %+v", rec.sent[100])
	}
	got := rec.sent[200]
	if len(got) != 1 || !strings.Contains(got[0].Text, "task b") || !strings.Contains(got[0].Text, "task c") {
		t.Fatalf("reminder = %+v", got)
	}
	if st.taskReads != 1 {
		t.Fatalf("task reads = %d, want 1", st.taskReads)
	}
}

func TestGroupDigestNeedsGroup(t *testing.T) {
	tasks := []store.Document{
		task("y", "u1", "2026-01-25", "New", ""),
		task("o", "u2", "2026-01-20", "New", ""),
		task("t", "u3", "2026-01-26", "New", ""),
		task("d", "u3", "2026-01-25", "Done", ""),
	}
	jobs, rec, _ := setup(t, map[string][]store.Document{crm.CollTasks: tasks})
	if err := jobs.GroupDigest(context.Background()); err != nil || len(rec.sent) != 0 {
		t.Fatalf("without group: %v %+v", err, rec.sent)
	}

	jobs, rec, _ = setup(t, map[string][]store.Document{
		crm.CollTasks: tasks,
		crm.CollPrefs: {{"id": crm.PrefsDocID, "telegramGroupChatId": "-42"}},
	})
	if err := jobs.GroupDigest(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := rec.sent[-42]
	if len(got) != 1 || !got[0].HTML {
		t.Fatalf("digest = %+v", got)
	}
	for _, want := range []string{"Unfinished from yesterday (1)", "task y - <b>Alice</b>", "Overdue from earlier (1)", "task o - <b>Bob</b> (6 days)", "Due today (1)", "task t - <b>Carol</b>"} {
		if !strings.Contains(got[0].Text, want) {
			t.Errorf("digest missing %q:\n%s", want, got[0].Text)
		}
	}
	if strings.Contains(got[0].Text, "task d") {
		t.Error("finished task listed")
	}
}

func TestWeeklyStats(t *testing.T) {
	stamp := func(day int) string {
		return time.Date(2026, 1, day, 12, 0, 0, 0, time.UTC).Format(crm.TimestampLayout)
	}
	var tasks []crm.Task
	add := func(id, who, status string, day int) {
		tasks = append(tasks, crm.TaskFrom(task(id, who, "", status, stamp(day))))
	}
	// Alice 4/5, Bob 1/3, Carol 3/4, ghost user ignored in rankings
	for i, st := range []string{"Done", "Done", "Done", "Done", "New"} {
		add("a"+string(rune('0'+i)), "u1", st, 20)
	}
	for i, st := range []string{"Done", "New", "New"} {
		add("b"+string(rune('0'+i)), "u2", st, 22)
	}
	for i, st := range []string{"Done", "Done", "Done", "New"} {
		add("c"+string(rune('0'+i)), "u3", st, 25)
	}
	add("g", "ghost", "Done", 21)
	add("old", "u2", "New", 10)
	add("today", "u2", "New", 26)

	users := []crm.User{{ID: "u1", Name: "Alice"}, {ID: "u2", Name: "Bob"}, {ID: "u3", Name: "Carol"}}
	w := WeeklyStats(tasks, users, crm.NewCalendar(tashkent, func() time.Time { return now }))

	if w.WeekStart != "2026-01-19" || w.WeekEnd != "2026-01-25" {
		t.Fatalf("week = %s..%s", w.WeekStart, w.WeekEnd)
	}
	if w.Completed != 9 || w.Open != 4 {
		t.Fatalf("completed=%d open=%d", w.Completed, w.Open)
	}
	if len(w.Top) != 1 || w.Top[0].Name != "Alice" {
		t.Fatalf("top = %+v", w.Top)
	}
	if len(w.Bottom) != 1 || w.Bottom[0].Name != "Bob" {
		t.Fatalf("bottom = %+v", w.Bottom)
	}
}

func TestPruneLedger(t *testing.T) {
	jobs, _, ledger := setup(t, nil)
	ctx := context.Background()
	if ok, _ := ledger.Claim(ctx, "deal.won:x"); !ok {
		t.Fatal("claim")
	}
	if err := jobs.PruneLedger(ctx); err != nil {
		t.Fatal(err)
	}
	if ok, _ := ledger.Claim(ctx, "deal.won:x"); ok {
		t.Fatal("recent claim pruned")
	}
}

func TestScheduleNormalize(t *testing.T) {
	s := Schedule{WeeklyReport: "0 10 * * 1"}
	if err := s.Normalize(); err != nil {
		t.Fatal(err)
	}
	if s.DailyReminder != "0 9 * * *" || s.WeeklyReport != "0 10 * * 1" || s.LedgerPrune != "30 3 * * *" {
		t.Fatalf("schedule = %+v", s)
	}
	bad := Schedule{GroupDigest: "every morning"}
	if err := bad.Normalize(); err == nil || !strings.Contains(err.Error(), "group_digest") {
		t.Fatalf("err = %v", err)
	}
}

func TestNewScheduler(t *testing.T) {
	jobs, _, _ := setup(t, nil)
	s, err := NewScheduler(tashkent, DefaultSchedule(), jobs)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(s.cron.Entries()); n != 4 {
		t.Fatalf("entries = %d", n)
	}
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := NewScheduler(tashkent, Schedule{DailyReminder: "bad"}, jobs); err == nil {
		t.Fatal("invalid spec accepted")
	}
}
