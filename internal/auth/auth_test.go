package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/m3rciful/crmbot/core/telegram/event"
	"github.com/m3rciful/crmbot/internal/crm"
	"github.com/m3rciful/crmbot/internal/store"
)

type forgetter struct{ forgotten []int64 }

func (f *forgetter) Delete(id int64) { f.forgotten = append(f.forgotten, id) }

type failingDirectory struct{ Directory }

func (failingDirectory) User(context.Context, string) (crm.User, error) {
	return crm.User{}, errors.New("backend down")
}

func newService(t *testing.T) (*Service, *store.Memory, *forgetter) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	mem := store.NewMemory()
	mem.Seed(crm.CollUsers,
		store.Document{"id": "u1", "name": "Ann", "login": "Ann", "password": string(hash)},
		store.Document{"id": "u2", "name": "Bob", "login": "bob", "password": "legacy"},
		store.Document{"id": "u3", "name": "Old", "login": "old", "password": "pw", "isArchived": true},
	)
	f := &forgetter{}
	repo := crm.NewRepo(mem, crm.NewCalendar(time.UTC, nil))
	return NewService(repo, NewMemorySessions(), f), mem, f
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, mem, _ := newService(t)

	tests := []struct {
		name, login, secret string
		ok                  bool
	}{
		{"bcrypt", " ann ", "s3cret", true},
		{"legacy plaintext", "bob", "legacy", true},
		{"wrong secret", "ann", "nope", false},
		{"unknown login", "carol", "x", false},
		{"archived", "old", "pw", false},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chatID := int64(100 + i)
			_, err := svc.Authenticate(ctx, chatID, tt.login, tt.secret)
			_, has := svc.Sessions().Get(chatID)
			if tt.ok != (err == nil) || tt.ok != has {
				t.Fatalf("err = %v, session = %v", err, has)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("err = %v", err)
			}
		})
	}

	u, _ := mem.GetByID(ctx, crm.CollUsers, "u1")
	if u.String("telegramUserId") != "100" {
		t.Fatalf("telegramUserId = %q", u.String("telegramUserId"))
	}
}

func TestGuard(t *testing.T) {
	ctx := context.Background()
	svc, mem, forgot := newService(t)
	guard := NewGuard(svc, DefaultNotices())

	var calledWith []string
	h := guard.Protect(func(_ context.Context, _ *event.Event, _ event.Responder, userID string) error {
		calledWith = append(calledWith, userID)
		return nil
	})

	// no session
	rec := &event.Recorder{}
	if err := h(ctx, &event.Event{ChatUserID: 7}, rec); err != nil {
		t.Fatal(err)
	}
	if len(calledWith) != 0 || len(rec.Replies) != 1 || rec.Replies[0].Text != DefaultNotices().NotSignedIn {
		t.Fatalf("no session: called %v, replies %v", calledWith, rec.Replies)
	}
	if mem.Writes() != 0 {
		t.Fatal("rejected call must not write")
	}

	// active
	if _, err := svc.Authenticate(ctx, 7, "bob", "legacy"); err != nil {
		t.Fatal(err)
	}
	_ = h(ctx, &event.Event{ChatUserID: 7}, &event.Recorder{})
	if len(calledWith) != 1 || calledWith[0] != "u2" {
		t.Fatalf("called %v", calledWith)
	}

	// deactivated
	if _, err := mem.Save(ctx, crm.CollUsers, store.Document{"id": "u2", "isArchived": true}); err != nil {
		t.Fatal(err)
	}
	rec = &event.Recorder{}
	_ = h(ctx, &event.Event{ChatUserID: 7}, rec)
	if len(calledWith) != 1 || rec.Replies[0].Text != DefaultNotices().Deactivated {
		t.Fatalf("deactivated: called %v, replies %v", calledWith, rec.Replies)
	}
	if _, ok := svc.Sessions().Get(7); ok || len(forgot.forgotten) != 1 || forgot.forgotten[0] != 7 {
		t.Fatalf("session kept or conversation not purged: %v", forgot.forgotten)
	}
}

func TestGuardBackendFailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	sessions := NewMemorySessions()
	sessions.Put(Session{ChatUserID: 9, BackendUserID: "u1"})
	svc := NewService(failingDirectory{}, sessions, nil)
	guard := NewGuard(svc, DefaultNotices())

	rec := &event.Recorder{}
	called := false
	err := guard.Protect(func(context.Context, *event.Event, event.Responder, string) error {
		called = true
		return nil
	})(ctx, &event.Event{ChatUserID: 9}, rec)
	if err != nil || called {
		t.Fatalf("err = %v, called = %v", err, called)
	}
	if rec.Replies[0].Text != DefaultNotices().Failure {
		t.Fatalf("reply = %q", rec.Replies[0].Text)
	}
	if _, ok := sessions.Get(9); !ok {
		t.Fatal("backend failure must not purge the session")
	}
}

func TestMemorySessionsTouchAndList(t *testing.T) {
	s := NewMemorySessions()
	s.Put(Session{ChatUserID: 2, BackendUserID: "b"})
	s.Put(Session{ChatUserID: 1, BackendUserID: "a"})
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Touch(1, at)
	s.Touch(3, at)

	list := s.List()
	if len(list) != 2 || list[0].ChatUserID != 1 || !list[0].LastPoll.Equal(at) {
		t.Fatalf("List = %+v", list)
	}
}
