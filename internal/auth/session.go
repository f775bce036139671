// Package auth keeps chat sessions and guards handlers that need an active
// backend user.
package auth

import (
	"sort"
	"time"

	"github.com/m3rciful/crmbot/core/telegram/state"
)

// Session binds a chat user to a backend user.
type Session struct {
	ChatUserID    int64
	BackendUserID string
	// LastPoll is the notification watermark.
	LastPoll time.Time
}

// Sessions stores at most one session per chat user.
type Sessions interface {
	Get(chatUserID int64) (Session, bool)
	Put(s Session)
	Delete(chatUserID int64)
	// List returns every session ordered by chat user id.
	List() []Session
	// Touch moves the watermark of an existing session.
	Touch(chatUserID int64, at time.Time)
}

// MemorySessions is a process-local Sessions. Sessions do not expire.
type MemorySessions struct {
	st *state.Store[int64, Session]
}

// NewMemorySessions returns an empty store.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{st: state.NewStore[int64, Session](0)}
}

func (m *MemorySessions) Get(chatUserID int64) (Session, bool) { return m.st.Get(chatUserID) }

func (m *MemorySessions) Put(s Session) { m.st.Put(s.ChatUserID, s) }

func (m *MemorySessions) Delete(chatUserID int64) { m.st.Delete(chatUserID) }

func (m *MemorySessions) List() []Session {
	var out []Session
	m.st.Each(func(_ int64, s Session) { out = append(out, s) })
	sort.Slice(out, func(i, j int) bool { return out[i].ChatUserID < out[j].ChatUserID })
	return out
}

func (m *MemorySessions) Touch(chatUserID int64, at time.Time) {
	if s, ok := m.st.Get(chatUserID); ok {
		s.LastPoll = at
		m.st.Put(chatUserID, s)
	}
}
