// Package flow runs the multi-step data entry conversations: each Kind is a
// fixed sequence of typed steps ending in a commit.
package flow

import (
	"time"

	"github.com/m3rciful/crmbot/core/telegram/state"
)

// Kind names a conversation.
type Kind string

const (
	KindLoggingIn       Kind = "logging_in"
	KindCreatingTask    Kind = "creating_task"
	KindCreatingDeal    Kind = "creating_deal"
	KindTaskFromMessage Kind = "task_from_message"
	KindSettingGroupID  Kind = "setting_group_chat_id"
)

// Step names a position inside a conversation.
type Step string

const (
	StepLogin       Step = "awaiting_login"
	StepPassword    Step = "awaiting_password"
	StepFunnel      Step = "awaiting_funnel_choice"
	StepStage       Step = "awaiting_stage_choice"
	StepTitle       Step = "awaiting_title"
	StepDescription Step = "awaiting_description"
	StepDueDate     Step = "awaiting_due_date"
	StepAssignee    Step = "awaiting_assignee_choice"
	StepChatID      Step = "awaiting_chat_id"
)

// Field keys collected by the steps.
const (
	FieldLogin       = "login"
	FieldPassword    = "password"
	FieldFunnel      = "funnel"
	FieldStage       = "stage"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldDueDate     = "due_date"
	FieldAssignee    = "assignee"
	FieldChatID      = "chat_id"
	// FieldBody is the captured message of a task-from-message conversation.
	FieldBody = "body"
)

// State is the progress of one chat user's conversation.
type State struct {
	Kind   Kind
	Step   Step
	Fields map[string]string
	// ChatID is the chat the conversation runs in.
	ChatID    int64
	UpdatedAt time.Time
}

// Get returns a collected field.
func (s State) Get(key string) string { return s.Fields[key] }

func (s State) with(key, value string) State {
	fields := make(map[string]string, len(s.Fields)+1)
	for k, v := range s.Fields {
		fields[k] = v
	}
	fields[key] = value
	s.Fields = fields
	return s
}

// Store keeps at most one State per chat user.
type Store interface {
	Get(chatUserID int64) (State, bool)
	Put(chatUserID int64, st State)
	Delete(chatUserID int64)
}

// MemoryStore is a process-local Store whose states expire after a period
// without input.
type MemoryStore struct {
	st *state.Store[int64, State]
}

// NewMemoryStore returns an empty store; ttl <= 0 keeps states forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{st: state.NewStore[int64, State](ttl)}
}

// WithClock replaces the time source; used by tests.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.st.WithClock(now)
	return m
}

func (m *MemoryStore) Get(chatUserID int64) (State, bool) { return m.st.Get(chatUserID) }

func (m *MemoryStore) Put(chatUserID int64, st State) { m.st.Put(chatUserID, st) }

func (m *MemoryStore) Delete(chatUserID int64) { m.st.Delete(chatUserID) }

// Sweep drops expired conversations and returns how many were removed.
func (m *MemoryStore) Sweep() int { return m.st.Sweep() }
