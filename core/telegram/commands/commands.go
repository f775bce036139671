package commands

import "github.com/m3rciful/crmbot/core/telegram/event"

// Scope restricts where a command may be used.
type Scope int

const (
	// ScopeAny accepts the command in every chat.
	ScopeAny Scope = iota
	// ScopePrivate accepts the command only in private chats.
	ScopePrivate
	// ScopeGroup accepts the command only in groups and supergroups.
	ScopeGroup
)

// Allows reports whether the command may run in a chat of type t.
func (s Scope) Allows(t event.ChatType) bool {
	switch s {
	case ScopePrivate:
		return t == event.ChatPrivate
	case ScopeGroup:
		return t.IsGroup()
	}
	return true
}

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     event.HandlerFunc
	Description string
	Hidden      bool
	Aliases     []string
	Scope       Scope
	// OutOfScope answers when Scope rejects the chat; nil drops the command.
	OutOfScope event.HandlerFunc
}
