// Package event normalizes Telegram updates into transport-independent
// inbound events and describes the outbound surface handlers reply through.
package event

import (
	"context"
	"strings"
)

// Kind classifies an inbound event.
type Kind int

const (
	// KindText is any message that is not a command.
	KindText Kind = iota + 1
	// KindCommand is a message that starts with "/name".
	KindCommand
	// KindCallback is an inline button press.
	KindCallback
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindCommand:
		return "command"
	case KindCallback:
		return "callback"
	}
	return "unknown"
}

// ChatType mirrors Telegram chat types.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// IsGroup reports whether the chat is a group or supergroup.
func (t ChatType) IsGroup() bool {
	return t == ChatGroup || t == ChatSupergroup
}

// Event is one inbound update after classification.
type Event struct {
	Kind       Kind
	UpdateID   int
	ChatUserID int64
	ChatID     int64
	ChatType   ChatType
	Username   string

	// Text is the raw message text; empty for callbacks.
	Text string
	// Command is the lower-cased command name without slash or bot suffix.
	Command string
	// Args is the remainder of a command message, trimmed.
	Args string
	// Token is the opaque callback payload.
	Token string
	// Mentioned is set when a text message mentions the bot.
	Mentioned bool
}

// HasCommandMarker reports whether the text starts like a command.
func (e *Event) HasCommandMarker() bool {
	return strings.HasPrefix(strings.TrimSpace(e.Text), "/")
}

// Button is an inline keyboard button. Exactly one of Token or URL is set.
type Button struct {
	Label string
	Token string
	URL   string
}

// Keyboard is a list of inline button rows.
type Keyboard [][]Button

// Row builds a single keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}

// Callback returns a token button.
func Callback(label, token string) Button {
	return Button{Label: label, Token: token}
}

// Link returns a URL button.
func Link(label, url string) Button {
	return Button{Label: label, URL: url}
}

// View is one outbound message.
type View struct {
	Text     string
	Keyboard Keyboard
	// HTML selects HTML parse mode; otherwise text is sent as-is.
	HTML bool
}

// Responder answers the update currently being handled.
type Responder interface {
	// Reply sends a new message into the event's chat.
	Reply(ctx context.Context, v View) error
	// Render edits the message carrying the pressed button, or sends a new
	// message when the event is not a callback or the edit fails.
	Render(ctx context.Context, v View) error
	// Ack answers a callback query; text may be empty.
	Ack(ctx context.Context, text string) error
}

// HandlerFunc handles one classified event.
type HandlerFunc func(ctx context.Context, ev *Event, resp Responder) error

// Dispatcher receives every classified event.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *Event, resp Responder) Result
}

// Outcome values reported in Result.
const (
	OutcomeOK        = "ok"
	OutcomeFail      = "fail"
	OutcomeSkip      = "skip"
	OutcomeRejected  = "rejected"
	OutcomeCancelled = "cancelled"
)

// Result describes how an event was routed.
type Result struct {
	// Route names the matched command, callback route or flow step.
	Route   string
	Outcome string
	Err     error
}
