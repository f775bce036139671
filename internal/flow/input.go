package flow

import (
	"strings"

	"github.com/m3rciful/crmbot/core/telegram/event"
	"github.com/m3rciful/crmbot/core/telegram/keyboard"
)

// Reserved callback tokens.
const (
	TokenCancel = "flow:cancel"
	TokenSkip   = "flow:skip"
	PickPrefix  = "flow:pick:"
)

// SkipSentinel is the text that skips an optional text step.
const SkipSentinel = "-"

// Input is one user reply to a prompt.
type Input struct {
	Text     string
	Choice   string
	IsChoice bool
	Cancel   bool
	Skip     bool
}

// InputFrom maps an event to conversation input. ok is false for events
// that are not conversation input at all.
func InputFrom(ev *event.Event) (Input, bool) {
	switch ev.Kind {
	case event.KindText:
		return Input{Text: ev.Text}, true
	case event.KindCommand:
		if ev.Command == "cancel" {
			return Input{Cancel: true}, true
		}
	case event.KindCallback:
		switch {
		case ev.Token == TokenCancel:
			return Input{Cancel: true}, true
		case ev.Token == TokenSkip:
			return Input{Skip: true}, true
		case strings.HasPrefix(ev.Token, PickPrefix):
			return Input{Choice: strings.TrimPrefix(ev.Token, PickPrefix), IsChoice: true}, true
		}
	}
	return Input{}, false
}

// Option is one choice offered by a prompt.
type Option struct {
	Value string
	Label string
}

// Prompt asks for the current step.
type Prompt struct {
	Text    string
	Options []Option
	// Skippable adds a skip button.
	Skippable bool
}

// View renders the prompt with its option, skip and cancel buttons.
func (p Prompt) View() event.View {
	buttons := make([]event.Button, 0, len(p.Options))
	for _, o := range p.Options {
		buttons = append(buttons, event.Callback(o.Label, PickPrefix+o.Value))
	}
	kb := keyboard.Column(buttons...)
	if p.Skippable {
		kb = append(kb, event.Row(event.Callback("⏭ Skip", TokenSkip)))
	}
	return event.View{Text: p.Text, Keyboard: keyboard.WithCancel(kb, TokenCancel)}
}
