package flow

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Outcome of one Advance call.
type Outcome int

const (
	// Advanced moved to the next step.
	Advanced Outcome = iota + 1
	// Committed collected the last step; the caller persists the fields.
	Committed
	// Cancelled ended the conversation at the user's request.
	Cancelled
	// Rejected kept the step because the input was invalid.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Advanced:
		return "advanced"
	case Committed:
		return "committed"
	case Cancelled:
		return "cancelled"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Result reports the conversation after one input.
type Result struct {
	Outcome Outcome
	State   State
	// Prompt asks for the current step; empty after Committed or Cancelled.
	Prompt Prompt
	// Reason explains a rejection.
	Reason string
}

// Lookup supplies the choices offered by choice steps.
type Lookup interface {
	Funnels(ctx context.Context) ([]Option, error)
	Stages(ctx context.Context, funnelID string) ([]Option, error)
	Assignees(ctx context.Context, limit int) ([]Option, error)
}

type shape int

const (
	shapeText shape = iota
	shapeChoice
)

type step struct {
	id        Step
	field     string
	shape     shape
	skippable bool
	// omit drops the step before it is asked.
	omit   func(ctx context.Context, st State) (bool, error)
	prompt func(ctx context.Context, st State) (Prompt, error)
	// accept turns the input into the field value.
	accept func(ctx context.Context, st State, in Input) (string, error)
}

type definition struct {
	kind      Kind
	protected bool
	steps     []step
}

func (d *definition) index(s Step) int {
	for i, st := range d.steps {
		if st.id == s {
			return i
		}
	}
	return -1
}

// MaxAssignees is the largest assignee choice list a prompt shows.
const MaxAssignees = 10

// Options configure an Engine.
type Options struct {
	// Today returns the current day as YYYY-MM-DD.
	Today func() string
	// AssigneeLimit bounds the assignee choice list; it is clamped to
	// 1..MaxAssignees.
	AssigneeLimit int
	// Now stamps State.UpdatedAt.
	Now func() time.Time
}

// Engine validates input against the step definitions of every Kind.
type Engine struct {
	lookup Lookup
	opts   Options
	defs   map[Kind]*definition
}

// ErrUnknownKind is returned for a Kind without a definition.
var ErrUnknownKind = errors.New("flow: unknown kind")

// NewEngine builds the engine for all conversation kinds.
func NewEngine(lookup Lookup, opts Options) *Engine {
	if opts.Today == nil {
		opts.Today = func() string { return time.Now().Format("2006-01-02") }
	}
	if opts.AssigneeLimit <= 0 || opts.AssigneeLimit > MaxAssignees {
		opts.AssigneeLimit = MaxAssignees
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	e := &Engine{lookup: lookup, opts: opts}
	e.defs = map[Kind]*definition{
		KindLoggingIn:       e.loggingIn(),
		KindCreatingTask:    e.creatingTask(),
		KindCreatingDeal:    e.creatingDeal(),
		KindTaskFromMessage: e.taskFromMessage(),
		KindSettingGroupID:  e.settingGroupID(),
	}
	return e
}

// Protected reports whether the conversation requires a signed-in user.
func (e *Engine) Protected(k Kind) bool {
	d, ok := e.defs[k]
	return ok && d.protected
}

// Start opens a conversation of kind in chatID with optional seed fields
// and returns its first prompt.
func (e *Engine) Start(ctx context.Context, kind Kind, chatID int64, seed map[string]string) (State, Prompt, error) {
	d, ok := e.defs[kind]
	if !ok {
		return State{}, Prompt{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	st := State{Kind: kind, ChatID: chatID, Fields: map[string]string{}}
	for k, v := range seed {
		st.Fields[k] = v
	}
	next, p, done, err := e.enter(ctx, d, st, 0)
	if err != nil {
		return State{}, Prompt{}, err
	}
	if done {
		return State{}, Prompt{}, fmt.Errorf("flow: %s has no steps to ask", kind)
	}
	return next, p, nil
}

// Prompt re-renders the prompt of the current step.
func (e *Engine) Prompt(ctx context.Context, st State) (Prompt, error) {
	_, s, err := e.current(st)
	if err != nil {
		return Prompt{}, err
	}
	return e.prompt(ctx, s, st)
}

// Accepts reports whether in has the shape the current step expects.
// Cancel is accepted at every step.
func (e *Engine) Accepts(st State, in Input) bool {
	if in.Cancel {
		return true
	}
	_, s, err := e.current(st)
	if err != nil {
		return false
	}
	switch {
	case in.Skip:
		return s.skippable
	case in.IsChoice:
		return s.shape == shapeChoice
	default:
		return s.shape == shapeText
	}
}

// Advance applies in to the current step.
func (e *Engine) Advance(ctx context.Context, st State, in Input) (Result, error) {
	if in.Cancel {
		return Result{Outcome: Cancelled, State: st}, nil
	}
	d, s, err := e.current(st)
	if err != nil {
		return Result{}, err
	}

	value, err := e.accept(ctx, s, st, in)
	var verr *ValidationError
	if errors.As(err, &verr) {
		p, perr := e.prompt(ctx, s, st)
		if perr != nil {
			return Result{}, perr
		}
		p.Text = "⚠️ " + verr.Reason + "\n\n" + p.Text
		return Result{Outcome: Rejected, State: st, Prompt: p, Reason: verr.Reason}, nil
	}
	if err != nil {
		return Result{}, err
	}

	st = st.with(s.field, value)
	next, p, done, err := e.enter(ctx, d, st, d.index(s.id)+1)
	if err != nil {
		return Result{}, err
	}
	if done {
		st.UpdatedAt = e.opts.Now()
		return Result{Outcome: Committed, State: st}, nil
	}
	return Result{Outcome: Advanced, State: next, Prompt: p}, nil
}

func (e *Engine) current(st State) (*definition, step, error) {
	d, ok := e.defs[st.Kind]
	if !ok {
		return nil, step{}, fmt.Errorf("%w: %s", ErrUnknownKind, st.Kind)
	}
	i := d.index(st.Step)
	if i < 0 {
		return nil, step{}, fmt.Errorf("flow: %s has no step %s", st.Kind, st.Step)
	}
	return d, d.steps[i], nil
}

// enter finds the first step at or after from that is not omitted.
func (e *Engine) enter(ctx context.Context, d *definition, st State, from int) (State, Prompt, bool, error) {
	for i := from; i < len(d.steps); i++ {
		s := d.steps[i]
		if s.omit != nil {
			skip, err := s.omit(ctx, st)
			if err != nil {
				return State{}, Prompt{}, false, err
			}
			if skip {
				continue
			}
		}
		p, err := e.prompt(ctx, s, st)
		if err != nil {
			return State{}, Prompt{}, false, err
		}
		st.Step = s.id
		st.UpdatedAt = e.opts.Now()
		return st, p, false, nil
	}
	return st, Prompt{}, true, nil
}

func (e *Engine) prompt(ctx context.Context, s step, st State) (Prompt, error) {
	p, err := s.prompt(ctx, st)
	if err != nil {
		return Prompt{}, err
	}
	p.Skippable = s.skippable
	return p, nil
}

func (e *Engine) accept(ctx context.Context, s step, st State, in Input) (string, error) {
	if in.Skip && !s.skippable {
		return "", invalid(s.id, "this step cannot be skipped")
	}
	return s.accept(ctx, st, in)
}

// choose validates a picked value against the options currently offered.
func choose(id Step, options []Option, in Input) (string, error) {
	if !in.IsChoice {
		return "", invalid(id, "use the buttons below")
	}
	for _, o := range options {
		if o.Value == in.Choice {
			return o.Value, nil
		}
	}
	return "", invalid(id, "that option is no longer available")
}
