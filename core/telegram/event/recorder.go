package event

import (
	"context"
	"sync"
)

// Recorder is an in-memory Responder used by handler tests.
type Recorder struct {
	mu      sync.Mutex
	Replies []View
	Renders []View
	Acks    []string
	// Calls lists "reply", "render" and "ack" in call order.
	Calls []string
}

// Reply records v.
func (r *Recorder) Reply(_ context.Context, v View) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Replies = append(r.Replies, v)
	r.Calls = append(r.Calls, "reply")
	return nil
}

// Render records v.
func (r *Recorder) Render(_ context.Context, v View) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Renders = append(r.Renders, v)
	r.Calls = append(r.Calls, "render")
	return nil
}

// Ack records text.
func (r *Recorder) Ack(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Acks = append(r.Acks, text)
	r.Calls = append(r.Calls, "ack")
	return nil
}

// All returns replies and renders in call order.
func (r *Recorder) All() []View {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []View
	ri, ni := 0, 0
	for _, c := range r.Calls {
		switch c {
		case "reply":
			out = append(out, r.Replies[ri])
			ri++
		case "render":
			out = append(out, r.Renders[ni])
			ni++
		}
	}
	return out
}

// Last returns the most recent reply or render.
func (r *Recorder) Last() (View, bool) {
	all := r.All()
	if len(all) == 0 {
		return View{}, false
	}
	return all[len(all)-1], true
}
