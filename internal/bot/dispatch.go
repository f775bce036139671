package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/crmbot/core/logger"
	"github.com/m3rciful/crmbot/core/telegram/event"
	"github.com/m3rciful/crmbot/internal/flow"
)

// Dispatch routes one event. Precedence:
//
//  1. a bot mention in a group starts a task from that message;
//  2. input the active conversation is waiting for advances it;
//  3. registered commands;
//  4. callback routes, exact tokens before prefixes;
//  5. other text in a chat with an active conversation re-prompts it;
//  6. everything else is dropped.
//
// Callbacks are acknowledged before any other work. Handler errors and
// panics end here and are answered with a generic apology.
func (r *Router) Dispatch(ctx context.Context, ev *event.Event, resp event.Responder) (res event.Result) {
	if ev.Kind == event.KindCallback {
		if err := resp.Ack(ctx, ""); err != nil {
			logger.Warn(ctx, logger.CompTG, "callback.ack_fail", logger.Err(err))
		}
	}

	route := "unrouted"
	defer func() {
		if p := recover(); p != nil {
			logger.Error(ctx, logger.CompTG, "dispatch.panic",
				slog.String("status", "fail"),
				slog.String("handler", route),
				slog.String("err", fmt.Sprint(p)),
				slog.String("stack", string(debug.Stack())),
			)
			r.apologize(ctx, ev, resp)
			res = event.Result{Route: route, Outcome: event.OutcomeFail, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	var h event.HandlerFunc
	route, h = r.resolve(ev)
	if h == nil {
		logger.Debug(ctx, logger.CompTG, "dispatch.drop", slog.String("status", "skip"), slog.String("kind", ev.Kind.String()))
		return event.Result{Route: route, Outcome: event.OutcomeSkip}
	}

	outcome := event.OutcomeOK
	err := h(context.WithValue(ctx, outcomeKey{}, &outcome), ev, resp)
	if err != nil {
		r.apologize(ctx, ev, resp)
		return event.Result{Route: route, Outcome: event.OutcomeFail, Err: err}
	}
	return event.Result{Route: route, Outcome: outcome}
}

// resolve picks the handler of ev; a nil handler drops the event.
func (r *Router) resolve(ev *event.Event) (string, event.HandlerFunc) {
	if r.mentionTrigger(ev) {
		return flowRoute(flow.KindTaskFromMessage), r.protected(r.startFromMention)
	}

	st, active := r.convs.Get(ev.ChatUserID)
	active = active && st.ChatID == ev.ChatID
	if active {
		if in, ok := flow.InputFrom(ev); ok && r.engine.Accepts(st, in) {
			return flowRoute(st.Kind), r.flowHandler(st, r.advance(st, in))
		}
	}

	switch ev.Kind {
	case event.KindCommand:
		key, cmd, ok := r.reg.LookupCommand(ev.Command)
		if !ok {
			return "/" + ev.Command, nil
		}
		if !cmd.Scope.Allows(ev.ChatType) {
			return key, cmd.OutOfScope
		}
		return key, cmd.Handler
	case event.KindCallback:
		if h, route, ok := r.reg.MatchCallback(ev.Token); ok {
			return route, h
		}
		return "callback", nil
	case event.KindText:
		if active {
			return flowRoute(st.Kind), r.flowHandler(st, r.reprompt(st))
		}
	}
	return "text", nil
}

// mentionTrigger reports a plain mention of the bot in a group.
func (r *Router) mentionTrigger(ev *event.Event) bool {
	return ev.Kind == event.KindText && ev.ChatType.IsGroup() && ev.Mentioned && !ev.HasCommandMarker()
}

func flowRoute(k flow.Kind) string { return "flow:" + string(k) }

func (r *Router) apologize(ctx context.Context, ev *event.Event, resp event.Responder) {
	if ev.ChatID == 0 {
		return
	}
	if err := resp.Reply(ctx, event.View{Text: r.opts.Notices.Failure}); err != nil {
		logger.Warn(ctx, logger.CompTG, "dispatch.apology_fail", logger.Err(err))
	}
}
