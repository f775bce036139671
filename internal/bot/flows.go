package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/m3rciful/crmbot/core/logger"
	"github.com/m3rciful/crmbot/core/telegram/event"
	"github.com/m3rciful/crmbot/core/telegram/router"
	"github.com/m3rciful/crmbot/internal/auth"
	"github.com/m3rciful/crmbot/internal/crm"
	"github.com/m3rciful/crmbot/internal/flow"
	"github.com/m3rciful/crmbot/internal/menu"
	"github.com/m3rciful/crmbot/internal/render"
)

const (
	expiredText   = "⌛ This action has expired."
	cancelledText = "❌ Cancelled."
)

// flowHandler puts h behind the guard when the conversation kind needs a
// signed-in user.
func (r *Router) flowHandler(st flow.State, h auth.ProtectedFunc) event.HandlerFunc {
	if r.engine.Protected(st.Kind) {
		return r.protected(h)
	}
	return func(ctx context.Context, ev *event.Event, resp event.Responder) error {
		return h(ctx, ev, resp, "")
	}
}

// entry starts a conversation from a menu button.
func (r *Router) entry(kind flow.Kind) auth.ProtectedFunc {
	return func(ctx context.Context, ev *event.Event, resp event.Responder, _ string) error {
		return r.startFlow(ctx, ev, resp, kind, nil, "")
	}
}

// startFlow replaces any conversation of the chat user with a new one of
// kind and sends its first prompt, preceded by intro when set.
func (r *Router) startFlow(ctx context.Context, ev *event.Event, resp event.Responder, kind flow.Kind, seed map[string]string, intro string) error {
	st, p, err := r.engine.Start(ctx, kind, ev.ChatID, seed)
	if err != nil {
		return fmt.Errorf("start %s: %w", kind, err)
	}
	r.convs.Put(ev.ChatUserID, st)
	logger.Debug(ctx, logger.CompFlow, "flow.start", slog.String("flow", string(kind)), slog.String("step", string(st.Step)))
	v := p.View()
	if intro != "" {
		v.Text = intro + "\n\n" + v.Text
	}
	return resp.Render(ctx, v)
}

// startFromMention turns a group message mentioning the bot into a task
// draft.
func (r *Router) startFromMention(ctx context.Context, ev *event.Event, resp event.Responder, _ string) error {
	body := router.StripMention(ev.Text, r.botUsername())
	if body == "" {
		setOutcome(ctx, event.OutcomeSkip)
		return resp.Reply(ctx, event.View{Text: "Mention me together with the message text to turn it into a task."})
	}
	return r.startFlow(ctx, ev, resp, flow.KindTaskFromMessage, map[string]string{flow.FieldBody: body}, "")
}

// advance feeds in to the conversation st.
func (r *Router) advance(st flow.State, in flow.Input) auth.ProtectedFunc {
	return func(ctx context.Context, ev *event.Event, resp event.Responder, userID string) error {
		res, err := r.engine.Advance(ctx, st, in)
		if err != nil {
			r.convs.Delete(ev.ChatUserID)
			return fmt.Errorf("advance %s: %w", st.Kind, err)
		}
		logger.Debug(ctx, logger.CompFlow, "flow.advance",
			slog.String("flow", string(st.Kind)),
			slog.String("step", string(st.Step)),
			slog.String("outcome", res.Outcome.String()),
		)

		switch res.Outcome {
		case flow.Cancelled:
			r.convs.Delete(ev.ChatUserID)
			setOutcome(ctx, event.OutcomeCancelled)
			return resp.Render(ctx, event.View{Text: cancelledText})
		case flow.Rejected:
			setOutcome(ctx, event.OutcomeRejected)
			return resp.Render(ctx, res.Prompt.View())
		case flow.Advanced:
			r.convs.Put(ev.ChatUserID, res.State)
			return resp.Render(ctx, res.Prompt.View())
		}

		r.convs.Delete(ev.ChatUserID)
		return r.commit(ctx, ev, resp, userID, res.State)
	}
}

// reprompt asks the current step again after input of the wrong shape.
func (r *Router) reprompt(st flow.State) auth.ProtectedFunc {
	return func(ctx context.Context, _ *event.Event, resp event.Responder, _ string) error {
		p, err := r.engine.Prompt(ctx, st)
		if err != nil {
			return fmt.Errorf("prompt %s: %w", st.Kind, err)
		}
		setOutcome(ctx, event.OutcomeRejected)
		hint := "⚠️ Please answer the question below."
		if len(p.Options) > 0 {
			hint = "⚠️ Please use the buttons below."
		}
		v := p.View()
		v.Text = hint + "\n\n" + v.Text
		return resp.Reply(ctx, v)
	}
}

// staleFlow answers conversation buttons that no longer match the
// conversation of the chat user.
func (r *Router) staleFlow(ctx context.Context, ev *event.Event, resp event.Responder) error {
	setOutcome(ctx, event.OutcomeSkip)
	if st, ok := r.convs.Get(ev.ChatUserID); ok && st.ChatID == ev.ChatID {
		return r.flowHandler(st, r.reprompt(st))(ctx, ev, resp)
	}
	return resp.Render(ctx, event.View{Text: expiredText})
}

// commit performs the action of a finished conversation. The conversation
// is already gone; failures are not retried.
func (r *Router) commit(ctx context.Context, ev *event.Event, resp event.Responder, userID string, st flow.State) error {
	logger.Info(ctx, logger.CompFlow, "flow.commit", slog.String("flow", string(st.Kind)))
	switch st.Kind {
	case flow.KindLoggingIn:
		return r.commitLogin(ctx, ev, resp, st)
	case flow.KindCreatingTask:
		today := r.repo.Calendar().Today()
		t, err := r.repo.CreateTask(ctx, crm.NewTask{
			Title:      st.Get(flow.FieldTitle),
			AssigneeID: userID,
			CreatedBy:  userID,
			Status:     crm.StatusNew,
			Priority:   crm.PriorityMedium,
			StartDate:  today,
			EndDate:    today,
			Source:     crm.SourceTelegram,
		})
		if err != nil {
			return err
		}
		return r.sendTask(ctx, resp, t, "✅ Task created.")
	case flow.KindCreatingDeal:
		d, err := r.repo.CreateDeal(ctx, crm.NewDeal{
			Title:       st.Get(flow.FieldTitle),
			Description: st.Get(flow.FieldDescription),
			FunnelID:    st.Get(flow.FieldFunnel),
			Stage:       st.Get(flow.FieldStage),
			AssigneeID:  userID,
		})
		if err != nil {
			return err
		}
		return r.sendDeal(ctx, resp, d, "✅ Deal created.")
	case flow.KindTaskFromMessage:
		t, err := r.repo.CreateTask(ctx, crm.NewTask{
			Title:       st.Get(flow.FieldTitle),
			Description: st.Get(flow.FieldBody),
			AssigneeID:  st.Get(flow.FieldAssignee),
			CreatedBy:   userID,
			Status:      crm.StatusNew,
			Priority:    crm.PriorityMedium,
			StartDate:   r.repo.Calendar().Today(),
			EndDate:     st.Get(flow.FieldDueDate),
			Source:      crm.SourceTelegram,
		})
		if err != nil {
			return err
		}
		dir, err := r.directory(ctx)
		if err != nil {
			return err
		}
		return resp.Render(ctx, event.View{
			Text: fmt.Sprintf("✅ Task created: <b>%s</b>\n👤 %s · 📅 %s",
				render.Escape(t.Title), render.Escape(dir.UserName(t.AssigneeID)), render.Day(t.EndDate)),
			HTML: true,
		})
	case flow.KindSettingGroupID:
		id, err := strconv.ParseInt(st.Get(flow.FieldChatID), 10, 64)
		if err != nil {
			return fmt.Errorf("group chat id: %w", err)
		}
		if err := r.repo.SetGroupChatID(ctx, id); err != nil {
			return err
		}
		return resp.Render(ctx, event.View{
			Text:     fmt.Sprintf("✅ Group chat set to <code>%d</code>.", id),
			Keyboard: menu.SettingsMenu(),
			HTML:     true,
		})
	}
	return fmt.Errorf("commit: %w: %s", flow.ErrUnknownKind, st.Kind)
}

// commitLogin authenticates; a failed attempt ends the conversation and the
// user starts over with /start.
func (r *Router) commitLogin(ctx context.Context, ev *event.Event, resp event.Responder, st flow.State) error {
	u, err := r.auth.Authenticate(ctx, ev.ChatUserID, st.Get(flow.FieldLogin), st.Get(flow.FieldPassword))
	if errors.Is(err, auth.ErrInvalidCredentials) {
		setOutcome(ctx, event.OutcomeRejected)
		return resp.Reply(ctx, event.View{Text: "❌ Wrong login or password.\nUse /start to try again."})
	}
	if err != nil {
		return err
	}
	return resp.Reply(ctx, event.View{
		Text:     fmt.Sprintf("✅ Signed in.\n\nWelcome, %s!", u.DisplayName()),
		Keyboard: menu.MainMenu(r.opts.WebAppURL),
	})
}
