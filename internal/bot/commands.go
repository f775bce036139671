package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/crmbot/core/telegram/event"
	"github.com/m3rciful/crmbot/internal/auth"
	"github.com/m3rciful/crmbot/internal/flow"
	"github.com/m3rciful/crmbot/internal/menu"
	"github.com/m3rciful/crmbot/internal/render"
)

const helpText = "📖 Help\n\n" +
	"/start - sign in\n" +
	"/menu - open the main menu\n" +
	"/task <id or title> - find a task\n" +
	"/deal <id or title> - find a deal\n" +
	"/meeting <id or title> - find a meeting\n" +
	"/document <id or title> - find a document\n" +
	"/group_id - show the id of a group chat\n" +
	"/cancel - cancel the current action\n" +
	"/logout - sign out\n\n" +
	"Mention me in the team group to turn a message into a task."

func (r *Router) cmdStart(ctx context.Context, ev *event.Event, resp event.Responder) error {
	_, err := r.auth.Resolve(ctx, ev.ChatUserID)
	switch {
	case err == nil:
		return resp.Reply(ctx, event.View{
			Text:     "You are already signed in. Use the menu below.",
			Keyboard: menu.MainMenu(r.opts.WebAppURL),
		})
	case errors.Is(err, auth.ErrNoSession), errors.Is(err, auth.ErrDeactivated):
		return r.startFlow(ctx, ev, resp, flow.KindLoggingIn, nil,
			"👋 Welcome to the task management bot!\n\nPlease sign in to continue.")
	}
	return err
}

func (r *Router) privateOnly(ctx context.Context, _ *event.Event, resp event.Responder) error {
	setOutcome(ctx, event.OutcomeRejected)
	return resp.Reply(ctx, event.View{Text: "Open a private chat with me to sign in."})
}

func (r *Router) groupOnly(ctx context.Context, _ *event.Event, resp event.Responder) error {
	setOutcome(ctx, event.OutcomeRejected)
	return resp.Reply(ctx, event.View{Text: "This command only works in group chats."})
}

func (r *Router) cmdLogout(ctx context.Context, ev *event.Event, resp event.Responder) error {
	r.auth.Logout(ev.ChatUserID)
	r.convs.Delete(ev.ChatUserID)
	return resp.Reply(ctx, event.View{Text: "You have signed out. Use /start to sign in again."})
}

func (r *Router) cmdHelp(ctx context.Context, _ *event.Event, resp event.Responder) error {
	return resp.Reply(ctx, event.View{Text: helpText})
}

// cmdCancel runs only when no conversation of this chat took /cancel as
// input; a conversation left open in another chat is dropped too.
func (r *Router) cmdCancel(ctx context.Context, ev *event.Event, resp event.Responder) error {
	if _, ok := r.convs.Get(ev.ChatUserID); ok {
		r.convs.Delete(ev.ChatUserID)
		setOutcome(ctx, event.OutcomeCancelled)
		return resp.Reply(ctx, event.View{Text: cancelledText})
	}
	setOutcome(ctx, event.OutcomeSkip)
	return resp.Reply(ctx, event.View{Text: "Nothing to cancel."})
}

func (r *Router) cmdGroupID(ctx context.Context, ev *event.Event, resp event.Responder) error {
	return resp.Reply(ctx, event.View{
		Text: fmt.Sprintf("💬 The id of this chat is <code>%d</code>.\nEnter it under Settings → Group chat.", ev.ChatID),
		HTML: true,
	})
}

func (r *Router) cmdMenu(ctx context.Context, _ *event.Event, resp event.Responder, _ string) error {
	return resp.Reply(ctx, event.View{Text: "🏠 Main menu", Keyboard: menu.MainMenu(r.opts.WebAppURL)})
}

// usage answers a lookup command sent without a query.
func usage(ctx context.Context, resp event.Responder, name string) error {
	setOutcome(ctx, event.OutcomeRejected)
	return resp.Reply(ctx, event.View{Text: fmt.Sprintf("Usage: /%s <id or title>", name)})
}

func notFound(ctx context.Context, resp event.Responder, kind, q string) error {
	setOutcome(ctx, event.OutcomeSkip)
	return resp.Reply(ctx, event.View{Text: fmt.Sprintf("🔎 No %s matches %q.", kind, q)})
}

func (r *Router) cmdTask(ctx context.Context, ev *event.Event, resp event.Responder, _ string) error {
	q := strings.TrimSpace(ev.Args)
	if q == "" {
		return usage(ctx, resp, "task")
	}
	m, err := r.repo.FindTasks(ctx, q)
	if err != nil {
		return err
	}
	switch m.Total {
	case 0:
		return notFound(ctx, resp, "task", q)
	case 1:
		return r.sendTask(ctx, resp, m.Items[0], "")
	}
	labels, tokens := make([]string, len(m.Items)), make([]string, len(m.Items))
	for i, t := range m.Items {
		labels[i], tokens[i] = t.Title, menu.TaskDetail(t.ID)
	}
	return resp.Reply(ctx, event.View{
		Text:     render.Choices("tasks", labels, m.Total),
		Keyboard: menu.Pick(labels, tokens),
		HTML:     true,
	})
}

func (r *Router) cmdDeal(ctx context.Context, ev *event.Event, resp event.Responder, _ string) error {
	q := strings.TrimSpace(ev.Args)
	if q == "" {
		return usage(ctx, resp, "deal")
	}
	m, err := r.repo.FindDeals(ctx, q)
	if err != nil {
		return err
	}
	switch m.Total {
	case 0:
		return notFound(ctx, resp, "deal", q)
	case 1:
		return r.sendDeal(ctx, resp, m.Items[0], "")
	}
	labels, tokens := make([]string, len(m.Items)), make([]string, len(m.Items))
	for i, d := range m.Items {
		labels[i], tokens[i] = d.DisplayTitle(), menu.DealDetail(d.ID)
	}
	return resp.Reply(ctx, event.View{
		Text:     render.Choices("deals", labels, m.Total),
		Keyboard: menu.Pick(labels, tokens),
		HTML:     true,
	})
}

func (r *Router) cmdMeeting(ctx context.Context, ev *event.Event, resp event.Responder, _ string) error {
	q := strings.TrimSpace(ev.Args)
	if q == "" {
		return usage(ctx, resp, "meeting")
	}
	m, err := r.repo.FindMeetings(ctx, q)
	if err != nil {
		return err
	}
	switch m.Total {
	case 0:
		return notFound(ctx, resp, "meeting", q)
	case 1:
		dir, err := r.directory(ctx)
		if err != nil {
			return err
		}
		return resp.Reply(ctx, event.View{Text: render.Meeting(m.Items[0], dir), HTML: true})
	}
	labels := make([]string, len(m.Items))
	for i, mt := range m.Items {
		labels[i] = strings.TrimSpace(mt.Title + " " + render.Day(mt.Date))
	}
	return resp.Reply(ctx, event.View{Text: render.Choices("meetings", labels, m.Total), HTML: true})
}

func (r *Router) cmdDocument(ctx context.Context, ev *event.Event, resp event.Responder, _ string) error {
	q := strings.TrimSpace(ev.Args)
	if q == "" {
		return usage(ctx, resp, "document")
	}
	m, err := r.repo.FindDocs(ctx, q)
	if err != nil {
		return err
	}
	switch m.Total {
	case 0:
		return notFound(ctx, resp, "document", q)
	case 1:
		dir, err := r.directory(ctx)
		if err != nil {
			return err
		}
		return resp.Reply(ctx, event.View{Text: render.Doc(m.Items[0], dir), HTML: true})
	}
	labels := make([]string, len(m.Items))
	for i, d := range m.Items {
		labels[i] = d.Title
	}
	return resp.Reply(ctx, event.View{Text: render.Choices("documents", labels, m.Total), HTML: true})
}
