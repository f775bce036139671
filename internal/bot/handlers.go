package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/crmbot/core/logger"
	"github.com/m3rciful/crmbot/core/telegram/callbacks"
	"github.com/m3rciful/crmbot/core/telegram/event"
	"github.com/m3rciful/crmbot/internal/auth"
	"github.com/m3rciful/crmbot/internal/crm"
	"github.com/m3rciful/crmbot/internal/menu"
	"github.com/m3rciful/crmbot/internal/render"
)

// dealListLimit caps the buttons of a deal list.
const dealListLimit = 20

func (r *Router) showMain(ctx context.Context, _ *event.Event, resp event.Responder, _ string) error {
	return resp.Render(ctx, event.View{Text: "🏠 Main menu", Keyboard: menu.MainMenu(r.opts.WebAppURL)})
}

func (r *Router) showTasks(ctx context.Context, _ *event.Event, resp event.Responder, _ string) error {
	return resp.Render(ctx, event.View{Text: "📋 Tasks", Keyboard: menu.TasksMenu()})
}

func (r *Router) showDeals(ctx context.Context, _ *event.Event, resp event.Responder, _ string) error {
	return resp.Render(ctx, event.View{Text: "🎯 Deals", Keyboard: menu.DealsMenu()})
}

func (r *Router) showSettings(ctx context.Context, _ *event.Event, resp event.Responder, _ string) error {
	return resp.Render(ctx, event.View{Text: "⚙️ Settings", Keyboard: menu.SettingsMenu()})
}

func (r *Router) showHelp(ctx context.Context, _ *event.Event, resp event.Responder) error {
	return resp.Render(ctx, event.View{Text: helpText, Keyboard: menu.Back(menu.Main)})
}

func (r *Router) showProfile(ctx context.Context, _ *event.Event, resp event.Responder, userID string) error {
	u, err := r.repo.User(ctx, userID)
	if err != nil {
		return err
	}
	return resp.Render(ctx, event.View{Text: render.Profile(u), Keyboard: menu.Back(menu.Main), HTML: true})
}

// expired answers a malformed or outdated button.
func expired(ctx context.Context, resp event.Responder, back string) error {
	setOutcome(ctx, event.OutcomeSkip)
	return resp.Render(ctx, event.View{Text: expiredText, Keyboard: menu.Back(back)})
}

func missing(ctx context.Context, resp event.Responder, text, back string) error {
	setOutcome(ctx, event.OutcomeSkip)
	return resp.Render(ctx, event.View{Text: text, Keyboard: menu.Back(back)})
}

// --- tasks ---

func (r *Router) taskFilter(f crm.TaskFilter) auth.ProtectedFunc {
	return func(ctx context.Context, _ *event.Event, resp event.Responder, userID string) error {
		return r.taskList(ctx, resp, userID, f, 0)
	}
}

func (r *Router) taskListPage(ctx context.Context, ev *event.Event, resp event.Responder, userID string) error {
	f, page, ok := menu.ParseTaskList(ev.Token)
	if !ok {
		return expired(ctx, resp, menu.Tasks)
	}
	return r.taskList(ctx, resp, userID, f, page)
}

// taskList renders one page of the user's tasks; pages past the end show
// the last one.
func (r *Router) taskList(ctx context.Context, resp event.Responder, userID string, f crm.TaskFilter, page int) error {
	tasks, err := r.repo.UserTasks(ctx, userID, f)
	if err != nil {
		return err
	}
	total := len(tasks)
	pages := (total + menu.PageSize - 1) / menu.PageSize
	if page >= pages {
		page = max(pages-1, 0)
	}
	lo := min(page*menu.PageSize, total)
	hi := min(lo+menu.PageSize, total)
	shown := tasks[lo:hi]

	heading := fmt.Sprintf("📋 All tasks (%d)", total)
	switch f {
	case crm.FilterToday:
		heading = fmt.Sprintf("📅 Tasks for today (%d)", total)
	case crm.FilterOverdue:
		heading = fmt.Sprintf("⚠️ Overdue tasks (%d)", total)
	}
	return resp.Render(ctx, event.View{
		Text:     render.TaskList(heading, shown, page, pages, r.repo.Calendar().Today()),
		Keyboard: menu.TaskListKeyboard(shown, f, page, total),
		HTML:     true,
	})
}

func (r *Router) taskDetail(ctx context.Context, ev *event.Event, resp event.Responder, _ string) error {
	id := callbacks.Arg(ev.Token, menu.TaskPrefix)
	t, err := r.repo.Task(ctx, id)
	if errors.Is(err, crm.ErrNotFound) {
		return missing(ctx, resp, "❌ Task not found.", menu.Tasks)
	}
	if err != nil {
		return err
	}
	return r.sendTask(ctx, resp, t, "")
}

// sendTask renders a task card, preceded by note when set.
func (r *Router) sendTask(ctx context.Context, resp event.Responder, t crm.Task, note string) error {
	dir, err := r.directory(ctx)
	if err != nil {
		return err
	}
	text := render.Task(t, dir)
	if note != "" {
		text = note + "\n\n" + text
	}
	return resp.Render(ctx, event.View{Text: text, Keyboard: menu.TaskActions(t.ID), HTML: true})
}

func (r *Router) taskStatuses(ctx context.Context, ev *event.Event, resp event.Responder, _ string) error {
	id := callbacks.Arg(ev.Token, menu.TaskStatusPrefix)
	statuses, err := r.repo.Statuses(ctx)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		return missing(ctx, resp, "❌ No statuses are configured.", menu.TaskDetail(id))
	}
	return resp.Render(ctx, event.View{Text: "📊 Choose the new status:", Keyboard: menu.Statuses(id, statuses)})
}

func (r *Router) taskSetStatus(ctx context.Context, ev *event.Event, resp event.Responder, _ string) error {
	parts, ok := callbacks.Args(ev.Token, menu.TaskSetStatusPrefix, 2)
	if !ok {
		return expired(ctx, resp, menu.Tasks)
	}
	t, err := r.repo.SetTaskStatus(ctx, parts[0], parts[1])
	if errors.Is(err, crm.ErrNotFound) {
		return missing(ctx, resp, "❌ Task or status not found.", menu.Tasks)
	}
	if err != nil {
		return err
	}
	return r.sendTask(ctx, resp, t, "✅ Status changed to "+render.Escape(t.Status)+".")
}

// --- deals ---

func (r *Router) dealsAll(ctx context.Context, _ *event.Event, resp event.Responder, _ string) error {
	deals, err := r.repo.Deals(ctx)
	if err != nil {
		return err
	}
	return r.dealList(ctx, resp, "🎯 All deals", deals)
}

func (r *Router) dealsMine(ctx context.Context, _ *event.Event, resp event.Responder, userID string) error {
	deals, err := r.repo.UserDeals(ctx, userID)
	if err != nil {
		return err
	}
	return r.dealList(ctx, resp, "👤 My deals", deals)
}

func (r *Router) dealList(ctx context.Context, resp event.Responder, heading string, deals []crm.Deal) error {
	if len(deals) == 0 {
		return resp.Render(ctx, event.View{Text: "📭 No deals.", Keyboard: menu.DealsMenu()})
	}
	text := fmt.Sprintf("%s (%d):", heading, len(deals))
	if len(deals) > dealListLimit {
		text += fmt.Sprintf("\nShowing the first %d.", dealListLimit)
		deals = deals[:dealListLimit]
	}
	return resp.Render(ctx, event.View{Text: text, Keyboard: menu.DealList(deals)})
}

func (r *Router) dealDetail(ctx context.Context, ev *event.Event, resp event.Responder, _ string) error {
	id := callbacks.Arg(ev.Token, menu.DealPrefix)
	d, err := r.repo.Deal(ctx, id)
	if errors.Is(err, crm.ErrNotFound) {
		return missing(ctx, resp, "❌ Deal not found.", menu.Deals)
	}
	if err != nil {
		return err
	}
	return r.sendDeal(ctx, resp, d, "")
}

// sendDeal renders a deal card, preceded by note when set.
func (r *Router) sendDeal(ctx context.Context, resp event.Responder, d crm.Deal, note string) error {
	dir, err := r.directory(ctx)
	if err != nil {
		return err
	}
	var client *crm.Client
	if d.ClientID != "" {
		c, err := r.repo.Client(ctx, d.ClientID)
		switch {
		case err == nil:
			client = &c
		case !errors.Is(err, crm.ErrNotFound):
			return err
		}
	}
	text := render.Deal(d, client, dir)
	if note != "" {
		text = note + "\n\n" + text
	}
	return resp.Render(ctx, event.View{Text: text, Keyboard: menu.DealActions(d.ID), HTML: true})
}

func (r *Router) dealStages(ctx context.Context, ev *event.Event, resp event.Responder, _ string) error {
	id := callbacks.Arg(ev.Token, menu.DealStagePrefix)
	d, err := r.repo.Deal(ctx, id)
	if errors.Is(err, crm.ErrNotFound) {
		return missing(ctx, resp, "❌ Deal not found.", menu.Deals)
	}
	if err != nil {
		return err
	}
	if d.FunnelID == "" {
		return missing(ctx, resp, "❌ The deal has no sales funnel.", menu.DealDetail(id))
	}
	f, err := r.repo.Funnel(ctx, d.FunnelID)
	if err != nil && !errors.Is(err, crm.ErrNotFound) {
		return err
	}
	if len(f.Stages) == 0 {
		return missing(ctx, resp, "❌ The funnel has no stages.", menu.DealDetail(id))
	}
	return resp.Render(ctx, event.View{Text: "📍 Choose the new stage:", Keyboard: menu.Stages(id, f.Stages)})
}

// dealSetStage moves a deal; entering the won stage is announced in the
// group chat right away.
func (r *Router) dealSetStage(ctx context.Context, ev *event.Event, resp event.Responder, _ string) error {
	parts, ok := callbacks.Args(ev.Token, menu.DealSetStagePrefix, 2)
	if !ok {
		return expired(ctx, resp, menu.Deals)
	}
	d, becameWon, err := r.repo.SetDealStage(ctx, parts[0], parts[1])
	if errors.Is(err, crm.ErrNotFound) {
		return missing(ctx, resp, "❌ Deal not found.", menu.Deals)
	}
	if err != nil {
		return err
	}
	if becameWon && r.announce != nil {
		r.announceWon(ctx, d)
	}
	return r.sendDeal(ctx, resp, d, "✅ Stage changed.")
}

func (r *Router) announceWon(ctx context.Context, d crm.Deal) {
	prefs, err := r.repo.Prefs(ctx)
	if err == nil {
		_, err = r.announce.AnnounceWon(ctx, d, prefs)
	}
	if err != nil {
		logger.Warn(ctx, logger.CompNotify, "deal.won.announce_fail", slog.String("deal", d.ID), logger.Err(err))
	}
}

// --- settings ---

func (r *Router) showPrefs(ctx context.Context, _ *event.Event, resp event.Responder, _ string) error {
	p, err := r.repo.Prefs(ctx)
	if err != nil {
		return err
	}
	return r.renderPrefs(ctx, resp, p)
}

func (r *Router) togglePref(ctx context.Context, ev *event.Event, resp event.Responder, _ string) error {
	c, ch, ok := menu.ParseToggle(ev.Token)
	if !ok {
		return expired(ctx, resp, menu.Settings)
	}
	p, err := r.repo.TogglePref(ctx, c, ch)
	if err != nil {
		return err
	}
	return r.renderPrefs(ctx, resp, p)
}

func (r *Router) renderPrefs(ctx context.Context, resp event.Responder, p crm.Prefs) error {
	return resp.Render(ctx, event.View{
		Text:     render.Prefs(p),
		Keyboard: menu.PrefsKeyboard(p, render.CategoryLabel),
		HTML:     true,
	})
}
