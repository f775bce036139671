// Package bot routes classified Telegram events to the CRM handlers: menus,
// lookups, list and detail screens, and the conversation flows.
package bot

import (
	"context"
	"errors"
	"fmt"

	tg "github.com/m3rciful/crmbot/core/telegram"
	"github.com/m3rciful/crmbot/core/telegram/commands"
	"github.com/m3rciful/crmbot/core/telegram/event"
	"github.com/m3rciful/crmbot/internal/auth"
	"github.com/m3rciful/crmbot/internal/crm"
	"github.com/m3rciful/crmbot/internal/flow"
	"github.com/m3rciful/crmbot/internal/menu"
	"github.com/m3rciful/crmbot/internal/notify"
	"github.com/m3rciful/crmbot/internal/render"
)

// Deps are the collaborators of the Router.
type Deps struct {
	Auth   *auth.Service
	Repo   *crm.Repo
	Engine *flow.Engine
	Convs  flow.Store
	// Announcer posts deals moved to won; nil disables the announcement.
	Announcer *notify.Announcer
}

// Options tunes the Router.
type Options struct {
	// WebAppURL adds a web app button to the main menu when set.
	WebAppURL string
	// BotUsername is used to strip the bot mention from group messages.
	BotUsername func() string
	Notices     auth.Notices
}

// Router implements event.Dispatcher for the CRM bot.
type Router struct {
	reg      *tg.Registry
	guard    *auth.Guard
	auth     *auth.Service
	repo     *crm.Repo
	engine   *flow.Engine
	convs    flow.Store
	announce *notify.Announcer
	opts     Options
}

// New builds a Router and registers every command and callback route.
func New(deps Deps, opts Options) (*Router, error) {
	if deps.Auth == nil || deps.Repo == nil || deps.Engine == nil || deps.Convs == nil {
		return nil, errors.New("bot: auth, repo, engine and conversation store are required")
	}
	if opts.Notices == (auth.Notices{}) {
		opts.Notices = auth.DefaultNotices()
	}
	r := &Router{
		reg:      tg.NewRegistry(),
		guard:    auth.NewGuard(deps.Auth, opts.Notices),
		auth:     deps.Auth,
		repo:     deps.Repo,
		engine:   deps.Engine,
		convs:    deps.Convs,
		announce: deps.Announcer,
		opts:     opts,
	}
	if err := r.register(); err != nil {
		return nil, err
	}
	return r, nil
}

// Registry exposes the routes, e.g. to publish the command list.
func (r *Router) Registry() *tg.Registry { return r.reg }

func (r *Router) register() error {
	p := r.protected
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"start", commands.Command{Handler: r.cmdStart, Description: "Sign in or open the menu", Scope: commands.ScopePrivate, OutOfScope: r.privateOnly}},
		{"menu", commands.Command{Handler: p(r.cmdMenu), Description: "Open the main menu"}},
		{"task", commands.Command{Handler: p(r.cmdTask), Description: "Find a task by id or title"}},
		{"deal", commands.Command{Handler: p(r.cmdDeal), Description: "Find a deal by id or title"}},
		{"meeting", commands.Command{Handler: p(r.cmdMeeting), Description: "Find a meeting by id or title"}},
		{"document", commands.Command{Handler: p(r.cmdDocument), Description: "Find a document by id or title", Aliases: []string{"doc"}}},
		{"group_id", commands.Command{Handler: r.cmdGroupID, Description: "Show the id of this group", Scope: commands.ScopeGroup, OutOfScope: r.groupOnly}},
		{"cancel", commands.Command{Handler: r.cmdCancel, Description: "Cancel the current action"}},
		{"logout", commands.Command{Handler: r.cmdLogout, Description: "Sign out"}},
		{"help", commands.Command{Handler: r.cmdHelp, Description: "Show help"}},
	}
	for _, c := range cmds {
		if err := r.reg.RegisterCommand(c.name, c.cmd); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}

	exact := []struct {
		token string
		h     event.HandlerFunc
	}{
		{menu.Main, p(r.showMain)},
		{menu.Tasks, p(r.showTasks)},
		{menu.Deals, p(r.showDeals)},
		{menu.Settings, p(r.showSettings)},
		{menu.Profile, p(r.showProfile)},
		{menu.Help, r.showHelp},
		{menu.TasksToday, p(r.taskFilter(crm.FilterToday))},
		{menu.TasksOverdue, p(r.taskFilter(crm.FilterOverdue))},
		{menu.TaskCreate, p(r.entry(flow.KindCreatingTask))},
		{menu.DealCreate, p(r.entry(flow.KindCreatingDeal))},
		{menu.GroupChat, p(r.entry(flow.KindSettingGroupID))},
		{menu.DealsAll, p(r.dealsAll)},
		{menu.DealsMine, p(r.dealsMine)},
		{menu.Notification, p(r.showPrefs)},
		{flow.TokenCancel, r.staleFlow},
		{flow.TokenSkip, r.staleFlow},
	}
	for _, e := range exact {
		if err := r.reg.HandleExact(e.token, e.h); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}

	// Narrow prefixes first: "task:" would capture the status tokens.
	prefixes := []struct {
		prefix string
		h      event.HandlerFunc
	}{
		{menu.TaskListPrefix, p(r.taskListPage)},
		{menu.TaskStatusPrefix, p(r.taskStatuses)},
		{menu.TaskSetStatusPrefix, p(r.taskSetStatus)},
		{menu.TaskPrefix, p(r.taskDetail)},
		{menu.DealStagePrefix, p(r.dealStages)},
		{menu.DealSetStagePrefix, p(r.dealSetStage)},
		{menu.DealPrefix, p(r.dealDetail)},
		{menu.TogglePrefix, p(r.togglePref)},
		{flow.PickPrefix, r.staleFlow},
	}
	for _, e := range prefixes {
		if err := r.reg.HandlePrefix(e.prefix, e.h); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}
	return nil
}

type outcomeKey struct{}

// setOutcome overrides the outcome Dispatch reports for the current event.
func setOutcome(ctx context.Context, outcome string) {
	if p, ok := ctx.Value(outcomeKey{}).(*string); ok {
		*p = outcome
	}
}

// protected runs h behind the auth guard and reports guard rejections as
// OutcomeRejected.
func (r *Router) protected(h auth.ProtectedFunc) event.HandlerFunc {
	return func(ctx context.Context, ev *event.Event, resp event.Responder) error {
		ran := false
		err := r.guard.Protect(func(ctx context.Context, ev *event.Event, resp event.Responder, userID string) error {
			ran = true
			return h(ctx, ev, resp, userID)
		})(ctx, ev, resp)
		if !ran {
			setOutcome(ctx, event.OutcomeRejected)
		}
		return err
	}
}

// directory loads the users and funnels referenced by cards.
func (r *Router) directory(ctx context.Context) (render.Directory, error) {
	users, err := r.repo.Users(ctx)
	if err != nil {
		return render.Directory{}, err
	}
	funnels, err := r.repo.Funnels(ctx)
	if err != nil {
		return render.Directory{}, err
	}
	return render.NewDirectory(users, funnels), nil
}

func (r *Router) botUsername() string {
	if r.opts.BotUsername == nil {
		return ""
	}
	return r.opts.BotUsername()
}
