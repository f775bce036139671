package router

import (
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/crmbot/core/telegram"
	"github.com/m3rciful/crmbot/core/telegram/event"
	tghelpers "github.com/m3rciful/crmbot/core/telegram/helpers"
)

// Options configures the update routes.
type Options struct {
	// BotUsername returns the bot's username once the runtime knows it.
	BotUsername func() string
}

// UpdateRoutes binds text messages and callback presses to d. Commands reach
// tele.OnText as well because no per-command endpoints are registered.
func UpdateRoutes(d event.Dispatcher, opts Options) []tg.Route {
	username := func() string {
		if opts.BotUsername == nil {
			return ""
		}
		return opts.BotUsername()
	}
	handler := func(c tele.Context) error {
		start := time.Now()
		ctx := tghelpers.BuildContext(c)
		ev, ok := Classify(c, username())
		if !ok {
			logHandlerSummary(ctx, c, nil, event.Result{Route: "ignored", Outcome: event.OutcomeSkip}, start)
			return nil
		}
		res := d.Dispatch(ctx, ev, NewResponder(c))
		logHandlerSummary(tghelpers.WithHandler(c, res.Route), c, ev, res, start)
		return nil
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: handler},
		{Endpoint: tele.OnCallback, Handler: handler},
	}
}
