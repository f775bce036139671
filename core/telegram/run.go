package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/crmbot/core/config"
	"github.com/m3rciful/crmbot/core/logger"
	tgsender "github.com/m3rciful/crmbot/core/telegram/sender"
)

// ErrAnotherInstance is returned when Telegram reports a concurrent
// getUpdates consumer for the same token.
var ErrAnotherInstance = errors.New("telegram: another bot instance is polling updates")

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Pusher     *tgsender.Pusher
	Registry   *Registry
}

// BotUsername returns the username reported by getMe, or "".
func (rt Runtime) BotUsername() string {
	if rt.Bot == nil || rt.Bot.Me == nil {
		return ""
	}
	return rt.Bot.Me.Username
}

// RunTelegram composes and runs a Telegram bot until the provided context is
// done or Telegram reports that another instance consumes the same updates.
// Updates are handled one at a time in arrival order.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}

	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	fatal := make(chan error, 1)
	poller := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
		},
		OnConflict: func(err error) {
			select {
			case fatal <- fmt.Errorf("%w: %v", ErrAnotherInstance, err):
			default:
			}
		},
		OnError: func(err error) {
			logger.Warn(ctx, logger.CompTG, "poll.fail", logger.Err(err))
		},
	})

	settings := tele.Settings{
		Token:       cfg.Telegram.Token,
		Poller:      poller,
		Synchronous: true,
		Client: BuildHTTPClient(HTTPClientOptions{
			LongPollTimeout: time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second,
		}),
		OnError: func(err error, c tele.Context) {
			logger.Error(ctx, logger.CompTG, "tg.error", logger.Err(err))
		},
	}

	buildStart := time.Now()
	bot, err := tele.NewBot(settings)
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	buildTook := time.Since(buildStart)

	switch p := poller.(type) {
	case *tele.Webhook:
		logger.Info(ctx, logger.CompTG, "mode",
			slog.String("mode", "webhook"),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", logger.RoundMS(buildTook)),
		)
	case *ExclusivePoller:
		logger.Info(ctx, logger.CompTG, "mode",
			slog.String("mode", "polling"),
			slog.Duration("timeout", p.Timeout),
			slog.Duration("duration", logger.RoundMS(buildTook)),
		)
		if !opts.DisableWebhookCleanup {
			if err := bot.RemoveWebhook(false); err != nil {
				logger.Warn(ctx, logger.CompTG, "delete_webhook", slog.String("status", "fail"), logger.Err(err))
			} else {
				logger.Info(ctx, logger.CompTG, "delete_webhook", slog.String("status", "ok"))
			}
		}
		if !cfg.Telegram.SkipInstanceProbe {
			if err := probeExclusive(bot); err != nil {
				return err
			}
		}
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(dispatcherOptions(cfg.Push, opts.DispatcherOptions))
	}

	rt := Runtime{
		Bot:        bot,
		Dispatcher: dispatcher,
		Pusher:     tgsender.NewPusher(bot, dispatcher),
		Registry:   reg,
	}

	for _, mw := range opts.Middlewares {
		if mw.Use == nil {
			continue
		}
		bot.Use(mw.Use)
	}

	for _, route := range opts.Routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		bot.Handle(route.Endpoint, route.Handler)
	}

	InitBotCommands(bot, reg)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			dispatcher.Close()
			return err
		}
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case runErr = <-fatal:
		logger.Error(ctx, logger.CompTG, "tg.conflict", logger.Err(runErr))
	case <-runDone:
	}
	bot.Stop()
	<-runDone

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}

	dispatcher.Close()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return stopErr
}

// IsConflict reports whether err is Telegram's 409 answer to concurrent
// getUpdates consumers.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) && apiErr.Code == 409 {
		return true
	}
	return strings.Contains(err.Error(), "terminated by other getUpdates")
}

// probeExclusive issues a non-blocking getUpdates so that a second instance
// fails at startup rather than inside the poll loop.
func probeExclusive(bot *tele.Bot) error {
	_, err := bot.Raw("getUpdates", map[string]any{"limit": 1, "timeout": 0})
	if err == nil {
		return nil
	}
	if IsConflict(err) {
		return fmt.Errorf("%w: %v", ErrAnotherInstance, err)
	}
	logger.Warn(context.Background(), logger.CompTG, "instance_probe", slog.String("status", "fail"), logger.Err(err))
	return nil
}

func dispatcherOptions(push coreconfig.PushConfig, base tgsender.Options) tgsender.Options {
	if base.Workers <= 0 {
		base.Workers = push.Workers
	}
	if base.MaxRetries <= 0 {
		base.MaxRetries = push.Retries
	}
	if base.Limiter == nil && push.PerSecond > 0 {
		base.Limiter = rate.NewLimiter(rate.Limit(push.PerSecond), max(push.Burst, 1))
	}
	return base
}
