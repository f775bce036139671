// Package app wires the CRM bot: configuration, backend store, ledger,
// router, poller and scheduler.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/crmbot/core/bootstrap"
	"github.com/m3rciful/crmbot/core/cmd"
	"github.com/m3rciful/crmbot/core/logger"
	coretelegram "github.com/m3rciful/crmbot/core/telegram"
	"github.com/m3rciful/crmbot/core/telegram/event"
	"github.com/m3rciful/crmbot/core/telegram/router"
	"github.com/m3rciful/crmbot/internal/auth"
	"github.com/m3rciful/crmbot/internal/bot"
	"github.com/m3rciful/crmbot/internal/crm"
	"github.com/m3rciful/crmbot/internal/digest"
	"github.com/m3rciful/crmbot/internal/flow"
	"github.com/m3rciful/crmbot/internal/notify"
	"github.com/m3rciful/crmbot/internal/store"
)

const stopTimeout = 10 * time.Second

// ErrNotStarted is returned by pushes attempted before the bot runtime is up.
var ErrNotStarted = errors.New("app: telegram runtime not started")

// App owns every long-lived component of the bot.
type App struct {
	cfg   *Config
	infra *bootstrap.Result

	store      store.Store
	closeStore func() error

	repo   *crm.Repo
	convs  *flow.MemoryStore
	router *bot.Router
	poller *notify.Poller
	sched  *digest.Scheduler

	rt     atomic.Pointer[coretelegram.Runtime]
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Bootstrap builds the App from a configuration produced by Load.
func Bootstrap(ctx context.Context, carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	return New(ctx, cfg)
}

// New initializes logging and the ledger database, opens the backend store
// and assembles the bot.
func New(ctx context.Context, cfg *Config) (*App, error) {
	infra, err := bootstrap.Run(ctx, bootstrap.Options{Config: &cfg.Config, Database: cfg.Ledger})
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, infra: infra}

	a.store, a.closeStore, err = openStore(ctx, cfg.Store)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}

	var ledger notify.Ledger = notify.NewMemoryLedger()
	if infra.DB != nil {
		ledger = notify.NewSQLLedger(infra.DB)
	}

	if err := a.assemble(ledger); err != nil {
		_ = a.Close()
		return nil, err
	}
	logger.Info(ctx, logger.CompApp, "bootstrap",
		slog.String("store", cfg.Store.Driver),
		slog.String("ledger", cfg.Ledger.Driver),
		slog.String("tz", cfg.Timezone),
	)
	return a, nil
}

func (a *App) assemble(ledger notify.Ledger) error {
	cfg := a.cfg
	cal := crm.NewCalendar(cfg.Location(), nil)
	a.repo = crm.NewRepo(a.store, cal)
	a.convs = flow.NewMemoryStore(time.Duration(cfg.Flow.TTLMinutes) * time.Minute)

	svc := auth.NewService(a.repo, auth.NewMemorySessions(), a.convs)
	engine := flow.NewEngine(flow.RepoLookup{Repo: a.repo}, flow.Options{
		Today:         cal.Today,
		AssigneeLimit: cfg.Flow.AssigneeLimit,
		Now:           cal.Now,
	})
	notices := auth.DefaultNotices()

	a.poller = notify.NewPoller(svc, a.repo, a, ledger, a.convs, notify.Options{
		Interval:          time.Duration(cfg.Poller.IntervalSeconds) * time.Second,
		FirstDelay:        time.Duration(cfg.Poller.FirstDelaySeconds) * time.Second,
		MeetingLead:       time.Duration(cfg.Poller.MeetingLeadMinutes) * time.Minute,
		DeactivatedNotice: notices.Deactivated,
	})

	r, err := bot.New(bot.Deps{
		Auth:      svc,
		Repo:      a.repo,
		Engine:    engine,
		Convs:     a.convs,
		Announcer: a.poller.Announcer(),
	}, bot.Options{
		WebAppURL:   cfg.WebAppURL,
		BotUsername: a.botUsername,
		Notices:     notices,
	})
	if err != nil {
		return fmt.Errorf("app: router: %w", err)
	}
	a.router = r

	a.sched, err = digest.NewScheduler(cfg.Location(), cfg.Schedule, digest.NewJobs(svc, a.repo, a, ledger))
	if err != nil {
		return fmt.Errorf("app: scheduler: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg StoreConfig) (store.Store, func() error, error) {
	if cfg.Driver == StoreMemory {
		logger.Warn(ctx, logger.CompStore, "store.memory", slog.String("note", "data is lost on restart"))
		return store.NewMemory(), func() error { return nil }, nil
	}
	fs, err := store.NewFirestore(ctx, store.FirestoreConfig{
		ProjectID:       cfg.ProjectID,
		CredentialsFile: cfg.CredentialsFile,
		Timeout:         time.Duration(cfg.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("app: %w", err)
	}
	return fs, fs.Close, nil
}

// TelegramRunOptions binds the router to the telebot runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := &a.cfg.Config
	return coretelegram.RunOptions{
		Config:      core,
		Registry:    a.router.Registry(),
		Middlewares: coretelegram.DefaultMiddlewares(core, onLimited),
		Routes:      router.UpdateRoutes(a.router, router.Options{BotUsername: a.botUsername}),
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt coretelegram.Runtime) error {
	a.rt.Store(&rt)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.poller.Run(runCtx)
	}()
	a.sched.Start()
	logger.Info(ctx, logger.CompApp, "workers.start", slog.Int("swept_convs", a.convs.Sweep()))
	return nil
}

func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	if err := a.sched.Stop(stopCtx); err != nil {
		return fmt.Errorf("app: scheduler stop: %w", err)
	}
	return nil
}

// Close releases the backend store and the ledger database.
func (a *App) Close() error {
	var errs []error
	if a.closeStore != nil {
		errs = append(errs, a.closeStore())
	}
	errs = append(errs, a.infra.Close())
	return errors.Join(errs...)
}

// Push queues v for chatID through the runtime's outbound dispatcher.
func (a *App) Push(ctx context.Context, chatID int64, v event.View) error {
	rt := a.rt.Load()
	if rt == nil || rt.Pusher == nil {
		return ErrNotStarted
	}
	return rt.Pusher.Push(ctx, chatID, v)
}

func (a *App) botUsername() string {
	rt := a.rt.Load()
	if rt == nil {
		return ""
	}
	return rt.BotUsername()
}

// onLimited stops the button spinner of a throttled callback.
func onLimited(c tele.Context) error {
	if c.Callback() == nil {
		return nil
	}
	return c.Respond(&tele.CallbackResponse{Text: "⏳ Too many requests, slow down."})
}
