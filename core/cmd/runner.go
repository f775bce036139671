package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m3rciful/crmbot/core/buildinfo"
	coreconfig "github.com/m3rciful/crmbot/core/config"
	"github.com/m3rciful/crmbot/core/logger"
	coretelegram "github.com/m3rciful/crmbot/core/telegram"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is the minimal interface required to run a Telegram bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
	Close() error
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	// ConfigEnvVar names the variable holding the config path; default CONFIG_PATH.
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(ctx context.Context, cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
	// Signals stop the bot; default SIGINT and SIGTERM.
	Signals []os.Signal
}

func (o *Options) normalize() error {
	if o.LoadConfig == nil {
		return errors.New("cmd: LoadConfig is required")
	}
	if o.Bootstrap == nil {
		return errors.New("cmd: Bootstrap is required")
	}
	if o.ConfigEnvVar == "" {
		o.ConfigEnvVar = "CONFIG_PATH"
	}
	if o.ShutdownLogger == nil {
		o.ShutdownLogger = logger.Shutdown
	}
	if o.RunTelegram == nil {
		o.RunTelegram = coretelegram.RunTelegram
	}
	if len(o.Signals) == 0 {
		o.Signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	return nil
}

func (o *Options) configPath() string {
	if p := os.Getenv(o.ConfigEnvVar); p != "" {
		return p
	}
	return o.DefaultConfigPath
}

// Run loads configuration, bootstraps the app and serves updates until a
// stop signal arrives. A signal-driven stop returns nil.
func Run(opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}

	path := opts.configPath()
	log.Printf("crmbot %s: loading config %q", buildinfo.String(), path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}
	if cfg.CoreConfig() == nil {
		return errors.New("cmd: loaded config is missing core configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), opts.Signals...)
	defer stop()
	defer func() {
		if err := opts.ShutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	startedAt := time.Now()
	application, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error(context.Background(), logger.CompApp, "close", logger.Err(err))
		}
	}()

	runOpts, err := application.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}
	withLifecycleLogs(&runOpts, startedAt)

	err = opts.RunTelegram(ctx, runOpts)
	if errors.Is(err, coretelegram.ErrAnotherInstance) {
		logger.Error(ctx, logger.CompApp, "instance.conflict", logger.Err(err))
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// withLifecycleLogs logs readiness after the app's own OnStart and the
// shutdown before its OnStop.
func withLifecycleLogs(opts *coretelegram.RunOptions, startedAt time.Time) {
	onStart, onStop := opts.OnStart, opts.OnStop

	opts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, logger.CompApp, "ready",
			slog.String("bot", rt.BotUsername()),
			slog.String("build", buildinfo.String()),
			slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
		)
		return nil
	}
	opts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, logger.CompApp, "shutdown")
		if onStop != nil {
			return onStop(ctx, rt)
		}
		return nil
	}
}
