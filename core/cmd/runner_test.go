package cmd

import (
	"context"
	"errors"
	"testing"

	coreconfig "github.com/m3rciful/crmbot/core/config"
	coretelegram "github.com/m3rciful/crmbot/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type fakeApp struct {
	calls  []string
	closed bool
}

func (a *fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error {
			a.calls = append(a.calls, "start")
			return nil
		},
		OnStop: func(context.Context, coretelegram.Runtime) error {
			a.calls = append(a.calls, "stop")
			return nil
		},
	}, nil
}

func (a *fakeApp) Close() error {
	a.closed = true
	return nil
}

func runWith(t *testing.T, app *fakeApp, run func(context.Context, coretelegram.RunOptions) error) error {
	t.Helper()
	t.Setenv("CRMBOT_TEST_CONFIG", "")
	return Run(Options{
		ConfigEnvVar:      "CRMBOT_TEST_CONFIG",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			if path != "config.yaml" {
				t.Errorf("config path = %q", path)
			}
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(context.Context, ConfigCarrier) (TelegramApp, error) {
			return app, nil
		},
		ShutdownLogger: func() error { return nil },
		RunTelegram:    run,
	})
}

func TestRunChainsLifecycleHooks(t *testing.T) {
	app := &fakeApp{}
	err := runWith(t, app, func(ctx context.Context, opts coretelegram.RunOptions) error {
		if err := opts.OnStart(ctx, coretelegram.Runtime{}); err != nil {
			return err
		}
		if err := opts.OnStop(ctx, coretelegram.Runtime{}); err != nil {
			return err
		}
		return context.Canceled
	})
	if err != nil {
		t.Fatalf("Run = %v, want nil on a signal stop", err)
	}
	if len(app.calls) != 2 || app.calls[0] != "start" || app.calls[1] != "stop" {
		t.Fatalf("hook calls = %v", app.calls)
	}
	if !app.closed {
		t.Fatal("app was not closed")
	}
}

func TestRunReportsInstanceConflict(t *testing.T) {
	app := &fakeApp{}
	err := runWith(t, app, func(context.Context, coretelegram.RunOptions) error {
		return coretelegram.ErrAnotherInstance
	})
	if !errors.Is(err, coretelegram.ErrAnotherInstance) {
		t.Fatalf("Run = %v", err)
	}
	if !app.closed {
		t.Fatal("app was not closed")
	}
}

func TestRunRequiresLoaders(t *testing.T) {
	if err := Run(Options{}); err == nil {
		t.Fatal("expected an error without LoadConfig")
	}
	err := Run(Options{LoadConfig: func(string) (ConfigCarrier, error) { return nil, nil }})
	if err == nil {
		t.Fatal("expected an error without Bootstrap")
	}
}
