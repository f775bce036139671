package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	coreconfig "github.com/m3rciful/crmbot/core/config"
	coredatabase "github.com/m3rciful/crmbot/core/database"
	coretelegram "github.com/m3rciful/crmbot/core/telegram"
	"github.com/m3rciful/crmbot/core/telegram/event"
)

func minimalConfig() *Config {
	return &Config{
		Config: coreconfig.Config{Telegram: coreconfig.TelegramConfig{Token: "123:abc"}},
		Store:  StoreConfig{Driver: StoreMemory},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{Config: coreconfig.Config{Telegram: coreconfig.TelegramConfig{Token: "123:abc"}}}
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Timezone != defaultTimezone || cfg.Location().String() != defaultTimezone {
		t.Fatalf("timezone = %q / %v", cfg.Timezone, cfg.Location())
	}
	if cfg.Store.Driver != StoreFirestore || cfg.Store.TimeoutSeconds != 10 {
		t.Fatalf("store = %+v", cfg.Store)
	}
	if cfg.Ledger.Driver != coredatabase.DriverMemory {
		t.Fatalf("ledger driver = %q", cfg.Ledger.Driver)
	}
	if cfg.Poller.IntervalSeconds != 30 || cfg.Poller.FirstDelaySeconds != 10 || cfg.Poller.MeetingLeadMinutes != 15 {
		t.Fatalf("poller = %+v", cfg.Poller)
	}
	if cfg.Flow.TTLMinutes != 1440 || cfg.Flow.AssigneeLimit != 10 {
		t.Fatalf("flow = %+v", cfg.Flow)
	}
	if cfg.Schedule.DailyReminder != "0 9 * * *" {
		t.Fatalf("schedule = %+v", cfg.Schedule)
	}
	if cfg.Telegram.RunMode != coreconfig.RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"no token":          func(c *Config) { c.Telegram.Token = "" },
		"bad timezone":      func(c *Config) { c.Timezone = "Mars/Olympus" },
		"bad store":         func(c *Config) { c.Store.Driver = "mongo" },
		"bad ledger":        func(c *Config) { c.Ledger.Driver = "oracle" },
		"sqlite no path":    func(c *Config) { c.Ledger.Driver = coredatabase.DriverSQLite },
		"bad cron":          func(c *Config) { c.Schedule.WeeklyReport = "every monday" },
		"negative ttl":      func(c *Config) { c.Flow.TTLMinutes = -1 },
		"negative poll":     func(c *Config) { c.Poller.IntervalSeconds = -5 },
		"assignees over 10": func(c *Config) { c.Flow.AssigneeLimit = 11 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := minimalConfig()
			mutate(cfg)
			if err := cfg.Normalize(); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `telegram:
  token: "123:abc"
timezone: Europe/Berlin
web_app_url: https://crm.example/
store:
  driver: memory
flow:
  ttl_minutes: 30
schedule:
  weekly_report: "0 10 * * 5"
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WEB_APP_URL", "https://crm.example/app")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Timezone != "Europe/Berlin" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.WebAppURL != "https://crm.example/app" {
		t.Fatalf("web app url = %q, want the env override", cfg.WebAppURL)
	}
	if cfg.Store.Driver != StoreMemory || cfg.Flow.TTLMinutes != 30 {
		t.Fatalf("store/flow = %+v / %+v", cfg.Store, cfg.Flow)
	}
	if cfg.Schedule.WeeklyReport != "0 10 * * 5" || cfg.Schedule.GroupDigest != "5 9 * * *" {
		t.Fatalf("schedule = %+v", cfg.Schedule)
	}
	if cfg.CoreConfig() != &cfg.Config {
		t.Fatal("CoreConfig must expose the embedded config")
	}
}

func TestAppLifecycle(t *testing.T) {
	cfg := minimalConfig()
	if err := cfg.Normalize(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	a, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	opts, err := a.TelegramRunOptions()
	if err != nil {
		t.Fatalf("TelegramRunOptions: %v", err)
	}
	if len(opts.Routes) != 2 || opts.OnStart == nil || opts.OnStop == nil {
		t.Fatalf("run options = %+v", opts)
	}
	if _, _, ok := opts.Registry.LookupCommand("start"); !ok {
		t.Fatal("start command not registered")
	}

	if err := a.Push(ctx, 1, event.View{Text: "hi"}); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("Push before start = %v, want ErrNotStarted", err)
	}

	rt := coretelegram.Runtime{}
	if err := opts.OnStart(ctx, rt); err != nil {
		t.Fatalf("OnStart: %v", err)
	}
	if got := a.botUsername(); got != "" {
		t.Fatalf("botUsername = %q", got)
	}
	if err := opts.OnStop(ctx, rt); err != nil {
		t.Fatalf("OnStop: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
