package app

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // embedded zoneinfo for LoadLocation

	coreconfig "github.com/m3rciful/crmbot/core/config"
	coredatabase "github.com/m3rciful/crmbot/core/database"
	"github.com/m3rciful/crmbot/internal/digest"
	"github.com/m3rciful/crmbot/internal/flow"
)

// Supported backend store drivers.
const (
	StoreFirestore = "firestore"
	StoreMemory    = "memory"
)

const defaultTimezone = "Asia/Tashkent"

// StoreConfig selects the CRM backend.
type StoreConfig struct {
	Driver          string `yaml:"driver" envconfig:"STORE_DRIVER"`
	ProjectID       string `yaml:"project_id" envconfig:"FIRESTORE_PROJECT_ID"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
	TimeoutSeconds  int    `yaml:"timeout_seconds" envconfig:"STORE_TIMEOUT_SECONDS"`
}

// PollerConfig tunes the notification poller.
type PollerConfig struct {
	IntervalSeconds    int `yaml:"interval_seconds" envconfig:"POLLER_INTERVAL_SECONDS"`
	FirstDelaySeconds  int `yaml:"first_delay_seconds" envconfig:"POLLER_FIRST_DELAY_SECONDS"`
	MeetingLeadMinutes int `yaml:"meeting_lead_minutes" envconfig:"POLLER_MEETING_LEAD_MINUTES"`
}

// FlowConfig tunes the data entry conversations.
type FlowConfig struct {
	TTLMinutes    int `yaml:"ttl_minutes" envconfig:"FLOW_TTL_MINUTES"`
	AssigneeLimit int `yaml:"assignee_limit" envconfig:"FLOW_ASSIGNEE_LIMIT"`
}

// Config is the complete bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Timezone  string              `yaml:"timezone" envconfig:"TIMEZONE"`
	WebAppURL string              `yaml:"web_app_url" envconfig:"WEB_APP_URL"`
	Store     StoreConfig         `yaml:"store"`
	Ledger    coredatabase.Config `yaml:"ledger"`
	Poller    PollerConfig        `yaml:"poller"`
	Schedule  digest.Schedule     `yaml:"schedule"`
	Flow      FlowConfig          `yaml:"flow"`

	loc *time.Location
}

// CoreConfig exposes the embedded core configuration to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Location returns the business time zone resolved by Normalize.
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Load reads the configuration file at path, applies .env and environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}

	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	c.Timezone, c.loc = tz, loc

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case "":
		c.Store.Driver = StoreFirestore
	case StoreFirestore, StoreMemory:
	default:
		return fmt.Errorf("invalid store.driver %q; allowed: firestore, memory", c.Store.Driver)
	}
	if c.Store.TimeoutSeconds < 0 {
		return fmt.Errorf("store.timeout_seconds must be >= 0")
	}
	if c.Store.TimeoutSeconds == 0 {
		c.Store.TimeoutSeconds = 10
	}

	if err := c.Ledger.Normalize(); err != nil {
		return err
	}

	if c.Poller.IntervalSeconds < 0 || c.Poller.FirstDelaySeconds < 0 || c.Poller.MeetingLeadMinutes < 0 {
		return fmt.Errorf("poller values must be >= 0")
	}
	if c.Poller.IntervalSeconds == 0 {
		c.Poller.IntervalSeconds = 30
	}
	if c.Poller.FirstDelaySeconds == 0 {
		c.Poller.FirstDelaySeconds = 10
	}
	if c.Poller.MeetingLeadMinutes == 0 {
		c.Poller.MeetingLeadMinutes = 15
	}

	if err := c.Schedule.Normalize(); err != nil {
		return err
	}

	if c.Flow.TTLMinutes < 0 {
		return fmt.Errorf("flow.ttl_minutes must be >= 0")
	}
	if c.Flow.TTLMinutes == 0 {
		c.Flow.TTLMinutes = 24 * 60
	}
	if c.Flow.AssigneeLimit > flow.MaxAssignees {
		return fmt.Errorf("flow.assignee_limit must be <= %d", flow.MaxAssignees)
	}
	if c.Flow.AssigneeLimit <= 0 {
		c.Flow.AssigneeLimit = flow.MaxAssignees
	}
	return nil
}
