package database

import (
	"fmt"
	"net/url"
	"strings"
)

// Supported ledger drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the connection settings of the notification ledger database.
type Config struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	Path           string `yaml:"path" envconfig:"DB_PATH"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// Normalize validates the driver and fills defaults.
func (c *Config) Normalize() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	switch c.Driver {
	case "":
		c.Driver = DriverMemory
	case DriverMemory:
	case DriverPostgres:
		if c.Host == "" || c.Name == "" {
			return fmt.Errorf("ledger.host and ledger.name are required for the postgres driver")
		}
		if c.Port == "" {
			c.Port = "5432"
		}
		if c.SSLMode == "" {
			c.SSLMode = "disable"
		}
	case DriverSQLite:
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("ledger.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("invalid ledger.driver %q; allowed: memory, postgres, sqlite", c.Driver)
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 4
	}
	if c.Driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY on concurrent claims
		c.MaxConnections = 1
	}
	return nil
}

// DSN returns the database/sql data source name for the configured driver.
func (c Config) DSN() string {
	switch c.Driver {
	case DriverPostgres:
		return fmt.Sprintf(
			"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
			c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
		)
	case DriverSQLite:
		return "file:" + c.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	return ""
}

// MigrateURL returns the golang-migrate database URL.
func (c Config) MigrateURL() string {
	switch c.Driver {
	case DriverPostgres:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     c.Host + ":" + c.Port,
			Path:     "/" + c.Name,
			RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
		}
		return u.String()
	case DriverSQLite:
		return "sqlite://" + c.Path
	}
	return ""
}
