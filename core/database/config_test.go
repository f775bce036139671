package database

import (
	"strings"
	"testing"
)

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		driver  string
		wantErr bool
	}{
		{name: "empty defaults to memory", cfg: Config{}, driver: DriverMemory},
		{name: "postgres requires host", cfg: Config{Driver: "postgres", Name: "crm"}, wantErr: true},
		{name: "postgres defaults", cfg: Config{Driver: "Postgres", Host: "db", Name: "crm"}, driver: DriverPostgres},
		{name: "sqlite requires path", cfg: Config{Driver: "sqlite"}, wantErr: true},
		{name: "sqlite", cfg: Config{Driver: "sqlite", Path: "/tmp/ledger.db"}, driver: DriverSQLite},
		{name: "unknown", cfg: Config{Driver: "mysql"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Normalize()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize() err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && cfg.Driver != tt.driver {
				t.Fatalf("driver = %q, want %q", cfg.Driver, tt.driver)
			}
		})
	}
}

func TestConfigURLs(t *testing.T) {
	pg := Config{Driver: DriverPostgres, Host: "db", Name: "crm", User: "bot", Password: "p@ss"}
	if err := pg.Normalize(); err != nil {
		t.Fatal(err)
	}
	if got := pg.MigrateURL(); got != "postgres://bot:p%40ss@db:5432/crm?sslmode=disable" {
		t.Fatalf("MigrateURL() = %q", got)
	}
	if !strings.Contains(pg.DSN(), "dbname=crm") {
		t.Fatalf("DSN() = %q", pg.DSN())
	}

	lite := Config{Driver: DriverSQLite, Path: "ledger.db"}
	if err := lite.Normalize(); err != nil {
		t.Fatal(err)
	}
	if lite.MaxConnections != 1 {
		t.Fatalf("sqlite pool = %d, want 1", lite.MaxConnections)
	}
	if got := lite.MigrateURL(); got != "sqlite://ledger.db" {
		t.Fatalf("MigrateURL() = %q", got)
	}
}
