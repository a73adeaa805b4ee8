package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileConfig_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bankfeeds.yaml")
	data := []byte(`
database:
  driver: postgresql
  dsn: postgres://bankfeeds@localhost/bankfeeds?sslmode=disable
server:
  callback_token: s3cret
  sync_interval: 30m
bankfeeds:
  banks:
    equity:
      token_url: https://api.equity.example/oauth2/token
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Database.DSN != "postgres://bankfeeds@localhost/bankfeeds?sslmode=disable" {
		t.Fatalf("unexpected dsn %q", cfg.Database.DSN)
	}
	if cfg.Server.SyncInterval != 30*time.Minute {
		t.Fatalf("expected 30m sync interval, got %s", cfg.Server.SyncInterval)
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.Workers != 2 {
		t.Fatalf("expected untouched server defaults, got %+v", cfg.Server)
	}
	if _, ok := cfg.Bankfeeds["banks"]; !ok {
		t.Fatalf("expected raw bankfeeds section to be kept, got %#v", cfg.Bankfeeds)
	}

	driver, err := normalizeDriver(cfg.Database.Driver)
	if err != nil || driver != DriverPostgres {
		t.Fatalf("expected postgres driver, got %q err=%v", driver, err)
	}
}

func TestLoadFileConfig_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadFileConfig("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Fatalf("expected sqlite default, got %q", cfg.Database.Driver)
	}
	if cfg.Bankfeeds == nil {
		t.Fatalf("expected empty bankfeeds section")
	}
}

func TestRootFlags_OverrideFileConfig(t *testing.T) {
	flags := &rootFlags{driver: "sqlite", dsn: "file::memory:", logLevel: "debug"}
	cfg, err := flags.fileConfig()
	if err != nil {
		t.Fatalf("file config: %v", err)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.DSN != "file::memory:" || cfg.Log.Level != "debug" {
		t.Fatalf("flags not applied: %+v", cfg)
	}

	flags.driver = "oracle"
	if _, err := flags.fileConfig(); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestResolveAppKey(t *testing.T) {
	cfg := DefaultFileConfig()
	cfg.Security.AppKeyEnv = "BANKFEEDS_TEST_APP_KEY"

	t.Setenv("BANKFEEDS_TEST_APP_KEY", "")
	if _, err := cfg.ResolveAppKey(); err == nil {
		t.Fatalf("expected missing app key error")
	}

	t.Setenv("BANKFEEDS_TEST_APP_KEY", " from-env ")
	key, err := cfg.ResolveAppKey()
	if err != nil || key != "from-env" {
		t.Fatalf("expected env key, got %q err=%v", key, err)
	}

	cfg.Security.AppKey = "inline"
	key, err = cfg.ResolveAppKey()
	if err != nil || key != "inline" {
		t.Fatalf("expected inline key to win, got %q err=%v", key, err)
	}
}
