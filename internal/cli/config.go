package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	defaultAppKeyEnv = "BANKFEEDS_APP_KEY"
)

// FileConfig is the bankfeeds.yaml layout. The bankfeeds section is passed
// through untouched as the raw engine config.
type FileConfig struct {
	Database  DatabaseConfig `yaml:"database"`
	Log       LogConfig      `yaml:"log"`
	Security  SecurityConfig `yaml:"security"`
	Server    ServerConfig   `yaml:"server"`
	Bankfeeds map[string]any `yaml:"bankfeeds"`
}

type DatabaseConfig struct {
	Driver      string        `yaml:"driver"`
	DSN         string        `yaml:"dsn"`
	Debug       bool          `yaml:"debug"`
	PingTimeout time.Duration `yaml:"ping_timeout"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type SecurityConfig struct {
	// AppKey seals account credentials. AppKeyEnv names the variable read
	// when AppKey is empty.
	AppKey    string `yaml:"app_key"`
	AppKeyEnv string `yaml:"app_key_env"`
}

type ServerConfig struct {
	Addr          string        `yaml:"addr"`
	CallbackToken string        `yaml:"callback_token"`
	SyncInterval  time.Duration `yaml:"sync_interval"`
	ExpireAfter   time.Duration `yaml:"expire_after"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	Workers       int           `yaml:"workers"`
	Concurrency   int           `yaml:"concurrency"`
}

func DefaultFileConfig() FileConfig {
	return FileConfig{
		Database: DatabaseConfig{
			Driver:      DriverSQLite,
			DSN:         "file:bankfeeds.db?_foreign_keys=on",
			PingTimeout: 5 * time.Second,
		},
		Log:      LogConfig{Level: "info"},
		Security: SecurityConfig{AppKeyEnv: defaultAppKeyEnv},
		Server: ServerConfig{
			Addr:          ":8080",
			SyncInterval:  15 * time.Minute,
			ExpireAfter:   time.Hour,
			SweepInterval: 5 * time.Minute,
			Workers:       2,
			Concurrency:   4,
		},
		Bankfeeds: map[string]any{},
	}
}

// LoadFileConfig reads path over the defaults. An empty path returns the
// defaults.
func LoadFileConfig(path string) (FileConfig, error) {
	cfg := DefaultFileConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Bankfeeds == nil {
		cfg.Bankfeeds = map[string]any{}
	}
	return cfg, nil
}

func (c FileConfig) ResolveAppKey() (string, error) {
	if key := strings.TrimSpace(c.Security.AppKey); key != "" {
		return key, nil
	}
	env := strings.TrimSpace(c.Security.AppKeyEnv)
	if env == "" {
		env = defaultAppKeyEnv
	}
	if key := strings.TrimSpace(os.Getenv(env)); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("app key is required: set security.app_key or %s", env)
}

func (d DatabaseConfig) GetDebug() bool {
	return d.Debug
}

func (d DatabaseConfig) GetDriver() string {
	return d.Driver
}

func (d DatabaseConfig) GetServer() string {
	return d.DSN
}

func (d DatabaseConfig) GetPingTimeout() time.Duration {
	if d.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return d.PingTimeout
}

func (d DatabaseConfig) GetOtelIdentifier() string {
	return "go-bankfeeds"
}

func normalizeDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", DriverSQLite:
		return DriverSQLite, nil
	case DriverPostgres, "postgresql", "pq":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}
