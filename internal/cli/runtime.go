package cli

import (
	"context"
	"database/sql"
	"fmt"

	bankfeeds "github.com/goliatone/go-bankfeeds"
	"github.com/goliatone/go-bankfeeds/adapters/gocommand"
	"github.com/goliatone/go-bankfeeds/adapters/zaplogger"
	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/migrations"
	"github.com/goliatone/go-bankfeeds/ratelimit"
	"github.com/goliatone/go-bankfeeds/security"
	sqlstore "github.com/goliatone/go-bankfeeds/store/sql"
	command "github.com/goliatone/go-command"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// Runtime is the wired engine a command runs against.
type Runtime struct {
	File     FileConfig
	Config   bankfeeds.Config
	Logger   *zaplogger.Logger
	Provider *zaplogger.Provider
	Client   *persistence.Client
	Stores   *sqlstore.RepositoryFactory
	Secrets  *security.AppKeySecretProvider
	Registry *core.AdapterRegistry
	Service  *bankfeeds.Service
	Facade   *bankfeeds.Facade
}

type runtimeOptions struct {
	// skipService opens storage only, for migrate.
	skipService bool
	// skipSecrets lets read-only commands run without the app key.
	skipSecrets bool
}

func openRuntime(ctx context.Context, flags *rootFlags, opts runtimeOptions) (*Runtime, error) {
	file, err := flags.fileConfig()
	if err != nil {
		return nil, err
	}
	logger, err := zaplogger.New(file.Log.Level, file.Log.Development)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{File: file, Logger: logger, Provider: zaplogger.NewProvider(logger)}

	client, err := openPersistence(file.Database)
	if err != nil {
		return nil, err
	}
	rt.Client = client
	if opts.skipService {
		return rt, nil
	}

	if err := rt.wire(ctx, opts); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (r *Runtime) wire(ctx context.Context, opts runtimeOptions) error {
	stores, err := sqlstore.NewRepositoryFactoryFromPersistence(r.Client)
	if err != nil {
		return err
	}
	r.Stores = stores

	configProvider := core.NewCfgxConfigProvider(core.StaticRawConfigLoader{Values: r.File.Bankfeeds})
	cfg, err := configProvider.Load(ctx, bankfeeds.DefaultConfig())
	if err != nil {
		return fmt.Errorf("loading bankfeeds config: %w", err)
	}
	r.Config = cfg

	policy := ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())
	registry, err := bankfeeds.NewAdapterRegistry(cfg, bankfeeds.ProviderOptions{
		RateLimit: policy,
		Logger:    r.Provider.GetLogger("bankfeeds.providers"),
	})
	if err != nil {
		return err
	}
	r.Registry = registry

	cacheService, err := repositorycache.NewCacheService(repositorycache.DefaultConfig())
	if err != nil {
		return fmt.Errorf("building balance check cache: %w", err)
	}
	balances, err := sqlstore.NewCachedBalanceCheckReader(stores.BalanceChecks(), cacheService)
	if err != nil {
		return err
	}

	options := []bankfeeds.Option{
		bankfeeds.WithLoggerProvider(r.Provider),
		bankfeeds.WithConfigProvider(configProvider),
		bankfeeds.WithAdapterResolver(registry),
		bankfeeds.WithStoreProvider(stores),
		bankfeeds.WithBalanceCheckReader(balances),
		bankfeeds.WithWatermarkRecorder(stores.AccountStore()),
	}
	if !opts.skipSecrets {
		key, err := r.File.ResolveAppKey()
		if err != nil {
			return err
		}
		secrets, err := security.NewAppKeySecretProviderFromString(key)
		if err != nil {
			return err
		}
		r.Secrets = secrets
		options = append(options, bankfeeds.WithSecretProvider(secrets))
	}

	service, err := bankfeeds.NewService(cfg, options...)
	if err != nil {
		return err
	}
	r.Service = service

	facade, err := bankfeeds.NewFacade(service, stores.AccountStore(),
		bankfeeds.WithStatementLineReader(stores.Lines()),
		bankfeeds.WithPendingBalanceChecks(stores.BalanceChecks()),
	)
	if err != nil {
		return err
	}
	r.Facade = facade
	return nil
}

func (r *Runtime) Migrate(ctx context.Context) error {
	dialect, err := migrations.DialectForDriver(r.File.Database.Driver)
	if err != nil {
		return err
	}
	return migrations.Migrate(ctx, r.Client, dialect)
}

func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var err error
	if r.Client != nil {
		err = r.Client.Close()
	}
	if r.Logger != nil {
		_ = r.Logger.Sync()
	}
	return err
}

func openPersistence(cfg DatabaseConfig) (*persistence.Client, error) {
	driver, err := normalizeDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	cfg.Driver = driver

	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}

	var client *persistence.Client
	switch driver {
	case DriverPostgres:
		client, err = persistence.New(cfg, sqlDB, pgdialect.New())
	default:
		sqlDB.SetMaxOpenConns(1)
		client, err = persistence.New(cfg, sqlDB, sqlitedialect.New())
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("creating persistence client: %w", err)
	}
	return client, nil
}

// Bus subscribes the bankfeeds commands and queries on the go-command
// dispatcher. Callers unsubscribe when done.
func (r *Runtime) Bus() (gocommand.Subscriptions, error) {
	if r == nil || r.Service == nil || r.Stores == nil {
		return nil, fmt.Errorf("runtime is not wired")
	}
	return gocommand.RegisterBankfeeds(gocommand.NewRegistryAdapter(command.NewRegistry()), gocommand.Dependencies{
		Service:  r.Service,
		Accounts: r.Stores.AccountStore(),
		Lines:    r.Stores.Lines(),
		Pending:  r.Stores.BalanceChecks(),
	})
}
