// Package bankfeeds pulls statement lines from bank and mobile-money
// providers into a normalized store.
//
// The root package re-exports the core service surface and assembles the
// adapter registry from configuration. Lower level pieces live in core,
// providers, store/sql, inbound and sync.
package bankfeeds

import "github.com/goliatone/go-bankfeeds/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Account = core.Account

type Credentials = core.Credentials

type StatementLine = core.StatementLine

type BalanceCheck = core.BalanceCheck

type SyncReport = core.SyncReport

type AdapterFactory = core.AdapterFactory

var (
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithMetricsRecorder    = core.WithMetricsRecorder
	WithErrorMapper        = core.WithErrorMapper
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithAdapterResolver    = core.WithAdapterResolver
	WithStatementLineStore = core.WithStatementLineStore
	WithBalanceCheckStore  = core.WithBalanceCheckStore
	WithBalanceCheckReader = core.WithBalanceCheckReader
	WithStoreProvider      = core.WithStoreProvider
	WithWatermarkRecorder  = core.WithWatermarkRecorder
	WithCredentialOpener   = core.WithCredentialOpener
	WithSecretProvider     = core.WithSecretProvider
	WithCredentialCodec    = core.WithCredentialCodec
	WithClock              = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
