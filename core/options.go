package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// StoreProvider exposes the persistence collaborators of a repository
// factory.
type StoreProvider interface {
	StatementLineStore() StatementLineStore
	BalanceCheckStore() BalanceCheckStore
}

type serviceBuilder struct {
	runtimeConfig      Config
	logger             Logger
	loggerProvider     LoggerProvider
	metricsRecorder    MetricsRecorder
	errorMapper        ErrorMapper
	configProvider     ConfigProvider
	optionsResolver    OptionsResolver
	adapters           AdapterResolver
	statementLineStore StatementLineStore
	balanceCheckStore  BalanceCheckStore
	balanceCheckReader BalanceCheckReader
	storeProvider      StoreProvider
	watermarkRecorder  WatermarkRecorder
	credentialOpener   CredentialOpener
	secretProvider     SecretProvider
	credentialCodec    CredentialCodec
	clock              Clock
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithAdapterResolver(resolver AdapterResolver) Option {
	return func(b *serviceBuilder) {
		b.adapters = resolver
	}
}

func WithStatementLineStore(store StatementLineStore) Option {
	return func(b *serviceBuilder) {
		b.statementLineStore = store
	}
}

func WithBalanceCheckStore(store BalanceCheckStore) Option {
	return func(b *serviceBuilder) {
		b.balanceCheckStore = store
	}
}

// WithBalanceCheckReader overrides the read path of GetBalanceCheck, for
// example with a cached reader.
func WithBalanceCheckReader(reader BalanceCheckReader) Option {
	return func(b *serviceBuilder) {
		b.balanceCheckReader = reader
	}
}

func WithStoreProvider(provider StoreProvider) Option {
	return func(b *serviceBuilder) {
		b.storeProvider = provider
	}
}

func WithWatermarkRecorder(recorder WatermarkRecorder) Option {
	return func(b *serviceBuilder) {
		b.watermarkRecorder = recorder
	}
}

func WithCredentialOpener(opener CredentialOpener) Option {
	return func(b *serviceBuilder) {
		b.credentialOpener = opener
	}
}

func WithSecretProvider(provider SecretProvider) Option {
	return func(b *serviceBuilder) {
		b.secretProvider = provider
	}
}

func WithCredentialCodec(codec CredentialCodec) Option {
	return func(b *serviceBuilder) {
		b.credentialCodec = codec
	}
}

func WithClock(clock Clock) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("bankfeeds", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		credentialCodec: JSONCredentialCodec{},
		clock:           func() time.Time { return time.Now().UTC() },
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return serviceErrorMapper(err)
}

type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(target map[string]any, key, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			target[key] = value
		}
	}

	setString(layer, "service_name", cfg.ServiceName)
	setString(layer, "environment", cfg.Environment)
	setString(layer, "fetch_failure_policy", string(cfg.FetchFailurePolicy))
	if includeZero || cfg.LookbackDays != 0 {
		layer["lookback_days"] = cfg.LookbackDays
	}
	if includeZero || cfg.HTTPTimeout != 0 {
		layer["http_timeout"] = cfg.HTTPTimeout
	}

	rest := map[string]any{}
	setString(rest, "timezone", cfg.REST.Timezone)
	if len(rest) > 0 {
		layer["rest"] = rest
	}

	if includeZero || len(cfg.Banks) > 0 {
		banks := make(map[string]any, len(cfg.Banks))
		for key, bank := range cfg.Banks {
			banks[strings.TrimSpace(key)] = map[string]any{
				"base_url": bank.BaseURL,
				"timezone": bank.Timezone,
			}
		}
		layer["banks"] = banks
	}

	mpesa := map[string]any{}
	setString(mpesa, "result_url", cfg.MobileMoney.ResultURL)
	setString(mpesa, "timeout_url", cfg.MobileMoney.TimeoutURL)
	setString(mpesa, "status_result_url", cfg.MobileMoney.StatusResultURL)
	setString(mpesa, "certificate_dir", cfg.MobileMoney.CertificateDir)
	setString(mpesa, "remarks", cfg.MobileMoney.Remarks)
	setString(mpesa, "sandbox_base_url", cfg.MobileMoney.SandboxBaseURL)
	setString(mpesa, "production_base_url", cfg.MobileMoney.ProductionBaseURL)
	if len(mpesa) > 0 {
		layer["mpesa"] = mpesa
	}
	return layer
}
