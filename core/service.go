package core

import (
	"context"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config             Config
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
	watermarkRecorder  WatermarkRecorder
	credentialOpener   CredentialOpener
	clock              Clock
}

type ServiceDependencies struct {
	Logger             Logger
	LoggerProvider     LoggerProvider
	MetricsRecorder    MetricsRecorder
	ErrorMapper        ErrorMapper
	ConfigProvider     ConfigProvider
	OptionsResolver    OptionsResolver
	Adapters           AdapterResolver
	StatementLineStore StatementLineStore
	BalanceCheckStore  BalanceCheckStore
	BalanceCheckReader BalanceCheckReader
	WatermarkRecorder  WatermarkRecorder
	CredentialOpener   CredentialOpener
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("bankfeeds", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("bankfeeds"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.clock == nil {
		builder.clock = func() time.Time { return time.Now().UTC() }
	}
	if builder.adapters == nil {
		return nil, mapBuildError(builder.errorMapper, NewConfigurationError("core: adapter registry is required", nil))
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.storeProvider != nil {
		if builder.statementLineStore == nil {
			builder.statementLineStore = builder.storeProvider.StatementLineStore()
		}
		if builder.balanceCheckStore == nil {
			builder.balanceCheckStore = builder.storeProvider.BalanceCheckStore()
		}
	}
	if builder.balanceCheckReader == nil && builder.balanceCheckStore != nil {
		builder.balanceCheckReader = builder.balanceCheckStore
	}
	if builder.credentialOpener == nil && builder.secretProvider != nil {
		builder.credentialOpener = NewSecretCredentialOpener(builder.secretProvider, builder.credentialCodec)
	}

	return &Service{
		config:             finalConfig,
		logger:             logger,
		loggerProvider:     provider,
		metricsRecorder:    builder.metricsRecorder,
		errorMapper:        builder.errorMapper,
		configProvider:     builder.configProvider,
		optionsResolver:    builder.optionsResolver,
		adapters:           builder.adapters,
		statementLineStore: builder.statementLineStore,
		balanceCheckStore:  builder.balanceCheckStore,
		balanceCheckReader: builder.balanceCheckReader,
		watermarkRecorder:  builder.watermarkRecorder,
		credentialOpener:   builder.credentialOpener,
		clock:              builder.clock,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:             s.logger,
		LoggerProvider:     s.loggerProvider,
		MetricsRecorder:    s.metricsRecorder,
		ErrorMapper:        s.errorMapper,
		ConfigProvider:     s.configProvider,
		OptionsResolver:    s.optionsResolver,
		Adapters:           s.adapters,
		StatementLineStore: s.statementLineStore,
		BalanceCheckStore:  s.balanceCheckStore,
		BalanceCheckReader: s.balanceCheckReader,
		WatermarkRecorder:  s.watermarkRecorder,
		CredentialOpener:   s.credentialOpener,
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) now() time.Time {
	if s == nil || s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func validateAccount(account Account) error {
	if strings.TrimSpace(account.ProviderKey) == "" {
		return NewConfigurationError("core: account provider key is required", map[string]any{
			"account_id": strings.TrimSpace(account.ID),
		})
	}
	if len(account.Credentials) == 0 {
		return NewConfigurationError("core: account credentials are required", map[string]any{
			"account_id":   strings.TrimSpace(account.ID),
			"provider_key": strings.TrimSpace(account.ProviderKey),
		})
	}
	if err := account.Validate(); err != nil {
		return NewConfigurationError(err.Error(), map[string]any{
			"account_id":   strings.TrimSpace(account.ID),
			"provider_key": strings.TrimSpace(account.ProviderKey),
		})
	}
	return nil
}

func (s *Service) resolveAdapter(ctx context.Context, account Account) (Adapter, error) {
	if s == nil || s.adapters == nil {
		return nil, NewConfigurationError("core: adapter registry is required", nil)
	}
	return s.adapters.Resolve(ctx, account)
}

// authenticate opens the account credentials, exchanges them for a session
// and discards the plaintext before returning.
func (s *Service) authenticate(ctx context.Context, adapter Adapter, account Account) (Session, error) {
	if s.credentialOpener == nil {
		return nil, NewConfigurationError("core: credential opener is required", nil)
	}
	credentials, err := s.credentialOpener.Open(ctx, account)
	if err != nil {
		return nil, err
	}
	defer clearCredentials(credentials)

	session, err := adapter.Authenticate(ctx, credentials)
	if err != nil {
		if IsErrorKind(err, ErrorAuthFailure) || IsErrorKind(err, ErrorConfiguration) || IsErrorKind(err, ErrorCredentialEnvelope) {
			return nil, err
		}
		return nil, NewAuthFailure(adapter.ProviderKey(), 0, "", err)
	}
	if session == nil {
		return nil, NewAuthFailure(adapter.ProviderKey(), 0, "", nil)
	}
	return session, nil
}

func clearCredentials(credentials Credentials) {
	for key := range credentials {
		delete(credentials, key)
	}
}
