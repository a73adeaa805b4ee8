package bankfeeds

import (
	"time"

	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/providers/mpesa"
	"github.com/goliatone/go-bankfeeds/providers/rest"
	"github.com/goliatone/go-bankfeeds/ratelimit"
	"github.com/goliatone/go-bankfeeds/security"
	"github.com/goliatone/go-bankfeeds/transport"
)

type ProviderOptions struct {
	// Client overrides the HTTP transport shared by every adapter.
	Client       transport.Client
	Certificates security.CertificateStore
	Callbacks    core.CallbackURLResolver
	// RateLimit gates each provider's calls. Nil disables throttling.
	RateLimit *ratelimit.AdaptivePolicy
	// Extensions contributes adapters registered by downstream packs.
	Extensions *ExtensionHooks
	Logger     core.Logger
	Now        func() time.Time
}

// AdapterFactories returns generic_rest, one factory per configured bank,
// and the mobile-money factory keyed by mpesa. Config validation rejects
// bank keys that shadow the built-in providers.
func AdapterFactories(cfg Config, opts ProviderOptions) (map[string]AdapterFactory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, core.NewConfigurationError(err.Error(), nil)
	}
	base := opts.Client
	if base == nil {
		base = transport.NewRESTAdapter(nil, cfg.RequestTimeout())
	}

	factories, err := rest.Factories(cfg, rest.FactoryOptions{
		Client: throttled(base, opts, core.ProviderKeyGenericREST),
		Logger: opts.Logger,
		Now:    opts.Now,
	})
	if err != nil {
		return nil, err
	}
	factories[core.ProviderKeyMobileMoney] = mpesa.Factory(cfg, mpesa.FactoryOptions{
		Certificates: opts.Certificates,
		Callbacks:    opts.Callbacks,
		Client:       throttled(base, opts, core.ProviderKeyMobileMoney),
		Logger:       opts.Logger,
		Now:          opts.Now,
	})
	if err := opts.Extensions.ApplyAdapterPacks(factories); err != nil {
		return nil, core.NewConfigurationError(err.Error(), nil)
	}
	return factories, nil
}

// NewAdapterRegistry builds the resolver handed to WithAdapterResolver.
func NewAdapterRegistry(cfg Config, opts ProviderOptions) (*core.AdapterRegistry, error) {
	factories, err := AdapterFactories(cfg, opts)
	if err != nil {
		return nil, err
	}
	return core.NewAdapterRegistry(factories)
}

func throttled(client transport.Client, opts ProviderOptions, providerKey string) transport.Client {
	if opts.RateLimit == nil {
		return client
	}
	return ratelimit.NewClient(client, opts.RateLimit, providerKey, opts.Logger)
}
