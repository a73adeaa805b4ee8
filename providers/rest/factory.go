package rest

import (
	"context"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/transport"
)

type FactoryOptions struct {
	Client transport.Client
	Logger core.Logger
	Now    func() time.Time
}

// Factories returns generic_rest plus one factory per configured bank key.
// generic_rest reads the base URL from the account; named banks use their
// configured base URL.
func Factories(cfg core.Config, opts FactoryOptions) (map[string]core.AdapterFactory, error) {
	defaultLocation, err := loadLocation(cfg.REST.Timezone)
	if err != nil {
		return nil, err
	}
	client := opts.Client
	if client == nil {
		client = transport.NewRESTAdapter(nil, cfg.RequestTimeout())
	}

	factories := map[string]core.AdapterFactory{
		core.ProviderKeyGenericREST: func(_ context.Context, account core.Account) (core.Adapter, error) {
			return New(Config{
				ProviderKey: core.ProviderKeyGenericREST,
				BaseURL:     account.BaseURL,
				Location:    defaultLocation,
				Client:      client,
				Logger:      opts.Logger,
				Now:         opts.Now,
			})
		},
	}

	keys := make([]string, 0, len(cfg.Banks))
	for key := range cfg.Banks {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		bank := cfg.Banks[key]
		providerKey := strings.ToLower(strings.TrimSpace(key))
		location := defaultLocation
		if strings.TrimSpace(bank.Timezone) != "" {
			location, err = loadLocation(bank.Timezone)
			if err != nil {
				return nil, err
			}
		}
		baseURL := bank.BaseURL
		bankLocation := location
		factories[providerKey] = func(_ context.Context, account core.Account) (core.Adapter, error) {
			resolved := baseURL
			if strings.TrimSpace(resolved) == "" {
				resolved = account.BaseURL
			}
			return New(Config{
				ProviderKey: providerKey,
				BaseURL:     resolved,
				Location:    bankLocation,
				Client:      client,
				Logger:      opts.Logger,
				Now:         opts.Now,
			})
		}
	}
	return factories, nil
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC, nil
	}
	location, err := time.LoadLocation(name)
	if err != nil {
		return nil, core.NewConfigurationError("rest: timezone is invalid", map[string]any{
			"timezone": name,
		})
	}
	return location, nil
}
