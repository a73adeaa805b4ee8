package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// AdapterRegistry maps provider keys to adapter factories. The set of keys
// is fixed when the registry is built.
type AdapterRegistry struct {
	factories map[string]AdapterFactory
}

func NewAdapterRegistry(factories map[string]AdapterFactory) (*AdapterRegistry, error) {
	if len(factories) == 0 {
		return nil, NewConfigurationError("core: at least one adapter factory is required", nil)
	}
	registered := make(map[string]AdapterFactory, len(factories))
	for key, factory := range factories {
		normalized := normalizeProviderKey(key)
		if normalized == "" {
			return nil, NewConfigurationError("core: adapter provider key is required", nil)
		}
		if factory == nil {
			return nil, NewConfigurationError(
				fmt.Sprintf("core: adapter factory for %q is nil", normalized),
				map[string]any{"provider_key": normalized},
			)
		}
		if _, exists := registered[normalized]; exists {
			return nil, NewConfigurationError(
				fmt.Sprintf("core: adapter already registered: %s", normalized),
				map[string]any{"provider_key": normalized},
			)
		}
		registered[normalized] = factory
	}
	return &AdapterRegistry{factories: registered}, nil
}

func (r *AdapterRegistry) Resolve(ctx context.Context, account Account) (Adapter, error) {
	key := normalizeProviderKey(account.ProviderKey)
	if r == nil || key == "" {
		return nil, NewUnsupportedProviderError(key)
	}
	factory, ok := r.factories[key]
	if !ok {
		return nil, NewUnsupportedProviderError(key)
	}
	adapter, err := factory(ctx, account)
	if err != nil {
		return nil, err
	}
	if adapter == nil {
		return nil, NewUnsupportedProviderError(key)
	}
	return adapter, nil
}

func (r *AdapterRegistry) Has(providerKey string) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[normalizeProviderKey(providerKey)]
	return ok
}

func (r *AdapterRegistry) Keys() []string {
	if r == nil {
		return nil
	}
	keys := make([]string, 0, len(r.factories))
	for key := range r.factories {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func normalizeProviderKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
