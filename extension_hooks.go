package bankfeeds

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// AdapterPack contributes adapter factories for providers that ship outside
// this module, such as an in-house bank integration.
type AdapterPack struct {
	Name      string
	Factories map[string]AdapterFactory
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

type ExtensionHooks struct {
	mu sync.RWMutex

	adapterPacks map[string]AdapterPack
	bundles      map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		adapterPacks: map[string]AdapterPack{},
		bundles:      map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterAdapterPack(pack AdapterPack) error {
	if h == nil {
		return fmt.Errorf("bankfeeds: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("bankfeeds: adapter pack name is required")
	}
	if len(pack.Factories) == 0 {
		return fmt.Errorf("bankfeeds: adapter pack %q has no factories", name)
	}
	normalized := AdapterPack{Name: name, Factories: make(map[string]AdapterFactory, len(pack.Factories))}
	for key, factory := range pack.Factories {
		providerKey := strings.ToLower(strings.TrimSpace(key))
		if providerKey == "" || factory == nil {
			return fmt.Errorf("bankfeeds: adapter pack %q has an empty provider key or nil factory", name)
		}
		normalized.Factories[providerKey] = factory
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.adapterPacks[name]; exists {
		return fmt.Errorf("bankfeeds: adapter pack %q already registered", name)
	}
	h.adapterPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(name string, factory CommandQueryBundleFactory) error {
	if h == nil {
		return fmt.Errorf("bankfeeds: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("bankfeeds: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("bankfeeds: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("bankfeeds: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyAdapterPacks adds every pack factory to factories. A pack may not
// replace a built-in provider or another pack's provider.
func (h *ExtensionHooks) ApplyAdapterPacks(factories map[string]AdapterFactory) error {
	if h == nil {
		return nil
	}
	if factories == nil {
		return fmt.Errorf("bankfeeds: factory map is required")
	}
	for _, pack := range h.AdapterPacks() {
		keys := make([]string, 0, len(pack.Factories))
		for key := range pack.Factories {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if _, exists := factories[key]; exists {
				return fmt.Errorf("bankfeeds: adapter pack %q redefines provider %q", pack.Name, key)
			}
			factories[key] = pack.Factories[key]
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(service CommandQueryService) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("bankfeeds: command/query service is required")
	}

	h.mu.RLock()
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(factories))
	for _, name := range sortedKeys(factories) {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) AdapterPacks() []AdapterPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]AdapterPack, 0, len(h.adapterPacks))
	for _, name := range sortedKeys(h.adapterPacks) {
		pack := h.adapterPacks[name]
		factories := make(map[string]AdapterFactory, len(pack.Factories))
		for key, factory := range pack.Factories {
			factories[key] = factory
		}
		out = append(out, AdapterPack{Name: pack.Name, Factories: factories})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedKeys(h.bundles)
}

func sortedKeys[V any](values map[string]V) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
