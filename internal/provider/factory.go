package provider

import (
	"fmt"
	"sync"
)

// Kind identifies a supported backend.
type Kind string

const (
	KindOllama    Kind = "ollama"
	KindAnthropic Kind = "anthropic"
	KindRemote    Kind = "remote"
)

// Settings holds the configuration of every backend the factory can build.
type Settings struct {
	Ollama    OllamaConfig
	Anthropic AnthropicConfig
	Remote    RemoteConfig
}

// Builder constructs an adapter from settings.
type Builder func(s Settings, catalog Catalog) (Adapter, error)

// Factory builds adapters by kind and caches one instance per kind.
type Factory struct {
	settings Settings
	catalog  Catalog

	mu       sync.Mutex
	builders map[Kind]Builder
	cache    map[Kind]Adapter
}

// NewFactory creates a factory with the built-in backends registered.
func NewFactory(s Settings, catalog Catalog) *Factory {
	f := &Factory{
		settings: s,
		catalog:  catalog,
		builders: make(map[Kind]Builder),
		cache:    make(map[Kind]Adapter),
	}
	f.Register(KindOllama, func(s Settings, c Catalog) (Adapter, error) {
		return NewOllama(s.Ollama, c), nil
	})
	f.Register(KindAnthropic, func(s Settings, c Catalog) (Adapter, error) {
		if s.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("anthropic: API key is not configured")
		}
		return NewAnthropic(s.Anthropic, c), nil
	})
	f.Register(KindRemote, func(s Settings, c Catalog) (Adapter, error) {
		if s.Remote.URL == "" {
			return nil, fmt.Errorf("remote: URL is not configured")
		}
		return NewRemote(s.Remote, c), nil
	})
	return f
}

// Register adds or replaces the builder for kind.
func (f *Factory) Register(kind Kind, b Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[kind] = b
	delete(f.cache, kind)
}

// Create returns the adapter for kind.
func (f *Factory) Create(kind Kind) (Adapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if a, ok := f.cache[kind]; ok {
		return a, nil
	}
	b, ok := f.builders[kind]
	if !ok {
		return nil, fmt.Errorf("unknown provider kind: %s", kind)
	}
	a, err := b(f.settings, f.catalog)
	if err != nil {
		return nil, err
	}
	f.cache[kind] = a
	return a, nil
}

// Tiers builds the adapters for kinds, in order.
func (f *Factory) Tiers(kinds []string) ([]Adapter, error) {
	out := make([]Adapter, 0, len(kinds))
	for _, k := range kinds {
		a, err := f.Create(Kind(k))
		if err != nil {
			return nil, fmt.Errorf("provider tier %q: %w", k, err)
		}
		out = append(out, a)
	}
	return out, nil
}
