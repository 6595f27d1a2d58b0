package tools

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrRegistryUnavailable marks a tool source that could not be reached during discovery.
var ErrRegistryUnavailable = errors.New("tool registry unavailable")

// ErrDuplicateTool indicates a tool name is already present in the catalog.
var ErrDuplicateTool = errors.New("duplicate tool name")

// ErrInvalidTool indicates a tool without a name or executor.
var ErrInvalidTool = errors.New("invalid tool")

const loadKey = "catalog"

// Registry is the process-wide tool catalog. Tools discovered from sources
// are cached as a snapshot; explicitly registered tools are appended and
// never removed.
type Registry struct {
	sources []Source

	mu         sync.RWMutex
	loaded     bool
	discovered []Tool
	registered []Tool
	version    uint64

	sf singleflight.Group // one in-flight discovery at a time
}

// NewRegistry creates a registry backed by the given sources.
func NewRegistry(sources ...Source) *Registry {
	return &Registry{sources: sources}
}

// All returns every tool in the catalog. The cached snapshot is returned when
// present; otherwise the caller joins the single in-flight discovery. Source
// failures are logged and degrade to an empty contribution from that source.
func (r *Registry) All(ctx context.Context) []Tool {
	if tools, ok := r.snapshot(); ok {
		return tools
	}

	v, _, _ := r.sf.Do(loadKey, func() (interface{}, error) {
		// another caller may have finished a load while we queued
		if tools, ok := r.snapshot(); ok {
			return tools, nil
		}
		r.load(ctx)
		return r.current(), nil
	})
	return slices.Clone(v.([]Tool))
}

// Refresh drops the cached snapshot and rediscovers tools from all sources.
func (r *Registry) Refresh(ctx context.Context) []Tool {
	r.mu.Lock()
	r.loaded = false
	r.mu.Unlock()
	return r.All(ctx)
}

// Register appends a tool to the catalog.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" || t.Execute == nil {
		return fmt.Errorf("%w: name and executor are required", ErrInvalidTool)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexLocked(t.Name) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name)
	}
	r.registered = append(r.registered, t)
	r.version++

	log.Debug().Str("tool", t.Name).Uint64("version", r.version).Msg("tool registered")
	return nil
}

// Find returns the catalog tools named in names, in that order. Unknown
// names are skipped.
func (r *Registry) Find(ctx context.Context, names []string) []Tool {
	all := r.All(ctx)
	out := make([]Tool, 0, len(names))
	for _, n := range names {
		for _, t := range all {
			if t.Name == n {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// Lookup returns the catalog tool called name.
func (r *Registry) Lookup(ctx context.Context, name string) (Tool, bool) {
	for _, t := range r.All(ctx) {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// Declarations returns the provider-facing declarations of the named tools.
func (r *Registry) Declarations(ctx context.Context, names []string) []Declaration {
	found := r.Find(ctx, names)
	out := make([]Declaration, len(found))
	for i, t := range found {
		out[i] = t.Declaration()
	}
	return out
}

// Version changes whenever the catalog contents change.
func (r *Registry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Loaded reports whether a complete discovery snapshot is cached.
func (r *Registry) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

func (r *Registry) snapshot() ([]Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.loaded {
		return nil, false
	}
	return r.currentLocked(), true
}

func (r *Registry) current() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentLocked()
}

func (r *Registry) currentLocked() []Tool {
	out := make([]Tool, 0, len(r.discovered)+len(r.registered))
	out = append(out, r.discovered...)
	out = append(out, r.registered...)
	return out
}

func (r *Registry) indexLocked(name string) int {
	for i, t := range r.discovered {
		if t.Name == name {
			return i
		}
	}
	for i, t := range r.registered {
		if t.Name == name {
			return len(r.discovered) + i
		}
	}
	return -1
}

// load queries every source concurrently and installs the merged result.
// The snapshot is only marked complete when no source failed, so a degraded
// catalog is re-checked on the next call.
func (r *Registry) load(ctx context.Context) {
	results := make([][]Tool, len(r.sources))
	failed := make([]bool, len(r.sources))

	var g errgroup.Group
	for i, src := range r.sources {
		g.Go(func() error {
			list, err := src.Tools(ctx)
			if err != nil {
				failed[i] = true
				log.Warn().
					Err(fmt.Errorf("%w: %w", ErrRegistryUnavailable, err)).
					Str("source", src.Name()).
					Msg("tool discovery failed")
				return nil
			}
			results[i] = list
			return nil
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool)
	for _, t := range r.registered {
		seen[t.Name] = true
	}
	var merged []Tool
	for i, list := range results {
		for _, t := range list {
			if t.Name == "" || seen[t.Name] {
				log.Warn().Str("source", r.sources[i].Name()).Str("tool", t.Name).Msg("skipping duplicate or unnamed tool")
				continue
			}
			seen[t.Name] = true
			merged = append(merged, t)
		}
	}

	if !sameNames(r.discovered, merged) {
		r.version++
	}
	r.discovered = merged
	r.loaded = !slices.Contains(failed, true)

	log.Info().
		Int("sources", len(r.sources)).
		Int("tools", len(merged)+len(r.registered)).
		Bool("complete", r.loaded).
		Uint64("version", r.version).
		Msg("tool catalog loaded")
}

func sameNames(a, b []Tool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return false
		}
	}
	return true
}
