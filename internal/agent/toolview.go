package agent

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/chebacca/agentcore/internal/capability"
	"github.com/chebacca/agentcore/internal/tools"
)

// toolView is an agent's filtered view of the registry. The first
// computation starts in the background at construction; Names waits for it
// and recomputes when the catalog version moved or the view came up empty.
type toolView struct {
	registry *tools.Registry
	profile  capability.Profile

	ready   chan struct{}
	mu      sync.Mutex
	names   []string
	version uint64
	filled  bool
}

func newToolView(registry *tools.Registry, profile capability.Profile) *toolView {
	v := &toolView{registry: registry, profile: profile, ready: make(chan struct{})}
	go func() {
		defer close(v.ready)
		v.mu.Lock()
		defer v.mu.Unlock()
		v.refreshLocked(context.Background())
	}()
	return v
}

// Names returns the tool names the profile allows.
func (v *toolView) Names(ctx context.Context) ([]string, error) {
	select {
	case <-v.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.filled || len(v.names) == 0 || v.version != v.registry.Version() || !v.registry.Loaded() {
		v.refreshLocked(ctx)
	}
	return append([]string(nil), v.names...), nil
}

func (v *toolView) refreshLocked(ctx context.Context) {
	all := v.registry.All(ctx)
	v.names = capability.Filter(v.profile, all)
	v.version = v.registry.Version()
	v.filled = true
	log.Debug().
		Str("profile", v.profile.ID).
		Int("tools", len(v.names)).
		Uint64("version", v.version).
		Msg("agent tool view computed")
}
