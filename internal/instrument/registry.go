package instrument

import (
	"context"
	"fmt"
	"sync"

	"github.com/vexcore/exec-core/pkg/ids"
)

// LoaderConfig is the minimal information a Loader needs to decide
// whether it accepts a request and to fetch the directory.
type LoaderConfig struct {
	Exchange ids.Exchange
	Network  ids.Network
	Extra    map[string]any
}

func (c LoaderConfig) key() configKey {
	return configKey{Exchange: c.Exchange, Network: c.Network}
}

type configKey struct {
	Exchange ids.Exchange
	Network  ids.Network
}

// Loader is polymorphic over the capability set described in §4.1: decide
// whether it accepts a config, and fetch the shared directory for it.
type Loader interface {
	Accept(cfg LoaderConfig) bool
	Load(ctx context.Context, cfg LoaderConfig) (*Manager, error)
}

// Registry is a process-wide, ordered list of Loaders. Lookup finds the
// first accepting loader — order matters and must be preserved, it is not
// a map (§9, design notes). A successful result is memoized forever per
// (exchange, network): repeated lookups return the same shared Manager
// without re-fetching.
type Registry struct {
	mu      sync.Mutex
	loaders []Loader
	cache   map[configKey]*cacheEntry
}

type cacheEntry struct {
	once sync.Once
	mgr  *Manager
	err  error
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{cache: make(map[configKey]*cacheEntry)}
}

// Register appends a loader to the end of the list. Registration order is
// the acceptance priority: the first registered loader that accepts a
// config wins.
func (r *Registry) Register(l Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders = append(r.loaders, l)
}

// Resolve returns the shared Manager for cfg, invoking and memoizing the
// first accepting loader on first use. Concurrent callers for the same
// key block on the same in-flight load rather than racing it; failure is
// not cached, so a later call can retry.
func (r *Registry) Resolve(ctx context.Context, cfg LoaderConfig) (*Manager, error) {
	r.mu.Lock()
	entry, ok := r.cache[cfg.key()]
	if !ok {
		entry = &cacheEntry{}
		r.cache[cfg.key()] = entry
	}
	loaders := r.loaders
	r.mu.Unlock()

	entry.once.Do(func() {
		var chosen Loader
		for _, l := range loaders {
			if l.Accept(cfg) {
				chosen = l
				break
			}
		}
		if chosen == nil {
			entry.err = fmt.Errorf("instrument: no loader accepts exchange=%s network=%s", cfg.Exchange, cfg.Network)
			return
		}
		entry.mgr, entry.err = chosen.Load(ctx, cfg)
	})

	if entry.err != nil {
		r.mu.Lock()
		delete(r.cache, cfg.key())
		r.mu.Unlock()
		return nil, entry.err
	}
	return entry.mgr, nil
}
