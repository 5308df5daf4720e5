package market

import (
	"context"

	"github.com/vexcore/exec-core/pkg/ids"
	"github.com/vexcore/exec-core/pkg/model"
)

// Criteria narrows which instrument a feed session's output is wanted
// for; it is the "request" a consumer accepts against, even though the
// feed itself takes no request type per spec §4.4 (no orders flow
// outbound here).
type Criteria struct {
	Exchange   ids.Exchange
	Instrument model.InstrumentCode
}

// Service is the MarketFeedService capability set of spec §4.4: a
// response-only adapter, no request type.
type Service interface {
	// Accept reports whether this feed can serve criteria.
	Accept(criteria Criteria) bool

	// Next produces the next event, or (Event{}, false, nil) once the
	// transport is gone; the owning session handles reconnection.
	Next(ctx context.Context) (Event, bool, error)
}

// Builder constructs a Service for a given Config.
type Builder interface {
	Accept(cfg Config) bool
	Build(ctx context.Context, cfg Config) (Service, error)
}

// Config carries the options needed to build a market feed adapter:
// which venue/network, plus venue-specific extras. The Subscription
// Manager replayed on (re)connect is passed to NewSession, not carried
// here.
type Config struct {
	Exchange ids.Exchange
	Network  ids.Network
	Extra    map[string]any
}

// Registry is a process-wide, ordered list of Builders; first accepting
// builder wins, matching internal/execution.Registry and
// internal/instrument.Registry.
type Registry struct {
	builders []Builder
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends b to the candidate list.
func (r *Registry) Register(b Builder) {
	r.builders = append(r.builders, b)
}

// Accept reports whether any registered builder accepts cfg, letting a
// Registry itself satisfy Builder — so one multi-venue Registry can be
// handed to a Session instead of a single adapter's Builder.
func (r *Registry) Accept(cfg Config) bool {
	for _, b := range r.builders {
		if b.Accept(cfg) {
			return true
		}
	}
	return false
}

// Build finds the first accepting builder for cfg and invokes it.
func (r *Registry) Build(ctx context.Context, cfg Config) (Service, error) {
	for _, b := range r.builders {
		if b.Accept(cfg) {
			return b.Build(ctx, cfg)
		}
	}
	return nil, &NoBuilderError{Exchange: cfg.Exchange}
}

// NoBuilderError reports that no registered Builder accepted a Config.
type NoBuilderError struct {
	Exchange ids.Exchange
}

func (e *NoBuilderError) Error() string {
	return "market: no builder accepts exchange " + e.Exchange.String()
}
