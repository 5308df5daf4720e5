package execution

import (
	"context"

	"github.com/vexcore/exec-core/pkg/ids"
)

// Service is the polymorphic capability set every execution adapter
// implements, per spec §4.4: a fast accept filter, a non-blocking enqueue,
// and a pull for the next response.
type Service interface {
	// Accept reports whether this adapter can serve req — used by the
	// router to pick a target without attempting delivery.
	Accept(req Request) bool

	// Request enqueues req. It does not block except for bounded
	// back-pressure on the adapter's outbound queue.
	Request(ctx context.Context, req Request) error

	// Next produces the next response, or (Response{}, false, nil) to
	// signal the adapter has terminated (its transport is gone and will
	// not be retried by itself — the owning session handles reconnection).
	Next(ctx context.Context) (Response, bool, error)
}

// Builder constructs a Service for a given Config, per spec §4.4's builder
// capability set.
type Builder interface {
	Accept(cfg Config) bool
	Build(ctx context.Context, cfg Config) (Service, error)
}

// Registry is a process-wide, ordered list of Builders. The first builder
// that accepts a Config wins — registration order is significant, mirroring
// internal/instrument.Registry.
type Registry struct {
	builders []Builder
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends b to the end of the candidate list.
func (r *Registry) Register(b Builder) {
	r.builders = append(r.builders, b)
}

// Accept reports whether any registered builder accepts cfg, letting a
// Registry itself satisfy Builder — e.g. so internal/router can be handed
// one multi-venue Registry instead of a single adapter's Builder.
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
	return "execution: no builder accepts exchange " + e.Exchange.String()
}
