// Package codec defines the wire Codec boundary of spec §6: per-venue
// JSON/binary shapes are an external collaborator's concern (spec §1),
// but the Codec contract and a process-wide registry of per-exchange
// implementations live here so a session can stay wire-agnostic.
package codec

import (
	"fmt"
	"sync"

	"github.com/vexcore/exec-core/internal/execution"
	"github.com/vexcore/exec-core/pkg/ids"
)

// Codec converts between an adapter's raw wire frames and the core's
// domain types, per spec §6's `parse_inbound`/`encode_outbound` pair.
type Codec interface {
	// ParseInbound decodes one inbound wire frame into zero or more
	// ExecutionResponses (a single frame may carry a batch, handled the
	// same way RespGroup flattening handles it downstream).
	ParseInbound(raw []byte) ([]execution.Response, error)

	// EncodeOutbound renders one ExecutionRequest as the bytes to send
	// over the transport.
	EncodeOutbound(req execution.Request) ([]byte, error)
}

// Registry is a process-wide table of Codecs keyed by venue. A later
// Register for the same exchange replaces the earlier Codec.
type Registry struct {
	mu     sync.RWMutex
	codecs map[ids.Exchange]Codec
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[ids.Exchange]Codec)}
}

// Register associates exchange with codec, overwriting any previous
// registration.
func (r *Registry) Register(exchange ids.Exchange, c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[exchange] = c
}

// Get returns the Codec registered for exchange.
func (r *Registry) Get(exchange ids.Exchange) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[exchange]
	if !ok {
		return nil, fmt.Errorf("codec: no codec registered for %s", exchange)
	}
	return c, nil
}
