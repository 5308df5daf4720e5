package lifecycle

import (
	"errors"
	"fmt"

	"github.com/vexcore/exec-core/internal/ordercache"
	"github.com/vexcore/exec-core/pkg/ids"
	"github.com/vexcore/exec-core/pkg/model"
)

// ErrInvariant is returned when an update would violate a core invariant
// (currently: a non-empty server ID changing value). It is fatal to the
// owning session per §7/§9 — the caller must stop the session and have it
// rebuilt.
var ErrInvariant = errors.New("lifecycle: invariant violation")

// Engine folds UpdateOrder and OrderTrade events into an Order Cache,
// enforcing the status-transition, fill-accounting and idempotence rules
// of spec §4.3. One Engine is owned by exactly one execution session,
// matching the Cache it operates on.
type Engine struct {
	cache       *ordercache.Cache
	clock       *ids.Clock
	seenTrades  map[ids.TradeLid]struct{}
}

// NewEngine returns an Engine operating on cache, using clock to stamp
// any record it must create without caller-supplied timestamps.
func NewEngine(cache *ordercache.Cache, clock *ids.Clock) *Engine {
	return &Engine{cache: cache, clock: clock, seenTrades: make(map[ids.TradeLid]struct{})}
}

// Fold applies upd to the cache, creating a late-bound record if none
// matches and upd arrived from a venue-initiated sync, and returns the
// resulting order. An unmatched update that did not originate from a
// venue sync (e.g. a garbled or stale locally-initiated update) is
// rejected rather than fabricating a record, per §4.3. Replaying the
// same update after it has already been applied is a no-op that returns
// the same record (idempotence, §4.3).
func (e *Engine) Fold(upd UpdateOrder) (*model.Order, error) {
	order := e.locate(upd)
	if order == nil {
		if !upd.VenueInitiated {
			return nil, fmt.Errorf("lifecycle: update matches no known order and is not venue-initiated")
		}
		order = e.bind(upd)
	}

	if order.Status.Terminal() {
		// Terminal -> anything is ignored (monotonicity).
		return order, nil
	}

	if !upd.ServerID.Empty() {
		if order.ServerID.Empty() {
			order.ServerID = upd.ServerID
		} else if order.ServerID != upd.ServerID {
			return order, fmt.Errorf("%w: order %s server id %s != incoming %s", ErrInvariant, order.LocalID, order.ServerID, upd.ServerID)
		}
	}

	if upd.HasFilledSize {
		if upd.FilledSize > order.FilledSize {
			order.FilledSize = upd.FilledSize
		}
	}
	if upd.HasFilledCostDelta {
		order.FilledCostMin += upd.FilledCostDelta
	}

	order.Status = deriveStatus(order, upd.Status, upd.HasStatus)
	e.closeIfTerminal(order, upd.UpdateLt)
	if upd.UpdateLt > order.UpdateLt {
		order.UpdateLt = upd.UpdateLt
	}
	return order, nil
}

// ApplyTrade folds a single OrderTrade into its parent order, growing
// FilledSize and FilledCostMin exactly once per TradeLid (§3, invariant
// 4). Returns (order, applied, error); applied is false when the trade
// had already been observed, a routine occurrence under at-least-once
// delivery that callers should not treat as an error.
func (e *Engine) ApplyTrade(trade model.OrderTrade) (*model.Order, bool, error) {
	if _, seen := e.seenTrades[trade.TradeLid]; seen {
		return e.cache.FindByLocalID(trade.OrderLid), false, nil
	}
	order := e.cache.FindByLocalID(trade.OrderLid)
	if order == nil {
		return nil, false, fmt.Errorf("lifecycle: trade %s references unknown order %s", trade.TradeLid, trade.OrderLid)
	}
	e.seenTrades[trade.TradeLid] = struct{}{}

	if order.Status.Terminal() {
		return order, true, nil
	}

	newFilled := order.FilledSize + trade.Size
	if newFilled > order.FilledSize {
		order.FilledSize = newFilled
	}
	order.FilledCostMin += trade.Cost()

	order.Status = deriveStatus(order, order.Status, false)
	now := e.clock.Now()
	e.closeIfTerminal(order, now)
	if now > order.UpdateLt {
		order.UpdateLt = now
	}
	return order, true, nil
}

// locate implements the identification rule: match first by local ID,
// then client ID, then server ID.
func (e *Engine) locate(upd UpdateOrder) *model.Order {
	if !upd.LocalID.Empty() {
		if o := e.cache.FindByLocalID(upd.LocalID); o != nil {
			return o
		}
	}
	if !upd.ClientID.Empty() {
		if o := e.cache.FindByClientID(upd.ClientID); o != nil {
			return o
		}
	}
	if !upd.ServerID.Empty() {
		if o := e.cache.FindByServerID(upd.ServerID); o != nil {
			return o
		}
	}
	return nil
}

// bind creates a new record when no existing one matches upd. A
// venue-initiated sync reporting a recognized live/terminal status late-
// binds a pre-existing exchange-side order; anything else (e.g. a pending
// order whose local binding hasn't arrived yet) is created Open, per
// §4.3.
func (e *Engine) bind(upd UpdateOrder) *model.Order {
	skeleton := &model.Order{
		LocalID:  upd.LocalID,
		ClientID: upd.ClientID,
		ServerID: upd.ServerID,
		Account:  upd.Account,
		CreateLt: upd.UpdateLt,
		UpdateLt: upd.UpdateLt,
		Status:   model.StatusOpen,
	}
	if upd.Instrument.Set {
		skeleton.Instrument = upd.Instrument.Code
	}
	if upd.HasStatus && isLateBindStatus(upd.Status) {
		skeleton.Status = upd.Status
	}
	return e.cache.Add(skeleton)
}

// isLateBindStatus reports whether s is one of the recognized live/
// terminal statuses a venue sync may report for an order this session
// has never seen before (§4.3). Local-only transitional statuses
// (Pending, PendingNew, CancelPending) never describe a venue's own view
// of an order and are never adopted verbatim.
func isLateBindStatus(s model.OrderStatus) bool {
	switch s {
	case model.StatusOpen, model.StatusPartiallyFilled, model.StatusFilled, model.StatusCancelled, model.StatusRejected:
		return true
	default:
		return false
	}
}

// closeIfTerminal sets CloseLt on first transition into the terminal set,
// and never thereafter (§3, §4.3).
func (e *Engine) closeIfTerminal(order *model.Order, at ids.LogicalTime) {
	if order.Status.Terminal() && !order.HasCloseLt {
		order.CloseLt = at
		order.HasCloseLt = true
	}
}

// deriveStatus computes the post-fold status: an explicit terminal status
// always wins; a full fill auto-promotes to Filled even without an
// explicit signal (this is how a lone OrderTrade that completes an order
// closes it); a partial fill auto-promotes to PartiallyFilled; otherwise
// an explicit non-terminal status is applied, else the status is
// unchanged.
func deriveStatus(order *model.Order, proposed model.OrderStatus, hasProposed bool) model.OrderStatus {
	if hasProposed && proposed.Terminal() {
		return proposed
	}
	if order.Size > 0 && order.FilledSize >= order.Size && order.FilledSize > 0 {
		return model.StatusFilled
	}
	if order.FilledSize > 0 && order.FilledSize < order.Size {
		return model.StatusPartiallyFilled
	}
	if hasProposed {
		return proposed
	}
	return order.Status
}

// RequestCancel marks order CancelPending and emits the outbound intent;
// a no-op returning false if the order is already terminal (§4.5).
func (e *Engine) RequestCancel(order *model.Order, at ids.LogicalTime) bool {
	if order.Status.Terminal() {
		return false
	}
	order.Status = model.StatusCancelPending
	if at > order.UpdateLt {
		order.UpdateLt = at
	}
	return true
}
