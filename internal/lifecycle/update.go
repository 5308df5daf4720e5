// Package lifecycle implements the Order Lifecycle Engine of spec §4.3:
// the state machine and update reducer that folds UpdateOrder events into
// the Order Cache.
package lifecycle

import (
	"github.com/vexcore/exec-core/pkg/ids"
	"github.com/vexcore/exec-core/pkg/model"
)

// UpdateOrder is a venue-originated (or locally originated) update to be
// folded into the cache. Optional fields carry a Has* flag (and the
// instrument hint its Set flag) so the reducer can distinguish "absent"
// from "zero".
type UpdateOrder struct {
	LocalID  ids.OrderLid
	ClientID ids.OrderCid
	ServerID ids.OrderSid

	Instrument InstrumentHint // only used when a new record must be created

	Status   model.OrderStatus
	HasStatus bool

	FilledSize    float64
	HasFilledSize bool

	FilledCostDelta    float64
	HasFilledCostDelta bool

	UpdateLt ids.LogicalTime

	// VenueInitiated marks this update as arriving from a venue-sync pass
	// (e.g. SyncOrders) rather than from this session's own PlaceOrder,
	// which controls the late-binding create rule in §4.3.
	VenueInitiated bool

	Account ids.AccountId
}

// InstrumentHint carries enough information to create a late-bound order
// record when no existing one matches.
type InstrumentHint struct {
	Code model.InstrumentCode
	Set  bool
}
