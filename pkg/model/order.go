package model

import "github.com/vexcore/exec-core/pkg/ids"

// Side is the order/trade direction.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideSell {
		return "Sell"
	}
	return "Buy"
}

// OrderType is the closed set of order types the core understands.
type OrderType int

const (
	OrderTypeMarket OrderType = iota
	OrderTypeLimit
	OrderTypePostOnly
	OrderTypeStopLimit
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "Market"
	case OrderTypeLimit:
		return "Limit"
	case OrderTypePostOnly:
		return "PostOnly"
	case OrderTypeStopLimit:
		return "StopLimit"
	default:
		return "Unknown"
	}
}

// TimeInForce is the closed set of time-in-force instructions.
type TimeInForce int

const (
	TimeInForceGTC TimeInForce = iota
	TimeInForceIOC
	TimeInForceFOK
	TimeInForcePostOnly
)

func (t TimeInForce) String() string {
	switch t {
	case TimeInForceGTC:
		return "GTC"
	case TimeInForceIOC:
		return "IOC"
	case TimeInForceFOK:
		return "FOK"
	case TimeInForcePostOnly:
		return "PostOnly"
	default:
		return "Unknown"
	}
}

// OrderStatus is the closed enum of §3. Transitions are monotonic toward
// the terminal set (Filled, Cancelled, Rejected, Expired, Discarded); see
// internal/lifecycle for the transition rules.
type OrderStatus int

const (
	StatusPending OrderStatus = iota
	StatusPendingNew
	StatusOpen
	StatusPartiallyFilled
	StatusFilled
	StatusCancelPending
	StatusCancelled
	StatusRejected
	StatusExpired
	StatusDiscarded
)

func (s OrderStatus) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusPendingNew:
		return "PendingNew"
	case StatusOpen:
		return "Open"
	case StatusPartiallyFilled:
		return "PartiallyFilled"
	case StatusFilled:
		return "Filled"
	case StatusCancelPending:
		return "CancelPending"
	case StatusCancelled:
		return "Cancelled"
	case StatusRejected:
		return "Rejected"
	case StatusExpired:
		return "Expired"
	case StatusDiscarded:
		return "Discarded"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the status is a member of the terminal set T.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusExpired, StatusDiscarded:
		return true
	default:
		return false
	}
}

// Order is the canonical per-order record owned by exactly one Order
// Cache. It is created by PlaceOrder and mutated only by the lifecycle
// engine (internal/lifecycle) — never directly by strategies.
type Order struct {
	LocalID  ids.OrderLid
	ClientID ids.OrderCid
	ServerID ids.OrderSid

	Instrument InstrumentCode
	Account    ids.AccountId

	Side        Side
	Type        OrderType
	TimeInForce TimeInForce

	Price float64
	Size  float64

	FilledSize     float64
	FilledCostMin  float64 // sum of price*size over observed fills; a lower bound, never a price
	Status         OrderStatus
	CreateLt       ids.LogicalTime
	UpdateLt       ids.LogicalTime
	CloseLt        ids.LogicalTime
	HasCloseLt     bool
	StrategyID     string
}

// GetIDs returns the three identifiers, for use with an order-cache
// Selector.
func (o *Order) GetIDs() (ids.OrderLid, ids.OrderCid, ids.OrderSid) {
	return o.LocalID, o.ClientID, o.ServerID
}

// Remaining returns size not yet filled.
func (o *Order) Remaining() float64 {
	r := o.Size - o.FilledSize
	if r < 0 {
		return 0
	}
	return r
}

// AvgFillPrice returns FilledCostMin / FilledSize, or 0 if nothing has
// filled yet. This is a lower bound on the true average price, per the
// FilledCostMin invariant (§3, §6): it is never to be used as a price.
func (o *Order) AvgFillPrice() float64 {
	if o.FilledSize <= 0 {
		return 0
	}
	return o.FilledCostMin / o.FilledSize
}

// Clone returns a deep copy suitable for handing to callers outside the
// owning session (the Order Cache itself is never shared across
// goroutines; snapshots are).
func (o *Order) Clone() *Order {
	cp := *o
	return &cp
}
