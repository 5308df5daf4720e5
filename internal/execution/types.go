// Package execution implements the Adapter Framework's execution
// specialization and the Execution Session of spec §4.4-§4.5: the
// request/response contract every venue adapter satisfies, a process-wide
// builder registry, and the session that owns one Order Cache per
// (adapter, account).
package execution

import (
	"time"

	"github.com/vexcore/exec-core/internal/lifecycle"
	"github.com/vexcore/exec-core/pkg/ids"
	"github.com/vexcore/exec-core/pkg/model"
)

// UpdateOrder is the wire-level order update folded by internal/lifecycle.
type UpdateOrder = lifecycle.UpdateOrder

// Resource names a capability an execution adapter may provide; an
// adapter that omits one still registers, it simply never emits requests
// of that kind.
type Resource int

const (
	ResourceExecution Resource = iota
	ResourceAccounting
)

func (r Resource) String() string {
	if r == ResourceAccounting {
		return "Accounting"
	}
	return "Execution"
}

// Config carries the recognized options of spec §4.4's ExecutionConfig
// table.
type Config struct {
	Exchange    ids.Exchange
	Network     ids.Network
	Resources   []Resource
	Account     ids.AccountId
	Credentials any // opaque per-venue secret bundle; see internal/credentials
	Extra       map[string]any

	// OrderSyncInterval and BalanceSyncInterval seed the session's
	// periodic reconciliation timers (§4.5); zero disables that timer.
	OrderSyncInterval   time.Duration
	BalanceSyncInterval time.Duration
}

// HasResource reports whether cfg declares r among its Resources.
func (c Config) HasResource(r Resource) bool {
	for _, have := range c.Resources {
		if have == r {
			return true
		}
	}
	return false
}

// RequestTag discriminates the ExecutionRequest tagged sum.
type RequestTag int

const (
	ReqPlaceOrder RequestTag = iota
	ReqCancelOrder
	ReqCancelAllOrders
	ReqSyncOrders
	ReqGetPositions
	ReqQueryAssets
	ReqUpdateLeverage
)

func (r RequestTag) String() string {
	switch r {
	case ReqPlaceOrder:
		return "PlaceOrder"
	case ReqCancelOrder:
		return "CancelOrder"
	case ReqCancelAllOrders:
		return "CancelAllOrders"
	case ReqSyncOrders:
		return "SyncOrders"
	case ReqGetPositions:
		return "GetPositions"
	case ReqQueryAssets:
		return "QueryAssets"
	case ReqUpdateLeverage:
		return "UpdateLeverage"
	default:
		return "Unknown"
	}
}

// InstrumentSelector narrows a SyncOrders request to a subset of
// instruments; a selector with Any == true means "all".
type InstrumentSelector struct {
	Any         bool
	Instruments []model.InstrumentCode
}

// Request is the ExecutionRequest tagged sum of spec §4.4.
type Request struct {
	Tag RequestTag

	PlaceOrder *model.Order // ReqPlaceOrder

	CancelSelector CancelSelector // ReqCancelOrder

	// ReqCancelAllOrders: Exchange is set when cancelling on one venue,
	// HasExchange false means "all exchanges".
	Exchange    ids.Exchange
	HasExchange bool

	Selector InstrumentSelector // ReqSyncOrders

	// ReqUpdateLeverage
	Symbol   string
	HasSymbol bool
	Leverage float64
}

// CancelSelector identifies the order a CancelOrder request targets, by
// any of the three order identifiers (same identification priority as
// the lifecycle engine's locate rule).
type CancelSelector struct {
	LocalID  ids.OrderLid
	ClientID ids.OrderCid
	ServerID ids.OrderSid
}

// PlaceOrderRequest builds a Request wrapping a PlaceOrder intent.
func PlaceOrderRequest(order *model.Order) Request {
	return Request{Tag: ReqPlaceOrder, PlaceOrder: order}
}

// CancelOrderRequest builds a Request targeting sel for cancellation.
func CancelOrderRequest(sel CancelSelector) Request {
	return Request{Tag: ReqCancelOrder, CancelSelector: sel}
}

// CancelAllOrdersRequest builds a Request cancelling every open order,
// optionally scoped to one exchange.
func CancelAllOrdersRequest(exchange ids.Exchange, hasExchange bool) Request {
	return Request{Tag: ReqCancelAllOrders, Exchange: exchange, HasExchange: hasExchange}
}

// SyncOrdersRequest builds a Request asking the adapter for an
// authoritative order snapshot scoped by sel.
func SyncOrdersRequest(sel InstrumentSelector) Request {
	return Request{Tag: ReqSyncOrders, Selector: sel}
}

// GetPositionsRequest builds a Request asking for current positions on
// exchange.
func GetPositionsRequest(exchange ids.Exchange) Request {
	return Request{Tag: ReqGetPositions, Exchange: exchange}
}

// QueryAssetsRequest builds a Request asking for the account's asset
// balances, optionally scoped to one exchange.
func QueryAssetsRequest(exchange ids.Exchange, hasExchange bool) Request {
	return Request{Tag: ReqQueryAssets, Exchange: exchange, HasExchange: hasExchange}
}

// UpdateLeverageRequest builds a Request changing leverage for symbol (or
// the whole account when symbol is absent).
func UpdateLeverageRequest(exchange ids.Exchange, symbol string, hasSymbol bool, leverage float64) Request {
	return Request{Tag: ReqUpdateLeverage, Exchange: exchange, Symbol: symbol, HasSymbol: hasSymbol, Leverage: leverage}
}

// ResponseTag discriminates the ExecutionResponse tagged sum.
type ResponseTag int

const (
	RespUpdateOrder ResponseTag = iota
	RespSyncOrders
	RespUpdatePositions
	RespTrade
	RespFunding
	RespError
	RespGroup
	// RespSourceStatus carries connection-liveness transitions (§4.5,
	// §4.6's SourceStatus gating); it is a session-internal extension of
	// the wire-level tagged sum, not something an adapter's codec
	// produces.
	RespSourceStatus
)

// Response is the ExecutionResponse tagged sum of spec §4.4. Group
// composes multiple responses carried by one wire frame; Flatten expands
// it recursively.
type Response struct {
	Tag ResponseTag

	UpdateOrder  UpdateOrder          // RespUpdateOrder
	SyncOrders   []UpdateOrder        // RespSyncOrders: an authoritative snapshot
	Positions    UpdatePositions      // RespUpdatePositions
	Trade        model.OrderTrade     // RespTrade
	Funding      model.FundingPayment // RespFunding
	Error        string               // RespError
	Group        []Response           // RespGroup
	SourceStatus model.SourceStatus   // RespSourceStatus
}

// UpdatePositions is the RespUpdatePositions payload: either a full
// snapshot (SyncBalance) or a set of per-instrument diffs, per spec §4.6.
type UpdatePositions struct {
	Account  ids.AccountId
	Exchange ids.Exchange

	// SyncBalance marks this as a Snapshot: Entries is the complete set of
	// positions for (Account, Exchange); anything previously held for this
	// scope and absent here must be zeroed, not deleted.
	SyncBalance bool

	Entries []PositionUpdate
}

// PositionUpdate is one instrument's contribution to an UpdatePositions
// event. In a Diff (SyncBalance == false), SetValues marks an absolute
// override; otherwise Total/Available/Locked are deltas to add.
type PositionUpdate struct {
	Instrument model.InstrumentCode

	Total     float64
	Available float64
	Locked    float64

	SetValues bool
}

// Flatten expands a (possibly nested) RespGroup response into its leaves,
// in order. A non-Group response flattens to itself.
func Flatten(responses []Response) []Response {
	out := make([]Response, 0, len(responses))
	for _, r := range responses {
		if r.Tag == RespGroup {
			out = append(out, Flatten(r.Group)...)
			continue
		}
		out = append(out, r)
	}
	return out
}
