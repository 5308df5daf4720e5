package model

import "github.com/vexcore/exec-core/pkg/ids"

// OrderTrade is an immutable fill record. Its TradeLid is unique per
// (exchange, account) and is applied at-most-once to a Position and to
// its parent Order's FilledSize (§3, invariant 4).
type OrderTrade struct {
	Account      ids.AccountId
	TradeLid     ids.TradeLid
	Instrument   InstrumentCode
	Price        float64
	Size         float64
	Side         Side // taker side
	Fee          float64
	FeeAsset     string
	OrderLid     ids.OrderLid
	ExchangeTime ids.ExchangeTime
	ReceivedTime ids.ExchangeTime
}

// Cost returns Price * Size, the only sanctioned use of price*size in the
// core (§6: "Cost = price * size").
func (t OrderTrade) Cost() float64 {
	return t.Price * t.Size
}

// BuyerTaker reports whether the taker side of this trade was the buyer.
func (t OrderTrade) BuyerTaker() bool { return t.Side == SideBuy }

// SellerTaker reports whether the taker side of this trade was the seller.
func (t OrderTrade) SellerTaker() bool { return t.Side == SideSell }
