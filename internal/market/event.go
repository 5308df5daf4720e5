// Package market implements the Adapter Framework's market-data
// specialization and the Subscription Manager of spec §4.4/§4.9: the
// MarketEvent tagged sum, a MarketFeedService contract with its own
// builder registry, and the per-session subscription bookkeeping that
// replays on reconnect.
package market

import (
	"github.com/vexcore/exec-core/pkg/ids"
	"github.com/vexcore/exec-core/pkg/model"
)

// EventTag discriminates the MarketEvent tagged sum.
type EventTag int

const (
	EventTrade EventTag = iota
	EventBookTicker
	EventDepth
	EventSourceStatus
)

// BookTicker is the best bid/ask snapshot for one instrument.
type BookTicker struct {
	Instrument model.InstrumentCode
	BidPrice   float64
	BidSize    float64
	AskPrice   float64
	AskSize    float64
	ExchangeTime ids.ExchangeTime
}

// DepthLevel is one price/size rung of a depth update.
type DepthLevel struct {
	Price float64
	Size  float64
}

// Depth is an incremental or snapshot order-book update.
type Depth struct {
	Instrument   model.InstrumentCode
	Bids         []DepthLevel
	Asks         []DepthLevel
	IsSnapshot   bool
	ExchangeTime ids.ExchangeTime
}

// Trade is a public (non-account) trade print.
type Trade struct {
	Instrument   model.InstrumentCode
	Price        float64
	Size         float64
	Side         model.Side
	ExchangeTime ids.ExchangeTime
}

// Event is the MarketEvent tagged sum produced by a MarketFeedService.
type Event struct {
	Tag EventTag

	Trade      Trade            // EventTrade
	BookTicker BookTicker       // EventBookTicker
	Depth      Depth            // EventDepth
	Source     model.SourceStatus // EventSourceStatus
}
