// Market-data parsing for the Coinbase feed: public trade prints and
// ticker/level2 book updates, adapted from the teacher's
// internal/normalizer/coinbase.CoinbaseTrade/CoinbaseOrderBook (which
// target the REST endpoints of the same fields) onto the streaming
// "type"-discriminated frames Coinbase's public websocket channels emit.
package coinbase

import (
	"encoding/json"
	"fmt"

	"github.com/vexcore/exec-core/internal/market"
	"github.com/vexcore/exec-core/pkg/ids"
	"github.com/vexcore/exec-core/pkg/model"
)

type marketEnvelope struct {
	Type string `json:"type"`
}

// wireTrade mirrors CoinbaseTrade's fields, streamed one per "match"
// frame instead of batched in a TradesResponse.
type wireTrade struct {
	Type      string `json:"type"`
	TradeID   string `json:"trade_id"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Time      string `json:"time"`
	Side      string `json:"side"`
}

// wireTicker is Coinbase's best bid/ask snapshot frame.
type wireTicker struct {
	Type        string `json:"type"`
	ProductID   string `json:"product_id"`
	BestBid     string `json:"best_bid"`
	BestBidSize string `json:"best_bid_size"`
	BestAsk     string `json:"best_ask"`
	BestAskSize string `json:"best_ask_size"`
	Time        string `json:"time"`
}

// wireLevel is one [price, size] rung, matching CoinbaseOrderBook's
// PriceBook.Bids/Asks shape.
type wireLevel [2]string

// wireL2Update is Coinbase's incremental/snapshot book frame.
type wireL2Update struct {
	Type       string      `json:"type"`
	ProductID  string      `json:"product_id"`
	Bids       []wireLevel `json:"bids"`
	Asks       []wireLevel `json:"asks"`
	IsSnapshot bool        `json:"is_snapshot"`
	Time       string      `json:"time"`
}

// ParseMarketEvent decodes one streamed frame into a market.Event. The
// second return value is false for frame types this feed doesn't
// surface as events (e.g. subscription acks), which callers should
// silently skip rather than treat as an error.
func (c Codec) ParseMarketEvent(raw []byte) (market.Event, bool, error) {
	var env marketEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return market.Event{}, false, fmt.Errorf("coinbase: parse market frame: %w", err)
	}

	switch env.Type {
	case "match", "last_match":
		var w wireTrade
		if err := json.Unmarshal(raw, &w); err != nil {
			return market.Event{}, false, fmt.Errorf("coinbase: parse trade frame: %w", err)
		}
		return c.buildTradeEvent(w)
	case "ticker":
		var w wireTicker
		if err := json.Unmarshal(raw, &w); err != nil {
			return market.Event{}, false, fmt.Errorf("coinbase: parse ticker frame: %w", err)
		}
		return c.buildTickerEvent(w)
	case "snapshot", "l2update":
		var w wireL2Update
		if err := json.Unmarshal(raw, &w); err != nil {
			return market.Event{}, false, fmt.Errorf("coinbase: parse book frame: %w", err)
		}
		w.IsSnapshot = env.Type == "snapshot"
		return c.buildDepthEvent(w)
	case "subscriptions", "heartbeat":
		return market.Event{}, false, nil
	default:
		return market.Event{}, false, nil
	}
}

func (c Codec) buildTradeEvent(w wireTrade) (market.Event, bool, error) {
	t, err := parseTimestamp(w.Time)
	if err != nil {
		return market.Event{}, false, fmt.Errorf("coinbase: invalid trade time: %w", err)
	}
	trade := market.Trade{
		Price:        parseDecimalOrZero(w.Price),
		Size:         parseDecimalOrZero(w.Size),
		Side:         parseSide(w.Side),
		ExchangeTime: ids.ExchangeTime(t.UnixNano()),
	}
	if base, quote, ok := splitProductID(w.ProductID); ok {
		trade.Instrument = model.NewSimpleCode(c.Exchange, base, quote, model.KindSpot)
	}
	return market.Event{Tag: market.EventTrade, Trade: trade}, true, nil
}

func (c Codec) buildTickerEvent(w wireTicker) (market.Event, bool, error) {
	t, err := parseTimestamp(w.Time)
	if err != nil {
		return market.Event{}, false, fmt.Errorf("coinbase: invalid ticker time: %w", err)
	}
	ticker := market.BookTicker{
		BidPrice:     parseDecimalOrZero(w.BestBid),
		BidSize:      parseDecimalOrZero(w.BestBidSize),
		AskPrice:     parseDecimalOrZero(w.BestAsk),
		AskSize:      parseDecimalOrZero(w.BestAskSize),
		ExchangeTime: ids.ExchangeTime(t.UnixNano()),
	}
	if base, quote, ok := splitProductID(w.ProductID); ok {
		ticker.Instrument = model.NewSimpleCode(c.Exchange, base, quote, model.KindSpot)
	}
	return market.Event{Tag: market.EventBookTicker, BookTicker: ticker}, true, nil
}

func (c Codec) buildDepthEvent(w wireL2Update) (market.Event, bool, error) {
	t, err := parseTimestamp(w.Time)
	if err != nil {
		return market.Event{}, false, fmt.Errorf("coinbase: invalid book time: %w", err)
	}
	depth := market.Depth{
		Bids:         parseLevels(w.Bids),
		Asks:         parseLevels(w.Asks),
		IsSnapshot:   w.IsSnapshot,
		ExchangeTime: ids.ExchangeTime(t.UnixNano()),
	}
	if base, quote, ok := splitProductID(w.ProductID); ok {
		depth.Instrument = model.NewSimpleCode(c.Exchange, base, quote, model.KindSpot)
	}
	return market.Event{Tag: market.EventDepth, Depth: depth}, true, nil
}

func parseLevels(levels []wireLevel) []market.DepthLevel {
	out := make([]market.DepthLevel, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, market.DepthLevel{Price: parseDecimalOrZero(lvl[0]), Size: parseDecimalOrZero(lvl[1])})
	}
	return out
}
