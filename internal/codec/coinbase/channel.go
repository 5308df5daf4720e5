package coinbase

import (
	"encoding/json"
	"fmt"

	"github.com/vexcore/exec-core/pkg/model"
)

// subscribeFrame is Coinbase's websocket subscribe request: a channel
// name plus the product ids to subscribe on it.
type subscribeFrame struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channel    string   `json:"channel"`
}

// TradesChannel subscribes to Coinbase's public trade-print stream.
type TradesChannel struct{}

func (TradesChannel) Name() string { return "matches" }

func (TradesChannel) EncodeSubscribeSymbol(symbol string) ([]byte, error) {
	return encodeSubscribe("matches", symbol)
}

func (TradesChannel) EncodeSubscribeInstrument(details model.InstrumentDetails) ([]byte, error) {
	return encodeSubscribe("matches", details.VenueSymbol)
}

// TickerChannel subscribes to Coinbase's best bid/ask ticker stream.
type TickerChannel struct{}

func (TickerChannel) Name() string { return "ticker" }

func (TickerChannel) EncodeSubscribeSymbol(symbol string) ([]byte, error) {
	return encodeSubscribe("ticker", symbol)
}

func (TickerChannel) EncodeSubscribeInstrument(details model.InstrumentDetails) ([]byte, error) {
	return encodeSubscribe("ticker", details.VenueSymbol)
}

// Level2Channel subscribes to Coinbase's incremental order book stream.
type Level2Channel struct{}

func (Level2Channel) Name() string { return "level2" }

func (Level2Channel) EncodeSubscribeSymbol(symbol string) ([]byte, error) {
	return encodeSubscribe("level2", symbol)
}

func (Level2Channel) EncodeSubscribeInstrument(details model.InstrumentDetails) ([]byte, error) {
	return encodeSubscribe("level2", details.VenueSymbol)
}

func encodeSubscribe(channel, productID string) ([]byte, error) {
	if productID == "" {
		return nil, fmt.Errorf("coinbase: cannot subscribe %s channel with empty product id", channel)
	}
	return json.Marshal(subscribeFrame{Type: "subscribe", ProductIDs: []string{productID}, Channel: channel})
}
