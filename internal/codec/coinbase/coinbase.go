// Package coinbase implements a codec.Codec for Coinbase's Advanced
// Trade user-channel order/fill messages and place/cancel order frames,
// adapted from the teacher's protobuf-targeting normalizer
// (internal/normalizer/coinbase) onto the core's own domain types
// instead of generated code (spec §1 places the code-generation pipeline
// out of scope).
package coinbase

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vexcore/exec-core/internal/execution"
	"github.com/vexcore/exec-core/internal/lifecycle"
	"github.com/vexcore/exec-core/pkg/ids"
	"github.com/vexcore/exec-core/pkg/model"
)

// envelope is the outer shape of every Coinbase Advanced Trade
// user-channel message: a type discriminator selecting which of the
// payload fields is populated.
type envelope struct {
	Type    string     `json:"type"`
	Order   *wireOrder `json:"order,omitempty"`
	Fill    *wireFill  `json:"fill,omitempty"`
	Message string     `json:"message,omitempty"`
}

// wireOrder mirrors the subset of Coinbase's order shape the core needs;
// see internal/normalizer/coinbase.CoinbaseOrder in the pack for the full
// field list this was distilled from.
type wireOrder struct {
	OrderID            string `json:"order_id"`
	ClientOrderID      string `json:"client_order_id"`
	ProductID          string `json:"product_id"`
	Side               string `json:"side"`
	Status             string `json:"status"`
	FilledSize         string `json:"filled_size"`
	AverageFilledPrice string `json:"average_filled_price"`
	LastFillTime       string `json:"last_fill_time"`
	RejectReason       string `json:"reject_reason"`
}

// wireFill mirrors Coinbase's fill/execution-report shape.
type wireFill struct {
	TradeID    string `json:"trade_id"`
	OrderID    string `json:"order_id"`
	ProductID  string `json:"product_id"`
	TradeTime  string `json:"trade_time"`
	Price      string `json:"price"`
	Size       string `json:"size"`
	Commission string `json:"commission"`
	Side       string `json:"side"`
}

// Codec implements codec.Codec for the Coinbase adapter.
type Codec struct {
	Exchange ids.Exchange
	Account  ids.AccountId
}

// New returns a Codec that stamps outgoing/incoming records with exchange
// and account.
func New(exchange ids.Exchange, account ids.AccountId) Codec {
	return Codec{Exchange: exchange, Account: account}
}

// ParseInbound implements codec.Codec.
func (c Codec) ParseInbound(raw []byte) ([]execution.Response, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("coinbase: parse inbound: %w", err)
	}

	switch env.Type {
	case "order":
		if env.Order == nil {
			return nil, fmt.Errorf("coinbase: order frame missing order payload")
		}
		resp, err := c.parseOrder(env.Order)
		if err != nil {
			return nil, err
		}
		return []execution.Response{resp}, nil
	case "fill":
		if env.Fill == nil {
			return nil, fmt.Errorf("coinbase: fill frame missing fill payload")
		}
		resp, err := c.parseFill(env.Fill)
		if err != nil {
			return nil, err
		}
		return []execution.Response{resp}, nil
	case "error":
		return []execution.Response{{Tag: execution.RespError, Error: env.Message}}, nil
	default:
		return nil, fmt.Errorf("coinbase: unrecognized frame type %q", env.Type)
	}
}

func (c Codec) parseOrder(o *wireOrder) (execution.Response, error) {
	status := parseOrderStatus(o.Status)

	upd := lifecycle.UpdateOrder{
		ClientID:       ids.OrderCid(o.ClientOrderID),
		ServerID:       ids.OrderSid(o.OrderID),
		Status:         status,
		HasStatus:      true,
		FilledSize:     parseDecimalOrZero(o.FilledSize),
		HasFilledSize:  true,
		VenueInitiated: true,
		Account:        c.Account,
	}
	if base, quote, ok := splitProductID(o.ProductID); ok {
		upd.Instrument = lifecycle.InstrumentHint{
			Code: model.NewSimpleCode(c.Exchange, base, quote, model.KindSpot),
			Set:  true,
		}
	}
	return execution.Response{Tag: execution.RespUpdateOrder, UpdateOrder: upd}, nil
}

func (c Codec) parseFill(f *wireFill) (execution.Response, error) {
	tradeTime, err := parseTimestamp(f.TradeTime)
	if err != nil {
		return execution.Response{}, fmt.Errorf("coinbase: invalid trade_time: %w", err)
	}

	trade := model.OrderTrade{
		Account:      c.Account,
		TradeLid:     ids.TradeLid(f.TradeID),
		Price:        parseDecimalOrZero(f.Price),
		Size:         parseDecimalOrZero(f.Size),
		Side:         parseSide(f.Side),
		Fee:          parseDecimalOrZero(f.Commission),
		OrderLid:     ids.OrderLid(f.OrderID),
		ExchangeTime: ids.ExchangeTime(tradeTime.UnixNano()),
	}
	if base, quote, ok := splitProductID(f.ProductID); ok {
		trade.Instrument = model.NewSimpleCode(c.Exchange, base, quote, model.KindSpot)
	}
	return execution.Response{Tag: execution.RespTrade, Trade: trade}, nil
}

// EncodeOutbound implements codec.Codec.
func (c Codec) EncodeOutbound(req execution.Request) ([]byte, error) {
	switch req.Tag {
	case execution.ReqPlaceOrder:
		return c.encodePlaceOrder(req.PlaceOrder)
	case execution.ReqCancelOrder:
		return c.encodeCancelOrder(req.CancelSelector)
	default:
		return nil, fmt.Errorf("coinbase: unsupported outbound request %v", req.Tag)
	}
}

type placeOrderFrame struct {
	Type          string `json:"type"`
	ClientOrderID string `json:"client_order_id"`
	ProductID     string `json:"product_id"`
	Side          string `json:"side"`
	BaseSize      string `json:"base_size"`
	LimitPrice    string `json:"limit_price,omitempty"`
}

func (c Codec) encodePlaceOrder(order *model.Order) ([]byte, error) {
	if order == nil {
		return nil, fmt.Errorf("coinbase: place order request carries no order")
	}
	frame := placeOrderFrame{
		Type:          "place_order",
		ClientOrderID: order.ClientID.String(),
		ProductID:     fmt.Sprintf("%s-%s", order.Instrument.Base, order.Instrument.Quote),
		Side:          formatSide(order.Side),
		BaseSize:      formatDecimal(order.Size),
	}
	if order.Type != model.OrderTypeMarket {
		frame.LimitPrice = formatDecimal(order.Price)
	}
	return json.Marshal(frame)
}

type cancelOrderFrame struct {
	Type          string `json:"type"`
	OrderID       string `json:"order_id,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

func (c Codec) encodeCancelOrder(sel execution.CancelSelector) ([]byte, error) {
	frame := cancelOrderFrame{Type: "cancel_order", OrderID: sel.ServerID.String(), ClientOrderID: sel.ClientID.String()}
	return json.Marshal(frame)
}

func splitProductID(productID string) (base, quote string, ok bool) {
	parts := strings.SplitN(productID, "-", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func parseOrderStatus(s string) model.OrderStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING":
		return model.StatusPendingNew
	case "OPEN":
		return model.StatusOpen
	case "FILLED":
		return model.StatusFilled
	case "CANCELLED", "CANCELED":
		return model.StatusCancelled
	case "EXPIRED":
		return model.StatusExpired
	case "FAILED", "REJECTED":
		return model.StatusRejected
	default:
		return model.StatusOpen
	}
}

func parseSide(s string) model.Side {
	if strings.EqualFold(s, "SELL") {
		return model.SideSell
	}
	return model.SideBuy
}

func formatSide(s model.Side) string {
	if s == model.SideSell {
		return "SELL"
	}
	return "BUY"
}

func parseDecimalOrZero(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func formatDecimal(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	formats := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999Z"}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
