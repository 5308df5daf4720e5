// Package model defines the shared data model of the execution and
// accounting core: instruments, orders, trades, positions and the
// portfolio. These types are plain Go structs — the core does not depend
// on any protobuf/code-generation pipeline (that build step is an
// external, out-of-scope collaborator per the specification).
package model

import (
	"fmt"

	"github.com/vexcore/exec-core/pkg/ids"
)

// InstrumentKind distinguishes the settlement style of a Simple
// instrument.
type InstrumentKind int

const (
	KindSpot InstrumentKind = iota
	KindPerpLinear
	KindPerpInverse
	KindDelivery
)

func (k InstrumentKind) String() string {
	switch k {
	case KindSpot:
		return "Spot"
	case KindPerpLinear:
		return "PerpLinear"
	case KindPerpInverse:
		return "PerpInverse"
	case KindDelivery:
		return "Delivery"
	default:
		return "Unknown"
	}
}

// InstrumentCode is a tagged sum identifying a tradeable unit, either
// asset-only (for balances/funding) or exchange-qualified (for orders and
// positions). Exactly one of the three shapes is populated, selected by
// Tag.
type InstrumentCode struct {
	Tag InstrumentCodeTag

	// Asset shape.
	Location ids.Exchange
	Asset    string

	// Simple shape.
	Exchange ids.Exchange
	Base     string
	Quote    string
	Kind     InstrumentKind
	Maturity int64 // unix seconds, only meaningful when Kind == KindDelivery
}

// InstrumentCodeTag discriminates the InstrumentCode union.
type InstrumentCodeTag int

const (
	CodeNone InstrumentCodeTag = iota
	CodeAsset
	CodeSimple
)

// NewAssetCode builds an asset-only instrument code, used for balances
// and funding payments that are not tied to a specific market.
func NewAssetCode(location ids.Exchange, asset string) InstrumentCode {
	return InstrumentCode{Tag: CodeAsset, Location: location, Asset: asset}
}

// NewSimpleCode builds an exchange-qualified instrument code for a
// tradeable market.
func NewSimpleCode(exchange ids.Exchange, base, quote string, kind InstrumentKind) InstrumentCode {
	return InstrumentCode{Tag: CodeSimple, Exchange: exchange, Base: base, Quote: quote, Kind: kind}
}

// GetExchange returns the exchange this instrument is bound to, if any.
func (c InstrumentCode) GetExchange() (ids.Exchange, bool) {
	switch c.Tag {
	case CodeAsset:
		return c.Location, true
	case CodeSimple:
		return c.Exchange, true
	default:
		return ids.ExchangeUnknown, false
	}
}

func (c InstrumentCode) String() string {
	switch c.Tag {
	case CodeAsset:
		return fmt.Sprintf("%s:%s", c.Location, c.Asset)
	case CodeSimple:
		if c.Kind == KindDelivery {
			return fmt.Sprintf("%s:%s-%s:%s@%d", c.Exchange, c.Base, c.Quote, c.Kind, c.Maturity)
		}
		return fmt.Sprintf("%s:%s-%s:%s", c.Exchange, c.Base, c.Quote, c.Kind)
	default:
		return "None"
	}
}

// InstrumentSymbol selects an instrument by its venue-native symbol, used
// by the Instrument Manager's primary lookup path (§4.1).
type InstrumentSymbol struct {
	Exchange ids.Exchange
	Symbol   string
	Category *ids.InstrumentCategory // optional disambiguator
}

// SizeSpec describes the quantization of one dimension (price or
// quantity) of an instrument.
type SizeSpec struct {
	Precision int     // decimal places for wire formatting
	Step      float64 // lot/tick step size
}

// Quantize rounds v to the nearest multiple of the step size. A zero
// Step is treated as "no quantization".
func (s SizeSpec) Quantize(v float64) float64 {
	if s.Step <= 0 {
		return v
	}
	steps := float64(int64(v/s.Step + 0.5))
	return steps * s.Step
}

// InstrumentDetails is the normalized, shared description of a tradeable
// instrument returned by the Instrument Manager. Once published it is
// never mutated; callers hold a pointer to the single shared instance.
type InstrumentDetails struct {
	InstrumentCode

	VenueSymbol string
	VenueID     string // exchange-assigned numeric/opaque instrument id

	Lot  SizeSpec
	Tick SizeSpec

	BaseAsset  string
	QuoteAsset string

	BasePrecision  int
	QuotePrecision int

	Margin   bool
	Category ids.InstrumentCategory
}
