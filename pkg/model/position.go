package model

import "github.com/vexcore/exec-core/pkg/ids"

// positionTolerance bounds the acceptable drift between Total and
// Available+Locked introduced by floating-point representation (§3,
// invariant 6).
const positionTolerance = 1e-9

// Position is created lazily on first reference to its instrument and is
// never removed; a zero position is valid and semantically "flat" (§3).
type Position struct {
	Instrument InstrumentCode
	Account    ids.AccountId

	Total     float64
	Available float64
	Locked    float64

	EntryPrice    float64
	HasEntryPrice bool
}

// Balanced reports whether Available+Locked equals Total within
// representable-float tolerance.
func (p *Position) Balanced() bool {
	d := p.Available + p.Locked - p.Total
	if d < 0 {
		d = -d
	}
	return d <= positionTolerance
}

// Flat reports whether the position carries no exposure.
func (p *Position) Flat() bool {
	return p.Total == 0
}

// Portfolio is a mapping from InstrumentCode to Position for one account.
// The zero value is ready to use.
type Portfolio struct {
	Account   ids.AccountId
	positions map[InstrumentCode]*Position
}

// NewPortfolio returns an empty Portfolio for the given account.
func NewPortfolio(account ids.AccountId) *Portfolio {
	return &Portfolio{Account: account, positions: make(map[InstrumentCode]*Position)}
}

// Get returns the position for instrument, creating a flat one on first
// reference (§3: "Positions are created on first reference").
func (p *Portfolio) Get(instrument InstrumentCode) *Position {
	if p.positions == nil {
		p.positions = make(map[InstrumentCode]*Position)
	}
	pos, ok := p.positions[instrument]
	if !ok {
		pos = &Position{Instrument: instrument, Account: p.Account}
		p.positions[instrument] = pos
	}
	return pos
}

// Lookup returns the position for instrument without creating one.
func (p *Portfolio) Lookup(instrument InstrumentCode) (*Position, bool) {
	pos, ok := p.positions[instrument]
	return pos, ok
}

// All returns every position currently tracked, including flat ones.
func (p *Portfolio) All() []*Position {
	out := make([]*Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	return out
}

// FundingPayment is applied at-most-once, keyed by FundingLid (§3).
type FundingPayment struct {
	Instrument      InstrumentCode
	SourceTimestamp ids.ExchangeTime
	FundingLid      ids.FundingLid
	Asset           string
	Quantity        float64
}

// SourceStatus carries per-exchange health flags used to gate strategies
// on whether the position view is authoritative (§3, §4.5).
type SourceStatus struct {
	Exchange         ids.Exchange
	Account          ids.AccountId
	Alive            bool
	InitialPositions bool
}
