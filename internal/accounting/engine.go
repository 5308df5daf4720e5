// Package accounting implements the Accounting Engine of spec §4.6: the
// Portfolio maintainer that consumes ExecutionResponses, tracks settled
// orders, applies funding at-most-once, and enforces the "snapshots
// supersede historical diffs" bootstrap discipline.
package accounting

import (
	"sync"
	"time"

	"github.com/vexcore/exec-core/internal/execution"
	"github.com/vexcore/exec-core/pkg/ids"
	"github.com/vexcore/exec-core/pkg/model"
)

// Config carries the Open-Question decisions of spec §9: how long a
// terminal order must go untouched before being announced settled, and
// whether historical trades/funding are replayed after a snapshot (the
// default, per §9, is "no" — snapshots supersede).
type Config struct {
	SettlementGrace               time.Duration
	ReplayHistoricalAfterSnapshot bool
}

// DefaultConfig returns the spec-documented defaults: a 10s settlement
// grace and snapshot-wins bootstrap discipline.
func DefaultConfig() Config {
	return Config{SettlementGrace: 10 * time.Second, ReplayHistoricalAfterSnapshot: false}
}

type scopeKey struct {
	Account  ids.AccountId
	Exchange ids.Exchange
}

type trackedOrder struct {
	terminal     bool
	closedAt     ids.LogicalTime
	lastTradeAt  ids.LogicalTime
	hasLastTrade bool
	settled      bool
}

// Engine maintains one Portfolio per AccountId and the settlement/
// bootstrap bookkeeping of §4.6. It is not safe to share a single Engine
// across concurrent writers without relying on its internal locking —
// Consume may be called from multiple session goroutines.
type Engine struct {
	cfg Config

	mu           sync.Mutex
	portfolios   map[ids.AccountId]*model.Portfolio
	bootstrapped map[scopeKey]bool
	orders       map[ids.OrderLid]*trackedOrder
	seenFunding  map[ids.FundingLid]struct{}
	clock        *ids.Clock
}

// NewEngine returns an Engine using cfg and clock for close/settlement
// timestamps.
func NewEngine(cfg Config, clock *ids.Clock) *Engine {
	return &Engine{
		cfg:          cfg,
		portfolios:   make(map[ids.AccountId]*model.Portfolio),
		bootstrapped: make(map[scopeKey]bool),
		orders:       make(map[ids.OrderLid]*trackedOrder),
		seenFunding:  make(map[ids.FundingLid]struct{}),
		clock:        clock,
	}
}

// Portfolio returns (creating if necessary) the Portfolio for account.
func (e *Engine) Portfolio(account ids.AccountId) *model.Portfolio {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.portfolioLocked(account)
}

func (e *Engine) portfolioLocked(account ids.AccountId) *model.Portfolio {
	p, ok := e.portfolios[account]
	if !ok {
		p = model.NewPortfolio(account)
		e.portfolios[account] = p
	}
	return p
}

// Consume folds one (possibly Group-flattened) ExecutionResponse into the
// engine's state. historical marks a trade/funding event as having
// occurred before this engine considers itself live for that response's
// (account, exchange) scope — callers derive this from whether they have
// already observed SourceStatus{InitialPositions: true} for the scope.
// account is the owning session's AccountId, used to route a Funding
// payment to the right portfolio (FundingPayment itself carries no
// account, since a session already operates within exactly one).
func (e *Engine) Consume(account ids.AccountId, resp execution.Response, historical bool) {
	for _, leaf := range execution.Flatten([]execution.Response{resp}) {
		e.consumeOne(account, leaf, historical)
	}
}

func (e *Engine) consumeOne(account ids.AccountId, resp execution.Response, historical bool) {
	switch resp.Tag {
	case execution.RespUpdatePositions:
		e.applyPositions(resp.Positions)
	case execution.RespTrade:
		e.applyTrade(resp.Trade, historical)
	case execution.RespFunding:
		e.applyFunding(account, resp.Funding, historical)
	case execution.RespUpdateOrder:
		e.trackOrder(resp.UpdateOrder)
	case execution.RespSourceStatus:
		if resp.SourceStatus.InitialPositions {
			e.mu.Lock()
			e.bootstrapped[scopeKey{Account: resp.SourceStatus.Account, Exchange: resp.SourceStatus.Exchange}] = true
			e.mu.Unlock()
		}
	}
}

// applyPositions implements the Snapshot/Diff distinction of §4.6.
func (e *Engine) applyPositions(upd execution.UpdatePositions) {
	e.mu.Lock()
	defer e.mu.Unlock()
	portfolio := e.portfolioLocked(upd.Account)

	if upd.SyncBalance {
		covered := make(map[model.InstrumentCode]struct{}, len(upd.Entries))
		for _, entry := range upd.Entries {
			covered[entry.Instrument] = struct{}{}
			pos := portfolio.Get(entry.Instrument)
			pos.Total = entry.Total
			pos.Available = entry.Available
			pos.Locked = entry.Locked
		}
		for _, pos := range portfolio.All() {
			if _, ok := covered[pos.Instrument]; !ok {
				pos.Total, pos.Available, pos.Locked = 0, 0, 0
			}
		}
		e.bootstrapped[scopeKey{Account: upd.Account, Exchange: upd.Exchange}] = true
		return
	}

	for _, entry := range upd.Entries {
		pos := portfolio.Get(entry.Instrument)
		if entry.SetValues {
			pos.Total = entry.Total
			pos.Available = entry.Available
			pos.Locked = entry.Locked
		} else {
			pos.Total += entry.Total
			pos.Available += entry.Available
			pos.Locked += entry.Locked
		}
	}
}

// applyTrade contributes trade to the relevant position, honoring the
// snapshot-wins bootstrap discipline for historical trades, and updates
// settlement tracking for the parent order.
func (e *Engine) applyTrade(trade model.OrderTrade, historical bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if historical && !e.cfg.ReplayHistoricalAfterSnapshot {
		if e.bootstrapped[scopeKey{Account: trade.Account, Exchange: e.exchangeOf(trade.Instrument)}] {
			e.touchOrderLocked(trade.OrderLid)
			return
		}
	}

	portfolio := e.portfolioLocked(trade.Account)
	pos := portfolio.Get(trade.Instrument)
	signedSize := trade.Size
	if trade.Side == model.SideSell {
		signedSize = -signedSize
	}
	pos.Total += signedSize
	pos.Available += signedSize

	e.touchOrderLocked(trade.OrderLid)
}

func (e *Engine) exchangeOf(code model.InstrumentCode) ids.Exchange {
	if ex, ok := code.GetExchange(); ok {
		return ex
	}
	return ids.ExchangeUnknown
}

// applyFunding applies a funding payment exactly once, additive on the
// position for its instrument, per §4.6. Historical funding is dropped
// once the owning scope has bootstrapped from a snapshot, matching the
// trade-side "snapshots supersede" discipline.
func (e *Engine) applyFunding(account ids.AccountId, payment model.FundingPayment, historical bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, seen := e.seenFunding[payment.FundingLid]; seen {
		return
	}
	e.seenFunding[payment.FundingLid] = struct{}{}

	if historical && !e.cfg.ReplayHistoricalAfterSnapshot {
		if e.bootstrapped[scopeKey{Account: account, Exchange: e.exchangeOf(payment.Instrument)}] {
			return
		}
	}

	portfolio := e.portfolioLocked(account)
	pos := portfolio.Get(payment.Instrument)
	pos.Total += payment.Quantity
	pos.Available += payment.Quantity
}

// trackOrder records the terminal/closed state needed to compute
// settlement.
func (e *Engine) trackOrder(upd execution.UpdateOrder) {
	if !upd.HasStatus || !upd.Status.Terminal() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.trackedLocked(upd.LocalID)
	if !t.terminal {
		t.terminal = true
		t.closedAt = upd.UpdateLt
	}
}

func (e *Engine) touchOrderLocked(orderLid ids.OrderLid) {
	if orderLid.Empty() {
		return
	}
	t := e.trackedLocked(orderLid)
	t.lastTradeAt = e.clock.Now()
	t.hasLastTrade = true
}

func (e *Engine) trackedLocked(orderLid ids.OrderLid) *trackedOrder {
	t, ok := e.orders[orderLid]
	if !ok {
		t = &trackedOrder{}
		e.orders[orderLid] = t
	}
	return t
}

// SettledOrders returns every order newly eligible to be announced
// settled: terminal for at least SettlementGrace, with no trade observed
// in that window, and not previously announced. Both windows are
// measured on the engine's Clock; the now argument is not consulted. It
// marks them settled so a later call does not repeat them.
func (e *Engine) SettledOrders(now time.Time) []ids.OrderLid {
	e.mu.Lock()
	defer e.mu.Unlock()

	var settled []ids.OrderLid
	for lid, t := range e.orders {
		if !t.terminal || t.settled {
			continue
		}
		closedAgo := time.Duration(e.clock.Now()-t.closedAt) * time.Nanosecond
		if closedAgo < e.cfg.SettlementGrace {
			continue
		}
		if t.hasLastTrade {
			tradeAgo := time.Duration(e.clock.Now()-t.lastTradeAt) * time.Nanosecond
			if tradeAgo < e.cfg.SettlementGrace {
				continue
			}
		}
		t.settled = true
		settled = append(settled, lid)
	}
	return settled
}
