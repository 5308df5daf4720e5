package execution

import "time"

// optionalTicker wraps time.Ticker so a zero interval (reconciliation
// disabled for this resource, per Config.OrderSyncInterval/
// BalanceSyncInterval) yields a channel that never fires instead of
// special-casing nil tickers at every call site.
type optionalTicker struct {
	ticker *time.Ticker
}

func newOptionalTicker(interval time.Duration) *optionalTicker {
	if interval <= 0 {
		return &optionalTicker{}
	}
	return &optionalTicker{ticker: time.NewTicker(interval)}
}

func (t *optionalTicker) C() <-chan time.Time {
	if t.ticker == nil {
		return nil
	}
	return t.ticker.C
}

func (t *optionalTicker) Stop() {
	if t.ticker != nil {
		t.ticker.Stop()
	}
}
