package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexcore/exec-core/internal/ordercache"
	"github.com/vexcore/exec-core/pkg/ids"
	"github.com/vexcore/exec-core/pkg/model"
)

func newTestEngine() (*Engine, *ordercache.Cache) {
	cache := ordercache.New()
	return NewEngine(cache, ids.NewClock()), cache
}

func placeTestOrder(cache *ordercache.Cache, lid, cid string, size, price float64) *model.Order {
	return cache.Add(&model.Order{
		LocalID:  ids.OrderLid(lid),
		ClientID: ids.OrderCid(cid),
		Side:     model.SideBuy,
		Type:     model.OrderTypeLimit,
		Size:     size,
		Price:    price,
		Status:   model.StatusPending,
	})
}

// Scenario 1 (spec §8): place -> ack -> fill -> settle.
func TestFold_PlaceAckFillSettle(t *testing.T) {
	eng, cache := newTestEngine()
	placeTestOrder(cache, "L1", "C1", 1.0, 50000.0)

	_, err := eng.Fold(UpdateOrder{
		ClientID:  ids.OrderCid("C1"),
		ServerID:  ids.OrderSid("S1"),
		Status:    model.StatusOpen,
		HasStatus: true,
		UpdateLt:  1,
	})
	require.NoError(t, err)

	order, applied, err := eng.ApplyTrade(model.OrderTrade{
		TradeLid: ids.TradeLid("T1"),
		OrderLid: ids.OrderLid("L1"),
		Price:    50000,
		Size:     1.0,
		Fee:      0.001,
		FeeAsset: "BTC",
	})
	require.NoError(t, err)
	assert.True(t, applied)

	assert.Equal(t, model.StatusFilled, order.Status)
	assert.Equal(t, 1.0, order.FilledSize)
	assert.Equal(t, 50000.0, order.FilledCostMin)
	assert.True(t, order.HasCloseLt)
	assert.Equal(t, ids.OrderSid("S1"), order.ServerID)
}

// Scenario 2: cancel races a partial fill, then the venue confirms
// cancellation.
func TestFold_CancelRaceWithFill(t *testing.T) {
	eng, cache := newTestEngine()
	order := placeTestOrder(cache, "L1", "C1", 1.0, 50000.0)
	order.Status = model.StatusOpen

	assert.True(t, eng.RequestCancel(order, 1))
	assert.Equal(t, model.StatusCancelPending, order.Status)

	_, err := eng.Fold(UpdateOrder{
		LocalID:       ids.OrderLid("L1"),
		FilledSize:    0.5,
		HasFilledSize: true,
		UpdateLt:      2,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPartiallyFilled, order.Status)

	final, err := eng.Fold(UpdateOrder{
		LocalID:   ids.OrderLid("L1"),
		Status:    model.StatusCancelled,
		HasStatus: true,
		UpdateLt:  3,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, final.Status)
	assert.Equal(t, 0.5, final.FilledSize)
	assert.True(t, final.HasCloseLt)
	assert.EqualValues(t, 3, final.CloseLt)
}

// Scenario 3: reconnect reveals an open order unknown to the venue; the
// session is expected to synthesize an Expired update for it (this test
// exercises the fold itself, the session wiring is covered separately).
func TestFold_ExpireUnknownOnReconcile(t *testing.T) {
	eng, cache := newTestEngine()
	order := placeTestOrder(cache, "L2", "C2", 1.0, 100.0)
	order.Status = model.StatusOpen

	final, err := eng.Fold(UpdateOrder{
		LocalID:   ids.OrderLid("L2"),
		Status:    model.StatusExpired,
		HasStatus: true,
		UpdateLt:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, final.Status)
	assert.True(t, final.HasCloseLt)
}

func TestFold_TerminalIsMonotonic(t *testing.T) {
	eng, cache := newTestEngine()
	order := placeTestOrder(cache, "L3", "C3", 1.0, 1.0)
	order.Status = model.StatusFilled
	order.FilledSize = 1.0
	order.HasCloseLt = true
	order.CloseLt = 5

	final, err := eng.Fold(UpdateOrder{
		LocalID:   ids.OrderLid("L3"),
		Status:    model.StatusCancelled,
		HasStatus: true,
		UpdateLt:  99,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusFilled, final.Status, "terminal -> anything must be ignored")
	assert.EqualValues(t, 5, final.CloseLt, "close_lt is never overwritten once set")
}

func TestFold_ServerIDMismatchIsFatal(t *testing.T) {
	eng, cache := newTestEngine()
	order := placeTestOrder(cache, "L4", "C4", 1.0, 1.0)
	order.Status = model.StatusOpen
	order.ServerID = ids.OrderSid("S1")

	_, err := eng.Fold(UpdateOrder{
		LocalID:  ids.OrderLid("L4"),
		ServerID: ids.OrderSid("S2"),
		UpdateLt: 1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestFold_FilledSizeNeverDecreases(t *testing.T) {
	eng, cache := newTestEngine()
	order := placeTestOrder(cache, "L5", "C5", 1.0, 1.0)
	order.Status = model.StatusOpen
	order.FilledSize = 0.7

	final, err := eng.Fold(UpdateOrder{
		LocalID:       ids.OrderLid("L5"),
		FilledSize:    0.3,
		HasFilledSize: true,
		UpdateLt:      1,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.7, final.FilledSize)
}

func TestFold_Idempotence(t *testing.T) {
	eng, cache := newTestEngine()
	placeTestOrder(cache, "L6", "C6", 1.0, 1.0)

	upd := UpdateOrder{
		LocalID:       ids.OrderLid("L6"),
		Status:        model.StatusOpen,
		HasStatus:     true,
		FilledSize:    0.4,
		HasFilledSize: true,
		UpdateLt:      1,
	}
	first, err := eng.Fold(upd)
	require.NoError(t, err)
	second, err := eng.Fold(upd)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.FilledSize, second.FilledSize)
}

func TestApplyTrade_AppliesExactlyOnce(t *testing.T) {
	eng, cache := newTestEngine()
	placeTestOrder(cache, "L7", "C7", 2.0, 100.0)
	cache.FindByLocalID("L7").Status = model.StatusOpen

	trade := model.OrderTrade{TradeLid: ids.TradeLid("T1"), OrderLid: ids.OrderLid("L7"), Price: 100, Size: 1.0}
	_, applied1, err := eng.ApplyTrade(trade)
	require.NoError(t, err)
	assert.True(t, applied1)

	order, applied2, err := eng.ApplyTrade(trade)
	require.NoError(t, err)
	assert.False(t, applied2)
	assert.Equal(t, 1.0, order.FilledSize)
	assert.Equal(t, 100.0, order.FilledCostMin)
}

func TestBind_LateBoundVenueSync(t *testing.T) {
	eng, cache := newTestEngine()

	order, err := eng.Fold(UpdateOrder{
		ServerID:       ids.OrderSid("S99"),
		Status:         model.StatusOpen,
		HasStatus:      true,
		VenueInitiated: true,
		UpdateLt:       1,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, order.Status)
	assert.Equal(t, 1, cache.Len())
}

func TestBind_LateBoundVenueSyncAdoptsReportedStatus(t *testing.T) {
	eng, cache := newTestEngine()

	order, err := eng.Fold(UpdateOrder{
		ServerID:       ids.OrderSid("S98"),
		Status:         model.StatusFilled,
		HasStatus:      true,
		VenueInitiated: true,
		UpdateLt:       1,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusFilled, order.Status)
	assert.Equal(t, 1, cache.Len())
}

func TestBind_LateBoundVenueSyncWithoutRecognizedStatusDefaultsOpen(t *testing.T) {
	eng, cache := newTestEngine()

	order, err := eng.Fold(UpdateOrder{
		ServerID:       ids.OrderSid("S97"),
		VenueInitiated: true,
		UpdateLt:       1,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, order.Status)
	assert.Equal(t, 1, cache.Len())
}

func TestFold_UnmatchedNonVenueInitiatedUpdateIsRejected(t *testing.T) {
	eng, cache := newTestEngine()

	_, err := eng.Fold(UpdateOrder{
		ServerID: ids.OrderSid("S96"),
		UpdateLt: 1,
	})
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}
