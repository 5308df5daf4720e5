package execution

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexcore/exec-core/internal/ordercache"
	"github.com/vexcore/exec-core/pkg/ids"
	"github.com/vexcore/exec-core/pkg/model"
)

// fakeService is a hand-rolled double implementing Service; it lets tests
// script a queue of responses and inspect requests it received.
type fakeService struct {
	mu        sync.Mutex
	responses chan Response
	requests  []Request
}

func newFakeService() *fakeService {
	return &fakeService{responses: make(chan Response, 64)}
}

func (f *fakeService) Accept(Request) bool { return true }

func (f *fakeService) Request(_ context.Context, req Request) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return nil
}

func (f *fakeService) Next(ctx context.Context) (Response, bool, error) {
	select {
	case r, ok := <-f.responses:
		return r, ok, nil
	case <-ctx.Done():
		return Response{}, false, ctx.Err()
	}
}

func (f *fakeService) push(r Response) { f.responses <- r }

type fakeBuilder struct{ svc *fakeService }

func (b *fakeBuilder) Accept(Config) bool { return true }
func (b *fakeBuilder) Build(context.Context, Config) (Service, error) {
	return b.svc, nil
}

func newTestSession() (*Session, *fakeService) {
	svc := newFakeService()
	sess := NewSession(Config{Exchange: ids.ExchangeBinanceSpot, Account: 1}, &fakeBuilder{svc: svc}, ids.NewClock(), zerolog.Nop())
	return sess, svc
}

func TestSession_PlaceOrderMintsIdentifiersAndEnqueues(t *testing.T) {
	sess, svc := newTestSession()
	sess.svc = svc // bypass Run/connectAndServe for this unit test

	order := &model.Order{Side: model.SideBuy, Type: model.OrderTypeLimit, Size: 1, Price: 100}
	stored, err := sess.PlaceOrder(context.Background(), order)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.LocalID)
	assert.NotEmpty(t, stored.ClientID)
	assert.Equal(t, model.StatusPending, stored.Status)

	require.Len(t, svc.requests, 1)
	assert.Equal(t, ReqPlaceOrder, svc.requests[0].Tag)
}

func TestSession_CancelOrderNoOpOnUnknown(t *testing.T) {
	sess, svc := newTestSession()
	sess.svc = svc

	ok, err := sess.CancelOrder(context.Background(), ordercache.Selector{LocalID: "missing"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, svc.requests)
}

func TestSession_CancelOrderNoOpWhenTerminal(t *testing.T) {
	sess, svc := newTestSession()
	sess.svc = svc

	order := sess.cache.Add(&model.Order{LocalID: "L1", Status: model.StatusFilled})
	ok, err := sess.CancelOrder(context.Background(), ordercache.Selector{LocalID: order.LocalID})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSession_ReconcileExpiresUnknownOpenOrders(t *testing.T) {
	sess, svc := newTestSession()
	sess.svc = svc

	known := sess.cache.Add(&model.Order{LocalID: "known", Status: model.StatusOpen, Size: 1})
	unknown := sess.cache.Add(&model.Order{LocalID: "unknown", Status: model.StatusOpen, Size: 1})

	err := sess.reconcileOrders([]UpdateOrder{
		{LocalID: known.LocalID, Status: model.StatusOpen, HasStatus: true, UpdateLt: 5},
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusOpen, known.Status)
	assert.Equal(t, model.StatusExpired, unknown.Status)
	assert.True(t, unknown.HasCloseLt)
}

func TestSession_HandleInboundFlattensGroup(t *testing.T) {
	sess, svc := newTestSession()
	sess.svc = svc
	sess.cache.Add(&model.Order{LocalID: "L1", Status: model.StatusOpen, Size: 1})

	group := Response{Tag: RespGroup, Group: []Response{
		{Tag: RespUpdateOrder, UpdateOrder: UpdateOrder{LocalID: "L1", FilledSize: 0.5, HasFilledSize: true, UpdateLt: 1}},
		{Tag: RespTrade, Trade: model.OrderTrade{TradeLid: "T1", OrderLid: "L1", Price: 10, Size: 0.5}},
	}}

	require.NoError(t, sess.HandleInbound(context.Background(), group))

	var received []ResponseTag
	for i := 0; i < 2; i++ {
		select {
		case r := <-sess.Inbound:
			received = append(received, r.Tag)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for flattened inbound responses")
		}
	}
	assert.Equal(t, []ResponseTag{RespUpdateOrder, RespTrade}, received)
}

func TestSession_RunReconnectsAfterAdapterTermination(t *testing.T) {
	svc1 := newFakeService()
	close(svc1.responses) // Next returns immediately with ok=false

	svc2 := newFakeService()

	var mu sync.Mutex
	builds := 0
	builder := builderFunc(func(ctx context.Context, cfg Config) (Service, error) {
		mu.Lock()
		defer mu.Unlock()
		builds++
		if builds == 1 {
			return svc1, nil
		}
		return svc2, nil
	})

	sess := NewSession(Config{Exchange: ids.ExchangeBinanceSpot, Account: 1}, builder, ids.NewClock(), zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sess.Run(ctx)
		close(done)
	}()

	deadline := time.After(1500 * time.Millisecond)
	for {
		mu.Lock()
		n := builds
		mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("session never attempted a second build after the first adapter terminated")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestSession_RunBootstrapsImmediatelyAndGatesInitialPositions(t *testing.T) {
	sess, svc := newTestSession()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sess.Run(ctx)
		close(done)
	}()

	var statuses []Response
	collect := func() Response {
		select {
		case r := <-sess.Inbound:
			return r
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for inbound response")
			return Response{}
		}
	}

	// alive=false, then alive=true/initial_positions=false on connect.
	statuses = append(statuses, collect(), collect())
	assert.False(t, statuses[0].SourceStatus.Alive)
	assert.True(t, statuses[1].SourceStatus.Alive)
	assert.False(t, statuses[1].SourceStatus.InitialPositions)

	// The bootstrap SyncOrders + QueryAssets requests are issued without
	// waiting on any reconciliation ticker to fire.
	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return len(svc.requests) == 2
	}, time.Second, 5*time.Millisecond)
	svc.mu.Lock()
	assert.Equal(t, ReqSyncOrders, svc.requests[0].Tag)
	assert.Equal(t, ReqQueryAssets, svc.requests[1].Tag)
	svc.mu.Unlock()

	svc.push(Response{Tag: RespSyncOrders})
	synced := collect()
	assert.Equal(t, RespSyncOrders, synced.Tag)

	svc.push(Response{Tag: RespUpdatePositions})
	positions := collect()
	assert.Equal(t, RespUpdatePositions, positions.Tag)

	initial := collect()
	assert.True(t, initial.SourceStatus.Alive)
	assert.True(t, initial.SourceStatus.InitialPositions)

	cancel()
	<-done
}

type builderFunc func(ctx context.Context, cfg Config) (Service, error)

func (f builderFunc) Accept(Config) bool { return true }
func (f builderFunc) Build(ctx context.Context, cfg Config) (Service, error) {
	return f(ctx, cfg)
}
