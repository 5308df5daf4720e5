package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vexcore/exec-core/internal/lifecycle"
	"github.com/vexcore/exec-core/internal/ordercache"
	"github.com/vexcore/exec-core/internal/ratelimit"
	"github.com/vexcore/exec-core/internal/reconnect"
	"github.com/vexcore/exec-core/pkg/ids"
	"github.com/vexcore/exec-core/pkg/model"
)

// Session owns exactly one (adapter, account) pair per spec §4.5: one
// Order Cache, one outbound request queue, one reconciliation timer pair,
// and one rate limiter group. It is driven by a single goroutine and must
// not be touched concurrently from outside — cross-session communication
// happens only through its Inbound channel and the methods below, which
// are themselves intended to be called from that one goroutine.
type Session struct {
	cfg     Config
	cache   *ordercache.Cache
	engine  *lifecycle.Engine
	clock   *ids.Clock
	limiter *ratelimit.Group
	log     zerolog.Logger

	builder  Builder
	svc      Service
	attempt  int

	// Inbound delivers folded responses to the owner (router/accounting)
	// in strict per-session FIFO order, per §5.
	Inbound chan Response

	mu    sync.Mutex
	alive bool
}

// NewSession builds a Session for cfg. It does not connect; call Run to
// start the owning goroutine.
func NewSession(cfg Config, builder Builder, clock *ids.Clock, log zerolog.Logger) *Session {
	cache := ordercache.New()
	return &Session{
		cfg:     cfg,
		cache:   cache,
		engine:  lifecycle.NewEngine(cache, clock),
		clock:   clock,
		limiter: ratelimit.NewGroup(),
		log:     log.With().Str("exchange", cfg.Exchange.String()).Int32("account", int32(cfg.Account)).Logger(),
		builder: builder,
		Inbound: make(chan Response, 256),
	}
}

// Alive reports whether the session currently believes its transport is
// up (i.e. has completed a SourceStatus{alive=true}).
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

// Accept reports whether this session's adapter handles req.
func (s *Session) Accept(req Request) bool {
	if s.svc == nil {
		return false
	}
	return s.svc.Accept(req)
}

// PlaceOrder mints identifiers if absent, inserts a Pending record, and
// enqueues the wire request, per §4.5.
func (s *Session) PlaceOrder(ctx context.Context, order *model.Order) (*model.Order, error) {
	if order.LocalID.Empty() {
		order.LocalID = ids.OrderLid(uuid.NewString())
	}
	if order.ClientID.Empty() {
		order.ClientID = ids.OrderCid(uuid.NewString())
	}
	order.Account = s.cfg.Account
	order.Status = model.StatusPending
	now := s.clock.Now()
	order.CreateLt = now
	order.UpdateLt = now

	stored := s.cache.Add(order)

	if err := s.limiter.Wait(ctx, "orders"); err != nil {
		return stored, err
	}
	if err := s.svc.Request(ctx, PlaceOrderRequest(stored)); err != nil {
		return stored, fmt.Errorf("execution: place order: %w", err)
	}
	return stored, nil
}

// CancelOrder marks the matching cached order CancelPending and emits the
// wire frame. Returns false without error if the order is already
// terminal or unknown (§4.5).
func (s *Session) CancelOrder(ctx context.Context, sel ordercache.Selector) (bool, error) {
	order := s.cache.Find(sel)
	if order == nil {
		return false, nil
	}
	if !s.engine.RequestCancel(order, s.clock.Now()) {
		return false, nil
	}
	if err := s.limiter.Wait(ctx, "cancels"); err != nil {
		return false, err
	}
	req := CancelOrderRequest(CancelSelector{LocalID: order.LocalID, ClientID: order.ClientID, ServerID: order.ServerID})
	if err := s.svc.Request(ctx, req); err != nil {
		return false, fmt.Errorf("execution: cancel order: %w", err)
	}
	return true, nil
}

// Responses exposes the session's inbound channel for a multiplexer
// (internal/router) to poll fairly alongside its sibling sessions.
func (s *Session) Responses() <-chan Response {
	return s.Inbound
}

// Dispatch forwards req to the adapter, routing PlaceOrder/CancelOrder
// through the typed helpers above (which mutate the cache) and passing
// every other request straight through to the wire, rate-limited on
// "requests", per §4.7's "forwards to the first match".
func (s *Session) Dispatch(ctx context.Context, req Request) error {
	switch req.Tag {
	case ReqPlaceOrder:
		_, err := s.PlaceOrder(ctx, req.PlaceOrder)
		return err
	case ReqCancelOrder:
		sel := ordercache.Selector{
			LocalID:  req.CancelSelector.LocalID,
			ClientID: req.CancelSelector.ClientID,
			ServerID: req.CancelSelector.ServerID,
		}
		_, err := s.CancelOrder(ctx, sel)
		return err
	default:
		if err := s.limiter.Wait(ctx, "requests"); err != nil {
			return err
		}
		if err := s.svc.Request(ctx, req); err != nil {
			return fmt.Errorf("execution: dispatch %v: %w", req.Tag, err)
		}
		return nil
	}
}

// HandleInbound folds one adapter-produced Response into the cache and
// forwards the (possibly rewritten) result on s.Inbound. Group responses
// are flattened before folding, per §4.4. Only a lifecycle.ErrInvariant
// fold error is returned (ending the connection); any other fold error
// is logged and the response is still forwarded.
func (s *Session) HandleInbound(ctx context.Context, resp Response) error {
	for _, leaf := range Flatten([]Response{resp}) {
		if err := s.foldOne(leaf); err != nil {
			if errors.Is(err, lifecycle.ErrInvariant) {
				return err
			}
			s.log.Warn().Err(err).Msg("inbound response did not fold into the order cache")
		}
		select {
		case s.Inbound <- leaf:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Session) foldOne(resp Response) error {
	switch resp.Tag {
	case RespUpdateOrder:
		// The codec has no access to this session's Clock, so it never
		// stamps UpdateLt; the session is the single authority for
		// LogicalTime (it must never be derived from a venue timestamp).
		resp.UpdateOrder.UpdateLt = s.clock.Now()
		_, err := s.engine.Fold(resp.UpdateOrder)
		return err
	case RespSyncOrders:
		return s.reconcileOrders(resp.SyncOrders)
	case RespTrade:
		_, _, err := s.engine.ApplyTrade(resp.Trade)
		return err
	default:
		// UpdatePositions, Funding and Error pass through to the
		// accounting engine untouched; they carry no order-cache state.
		return nil
	}
}

// reconcileOrders implements the periodic-reconciliation fold of §4.5:
// every update in the snapshot is folded normally, then any cached order
// that no snapshot update folded into and that is not already terminal
// is marked Expired, with a warning logged for it.
func (s *Session) reconcileOrders(snapshot []UpdateOrder) error {
	seen := make(map[ids.OrderLid]struct{}, len(snapshot))
	for _, upd := range snapshot {
		upd.UpdateLt = s.clock.Now()
		order, err := s.engine.Fold(upd)
		if err != nil {
			return err
		}
		seen[order.LocalID] = struct{}{}
	}

	now := s.clock.Now()
	s.cache.Each(func(o *model.Order) {
		if o.Status.Terminal() {
			return
		}
		if _, ok := seen[o.LocalID]; ok {
			return
		}
		s.log.Warn().Str("order", string(o.LocalID)).Msg("order absent from venue snapshot, marking Expired")
		// no ServerID on this synthetic update, so the fold cannot hit
		// the invariant-mismatch error path.
		_, _ = s.engine.Fold(lifecycle.UpdateOrder{
			LocalID:   o.LocalID,
			Status:    model.StatusExpired,
			HasStatus: true,
			UpdateLt:  now,
		})
	})
	return nil
}

// Run drives the session's connect/consume/reconnect loop until ctx is
// cancelled. It is the single goroutine permitted to call s.svc's
// Request/Next and to mutate the cache through the engine.
func (s *Session) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.connectAndServe(ctx); err != nil {
			s.log.Warn().Err(err).Msg("execution session disconnected, backing off")
		}
		if ctx.Err() != nil {
			return
		}
		delay := reconnect.Delay(s.attempt)
		s.attempt++
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) connectAndServe(ctx context.Context) error {
	s.setAlive(false)
	s.emitSourceStatus(false, false)

	svc, err := s.builder.Build(ctx, s.cfg)
	if err != nil {
		return fmt.Errorf("execution: build adapter: %w", err)
	}
	s.svc = svc
	s.attempt = 0

	s.emitSourceStatus(true, false)

	// §4.5: a successful (re)connect always bootstraps with an immediate
	// full SyncOrders + QueryAssets, independent of the periodic
	// reconciliation tickers below (which may be disabled entirely, or
	// simply not due to fire for a full interval).
	if err := s.svc.Request(ctx, SyncOrdersRequest(InstrumentSelector{Any: true})); err != nil {
		return err
	}
	if err := s.svc.Request(ctx, QueryAssetsRequest(s.cfg.Exchange, true)); err != nil {
		return err
	}
	initialPositions := false
	sawInitialSync := false
	sawInitialAssets := false

	orderTicker := newOptionalTicker(s.cfg.OrderSyncInterval)
	balanceTicker := newOptionalTicker(s.cfg.BalanceSyncInterval)
	defer orderTicker.Stop()
	defer balanceTicker.Stop()

	// Next blocks indefinitely waiting for the adapter's transport, so it
	// runs on its own goroutine: folding its reads into the select loop
	// directly would starve the reconciliation tickers for however long a
	// Next call takes to return.
	type pulled struct {
		resp Response
		ok   bool
		err  error
	}
	pulls := make(chan pulled, 1)
	pullCtx, cancelPull := context.WithCancel(ctx)
	defer cancelPull()
	go func() {
		for {
			resp, ok, err := s.svc.Next(pullCtx)
			select {
			case pulls <- pulled{resp, ok, err}:
			case <-pullCtx.Done():
				return
			}
			if err != nil || !ok {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-orderTicker.C():
			if err := s.svc.Request(ctx, SyncOrdersRequest(InstrumentSelector{Any: true})); err != nil {
				return err
			}
		case <-balanceTicker.C():
			if err := s.svc.Request(ctx, QueryAssetsRequest(s.cfg.Exchange, true)); err != nil {
				return err
			}
		case p := <-pulls:
			if p.err != nil {
				return p.err
			}
			if !p.ok {
				return fmt.Errorf("execution: adapter terminated")
			}
			if err := s.HandleInbound(ctx, p.resp); err != nil {
				return err
			}
			if !initialPositions {
				switch p.resp.Tag {
				case RespSyncOrders:
					sawInitialSync = true
				case RespUpdatePositions:
					sawInitialAssets = true
				}
				if sawInitialSync && sawInitialAssets {
					initialPositions = true
					s.emitSourceStatus(true, true)
				}
			}
		}
	}
}

func (s *Session) setAlive(v bool) {
	s.mu.Lock()
	s.alive = v
	s.mu.Unlock()
}

func (s *Session) emitSourceStatus(alive, initialPositions bool) {
	s.setAlive(alive)
	status := model.SourceStatus{Exchange: s.cfg.Exchange, Account: s.cfg.Account, Alive: alive, InitialPositions: initialPositions}
	select {
	case s.Inbound <- Response{Tag: RespSourceStatus, SourceStatus: status}:
	default:
		s.log.Warn().Msg("inbound channel full, dropping SourceStatus")
	}
}
