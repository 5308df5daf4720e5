// Package router implements the Select/Router multiplexer of spec §4.7:
// fan-out of ExecutionRequests to the first accepting session (or every
// session, for an exchange-unscoped request), and fair fan-in of every
// session's responses into one stream.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vexcore/exec-core/internal/execution"
	"github.com/vexcore/exec-core/internal/reconnect"
	"github.com/vexcore/exec-core/pkg/ids"
)

// member is one managed session plus the bookkeeping Router needs to
// retire and rebuild it independently of its siblings.
type member struct {
	session *execution.Session
	cfg     execution.Config
	cancel  context.CancelFunc
}

// Router multiplexes N execution sessions. It does not itself talk to any
// adapter; each member session owns that (§4.5) and already self-heals
// transient disconnects and failed builds with its own backoff. Router's
// rebuild-on-retire handles the coarser case of a session being
// deliberately torn down (Retire).
type Router struct {
	root    context.Context
	builder execution.Builder
	clock   *ids.Clock
	log     zerolog.Logger

	mu      sync.Mutex
	members []*member

	merged chan Delivery
}

// Delivery wraps one session's Response with the (exchange, account) it
// came from — needed downstream wherever a payload itself carries no
// account field (e.g. RespFunding), since only the owning session's
// Config knows it.
type Delivery struct {
	Exchange ids.Exchange
	Account  ids.AccountId
	Response execution.Response
}

// New returns a Router bound to ctx: every managed session is started as
// a child of ctx and torn down when ctx is cancelled.
func New(ctx context.Context, builder execution.Builder, clock *ids.Clock, log zerolog.Logger) *Router {
	return &Router{
		root:    ctx,
		builder: builder,
		clock:   clock,
		log:     log.With().Str("component", "router").Logger(),
		merged:  make(chan Delivery, 1024),
	}
}

// Add starts a new session for cfg and registers it with the router.
func (r *Router) Add(cfg execution.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startLocked(cfg)
}

func (r *Router) startLocked(cfg execution.Config) {
	ctx, cancel := context.WithCancel(r.root)
	sess := execution.NewSession(cfg, r.builder, r.clock, r.log)
	m := &member{session: sess, cfg: cfg, cancel: cancel}
	r.members = append(r.members, m)

	go r.forward(ctx, m)
	go func() {
		sess.Run(ctx)
		r.onExit(m)
	}()
}

func (r *Router) forward(ctx context.Context, m *member) {
	for {
		select {
		case resp, ok := <-m.session.Responses():
			if !ok {
				return
			}
			d := Delivery{Exchange: m.cfg.Exchange, Account: m.cfg.Account, Response: resp}
			select {
			case r.merged <- d:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// onExit runs when a member's Run loop returns, i.e. its subcontext was
// cancelled (via Retire, or the router itself shutting down). If the
// router is still live this was a deliberate retirement, so the session
// is rebuilt from its original config with the standard backoff schedule.
func (r *Router) onExit(m *member) {
	if r.root.Err() != nil {
		return
	}

	r.mu.Lock()
	for i, existing := range r.members {
		if existing == m {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	go r.rebuild(m.cfg, 0)
}

func (r *Router) rebuild(cfg execution.Config, attempt int) {
	delay := reconnect.Delay(attempt)
	select {
	case <-time.After(delay):
	case <-r.root.Done():
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.root.Err() != nil {
		return
	}
	r.startLocked(cfg)
}

// Retire tears down the session for (exchange, account), triggering a
// rebuild from its builder with backoff. Reports false if no such session
// is registered.
func (r *Router) Retire(exchange ids.Exchange, account ids.AccountId) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.cfg.Exchange == exchange && m.cfg.Account == account {
			m.cancel()
			return true
		}
	}
	return false
}

// Dispatch forwards req to the first accepting session. If none accepts
// and req carries no specific exchange (CancelAllOrders/QueryAssets with
// HasExchange == false), it broadcasts to every registered session,
// per §4.7 and the bounded-broadcast rule of §5.
func (r *Router) Dispatch(ctx context.Context, req execution.Request) error {
	r.mu.Lock()
	members := append([]*member(nil), r.members...)
	r.mu.Unlock()

	for _, m := range members {
		if m.session.Accept(req) {
			return m.session.Dispatch(ctx, req)
		}
	}

	if req.HasExchange {
		return fmt.Errorf("router: no session accepts request for %s", req.Exchange)
	}
	return r.broadcast(ctx, req, members)
}

func (r *Router) broadcast(ctx context.Context, req execution.Request, members []*member) error {
	if len(members) == 0 {
		return fmt.Errorf("router: no sessions registered")
	}
	var errs []error
	for _, m := range members {
		if err := m.session.Dispatch(ctx, req); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.cfg.Exchange, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("router: broadcast reached %d/%d sessions: %w", len(members)-len(errs), len(members), errors.Join(errs...))
	}
	return nil
}

// Next returns the next response from any session, in first-ready order.
// Responses within one session remain FIFO; across sessions there is no
// ordering guarantee, per §4.7/§5.
func (r *Router) Next(ctx context.Context) (execution.Response, error) {
	d, err := r.NextDelivery(ctx)
	return d.Response, err
}

// NextDelivery is Next plus the (exchange, account) the response came
// from, for callers (e.g. the accounting engine) that need it for
// payloads with no inherent account field.
func (r *Router) NextDelivery(ctx context.Context) (Delivery, error) {
	select {
	case d := <-r.merged:
		return d, nil
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	}
}

// Len reports how many sessions are currently registered (for tests and
// diagnostics).
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}
