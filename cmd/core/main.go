// Command core is a thin wiring example, not a CLI: it loads a JSON
// config, builds one execution.Session per configured account through
// internal/router, folds their responses into internal/accounting, and
// sweeps settled orders on a schedule. A real deployment's entrypoint
// would look much like this, with its own flag parsing and signal
// handling layered on top.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vexcore/exec-core/internal/accounting"
	coinbaseAdapter "github.com/vexcore/exec-core/internal/adapters/coinbase"
	codeccb "github.com/vexcore/exec-core/internal/codec/coinbase"
	"github.com/vexcore/exec-core/internal/credentials"
	"github.com/vexcore/exec-core/internal/execution"
	"github.com/vexcore/exec-core/internal/market"
	"github.com/vexcore/exec-core/internal/router"
	"github.com/vexcore/exec-core/internal/scheduler"
	"github.com/vexcore/exec-core/pkg/ids"
)

func main() {
	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Str("service", "exec-core").Logger()

	configPath := "config.json"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := credentials.NewMemoryStore()
	for _, acc := range cfg.Accounts {
		exchange, err := ids.ParseExchange(acc.Exchange)
		if err != nil {
			log.Fatal().Err(err).Str("exchange", acc.Exchange).Msg("invalid account config")
		}
		store.Set(exchange, acc.Account, credentials.Bundle{APIKey: acc.APIKey, Secret: acc.Secret})
	}

	builders := execution.NewRegistry()
	builders.Register(coinbaseAdapter.New("wss://advanced-trade-ws-user.coinbase.com"))

	clock := ids.NewClock()
	r := router.New(ctx, builders, clock, log)

	for _, ec := range cfg.Executions {
		execCfg, err := toExecutionConfig(ec, store)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid execution config")
		}
		r.Add(execCfg)
	}

	engine := accounting.NewEngine(accounting.DefaultConfig(), clock)

	go consumeResponses(ctx, r, engine, log)

	coinbaseMarket := coinbaseAdapter.NewMarket("wss://advanced-trade-ws.coinbase.com")
	marketBuilders := market.NewRegistry()
	marketBuilders.Register(coinbaseMarket)

	for _, mc := range cfg.MarketFeeds {
		marketCfg, err := toMarketConfig(mc)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid market feed config")
		}
		subs := market.NewManager()
		if err := recordSubscriptions(mc, subs); err != nil {
			log.Fatal().Err(err).Msg("invalid market feed subscriptions")
		}
		sess := market.NewSession(marketCfg, marketBuilders, subs, log)
		go sess.Run(ctx, coinbaseMarket.Send)
		go logMarketEvents(ctx, sess, log)
	}

	sched := scheduler.New(log)
	if err := sched.AddJob("@every 30s", settlementJob{engine: engine, log: log}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule settlement sweep")
	}
	sched.Start()
	defer sched.Stop()

	<-ctx.Done()
	log.Info().Msg("shutting down")
}

// bootstrapScope identifies the (exchange, account) pair a SourceStatus
// transition or a trade/funding event belongs to, for the same
// "snapshot supersedes historical" tracking the accounting engine keeps
// internally for its own bootstrapped map.
type bootstrapScope struct {
	Exchange ids.Exchange
	Account  ids.AccountId
}

// bootstrapTracker records, per scope, whether that scope's session has
// reported SourceStatus{InitialPositions: true} yet. A response's own Tag
// cannot carry this (RespTrade/RespFunding look identical whether they
// arrive before or after that transition), so consumeResponses tracks it
// out-of-band here and feeds the result into accounting.Engine.Consume.
type bootstrapTracker struct {
	seen map[bootstrapScope]bool
}

func newBootstrapTracker() *bootstrapTracker {
	return &bootstrapTracker{seen: make(map[bootstrapScope]bool)}
}

// Observe records resp's SourceStatus transition for scope, if any, and
// reports whether resp should be treated as historical: true until scope
// has reported InitialPositions at least once. The transition response
// itself is judged against the state before it.
func (b *bootstrapTracker) Observe(scope bootstrapScope, resp execution.Response) bool {
	historical := !b.seen[scope]
	if resp.Tag == execution.RespSourceStatus && resp.SourceStatus.InitialPositions {
		b.seen[scope] = true
	}
	return historical
}

// consumeResponses is the single consumer of the router's merged response
// stream.
func consumeResponses(ctx context.Context, r *router.Router, engine *accounting.Engine, log zerolog.Logger) {
	tracker := newBootstrapTracker()
	for {
		d, err := r.NextDelivery(ctx)
		if err != nil {
			return
		}
		historical := tracker.Observe(bootstrapScope{Exchange: d.Exchange, Account: d.Account}, d.Response)
		engine.Consume(d.Account, d.Response, historical)
		if d.Response.Tag == execution.RespError {
			log.Warn().Str("exchange", d.Exchange.String()).Str("error", d.Response.Error).Msg("adapter reported an error")
		}
	}
}

// recordSubscriptions encodes mc's configured symbols into subscribe
// frames and records them so the session replays them on every
// (re)connect. Only Coinbase's channel encoders are wired here; a second
// venue's market feed would register its own Channel implementations the
// same way its execution adapter does.
func recordSubscriptions(mc MarketFeedConfig, subs *market.Manager) error {
	for _, symbol := range mc.Trades {
		frame, err := codeccb.TradesChannel{}.EncodeSubscribeSymbol(symbol)
		if err != nil {
			return err
		}
		subs.Record(market.SubscriptionKey{Channel: "matches", Symbols: symbol}, frame)
	}
	for _, symbol := range mc.Tickers {
		frame, err := codeccb.TickerChannel{}.EncodeSubscribeSymbol(symbol)
		if err != nil {
			return err
		}
		subs.Record(market.SubscriptionKey{Channel: "ticker", Symbols: symbol}, frame)
	}
	for _, symbol := range mc.Book {
		frame, err := codeccb.Level2Channel{}.EncodeSubscribeSymbol(symbol)
		if err != nil {
			return err
		}
		subs.Record(market.SubscriptionKey{Channel: "level2", Symbols: symbol}, frame)
	}
	return nil
}

// logMarketEvents drains sess.Events until ctx is cancelled. A real
// consumer would fold these into an order-book/ticker cache instead.
func logMarketEvents(ctx context.Context, sess *market.Session, log zerolog.Logger) {
	for {
		select {
		case event := <-sess.Events:
			log.Debug().Int("tag", int(event.Tag)).Msg("market event")
		case <-ctx.Done():
			return
		}
	}
}

type settlementJob struct {
	engine *accounting.Engine
	log    zerolog.Logger
}

func (j settlementJob) Name() string { return "settlement-sweep" }

func (j settlementJob) Run() {
	settled := j.engine.SettledOrders(time.Now())
	if len(settled) > 0 {
		j.log.Info().Int("count", len(settled)).Msg("orders settled")
	}
}
