package coinbase

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	codeccb "github.com/vexcore/exec-core/internal/codec/coinbase"
	"github.com/vexcore/exec-core/internal/market"
	"github.com/vexcore/exec-core/internal/transport"
	"github.com/vexcore/exec-core/pkg/ids"
)

// MarketBuilder builds market.Service values for Coinbase's public feed.
// It also doubles as the Sender market.Session.Run replays subscriptions
// through: Build stashes the connection it just opened, and Send writes
// to whichever one is current, so a reconnect transparently picks up the
// new socket.
type MarketBuilder struct {
	URL string
	Log zerolog.Logger

	mu   sync.Mutex
	conn transport.Conn
}

// NewMarket returns a MarketBuilder dialing url for every (re)connect.
func NewMarket(url string) *MarketBuilder {
	return &MarketBuilder{URL: url, Log: zerolog.Nop()}
}

func (b *MarketBuilder) Accept(cfg market.Config) bool {
	return cfg.Exchange == ids.ExchangeCoinbase
}

func (b *MarketBuilder) Build(ctx context.Context, cfg market.Config) (market.Service, error) {
	conn, err := transport.NewWebsocketDialer(b.URL).Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("coinbase market: build feed: %w", err)
	}

	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()

	return &MarketService{
		exchange: cfg.Exchange,
		conn:     conn,
		codec:    codeccb.New(cfg.Exchange, 0),
		log:      b.Log.With().Str("adapter", "coinbase-market").Logger(),
	}, nil
}

// Send writes frame to the connection most recently produced by Build,
// matching the sendSubscribe signature market.Session.Run expects.
func (b *MarketBuilder) Send(ctx context.Context, frame []byte) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("coinbase market: no active connection to subscribe on")
	}
	return conn.Write(ctx, frame)
}

// MarketService implements market.Service over one websocket connection.
type MarketService struct {
	exchange ids.Exchange
	conn     transport.Conn
	codec    codeccb.Codec
	log      zerolog.Logger
}

func (s *MarketService) Accept(criteria market.Criteria) bool {
	return criteria.Exchange == s.exchange
}

// Next blocks until a frame decodes into an event, skipping frame types
// the feed sends that carry no event (subscription acks, heartbeats).
func (s *MarketService) Next(ctx context.Context) (market.Event, bool, error) {
	for {
		raw, err := s.conn.Read(ctx)
		if err != nil {
			return market.Event{}, false, err
		}
		event, ok, err := s.codec.ParseMarketEvent(raw)
		if err != nil {
			s.log.Warn().Err(err).Msg("dropping unparseable market frame")
			continue
		}
		if !ok {
			continue
		}
		return event, true, nil
	}
}
