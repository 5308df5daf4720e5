// Package coinbase is a concrete execution.Builder/execution.Service
// implementation wiring internal/transport, internal/codec/coinbase and
// internal/credentials together, per spec §4.4's adapter framework.
package coinbase

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vexcore/exec-core/internal/codec"
	codeccb "github.com/vexcore/exec-core/internal/codec/coinbase"
	"github.com/vexcore/exec-core/internal/credentials"
	"github.com/vexcore/exec-core/internal/execution"
	"github.com/vexcore/exec-core/internal/transport"
	"github.com/vexcore/exec-core/pkg/ids"
)

// Builder constructs Coinbase-backed execution.Services. URL selects the
// user-channel endpoint to dial; it is typically set once per network
// (mainnet vs. testnet) by the process wiring code.
type Builder struct {
	URL string
	Log zerolog.Logger
}

// New returns a Builder dialing url for every session it builds.
func New(url string) *Builder {
	return &Builder{URL: url, Log: zerolog.Nop()}
}

func (b *Builder) Accept(cfg execution.Config) bool {
	return cfg.Exchange == ids.ExchangeCoinbase
}

func (b *Builder) Build(ctx context.Context, cfg execution.Config) (execution.Service, error) {
	bundle, ok := cfg.Credentials.(credentials.Bundle)
	if !ok {
		return nil, fmt.Errorf("coinbase: Config.Credentials must carry a credentials.Bundle")
	}

	dialer := transport.NewWebsocketDialer(b.URL)
	// The handshake only carries the API key identifying which account to
	// authenticate as; the signature itself is computed by the external
	// signer this bundle's SigningMaterial is opaque to (spec §1).
	dialer.Header = http.Header{"CB-ACCESS-KEY": []string{bundle.APIKey}}
	conn, err := dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("coinbase: build session: %w", err)
	}

	svc := &Service{
		conn:  conn,
		codec: codeccb.New(cfg.Exchange, cfg.Account),
		log:   b.Log.With().Str("adapter", "coinbase").Int32("account", int32(cfg.Account)).Logger(),
	}
	return svc, nil
}

// Service implements execution.Service over one dialed connection.
type Service struct {
	conn  transport.Conn
	codec codec.Codec

	mu     sync.Mutex
	closed bool
	log    zerolog.Logger
}

// Accept reports whether req targets Coinbase; PlaceOrder requests carry
// their own instrument, everything else is scoped by Request.Exchange.
func (s *Service) Accept(req execution.Request) bool {
	if req.Tag == execution.ReqPlaceOrder && req.PlaceOrder != nil {
		exch, ok := req.PlaceOrder.Instrument.GetExchange()
		return ok && exch == ids.ExchangeCoinbase
	}
	if !req.HasExchange {
		return false
	}
	return req.Exchange == ids.ExchangeCoinbase
}

func (s *Service) Request(ctx context.Context, req execution.Request) error {
	payload, err := s.codec.EncodeOutbound(req)
	if err != nil {
		return fmt.Errorf("coinbase: encode %v: %w", req.Tag, err)
	}
	if err := s.conn.Write(ctx, payload); err != nil {
		return fmt.Errorf("coinbase: write: %w", err)
	}
	return nil
}

// Next reads and decodes exactly one wire frame; a frame that decodes to
// more than one logical response is returned as a single RespGroup.
func (s *Service) Next(ctx context.Context) (execution.Response, bool, error) {
	raw, err := s.conn.Read(ctx)
	if err != nil {
		s.mu.Lock()
		already := s.closed
		s.mu.Unlock()
		if already {
			return execution.Response{}, false, nil
		}
		return execution.Response{}, false, fmt.Errorf("coinbase: read: %w", err)
	}

	resps, err := s.codec.ParseInbound(raw)
	if err != nil {
		return execution.Response{}, true, fmt.Errorf("coinbase: parse inbound: %w", err)
	}
	if len(resps) == 0 {
		return execution.Response{}, true, nil
	}
	if len(resps) == 1 {
		return resps[0], true, nil
	}
	return execution.Response{Tag: execution.RespGroup, Group: resps}, true, nil
}

func (s *Service) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.log.Debug().Msg("closing connection")
	return s.conn.Close()
}
