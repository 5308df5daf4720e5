// Package transport defines the Dialer/Conn boundary of spec §6: the raw
// websocket (or REST poller) connection an adapter reads/writes frames
// through. Per-venue authentication and wire framing stay out of this
// package; it owns only the byte pipe and its reconnect-friendly shape.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one live connection's read/write surface. Implementations must
// be safe for one concurrent reader and one concurrent writer (the same
// contract gorilla/websocket's *Conn gives), but not for concurrent
// writers among themselves.
type Conn interface {
	// Read blocks until the next complete message arrives, ctx is
	// cancelled, or the connection is lost.
	Read(ctx context.Context) ([]byte, error)

	// Write sends one message.
	Write(ctx context.Context, payload []byte) error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// Dialer opens a Conn to a venue endpoint. Adapters hold one Dialer and
// call Dial again on every reconnect attempt; the returned error is
// wrapped so the session's backoff-logging sees the venue URL.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// WebsocketDialer is the gorilla/websocket-backed Dialer used by every
// adapter in this tree; venue-specific subprotocols or headers are
// supplied via Header.
type WebsocketDialer struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
}

// NewWebsocketDialer returns a WebsocketDialer targeting url.
func NewWebsocketDialer(url string) *WebsocketDialer {
	return &WebsocketDialer{URL: url, HandshakeTimeout: 10 * time.Second}
}

func (d *WebsocketDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", d.URL, err)
	}
	return &websocketConn{conn: conn}, nil
}

// websocketConn adapts *websocket.Conn to Conn. Every Read/Write is
// pinned to ctx by a deadline derived from ctx's own deadline (if any) or
// left unbounded, since gorilla/websocket has no native context support
// on a per-call basis.
type websocketConn struct {
	conn *websocket.Conn
}

func (c *websocketConn) Read(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
	}
	done := make(chan struct{})
	var payload []byte
	var err error
	go func() {
		defer close(done)
		_, payload, err = c.conn.ReadMessage()
	}()
	select {
	case <-done:
		return payload, err
	case <-ctx.Done():
		_ = c.conn.Close()
		<-done
		return nil, ctx.Err()
	}
}

func (c *websocketConn) Write(ctx context.Context, payload []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *websocketConn) Close() error {
	return c.conn.Close()
}
