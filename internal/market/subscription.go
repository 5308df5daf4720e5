package market

import (
	"sync"

	"github.com/vexcore/exec-core/pkg/model"
)

// Channel is the WebsocketMarketFeedChannel capability of spec §4.9: each
// channel type (trades, book ticker, depth, ...) knows how to encode a
// subscribe frame for either a raw venue symbol or a resolved instrument.
type Channel interface {
	Name() string
	EncodeSubscribeSymbol(symbol string) ([]byte, error)
	EncodeSubscribeInstrument(details model.InstrumentDetails) ([]byte, error)
}

// SubscriptionKey identifies one subscription slot: either the Global
// channel-wide stream, or a specific set of symbols on a channel.
type SubscriptionKey struct {
	Channel string
	Global  bool
	Symbols string // comma-joined symbol list, compared exactly as given
}

// Manager stores the subscribe frames sent for a feed session and
// replays them in registration order after a reconnect, per spec §4.9.
// It does not itself write to the transport — Replay returns the frames
// for the caller's Conn to send, keeping this package transport-agnostic.
type Manager struct {
	mu    sync.Mutex
	order []SubscriptionKey
	frame map[SubscriptionKey][]byte
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{frame: make(map[SubscriptionKey][]byte)}
}

// Record stores frame as the subscribe message for key, registering it
// the first time it is seen so Replay preserves subscription order.
func (m *Manager) Record(key SubscriptionKey, frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.frame[key]; !exists {
		m.order = append(m.order, key)
	}
	m.frame[key] = frame
}

// Replay returns every recorded subscribe frame, in registration order,
// for resending after a reconnect.
func (m *Manager) Replay() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	frames := make([][]byte, 0, len(m.order))
	for _, key := range m.order {
		frames = append(frames, m.frame[key])
	}
	return frames
}

// Len reports the number of distinct subscriptions recorded.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}
