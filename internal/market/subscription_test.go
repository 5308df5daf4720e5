package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManager_ReplayPreservesRegistrationOrder(t *testing.T) {
	m := NewManager()
	m.Record(SubscriptionKey{Channel: "trades", Symbols: "BTCUSDT"}, []byte("sub-btc"))
	m.Record(SubscriptionKey{Channel: "trades", Symbols: "ETHUSDT"}, []byte("sub-eth"))

	frames := m.Replay()
	assert.Equal(t, [][]byte{[]byte("sub-btc"), []byte("sub-eth")}, frames)
	assert.Equal(t, 2, m.Len())
}

func TestManager_RecordOverwritesWithoutReordering(t *testing.T) {
	m := NewManager()
	key := SubscriptionKey{Channel: "depth", Symbols: "BTCUSDT"}
	m.Record(key, []byte("v1"))
	m.Record(SubscriptionKey{Channel: "depth", Symbols: "ETHUSDT"}, []byte("eth"))
	m.Record(key, []byte("v2"))

	frames := m.Replay()
	assert.Equal(t, [][]byte{[]byte("v2"), []byte("eth")}, frames)
	assert.Equal(t, 2, m.Len())
}
