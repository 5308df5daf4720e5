package instrument

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexcore/exec-core/pkg/ids"
	"github.com/vexcore/exec-core/pkg/model"
)

func TestManager_BySymbolAndByVenueID(t *testing.T) {
	m := New()
	d := &model.InstrumentDetails{
		InstrumentCode: model.NewSimpleCode(ids.ExchangeCoinbase, "BTC", "USD", model.KindSpot),
		VenueSymbol:    "BTC-USD",
		VenueID:        "123",
	}
	m.Add(ids.NetworkMainnet, d)

	found, ok := m.BySymbol(model.InstrumentSymbol{Exchange: ids.ExchangeCoinbase, Symbol: "BTC-USD"})
	require.True(t, ok)
	assert.Same(t, d, found)

	found, ok = m.ByVenueID(ids.ExchangeCoinbase, "123")
	require.True(t, ok)
	assert.Same(t, d, found)

	_, ok = m.BySymbol(model.InstrumentSymbol{Exchange: ids.ExchangeCoinbase, Symbol: "missing"})
	assert.False(t, ok)
}

func TestManager_ByTripleOnlyIndexesSimpleCodes(t *testing.T) {
	m := New()
	d := &model.InstrumentDetails{
		InstrumentCode: model.NewSimpleCode(ids.ExchangeCoinbase, "BTC", "USD", model.KindSpot),
		VenueSymbol:    "BTC-USD",
	}
	m.Add(ids.NetworkMainnet, d)

	found, ok := m.ByTriple(ids.NetworkMainnet, "BTC", "USD", model.KindSpot)
	require.True(t, ok)
	assert.Same(t, d, found)

	_, ok = m.ByTriple(ids.NetworkTestnet, "BTC", "USD", model.KindSpot)
	assert.False(t, ok)
}

func TestManager_ByAssetOnlyIndexesAssetCodes(t *testing.T) {
	m := New()
	d := &model.InstrumentDetails{
		InstrumentCode: model.NewAssetCode(ids.ExchangeCoinbase, "USDC"),
		VenueSymbol:    "USDC",
	}
	m.Add(ids.NetworkMainnet, d)

	found, ok := m.ByAsset(ids.ExchangeCoinbase, "USDC")
	require.True(t, ok)
	assert.Same(t, d, found)

	_, ok = m.ByTriple(ids.NetworkMainnet, "USDC", "", model.KindSpot)
	assert.False(t, ok)
}
