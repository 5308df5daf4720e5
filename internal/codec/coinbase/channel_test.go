package coinbase

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexcore/exec-core/pkg/model"
)

func TestTradesChannel_EncodeSubscribeSymbol(t *testing.T) {
	frame, err := TradesChannel{}.EncodeSubscribeSymbol("BTC-USD")
	require.NoError(t, err)

	var decoded subscribeFrame
	require.NoError(t, json.Unmarshal(frame, &decoded))
	assert.Equal(t, "subscribe", decoded.Type)
	assert.Equal(t, "matches", decoded.Channel)
	assert.Equal(t, []string{"BTC-USD"}, decoded.ProductIDs)
}

func TestTickerChannel_EncodeSubscribeInstrument(t *testing.T) {
	frame, err := TickerChannel{}.EncodeSubscribeInstrument(model.InstrumentDetails{VenueSymbol: "ETH-USD"})
	require.NoError(t, err)

	var decoded subscribeFrame
	require.NoError(t, json.Unmarshal(frame, &decoded))
	assert.Equal(t, "ticker", decoded.Channel)
	assert.Equal(t, []string{"ETH-USD"}, decoded.ProductIDs)
}

func TestLevel2Channel_EncodeSubscribeSymbolRejectsEmpty(t *testing.T) {
	_, err := Level2Channel{}.EncodeSubscribeSymbol("")
	assert.Error(t, err)
}
