package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexcore/exec-core/internal/credentials"
	"github.com/vexcore/exec-core/internal/market"
	"github.com/vexcore/exec-core/pkg/ids"
)

func TestLoadConfig_ParsesExecutionsMarketFeedsAndAccounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"executions": [{"exchange": "Coinbase", "account": 1, "order_sync_interval": "30s"}],
		"market_feeds": [{"exchange": "Coinbase", "trades": ["BTC-USD"]}],
		"accounts": [{"exchange": "Coinbase", "account": 1, "api_key": "k", "secret": "s"}]
	}`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Executions, 1)
	require.Len(t, cfg.MarketFeeds, 1)
	require.Len(t, cfg.Accounts, 1)
	assert.Equal(t, []string{"BTC-USD"}, cfg.MarketFeeds[0].Trades)
}

func TestLoadConfig_MissingFileErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestToExecutionConfig_ResolvesCredentialsFromStore(t *testing.T) {
	store := credentials.NewMemoryStore()
	store.Set(ids.ExchangeCoinbase, 1, credentials.Bundle{APIKey: "k", Secret: "s"})

	ec := ExecutionConfig{Exchange: "Coinbase", Account: 1, OrderSyncInterval: "30s", BalanceSyncInterval: "1m"}
	cfg, err := toExecutionConfig(ec, store)
	require.NoError(t, err)
	assert.Equal(t, ids.ExchangeCoinbase, cfg.Exchange)
	assert.Equal(t, 30*time.Second, cfg.OrderSyncInterval)
	assert.Equal(t, time.Minute, cfg.BalanceSyncInterval)
	assert.Equal(t, credentials.Bundle{APIKey: "k", Secret: "s"}, cfg.Credentials)
}

func TestToExecutionConfig_UnknownCredentialsErrors(t *testing.T) {
	store := credentials.NewMemoryStore()
	ec := ExecutionConfig{Exchange: "Coinbase", Account: 1}
	_, err := toExecutionConfig(ec, store)
	assert.Error(t, err)
}

func TestToMarketConfig_ResolvesExchange(t *testing.T) {
	cfg, err := toMarketConfig(MarketFeedConfig{Exchange: "Coinbase", Network: "testnet"})
	require.NoError(t, err)
	assert.Equal(t, ids.ExchangeCoinbase, cfg.Exchange)
	assert.Equal(t, ids.NetworkTestnet, cfg.Network)
}

func TestRecordSubscriptions_EncodesEveryConfiguredChannel(t *testing.T) {
	subs := market.NewManager()
	mc := MarketFeedConfig{
		Exchange: "Coinbase",
		Trades:   []string{"BTC-USD"},
		Tickers:  []string{"BTC-USD", "ETH-USD"},
		Book:     []string{"BTC-USD"},
	}
	require.NoError(t, recordSubscriptions(mc, subs))
	assert.Equal(t, 4, subs.Len())
}

func TestRecordSubscriptions_RejectsEmptySymbol(t *testing.T) {
	subs := market.NewManager()
	mc := MarketFeedConfig{Exchange: "Coinbase", Trades: []string{""}}
	assert.Error(t, recordSubscriptions(mc, subs))
}
