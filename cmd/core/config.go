package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/vexcore/exec-core/internal/credentials"
	"github.com/vexcore/exec-core/internal/execution"
	"github.com/vexcore/exec-core/internal/market"
	"github.com/vexcore/exec-core/pkg/ids"
)

// Config is the single JSON document this process loads at startup,
// matching the teacher's plain-struct-plus-json-tags convention.
type Config struct {
	Executions  []ExecutionConfig  `json:"executions"`
	MarketFeeds []MarketFeedConfig `json:"market_feeds"`
	Accounts    []AccountConfig    `json:"accounts"`
}

// ExecutionConfig names one (exchange, account) pair this process should
// run an execution.Session for.
type ExecutionConfig struct {
	Exchange            string          `json:"exchange"`
	Network             string          `json:"network"`
	Account             ids.AccountId   `json:"account"`
	OrderSyncInterval   string          `json:"order_sync_interval"`
	BalanceSyncInterval string          `json:"balance_sync_interval"`
	Extra               json.RawMessage `json:"extra"`
}

// MarketFeedConfig names one exchange's public feed to subscribe to, and
// the product symbols to request on each channel once connected.
type MarketFeedConfig struct {
	Exchange string   `json:"exchange"`
	Network  string   `json:"network"`
	Trades   []string `json:"trades"`
	Tickers  []string `json:"tickers"`
	Book     []string `json:"book"`
}

// AccountConfig carries the credential bundle for one account, keyed by
// exchange; the core never persists this itself (spec §1's credential
// store non-goal), it only forwards it into the matching session's
// Config.Credentials at build time.
type AccountConfig struct {
	Exchange string        `json:"exchange"`
	Account  ids.AccountId `json:"account"`
	APIKey   string        `json:"api_key"`
	Secret   string        `json:"secret"`
}

// LoadConfig reads and decodes the JSON document at path.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func parseNetwork(s string) ids.Network {
	switch s {
	case "testnet":
		return ids.NetworkTestnet
	case "devnet":
		return ids.NetworkDevnet
	default:
		return ids.NetworkMainnet
	}
}

func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// toExecutionConfig resolves ec against the credential store, producing
// the internal/execution.Config the session registry builds from.
func toExecutionConfig(ec ExecutionConfig, store credentials.Store) (execution.Config, error) {
	exchange, err := ids.ParseExchange(ec.Exchange)
	if err != nil {
		return execution.Config{}, err
	}
	bundle, err := store.Get(exchange, ec.Account)
	if err != nil {
		return execution.Config{}, fmt.Errorf("config: resolve credentials for %s account %d: %w", exchange, ec.Account, err)
	}
	return execution.Config{
		Exchange:            exchange,
		Network:             parseNetwork(ec.Network),
		Account:             ec.Account,
		Resources:           []execution.Resource{execution.ResourceExecution, execution.ResourceAccounting},
		Credentials:         bundle,
		OrderSyncInterval:   parseDuration(ec.OrderSyncInterval),
		BalanceSyncInterval: parseDuration(ec.BalanceSyncInterval),
	}, nil
}

// toMarketConfig resolves mc into the internal/market.Config its registry
// builds from.
func toMarketConfig(mc MarketFeedConfig) (market.Config, error) {
	exchange, err := ids.ParseExchange(mc.Exchange)
	if err != nil {
		return market.Config{}, err
	}
	return market.Config{Exchange: exchange, Network: parseNetwork(mc.Network)}, nil
}
