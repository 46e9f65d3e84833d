package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gabikreal1/AlgoFlow/pkg/codec"
)

// Genesis describes the sandbox topology bootstrapped at startup: funded
// accounts, oracle prices, AMM pool routes and liquidity, and the working
// funds of the router's app account.
type Genesis struct {
	Accounts      []GenesisAccount  `yaml:"accounts"`
	Oracle        GenesisOracle     `yaml:"oracle"`
	Pools         []GenesisPool     `yaml:"pools"`
	RouterFunding map[uint64]uint64 `yaml:"router_funding"`
}

// GenesisAccount is one pre-funded account.
type GenesisAccount struct {
	Address  string            `yaml:"address"`
	Balances map[uint64]uint64 `yaml:"balances"`
}

// GenesisOracle seeds the price oracle.
type GenesisOracle struct {
	Prices map[string]uint64 `yaml:"prices"`
}

// GenesisPool is one AMM pool with its routes and starting liquidity.
type GenesisPool struct {
	Rates    []GenesisRate     `yaml:"rates"`
	Balances map[uint64]uint64 `yaml:"balances"`
}

// GenesisRate is one directed exchange route.
type GenesisRate struct {
	AssetIn  uint64 `yaml:"asset_in"`
	AssetOut uint64 `yaml:"asset_out"`
	Num      uint64 `yaml:"num"`
	Den      uint64 `yaml:"den"`
}

// LoadGenesis reads and validates a genesis topology file. A missing file
// is not an error: the engine starts with an empty sandbox.
func LoadGenesis(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Genesis{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read genesis file %s: %v", path, err)
	}

	var genesis Genesis
	if err := yaml.Unmarshal(raw, &genesis); err != nil {
		return nil, fmt.Errorf("failed to parse genesis file %s: %v", path, err)
	}
	if err := genesis.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis file %s: %v", path, err)
	}
	return &genesis, nil
}

// Validate checks addresses and rates before any of the topology is
// applied.
func (g *Genesis) Validate() error {
	for i, account := range g.Accounts {
		if _, err := codec.AddressFromHex(account.Address); err != nil {
			return fmt.Errorf("account %d: invalid address %q", i, account.Address)
		}
	}
	for i, pool := range g.Pools {
		for j, rate := range pool.Rates {
			if rate.Den == 0 {
				return fmt.Errorf("pool %d rate %d: zero denominator", i, j)
			}
		}
	}
	return nil
}
