package api

import (
	"fmt"

	"github.com/gabikreal1/AlgoFlow/pkg/chain"
	"github.com/gabikreal1/AlgoFlow/pkg/codec"
	"github.com/gabikreal1/AlgoFlow/pkg/config"
	"github.com/gabikreal1/AlgoFlow/pkg/ledger"
	"github.com/gabikreal1/AlgoFlow/pkg/logger"
	"github.com/gabikreal1/AlgoFlow/pkg/protocols"
	"github.com/gabikreal1/AlgoFlow/pkg/router"
	"github.com/gabikreal1/AlgoFlow/pkg/store"
)

// NewEngine assembles the full sandbox engine from configuration: box
// stores, the ledger and router apps wired to each other, the oracle, and
// the genesis topology (funded accounts, pools, router working funds).
func NewEngine(cfg *config.Config, genesis *config.Genesis, log logger.Logger) (*Engine, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	env := chain.NewEnv(log)

	ledgerStore, err := openStore(cfg.SQLitePath, "ledger")
	if err != nil {
		return nil, err
	}
	routerStore, err := openStore(cfg.SQLitePath, "router")
	if err != nil {
		return nil, err
	}

	led, err := ledger.New(ledgerStore, log, cfg.OwnerAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %v", err)
	}
	ledgerID, _ := env.CreateApp(led)

	rtr, err := router.New(routerStore, log, cfg.OwnerAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to open router: %v", err)
	}
	routerID, routerAddr := env.CreateApp(rtr)

	// Wire the two apps together: the ledger trusts the router as its
	// executor, the router reads and writes through the ledger.
	_, err = env.Submit([]chain.Txn{
		chain.AppCall{Sender: cfg.OwnerAddress, AppID: ledgerID, Args: [][]byte{
			chain.MethodSelector(ledger.SigConfigure),
			cfg.KeeperAddress.Bytes(),
			chain.Itob(cfg.MinCollateral),
			chain.Itob(cfg.KeeperFeeBPS),
			chain.Itob(routerID),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure ledger: %v", err)
	}
	_, err = env.Submit([]chain.Txn{
		chain.AppCall{Sender: cfg.OwnerAddress, AppID: routerID, Args: [][]byte{
			chain.MethodSelector(router.SigConfigure),
			chain.Itob(ledgerID),
			cfg.KeeperAddress.Bytes(),
			chain.Itob(cfg.KeeperFeeBPS),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure router: %v", err)
	}

	oracle := chain.NewOracle(cfg.OracleStaleness)
	for key, price := range genesis.Oracle.Prices {
		oracle.SetPrice(key, price)
	}
	oracleID, _ := env.CreateApp(oracle)
	log.Info("[CHAIN] oracle app %d seeded with %d prices", oracleID, len(genesis.Oracle.Prices))

	for _, account := range genesis.Accounts {
		addr, err := codec.AddressFromHex(account.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid genesis account: %v", err)
		}
		for assetID, amount := range account.Balances {
			env.Fund(addr, assetID, amount)
		}
	}

	for i, genesisPool := range genesis.Pools {
		pool := protocols.NewAmmPool()
		for _, rate := range genesisPool.Rates {
			pool.SetRate(rate.AssetIn, rate.AssetOut, protocols.Rate{Num: rate.Num, Den: rate.Den})
		}
		poolID, poolAddr := env.CreateApp(pool)
		for assetID, amount := range genesisPool.Balances {
			env.Fund(poolAddr, assetID, amount)
		}
		log.Info("[CHAIN] pool %d deployed as app %d with %d routes", i, poolID, len(genesisPool.Rates))
	}

	stakingID, _ := env.CreateApp(protocols.NewStakingPool())
	lendingID, _ := env.CreateApp(protocols.NewLendingMarket())
	log.Info("[CHAIN] staking app %d, lending app %d deployed", stakingID, lendingID)

	for assetID, amount := range genesis.RouterFunding {
		env.Fund(routerAddr, assetID, amount)
	}

	return &Engine{
		Env:           env,
		Ledger:        led,
		LedgerAppID:   ledgerID,
		RouterAppID:   routerID,
		DefaultKeeper: cfg.KeeperAddress,
	}, nil
}

// openStore selects a backend per component: SQLite when a path is
// configured, otherwise in-memory. Components get separate tables through
// distinct database files derived from the base path.
func openStore(sqlitePath, component string) (store.Store, error) {
	if sqlitePath == "" {
		return store.NewMemoryStore(), nil
	}
	s, err := store.NewSQLiteStore(sqlitePath + "." + component)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %v", component, err)
	}
	return s, nil
}
