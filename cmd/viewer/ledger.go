package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jmerrifield20/SupplyChainLedger/internal/catalog"
	"github.com/jmerrifield20/SupplyChainLedger/internal/config"
	"github.com/jmerrifield20/SupplyChainLedger/internal/health"
	"github.com/jmerrifield20/SupplyChainLedger/internal/ledger"
)

// memorySourceID labels the demo ledger when no contract address is configured.
const memorySourceID = "memory"

type ledgerConn struct {
	client   ledger.Client
	prober   health.Prober // nil in memory mode
	sourceID string
	eth      *ethclient.Client
}

func (c *ledgerConn) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}

func openLedger(ctx context.Context, cfg config.LedgerConfig) (*ledgerConn, error) {
	if cfg.Mode == config.ModeMemory {
		source := cfg.ContractAddress
		if source == "" {
			source = memorySourceID
		}
		return &ledgerConn{client: ledger.Demo(), sourceID: source}, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
	defer cancel()
	cc, eth, err := ledger.Dial(dialCtx, cfg.RPCURL, cfg.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("connect ledger: %w", err)
	}
	return &ledgerConn{client: cc, prober: eth, sourceID: cc.Address(), eth: eth}, nil
}

// openCatalog picks the garment store: a YAML file, Postgres, or the
// built-in defaults, in that order.
func openCatalog(ctx context.Context, cfg *config.Config, logger *zap.Logger) (catalog.Store, func(), error) {
	switch {
	case cfg.Catalog.File != "":
		store, err := catalog.LoadFile(cfg.Catalog.File)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("catalog loaded from file", zap.String("path", cfg.Catalog.File))
		return store, func() {}, nil

	case cfg.Database.URL != "":
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("catalog backed by postgres")
		return catalog.NewPostgresStore(pool), pool.Close, nil

	default:
		return catalog.NewMemoryStore(catalog.Defaults()...), func() {}, nil
	}
}
