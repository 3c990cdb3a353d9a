// Package provenance assembles ledger records into a display-ready
// supply-chain timeline.
//
// Aggregate issues one product query, one stage-count query and then one
// query per stage. Each stage is fingerprinted with DeriveHash and tagged
// with a renewable-energy note when its additional info mentions one.
// Any failed query aborts the whole aggregation with a *Failure.
//
// The count and the per-index reads are not transactional; if the ledger
// changes between them the aggregation reflects whatever each read saw.
package provenance

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jmerrifield20/SupplyChainLedger/internal/ledger"
)

// MaxStages bounds the stage count accepted from the ledger. A larger count
// is treated as an invalid response rather than allocated.
const MaxStages = 10_000

// Aggregator turns a product identifier into an AggregatedResult.
// It holds only immutable configuration and is safe for concurrent use.
type Aggregator struct {
	client   ledger.Client
	sourceID string
	parallel int // 0 = sequential
	logger   *zap.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithParallelStages fans the per-stage queries out over at most limit
// concurrent calls. Ordering and the all-or-nothing rule are unchanged.
// limit <= 1 keeps the sequential behaviour.
func WithParallelStages(limit int) Option {
	return func(a *Aggregator) {
		if limit > 1 {
			a.parallel = limit
		}
	}
}

// NewAggregator creates an Aggregator reading from client. sourceID is the
// ledger source (the contract address) shown in shortened form.
func NewAggregator(client ledger.Client, sourceID string, logger *zap.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{client: client, sourceID: sourceID, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SourceID returns the full ledger source identifier.
func (a *Aggregator) SourceID() string {
	return a.sourceID
}

// Aggregate fetches and assembles the provenance of productID.
// On error the result is nil and the error is a *Failure.
func (a *Aggregator) Aggregate(ctx context.Context, productID string) (*AggregatedResult, error) {
	product, err := a.client.GetProduct(ctx, productID)
	if err != nil {
		return nil, newFailure(productID, StepProduct, -1, err)
	}
	if product == nil {
		return nil, newFailure(productID, StepProduct, -1,
			errors.Wrap(ledger.ErrInvalidResponse, "nil product record"))
	}

	count, err := a.client.GetStageCount(ctx, productID)
	if err != nil {
		return nil, newFailure(productID, StepStageCount, -1, err)
	}
	if count > MaxStages {
		return nil, newFailure(productID, StepStageCount, -1,
			errors.Wrapf(ledger.ErrInvalidResponse, "stage count %d exceeds %d", count, MaxStages))
	}

	var stages []StageEntry
	if a.parallel > 1 && count > 1 {
		stages, err = a.fetchParallel(ctx, productID, count)
	} else {
		stages, err = a.fetchSequential(ctx, productID, count)
	}
	if err != nil {
		return nil, err
	}

	a.logger.Debug("provenance aggregated",
		zap.String("product_id", productID),
		zap.Uint64("stages", count),
	)

	return &AggregatedResult{
		ShortenedSourceID:  ShortenID(a.sourceID),
		FormattedTimestamp: FormatTimestamp(product.Timestamp),
		Stages:             stages,
		TotalCarbon:        product.TotalCarbon,
		CarbonOffset:       product.CarbonOffset,
	}, nil
}

func (a *Aggregator) fetchSequential(ctx context.Context, productID string, count uint64) ([]StageEntry, error) {
	stages := make([]StageEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		entry, err := a.fetchStage(ctx, productID, i)
		if err != nil {
			return nil, err
		}
		stages = append(stages, entry)
	}
	return stages, nil
}

// fetchParallel writes each stage into its own slot so stages[i] is always
// remote index i, whatever order the calls complete in.
func (a *Aggregator) fetchParallel(ctx context.Context, productID string, count uint64) ([]StageEntry, error) {
	stages := make([]StageEntry, count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallel)

	launched := uint64(0)
	for i := uint64(0); i < count; i++ {
		if gctx.Err() != nil {
			break
		}
		launched++
		i := i
		g.Go(func() error {
			entry, err := a.fetchStage(gctx, productID, i)
			if err != nil {
				return err
			}
			stages[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if launched < count {
		return nil, newFailure(productID, StepStage, int64(launched), context.Cause(gctx))
	}
	return stages, nil
}

func (a *Aggregator) fetchStage(ctx context.Context, productID string, index uint64) (StageEntry, error) {
	raw, err := a.client.GetStage(ctx, productID, index)
	if err != nil {
		return StageEntry{}, newFailure(productID, StepStage, int64(index), err)
	}
	if raw == nil {
		return StageEntry{}, newFailure(productID, StepStage, int64(index),
			errors.Wrap(ledger.ErrInvalidResponse, "nil stage record"))
	}
	return NewStageEntry(*raw), nil
}
