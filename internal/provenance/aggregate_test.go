package provenance_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jmerrifield20/SupplyChainLedger/internal/ledger"
	"github.com/jmerrifield20/SupplyChainLedger/internal/provenance"
)

const contract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func newAggregator(c ledger.Client, opts ...provenance.Option) *provenance.Aggregator {
	return provenance.NewAggregator(c, contract, zap.NewNop(), opts...)
}

// ── Example scenario ─────────────────────────────────────────────────────────

func TestAggregate_organicCottonTShirt(t *testing.T) {
	l := ledger.Demo()
	res, err := newAggregator(l).Aggregate(context.Background(), ledger.DemoProductID)
	require.NoError(t, err)

	require.Len(t, res.Stages, 2)
	assert.Equal(t, "Raw Material", res.Stages[0].Stage)
	assert.Equal(t, "Manufacturing", res.Stages[1].Stage)

	assert.Nil(t, res.Stages[0].RenewableEnergyNote)
	require.NotNil(t, res.Stages[1].RenewableEnergyNote)
	assert.Equal(t, "Solar-powered factory", *res.Stages[1].RenewableEnergyNote)

	assert.Equal(t, "0x94c5f235824f78fc6afe119495198aad8795347ad9b1ece16a31585622e91cc3", res.Stages[0].ContentHash)
	assert.Equal(t, "0x1165abed02a5d6d63ffbc825c0696129345107f0bcf9403af7eeb90a01bba764", res.Stages[1].ContentHash)
	assert.NotEqual(t, res.Stages[0].ContentHash, res.Stages[1].ContentHash)
	for _, s := range res.Stages {
		assert.Regexp(t, hexHash, s.ContentHash)
	}

	assert.Equal(t, "0x5FbDB231...64180aa3", res.ShortenedSourceID)
	assert.Equal(t, "2024-11-01 00:00:00 UTC", res.FormattedTimestamp)
	assert.Equal(t, "57.5 kg CO2", res.TotalCarbon)
	assert.Equal(t, "60 kg CO2 (verified offsets)", res.CarbonOffset)
}

func TestAggregate_noStages(t *testing.T) {
	l := ledger.NewMemory()
	l.PutProduct(ledger.ProductRecord{ProductID: "bare", Timestamp: 0})

	res, err := newAggregator(l).Aggregate(context.Background(), "bare")
	require.NoError(t, err)
	assert.NotNil(t, res.Stages)
	assert.Empty(t, res.Stages)
}

// ── Failure semantics ────────────────────────────────────────────────────────

func TestAggregate_productFailureShortCircuits(t *testing.T) {
	l := ledger.Demo()
	l.FailOn("getProduct", ledger.ErrConnection)

	res, err := newAggregator(l).Aggregate(context.Background(), ledger.DemoProductID)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, []string{"getProduct"}, l.Calls(), "no count or stage queries after a product failure")

	f, ok := provenance.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, provenance.StepProduct, f.Step)
	assert.Equal(t, int64(-1), f.Index)
	assert.Equal(t, ledger.DemoProductID, f.ProductID)
	assert.True(t, errors.Is(err, ledger.ErrConnection))
	assert.Contains(t, provenance.Hints(err), "ledger.rpc_url")
}

func TestAggregate_unknownProduct(t *testing.T) {
	res, err := newAggregator(ledger.Demo()).Aggregate(context.Background(), "missing")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ledger.ErrNotFound))
}

func TestAggregate_countFailure(t *testing.T) {
	l := ledger.Demo()
	l.FailOn("getStageCount", ledger.ErrInvalidResponse)

	_, err := newAggregator(l).Aggregate(context.Background(), ledger.DemoProductID)
	f, ok := provenance.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, provenance.StepStageCount, f.Step)
	assert.Equal(t, []string{"getProduct", "getStageCount"}, l.Calls())
}

func TestAggregate_stageFailureIsNotPartial(t *testing.T) {
	l := ledger.Demo()
	l.AppendStage(ledger.DemoProductID, ledger.StageRecord{Stage: "Shipping"})
	l.FailOn("getStage/1", ledger.ErrInvalidResponse)

	res, err := newAggregator(l).Aggregate(context.Background(), ledger.DemoProductID)
	require.Error(t, err)
	assert.Nil(t, res, "a stage failure must not yield a partial result")

	f, ok := provenance.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, provenance.StepStage, f.Step)
	assert.Equal(t, int64(1), f.Index)
	assert.Contains(t, err.Error(), "stage 1")

	// Sequential: stage 2 is never queried once stage 1 fails.
	assert.Equal(t, []string{"getProduct", "getStageCount", "getStage/0", "getStage/1"}, l.Calls())
}

func TestAggregate_countShrinksBetweenReads(t *testing.T) {
	// The count says 3 but only 2 stages can be read: the accepted race
	// surfaces as a failure on the missing index, never a short list.
	c := &shrinkingClient{MemoryClient: ledger.Demo(), count: 3}
	_, err := newAggregator(c).Aggregate(context.Background(), ledger.DemoProductID)

	f, ok := provenance.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, int64(2), f.Index)
	assert.True(t, errors.Is(err, ledger.ErrNotFound))
}

func TestAggregate_rejectsAbsurdCount(t *testing.T) {
	c := &shrinkingClient{MemoryClient: ledger.Demo(), count: provenance.MaxStages + 1}
	_, err := newAggregator(c).Aggregate(context.Background(), ledger.DemoProductID)

	f, ok := provenance.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, provenance.StepStageCount, f.Step)
	assert.True(t, errors.Is(err, ledger.ErrInvalidResponse))
}

func TestAggregate_deadline(t *testing.T) {
	c := &slowClient{Client: ledger.Demo(), delay: func(uint64) time.Duration { return 50 * time.Millisecond }}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := newAggregator(c).Aggregate(ctx, ledger.DemoProductID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

// ── Parallel fetch ───────────────────────────────────────────────────────────

func TestAggregate_parallelPreservesOrder(t *testing.T) {
	l := ledger.NewMemory()
	l.PutProduct(ledger.ProductRecord{ProductID: "p"})
	names := []string{"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7"}
	for _, n := range names {
		l.AppendStage("p", ledger.StageRecord{Stage: n})
	}
	// Later indexes answer first.
	c := &slowClient{Client: l, delay: func(i uint64) time.Duration {
		return time.Duration(len(names)-int(i)) * 3 * time.Millisecond
	}}

	res, err := newAggregator(c, provenance.WithParallelStages(4)).Aggregate(context.Background(), "p")
	require.NoError(t, err)
	require.Len(t, res.Stages, len(names))
	for i, n := range names {
		assert.Equal(t, n, res.Stages[i].Stage)
	}
	assert.LessOrEqual(t, c.maxInFlight.Load(), int32(4))
}

func TestAggregate_parallelFailureAborts(t *testing.T) {
	l := ledger.Demo()
	for i := 0; i < 6; i++ {
		l.AppendStage(ledger.DemoProductID, ledger.StageRecord{Stage: "extra"})
	}
	l.FailOn("getStage/3", ledger.ErrConnection)

	res, err := newAggregator(l, provenance.WithParallelStages(3)).Aggregate(context.Background(), ledger.DemoProductID)
	require.Error(t, err)
	assert.Nil(t, res)
	f, ok := provenance.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, provenance.StepStage, f.Step)
}

func TestAggregate_parallelMatchesSequential(t *testing.T) {
	seq, err := newAggregator(ledger.Demo()).Aggregate(context.Background(), ledger.DemoProductID)
	require.NoError(t, err)
	par, err := newAggregator(ledger.Demo(), provenance.WithParallelStages(8)).Aggregate(context.Background(), ledger.DemoProductID)
	require.NoError(t, err)
	assert.Equal(t, seq, par)
}

// ── Stubs ────────────────────────────────────────────────────────────────────

type shrinkingClient struct {
	*ledger.MemoryClient
	count uint64
}

func (s *shrinkingClient) GetStageCount(context.Context, string) (uint64, error) {
	return s.count, nil
}

type slowClient struct {
	ledger.Client
	delay       func(index uint64) time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (s *slowClient) GetStage(ctx context.Context, productID string, index uint64) (*ledger.StageRecord, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		m := s.maxInFlight.Load()
		if n <= m || s.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	select {
	case <-time.After(s.delay(index)):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.Client.GetStage(ctx, productID, index)
}
