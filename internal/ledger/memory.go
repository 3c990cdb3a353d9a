package ledger

import (
	"context"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
)

// MemoryClient is an in-memory, thread-safe Client implementation.
// It is primarily useful for testing and for running the viewer without
// access to a JSON-RPC endpoint.
type MemoryClient struct {
	mu       sync.RWMutex
	products map[string]ProductRecord
	stages   map[string][]StageRecord
	failures map[string]error
	calls    []string
}

// NewMemory creates an empty MemoryClient.
func NewMemory() *MemoryClient {
	return &MemoryClient{
		products: make(map[string]ProductRecord),
		stages:   make(map[string][]StageRecord),
		failures: make(map[string]error),
	}
}

// PutProduct stores (or replaces) a product header.
func (m *MemoryClient) PutProduct(p ProductRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ProductID] = p
}

// AppendStage adds a stage to the end of a product's stage list.
func (m *MemoryClient) AppendStage(productID string, s StageRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[productID] = append(m.stages[productID], s)
}

// FailOn makes the named call return err. key is one of
// "getProduct", "getStageCount", or "getStage/<index>".
func (m *MemoryClient) FailOn(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[key] = err
}

// Calls returns the calls served so far, in order, using the FailOn key format.
func (m *MemoryClient) Calls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// GetProduct implements Client.
func (m *MemoryClient) GetProduct(ctx context.Context, productID string) (*ProductRecord, error) {
	if err := m.record(ctx, methodGetProduct); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "product %q", productID)
	}
	return &p, nil
}

// GetStageCount implements Client. Unknown products report zero stages,
// matching the contract, which returns the length of an empty array.
func (m *MemoryClient) GetStageCount(ctx context.Context, productID string) (uint64, error) {
	if err := m.record(ctx, methodGetStageCount); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.stages[productID])), nil
}

// GetStage implements Client.
func (m *MemoryClient) GetStage(ctx context.Context, productID string, index uint64) (*StageRecord, error) {
	if err := m.record(ctx, stageKey(index)); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	stages := m.stages[productID]
	if index >= uint64(len(stages)) {
		return nil, errors.Wrapf(ErrNotFound, "stage %d of %q out of range", index, productID)
	}
	s := stages[index]
	return &s, nil
}

func (m *MemoryClient) record(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "%s", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, key)
	if err, ok := m.failures[key]; ok {
		return err
	}
	return nil
}

func stageKey(index uint64) string {
	return methodGetStage + "/" + strconv.FormatUint(index, 10)
}

// DemoProductID is the product seeded by Demo.
const DemoProductID = "organic-cotton-tshirt"

// Demo returns a MemoryClient holding the organic cotton t-shirt record
// used by the demo catalog.
func Demo() *MemoryClient {
	m := NewMemory()
	m.PutProduct(ProductRecord{
		ProductID:    DemoProductID,
		Timestamp:    1730419200,
		TotalCarbon:  "57.5 kg CO2",
		CarbonOffset: "60 kg CO2 (verified offsets)",
	})
	m.AppendStage(DemoProductID, StageRecord{
		Stage:           "Raw Material",
		Location:        "Texas, USA",
		Verification:    "GOTS Certified",
		CarbonFootprint: "12.5 kg CO2",
		AdditionalInfo:  "Organic farming, no pesticides",
	})
	m.AppendStage(DemoProductID, StageRecord{
		Stage:           "Manufacturing",
		Location:        "Vietnam",
		Verification:    "Fair Trade Certified",
		CarbonFootprint: "45.0 kg CO2",
		AdditionalInfo:  "Solar-powered factory",
	})
	return m
}
