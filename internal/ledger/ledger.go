// Package ledger reads supply-chain provenance records from a remote ledger.
//
// The ledger is a single contract exposing three read-only views:
// getProduct, getStageCount and getStage. Nothing in this package writes to
// the chain or keeps fetched data beyond the call that produced it.
//
// Two implementations of the Client interface are provided:
//   - ContractClient: eth_call against a JSON-RPC endpoint.
//   - MemoryClient: in-process, for tests, demos and development.
package ledger

import (
	"context"

	"github.com/cockroachdb/errors"
)

var (
	// ErrConnection is returned when the endpoint is unreachable or misconfigured.
	ErrConnection = errors.New("ledger endpoint unavailable")

	// ErrNotFound is returned when the ledger has no record for the product or index.
	ErrNotFound = errors.New("ledger record not found")

	// ErrInvalidResponse is returned when the ledger answers with data of the wrong shape.
	ErrInvalidResponse = errors.New("invalid ledger response")
)

// ProductRecord is the fixed-shape product header stored on the ledger.
type ProductRecord struct {
	ProductID    string `json:"product_id"`
	Timestamp    uint64 `json:"timestamp"` // epoch seconds
	TotalCarbon  string `json:"total_carbon"`
	CarbonOffset string `json:"carbon_offset"`
}

// StageRecord is one raw supply-chain stage as returned by the ledger.
type StageRecord struct {
	Stage           string `json:"stage"`
	Location        string `json:"location"`
	Verification    string `json:"verification"`
	CarbonFootprint string `json:"carbon_footprint"`
	AdditionalInfo  string `json:"additional_info,omitempty"`
}

// Client is the read-only query interface to the provenance ledger.
// ContractClient, MemoryClient and Instrumented implement it.
type Client interface {
	// GetProduct returns the product header for productID.
	GetProduct(ctx context.Context, productID string) (*ProductRecord, error)

	// GetStageCount returns how many stages are recorded for productID.
	GetStageCount(ctx context.Context, productID string) (uint64, error)

	// GetStage returns the stage at the given zero-based index.
	GetStage(ctx context.Context, productID string, index uint64) (*StageRecord, error)
}
