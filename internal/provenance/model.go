package provenance

import (
	"strings"
	"time"

	"github.com/jmerrifield20/SupplyChainLedger/internal/ledger"
)

// TimestampLayout is the display format for product timestamps (always UTC).
const TimestampLayout = "2006-01-02 15:04:05 UTC"

// StageEntry is a ledger stage enriched for display.
type StageEntry struct {
	Stage           string `json:"stage"`
	Location        string `json:"location"`
	Verification    string `json:"verification"`
	CarbonFootprint string `json:"carbon_footprint"`
	ContentHash     string `json:"hash"`

	// RenewableEnergyNote is nil unless the stage's additional info
	// mentions solar or renewable energy.
	RenewableEnergyNote *string `json:"renewable_energy,omitempty"`
}

// HasRenewableEnergy reports whether the stage carries a renewable-energy note.
func (e StageEntry) HasRenewableEnergy() bool {
	return e.RenewableEnergyNote != nil
}

// AggregatedResult is the display-ready provenance of one product.
// It is built once per request and owned by the caller.
type AggregatedResult struct {
	ShortenedSourceID  string       `json:"transaction_hash"`
	FormattedTimestamp string       `json:"timestamp"`
	Stages             []StageEntry `json:"supply_chain"`
	TotalCarbon        string       `json:"total_carbon"`
	CarbonOffset       string       `json:"carbon_offset"`
}

// NewStageEntry derives the display entry for a raw stage.
func NewStageEntry(s ledger.StageRecord) StageEntry {
	e := StageEntry{
		Stage:           s.Stage,
		Location:        s.Location,
		Verification:    s.Verification,
		CarbonFootprint: s.CarbonFootprint,
		ContentHash:     HashStage(s),
	}
	if note, ok := RenewableNote(s.AdditionalInfo); ok {
		e.RenewableEnergyNote = &note
	}
	return e
}

// VerifyStage reports whether entry's content hash matches the raw record.
func VerifyStage(entry StageEntry, raw ledger.StageRecord) bool {
	return entry.ContentHash == HashStage(raw)
}

// FormatTimestamp renders epoch seconds in UTC using TimestampLayout.
func FormatTimestamp(epochSeconds uint64) string {
	return time.Unix(int64(epochSeconds), 0).UTC().Format(TimestampLayout)
}

// ShortenID abbreviates a long identifier such as a contract address to its
// first 10 and last 8 characters. Short identifiers are returned unchanged.
func ShortenID(id string) string {
	const head, tail = 10, 8
	if len(id) <= head+tail {
		return id
	}
	return id[:head] + "..." + id[len(id)-tail:]
}

// ExplorerURL builds the block explorer link for a contract address.
func ExplorerURL(explorer, address string) string {
	if explorer == "" || address == "" {
		return ""
	}
	return strings.TrimRight(explorer, "/") + "/address/" + address
}
