package provenance

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/jmerrifield20/SupplyChainLedger/internal/ledger"
)

// DeriveHash returns the content hash of a stage: Keccak-256 over the five
// fields concatenated in order with no separator, as 0x-prefixed lowercase hex.
// This is Ethereum's keccak256 of the UTF-8 text, not NIST SHA3-256.
func DeriveHash(stage, location, verification, carbonFootprint, additionalInfo string) string {
	h := sha3.NewLegacyKeccak256()
	for _, f := range [...]string{stage, location, verification, carbonFootprint, additionalInfo} {
		h.Write([]byte(f)) //nolint:errcheck // hash.Hash never returns an error
	}
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// HashStage is DeriveHash applied to a raw ledger stage.
func HashStage(s ledger.StageRecord) string {
	return DeriveHash(s.Stage, s.Location, s.Verification, s.CarbonFootprint, s.AdditionalInfo)
}

// RenewableNote returns additionalInfo when it mentions solar or renewable
// energy (case-insensitive). ok is false for empty or unrelated text.
func RenewableNote(additionalInfo string) (note string, ok bool) {
	if additionalInfo == "" {
		return "", false
	}
	lower := strings.ToLower(additionalInfo)
	if strings.Contains(lower, "solar") || strings.Contains(lower, "renewable") {
		return additionalInfo, true
	}
	return "", false
}
