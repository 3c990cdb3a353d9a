package provenance

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/jmerrifield20/SupplyChainLedger/internal/ledger"
)

// Step names the ledger query an aggregation was performing when it failed.
type Step string

const (
	StepProduct    Step = "product"
	StepStageCount Step = "stage_count"
	StepStage      Step = "stage"
)

// Failure is the single error returned by Aggregate. No partial result
// accompanies it: the lookup either completes or fails as a whole.
type Failure struct {
	ProductID string
	Step      Step
	Index     int64 // stage index for StepStage, otherwise -1
	Err       error
}

func (f *Failure) Error() string {
	if f.Step == StepStage {
		return fmt.Sprintf("aggregate %q: %s %d: %v", f.ProductID, f.Step, f.Index, f.Err)
	}
	return fmt.Sprintf("aggregate %q: %s: %v", f.ProductID, f.Step, f.Err)
}

// Unwrap exposes the ledger error so callers can test for
// ledger.ErrNotFound, ledger.ErrConnection and friends.
func (f *Failure) Unwrap() error { return f.Err }

// AsFailure extracts the *Failure from err, if any.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// newFailure wraps err with an operator-facing hint chosen by its cause.
func newFailure(productID string, step Step, index int64, err error) *Failure {
	switch {
	case errors.Is(err, ledger.ErrConnection):
		err = errors.WithHint(err, "check ledger.rpc_url (INFURA_URL) and network connectivity")
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, ledger.ErrInvalidResponse):
		err = errors.WithHint(err, "make sure ledger.contract_address (CONTRACT_ADDRESS) points at the provenance contract")
	case errors.Is(err, context.DeadlineExceeded):
		err = errors.WithHint(err, "the ledger did not answer within ledger.call_timeout")
	}
	return &Failure{ProductID: productID, Step: step, Index: index, Err: err}
}

// Hints returns the operator-facing hints attached to err, joined by newlines.
func Hints(err error) string {
	return errors.FlattenHints(err)
}
