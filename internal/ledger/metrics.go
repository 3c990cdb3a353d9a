package ledger

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_calls_total",
		Help: "Total ledger view calls by method and result.",
	}, []string{"method", "result"})

	ledgerCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_call_duration_seconds",
		Help:    "Ledger view call latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// Instrumented wraps a Client and records Prometheus metrics for every call.
type Instrumented struct {
	next Client
}

// Instrument returns next wrapped with call metrics.
func Instrument(next Client) *Instrumented {
	return &Instrumented{next: next}
}

// GetProduct implements Client.
func (i *Instrumented) GetProduct(ctx context.Context, productID string) (*ProductRecord, error) {
	defer observe(methodGetProduct, time.Now())
	p, err := i.next.GetProduct(ctx, productID)
	count(methodGetProduct, err)
	return p, err
}

// GetStageCount implements Client.
func (i *Instrumented) GetStageCount(ctx context.Context, productID string) (uint64, error) {
	defer observe(methodGetStageCount, time.Now())
	n, err := i.next.GetStageCount(ctx, productID)
	count(methodGetStageCount, err)
	return n, err
}

// GetStage implements Client.
func (i *Instrumented) GetStage(ctx context.Context, productID string, index uint64) (*StageRecord, error) {
	defer observe(methodGetStage, time.Now())
	s, err := i.next.GetStage(ctx, productID, index)
	count(methodGetStage, err)
	return s, err
}

func observe(method string, start time.Time) {
	ledgerCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func count(method string, err error) {
	ledgerCallsTotal.WithLabelValues(method, Result(err)).Inc()
}

// Result classifies err into a low-cardinality metrics label.
func Result(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
