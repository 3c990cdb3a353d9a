// Package health watches whether the ledger RPC endpoint is reachable.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Prober reports the latest block the endpoint knows about. It is satisfied
// by *ethclient.Client.
type Prober interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Status is the reachability state of the ledger endpoint.
type Status int

const (
	StatusUnknown Status = iota
	StatusHealthy
	StatusDegraded
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// StatusChangeFunc is called whenever the status transitions.
type StatusChangeFunc func(status Status)

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(success bool)

// Checker runs periodic ledger reachability probes. The endpoint is marked
// degraded after FailThreshold consecutive failures and healthy again after
// the next success.
type Checker struct {
	prober    Prober
	cfg       Config
	mu        sync.Mutex
	failCount int
	status    Status
	lastBlock uint64
	onStatus  StatusChangeFunc
	onMetrics MetricsRecordFunc
	logger    *zap.Logger
}

// New creates a new Checker.
func New(prober Prober, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	return &Checker{prober: prober, cfg: cfg, logger: logger}
}

// SetStatusChange configures the status transition callback.
func (h *Checker) SetStatusChange(fn StatusChangeFunc) {
	h.onStatus = fn
}

// SetMetricsRecord configures the metrics recording callback.
func (h *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Status returns the current status and the last block number observed.
func (h *Checker) Status() (Status, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status, h.lastBlock
}

// Start probes once immediately and then every CheckInterval until ctx is done.
func (h *Checker) Start(ctx context.Context) {
	h.CheckOnce(ctx)

	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.CheckOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckOnce runs a single probe and reports whether it succeeded.
func (h *Checker) CheckOnce(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
	block, err := h.prober.BlockNumber(probeCtx)
	cancel()
	success := err == nil

	if h.onMetrics != nil {
		h.onMetrics(success)
	}

	h.mu.Lock()
	prev := h.status
	if success {
		h.failCount = 0
		h.lastBlock = block
		h.status = StatusHealthy
	} else {
		h.failCount++
		if h.failCount >= h.cfg.FailThreshold {
			h.status = StatusDegraded
		}
	}
	next, count := h.status, h.failCount
	h.mu.Unlock()

	switch {
	case next == prev:
	case next == StatusHealthy && prev == StatusDegraded:
		h.logger.Info("health: ledger recovered", zap.Uint64("block", block))
	case next == StatusHealthy:
		h.logger.Info("health: ledger reachable", zap.Uint64("block", block))
	case next == StatusDegraded:
		h.logger.Warn("health: ledger degraded",
			zap.Int("fail_count", count),
			zap.Error(err),
		)
	}
	if next != prev && h.onStatus != nil {
		h.onStatus(next)
	}
	if !success && next != StatusDegraded {
		h.logger.Debug("health: probe failed", zap.Int("fail_count", count), zap.Error(err))
	}
	return success
}
