package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type stubProber struct {
	mu    sync.Mutex
	block uint64
	err   error
	calls int
}

func (s *stubProber) BlockNumber(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("probe without deadline")
	}
	return s.block, nil
}

func (s *stubProber) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *stubProber) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestCheckOnce_success(t *testing.T) {
	prober := &stubProber{block: 4242}
	checker := New(prober, Config{ProbeTimeout: time.Second}, zap.NewNop())

	var transitions []Status
	checker.SetStatusChange(func(s Status) { transitions = append(transitions, s) })

	if !checker.CheckOnce(context.Background()) {
		t.Fatal("expected probe to succeed")
	}
	status, block := checker.Status()
	if status != StatusHealthy {
		t.Errorf("status = %v, want healthy", status)
	}
	if block != 4242 {
		t.Errorf("block = %d, want 4242", block)
	}
	if len(transitions) != 1 || transitions[0] != StatusHealthy {
		t.Errorf("transitions = %v, want [healthy]", transitions)
	}

	// A second success is not a transition.
	checker.CheckOnce(context.Background())
	if len(transitions) != 1 {
		t.Errorf("transitions = %v, want one", transitions)
	}
}

func TestCheckOnce_degradesAfterThreshold(t *testing.T) {
	prober := &stubProber{err: errors.New("dial tcp: connection refused")}
	checker := New(prober, Config{ProbeTimeout: time.Second, FailThreshold: 3}, zap.NewNop())

	var transitions []Status
	checker.SetStatusChange(func(s Status) { transitions = append(transitions, s) })

	for i := 0; i < 2; i++ {
		if checker.CheckOnce(context.Background()) {
			t.Fatal("expected probe to fail")
		}
	}
	if status, _ := checker.Status(); status != StatusUnknown {
		t.Errorf("status after 2 failures = %v, want unknown", status)
	}

	checker.CheckOnce(context.Background())
	if status, _ := checker.Status(); status != StatusDegraded {
		t.Errorf("status after 3 failures = %v, want degraded", status)
	}

	// Further failures do not re-announce the transition.
	checker.CheckOnce(context.Background())
	if len(transitions) != 1 || transitions[0] != StatusDegraded {
		t.Errorf("transitions = %v, want [degraded]", transitions)
	}
}

func TestCheckOnce_recovers(t *testing.T) {
	prober := &stubProber{err: errors.New("timeout")}
	checker := New(prober, Config{ProbeTimeout: time.Second, FailThreshold: 1}, zap.NewNop())

	var transitions []Status
	checker.SetStatusChange(func(s Status) { transitions = append(transitions, s) })

	checker.CheckOnce(context.Background())
	prober.fail(nil)
	prober.block = 7
	checker.CheckOnce(context.Background())

	want := []Status{StatusDegraded, StatusHealthy}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions[%d] = %v, want %v", i, transitions[i], want[i])
		}
	}
}

func TestCheckOnce_recordsMetrics(t *testing.T) {
	prober := &stubProber{block: 1}
	checker := New(prober, Config{ProbeTimeout: time.Second}, zap.NewNop())

	var results []bool
	checker.SetMetricsRecord(func(ok bool) { results = append(results, ok) })

	checker.CheckOnce(context.Background())
	prober.fail(errors.New("boom"))
	checker.CheckOnce(context.Background())

	if len(results) != 2 || !results[0] || results[1] {
		t.Errorf("metrics = %v, want [true false]", results)
	}
}

func TestStart_probesImmediatelyAndStops(t *testing.T) {
	prober := &stubProber{block: 1}
	checker := New(prober, Config{CheckInterval: time.Hour, ProbeTimeout: time.Second}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for prober.Calls() == 0 {
		select {
		case <-deadline:
			t.Fatal("no probe within 2s")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestStatus_String(t *testing.T) {
	cases := map[Status]string{
		StatusUnknown:  "unknown",
		StatusHealthy:  "healthy",
		StatusDegraded: "degraded",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", s, got, want)
		}
	}
}
