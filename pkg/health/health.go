// Package health exposes the /livez and /readyz probe endpoints for the
// marketplace API server.
//
// Probes run on background tickers. To keep a slow Postgres round-trip or a
// transient spike from flipping the pod, a probe only turns unhealthy after
// failing several times in a row, and recovers on the first success.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc reports on one dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// Consecutive results needed to flip a probe's state. A single failure is
// tolerated; a single success restores the probe.
const (
	failuresToTrip     = 3
	successesToRecover = 1
)

// probe is one registered check plus its sampling state.
//
// tick() runs on exactly one goroutine per probe, so the streak counters are
// unsynchronized. up and lastErr cross into HTTP handler goroutines and are
// atomic.
type probe struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	up      atomic.Bool
	lastErr atomic.Pointer[error]

	failStreak int
	okStreak   int
}

func (p *probe) failure() string {
	if errp := p.lastErr.Load(); errp != nil && *errp != nil {
		return (*errp).Error()
	}
	return "check failed"
}

// tick samples the check once and applies the streak thresholds.
func (p *probe) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.fn(ctx)
	p.lastErr.Store(&err)

	switch {
	case err != nil:
		p.okStreak = 0
		p.failStreak++
		if p.failStreak >= failuresToTrip {
			p.up.Store(false)
		}
	default:
		p.failStreak = 0
		p.okStreak++
		if p.okStreak >= successesToRecover {
			p.up.Store(true)
		}
	}
}

// Health tracks the server's liveness and readiness probes. The zero state is
// not-ready; call SetReady(true) once startup (migrations, repositories,
// scheduler) has finished.
type Health struct {
	ready atomic.Bool

	// mu guards the probe slices and cancel. Registration happens before
	// Start; handlers copy the slice under RLock and read probe state via
	// atomics afterwards.
	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a probe for /livez. Liveness failures mean the
// process itself is wedged (leaked goroutines, runaway GC) and should be
// restarted.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, fn))
}

// AddReadinessCheck registers a probe for /readyz. Readiness failures mean a
// dependency (Postgres, mainly) is unreachable and traffic should be routed
// elsewhere until it recovers.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, fn))
}

func newProbe(name string, timeout time.Duration, fn CheckFunc) *probe {
	p := &probe{name: name, timeout: timeout, fn: fn}
	p.up.Store(true) // healthy until sampled otherwise
	return p
}

// Start launches one sampling goroutine per registered probe. Register all
// probes before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	all := make([]*probe, 0, len(h.liveness)+len(h.readiness))
	all = append(all, h.liveness...)
	all = append(all, h.readiness...)
	h.mu.Unlock()

	for _, p := range all {
		go sample(ctx, p, interval)
	}
}

// sample ticks a single probe until the context ends. The first tick happens
// immediately so /readyz reflects reality before the first interval elapses.
func sample(ctx context.Context, p *probe, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// SetReady flips the manual readiness gate. Set false during graceful
// shutdown so the load balancer drains the pod before connections close.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the gate is open and every readiness probe is up.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}

	h.mu.RLock()
	probes := h.readiness
	h.mu.RUnlock()

	for _, p := range probes {
		if !p.up.Load() {
			return false
		}
	}
	return true
}

// Stop cancels the sampling goroutines. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

type probeReport struct {
	Status   string            `json:"status"`
	Failures map[string]string `json:"failures,omitempty"`
}

// LiveEndpoint serves /livez: 200 {"status":"up"} while all liveness probes
// pass, 503 with per-probe failure messages otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	probes := make([]*probe, len(h.liveness))
	copy(probes, h.liveness)
	h.mu.RUnlock()

	writeReport(w, downProbes(probes))
}

// ReadyEndpoint serves /readyz: 200 only when the manual gate is open and all
// readiness probes pass.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	ready := h.ready.Load()

	h.mu.RLock()
	probes := make([]*probe, len(h.readiness))
	copy(probes, h.readiness)
	h.mu.RUnlock()

	failures := downProbes(probes)
	if !ready {
		failures["_gate"] = "server is not accepting traffic"
	}
	writeReport(w, failures)
}

// downProbes maps each unhealthy probe to its last recorded error. Probes are
// not re-run here; handlers only read the sampled state.
func downProbes(probes []*probe) map[string]string {
	failures := make(map[string]string)
	for _, p := range probes {
		if !p.up.Load() {
			failures[p.name] = p.failure()
		}
	}
	return failures
}

func writeReport(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	report := probeReport{Status: "up"}
	code := http.StatusOK
	if len(failures) > 0 {
		report = probeReport{Status: "down", Failures: failures}
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}
