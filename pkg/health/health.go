// Package health provides Kubernetes-style liveness and readiness probes.
//
// Registered checks run on background tickers, one goroutine per check.
// Consecutive failure/success thresholds keep a single slow sample from
// flapping the probe state.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc reports the health of one component: nil means healthy.
type CheckFunc func(ctx context.Context) error

// Default thresholds, matching common Kubernetes probe settings.
const (
	failureThreshold = 3
	successThreshold = 1
)

// probe holds one check and its runtime state.
//
// run() executes on a single ticker goroutine, so the consecutive counters
// need no locking. healthy and lastErr are also read by HTTP handlers, hence
// the atomics.
type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails int
	oks   int
}

func newProbe(name string, timeout time.Duration, check CheckFunc) *probe {
	p := &probe{name: name, timeout: timeout, check: check}
	p.healthy.Store(true) // assumed healthy until proven otherwise
	return p
}

// run executes the check once and applies the thresholds. Single-goroutine.
func (p *probe) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(checkCtx)
	p.lastErr.Store(&err)

	if err != nil {
		p.oks = 0
		if p.fails++; p.fails >= failureThreshold {
			p.healthy.Store(false)
		}
		return
	}
	p.fails = 0
	if p.oks++; p.oks >= successThreshold {
		p.healthy.Store(true)
	}
}

func (p *probe) failure() (string, bool) {
	if p.healthy.Load() {
		return "", false
	}
	if ep := p.lastErr.Load(); ep != nil && *ep != nil {
		return (*ep).Error(), true
	}
	return "check is unhealthy", true
}

// Health manages the liveness and readiness probe sets for a service.
type Health struct {
	ready atomic.Bool

	// mu guards the probe slices and cancel. Registration happens before
	// Start; handlers snapshot the slices under RLock.
	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

// New creates a Health service in the not-ready state; call SetReady(true)
// once initialization finishes.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a liveness probe (is the process functioning:
// goroutine counts, GC pauses, deadlocks).
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, check))
}

// AddReadinessCheck registers a readiness probe (can the service take
// traffic: database connectivity, dependent services).
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, check))
}

// Start launches the background ticker goroutines, one per registered probe.
// Call once, after registration.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := make([]*probe, 0, len(h.liveness)+len(h.readiness))
	probes = append(probes, h.liveness...)
	probes = append(probes, h.readiness...)
	h.mu.Unlock()

	for _, p := range probes {
		go func(p *probe) {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			p.run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.run(ctx)
				}
			}
		}(p)
	}
}

// SetReady flips the manual readiness gate: true after startup, false during
// graceful shutdown to shed traffic.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the manual gate is open and every readiness probe
// passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}

	h.mu.RLock()
	probes := h.readiness
	h.mu.RUnlock()

	for _, p := range probes {
		if _, failed := p.failure(); failed {
			return false
		}
	}
	return true
}

// Stop cancels the background probe goroutines. Safe to call repeatedly.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 {"status":"ok"} while every liveness probe
// passes, 503 with the failing probes otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	probes := make([]*probe, len(h.liveness))
	copy(probes, h.liveness)
	h.mu.RUnlock()

	writeProbeStatus(w, failuresOf(probes))
}

// ReadyEndpoint serves /readyz: 200 only when the manual gate is open and all
// readiness probes pass.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	ready := h.ready.Load()

	h.mu.RLock()
	probes := make([]*probe, len(h.readiness))
	copy(probes, h.readiness)
	h.mu.RUnlock()

	failures := failuresOf(probes)
	if !ready {
		failures["_readiness"] = "service is not ready"
	}
	writeProbeStatus(w, failures)
}

// failuresOf maps probe name to message for unhealthy probes, using the last
// stored result rather than re-running checks on request.
func failuresOf(probes []*probe) map[string]string {
	failures := make(map[string]string)
	for _, p := range probes {
		if msg, failed := p.failure(); failed {
			failures[p.name] = msg
		}
	}
	return failures
}

func writeProbeStatus(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	status := http.StatusOK
	if len(failures) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failures
		status = http.StatusServiceUnavailable
	}

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
