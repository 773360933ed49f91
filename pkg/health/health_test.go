package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passingCheck() CheckFunc {
	return func(context.Context) error { return nil }
}

func failingCheck(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

// driveToFailure runs the probe past the failure threshold.
func driveToFailure(p *probe) {
	for range failureThreshold {
		p.run(context.Background())
	}
}

func callEndpoint(h func(http.ResponseWriter, *http.Request), path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestLiveEndpoint_AllPassing(t *testing.T) {
	h := New()
	h.AddLivenessCheck("check1", time.Second, passingCheck())
	h.AddLivenessCheck("check2", time.Second, passingCheck())

	// Probes start healthy by default.
	w := callEndpoint(h.LiveEndpoint, "/livez")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
}

func TestLiveEndpoint_FailingCheck(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, failingCheck("connection refused"))
	driveToFailure(h.liveness[0])

	w := callEndpoint(h.LiveEndpoint, "/livez")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["db"])
}

func TestLiveEndpoint_FailureBelowThreshold(t *testing.T) {
	h := New()
	h.AddLivenessCheck("flaky", time.Second, failingCheck("temporary"))

	for range failureThreshold - 1 {
		h.liveness[0].run(context.Background())
	}

	w := callEndpoint(h.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyEndpoint_ReadyAndPassing(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passingCheck())
	h.SetReady(true)

	w := callEndpoint(h.ReadyEndpoint, "/readyz")

	assert.Equal(t, http.StatusOK, w.Code)

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
}

func TestReadyEndpoint_NotReady(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passingCheck())
	// No SetReady(true): the manual gate starts closed.

	w := callEndpoint(h.ReadyEndpoint, "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Contains(t, body.Checks, "_readiness")
}

func TestReadyEndpoint_SetReadyFalse(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passingCheck())
	h.SetReady(true)

	assert.Equal(t, http.StatusOK, callEndpoint(h.ReadyEndpoint, "/readyz").Code)

	h.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, callEndpoint(h.ReadyEndpoint, "/readyz").Code)
}

func TestReadyEndpoint_MultipleChecksOneFailing(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passingCheck())
	h.AddReadinessCheck("cache", time.Second, failingCheck("cache miss"))
	h.SetReady(true)
	driveToFailure(h.readiness[1])

	w := callEndpoint(h.ReadyEndpoint, "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Contains(t, body.Checks, "cache")
	assert.NotContains(t, body.Checks, "postgres")
}

func TestIsReady(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passingCheck())

	assert.False(t, h.IsReady(), "should not be ready before SetReady")

	h.SetReady(true)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestStopIsIdempotent(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutine", time.Second, passingCheck())

	h.Start(context.Background(), 100*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestEndpoints_NoProbes(t *testing.T) {
	h := New()
	assert.Equal(t, http.StatusOK, callEndpoint(h.LiveEndpoint, "/livez").Code)

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, callEndpoint(h.ReadyEndpoint, "/readyz").Code)
}

func TestProbeRecovery(t *testing.T) {
	failing := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	p := h.liveness[0]

	driveToFailure(p)
	_, failed := p.failure()
	assert.True(t, failed)

	// One pass is enough to recover (successThreshold = 1).
	failing = false
	p.run(context.Background())
	_, failed = p.failure()
	assert.False(t, failed, "probe should recover after consecutive passes")
}

func TestProbeReportsLastError(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, failingCheck("timeout"))
	p := h.liveness[0]

	driveToFailure(p)

	msg, failed := p.failure()
	assert.True(t, failed)
	assert.Equal(t, "timeout", msg)
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("concurrent", time.Second, failingCheck("err"))
	h.AddReadinessCheck("concurrent", time.Second, passingCheck())
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.Start(ctx, 10*time.Millisecond)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				h.IsReady()
				callEndpoint(h.LiveEndpoint, "/livez")
				callEndpoint(h.ReadyEndpoint, "/readyz")
			}
		}()
	}
	wg.Wait()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
