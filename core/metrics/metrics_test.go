package metrics_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/josephlewis42/jobsh/core/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

func TestRegistryExposesMetrics(t *testing.T) {
	metrics.EmitBuildInfo()
	metrics.JobLaunched("metrics_test_kind")
	metrics.JobLaunched("metrics_test_kind")
	metrics.JobTransition("metrics_test_state", true)
	metrics.Sweep()
	metrics.SignalSent("SIGHUP")
	metrics.SignalSent("")

	body := scrape(t, metrics.Handler())

	assert.Contains(t, body, `jobsh_jobs_launched_total{kind="metrics_test_kind"} 2`)
	assert.Contains(t, body, `jobsh_job_transitions_total{state="metrics_test_state"} 1`)
	assert.Contains(t, body, `jobsh_signals_total{signal="SIGHUP"}`)
	assert.Contains(t, body, `jobsh_signals_total{signal="unknown"}`)
	assert.Contains(t, body, "jobsh_sweeps_total")
	assert.Contains(t, body, "jobsh_jobs_active")
	assert.Contains(t, body, "jobsh_build_info{")
	assert.Contains(t, body, "go_version=")
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- metrics.Serve(ctx, addr, log.New(io.Discard, "", 0))
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
