// Package metrics exposes job-control counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	jobsLaunched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobsh",
		Name:      "jobs_launched_total",
		Help:      "Jobs started, by unit kind.",
	}, []string{"kind"})

	jobTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobsh",
		Name:      "job_transitions_total",
		Help:      "Job state transitions, by the state entered.",
	}, []string{"state"})

	jobsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "jobsh",
		Name:      "jobs_active",
		Help:      "Jobs in the table that are not done.",
	})

	sweeps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "jobsh",
		Name:      "sweeps_total",
		Help:      "Asynchronous sweeps of the job table.",
	})

	signalsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobsh",
		Name:      "signals_total",
		Help:      "Signals delivered to jobs by the shell.",
	}, []string{"signal"})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "jobsh",
		Name:      "build_info",
		Help:      "Build metadata for the running jobsh binary.",
	}, []string{"go_version", "vcs_revision"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(jobsLaunched, jobTransitions, jobsActive, sweeps, signalsSent, buildInfo)
}

// Registry returns the Prometheus registry containing all jobsh metrics.
func Registry() *prometheus.Registry {
	return registry
}

// JobLaunched counts a new job of the given kind.
func JobLaunched(kind string) {
	jobsLaunched.WithLabelValues(kind).Inc()
	jobsActive.Inc()
}

// JobTransition counts a job entering state. done marks the final transition.
func JobTransition(state string, done bool) {
	jobTransitions.WithLabelValues(state).Inc()
	if done {
		jobsActive.Dec()
	}
}

// Sweep counts one sweep of the job table.
func Sweep() {
	sweeps.Inc()
}

// SignalSent counts a signal delivered to a job.
func SignalSent(signal string) {
	if signal == "" {
		signal = "unknown"
	}
	signalsSent.WithLabelValues(signal).Inc()
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs_revision": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" {
					labels["vcs_revision"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}

// Handler serves the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *log.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Printf("Serving metrics on http://%s/metrics", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
