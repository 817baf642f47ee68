package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	// FetchTotal counts fetcher results by outcome
	// (ok | transient_error | permanent_error | circuit_open).
	FetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cararth",
		Subsystem: "ingest",
		Name:      "fetch_total",
		Help:      "Total resilient-fetcher calls, labeled by outcome.",
	}, []string{"outcome"})

	// ListingsTotal counts processed listings by source and terminal
	// bucket (certified | rejected | error).
	ListingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cararth",
		Subsystem: "ingest",
		Name:      "listings_total",
		Help:      "Total listings processed, labeled by source and terminal outcome.",
	}, []string{"source", "outcome"})

	// ImagesTotal counts gate verdicts (passed | failed).
	ImagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cararth",
		Subsystem: "ingest",
		Name:      "images_total",
		Help:      "Total image candidates screened by the authenticity gate, labeled by verdict.",
	}, []string{"verdict"})

	// LastRunSeconds is the unix timestamp of the last completed run.
	LastRunSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cararth",
		Subsystem: "ingest",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp (seconds) of the last completed ingestion run.",
	})
)

// Register registers pipeline metrics with the default Prometheus
// registry. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			FetchTotal,
			ListingsTotal,
			ImagesTotal,
			LastRunSeconds,
		)
	})
}

// Serve exposes /metrics on addr in a background goroutine. A blank
// addr disables the listener.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, mux)
	}()
}

// MarkRunFinished records the completion time of a run.
func MarkRunFinished(t time.Time) {
	LastRunSeconds.Set(float64(t.Unix()))
}
