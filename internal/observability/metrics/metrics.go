package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Outcome string

const (
	Success                  Outcome       = "success"
	Error                    Outcome       = "error"
	MetricRequestTimeout     time.Duration = 5 * time.Second
	MetricRequestIdleTimeout time.Duration = 10 * time.Second
)

func (O Outcome) String() string {
	return string(O)
}

var (
	once                         sync.Once
	metricsRouter                *chi.Mux
	ledgerOperationHistogram     *prometheus.HistogramVec
	dbLatency                    *prometheus.HistogramVec
	queueSendErrorCounter        prometheus.Counter
	solvencyFaultCounter         prometheus.Counter
	totalStakedGauge             prometheus.Gauge
	custodyBalanceGauge          prometheus.Gauge
	httpRequestDurationHistogram *prometheus.HistogramVec
)

// Init initializes the metrics package.
func Init(metricsPort int) {
	once.Do(func() {
		initMetricsRouter(metricsPort)
		registerMetrics()
	})
}

// initMetricsRouter initializes the metrics router.
func initMetricsRouter(metricsPort int) {
	metricsRouter = chi.NewRouter()
	metricsRouter.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	// Create a custom server with timeout settings
	metricsAddr := fmt.Sprintf(":%d", metricsPort)
	server := &http.Server{
		Addr:         metricsAddr,
		Handler:      metricsRouter,
		ReadTimeout:  MetricRequestTimeout,
		WriteTimeout: MetricRequestTimeout,
		IdleTimeout:  MetricRequestIdleTimeout,
	}

	// Start the server in a separate goroutine
	go func() {
		log.Printf("Starting metrics server on %s", metricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msgf("Error starting metrics server on %s", metricsAddr)
		}
	}()
}

// registerMetrics initializes and register the Prometheus metrics.
func registerMetrics() {
	defaultHistogramBucketsSeconds := []float64{0.1, 0.5, 1, 2.5, 5, 10, 30}

	ledgerOperationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Histogram of ledger operation durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"operation", "status"},
	)

	dbLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_latency_seconds",
			Help:    "Histogram of db call durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"method", "status"},
	)

	// add a counter for the number of errors from the fail to push message into queue
	queueSendErrorCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_send_error_count",
			Help: "The total number of errors when sending messages to the queue",
		},
	)

	solvencyFaultCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "solvency_fault_count",
			Help: "Number of detected custody shortfalls. Stays at zero while the ledger invariants hold.",
		},
	)

	totalStakedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vault_total_staked",
			Help: "Sum of all active stake principals held in custody",
		},
	)

	custodyBalanceGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vault_custody_balance",
			Help: "Total funds held by the vault, backing principal and unpaid rewards",
		},
	)

	httpRequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of incoming http request durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"method", "path", "status"},
	)

	prometheus.MustRegister(
		ledgerOperationHistogram,
		dbLatency,
		queueSendErrorCounter,
		solvencyFaultCounter,
		totalStakedGauge,
		custodyBalanceGauge,
		httpRequestDurationHistogram,
	)
}

func ObserveLedgerOperation(operation string, duration time.Duration, err error) {
	if ledgerOperationHistogram == nil {
		return
	}
	status := Success
	if err != nil {
		status = Error
	}
	ledgerOperationHistogram.WithLabelValues(operation, status.String()).
		Observe(duration.Seconds())
}

func ObserveDbLatency(method string, duration time.Duration, err error) {
	if dbLatency == nil {
		return
	}
	status := Success
	if err != nil {
		status = Error
	}
	dbLatency.WithLabelValues(method, status.String()).Observe(duration.Seconds())
}

func RecordQueueSendError() {
	if queueSendErrorCounter == nil {
		return
	}
	queueSendErrorCounter.Inc()
}

func RecordSolvencyFault() {
	if solvencyFaultCounter == nil {
		return
	}
	solvencyFaultCounter.Inc()
}

func RecordVaultBalances(totalStaked, custodyBalance uint64) {
	if totalStakedGauge == nil || custodyBalanceGauge == nil {
		return
	}
	totalStakedGauge.Set(float64(totalStaked))
	custodyBalanceGauge.Set(float64(custodyBalance))
}

func ObserveHttpRequest(method, path string, statusCode int, duration time.Duration) {
	if httpRequestDurationHistogram == nil {
		return
	}
	httpRequestDurationHistogram.
		WithLabelValues(method, path, strconv.Itoa(statusCode)).
		Observe(duration.Seconds())
}
