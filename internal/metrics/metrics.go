// Package metrics содержит Prometheus-метрики процесса удаления данных,
// проверок доступа и HTTP-запросов.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/memorysphere/internal/models"
)

const namespace = "memorysphere"

// Metrics набор коллекторов приложения.
type Metrics struct {
	scheduled        prometheus.Counter
	warningsSent     *prometheus.CounterVec
	deletions        prometheus.Counter
	failures         *prometheus.CounterVec
	runDuration      prometheus.Histogram
	runsSkipped      prometheus.Counter
	entitlementCheck *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New регистрирует коллекторы в reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		scheduled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "scheduled_total",
			Help:      "Accounts placed on the deletion schedule",
		}),
		warningsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "warnings_sent_total",
			Help:      "Deletion warnings delivered, by stage",
		}, []string{"stage"}),
		deletions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "deletions_total",
			Help:      "Accounts permanently purged",
		}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "failures_total",
			Help:      "Per-account failures, by step",
		}, []string{"step"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "run_duration_seconds",
			Help:      "Duration of a full retention run",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 300, 900},
		}),
		runsSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "runs_skipped_total",
			Help:      "Runs rejected because another run held the lock",
		}),
		entitlementCheck: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entitlement",
			Name:      "checks_total",
			Help:      "Entitlement checks, by result",
		}, []string{"result"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "path"}),
	}
}

// ObserveRun записывает итог запуска процесса удаления.
func (m *Metrics) ObserveRun(summary *models.RunSummary) {
	m.scheduled.Add(float64(summary.Scheduled))
	m.warningsSent.WithLabelValues(string(models.WarningFirst)).Add(float64(summary.WarningsSent.First))
	m.warningsSent.WithLabelValues(string(models.WarningSecond)).Add(float64(summary.WarningsSent.Second))
	m.warningsSent.WithLabelValues(string(models.WarningFinal)).Add(float64(summary.WarningsSent.Final))
	m.deletions.Add(float64(summary.Deleted))
	for _, f := range summary.Failures {
		m.failures.WithLabelValues(f.Step).Inc()
	}
	m.runDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
}

// RunSkipped отмечает запуск, отклонённый из-за уже идущего запуска.
func (m *Metrics) RunSkipped() {
	m.runsSkipped.Inc()
}

// EntitlementChecked отмечает проверку доступа с результатом result.
func (m *Metrics) EntitlementChecked(result string) {
	m.entitlementCheck.WithLabelValues(result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush пробрасывает сброс буфера для потоковых ответов.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap открывает исходный ResponseWriter для http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware записывает метрики HTTP-запросов по шаблону маршрута chi.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		pattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		m.httpRequests.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

// Handler возвращает обработчик /metrics для реестра g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
