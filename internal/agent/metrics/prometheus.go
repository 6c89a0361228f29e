package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	costsTotal      *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	busyTotal       prometheus.Counter
	progressTotal   prometheus.Counter
	pipelinesTotal  *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder whose collectors are registered on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_completion_requests_total",
				Help: "Total number of completion requests by model, status and error kind",
			},
			[]string{"model", "status", "error_kind"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_completion_tokens_total",
				Help: "Total number of tokens used by completion requests",
			},
			[]string{"model", "type"},
		),
		costsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_completion_costs_total",
				Help: "Estimated cost in USD of completion requests",
			},
			[]string{"model"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_completion_duration_seconds",
				Help:    "Duration of completion requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_requests_in_flight",
			Help: "Number of users with a request being processed",
		}),
		busyTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_busy_rejections_total",
			Help: "Messages rejected because a request of the same user was running",
		}),
		progressTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_progress_messages_total",
			Help: "Status messages sent while requests were running",
		}),
		pipelinesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_pipelines_total",
				Help: "Finished pipeline runs by kind and final state",
			},
			[]string{"kind", "state"},
		),
	}
}

// ObserveCompletion records metrics for a finished completion request.
func (p *PrometheusRecorder) ObserveCompletion(model, errorKind string, promptTokens, completionTokens int, cost float64, duration time.Duration) {
	status := "success"
	if errorKind != "" {
		status = "error"
	}
	p.requestsTotal.WithLabelValues(model, status, errorKind).Inc()

	if errorKind == "" {
		p.tokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
		p.tokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
		p.costsTotal.WithLabelValues(model).Add(cost)
	}

	p.requestDuration.WithLabelValues(model).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) SetInFlight(n int) {
	p.inFlight.Set(float64(n))
}

func (p *PrometheusRecorder) IncBusy() {
	p.busyTotal.Inc()
}

func (p *PrometheusRecorder) IncProgress() {
	p.progressTotal.Inc()
}

func (p *PrometheusRecorder) ObservePipeline(kind, state string) {
	p.pipelinesTotal.WithLabelValues(kind, state).Inc()
}
