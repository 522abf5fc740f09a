package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "pagespub"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	generationDuration prom.Histogram
	generationOutcome  *prom.CounterVec
	pagesRendered      prom.Gauge
	publishDuration    prom.Histogram
	publishOutcome     *prom.CounterVec
	publishedFiles     *prom.CounterVec
	publishRetries     prom.Counter
}

// NewPrometheusRecorder constructs the metrics and registers them on reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		generationDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Duration of site generation passes",
			Buckets:   prom.DefBuckets,
		}),
		generationOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "generation_outcomes_total",
			Help:      "Generation passes by outcome",
		}, []string{"outcome"}),
		pagesRendered: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "pages_rendered",
			Help:      "Output files produced by the last successful generation",
		}),
		publishDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Duration of publish operations including the grace delay",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		publishOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "publish_outcomes_total",
			Help:      "Publish operations by outcome",
		}, []string{"outcome"}),
		publishedFiles: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "published_files_total",
			Help:      "Files added or removed by publishes",
		}, []string{"change"}),
		publishRetries: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "publish_retries_total",
			Help:      "Publish attempts retried after transient failures",
		}),
	}
	reg.MustRegister(pr.generationDuration, pr.generationOutcome, pr.pagesRendered,
		pr.publishDuration, pr.publishOutcome, pr.publishedFiles, pr.publishRetries)
	return pr
}

func (p *PrometheusRecorder) ObserveGeneration(d time.Duration, outcome OutcomeLabel) {
	if p == nil {
		return
	}
	p.generationDuration.Observe(d.Seconds())
	p.generationOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetPagesRendered(n int) {
	if p == nil {
		return
	}
	p.pagesRendered.Set(float64(n))
}

func (p *PrometheusRecorder) ObservePublish(d time.Duration, outcome OutcomeLabel) {
	if p == nil {
		return
	}
	p.publishDuration.Observe(d.Seconds())
	p.publishOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddPublishedFiles(added, removed int) {
	if p == nil {
		return
	}
	p.publishedFiles.WithLabelValues("added").Add(float64(added))
	p.publishedFiles.WithLabelValues("removed").Add(float64(removed))
}

func (p *PrometheusRecorder) IncPublishRetry() {
	if p == nil {
		return
	}
	p.publishRetries.Inc()
}
