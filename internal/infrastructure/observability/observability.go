// Package observability binds the tracer, logger and metric instruments chosen at
// startup into the observability.Observability port.
package observability

import (
	"sync"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

type provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

// instruments resolves metric keys against what was registered at startup. Unknown
// keys fall back to no-ops and are reported once each.
type instruments struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram

	log    observability.Logger
	missed sync.Map // MetricKey -> struct{}
}

func (m *instruments) Counter(name observability.MetricKey) observability.Counter {
	if c, ok := m.counters[name]; ok {
		return c
	}
	m.miss(name, "counter")
	return observability.NopCounter()
}

func (m *instruments) Histogram(name observability.MetricKey) observability.Histogram {
	if h, ok := m.histograms[name]; ok {
		return h
	}
	m.miss(name, "histogram")
	return observability.NopHistogram()
}

func (m *instruments) miss(name observability.MetricKey, kind string) {
	if _, seen := m.missed.LoadOrStore(name, struct{}{}); seen {
		return
	}
	m.log.Warn("metric_not_registered",
		observability.F("metric", string(name)),
		observability.F("kind", kind),
	)
}

// New assembles the provider. Nil parts become no-ops; with no instruments at all the
// metrics side is silent.
func New(
	tracer observability.Tracer,
	logger observability.Logger,
	counters map[observability.MetricKey]observability.Counter,
	histograms map[observability.MetricKey]observability.Histogram,
) observability.Observability {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	p := &provider{tracer: tracer, logger: logger, metrics: observability.NopMetrics()}
	if len(counters) == 0 && len(histograms) == 0 {
		return p
	}

	m := &instruments{
		counters:   make(map[observability.MetricKey]observability.Counter, len(counters)),
		histograms: make(map[observability.MetricKey]observability.Histogram, len(histograms)),
		log:        logger.With(observability.F("component", "metrics")),
	}
	for k, c := range counters {
		if c != nil {
			m.counters[k] = c
		}
	}
	for k, h := range histograms {
		if h != nil {
			m.histograms[k] = h
		}
	}
	p.metrics = m
	return p
}

func (p *provider) Tracer() observability.Tracer   { return p.tracer }
func (p *provider) Logger() observability.Logger   { return p.logger }
func (p *provider) Metrics() observability.Metrics { return p.metrics }
