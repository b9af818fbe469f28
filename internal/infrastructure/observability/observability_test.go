package observability

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/stretchr/testify/assert"
)

type countingCounter struct{ n float64 }

func (c *countingCounter) Add(d float64, _ ...observability.Label) { c.n += d }
func (c *countingCounter) Bind(...observability.Label) observability.BoundCounter {
	return observability.NopCounter().Bind()
}

func TestProviderFallsBackToNop(t *testing.T) {
	p := New(nil, nil, nil, nil)

	_, span := p.Tracer().Start(context.Background(), "noop")
	span.End()
	p.Logger().Info("discarded")
	p.Metrics().Counter(observability.MUsecaseRequests).Add(1)
	p.Metrics().Histogram("unknown").Observe(1)
}

func TestProviderReturnsRegisteredCounter(t *testing.T) {
	c := &countingCounter{}
	p := New(nil, nil, map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: c,
	}, nil)

	p.Metrics().Counter(observability.MUsecaseRequests).Add(2)
	p.Metrics().Counter(observability.MHTTPRequests).Add(5)

	assert.Equal(t, 2.0, c.n)
}

type recordingLogger struct {
	warnings *[]string
}

func (l recordingLogger) With(...observability.Field) observability.Logger { return l }
func (recordingLogger) Debug(string, ...observability.Field)               {}
func (recordingLogger) Info(string, ...observability.Field)                {}
func (recordingLogger) Error(string, ...observability.Field)               {}
func (l recordingLogger) Warn(msg string, _ ...observability.Field) {
	*l.warnings = append(*l.warnings, msg)
}

func TestUnregisteredMetricIsReportedOnce(t *testing.T) {
	var warnings []string
	p := New(nil, recordingLogger{warnings: &warnings}, map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: &countingCounter{},
	}, nil)

	p.Metrics().Counter(observability.MTaxFallbackLookups).Add(1)
	p.Metrics().Counter(observability.MTaxFallbackLookups).Add(1)
	p.Metrics().Histogram(observability.MUsecaseDuration).Observe(0.2)

	assert.Equal(t, []string{"metric_not_registered", "metric_not_registered"}, warnings)
}
