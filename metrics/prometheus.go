package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusProvider records instruments as Prometheus collectors registered
// on a Registerer. Counters become prometheus.Counter, up/down counters
// prometheus.Gauge and histograms prometheus.Histogram with DefBuckets.
//
// Instrument attributes become constant labels and the description becomes the
// help text. Asking twice for the same name returns the same instrument; a
// collector already registered by someone else under that name is reused.
// Any other registration failure panics, as prometheus.MustRegister does.
type PrometheusProvider struct {
	reg       prometheus.Registerer
	namespace string

	counters   registry[Counter]
	updowns    registry[UpDownCounter]
	histograms registry[Histogram]
}

// NewPrometheusProvider returns a provider registering on reg under namespace.
// A nil reg means prometheus.DefaultRegisterer.
func NewPrometheusProvider(reg prometheus.Registerer, namespace string) *PrometheusProvider {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusProvider{reg: reg, namespace: namespace}
}

func (p *PrometheusProvider) Counter(name string, opts ...InstrumentOption) Counter {
	return p.counters.getOrCreate(name, func() Counter {
		cfg := applyOptions(opts)
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   p.namespace,
			Name:        name,
			Help:        help(name, cfg),
			ConstLabels: cfg.Attributes,
		})
		return promCounter{register(p.reg, c)}
	})
}

func (p *PrometheusProvider) UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter {
	return p.updowns.getOrCreate(name, func() UpDownCounter {
		cfg := applyOptions(opts)
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   p.namespace,
			Name:        name,
			Help:        help(name, cfg),
			ConstLabels: cfg.Attributes,
		})
		return promGauge{register(p.reg, g)}
	})
}

func (p *PrometheusProvider) Histogram(name string, opts ...InstrumentOption) Histogram {
	return p.histograms.getOrCreate(name, func() Histogram {
		cfg := applyOptions(opts)
		h := prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   p.namespace,
			Name:        name,
			Help:        help(name, cfg),
			ConstLabels: cfg.Attributes,
			Buckets:     prometheus.DefBuckets,
		})
		return promHistogram{register(p.reg, h)}
	})
}

func help(name string, cfg InstrumentConfig) string {
	if cfg.Description != "" {
		return cfg.Description
	}
	return name
}

// register registers c, or returns the collector already registered with the
// same descriptor.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	panic(err)
}

type promCounter struct{ c prometheus.Counter }

// Add ignores negative values; Prometheus counters only go up.
func (c promCounter) Add(n int64) {
	if n > 0 {
		c.c.Add(float64(n))
	}
}

type promGauge struct{ g prometheus.Gauge }

func (g promGauge) Add(n int64) { g.g.Add(float64(n)) }

type promHistogram struct{ h prometheus.Histogram }

func (h promHistogram) Record(v float64) { h.h.Observe(v) }
