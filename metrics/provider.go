// Package metrics defines the instruments parsort records and three providers
// for them: NoopProvider (the default), BasicProvider (in-memory snapshots)
// and PrometheusProvider (github.com/prometheus/client_golang collectors).
package metrics

// Provider hands out the named instruments a Pool and a Sort record into.
// The pool asks for items_submitted_total, batches_submitted_total,
// items_failed_total, items_inflight, item_duration_seconds,
// workers_started_total and workers_stopped_total; Sort adds
// sort_rounds_total, sort_runs_merged_total and sort_duration_seconds.
// Asking twice for one name must return the same instrument, and workers
// record from their own goroutines.
type Provider interface {
	Counter(name string, opts ...InstrumentOption) Counter
	UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter
	Histogram(name string, opts ...InstrumentOption) Histogram
}

// Counter counts events such as submitted items or finished merge rounds.
type Counter interface {
	Add(n int64)
}

// UpDownCounter tracks a level; the pool uses it for items being executed.
type UpDownCounter interface {
	Add(n int64)
}

// Histogram observes durations in seconds, per item and per sort.
type Histogram interface {
	Record(v float64)
}

// InstrumentConfig is the metadata an instrument was created with.
// BasicProvider exposes it through Config; PrometheusProvider turns it into
// help text and const labels.
type InstrumentConfig struct {
	Description string
	Unit        string
	// Attributes are fixed labels, e.g. a pool name when several pools share
	// one registry.
	Attributes map[string]string
}

// InstrumentOption sets one field of InstrumentConfig.
type InstrumentOption func(*InstrumentConfig)

// WithDescription sets the help text.
func WithDescription(desc string) InstrumentOption {
	return func(c *InstrumentConfig) { c.Description = desc }
}

// WithUnit sets the unit: "1" for counts, "seconds" for durations.
func WithUnit(unit string) InstrumentOption {
	return func(c *InstrumentConfig) { c.Unit = unit }
}

// WithAttributes merges attrs into the instrument labels. The map is copied.
func WithAttributes(attrs map[string]string) InstrumentOption {
	return func(c *InstrumentConfig) {
		if len(attrs) == 0 {
			return
		}
		if c.Attributes == nil {
			c.Attributes = make(map[string]string, len(attrs))
		}
		for k, v := range attrs {
			c.Attributes[k] = v
		}
	}
}

// applyOptions folds opts into a config, skipping nil entries.
func applyOptions(opts []InstrumentOption) InstrumentConfig {
	var cfg InstrumentConfig
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	return cfg
}
