package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"gpsdxo-mon/internal/telemetry"
)

// Collector exposes decoder and telemetry counters to Prometheus.
type Collector struct {
	lines      prometheus.Counter
	framing    prometheus.Counter
	ignored    prometheus.Counter
	linkErrors prometheus.Counter
	messages   *prometheus.CounterVec
	values     *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		lines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gpsdxo_lines_total",
			Help: "Lines framed from the device stream.",
		}),
		framing: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gpsdxo_framing_errors_total",
			Help: "Framed segments dropped because they were not valid UTF-8.",
		}),
		ignored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gpsdxo_lines_ignored_total",
			Help: "Lines that did not classify as telemetry.",
		}),
		linkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gpsdxo_link_errors_total",
			Help: "Transport failures reported by the acquisition service.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gpsdxo_messages_total",
			Help: "Messages pushed to the telemetry queue, by kind.",
		}, []string{"kind"}),
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpsdxo_value",
			Help: "Latest value applied to the series store, by kind.",
		}, []string{"kind"}),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, col := range []prometheus.Collector{c.lines, c.framing, c.ignored, c.linkErrors, c.messages, c.values} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	// Export every kind at zero so rates work before the first message.
	for _, k := range telemetry.Kinds() {
		c.messages.WithLabelValues(k.String())
	}
	return c, nil
}

// WatchQueue registers the queue backlog gauge and the pushed counter, both
// read from q on scrape.
func WatchQueue(reg prometheus.Registerer, q *telemetry.Queue) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	backlog := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gpsdxo_queue_length",
		Help: "Messages waiting to be drained by the presentation loop.",
	}, func() float64 {
		return float64(q.Len())
	})
	pushed := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "gpsdxo_queue_pushed_total",
		Help: "Messages ever pushed to the telemetry queue, link errors included.",
	}, func() float64 {
		return float64(q.Pushed())
	})
	for _, col := range []prometheus.Collector{backlog, pushed} {
		if err := reg.Register(col); err != nil {
			return fmt.Errorf("register queue metrics: %w", err)
		}
	}
	return nil
}

func (c *Collector) ObserveLine() { c.lines.Inc() }

func (c *Collector) ObserveFramingError() { c.framing.Inc() }

func (c *Collector) ObserveIgnored() { c.ignored.Inc() }

func (c *Collector) ObserveMessage(kind telemetry.Kind) {
	if kind == telemetry.KindLinkError {
		c.linkErrors.Inc()
	}
	c.messages.WithLabelValues(kind.String()).Inc()
}

// ObserveApplied records the value of a message the store accepted.
func (c *Collector) ObserveApplied(m telemetry.Message) {
	if c == nil || m == nil {
		return
	}
	if v, ok := telemetry.Value(m); ok {
		c.values.WithLabelValues(m.Kind().String()).Set(v)
	}
}
