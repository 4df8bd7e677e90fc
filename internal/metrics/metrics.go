package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ndrandal/marketsim/internal/engine"
)

const namespace = "marketsim"

// Recorder exposes simulation state as Prometheus metrics.
type Recorder struct {
	reg     *prometheus.Registry
	factory promauto.Factory

	ticks      *prometheus.CounterVec
	events     *prometheus.CounterVec
	volatility prometheus.Gauge
	trend      prometheus.Gauge
	prices     *prometheus.GaugeVec
	indices    *prometheus.GaugeVec
	published  *prometheus.CounterVec
	pubDropped *prometheus.CounterVec
}

// NewRecorder registers the simulation metrics on a fresh registry that
// also carries the Go and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		reg:     reg,
		factory: f,
		ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Store refreshes by trigger (tick or flash_crash).",
		}, []string{"reason"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "regime_events_total",
			Help:      "Regime events by kind.",
		}, []string{"kind"}),
		volatility: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "regime_volatility",
			Help:      "Current regime volatility multiplier.",
		}),
		trend: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "regime_trend",
			Help:      "Current regime trend bias.",
		}),
		prices: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instrument_price",
			Help:      "Last simulated instrument price.",
		}, []string{"symbol", "sector"}),
		indices: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_value",
			Help:      "Last simulated index value.",
		}, []string{"index"}),
		published: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_messages_total",
			Help:      "Messages written to the broker by topic and result.",
		}, []string{"topic", "result"}),
		pubDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_dropped_total",
			Help:      "Messages dropped because the publish queue was full.",
		}, []string{"topic"}),
	}
}

// ObserveSnapshot records a refreshed snapshot.
func (r *Recorder) ObserveSnapshot(s engine.Snapshot) {
	r.ticks.WithLabelValues(s.Reason).Inc()
	r.volatility.Set(s.Regime.Volatility)
	r.trend.Set(s.Regime.Trend)
	for _, in := range s.Instruments {
		r.prices.WithLabelValues(in.Symbol, string(in.Sector)).Set(in.Price)
	}
	for _, ix := range s.Indices {
		r.indices.WithLabelValues(ix.Name).Set(ix.Value)
	}
}

// ObserveEvent records a regime event.
func (r *Recorder) ObserveEvent(e engine.Event) {
	r.events.WithLabelValues(string(e.Kind)).Inc()
	r.volatility.Set(e.Volatility)
	r.trend.Set(e.Trend)
}

// Published counts a broker write.
func (r *Recorder) Published(topic string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.published.WithLabelValues(topic, result).Inc()
}

// PublishDropped counts a message the publisher could not queue.
func (r *Recorder) PublishDropped(topic string) {
	r.pubDropped.WithLabelValues(topic).Inc()
}

// GaugeFunc registers a gauge read from fn at scrape time.
func (r *Recorder) GaugeFunc(name, help string, fn func() float64) {
	r.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn)
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
