package daemon

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the control loop. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cycles        prometheus.Counter
	cycleErrors   prometheus.Counter
	cycleDuration prometheus.Histogram
	fallbacks     prometheus.Counter
	dropped       prometheus.Counter
	publishErrors prometheus.Counter
	commands      prometheus.Counter
	overall       prometheus.Gauge
	dimension     *prometheus.GaugeVec
	connected     prometheus.Gauge
	distance      prometheus.Gauge
	light         prometheus.Gauge
	temperature   prometheus.Gauge
	humidity      prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ergosense_cycles_total",
			Help: "Total completed control cycles.",
		}),
		cycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ergosense_cycle_errors_total",
			Help: "Total cycles skipped because the sensor adapter failed.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ergosense_cycle_duration_seconds",
			Help:    "Histogram of control cycle durations.",
			Buckets: prometheus.DefBuckets,
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ergosense_sensor_fallbacks_total",
			Help: "Total cycles where temperature and humidity were replaced by fallback values.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ergosense_telemetry_dropped_total",
			Help: "Total telemetry messages dropped while the broker was unreachable.",
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ergosense_publish_errors_total",
			Help: "Total publish failures other than a missing connection.",
		}),
		commands: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ergosense_commands_total",
			Help: "Total inbound command messages serviced.",
		}),
		overall: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ergosense_overall_status",
			Help: "Overall status of the last cycle (0 OK, 1 WARN, 2 BAD).",
		}),
		dimension: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ergosense_dimension_status",
			Help: "Per-dimension status of the last cycle (0 OK, 1 WARN, 2 BAD, 3 ERROR).",
		}, []string{"dimension"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ergosense_broker_connected",
			Help: "1 if the telemetry transport is connected.",
		}),
		distance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ergosense_distance_cm",
			Help: "Last measured distance.",
		}),
		light: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ergosense_light_percent",
			Help: "Last light percentage.",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ergosense_temperature_celsius",
			Help: "Last temperature after fallback.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ergosense_humidity_percent",
			Help: "Last relative humidity after fallback.",
		}),
	}

	m.registry.MustRegister(
		m.cycles,
		m.cycleErrors,
		m.cycleDuration,
		m.fallbacks,
		m.dropped,
		m.publishErrors,
		m.commands,
		m.overall,
		m.dimension,
		m.connected,
		m.distance,
		m.light,
		m.temperature,
		m.humidity,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CycleCompleted(s *Snapshot, duration time.Duration) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleDuration.Observe(duration.Seconds())
	if s.Reading.Fallback {
		m.fallbacks.Inc()
	}
	m.overall.Set(float64(s.Overall))
	m.dimension.WithLabelValues("posture").Set(float64(s.Dimensions.Posture.Level))
	m.dimension.WithLabelValues("light").Set(float64(s.Dimensions.Light.Level))
	m.dimension.WithLabelValues("temperature").Set(float64(s.Dimensions.Temperature.Level))
	m.dimension.WithLabelValues("humidity").Set(float64(s.Dimensions.Humidity.Level))
	m.distance.Set(s.Reading.DistanceCm)
	m.light.Set(float64(s.LightPercentage))
	m.temperature.Set(s.Reading.TemperatureC)
	m.humidity.Set(s.Reading.HumidityPct)
}

func (m *Metrics) CycleFailed() {
	if m == nil {
		return
	}
	m.cycleErrors.Inc()
}

func (m *Metrics) TelemetryDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishErrors.Inc()
}

func (m *Metrics) CommandServiced() {
	if m == nil {
		return
	}
	m.commands.Inc()
}

func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}
