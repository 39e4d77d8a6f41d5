package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zenschedule"

type Metrics struct {
	registry          *prometheus.Registry
	setpoint          prometheus.Gauge
	gridPower         prometheus.Gauge
	soc               prometheus.Gauge
	zeroIterations    prometheus.Gauge
	commands          *prometheus.CounterVec
	telemetryFailures prometheus.Counter
	ticks             prometheus.Counter
	energy            *prometheus.GaugeVec
	limit             *prometheus.GaugeVec
	modbusDuration    *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		setpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "setpoint_watts",
			Help:      "Battery setpoint applied by the automation loop. Positive = charge.",
		}),
		gridPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grid_power_watts",
			Help:      "Last grid meter reading. Positive = import.",
		}),
		soc: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "battery_soc_percent",
			Help:      "Last battery state of charge.",
		}),
		zeroIterations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_zero_iterations",
			Help:      "Consecutive ticks with a zero setpoint.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_commands_total",
			Help:      "Device commands sent by result.",
		}, []string{"result"}),
		telemetryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_failures_total",
			Help:      "Ticks skipped because telemetry could not be read.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Automation loop iterations.",
		}),
		energy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "energy_wh",
			Help:      "Energy accumulated in the current period.",
		}, []string{"channel", "period"}),
		limit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "battery_limit_active",
			Help:      "1 when the battery SoC limit blocks charge (max) or discharge (min).",
		}, []string{"limit"}),
		modbusDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "modbus_call_duration_seconds",
			Help:      "Duration of modbus calls to the grid meter.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"fn"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.setpoint,
		m.gridPower,
		m.soc,
		m.zeroIterations,
		m.commands,
		m.telemetryFailures,
		m.ticks,
		m.energy,
		m.limit,
		m.modbusDuration,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveTick() {
	m.ticks.Inc()
}

func (m *Metrics) ObserveTelemetry(tel domain.Telemetry) {
	m.gridPower.Set(float64(tel.GridWatts))
	m.soc.Set(float64(tel.SoC))
}

func (m *Metrics) ObserveTelemetryFailure() {
	m.telemetryFailures.Inc()
}

func (m *Metrics) ObserveState(state domain.AutomationState) {
	m.setpoint.Set(float64(state.CurrentSetpoint))
	m.zeroIterations.Set(float64(state.ConsecutiveZeroIterations))
	m.limit.WithLabelValues("max").Set(boolToFloat(state.LimitState.AtMaxSoc))
	m.limit.WithLabelValues("min").Set(boolToFloat(state.LimitState.AtMinSoc))
}

func (m *Metrics) ObserveCommand(err error, dryRun bool) {
	switch {
	case err != nil:
		m.commands.WithLabelValues("failed").Inc()
	case dryRun:
		m.commands.WithLabelValues("dry_run").Inc()
	default:
		m.commands.WithLabelValues("sent").Inc()
	}
}

func (m *Metrics) ObserveAccumulators(snapshot domain.AccumulatorSnapshot) {
	for channel, buckets := range snapshot {
		for period, bucket := range buckets {
			m.energy.WithLabelValues(string(channel), string(period)).Set(bucket.EnergyWh)
		}
	}
}

// ModbusInstrument returns a callback recording modbus call durations.
func (m *Metrics) ModbusInstrument() func(fnName string, readTime time.Duration) {
	return func(fnName string, readTime time.Duration) {
		m.modbusDuration.WithLabelValues(fnName).Observe(readTime.Seconds())
	}
}

// EchoMiddleware records request count and duration by route.
func (m *Metrics) EchoMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
