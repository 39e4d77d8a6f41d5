package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	assert := assert.New(t)

	m := NewMetrics()
	m.ObserveTelemetry(domain.Telemetry{GridWatts: -320, SoC: 81})
	m.ObserveState(domain.AutomationState{CurrentSetpoint: 400, LimitState: domain.LimitState{AtMaxSoc: true}})
	m.ObserveCommand(nil, false)
	m.ObserveCommand(nil, false)
	m.ObserveCommand(errors.New("timeout"), false)
	m.ObserveCommand(nil, true)
	m.ObserveTelemetryFailure()
	m.ObserveAccumulators(domain.AccumulatorSnapshot{
		domain.CHANNEL_POWER_FEED: {domain.PERIOD_HOUR: {EnergyWh: 12.5}},
	})
	m.ModbusInstrument()("ReadRegister", 20*time.Millisecond)

	assert.Equal(-320.0, testutil.ToFloat64(m.gridPower))
	assert.Equal(81.0, testutil.ToFloat64(m.soc))
	assert.Equal(400.0, testutil.ToFloat64(m.setpoint))
	assert.Equal(1.0, testutil.ToFloat64(m.limit.WithLabelValues("max")))
	assert.Equal(0.0, testutil.ToFloat64(m.limit.WithLabelValues("min")))
	assert.Equal(2.0, testutil.ToFloat64(m.commands.WithLabelValues("sent")))
	assert.Equal(1.0, testutil.ToFloat64(m.commands.WithLabelValues("failed")))
	assert.Equal(1.0, testutil.ToFloat64(m.commands.WithLabelValues("dry_run")))
	assert.Equal(1.0, testutil.ToFloat64(m.telemetryFailures))
	assert.Equal(12.5, testutil.ToFloat64(m.energy.WithLabelValues("powerFeed", "hour")))
	assert.Equal(1, testutil.CollectAndCount(m.modbusDuration))
}

func TestEchoMiddlewareAndHandler(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	m := NewMetrics()
	e := echo.New()
	e.Use(m.EchoMiddleware())
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(http.StatusOK, rec.Code)

	assert.Equal(1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/ping", "200")))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Body.String(), "zenschedule_http_requests_total")
}
