package actor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/metrics"
	"github.com/berfenger/zenschedule/internal/util"
	"github.com/berfenger/zenschedule/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGateway struct {
	mu           sync.Mutex
	slots        []domain.ResolvedSlot
	telemetry    domain.Telemetry
	telemetryErr error
	failWrite    int
	commands     []domain.DeviceCommand
	events       []domain.StatusEvent
	refreshes    int
}

func (g *fakeGateway) Receive(ctx actor.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch msg := ctx.Message().(type) {
	case domain.GetScheduleValueRequest:
		g.refreshes++
		ctx.Respond(domain.GetScheduleValueResponse{Slots: g.slots})
	case domain.GetTelemetryRequest:
		ctx.Respond(domain.GetTelemetryResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: g.telemetryErr},
			Telemetry:          g.telemetry,
		})
	case domain.SendDeviceCommandRequest:
		g.commands = append(g.commands, msg.Command)
		resp := domain.SendDeviceCommandResponse{Command: msg.Command}
		if len(g.commands) == g.failWrite {
			resp.ResponseError = errors.New("device write failed")
		}
		ctx.Respond(resp)
	case domain.PostStatusEventRequest:
		g.events = append(g.events, msg.Event)
		if ctx.Sender() != nil {
			ctx.Respond(domain.PostStatusEventResponse{})
		}
	}
}

// setValue schedules v for the whole day.
func (g *fakeGateway) setValue(v domain.ScheduleValue) {
	g.setSlots(slotAt("0000", v, "************"))
}

func (g *fakeGateway) setSlots(slots ...domain.ResolvedSlot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.slots = slots
}

func (g *fakeGateway) refreshCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refreshes
}

func slotAt(hhmm string, v domain.ScheduleValue, key string) domain.ResolvedSlot {
	return domain.ResolvedSlot{Time: hhmm, Value: &v, Key: &key}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (g *fakeGateway) setTelemetryErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.telemetryErr = err
}

func (g *fakeGateway) sent() []domain.DeviceCommand {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.DeviceCommand(nil), g.commands...)
}

func (g *fakeGateway) eventTypes() []domain.StatusEventType {
	g.mu.Lock()
	defer g.mu.Unlock()
	types := make([]domain.StatusEventType, 0, len(g.events))
	for _, ev := range g.events {
		types = append(types, ev.Type)
	}
	return types
}

type automationFixture struct {
	as  *actor.ActorSystem
	pid *actor.PID
}

func startAutomation(t *testing.T, gw *fakeGateway, zeroThreshold int) automationFixture {
	return startAutomationWithClock(t, gw, zeroThreshold, time.Now)
}

func startAutomationWithClock(t *testing.T, gw *fakeGateway, zeroThreshold int, now func() time.Time) automationFixture {
	cfg := util.LoadTestConfig()
	cfg.Control.IntervalMillis = 50
	cfg.Control.StandbyDelayMillis = 50
	cfg.Control.ZeroThreshold = zeroThreshold
	cfg.Schedule.RefreshIntervalSecs = 300
	cfg.Status.HeartbeatCron = ""

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	gwPID := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return gw }))
	es := &eventstream.EventStream{}
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		act := NewAutomationActor(&cfg, gwPID, es, metrics.NewMetrics(), logger)
		act.now = now
		return act
	}))
	t.Cleanup(func() {
		as.Root.Stop(pid)
		as.Root.Stop(gwPID)
		as.Shutdown()
	})
	return automationFixture{as: as, pid: pid}
}

func (f automationFixture) status(t *testing.T) domain.AutomationStatus {
	result, err := f.as.Root.RequestFuture(f.pid, domain.GetAutomationStatusRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	resp, ok := result.(domain.GetAutomationStatusResponse)
	require.True(t, ok)
	return resp.Status
}

func TestAutomationFollowsFixedSchedule(t *testing.T) {
	gw := &fakeGateway{telemetry: domain.Telemetry{GridWatts: 100, SoC: 50}}
	gw.setValue(domain.FixedValue(300))
	f := startAutomation(t, gw, 10)

	require.Eventually(t, func() bool { return len(gw.sent()) >= 1 }, 5*time.Second, 20*time.Millisecond)

	cmd := gw.sent()[0]
	require.NotNil(t, cmd.ACMode)
	assert.Equal(t, domain.AC_MODE_INPUT, *cmd.ACMode)
	assert.Equal(t, 300, cmd.InputLimit)
	assert.Equal(t, 0, cmd.OutputLimit)

	// identical commands are not resent
	time.Sleep(300 * time.Millisecond)
	assert.Len(t, gw.sent(), 1)

	status := f.status(t)
	assert.Equal(t, domain.LOOP_RUNNING, status.Loop)
	assert.Equal(t, domain.ACTIVITY_ACTIVE, status.Activity)
	assert.Equal(t, 300, status.CurrentSetpoint)
	require.NotNil(t, status.ScheduleValue)
	assert.Equal(t, domain.FixedValue(300), *status.ScheduleValue)

	types := gw.eventTypes()
	require.NotEmpty(t, types)
	assert.Equal(t, domain.STATUS_EVENT_START, types[0])
	assert.Contains(t, types, domain.STATUS_EVENT_CHANGE)
}

func TestAutomationManualOverride(t *testing.T) {
	gw := &fakeGateway{telemetry: domain.Telemetry{GridWatts: 0, SoC: 50}}
	gw.setValue(domain.FixedValue(300))
	f := startAutomation(t, gw, 10)

	require.Eventually(t, func() bool { return len(gw.sent()) >= 1 }, 5*time.Second, 20*time.Millisecond)

	result, err := f.as.Root.RequestFuture(f.pid, domain.OperatorCommandRequest{
		Command: domain.OperatorCommand{Kind: domain.CommandSetPower, Watts: -200},
	}, 5*time.Second).Result()
	require.NoError(t, err)
	resp, ok := result.(domain.OperatorCommandResponse)
	require.True(t, ok)
	assert.False(t, resp.HasResponseError())

	require.Eventually(t, func() bool { return len(gw.sent()) >= 2 }, 5*time.Second, 20*time.Millisecond)
	cmd := gw.sent()[1]
	require.NotNil(t, cmd.ACMode)
	assert.Equal(t, domain.AC_MODE_OUTPUT, *cmd.ACMode)
	assert.Equal(t, 200, cmd.OutputLimit)

	status := f.status(t)
	require.NotNil(t, status.Override)
	assert.Equal(t, domain.FixedValue(-200), *status.Override)
}

func TestAutomationUnknownOperatorCommand(t *testing.T) {
	gw := &fakeGateway{telemetry: domain.Telemetry{SoC: 50}}
	gw.setValue(domain.FixedValue(0))
	f := startAutomation(t, gw, 10)

	result, err := f.as.Root.RequestFuture(f.pid, domain.OperatorCommandRequest{
		Command: domain.OperatorCommand{Kind: domain.OperatorCommandKind(99)},
	}, 5*time.Second).Result()
	require.NoError(t, err)
	resp := result.(domain.OperatorCommandResponse)
	assert.ErrorIs(t, resp.GetResponseError(), domain.ErrUnknownCommand)
}

func TestAutomationHoldsSetpointWithoutTelemetry(t *testing.T) {
	gw := &fakeGateway{}
	gw.setValue(domain.FixedValue(500))
	gw.setTelemetryErr(errors.New("meter down"))
	f := startAutomation(t, gw, 10)

	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, gw.sent())

	status := f.status(t)
	assert.Equal(t, 0, status.CurrentSetpoint)
	assert.Equal(t, domain.ACTIVITY_IDLE, status.Activity)
}

func TestAutomationEntersStandby(t *testing.T) {
	gw := &fakeGateway{telemetry: domain.Telemetry{GridWatts: 0, SoC: 50}}
	gw.setValue(domain.FixedValue(0))
	f := startAutomation(t, gw, 2)

	// scheduled zero, then wake (1 W) and latch (acMode 0)
	require.Eventually(t, func() bool { return len(gw.sent()) >= 3 }, 5*time.Second, 20*time.Millisecond)
	sent := gw.sent()

	require.NotNil(t, sent[0].ACMode)
	assert.Equal(t, domain.AC_MODE_STANDBY, *sent[0].ACMode)

	require.NotNil(t, sent[1].ACMode)
	assert.Equal(t, domain.AC_MODE_INPUT, *sent[1].ACMode)
	assert.Equal(t, 1, sent[1].InputLimit)

	require.NotNil(t, sent[2].ACMode)
	assert.Equal(t, domain.AC_MODE_STANDBY, *sent[2].ACMode)
	assert.Equal(t, 0, sent[2].InputLimit)
	assert.Equal(t, 0, sent[2].OutputLimit)

	require.Eventually(t, func() bool {
		status := f.status(t)
		return status.LastZeroReason == "standby" && !status.StandbyPending
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, domain.ACTIVITY_IDLE, f.status(t).Activity)
}

func TestAutomationRearmsStandbyAfterFailedLatch(t *testing.T) {
	gw := &fakeGateway{telemetry: domain.Telemetry{GridWatts: 0, SoC: 50}, failWrite: 3}
	gw.setValue(domain.NetZeroValue())
	f := startAutomation(t, gw, 2)

	// deadband zero, wake, failed latch, deadband zero again, wake, latch
	require.Eventually(t, func() bool { return len(gw.sent()) >= 6 }, 5*time.Second, 20*time.Millisecond)
	sent := gw.sent()

	assert.Nil(t, sent[0].ACMode)
	assert.Equal(t, 1, sent[1].InputLimit)
	require.NotNil(t, sent[2].ACMode)
	assert.Equal(t, domain.AC_MODE_STANDBY, *sent[2].ACMode)

	// the 1 W wake is left on the device, so it is zeroed before retrying
	assert.Nil(t, sent[3].ACMode)
	assert.Equal(t, 0, sent[3].InputLimit)
	assert.Equal(t, 0, sent[3].OutputLimit)

	assert.Equal(t, 1, sent[4].InputLimit)
	require.NotNil(t, sent[5].ACMode)
	assert.Equal(t, domain.AC_MODE_STANDBY, *sent[5].ACMode)

	require.Eventually(t, func() bool {
		status := f.status(t)
		return status.LastZeroReason == "standby" && status.Activity == domain.ACTIVITY_IDLE
	}, 5*time.Second, 20*time.Millisecond)
}

func TestAutomationAppliesSlotBoundaryBetweenRefreshes(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)
	clock := &fakeClock{now: time.Date(2026, 1, 1, 7, 59, 0, 0, loc)}

	gw := &fakeGateway{telemetry: domain.Telemetry{GridWatts: 0, SoC: 50}}
	gw.setSlots(
		slotAt("0000", domain.FixedValue(100), "20260101****"),
		slotAt("0800", domain.FixedValue(500), "202601010800"),
	)
	f := startAutomationWithClock(t, gw, 10, clock.Now)

	require.Eventually(t, func() bool {
		status := f.status(t)
		return status.CurrentSetpoint == 100 && status.ScheduleKey == "20260101****"
	}, 5*time.Second, 20*time.Millisecond)

	// within the refresh interval, no new fetch
	clock.Set(time.Date(2026, 1, 1, 8, 2, 0, 0, loc))
	require.Eventually(t, func() bool {
		status := f.status(t)
		return status.CurrentSetpoint == 500 && status.ScheduleKey == "202601010800"
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, gw.refreshCount())

	// a new local day refetches
	clock.Set(time.Date(2026, 1, 2, 0, 1, 0, 0, loc))
	require.Eventually(t, func() bool { return gw.refreshCount() == 2 }, 5*time.Second, 20*time.Millisecond)
}

func TestAutomationShutdown(t *testing.T) {
	gw := &fakeGateway{telemetry: domain.Telemetry{GridWatts: 0, SoC: 50}}
	gw.setValue(domain.FixedValue(400))
	f := startAutomation(t, gw, 10)

	require.Eventually(t, func() bool { return len(gw.sent()) >= 1 }, 5*time.Second, 20*time.Millisecond)

	result, err := f.as.Root.RequestFuture(f.pid, domain.AutomationStopRequest{}, 10*time.Second).Result()
	require.NoError(t, err)
	_, ok := result.(domain.AutomationStopResponse)
	require.True(t, ok)

	sent := gw.sent()
	last := sent[len(sent)-1]
	require.NotNil(t, last.ACMode)
	assert.Equal(t, domain.AC_MODE_STANDBY, *last.ACMode)
	assert.Equal(t, 0, last.InputLimit)

	types := gw.eventTypes()
	assert.Equal(t, domain.STATUS_EVENT_STOP, types[len(types)-1])

	status := f.status(t)
	assert.Equal(t, domain.LOOP_STOPPED, status.Loop)
	assert.Equal(t, 0, status.CurrentSetpoint)

	// commands after stop are rejected, stop is idempotent
	result, err = f.as.Root.RequestFuture(f.pid, domain.OperatorCommandRequest{
		Command: domain.OperatorCommand{Kind: domain.CommandNetZero},
	}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.ErrorIs(t, result.(domain.OperatorCommandResponse).GetResponseError(), ErrAutomationStopped)

	result, err = f.as.Root.RequestFuture(f.pid, domain.AutomationStopRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	_, ok = result.(domain.AutomationStopResponse)
	assert.True(t, ok)
}

func TestFormatAccumulators(t *testing.T) {
	last := 12.5
	snapshot := domain.AccumulatorSnapshot{
		domain.CHANNEL_POWER_FEED: {
			domain.PERIOD_HOUR: {EnergyWh: 100, LastCompletedWh: &last},
		},
		domain.CHANNEL_METER: {
			domain.PERIOD_DAY: {EnergyWh: 2.4},
		},
	}
	text := formatAccumulators(snapshot)
	assert.Equal(t, "powerFeed: hour=100.0Wh (last 12.5Wh)\nmeter: day=2.4Wh", text)
}
