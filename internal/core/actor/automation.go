package actor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/berfenger/zenschedule/internal/config"
	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/core/events"
	"github.com/berfenger/zenschedule/internal/core/port"
	"github.com/berfenger/zenschedule/internal/core/service"
	"github.com/berfenger/zenschedule/internal/metrics"
	. "github.com/berfenger/zenschedule/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	AUTOMATION_REQUEST_TIMEOUT = 7 * time.Second
)

var ErrAutomationStopped = errors.New("automation is stopped")

type AutomationActor struct {
	ActorWithStates
	config      *config.Config
	gateway     *actor.PID
	eventStream *eventstream.EventStream
	metrics     *metrics.Metrics
	controller  port.AutomationController
	accumulator port.PowerAccumulator
	resolver    port.ScheduleResolver
	location    *time.Location
	now         func() time.Time

	state           *domain.AutomationState
	loop            domain.LoopState
	override        *domain.ScheduleValue
	pendingOverride *pendingOverride
	scheduleSlots   []domain.ResolvedSlot
	scheduleDate    string
	scheduleAt      time.Time
	scheduleValue   *domain.ScheduleValue
	scheduleKey     string
	telemetry       *domain.Telemetry
	tick            *tickContext
	standbyWake     domain.DeviceCommand
	standbyLatch    domain.DeviceCommand
	stopReplyTo     []*actor.PID

	scheduler  *scheduler.TimerScheduler
	cancelTick scheduler.CancelFunc
	heartbeat  *CronTimer
	stash      *Stash
	logger     *zap.Logger
}

type automationTick struct {
}

type heartbeatTick struct {
}

type standbyLatchTick struct {
}

// a nil value clears the override
type pendingOverride struct {
	value *domain.ScheduleValue
}

type tickContext struct {
	at       time.Time
	decision domain.TickDecision
}

func NewAutomationActor(cfg *config.Config, gateway *actor.PID, eventStream *eventstream.EventStream, m *metrics.Metrics, logger *zap.Logger) *AutomationActor {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.Local
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	actorLogger := ActorLogger(domain.ACTOR_ID_AUTOMATION, logger)
	act := &AutomationActor{
		config:      cfg,
		gateway:     gateway,
		eventStream: eventStream,
		metrics:     m,
		controller:  NewAutomationController(cfg.Control, actorLogger),
		accumulator: service.NewPowerAccumulator(loc),
		resolver:    &service.DefaultScheduleResolver{},
		location:    loc,
		now:         time.Now,
		state:       domain.NewAutomationState(),
		loop:        domain.LOOP_RUNNING,
		stash:       &Stash{},
		logger:      actorLogger,
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(AutomationStartingState{
		actor: act,
	})
	return act
}

// NewAutomationController wires the control pipeline from the control config.
func NewAutomationController(cfg config.ControlConfig, logger *zap.Logger) *service.DefaultAutomationController {
	return &service.DefaultAutomationController{
		Calculator: &service.DefaultNetZeroCalculator{
			AdjustmentThreshold: cfg.AdjustmentThreshold,
			MaxStep:             cfg.MaxStep,
			FeedMin:             cfg.FeedMin,
			FeedMax:             cfg.FeedMax,
			MinThreshold:        cfg.MinThreshold,
		},
		Guard: &service.DefaultBatteryLimitGuard{
			MinChargeLevel:    cfg.MinChargeLevel,
			MaxChargeLevel:    cfg.MaxChargeLevel,
			MaxChargePower:    cfg.MaxChargePower,
			MaxDischargePower: cfg.MaxDischargePower,
		},
		Builder:       &service.DefaultDeviceCommandBuilder{},
		ZeroThreshold: cfg.ZeroThreshold,
		Logger:        logger,
	}
}

func (state *AutomationActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Starting state

type AutomationStartingState struct {
	ActorState
	actor *AutomationActor
}

func (state AutomationStartingState) Name() string {
	return "starting"
}

func (state AutomationStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("automation@starting started", zap.Bool("dryRun", state.actor.config.DryRun))

		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		if expr := state.actor.config.Status.HeartbeatCron; expr != "" {
			heartbeat, err := NewCronTimer(ctx, expr, state.actor.location)
			if err != nil {
				state.actor.logger.Warn("automation@starting invalid heartbeat cron, heartbeats disabled", zap.String("cron", expr), zap.Error(err))
			} else {
				state.actor.heartbeat = heartbeat
				state.actor.armHeartbeat(ctx)
			}
		}

		state.actor.postStatus(ctx, domain.STATUS_EVENT_START, nil, nil)
		state.actor.publish(events.ScheduleTargetToUpdateEvents(nil, nil))

		state.actor.Become(AutomationRunningState{
			actor: state.actor,
		})
		ctx.Send(ctx.Self(), automationTick{})
		state.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("automation@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Running state

type AutomationRunningState struct {
	ActorState
	actor *AutomationActor
}

func (state AutomationRunningState) Name() string {
	return "running"
}

func (state AutomationRunningState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("automation@running: ActorHealthRequest")
		state.actor.respondHealth(ctx, string(state.actor.state.Activity))
	case automationTick:
		state.actor.cancelTick = nil
		state.actor.startTick(ctx)
	case heartbeatTick:
		state.actor.onHeartbeat(ctx)
	case domain.OperatorCommandRequest:
		state.actor.onOperatorCommand(ctx, msg)
	case domain.GetAutomationStatusRequest:
		ForRequest(msg).Respond(ctx, domain.GetAutomationStatusResponse{Status: state.actor.status()})
	case domain.GetAccumulatorsRequest:
		ForRequest(msg).Respond(ctx, domain.GetAccumulatorsResponse{Snapshot: state.actor.accumulator.Snapshot()})
	case domain.AutomationStopRequest:
		state.actor.logger.Info("automation@running: stop requested")
		state.actor.beginShutdown(ctx, ForRequest(msg).ReplyTo(ctx))
	default:
		state.actor.logger.Debug("automation@running: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// Standby transition state: wake command sent, waiting to latch acMode 0

type AutomationStandbyState struct {
	ActorState
	actor *AutomationActor
}

func (state AutomationStandbyState) Name() string {
	return "standbyTransition"
}

func (state AutomationStandbyState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.respondHealth(ctx, state.actor.StatePath())
	case standbyLatchTick:
		state.actor.logger.Debug("automation@standbyTransition: latch", zap.Stringer("command", state.actor.standbyLatch))
		state.actor.await(ctx, "awaitStandbyLatch",
			domain.SendDeviceCommandRequest{Command: state.actor.standbyLatch}, commandErrorResponse, state.actor.onStandbyLatchSent)
	case heartbeatTick:
		state.actor.onHeartbeat(ctx)
	case domain.OperatorCommandRequest:
		state.actor.onOperatorCommand(ctx, msg)
	case domain.GetAutomationStatusRequest:
		ForRequest(msg).Respond(ctx, domain.GetAutomationStatusResponse{Status: state.actor.status()})
	case domain.GetAccumulatorsRequest:
		ForRequest(msg).Respond(ctx, domain.GetAccumulatorsResponse{Snapshot: state.actor.accumulator.Snapshot()})
	case domain.AutomationStopRequest:
		state.actor.logger.Debug("automation@standbyTransition: stash stop request")
		state.actor.stash.Stash(ctx, msg)
	default:
		state.actor.logger.Debug("automation@standbyTransition: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state AutomationStandbyState) OnEnterAction(ctx actor.Context) AutomationStandbyState {
	wake, latch := state.actor.controller.StandbyCommands()
	state.actor.standbyWake = wake
	state.actor.standbyLatch = latch
	state.actor.logger.Info("automation@standbyTransition: entering standby",
		zap.Int("zeroIterations", state.actor.state.ConsecutiveZeroIterations))
	state.actor.await(ctx, "awaitStandbyWake",
		domain.SendDeviceCommandRequest{Command: wake}, commandErrorResponse, state.actor.onStandbyWakeSent)
	return state
}

// Shutting down state

type AutomationShuttingDownState struct {
	ActorState
	actor *AutomationActor
}

func (state AutomationShuttingDownState) Name() string {
	return "shuttingDown"
}

func (state AutomationShuttingDownState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.respondHealth(ctx, state.actor.StatePath())
	case domain.AutomationStopRequest:
		if replyTo := ForRequest(msg).ReplyTo(ctx); replyTo != nil {
			state.actor.stopReplyTo = append(state.actor.stopReplyTo, replyTo)
		}
	case domain.OperatorCommandRequest:
		ForRequest(msg).Respond(ctx, domain.OperatorCommandResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: ErrAutomationStopped},
		})
	case domain.GetAutomationStatusRequest:
		ForRequest(msg).Respond(ctx, domain.GetAutomationStatusResponse{Status: state.actor.status()})
	case domain.GetAccumulatorsRequest:
		ForRequest(msg).Respond(ctx, domain.GetAccumulatorsResponse{Snapshot: state.actor.accumulator.Snapshot()})
	default:
		state.actor.logger.Debug("automation@shuttingDown: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state AutomationShuttingDownState) OnEnterAction(ctx actor.Context) AutomationShuttingDownState {
	cmd := state.actor.controller.ShutdownCommand()
	state.actor.logger.Info("automation@shuttingDown: sending stop command", zap.Stringer("command", cmd))
	state.actor.await(ctx, "awaitShutdownCommand",
		domain.SendDeviceCommandRequest{Command: cmd}, commandErrorResponse, state.actor.onShutdownCommandSent)
	return state
}

// Stopped state

type AutomationStoppedState struct {
	ActorState
	actor *AutomationActor
}

func (state AutomationStoppedState) Name() string {
	return "stopped"
}

func (state AutomationStoppedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.respondHealth(ctx, state.actor.StatePath())
	case domain.AutomationStopRequest:
		ForRequest(msg).Respond(ctx, domain.AutomationStopResponse{})
	case domain.OperatorCommandRequest:
		ForRequest(msg).Respond(ctx, domain.OperatorCommandResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: ErrAutomationStopped},
		})
	case domain.GetAutomationStatusRequest:
		ForRequest(msg).Respond(ctx, domain.GetAutomationStatusResponse{Status: state.actor.status()})
	case domain.GetAccumulatorsRequest:
		ForRequest(msg).Respond(ctx, domain.GetAccumulatorsResponse{Snapshot: state.actor.accumulator.Snapshot()})
	default:
	}
}

// Await gateway response state. Everything but health and status reads is
// stashed until the response (or its timeout) arrives.

type AutomationAwaitState struct {
	ActorState
	actor *AutomationActor
	name  string
	next  func(ctx actor.Context, msg any)
}

func (state AutomationAwaitState) Name() string {
	return state.name
}

func (state AutomationAwaitState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetScheduleValueResponse, domain.GetTelemetryResponse, domain.SendDeviceCommandResponse, domain.PostStatusEventResponse:
		state.actor.logger.Debug("automation@"+state.name+": response", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.UnbecomeStacked()
		state.next(ctx, msg)
		state.actor.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		state.actor.respondHealth(ctx, state.actor.StatePath())
	case domain.GetAutomationStatusRequest:
		ForRequest(msg).Respond(ctx, domain.GetAutomationStatusResponse{Status: state.actor.status()})
	default:
		state.actor.logger.Debug("automation@"+state.name+": stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

func (state AutomationAwaitState) OnEnterAction(ctx actor.Context, request any, recover func(error) any) AutomationAwaitState {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.gateway, request, AUTOMATION_REQUEST_TIMEOUT), recover)
	return state
}

func (state *AutomationActor) await(ctx actor.Context, name string, request any, recover func(error) any, next func(actor.Context, any)) {
	state.BecomeStacked(AutomationAwaitState{
		actor: state,
		name:  name,
		next:  next,
	}.OnEnterAction(ctx, request, recover))
}

// Tick pipeline: schedule slots (when stale) -> value for now -> telemetry ->
// decide -> send -> apply

func (state *AutomationActor) startTick(ctx actor.Context) {
	now := state.now()
	state.tick = &tickContext{at: now}
	state.metrics.ObserveTick()
	state.applyPendingOverride(ctx)

	if state.scheduleStale(now) {
		state.await(ctx, "awaitSchedule", domain.GetScheduleValueRequest{Now: now}, func(err error) any {
			return domain.GetScheduleValueResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		}, state.onScheduleSlots)
		return
	}
	state.selectScheduleValue()
	state.requestTelemetry(ctx)
}

func (state *AutomationActor) onScheduleSlots(ctx actor.Context, msg any) {
	resp, _ := msg.(domain.GetScheduleValueResponse)
	if resp.HasResponseError() {
		// keep the last known slots, retry on the next tick
		state.logger.Warn("automation@tick: schedule unavailable", zap.Error(resp.GetResponseError()))
	} else {
		state.scheduleSlots = resp.Slots
		state.scheduleDate = state.tick.at.In(state.location).Format(domain.SCHEDULE_DATE_LAYOUT)
		state.scheduleAt = state.tick.at
		state.logAccumulators("schedule refresh")
	}
	state.selectScheduleValue()
	state.requestTelemetry(ctx)
}

// selectScheduleValue picks the slot for the current tick time from the
// cached slots. Slot boundaries apply on the first tick past them.
func (state *AutomationActor) selectScheduleValue() {
	local := state.tick.at.In(state.location)
	if state.scheduleDate != local.Format(domain.SCHEDULE_DATE_LAYOUT) {
		// slots of another day, keep the last value until a refresh succeeds
		return
	}
	var value *domain.ScheduleValue
	key := ""
	if slot := state.resolver.ValueAt(state.scheduleSlots, local.Format(domain.SCHEDULE_TIME_LAYOUT)); slot != nil {
		value = slot.Value
		if slot.Key != nil {
			key = *slot.Key
		}
	}
	if sameValue(state.scheduleValue, value) && key == state.scheduleKey {
		return
	}
	state.scheduleValue = value
	state.scheduleKey = key
	state.logger.Info("automation@tick: schedule value",
		zap.String("value", valueString(value)), zap.String("key", key))
	state.publish(events.ScheduleTargetToUpdateEvents(state.scheduleValue, state.override))
}

func (state *AutomationActor) requestTelemetry(ctx actor.Context) {
	state.await(ctx, "awaitTelemetry", domain.GetTelemetryRequest{}, func(err error) any {
		return domain.GetTelemetryResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	}, state.onTelemetry)
}

func (state *AutomationActor) onTelemetry(ctx actor.Context, msg any) {
	resp, _ := msg.(domain.GetTelemetryResponse)
	if resp.HasResponseError() {
		state.metrics.ObserveTelemetryFailure()
		state.logger.Warn("automation@tick: telemetry unavailable, holding setpoint",
			zap.Int("setpoint", state.state.CurrentSetpoint), zap.Error(resp.GetResponseError()))
		state.tick = nil
		state.scheduleNextTick(ctx)
		return
	}
	tel := resp.Telemetry
	state.telemetry = &tel
	state.metrics.ObserveTelemetry(tel)
	state.publish(events.TelemetryToUpdateEvents(tel))
	state.logCompleted(state.accumulator.AddSample(domain.CHANNEL_METER, tel.GridWatts, state.tick.at))

	target, fromOverride := state.currentTarget()
	decision := state.controller.Decide(state.state, target, fromOverride, tel)
	state.tick.decision = decision
	state.logger.Debug("automation@tick: decision",
		zap.String("target", target.String()),
		zap.Int("gridWatts", tel.GridWatts),
		zap.Int("soc", tel.SoC),
		zap.Int("setpoint", decision.Setpoint),
		zap.Int("adjustment", decision.Adjustment),
		zap.Stringer("zeroReason", decision.ZeroReason),
		zap.Bool("send", decision.Send))

	if !decision.Send {
		state.finishTick(ctx, nil)
		return
	}
	state.await(ctx, "awaitCommand", domain.SendDeviceCommandRequest{Command: decision.Command}, commandErrorResponse, state.onCommandSent)
}

func (state *AutomationActor) onCommandSent(ctx actor.Context, msg any) {
	resp, _ := msg.(domain.SendDeviceCommandResponse)
	err := resp.GetResponseError()
	state.metrics.ObserveCommand(err, state.config.DryRun)
	if err != nil {
		state.logger.Error("automation@tick: command failed, holding setpoint",
			zap.Stringer("command", state.tick.decision.Command), zap.Error(err))
	} else {
		state.logger.Info("automation@tick: command sent",
			zap.Stringer("command", state.tick.decision.Command), zap.Int("setpoint", state.tick.decision.Setpoint))
	}
	state.finishTick(ctx, err)
}

func (state *AutomationActor) finishTick(ctx actor.Context, sendErr error) {
	tick := state.tick
	state.tick = nil

	outcome := state.controller.Apply(state.state, tick.decision, sendErr)
	state.logCompleted(state.accumulator.AddSample(domain.CHANNEL_POWER_FEED, state.state.CurrentSetpoint, tick.at))

	if outcome.Changed {
		state.logger.Info("automation@tick: setpoint changed",
			zap.Int("old", outcome.OldSetpoint), zap.Int("new", outcome.NewSetpoint))
		state.postStatus(ctx, domain.STATUS_EVENT_CHANGE, outcome.OldSetpoint, outcome.NewSetpoint)
	}
	state.observe()

	if outcome.EnterStandby {
		// become first, the wake request stacks its await state on top
		standby := AutomationStandbyState{
			actor: state,
		}
		state.Become(standby)
		standby.OnEnterAction(ctx)
		return
	}
	state.scheduleNextTick(ctx)
}

func (state *AutomationActor) onStandbyWakeSent(ctx actor.Context, msg any) {
	resp, _ := msg.(domain.SendDeviceCommandResponse)
	if resp.HasResponseError() {
		state.abortStandby(ctx, resp.GetResponseError())
		return
	}
	state.controller.StandbyWakeSent(state.state, state.standbyWake)
	state.cancelTick = state.scheduler.RequestOnce(state.config.Control.StandbyDelay(), ctx.Self(), standbyLatchTick{})
}

func (state *AutomationActor) onStandbyLatchSent(ctx actor.Context, msg any) {
	resp, _ := msg.(domain.SendDeviceCommandResponse)
	if resp.HasResponseError() {
		state.abortStandby(ctx, resp.GetResponseError())
		return
	}
	state.controller.FinishStandby(state.state, state.standbyLatch)
	state.logger.Info("automation@standbyTransition: device in standby")
	state.observe()
	state.Become(AutomationRunningState{
		actor: state,
	})
	state.scheduleNextTick(ctx)
}

func (state *AutomationActor) abortStandby(ctx actor.Context, err error) {
	state.logger.Error("automation@standbyTransition: standby command failed", zap.Error(err))
	state.metrics.ObserveCommand(err, state.config.DryRun)
	state.controller.AbortStandby(state.state)
	state.observe()
	state.Become(AutomationRunningState{
		actor: state,
	})
	state.scheduleNextTick(ctx)
}

func (state *AutomationActor) scheduleNextTick(ctx actor.Context) {
	state.cancelTick = state.scheduler.RequestOnce(state.config.Control.Interval(), ctx.Self(), automationTick{})
}

func (state *AutomationActor) scheduleStale(now time.Time) bool {
	if state.scheduleAt.IsZero() || now.In(state.location).Format(domain.SCHEDULE_DATE_LAYOUT) != state.scheduleDate {
		return true
	}
	return now.Sub(state.scheduleAt) >= state.config.Schedule.RefreshInterval()
}

// currentTarget returns the override when set, the schedule value otherwise.
// A missing schedule value means standby.
func (state *AutomationActor) currentTarget() (domain.ScheduleValue, bool) {
	if state.override != nil {
		return *state.override, true
	}
	if state.scheduleValue != nil {
		return *state.scheduleValue, false
	}
	return domain.FixedValue(0), false
}

// Shutdown

func (state *AutomationActor) beginShutdown(ctx actor.Context, replyTo *actor.PID) {
	if replyTo != nil {
		state.stopReplyTo = append(state.stopReplyTo, replyTo)
	}
	if state.cancelTick != nil {
		state.cancelTick()
		state.cancelTick = nil
	}
	if state.heartbeat != nil {
		state.heartbeat.Stop()
	}
	state.loop = domain.LOOP_SHUTTING_DOWN
	shuttingDown := AutomationShuttingDownState{
		actor: state,
	}
	state.Become(shuttingDown)
	shuttingDown.OnEnterAction(ctx)
}

func (state *AutomationActor) onShutdownCommandSent(ctx actor.Context, msg any) {
	resp, _ := msg.(domain.SendDeviceCommandResponse)
	err := resp.GetResponseError()
	state.metrics.ObserveCommand(err, state.config.DryRun)
	if err != nil {
		state.logger.Error("automation@shuttingDown: stop command failed", zap.Error(err))
	} else {
		cmd := state.controller.ShutdownCommand()
		state.controller.FinishStandby(state.state, cmd)
		state.state.LastZeroReason = domain.ZeroReasonShutdown
	}
	now := state.now()
	state.logCompleted(state.accumulator.AddSample(domain.CHANNEL_POWER_FEED, state.state.CurrentSetpoint, now))

	target, _ := state.currentTarget()
	event := domain.NewStatusEvent(domain.STATUS_EVENT_STOP, now, target.Any(), nil)
	state.await(ctx, "awaitStopEvent", domain.PostStatusEventRequest{Event: event}, func(err error) any {
		return domain.PostStatusEventResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	}, state.onStopEventPosted)
}

func (state *AutomationActor) onStopEventPosted(ctx actor.Context, msg any) {
	state.logAccumulators("final")
	state.loop = domain.LOOP_STOPPED
	state.observe()
	state.logger.Info("automation@stopped: automation loop stopped")
	state.Become(AutomationStoppedState{
		actor: state,
	})
	for _, pid := range state.stopReplyTo {
		ctx.Send(pid, domain.AutomationStopResponse{})
	}
	state.stopReplyTo = nil
}

// Operator commands

func (state *AutomationActor) onOperatorCommand(ctx actor.Context, msg domain.OperatorCommandRequest) {
	cmd := msg.Command
	resp := domain.OperatorCommandResponse{}
	switch cmd.Kind {
	case domain.CommandStatus:
		resp.Message = formatStatus(state.status())
	case domain.CommandAccumulators:
		resp.Message = formatAccumulators(state.accumulator.Snapshot())
	case domain.CommandRefresh:
		state.scheduleAt = time.Time{}
		state.logAccumulators("refresh requested")
		resp.Message = "schedule refresh on next tick"
	case domain.CommandResetManual:
		state.accumulator.ResetManual(state.now())
		resp.Message = "manual accumulator reset"
	case domain.CommandHelp:
		resp.Message = domain.OperatorHelp
	case domain.CommandAuto:
		state.pendingOverride = &pendingOverride{}
		resp.Message = "override cleared, following schedule from next tick"
	case domain.CommandQuit:
		resp.Message = "stopping automation"
		ForRequest(msg).Respond(ctx, resp)
		state.beginShutdown(ctx, nil)
		return
	default:
		value, ok := cmd.Override()
		if !ok {
			resp.ResponseError = domain.ErrUnknownCommand
			break
		}
		state.pendingOverride = &pendingOverride{value: &value}
		resp.Message = fmt.Sprintf("override %s from next tick", value.String())
	}
	state.logger.Info("automation@command", zap.Int("kind", int(cmd.Kind)), zap.String("result", firstLine(resp.Message)))
	ForRequest(msg).Respond(ctx, resp)
}

func (state *AutomationActor) applyPendingOverride(ctx actor.Context) {
	if state.pendingOverride == nil {
		return
	}
	old := state.override
	state.override = state.pendingOverride.value
	state.pendingOverride = nil
	if sameValue(old, state.override) {
		return
	}
	state.logger.Info("automation@tick: override applied",
		zap.String("old", valueString(old)), zap.String("new", valueString(state.override)))
	state.postStatus(ctx, domain.STATUS_EVENT_CHANGE, valueAny(old), valueAny(state.override))
	state.publish(events.ScheduleTargetToUpdateEvents(state.scheduleValue, state.override))
}

// Other actor function helpers

func (state *AutomationActor) onHeartbeat(ctx actor.Context) {
	state.postStatus(ctx, domain.STATUS_EVENT_HEARTBEAT, nil, state.state.CurrentSetpoint)
	state.armHeartbeat(ctx)
}

func (state *AutomationActor) armHeartbeat(ctx actor.Context) {
	if state.heartbeat == nil {
		return
	}
	if _, err := state.heartbeat.Next(ctx.Self(), heartbeatTick{}, state.now()); err != nil {
		state.logger.Warn("automation: heartbeat not scheduled", zap.Error(err))
	}
}

func (state *AutomationActor) postStatus(ctx actor.Context, eventType domain.StatusEventType, oldValue, newValue any) {
	ctx.Send(state.gateway, domain.PostStatusEventRequest{
		Event: domain.NewStatusEvent(eventType, state.now(), oldValue, newValue),
	})
}

func (state *AutomationActor) respondHealth(ctx actor.Context, name string) {
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_AUTOMATION,
		Healthy: true,
		State:   name,
	})
}

func (state *AutomationActor) observe() {
	snapshot := state.accumulator.Snapshot()
	state.metrics.ObserveState(*state.state)
	state.metrics.ObserveAccumulators(snapshot)
	state.publish(events.AutomationStateToUpdateEvents(*state.state))
	state.publish(events.AccumulatorsToUpdateEvents(snapshot))
}

func (state *AutomationActor) publish(evs []any) {
	if state.eventStream == nil {
		return
	}
	for _, ev := range evs {
		state.eventStream.Publish(ev)
	}
}

func (state *AutomationActor) status() domain.AutomationStatus {
	return domain.AutomationStatus{
		Loop:                      state.loop,
		Activity:                  state.state.Activity,
		CurrentSetpoint:           state.state.CurrentSetpoint,
		LastSentSetpoint:          state.state.LastSentSetpoint,
		LastSentCommand:           state.state.LastSentCommand,
		LimitState:                state.state.LimitState,
		ConsecutiveZeroIterations: state.state.ConsecutiveZeroIterations,
		StandbyPending:            state.state.StandbyPending,
		LastZeroReason:            state.state.LastZeroReason.String(),
		Override:                  state.override,
		ScheduleValue:             state.scheduleValue,
		ScheduleKey:               state.scheduleKey,
		Telemetry:                 state.telemetry,
		DryRun:                    state.config.DryRun,
		UpdatedAt:                 state.now(),
	}
}

func (state *AutomationActor) logCompleted(completed []domain.CompletedPeriod) {
	for _, period := range completed {
		switch period.Period {
		case domain.PERIOD_HOUR:
			state.logger.Sugar().Infof("automation@accumulator: %s hour %s-%s: %.1f Wh",
				period.Channel, period.Start.In(state.location).Format("15:04"), period.End.In(state.location).Format("15:04"), period.EnergyWh)
		case domain.PERIOD_DAY:
			state.logger.Sugar().Infof("automation@accumulator: %s day %s: %.1f Wh",
				period.Channel, period.Start.In(state.location).Format(time.DateOnly), period.EnergyWh)
		default:
			state.logger.Debug("automation@accumulator: period completed",
				zap.String("channel", string(period.Channel)),
				zap.String("period", string(period.Period)),
				zap.Float64("energyWh", period.EnergyWh))
		}
	}
}

func (state *AutomationActor) logAccumulators(reason string) {
	state.logger.Sugar().Infof("automation@accumulator: %s\n%s", reason, formatAccumulators(state.accumulator.Snapshot()))
}

func commandErrorResponse(err error) any {
	return domain.SendDeviceCommandResponse{
		ActorResponseMixIn: domain.ActorResponseMixIn{
			ResponseError: err,
		},
	}
}

func formatStatus(s domain.AutomationStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "loop: %s, activity: %s\n", s.Loop, s.Activity)
	fmt.Fprintf(&b, "setpoint: %d W (zero reason: %s, zero ticks: %d)\n", s.CurrentSetpoint, s.LastZeroReason, s.ConsecutiveZeroIterations)
	fmt.Fprintf(&b, "schedule: %s", valueString(s.ScheduleValue))
	if s.ScheduleKey != "" {
		fmt.Fprintf(&b, " (%s)", s.ScheduleKey)
	}
	fmt.Fprintf(&b, ", override: %s\n", valueString(s.Override))
	if s.Telemetry != nil {
		fmt.Fprintf(&b, "grid: %d W, soc: %d%%\n", s.Telemetry.GridWatts, s.Telemetry.SoC)
	}
	fmt.Fprintf(&b, "limits: atMaxSoc=%t atMinSoc=%t", s.LimitState.AtMaxSoc, s.LimitState.AtMinSoc)
	if s.LastSentCommand != nil {
		fmt.Fprintf(&b, "\nlast command: %s", s.LastSentCommand.String())
	}
	if s.DryRun {
		b.WriteString("\ndry run")
	}
	return b.String()
}

func formatAccumulators(snapshot domain.AccumulatorSnapshot) string {
	lines := make([]string, 0, len(domain.AccumulatorChannels))
	for _, channel := range domain.AccumulatorChannels {
		parts := make([]string, 0, len(domain.AccumulatorPeriods))
		for _, period := range domain.AccumulatorPeriods {
			bucket, ok := snapshot[channel][period]
			if !ok {
				continue
			}
			part := fmt.Sprintf("%s=%.1fWh", period, bucket.EnergyWh)
			if bucket.LastCompletedWh != nil {
				part += fmt.Sprintf(" (last %.1fWh)", *bucket.LastCompletedWh)
			}
			parts = append(parts, part)
		}
		lines = append(lines, fmt.Sprintf("%s: %s", channel, strings.Join(parts, ", ")))
	}
	return strings.Join(lines, "\n")
}

func sameValue(a, b *domain.ScheduleValue) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func valueString(v *domain.ScheduleValue) string {
	if v == nil {
		return "none"
	}
	return v.String()
}

func valueAny(v *domain.ScheduleValue) any {
	if v == nil {
		return nil
	}
	return v.Any()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
