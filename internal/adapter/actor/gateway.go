package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/zenschedule/internal/config"
	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/core/port"
	"github.com/berfenger/zenschedule/internal/core/service"
	"github.com/berfenger/zenschedule/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	GATEWAY_TASK_TIMEOUT = 5 * time.Second
)

// GatewayPorts are the outside world as seen by the automation loop.
// Status is optional.
type GatewayPorts struct {
	Telemetry port.TelemetryReader
	Device    port.DeviceClient
	Schedule  port.ScheduleSource
	Status    port.StatusReporter
}

// GatewayActor serialises all device, meter, schedule and status I/O. Each
// request runs as a background task with a timeout while the actor stashes
// the next requests.
type GatewayActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	ports    GatewayPorts
	resolver port.ScheduleResolver
	location *time.Location
	dryRun   bool
	timeout  time.Duration
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewGatewayActor(cfg *config.Config, ports GatewayPorts, logger *zap.Logger) *GatewayActor {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.Local
	}
	act := &GatewayActor{
		ports:    ports,
		resolver: &service.DefaultScheduleResolver{},
		location: loc,
		dryRun:   cfg.DryRun,
		timeout:  GATEWAY_TASK_TIMEOUT,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_GATEWAY, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *GatewayActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *GatewayActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("gateway@default started", zap.Bool("dryRun", state.dryRun))
	case domain.ActorHealthRequest:
		state.logger.Debug("gateway@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_GATEWAY,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetTelemetryRequest:
		state.logger.Debug("gateway@default: GetTelemetryRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getTelemetry),
			mapTaskResult[domain.GetTelemetryResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetTelemetryResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingGateway)
	case domain.SendDeviceCommandRequest:
		state.logger.Debug("gateway@default: SendDeviceCommandRequest", zap.Stringer("command", msg.Command))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		command := msg.Command
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTaskNoError(ctx, func() *domain.SendDeviceCommandResponse {
			r := state.sendCommand(command)
			return &r
		}),
			mapTaskResult[domain.SendDeviceCommandResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.SendDeviceCommandResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
					Command: command,
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingGateway)
	case domain.GetScheduleValueRequest:
		state.logger.Debug("gateway@default: GetScheduleValueRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		now := msg.Now
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.GetScheduleValueResponse, error) {
			return state.getScheduleValue(now)
		}),
			mapTaskResult[domain.GetScheduleValueResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetScheduleValueResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingGateway)
	case domain.PostStatusEventRequest:
		state.logger.Debug("gateway@default: PostStatusEventRequest", zap.String("event", string(msg.Event.Type)))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		event := msg.Event
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTaskNoError(ctx, func() *domain.PostStatusEventResponse {
			r := state.postStatus(event)
			return &r
		}),
			mapTaskResult[domain.PostStatusEventResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.PostStatusEventResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingGateway)
	case *actor.Stopping:
		state.logger.Debug("gateway@default stopping")
	default:
		state.logger.Debug("gateway@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *GatewayActor) WaitingGateway(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("gateway@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_GATEWAY,
			Healthy: true,
			State:   "busy",
		})
	default:
		state.logger.Debug("gateway@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *GatewayActor) getTelemetry() (*domain.GetTelemetryResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), state.timeout)
	defer cancel()

	tel, err := state.ports.Telemetry.ReadTelemetry(ctx)
	if err != nil {
		state.logger.Warn("gateway: telemetry read failed", zap.Error(err))
		return nil, err
	}
	return &domain.GetTelemetryResponse{
		Telemetry: *tel,
	}, nil
}

func (state *GatewayActor) sendCommand(cmd domain.DeviceCommand) domain.SendDeviceCommandResponse {
	if state.dryRun {
		state.logger.Info("gateway: dry run, command not sent", zap.Stringer("command", cmd))
		return domain.SendDeviceCommandResponse{Command: cmd}
	}
	ctx, cancel := context.WithTimeout(context.Background(), state.timeout)
	defer cancel()

	if err := state.ports.Device.WriteCommand(ctx, cmd); err != nil {
		state.logger.Error("gateway: device write failed", zap.Stringer("command", cmd), zap.Error(err))
		return domain.SendDeviceCommandResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
			Command: cmd,
		}
	}
	return domain.SendDeviceCommandResponse{Command: cmd}
}

func (state *GatewayActor) getScheduleValue(now time.Time) (*domain.GetScheduleValueResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), state.timeout)
	defer cancel()

	local := now.In(state.location)
	slots, err := state.ports.Schedule.ResolvedSlots(ctx, local.Format(domain.SCHEDULE_DATE_LAYOUT))
	if err != nil {
		state.logger.Warn("gateway: schedule load failed", zap.Error(err))
		return nil, err
	}
	resp := &domain.GetScheduleValueResponse{Slots: slots}
	if slot := state.resolver.ValueAt(slots, local.Format(domain.SCHEDULE_TIME_LAYOUT)); slot != nil {
		resp.Value = slot.Value
		resp.Key = slot.Key
	}
	return resp, nil
}

func (state *GatewayActor) postStatus(event domain.StatusEvent) domain.PostStatusEventResponse {
	if state.ports.Status == nil {
		return domain.PostStatusEventResponse{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), state.timeout)
	defer cancel()

	if err := state.ports.Status.PostStatus(ctx, event); err != nil {
		// status reporting never affects control
		state.logger.Warn("gateway: status post failed", zap.String("event", string(event.Type)), zap.Error(err))
		return domain.PostStatusEventResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	}
	return domain.PostStatusEventResponse{}
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
