package actorutil

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps an MQTT command onto an operator command.
// Switching auto_mode off is a manual stop.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.ActorRequest, error) {
	switch {
	case cmd.Command == mqtt.MQTT_COMMAND_OPERATOR:
		op, err := domain.ParseOperatorCommand(cmd.Payload)
		if err != nil {
			return nil, err
		}
		return domain.OperatorCommandRequest{Command: op}, nil
	case cmd.EntityId == domain.SWITCH_ID_AUTO_MODE:
		if cmd.Payload == mqtt.MQTT_PAYLOAD_ON {
			return domain.OperatorCommandRequest{Command: domain.OperatorCommand{Kind: domain.CommandAuto}}, nil
		}
		return domain.OperatorCommandRequest{Command: domain.OperatorCommand{Kind: domain.CommandStop}}, nil
	case cmd.EntityId == domain.INPUT_NUMBER_ID_POWER_OVERRIDE:
		value, err := strconv.ParseFloat(cmd.Payload, 64)
		if err != nil {
			return nil, err
		}
		watts := int(value)
		if watts == 0 {
			return domain.OperatorCommandRequest{Command: domain.OperatorCommand{Kind: domain.CommandStop}}, nil
		}
		return domain.OperatorCommandRequest{Command: domain.OperatorCommand{Kind: domain.CommandSetPower, Watts: watts}}, nil
	}
	return nil, fmt.Errorf("%w: %s/%s", errUnsupportedMQTTCommand, cmd.Command, cmd.EntityId)
}

var errUnsupportedMQTTCommand = errors.New("unsupported mqtt command")
