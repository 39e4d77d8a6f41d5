package domain

import (
	"time"

	"github.com/asynkron/protoactor-go/actor"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_GATEWAY      = "gateway"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_AUTOMATION   = "automation"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

type ActorRef actor.PID

type ActorRequest interface {
	ReplyTo() *ActorRef
}

type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}

type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

type ActorResponseMixIn struct {
	ResponseError error
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

// Health

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

// Gateway

type GetTelemetryRequest struct {
	ActorRequestMixIn
}

type GetTelemetryResponse struct {
	ActorResponseMixIn
	Telemetry Telemetry
}

type SendDeviceCommandRequest struct {
	ActorRequestMixIn
	Command DeviceCommand
}

type SendDeviceCommandResponse struct {
	ActorResponseMixIn
	Command DeviceCommand
}

type GetScheduleValueRequest struct {
	ActorRequestMixIn
	Now time.Time
}

type GetScheduleValueResponse struct {
	ActorResponseMixIn
	Value *ScheduleValue
	Key   *string
	Slots []ResolvedSlot
}

type PostStatusEventRequest struct {
	ActorRequestMixIn
	Event StatusEvent
}

type PostStatusEventResponse struct {
	ActorResponseMixIn
}

// MQTT

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors      []GenericSensor
	Switches     []GenericSwitch
	InputNumbers []GenericInputNumber
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// Automation

type OperatorCommandRequest struct {
	ActorRequestMixIn
	Command OperatorCommand
}

type OperatorCommandResponse struct {
	ActorResponseMixIn
	Message string
}

type GetAutomationStatusRequest struct {
	ActorRequestMixIn
}

type GetAutomationStatusResponse struct {
	ActorResponseMixIn
	Status AutomationStatus
}

type GetAccumulatorsRequest struct {
	ActorRequestMixIn
}

type GetAccumulatorsResponse struct {
	ActorResponseMixIn
	Snapshot AccumulatorSnapshot
}

type AutomationStopRequest struct {
	ActorRequestMixIn
}

type AutomationStopResponse struct {
	ActorResponseMixIn
}
