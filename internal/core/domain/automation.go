package domain

import "time"

type LoopState string

const (
	LOOP_RUNNING       LoopState = "running"
	LOOP_SHUTTING_DOWN LoopState = "shutting_down"
	LOOP_STOPPED       LoopState = "stopped"
)

type ActivityState string

const (
	ACTIVITY_ACTIVE             ActivityState = "active"
	ACTIVITY_IDLE_AT_ZERO       ActivityState = "idle_at_zero"
	ACTIVITY_STANDBY_TRANSITION ActivityState = "standby_transition"
	ACTIVITY_IDLE               ActivityState = "idle"
)

type LimitState struct {
	AtMaxSoc bool `json:"atMaxSoc"`
	AtMinSoc bool `json:"atMinSoc"`
}

// AutomationState is owned by the automation loop and mutated once per tick.
type AutomationState struct {
	CurrentSetpoint           int
	LastSentSetpoint          *int
	LastSentCommand           *DeviceCommand
	LimitState                LimitState
	ConsecutiveZeroIterations int
	StandbyPending            bool
	Activity                  ActivityState
	LastZeroReason            ZeroReason
}

func NewAutomationState() *AutomationState {
	return &AutomationState{
		Activity: ACTIVITY_IDLE,
	}
}

// AutomationStatus is a read-only view of the loop for operators.
type AutomationStatus struct {
	Loop                      LoopState      `json:"loop"`
	Activity                  ActivityState  `json:"activity"`
	CurrentSetpoint           int            `json:"currentSetpoint"`
	LastSentSetpoint          *int           `json:"lastSentSetpoint"`
	LastSentCommand           *DeviceCommand `json:"lastSentCommand"`
	LimitState                LimitState     `json:"limitState"`
	ConsecutiveZeroIterations int            `json:"consecutiveZeroIterations"`
	StandbyPending            bool           `json:"standbyPending"`
	LastZeroReason            string         `json:"lastZeroReason"`
	Override                  *ScheduleValue `json:"override"`
	ScheduleValue             *ScheduleValue `json:"scheduleValue"`
	ScheduleKey               string         `json:"scheduleKey,omitempty"`
	Telemetry                 *Telemetry     `json:"telemetry"`
	DryRun                    bool           `json:"dryRun"`
	UpdatedAt                 time.Time      `json:"updatedAt"`
}

type StatusEventType string

const (
	STATUS_EVENT_START     StatusEventType = "start"
	STATUS_EVENT_STOP      StatusEventType = "stop"
	STATUS_EVENT_CHANGE    StatusEventType = "change"
	STATUS_EVENT_HEARTBEAT StatusEventType = "heartbeat"
)

type StatusEvent struct {
	Type      StatusEventType `json:"type"`
	Timestamp int64           `json:"timestamp"`
	OldValue  any             `json:"oldValue"`
	NewValue  any             `json:"newValue"`
}

func NewStatusEvent(eventType StatusEventType, at time.Time, oldValue, newValue any) StatusEvent {
	return StatusEvent{
		Type:      eventType,
		Timestamp: at.Unix(),
		OldValue:  oldValue,
		NewValue:  newValue,
	}
}
