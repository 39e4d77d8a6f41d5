package domain

import (
	"fmt"
	"time"
)

const (
	AC_MODE_STANDBY = 0
	AC_MODE_INPUT   = 1
	AC_MODE_OUTPUT  = 2
	SMART_MODE_ON   = 1
)

// ZeroReason records why a setpoint collapsed to zero. The device payload
// depends on it and it cannot be recovered from the setpoint alone.
type ZeroReason int

const (
	ZeroReasonNone ZeroReason = iota
	// net-zero deadband or snap: keep the device in its last mode
	ZeroReasonDeadband
	// first step when a schedule stops an ongoing discharge
	ZeroReasonDischargeStop
	ZeroReasonScheduled
	ZeroReasonManualStop
	ZeroReasonLimit
	ZeroReasonStandby
	ZeroReasonShutdown
)

func (r ZeroReason) String() string {
	switch r {
	case ZeroReasonDeadband:
		return "deadband"
	case ZeroReasonDischargeStop:
		return "discharge_stop"
	case ZeroReasonScheduled:
		return "scheduled"
	case ZeroReasonManualStop:
		return "manual_stop"
	case ZeroReasonLimit:
		return "limit"
	case ZeroReasonStandby:
		return "standby"
	case ZeroReasonShutdown:
		return "shutdown"
	default:
		return "none"
	}
}

// EntersStandby reports whether a zero for this reason must latch acMode 0.
func (r ZeroReason) EntersStandby() bool {
	switch r {
	case ZeroReasonScheduled, ZeroReasonManualStop, ZeroReasonLimit, ZeroReasonStandby, ZeroReasonShutdown:
		return true
	default:
		return false
	}
}

// DeviceCommand is the properties object written to the battery. A nil
// ACMode is omitted from the payload on purpose.
type DeviceCommand struct {
	ACMode      *int `json:"acMode,omitempty"`
	InputLimit  int  `json:"inputLimit"`
	OutputLimit int  `json:"outputLimit"`
	SmartMode   int  `json:"smartMode"`
}

func (c DeviceCommand) Equal(other DeviceCommand) bool {
	if (c.ACMode == nil) != (other.ACMode == nil) {
		return false
	}
	if c.ACMode != nil && *c.ACMode != *other.ACMode {
		return false
	}
	return c.InputLimit == other.InputLimit && c.OutputLimit == other.OutputLimit && c.SmartMode == other.SmartMode
}

func (c DeviceCommand) String() string {
	mode := "-"
	if c.ACMode != nil {
		mode = fmt.Sprintf("%d", *c.ACMode)
	}
	return fmt.Sprintf("acMode=%s input=%d output=%d smart=%d", mode, c.InputLimit, c.OutputLimit, c.SmartMode)
}

type DeviceWriteRequest struct {
	SerialNumber string        `json:"sn"`
	Properties   DeviceCommand `json:"properties"`
}

type MeterReading struct {
	TotalPower int
	ReadAt     time.Time
	Raw        map[string]any
}

type DeviceReport struct {
	ElectricLevel int
	InputLimit    int
	OutputLimit   int
	ReadAt        time.Time
	Raw           map[string]any
}

// Telemetry is one consistent view of the grid and battery for a tick.
type Telemetry struct {
	GridWatts int       `json:"gridWatts"`
	SoC       int       `json:"soc"`
	ReadAt    time.Time `json:"readAt"`
}
