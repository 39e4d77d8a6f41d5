package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	SCHEDULE_KEY_LENGTH  = 12
	SCHEDULE_DATE_LENGTH = 8
	SCHEDULE_WILDCARD    = '*'
	VALUE_NETZERO        = "netzero"
	VALUE_NETZERO_PLUS   = "netzero+"
	SCHEDULE_DATE_LAYOUT = "20060102"
	SCHEDULE_TIME_LAYOUT = "1504"
)

var (
	ErrInvalidScheduleKey   = errors.New("invalid schedule key")
	ErrInvalidScheduleValue = errors.New("invalid schedule value")
)

type ValueKind int

const (
	ValueFixed ValueKind = iota
	ValueNetZero
	ValueNetZeroPlus
)

func (k ValueKind) String() string {
	switch k {
	case ValueNetZero:
		return VALUE_NETZERO
	case ValueNetZeroPlus:
		return VALUE_NETZERO_PLUS
	default:
		return "fixed"
	}
}

// ScheduleValue is either a fixed wattage (positive = charge, negative =
// discharge) or one of the net-zero feedback policies.
type ScheduleValue struct {
	Kind  ValueKind
	Watts int
}

func FixedValue(watts int) ScheduleValue {
	return ScheduleValue{Kind: ValueFixed, Watts: watts}
}

func NetZeroValue() ScheduleValue {
	return ScheduleValue{Kind: ValueNetZero}
}

func NetZeroPlusValue() ScheduleValue {
	return ScheduleValue{Kind: ValueNetZeroPlus}
}

func (v ScheduleValue) IsFeedback() bool {
	return v.Kind == ValueNetZero || v.Kind == ValueNetZeroPlus
}

func (v ScheduleValue) String() string {
	if v.Kind == ValueFixed {
		return strconv.Itoa(v.Watts)
	}
	return v.Kind.String()
}

// Any returns the value as it travels in status events: an int or an enum string.
func (v ScheduleValue) Any() any {
	if v.Kind == ValueFixed {
		return v.Watts
	}
	return v.Kind.String()
}

func (v ScheduleValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

func (v *ScheduleValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrInvalidScheduleValue
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch s {
		case VALUE_NETZERO:
			*v = NetZeroValue()
		case VALUE_NETZERO_PLUS:
			*v = NetZeroPlusValue()
		default:
			return fmt.Errorf("%w: %q", ErrInvalidScheduleValue, s)
		}
		return nil
	}
	watts, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidScheduleValue, string(data))
	}
	*v = FixedValue(watts)
	return nil
}

// ParseScheduleValue parses the textual form used by operators and MQTT payloads.
func ParseScheduleValue(text string) (ScheduleValue, error) {
	text = strings.TrimSpace(text)
	switch text {
	case VALUE_NETZERO:
		return NetZeroValue(), nil
	case VALUE_NETZERO_PLUS:
		return NetZeroPlusValue(), nil
	}
	watts, err := strconv.Atoi(text)
	if err != nil {
		return ScheduleValue{}, fmt.Errorf("%w: %q", ErrInvalidScheduleValue, text)
	}
	return FixedValue(watts), nil
}

// ValidateScheduleKey checks the YYYYMMDDHHmm pattern: 12 chars, digits or '*'.
func ValidateScheduleKey(key string) error {
	if len(key) != SCHEDULE_KEY_LENGTH {
		return fmt.Errorf("%w: %q must be %d characters long", ErrInvalidScheduleKey, key, SCHEDULE_KEY_LENGTH)
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c != SCHEDULE_WILDCARD && (c < '0' || c > '9') {
			return fmt.Errorf("%w: %q has invalid character at position %d", ErrInvalidScheduleKey, key, i)
		}
	}
	return nil
}

// ValidateScheduleDate checks a concrete YYYYMMDD date.
func ValidateScheduleDate(date string) error {
	if len(date) != SCHEDULE_DATE_LENGTH {
		return fmt.Errorf("invalid date %q: expected YYYYMMDD", date)
	}
	for i := 0; i < len(date); i++ {
		if date[i] < '0' || date[i] > '9' {
			return fmt.Errorf("invalid date %q: expected YYYYMMDD", date)
		}
	}
	return nil
}

type ScheduleEntry struct {
	Key   string        `json:"key"`
	Value ScheduleValue `json:"value"`
}

type ResolvedSlot struct {
	Time  string         `json:"time"`
	Value *ScheduleValue `json:"value"`
	Key   *string        `json:"key"`
}
