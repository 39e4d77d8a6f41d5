package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownCommand = errors.New("unknown command")

type OperatorCommandKind int

const (
	CommandStatus OperatorCommandKind = iota
	CommandAccumulators
	CommandRefresh
	CommandResetManual
	CommandSetPower
	CommandStop
	CommandNetZero
	CommandNetZeroPlus
	CommandAuto
	CommandQuit
	CommandHelp
)

type OperatorCommand struct {
	Kind  OperatorCommandKind
	Watts int
}

const OperatorHelp = `commands:
  status        show automation state
  acc           show energy accumulators
  refresh       refresh schedule now
  reset         reset manual accumulator
  p <watts>     manual power (positive = charge, negative = discharge)
  zero          manual stop (standby)
  netzero       manual net-zero
  netzero+      manual net-zero, charge only
  auto          clear manual override, follow schedule
  quit          stop automation and exit`

// ParseOperatorCommand parses one line of operator input.
func ParseOperatorCommand(line string) (OperatorCommand, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return OperatorCommand{}, ErrUnknownCommand
	}
	switch fields[0] {
	case "status", "s":
		return OperatorCommand{Kind: CommandStatus}, nil
	case "accumulators", "acc", "a":
		return OperatorCommand{Kind: CommandAccumulators}, nil
	case "refresh", "r":
		return OperatorCommand{Kind: CommandRefresh}, nil
	case "reset":
		return OperatorCommand{Kind: CommandResetManual}, nil
	case "zero", "stop", "0":
		return OperatorCommand{Kind: CommandStop}, nil
	case VALUE_NETZERO:
		return OperatorCommand{Kind: CommandNetZero}, nil
	case VALUE_NETZERO_PLUS:
		return OperatorCommand{Kind: CommandNetZeroPlus}, nil
	case "auto", "schedule":
		return OperatorCommand{Kind: CommandAuto}, nil
	case "quit", "q", "exit":
		return OperatorCommand{Kind: CommandQuit}, nil
	case "help", "h", "?":
		return OperatorCommand{Kind: CommandHelp}, nil
	case "p", "power":
		if len(fields) != 2 {
			return OperatorCommand{}, fmt.Errorf("%w: usage p <watts>", ErrUnknownCommand)
		}
		watts, err := strconv.Atoi(fields[1])
		if err != nil {
			return OperatorCommand{}, fmt.Errorf("%w: invalid power %q", ErrUnknownCommand, fields[1])
		}
		if watts == 0 {
			return OperatorCommand{Kind: CommandStop}, nil
		}
		return OperatorCommand{Kind: CommandSetPower, Watts: watts}, nil
	}
	return OperatorCommand{}, fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
}

// Override returns the manual target carried by the command, if any.
func (c OperatorCommand) Override() (ScheduleValue, bool) {
	switch c.Kind {
	case CommandSetPower:
		return FixedValue(c.Watts), true
	case CommandStop:
		return FixedValue(0), true
	case CommandNetZero:
		return NetZeroValue(), true
	case CommandNetZeroPlus:
		return NetZeroPlusValue(), true
	}
	return ScheduleValue{}, false
}
