package sunspec_meter

import (
	"math"
	"slices"
	"time"

	"github.com/simonvetter/modbus"
)

// registerClient wraps the modbus client and times every register access.
type registerClient struct {
	client     *modbus.ModbusClient
	instrument []Instrument
}

// Instrument receives the duration of every modbus call.
type Instrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

func (c registerClient) readString(address uint16, size uint16) (string, error) {
	bytes, err := c.readRawBytes(address, size)
	if err != nil {
		return "", err
	}
	if f := slices.Index(bytes, 0x00); f >= 0 {
		return string(bytes[:f]), nil
	}
	return string(bytes), nil
}

func (c registerClient) readRegister(addr uint16) (uint16, error) {
	defer recordTimer("ReadRegister", c.instrument)()
	return c.client.ReadRegister(addr, modbus.HOLDING_REGISTER)
}

func (c registerClient) readRegisters(addr uint16, quantity uint16) ([]uint16, error) {
	defer recordTimer("ReadRegisters", c.instrument)()
	return c.client.ReadRegisters(addr, quantity, modbus.HOLDING_REGISTER)
}

func (c registerClient) readUint32(addr uint16) (uint32, error) {
	defer recordTimer("ReadUint32", c.instrument)()
	return c.client.ReadUint32(addr, modbus.HOLDING_REGISTER)
}

func (c registerClient) readRawBytes(addr uint16, quantity uint16) ([]byte, error) {
	defer recordTimer("ReadRawBytes", c.instrument)()
	return c.client.ReadRawBytes(addr, quantity, modbus.HOLDING_REGISTER)
}

// scale applies a SunSpec scale factor (signed power of ten).
func scale(value float64, sf uint16) float64 {
	return value * math.Pow(10, float64(int16(sf)))
}

func recordTimer(name string, instrument []Instrument) func() {
	if len(instrument) == 0 {
		return func() {}
	}
	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}
