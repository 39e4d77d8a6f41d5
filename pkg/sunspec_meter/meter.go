package sunspec_meter

import (
	"errors"
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

var (
	ErrNotSunSpec    = errors.New("could not find a SunSpec smart meter")
	ErrNotFronius    = errors.New("could not find a Fronius smart meter")
	ErrMissingBlocks = errors.New("could not find all required sunspec blocks (common, ac_meter)")
)

type meterBlocks struct {
	common uint16
	meter  uint16
}

func (blk meterBlocks) complete() bool {
	return blk.common > 0 && blk.meter > 0
}

// IntSFMeterReader reads a SunSpec integer + scale factor AC meter
// (models 201-204) over modbus TCP.
type IntSFMeterReader struct {
	registerClient
	blocks        meterBlocks
	ignoreFronius bool
}

func NewIntSFMeterReader(host string, port uint, unitId uint8, timeout time.Duration,
	ignoreFronius bool, logger *zap.Logger, instrumentation *Instrument) (*IntSFMeterReader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", host, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	if err := client.SetUnitId(unitId); err != nil {
		return nil, err
	}

	inst := []Instrument{debugLoggerInstrument(logger.With(zap.String("target", "meter"), zap.Uint8("unit", unitId)))}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	return &IntSFMeterReader{
		registerClient: registerClient{
			client:     client,
			instrument: inst,
		},
		ignoreFronius: ignoreFronius,
	}, nil
}

func debugLoggerInstrument(logger *zap.Logger) Instrument {
	return Instrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus call", zap.String("fn", fnName), zap.Duration("took", readTime))
		},
	}
}

func (r *IntSFMeterReader) Open() error {
	if err := r.client.Open(); err != nil {
		return err
	}
	return r.survey()
}

func (r *IntSFMeterReader) Close() error {
	return r.client.Close()
}

func (r *IntSFMeterReader) Validate() error {
	marker, err := r.readString(SUNSPEC_BASE_ADDRESS, 4)
	if err != nil {
		return err
	}
	if marker != SUNSPEC_MARKER {
		return ErrNotSunSpec
	}
	if r.ignoreFronius {
		return nil
	}
	manufacturer, err := r.readString(SUNSPEC_BASE_ADDRESS+4, 32)
	if err != nil {
		return err
	}
	if manufacturer != FRONIUS_MANUFACTURER_NAME {
		return ErrNotFronius
	}
	return nil
}

func (r *IntSFMeterReader) GetInfo() (*MeterInfo, error) {
	info := MeterInfo{}
	var err error
	if info.Manufacturer, err = r.readString(r.blocks.common+2, 32); err != nil {
		return nil, err
	}
	if info.Model, err = r.readString(r.blocks.common+18, 32); err != nil {
		return nil, err
	}
	if info.Version, err = r.readString(r.blocks.common+42, 16); err != nil {
		return nil, err
	}
	if info.Serial, err = r.readString(r.blocks.common+50, 32); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetPowerWatt returns the total real power. Positive = import.
func (r *IntSFMeterReader) GetPowerWatt() (float64, error) {
	power, err := r.readRegister(r.blocks.meter + 18)
	if err != nil {
		return 0, err
	}
	sf, err := r.readRegister(r.blocks.meter + 22)
	if err != nil {
		return 0, err
	}
	return scale(float64(int16(power)), sf), nil
}

func (r *IntSFMeterReader) GetPowerFlow() (*MeterPowerFlow, error) {
	power, err := r.GetPowerWatt()
	if err != nil {
		return nil, err
	}
	exported, err := r.readUint32(r.blocks.meter + 38)
	if err != nil {
		return nil, err
	}
	imported, err := r.readUint32(r.blocks.meter + 46)
	if err != nil {
		return nil, err
	}
	energySF, err := r.readRegister(r.blocks.meter + 54)
	if err != nil {
		return nil, err
	}
	freq, err := r.readRegisters(r.blocks.meter+16, 2)
	if err != nil {
		return nil, err
	}
	voltage, err := r.readRegister(r.blocks.meter + 8)
	if err != nil {
		return nil, err
	}
	voltageSF, err := r.readRegister(r.blocks.meter + 15)
	if err != nil {
		return nil, err
	}
	return &MeterPowerFlow{
		PowerWatt:        power,
		TotalExportedKWh: scale(float64(exported), energySF) / 1000,
		TotalImportedKWh: scale(float64(imported), energySF) / 1000,
		Frequency:        scale(float64(freq[0]), freq[1]),
		PhaseAVoltage:    scale(float64(voltage), voltageSF),
	}, nil
}

func (r *IntSFMeterReader) survey() error {
	marker, err := r.readString(SUNSPEC_BASE_ADDRESS, 4)
	if err != nil {
		return err
	}
	if marker != SUNSPEC_MARKER {
		return ErrNotSunSpec
	}

	blocks := meterBlocks{}
	addr := uint16(SUNSPEC_BASE_ADDRESS + 2)
	for n := 0; n <= 10; n++ {
		id, err := r.readRegister(addr)
		if err != nil {
			return err
		}
		if id == SUNSPEC_WK_END {
			break
		}
		length, err := r.readRegister(addr + 1)
		if err != nil {
			return err
		}
		switch {
		case id == SUNSPEC_WK_COMMON:
			blocks.common = addr
		case id >= SUNSPEC_WK_METER_MIN && id <= SUNSPEC_WK_METER_MAX:
			blocks.meter = addr
		}
		if blocks.complete() {
			break
		}
		addr += length + 2
	}
	if !blocks.complete() {
		return ErrMissingBlocks
	}
	r.blocks = blocks
	return nil
}

// ensure interface compliance
var _ MeterReader = (*IntSFMeterReader)(nil)
