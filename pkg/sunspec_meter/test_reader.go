package sunspec_meter

// TestMeterReader is an in-memory meter used by tests and dry runs.
type TestMeterReader struct {
	PowerWatt float64
	Err       error
}

func (r *TestMeterReader) Open() error {
	return r.Err
}

func (r *TestMeterReader) Close() error {
	return nil
}

func (r *TestMeterReader) Validate() error {
	return r.Err
}

func (r *TestMeterReader) GetInfo() (*MeterInfo, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return &MeterInfo{
		Manufacturer: "Zenschedule",
		Model:        "Smart Meter TS 65A-3",
		Version:      "1.2",
	}, nil
}

func (r *TestMeterReader) GetPowerWatt() (float64, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	return r.PowerWatt, nil
}

func (r *TestMeterReader) GetPowerFlow() (*MeterPowerFlow, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return &MeterPowerFlow{
		PowerWatt:        r.PowerWatt,
		TotalExportedKWh: 2770.34,
		TotalImportedKWh: 550.22,
		Frequency:        50,
		PhaseAVoltage:    234.24,
	}, nil
}

var _ MeterReader = (*TestMeterReader)(nil)
