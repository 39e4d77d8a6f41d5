package sunspec_meter

const (
	SUNSPEC_MARKER            = "SunS"
	SUNSPEC_BASE_ADDRESS      = 40000
	SUNSPEC_WK_COMMON         = 1
	SUNSPEC_WK_METER_MIN      = 201
	SUNSPEC_WK_METER_MAX      = 204
	SUNSPEC_WK_END            = 0xFFFF
	DEFAULT_MODBUS_PORT       = 502
	DEFAULT_FRONIUS_METER_ID  = 240
	FRONIUS_MANUFACTURER_NAME = "Fronius"
)

type MeterInfo struct {
	Manufacturer string
	Model        string
	Version      string
	Serial       string
}

type MeterPowerFlow struct {
	// Positive = import. Negative = export
	PowerWatt        float64
	TotalExportedKWh float64
	TotalImportedKWh float64
	Frequency        float64
	PhaseAVoltage    float64
}

type MeterReader interface {
	Open() error
	Close() error
	Validate() error
	GetInfo() (*MeterInfo, error)
	GetPowerWatt() (float64, error)
	GetPowerFlow() (*MeterPowerFlow, error)
}
