package config

const (
	DefaultSensorName          = "am2315"
	DefaultAdapter             = AdapterMCP2221
	DefaultDevice              = "/dev/i2c-1"
	DefaultAddress             = 0x5C
	DefaultMinUpdateIntervalMs = 2000
	DefaultTickMs              = 250
	DefaultPrometheusListen    = ":9115"
	DefaultModbusTimeoutMs     = 1000
	DefaultModbusUnitID        = 1
)

// Normalize fills in defaults for omitted fields.
func Normalize(cfg *Config) {
	s := &cfg.Sensor
	if s.Name == "" {
		s.Name = DefaultSensorName
	}
	if s.Adapter == "" {
		s.Adapter = DefaultAdapter
	}
	if s.Device == "" && s.Adapter == AdapterGeneric {
		s.Device = DefaultDevice
	}
	if s.Address == 0 {
		s.Address = DefaultAddress
	}
	if s.MinUpdateIntervalMs == nil {
		interval := DefaultMinUpdateIntervalMs
		s.MinUpdateIntervalMs = &interval
	}
	if cfg.Monitor.TickMs == 0 {
		cfg.Monitor.TickMs = DefaultTickMs
	}
	if p := cfg.Publish.Prometheus; p != nil && p.Listen == "" {
		p.Listen = DefaultPrometheusListen
	}
	if m := cfg.Publish.Modbus; m != nil {
		if m.TimeoutMs == 0 {
			m.TimeoutMs = DefaultModbusTimeoutMs
		}
		if m.UnitID == 0 {
			m.UnitID = DefaultModbusUnitID
		}
	}
}
