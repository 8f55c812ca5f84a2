package sampler

import (
	"strings"
	"time"

	"codeberg.org/mutker/sysmond/internal/errors"
	"github.com/shirou/gopsutil/v3/host"
)

type thermalSampler struct{}

// NewThermalSampler returns a sampler reading temperature sensors. Hosts
// exposing no sensors report absence, not an error.
func NewThermalSampler() ThermalSampler {
	return &thermalSampler{}
}

func (*thermalSampler) Sample() (ThermalReading, bool, error) {
	errFactory := errors.New()

	sensors, err := host.SensorsTemperatures()
	if err != nil && len(sensors) == 0 {
		return ThermalReading{}, false, errFactory.Wrap(errors.ErrSamplerFailed, err)
	}

	reading := ThermalReading{CapturedAt: time.Now()}
	found := false
	cpuFound := false

	for _, sensor := range sensors {
		if sensor.Temperature <= 0 {
			continue
		}
		if !found || sensor.Temperature > reading.MaxTempC {
			reading.MaxTempC = sensor.Temperature
		}
		found = true

		if isCPUSensor(sensor.SensorKey) && (!cpuFound || sensor.Temperature > reading.CPUTempC) {
			reading.CPUTempC = sensor.Temperature
			cpuFound = true
		}
	}

	if !found {
		return ThermalReading{}, false, nil
	}
	if !cpuFound {
		reading.CPUTempC = reading.MaxTempC
	}

	return reading, true, nil
}

// isCPUSensor matches the sensor keys the common CPU temperature drivers
// register under.
func isCPUSensor(key string) bool {
	key = strings.ToLower(key)
	for _, label := range []string{"coretemp", "k10temp", "cpu", "soc", "package"} {
		if strings.Contains(key, label) {
			return true
		}
	}

	return false
}
