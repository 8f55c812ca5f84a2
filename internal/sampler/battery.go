package sampler

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const powerSupplyRoot = "/sys/class/power_supply"

type batterySampler struct {
	root string
}

// NewBatterySampler returns a sampler reading battery state from sysfs.
// Hosts without a battery report absence, not an error.
func NewBatterySampler() BatterySampler {
	return &batterySampler{root: powerSupplyRoot}
}

func (s *batterySampler) Sample() (BatteryReading, bool, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		// No power supply class at all: absent, not broken.
		return BatteryReading{}, false, nil
	}

	for _, entry := range entries {
		dir := filepath.Join(s.root, entry.Name())
		if readSysfs(dir, "type") != "Battery" {
			continue
		}

		reading := BatteryReading{CapturedAt: time.Now()}

		capacity, err := strconv.ParseFloat(readSysfs(dir, "capacity"), 64)
		if err != nil {
			continue
		}
		reading.Percent = capacity

		status := readSysfs(dir, "status")
		reading.PluggedIn = status == "Charging" || status == "Full"

		// Remaining time from charge counters when the driver exposes them.
		if now, err := strconv.ParseFloat(readSysfs(dir, "charge_now"), 64); err == nil {
			if current, err := strconv.ParseFloat(readSysfs(dir, "current_now"), 64); err == nil && current > 0 && !reading.PluggedIn {
				hours := now / current
				reading.TimeLeft = time.Duration(hours * float64(time.Hour))
				reading.TimeLeftKnown = true
			}
		}

		return reading, true, nil
	}

	return BatteryReading{}, false, nil
}

func readSysfs(dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}
