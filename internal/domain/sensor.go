package domain

import (
	"strings"
	"time"
)

// Family is the hwmon driver family of a temperature source.
type Family int

const (
	FamilyOther Family = iota
	FamilyCoretemp
	FamilyK10Temp
	FamilyZenPower
	FamilyAMDGPU
)

// ParseFamily maps a hwmon "name" attribute onto a Family.
func ParseFamily(name string) Family {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "coretemp":
		return FamilyCoretemp
	case "k10temp":
		return FamilyK10Temp
	case "zenpower":
		return FamilyZenPower
	case "amdgpu":
		return FamilyAMDGPU
	default:
		return FamilyOther
	}
}

// String returns the driver tag.
func (f Family) String() string {
	switch f {
	case FamilyCoretemp:
		return "coretemp"
	case FamilyK10Temp:
		return "k10temp"
	case FamilyZenPower:
		return "zenpower"
	case FamilyAMDGPU:
		return "amdgpu"
	default:
		return "other"
	}
}

// Priority orders CPU sources; lower wins.
func (f Family) Priority() int {
	switch f {
	case FamilyCoretemp:
		return 1
	case FamilyK10Temp:
		return 2
	case FamilyZenPower:
		return 3
	case FamilyAMDGPU:
		return 4
	default:
		return 9
	}
}

// AcceptsLabel reports whether a channel with this label is a CPU package
// temperature for the family. An empty label means the channel has none.
func (f Family) AcceptsLabel(label string) bool {
	l := strings.ToLower(strings.TrimSpace(label))
	switch f {
	case FamilyCoretemp:
		return l == "" || strings.Contains(l, "package")
	case FamilyK10Temp:
		return l == "" || strings.Contains(l, "tctl") || strings.Contains(l, "tdie")
	case FamilyZenPower:
		return l == "" || strings.Contains(l, "tctl") || strings.Contains(l, "tdie") || strings.Contains(l, "die")
	case FamilyAMDGPU:
		return strings.Contains(l, "edge")
	default:
		return false
	}
}

// Sensor kinds that are not hwmon driver families.
const (
	KindBattery     = "battery"
	KindThermalZone = "thermal_zone"
)

// TemperatureSensor identifies one discovered temperature source.
type TemperatureSensor struct {
	Kind  string `json:"kind" yaml:"kind"`
	Path  string `json:"path" yaml:"path"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	Name  string `json:"name" yaml:"name"`
}

// Family returns the driver family for hwmon sensors.
func (s TemperatureSensor) Family() Family {
	return ParseFamily(s.Kind)
}

// DisplayName is the name plus label, when there is one.
func (s TemperatureSensor) DisplayName() string {
	if s.Label == "" {
		return s.Name
	}
	return s.Name + " " + s.Label
}

// TemperatureReading is a fresh, validated temperature.
type TemperatureReading struct {
	Celsius   float64           `json:"celsius" yaml:"celsius"`
	Sensor    TemperatureSensor `json:"sensor" yaml:"sensor"`
	SampledAt time.Time         `json:"sampled_at" yaml:"sampled_at"`
}

// Fahrenheit converts the reading for display.
func (r TemperatureReading) Fahrenheit() float64 {
	return CelsiusToFahrenheit(r.Celsius)
}

// CelsiusToFahrenheit converts a temperature.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// SensorReport is a point-in-time copy of the catalog and its last-known
// readings, safe to hand to other goroutines.
type SensorReport struct {
	CPU         []TemperatureSensor `json:"cpu" yaml:"cpu"`
	Battery     []TemperatureSensor `json:"battery" yaml:"battery"`
	LastCPU     *TemperatureReading `json:"last_cpu" yaml:"last_cpu"`
	LastBattery *TemperatureReading `json:"last_battery" yaml:"last_battery"`
}
