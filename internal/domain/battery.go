// Package domain holds the pure battery and sensor types shared by the
// estimation engine and its outer surfaces. No infrastructure imports.
package domain

import (
	"strings"
	"time"
)

// Status is the kernel-reported charge state of a battery.
type Status string

const (
	StatusCharging    Status = "Charging"
	StatusDischarging Status = "Discharging"
	StatusFull        Status = "Full"
	StatusNotCharging Status = "Not charging"
	StatusUnknown     Status = "Unknown"
)

// ParseStatus maps a raw status attribute onto a known Status.
// Anything unrecognized is StatusUnknown.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "charging":
		return StatusCharging
	case "discharging":
		return StatusDischarging
	case "full":
		return StatusFull
	case "not charging":
		return StatusNotCharging
	default:
		return StatusUnknown
	}
}

// Estimable reports whether a runtime estimate means anything in this state.
func (s Status) Estimable() bool {
	return s == StatusCharging || s == StatusDischarging
}

// Trend classifies the direction of a recent series.
type Trend string

const (
	TrendStable     Trend = "stable"
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
)

// Accuracy grades how much history backs the current estimate.
type Accuracy string

const (
	AccuracyCalibrating Accuracy = "calibrating"
	AccuracyMedium      Accuracy = "medium"
	AccuracyHigh        Accuracy = "high"
	AccuracyUltra       Accuracy = "ultra"
)

// PowerSample is one observed instantaneous power draw.
type PowerSample struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	PowerW    float64   `json:"power_w" yaml:"power_w"`
	EnergyWh  *float64  `json:"energy_wh" yaml:"energy_wh"`
}

// BatteryReading is the raw state captured in a single poll.
// Nil pointers mean the source was unavailable this cycle.
type BatteryReading struct {
	Timestamp       time.Time
	CapacityPercent uint8
	EnergyNowWh     *float64
	EnergyFullWh    *float64
	PowerW          *float64
	VoltageV        *float64
	CurrentMA       *int32
	Status          Status
	TemperatureC    *float64
}

// BatteryInfo is the snapshot handed to presentation and sinks.
// It is produced fresh each cycle and never mutated afterwards.
type BatteryInfo struct {
	Name            string  `json:"name" yaml:"name"`
	Status          Status  `json:"status" yaml:"status"`
	CapacityPercent uint8   `json:"capacity_percent" yaml:"capacity_percent"`
	HealthPercent   float64 `json:"health_percent" yaml:"health_percent"` // 0 means unknown

	EnergyNowWh        *float64 `json:"energy_now_wh" yaml:"energy_now_wh"`
	EnergyFullWh       *float64 `json:"energy_full_wh" yaml:"energy_full_wh"`
	EnergyFullDesignWh *float64 `json:"energy_full_design_wh" yaml:"energy_full_design_wh"`

	PowerW         *float64 `json:"power_w" yaml:"power_w"`
	SmoothedPowerW *float64 `json:"smoothed_power_w" yaml:"smoothed_power_w"`
	RollingPowerW  *float64 `json:"rolling_power_w" yaml:"rolling_power_w"`
	VoltageV       *float64 `json:"voltage_v" yaml:"voltage_v"`
	CurrentMA      *int32   `json:"current_ma" yaml:"current_ma"`

	TemperatureC    *float64 `json:"temperature_c" yaml:"temperature_c"`
	CPUTemperatureC *float64 `json:"cpu_temperature_c" yaml:"cpu_temperature_c"`

	TimeRemainingMinutes *uint32  `json:"time_remaining_minutes" yaml:"time_remaining_minutes"`
	PowerTrend           Trend    `json:"power_trend" yaml:"power_trend"`
	CapacityTrend        Trend    `json:"capacity_trend" yaml:"capacity_trend"`
	Accuracy             Accuracy `json:"accuracy" yaml:"accuracy"`
	Samples              int      `json:"samples" yaml:"samples"`

	Cycles       *uint32 `json:"cycles" yaml:"cycles"`
	Manufacturer string  `json:"manufacturer" yaml:"manufacturer"`
	Model        string  `json:"model" yaml:"model"`
	Technology   string  `json:"technology" yaml:"technology"`

	SessionID string    `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// TimeRemaining returns the estimate as a duration.
func (b *BatteryInfo) TimeRemaining() (time.Duration, bool) {
	if b.TimeRemainingMinutes == nil {
		return 0, false
	}
	return time.Duration(*b.TimeRemainingMinutes) * time.Minute, true
}

// HealthKnown reports whether HealthPercent carries a real value.
func (b *BatteryInfo) HealthKnown() bool {
	return b.HealthPercent > 0
}
