// Package metrics provides Prometheus metrics for batfi: one gauge per
// snapshot field, labelled by battery, plus poll and sink counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/batfi/batfi/internal/domain"
)

// ─── Battery ────────────────────────────────────────────────────────────────

// CapacityPercent tracks state of charge.
var CapacityPercent = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "batfi",
	Name:      "capacity_percent",
	Help:      "Battery state of charge in percent.",
}, []string{"battery"})

// HealthPercent tracks full capacity against design capacity.
var HealthPercent = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "batfi",
	Name:      "health_percent",
	Help:      "Full charge capacity relative to design capacity.",
}, []string{"battery"})

// EnergyWattHours tracks stored energy.
var EnergyWattHours = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "batfi",
	Name:      "energy_watt_hours",
	Help:      "Energy now and at full charge.",
}, []string{"battery", "kind"})

// PowerWatts tracks instantaneous and smoothed power draw.
var PowerWatts = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "batfi",
	Name:      "power_watts",
	Help:      "Power draw by estimate kind (instant, smoothed, rolling).",
}, []string{"battery", "kind"})

// VoltageVolts tracks terminal voltage.
var VoltageVolts = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "batfi",
	Name:      "voltage_volts",
	Help:      "Battery voltage.",
}, []string{"battery"})

// CurrentAmps tracks signed current; negative while discharging.
var CurrentAmps = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "batfi",
	Name:      "current_amps",
	Help:      "Battery current.",
}, []string{"battery"})

// TimeRemainingSeconds tracks the runtime estimate.
var TimeRemainingSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "batfi",
	Name:      "time_remaining_seconds",
	Help:      "Estimated time until empty or full.",
}, []string{"battery", "status"})

// Cycles tracks charge cycle count.
var Cycles = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "batfi",
	Name:      "cycles",
	Help:      "Charge cycle count.",
}, []string{"battery"})

// ─── Thermal ────────────────────────────────────────────────────────────────

// TemperatureCelsius tracks CPU and battery temperature.
var TemperatureCelsius = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "batfi",
	Name:      "temperature_celsius",
	Help:      "Temperature by source (cpu, battery).",
}, []string{"battery", "source"})

// ─── Pipeline ───────────────────────────────────────────────────────────────

// PollsTotal counts poll cycles by outcome.
var PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "batfi",
	Name:      "polls_total",
	Help:      "Total poll cycles.",
}, []string{"battery", "result"})

// SinkErrors counts failed deliveries to store, mqtt or stream.
var SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "batfi",
	Name:      "sink_errors_total",
	Help:      "Failed snapshot deliveries by sink.",
}, []string{"sink"})

// StreamClients tracks connected websocket clients.
var StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "batfi",
	Name:      "stream_clients",
	Help:      "Connected live stream clients.",
})

// Observe records a snapshot. Absent fields have their series removed so
// stale values are not scraped.
func Observe(info *domain.BatteryInfo) {
	b := info.Name
	PollsTotal.WithLabelValues(b, "ok").Inc()
	CapacityPercent.WithLabelValues(b).Set(float64(info.CapacityPercent))

	if info.HealthKnown() {
		HealthPercent.WithLabelValues(b).Set(info.HealthPercent)
	} else {
		HealthPercent.DeleteLabelValues(b)
	}

	setOrDelete(EnergyWattHours, info.EnergyNowWh, b, "now")
	setOrDelete(EnergyWattHours, info.EnergyFullWh, b, "full")
	setOrDelete(PowerWatts, info.PowerW, b, "instant")
	setOrDelete(PowerWatts, info.SmoothedPowerW, b, "smoothed")
	setOrDelete(PowerWatts, info.RollingPowerW, b, "rolling")
	setOrDelete(VoltageVolts, info.VoltageV, b)
	setOrDelete(TemperatureCelsius, info.TemperatureC, b, "battery")
	setOrDelete(TemperatureCelsius, info.CPUTemperatureC, b, "cpu")

	if info.CurrentMA != nil {
		CurrentAmps.WithLabelValues(b).Set(float64(*info.CurrentMA) / 1000)
	} else {
		CurrentAmps.DeleteLabelValues(b)
	}
	if info.Cycles != nil {
		Cycles.WithLabelValues(b).Set(float64(*info.Cycles))
	} else {
		Cycles.DeleteLabelValues(b)
	}

	TimeRemainingSeconds.DeletePartialMatch(prometheus.Labels{"battery": b})
	if info.TimeRemainingMinutes != nil {
		TimeRemainingSeconds.WithLabelValues(b, string(info.Status)).Set(float64(*info.TimeRemainingMinutes) * 60)
	}
}

// PollFailed counts a failed poll cycle.
func PollFailed(battery string) {
	PollsTotal.WithLabelValues(battery, "error").Inc()
}

func setOrDelete(g *prometheus.GaugeVec, v *float64, labels ...string) {
	if v == nil {
		g.DeleteLabelValues(labels...)
		return
	}
	g.WithLabelValues(labels...).Set(*v)
}
