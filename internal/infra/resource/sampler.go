// Package resource reads battery state from sysfs once per poll and turns
// it into a BatteryInfo snapshot, backed by the power estimator and the
// temperature catalog.
package resource

import (
	"fmt"
	"math"
	"time"

	"github.com/batfi/batfi/internal/domain"
	"github.com/batfi/batfi/internal/estimator"
	"github.com/batfi/batfi/internal/history"
	"github.com/batfi/batfi/internal/infra/sysfs"
	"github.com/batfi/batfi/internal/infra/thermal"
)

const (
	capacityTrendWindow = 5
	unknownText         = "Unknown"
)

// Sampler polls one battery. Not safe for concurrent use.
type Sampler struct {
	name     string
	a        attrs
	catalog  *thermal.Catalog
	est      *estimator.Estimator
	readings *history.Ring[domain.BatteryReading]
	now      func() time.Time
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) SamplerOption {
	return func(s *Sampler) { s.now = now }
}

// WithReadingHistory sets how many raw readings are kept. The default is
// the estimator's MaxHistory, so both histories hold the same span.
func WithReadingHistory(n int) SamplerOption {
	return func(s *Sampler) { s.readings = history.NewRing[domain.BatteryReading](n) }
}

// NewSampler creates a sampler for the named power_supply entry. catalog
// may be nil, in which case temperatures are always absent.
func NewSampler(src *sysfs.Source, name string, catalog *thermal.Catalog, est *estimator.Estimator, opts ...SamplerOption) *Sampler {
	s := &Sampler{
		name:     name,
		a:        attrs{src: src, dir: sysfs.SupplyDir(name)},
		catalog:  catalog,
		est:      est,
		readings: history.NewRing[domain.BatteryReading](est.Params().MaxHistory),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Name returns the battery name.
func (s *Sampler) Name() string { return s.name }

// Present reports whether the battery directory exists.
func (s *Sampler) Present() bool { return s.a.src.Exists(s.a.dir) }

// Estimator exposes the power estimator for display of its history.
func (s *Sampler) Estimator() *estimator.Estimator { return s.est }

// Catalog returns the temperature catalog, possibly nil.
func (s *Sampler) Catalog() *thermal.Catalog { return s.catalog }

// Poll runs one sampling cycle. It fails only when the battery is gone;
// any other missing attribute leaves the matching field nil.
func (s *Sampler) Poll() (*domain.BatteryInfo, error) {
	if !s.Present() {
		return nil, fmt.Errorf("%s: %w", s.name, domain.ErrBatteryNotFound)
	}
	ts := s.now()

	r := domain.BatteryReading{
		Timestamp:       ts,
		Status:          domain.StatusUnknown,
		CapacityPercent: s.capacity(),
	}
	if st, ok := s.a.text("status"); ok {
		r.Status = domain.ParseStatus(st)
	}
	if v, ok := s.a.scaled("voltage_now", 1e6)(); ok {
		r.VoltageV = &v
	}
	if c, ok := s.a.int("current_now"); ok {
		ma := clampInt32(c / 1000)
		r.CurrentMA = &ma
	}
	if e, ok := s.a.energyNow(); ok {
		r.EnergyNowWh = &e
	}
	if e, ok := s.a.energyFull(); ok {
		r.EnergyFullWh = &e
	}
	if p, ok := s.a.power(r.VoltageV, r.CurrentMA); ok {
		r.PowerW = &p
		s.est.Observe(domain.PowerSample{Timestamp: ts, PowerW: p, EnergyWh: r.EnergyNowWh})
	}

	var cpuTemp *float64
	if s.catalog != nil {
		if t, ok := s.catalog.QueryBattery(); ok {
			r.TemperatureC = &t.Celsius
		}
		if t, ok := s.catalog.QueryCPU(); ok {
			cpuTemp = &t.Celsius
		}
	}

	info := &domain.BatteryInfo{
		Name:            s.name,
		Status:          r.Status,
		CapacityPercent: r.CapacityPercent,
		HealthPercent:   s.a.health(r.EnergyFullWh),
		EnergyNowWh:     r.EnergyNowWh,
		EnergyFullWh:    r.EnergyFullWh,
		PowerW:          r.PowerW,
		VoltageV:        r.VoltageV,
		CurrentMA:       r.CurrentMA,
		TemperatureC:    r.TemperatureC,
		CPUTemperatureC: cpuTemp,
		PowerTrend:      s.est.Trend(),
		Accuracy:        s.est.Accuracy(),
		Samples:         s.est.SampleCount(),
		Manufacturer:    s.textOr("manufacturer"),
		Model:           s.textOr("model_name"),
		Technology:      s.textOr("technology"),
		Timestamp:       ts,
	}
	if e, ok := s.a.energyFullDesign(); ok {
		info.EnergyFullDesignWh = &e
	}
	if v, ok := s.est.Smoothed(); ok {
		info.SmoothedPowerW = &v
	}
	if v, ok := s.est.RollingAverage(); ok {
		info.RollingPowerW = &v
	}
	if m, ok := s.est.TimeRemaining(r); ok {
		info.TimeRemainingMinutes = &m
	}
	if c, ok := s.a.int("cycle_count"); ok && c >= 0 && c <= math.MaxUint32 {
		cycles := uint32(c)
		info.Cycles = &cycles
	}

	s.readings.Push(r)
	info.CapacityTrend = s.CapacityTrend()
	return info, nil
}

// CapacityTrend sums capacity steps over the newest readings.
func (s *Sampler) CapacityTrend() domain.Trend {
	recent := s.readings.LastN(capacityTrendWindow)
	caps := make([]float64, len(recent))
	for i, r := range recent {
		caps[i] = float64(r.CapacityPercent)
	}
	switch d := history.SumDelta(caps); {
	case d > 0:
		return domain.TrendIncreasing
	case d < 0:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

func (s *Sampler) capacity() uint8 {
	c, ok := s.a.int("capacity")
	if !ok {
		return 0
	}
	return uint8(min(max(c, 0), 100))
}

func (s *Sampler) textOr(name string) string {
	if v, ok := s.a.text(name); ok {
		return v
	}
	return unknownText
}

func clampInt32(v int64) int32 {
	return int32(min(max(v, math.MinInt32), math.MaxInt32))
}
