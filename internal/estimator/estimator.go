// Package estimator turns a noisy stream of instantaneous power samples
// into a smoothed power figure, a trend and a time-remaining estimate.
//
// An Estimator is owned by a single sampler and is not safe for
// concurrent use.
package estimator

import (
	"math"

	"github.com/batfi/batfi/internal/domain"
	"github.com/batfi/batfi/internal/history"
)

// Weight tiers by power history size: instantaneous, smoothed, rolling.
const earlyHistory = 5

type weights struct{ inst, ema, rolling float64 }

var (
	earlyWeights  = weights{0.8, 0.2, 0}
	middleWeights = weights{0.5, 0.5, 0}
	matureWeights = weights{0.2, 0.3, 0.5}
)

// Estimator keeps the smoothing state and the bounded power history.
type Estimator struct {
	p       Params
	ema     float64
	seeded  bool
	window  *history.Ring[float64]
	samples *history.Ring[domain.PowerSample]
}

// New creates an estimator. Zero fields in p take their defaults.
func New(p Params) *Estimator {
	p = p.withDefaults()
	return &Estimator{
		p:       p,
		window:  history.NewRing[float64](p.RollingWindow),
		samples: history.NewRing[domain.PowerSample](p.MaxHistory),
	}
}

// Params returns the effective tuning.
func (e *Estimator) Params() Params { return e.p }

// Observe feeds one instantaneous power sample. Timestamps that go
// backwards are clamped to the previous sample's.
func (e *Estimator) Observe(s domain.PowerSample) {
	if last, ok := e.samples.Last(); ok && s.Timestamp.Before(last.Timestamp) {
		s.Timestamp = last.Timestamp
	}
	if e.seeded {
		e.ema = e.p.Alpha*s.PowerW + (1-e.p.Alpha)*e.ema
	} else {
		e.ema = s.PowerW
		e.seeded = true
	}
	e.window.Push(s.PowerW)
	e.samples.Push(s)
}

// Smoothed returns the exponential moving average.
func (e *Estimator) Smoothed() (float64, bool) {
	return e.ema, e.seeded
}

// RollingAverage returns the mean of the rolling window, or the EMA while
// the window is still short.
func (e *Estimator) RollingAverage() (float64, bool) {
	if e.window.Len() < e.p.MinRollingSamples {
		return e.Smoothed()
	}
	return history.Mean(e.window.Slice()), true
}

// SampleCount is the size of the power history.
func (e *Estimator) SampleCount() int { return e.samples.Len() }

// WindowLen is the number of samples in the rolling window.
func (e *Estimator) WindowLen() int { return e.window.Len() }

// Samples returns a copy of the power history, oldest first.
func (e *Estimator) Samples() []domain.PowerSample { return e.samples.Slice() }

// Reset forgets all history.
func (e *Estimator) Reset() {
	e.ema, e.seeded = 0, false
	e.window.Reset()
	e.samples.Reset()
}

// WeightedPower blends inst with the smoothed and rolling figures, leaning
// on history more as it accumulates.
func (e *Estimator) WeightedPower(inst float64) (float64, bool) {
	ema, ok := e.Smoothed()
	if !ok {
		return 0, false
	}
	rolling, _ := e.RollingAverage()

	w := matureWeights
	switch n := e.samples.Len(); {
	case n < earlyHistory:
		w = earlyWeights
	case n < e.p.RollingWindow:
		w = middleWeights
	}
	return w.inst*inst + w.ema*ema + w.rolling*rolling, true
}

// TimeRemaining estimates minutes until empty (discharging) or full
// (charging). It reports false while calibrating, when power is negligible,
// or in states where runtime is meaningless.
func (e *Estimator) TimeRemaining(r domain.BatteryReading) (uint32, bool) {
	if r.PowerW == nil || !r.Status.Estimable() {
		return 0, false
	}
	inst := *r.PowerW
	if math.Abs(inst) < e.p.MinPowerW || e.samples.Len() < e.p.MinSamples {
		return 0, false
	}
	w, ok := e.WeightedPower(inst)
	if !ok {
		return 0, false
	}

	if r.Status == domain.StatusCharging {
		return e.untilFull(r, w)
	}
	return e.untilEmpty(r, w)
}

func (e *Estimator) untilEmpty(r domain.BatteryReading, w float64) (uint32, bool) {
	if r.EnergyNowWh != nil {
		if w <= 0 {
			return 0, false
		}
		return minutes(*r.EnergyNowWh / w)
	}

	if r.VoltageV == nil || r.CurrentMA == nil {
		return 0, false
	}
	v, ma := *r.VoltageV, *r.CurrentMA
	if ma >= 0 || v <= 0 {
		return 0, false
	}
	energy := v * e.p.DischargeAh * float64(r.CapacityPercent) / 100
	power := v * math.Abs(float64(ma)) / 1000
	if power <= e.p.MinPowerW {
		return 0, false
	}
	return minutes(energy / power)
}

func (e *Estimator) untilFull(r domain.BatteryReading, w float64) (uint32, bool) {
	if r.EnergyNowWh != nil && r.EnergyFullWh != nil {
		now, full := *r.EnergyNowWh, *r.EnergyFullWh
		if w <= 0 || full <= 0 {
			return 0, false
		}
		eff := e.ChargeEfficiency(now / full)
		if eff <= 0 {
			return 0, false
		}
		return minutes((full - now) / (w * eff))
	}

	if r.VoltageV == nil || r.CurrentMA == nil {
		return 0, false
	}
	v, ma := *r.VoltageV, *r.CurrentMA
	if ma <= 0 || v <= 0 {
		return 0, false
	}
	remaining := float64(100-min(r.CapacityPercent, 100)) / 100
	needed := v * e.assumedAh(v) * remaining
	eff := e.p.FallbackBulkEfficiency
	if float64(r.CapacityPercent) > e.p.FallbackTaperPercent {
		eff = e.p.FallbackTaperEfficiency
	}
	effective := v * float64(ma) / 1000 * eff
	if effective <= e.p.MinPowerW {
		return 0, false
	}
	return minutes(needed / effective)
}

// ChargeEfficiency models charging slowing down near full: trickle above
// TrickleProgress, a linear taper above TaperProgress, bulk otherwise.
func (e *Estimator) ChargeEfficiency(progress float64) float64 {
	switch {
	case progress > e.p.TrickleProgress:
		return e.p.TrickleEfficiency
	case progress > e.p.TaperProgress:
		return e.p.TaperBase + (e.p.TaperPivot-progress)*e.p.TaperSlope
	default:
		return e.p.BulkEfficiency
	}
}

func (e *Estimator) assumedAh(v float64) float64 {
	switch {
	case v > e.p.HighVoltageV:
		return e.p.HighVoltageAh
	case v > e.p.MidVoltageV:
		return e.p.MidVoltageAh
	default:
		return e.p.LowVoltageAh
	}
}

// minutes converts hours to whole minutes, at least one, clamped to uint32.
func minutes(hours float64) (uint32, bool) {
	m := math.Round(hours * 60)
	switch {
	case math.IsNaN(m):
		return 0, false
	case m < 1:
		return 1, true
	case m > math.MaxUint32:
		return math.MaxUint32, true
	default:
		return uint32(m), true
	}
}

// Trend classifies the mean step across the newest TrendWindow samples.
func (e *Estimator) Trend() domain.Trend {
	if e.samples.Len() < e.p.TrendWindow {
		return domain.TrendStable
	}
	recent := e.samples.LastN(e.p.TrendWindow)
	powers := make([]float64, len(recent))
	for i, s := range recent {
		powers[i] = s.PowerW
	}
	switch d := history.MeanDelta(powers); {
	case d > e.p.TrendThresholdW:
		return domain.TrendIncreasing
	case d < -e.p.TrendThresholdW:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

// Accuracy grades the estimate by how much history backs it.
func (e *Estimator) Accuracy() domain.Accuracy {
	n := e.samples.Len()
	switch {
	case e.window.Full():
		return domain.AccuracyUltra
	case n >= 3*e.p.MinSamples:
		return domain.AccuracyHigh
	case n >= e.p.MinSamples:
		return domain.AccuracyMedium
	default:
		return domain.AccuracyCalibrating
	}
}
