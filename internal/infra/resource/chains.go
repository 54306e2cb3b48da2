package resource

import (
	"math"
	"path"

	"github.com/batfi/batfi/internal/infra/sysfs"
)

// strategy is one way of computing a value; false means "try the next".
type strategy func() (float64, bool)

// firstOf runs strategies in order and returns the first success.
func firstOf(strategies ...strategy) (float64, bool) {
	for _, s := range strategies {
		if v, ok := s(); ok {
			return v, true
		}
	}
	return 0, false
}

// attrs reads numeric attributes of one power_supply directory.
type attrs struct {
	src *sysfs.Source
	dir string
}

func (a attrs) float(name string) (float64, bool) {
	v, err := a.src.ReadFloat(path.Join(a.dir, name))
	return v, err == nil
}

func (a attrs) int(name string) (int64, bool) {
	v, err := a.src.ReadInt(path.Join(a.dir, name))
	return v, err == nil
}

func (a attrs) text(name string) (string, bool) {
	v, err := a.src.ReadString(path.Join(a.dir, name))
	return v, err == nil && v != ""
}

// scaled reads name and divides by factor (µWh -> Wh, µW -> W, µV -> V).
func (a attrs) scaled(name string, factor float64) strategy {
	return func() (float64, bool) {
		v, ok := a.float(name)
		if !ok {
			return 0, false
		}
		return v / factor, true
	}
}

// chargeTimesVoltage derives Wh from a µAh attribute and voltage_now (µV).
func (a attrs) chargeTimesVoltage(charge string) strategy {
	return func() (float64, bool) {
		c, ok := a.float(charge)
		if !ok {
			return 0, false
		}
		v, ok := a.float("voltage_now")
		if !ok {
			return 0, false
		}
		return c * v / 1e12, true
	}
}

// ratio returns 100·num/den when den is positive.
func (a attrs) ratio(num, den string) strategy {
	return func() (float64, bool) {
		n, ok := a.float(num)
		if !ok {
			return 0, false
		}
		d, ok := a.float(den)
		if !ok || d <= 0 {
			return 0, false
		}
		return n / d * 100, true
	}
}

// Energy chains, in Wh.
func (a attrs) energyNow() (float64, bool) {
	return firstOf(a.scaled("energy_now", 1e6), a.chargeTimesVoltage("charge_now"))
}

func (a attrs) energyFull() (float64, bool) {
	return firstOf(a.scaled("energy_full", 1e6), a.chargeTimesVoltage("charge_full"))
}

func (a attrs) energyFullDesign() (float64, bool) {
	return firstOf(a.scaled("energy_full_design", 1e6), a.chargeTimesVoltage("charge_full_design"))
}

// power prefers power_now and falls back to V·|I|.
func (a attrs) power(voltage *float64, currentMA *int32) (float64, bool) {
	derived := func() (float64, bool) {
		if voltage == nil || currentMA == nil {
			return 0, false
		}
		return *voltage * math.Abs(float64(*currentMA)) / 1000, true
	}
	return firstOf(a.scaled("power_now", 1e6), derived)
}

// health is full/design capacity in percent, or 0 when unknown. The energy
// ratio uses the already resolved energy_full so both chains agree.
func (a attrs) health(energyFull *float64) float64 {
	fromEnergy := func() (float64, bool) {
		if energyFull == nil {
			return 0, false
		}
		design, ok := a.float("energy_full_design")
		if !ok || design <= 0 {
			return 0, false
		}
		return *energyFull / (design / 1e6) * 100, true
	}
	v, ok := firstOf(fromEnergy, a.ratio("charge_full", "charge_full_design"))
	if !ok {
		return 0
	}
	return v
}
