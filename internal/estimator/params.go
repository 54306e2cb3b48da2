package estimator

// Params holds every tunable of the estimator. The charge-curve and
// fallback-capacity figures are empirical; DefaultParams reproduces them.
type Params struct {
	Alpha             float64 `toml:"alpha"`               // EMA weight of the newest sample
	RollingWindow     int     `toml:"rolling_window"`      // samples in the rolling average
	MinRollingSamples int     `toml:"min_rolling_samples"` // below this the rolling average is the EMA
	MinPowerW         float64 `toml:"min_power_w"`         // smaller draws are treated as noise
	MinSamples        int     `toml:"min_samples"`         // power samples before any estimate
	MaxHistory        int     `toml:"max_history"`
	TrendWindow       int     `toml:"trend_window"`
	TrendThresholdW   float64 `toml:"trend_threshold_w"`

	// Charging efficiency curve over charge progress (energy_now/energy_full).
	TrickleProgress   float64 `toml:"trickle_progress"`
	TrickleEfficiency float64 `toml:"trickle_efficiency"`
	TaperProgress     float64 `toml:"taper_progress"`
	TaperBase         float64 `toml:"taper_base"`
	TaperPivot        float64 `toml:"taper_pivot"`
	TaperSlope        float64 `toml:"taper_slope"`
	BulkEfficiency    float64 `toml:"bulk_efficiency"`

	// Voltage/current fallback when energy attributes are missing.
	DischargeAh             float64 `toml:"discharge_ah"`
	HighVoltageV            float64 `toml:"high_voltage_v"`
	HighVoltageAh           float64 `toml:"high_voltage_ah"`
	MidVoltageV             float64 `toml:"mid_voltage_v"`
	MidVoltageAh            float64 `toml:"mid_voltage_ah"`
	LowVoltageAh            float64 `toml:"low_voltage_ah"`
	FallbackTaperPercent    float64 `toml:"fallback_taper_percent"`
	FallbackTaperEfficiency float64 `toml:"fallback_taper_efficiency"`
	FallbackBulkEfficiency  float64 `toml:"fallback_bulk_efficiency"`
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		Alpha:             0.25,
		RollingWindow:     10,
		MinRollingSamples: 3,
		MinPowerW:         0.05,
		MinSamples:        3,
		MaxHistory:        300,
		TrendWindow:       5,
		TrendThresholdW:   0.5,

		TrickleProgress:   0.95,
		TrickleEfficiency: 0.3,
		TaperProgress:     0.8,
		TaperBase:         0.6,
		TaperPivot:        0.9,
		TaperSlope:        2.0,
		BulkEfficiency:    0.9,

		DischargeAh:             3.0,
		HighVoltageV:            12,
		HighVoltageAh:           4.0,
		MidVoltageV:             7,
		MidVoltageAh:            3.0,
		LowVoltageAh:            2.0,
		FallbackTaperPercent:    80,
		FallbackTaperEfficiency: 0.7,
		FallbackBulkEfficiency:  0.9,
	}
}

// withDefaults fills zero fields from DefaultParams so a partial TOML
// section still yields a usable estimator.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	fill := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	fillInt := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&p.Alpha, d.Alpha)
	fillInt(&p.RollingWindow, d.RollingWindow)
	fillInt(&p.MinRollingSamples, d.MinRollingSamples)
	fill(&p.MinPowerW, d.MinPowerW)
	fillInt(&p.MinSamples, d.MinSamples)
	fillInt(&p.MaxHistory, d.MaxHistory)
	fillInt(&p.TrendWindow, d.TrendWindow)
	fill(&p.TrendThresholdW, d.TrendThresholdW)
	fill(&p.TrickleProgress, d.TrickleProgress)
	fill(&p.TrickleEfficiency, d.TrickleEfficiency)
	fill(&p.TaperProgress, d.TaperProgress)
	fill(&p.TaperBase, d.TaperBase)
	fill(&p.TaperPivot, d.TaperPivot)
	fill(&p.TaperSlope, d.TaperSlope)
	fill(&p.BulkEfficiency, d.BulkEfficiency)
	fill(&p.DischargeAh, d.DischargeAh)
	fill(&p.HighVoltageV, d.HighVoltageV)
	fill(&p.HighVoltageAh, d.HighVoltageAh)
	fill(&p.MidVoltageV, d.MidVoltageV)
	fill(&p.MidVoltageAh, d.MidVoltageAh)
	fill(&p.LowVoltageAh, d.LowVoltageAh)
	fill(&p.FallbackTaperPercent, d.FallbackTaperPercent)
	fill(&p.FallbackTaperEfficiency, d.FallbackTaperEfficiency)
	fill(&p.FallbackBulkEfficiency, d.FallbackBulkEfficiency)
	if p.Alpha > 1 {
		p.Alpha = d.Alpha
	}
	return p
}
