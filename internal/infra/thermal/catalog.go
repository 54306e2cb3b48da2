// Package thermal discovers which temperature sources on this machine are
// usable CPU or battery sensors and answers point-in-time queries on them.
package thermal

import (
	"io"
	"log"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/batfi/batfi/internal/domain"
	"github.com/batfi/batfi/internal/infra/sysfs"
)

// Valid temperature band in Celsius, inclusive.
const (
	MinValidCelsius = 10.0
	MaxValidCelsius = 110.0
)

// ValidTemperature reports whether c lies within the plausible band.
func ValidTemperature(c float64) bool {
	return c >= MinValidCelsius && c <= MaxValidCelsius
}

// NormalizeBatteryTemp converts a raw battery temperature whose unit varies
// by kernel: millidegrees above 1000, decidegrees above 200, else Celsius.
func NormalizeBatteryTemp(raw float64) float64 {
	switch {
	case raw > 1000:
		return raw / 1000
	case raw > 200:
		return raw / 10
	default:
		return raw
	}
}

// IsCPUSensor reports whether a hwmon channel of the given driver and label
// measures CPU package temperature.
func IsCPUSensor(kind, label string) bool {
	return domain.ParseFamily(kind).AcceptsLabel(label)
}

// Catalog is the result of discovery. Sensor lists are fixed; only the
// last-known readings change on query.
type Catalog struct {
	src     *sysfs.Source
	logger  *log.Logger
	now     func() time.Time
	cpu     []domain.TemperatureSensor
	battery []domain.TemperatureSensor

	lastCPU     *domain.TemperatureReading
	lastBattery *domain.TemperatureReading
}

// Option configures Discover.
type Option func(*Catalog)

// WithLogger routes discovery decisions to l.
func WithLogger(l *log.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

// WithClock overrides the reading timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

// Discover scans src for CPU and battery temperature sources. It never
// fails: unreadable groups and channels are left out, and an empty
// catalog is a valid result.
func Discover(src *sysfs.Source, opts ...Option) *Catalog {
	c := &Catalog{
		src:    src,
		logger: log.New(io.Discard, "", 0),
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	c.cpu = c.discoverCPU()
	c.battery = c.discoverBattery()
	c.logger.Printf("[sensors] catalog: %d cpu, %d battery", len(c.cpu), len(c.battery))
	return c
}

// CPUSensors returns the CPU sources in priority order.
func (c *Catalog) CPUSensors() []domain.TemperatureSensor {
	return append([]domain.TemperatureSensor(nil), c.cpu...)
}

// BatterySensors returns the battery sources in discovery order.
func (c *Catalog) BatterySensors() []domain.TemperatureSensor {
	return append([]domain.TemperatureSensor(nil), c.battery...)
}

// Empty reports whether discovery found nothing at all.
func (c *Catalog) Empty() bool {
	return len(c.cpu) == 0 && len(c.battery) == 0
}

// QueryCPU returns the first valid fresh reading among CPU sources.
func (c *Catalog) QueryCPU() (domain.TemperatureReading, bool) {
	r, ok := c.query(c.cpu, cpuCelsius)
	if ok {
		c.lastCPU = &r
	}
	return r, ok
}

// QueryBattery returns the first valid fresh reading among battery sources.
func (c *Catalog) QueryBattery() (domain.TemperatureReading, bool) {
	r, ok := c.query(c.battery, NormalizeBatteryTemp)
	if ok {
		c.lastBattery = &r
	}
	return r, ok
}

// LastCPU returns the most recent successful CPU reading, which may be stale.
func (c *Catalog) LastCPU() (domain.TemperatureReading, bool) {
	if c.lastCPU == nil {
		return domain.TemperatureReading{}, false
	}
	return *c.lastCPU, true
}

// LastBattery returns the most recent successful battery reading.
func (c *Catalog) LastBattery() (domain.TemperatureReading, bool) {
	if c.lastBattery == nil {
		return domain.TemperatureReading{}, false
	}
	return *c.lastBattery, true
}

func (c *Catalog) query(sensors []domain.TemperatureSensor, convert func(float64) float64) (domain.TemperatureReading, bool) {
	for _, s := range sensors {
		if celsius, ok := c.read(s.Path, convert); ok {
			return domain.TemperatureReading{Celsius: celsius, Sensor: s, SampledAt: c.now()}, true
		}
	}
	return domain.TemperatureReading{}, false
}

func (c *Catalog) read(name string, convert func(float64) float64) (float64, bool) {
	raw, err := c.src.ReadFloat(name)
	if err != nil {
		return 0, false
	}
	celsius := convert(raw)
	if !ValidTemperature(celsius) {
		return 0, false
	}
	return celsius, true
}

func cpuCelsius(raw float64) float64 { return raw / 1000 }

// ─── CPU Discovery ──────────────────────────────────────────────────────────

func (c *Catalog) discoverCPU() []domain.TemperatureSensor {
	groups, _ := c.src.Glob("class/hwmon/hwmon*")
	sortNumeric(groups, "hwmon")

	var found []domain.TemperatureSensor
	for _, group := range groups {
		name, err := c.src.ReadString(path.Join(group, "name"))
		if err != nil {
			continue
		}
		lower := strings.ToLower(name)
		if lower == "acpitz" || strings.Contains(lower, "virtual") {
			c.logger.Printf("[sensors] skip %s (%s)", group, name)
			continue
		}
		found = append(found, c.scanGroup(group, name)...)
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Family().Priority() < found[j].Family().Priority()
	})
	return found
}

func (c *Catalog) scanGroup(group, name string) []domain.TemperatureSensor {
	inputs, _ := c.src.Glob(path.Join(group, "temp*_input"))
	sortNumeric(inputs, "temp")

	var out []domain.TemperatureSensor
	for _, input := range inputs {
		label, _ := c.src.ReadString(strings.TrimSuffix(input, "_input") + "_label")
		if !IsCPUSensor(name, label) {
			continue
		}
		celsius, ok := c.read(input, cpuCelsius)
		if !ok {
			c.logger.Printf("[sensors] reject %s: no valid reading", input)
			continue
		}
		s := domain.TemperatureSensor{Kind: name, Path: input, Label: label, Name: name}
		c.logger.Printf("[sensors] cpu %s = %.1f°C", s.DisplayName(), celsius)
		out = append(out, s)
	}
	return out
}

// ─── Battery Discovery ──────────────────────────────────────────────────────

func (c *Catalog) discoverBattery() []domain.TemperatureSensor {
	var out []domain.TemperatureSensor

	var supplies []string
	for _, pattern := range []string{"class/power_supply/BAT*", "class/power_supply/battery*"} {
		m, _ := c.src.Glob(pattern)
		supplies = append(supplies, m...)
	}
	for _, dir := range supplies {
		c.addBattery(&out, domain.TemperatureSensor{
			Kind: domain.KindBattery,
			Path: path.Join(dir, "temp"),
			Name: path.Base(dir),
		})
	}

	zones, _ := c.src.Glob("class/thermal/thermal_zone*")
	sortNumeric(zones, "thermal_zone")
	for _, zone := range zones {
		typ, err := c.src.ReadString(path.Join(zone, "type"))
		if err != nil || typ != "battery" {
			continue
		}
		c.addBattery(&out, domain.TemperatureSensor{
			Kind: domain.KindThermalZone,
			Path: path.Join(zone, "temp"),
			Name: path.Base(zone),
		})
	}
	return out
}

func (c *Catalog) addBattery(out *[]domain.TemperatureSensor, s domain.TemperatureSensor) {
	if !c.src.Exists(s.Path) {
		return
	}
	celsius, ok := c.read(s.Path, NormalizeBatteryTemp)
	if !ok {
		c.logger.Printf("[sensors] reject %s: no valid reading", s.Path)
		return
	}
	c.logger.Printf("[sensors] battery %s = %.1f°C", s.Name, celsius)
	*out = append(*out, s)
}

// sortNumeric orders names like ".../hwmon10" after ".../hwmon2" by the
// number following prefix in the base name. Unnumbered names sort last.
func sortNumeric(names []string, prefix string) {
	sort.SliceStable(names, func(i, j int) bool {
		return numberAfter(names[i], prefix) < numberAfter(names[j], prefix)
	})
}

func numberAfter(name, prefix string) int {
	base := strings.TrimPrefix(path.Base(name), prefix)
	end := 0
	for end < len(base) && base[end] >= '0' && base[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(base[:end])
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

// Report copies the catalog and last-known readings.
func (c *Catalog) Report() domain.SensorReport {
	r := domain.SensorReport{
		CPU:     c.CPUSensors(),
		Battery: c.BatterySensors(),
	}
	if v, ok := c.LastCPU(); ok {
		r.LastCPU = &v
	}
	if v, ok := c.LastBattery(); ok {
		r.LastBattery = &v
	}
	return r
}
