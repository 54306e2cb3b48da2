package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/batfi/batfi/internal/domain"
)

// ─── Output Formats ─────────────────────────────────────────────────────────

const (
	formatHuman = "human"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validFormat(f string) error {
	switch f {
	case formatHuman, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown format %q (want human, json or yaml)", f)
}

// jsonReadError is printed to stderr when a poll fails in json mode.
const jsonReadError = `{"error": "Could not read battery information"}`

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// newYAMLEncoder returns an encoder that separates successive snapshots
// with document markers.
func newYAMLEncoder(w io.Writer) *yaml.Encoder {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return enc
}

// ─── Formatting ─────────────────────────────────────────────────────────────

// formatMinutes renders "3h 05m", or "42m" under an hour.
func formatMinutes(m uint32) string {
	h, mins := m/60, m%60
	if h > 0 {
		return fmt.Sprintf("%dh %02dm", h, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func formatTemp(c float64, fahrenheit bool) string {
	f := domain.CelsiusToFahrenheit(c)
	if fahrenheit {
		return fmt.Sprintf("%.1f°F (%.1f°C)", f, c)
	}
	return fmt.Sprintf("%.1f°C (%.1f°F)", c, f)
}

// chargePhase names the charging stage by state of charge.
func chargePhase(capacity uint8) string {
	switch {
	case capacity > 95:
		return "trickle charge"
	case capacity > 80:
		return "slowing down"
	default:
		return "fast charge"
	}
}

func accuracyLabel(a domain.Accuracy) string {
	switch a {
	case domain.AccuracyUltra:
		return "Ultra-high accuracy"
	case domain.AccuracyHigh:
		return "High accuracy"
	case domain.AccuracyMedium:
		return "Medium accuracy"
	default:
		return "Building accuracy"
	}
}

// ─── Colors ─────────────────────────────────────────────────────────────────

var (
	colorRed    = lipgloss.Color("1")
	colorGreen  = lipgloss.Color("2")
	colorYellow = lipgloss.Color("3")
	colorCyan   = lipgloss.Color("6")
	colorGray   = lipgloss.Color("7")
	colorDim    = lipgloss.Color("240")
	colorTitle  = lipgloss.Color("51")
	colorBorder = lipgloss.Color("62")

	boldStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(colorDim)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorTitle)
)

func capacityColor(pct uint8) lipgloss.Color {
	switch {
	case pct <= 15:
		return colorRed
	case pct <= 30:
		return colorYellow
	case pct <= 80:
		return colorGreen
	default:
		return colorCyan
	}
}

func batteryTempColor(c float64) lipgloss.Color {
	switch {
	case c < 36:
		return colorCyan
	case c < 46:
		return colorGreen
	case c < 56:
		return colorYellow
	default:
		return colorRed
	}
}

func cpuTempColor(c float64) lipgloss.Color {
	switch {
	case c < 46:
		return colorCyan
	case c < 61:
		return colorGreen
	case c < 76:
		return colorYellow
	default:
		return colorRed
	}
}

func statusColor(s domain.Status) lipgloss.Color {
	switch s {
	case domain.StatusCharging:
		return colorGreen
	case domain.StatusDischarging:
		return colorYellow
	case domain.StatusFull:
		return colorCyan
	default:
		return colorGray
	}
}

// ─── Glyphs ─────────────────────────────────────────────────────────────────

// barCells splits width into filled and empty cells for a percentage.
func barCells(pct uint8, width int) (filled, empty int) {
	if pct > 100 {
		pct = 100
	}
	filled = int(float64(pct) / 100 * float64(width))
	return filled, width - filled
}

func batteryBar(pct uint8, width int) string {
	filled, empty := barCells(pct, width)
	return lipgloss.NewStyle().Foreground(capacityColor(pct)).
		Render(strings.Repeat("█", filled) + strings.Repeat("░", empty))
}

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// sparkline draws the last width values scaled between their min and max.
// A flat series (spread under 0.1) sits on the bottom row.
func sparkline(values []float64, width int) string {
	if width <= 0 || len(values) < 2 {
		return ""
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if math.Abs(span) < 0.1 {
		span = 0.1
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	var sb strings.Builder
	for _, v := range values {
		idx := int((v - lo) / span * float64(len(sparkBlocks)-1))
		if idx >= len(sparkBlocks) {
			idx = len(sparkBlocks) - 1
		}
		sb.WriteRune(sparkBlocks[idx])
	}
	return sb.String()
}

func trendArrow(t domain.Trend) string {
	switch t {
	case domain.TrendIncreasing:
		return lipgloss.NewStyle().Foreground(colorRed).Render("↑")
	case domain.TrendDecreasing:
		return lipgloss.NewStyle().Foreground(colorGreen).Render("↓")
	default:
		return lipgloss.NewStyle().Foreground(colorGray).Render("→")
	}
}

func capacityArrow(t domain.Trend) string {
	switch t {
	case domain.TrendIncreasing:
		return lipgloss.NewStyle().Foreground(colorGreen).Render("↗")
	case domain.TrendDecreasing:
		return lipgloss.NewStyle().Foreground(colorRed).Render("↘")
	default:
		return lipgloss.NewStyle().Foreground(colorGray).Render("━")
	}
}

func accuracyDots(a domain.Accuracy) string {
	switch a {
	case domain.AccuracyUltra:
		return lipgloss.NewStyle().Foreground(colorGreen).Render("●●●")
	case domain.AccuracyHigh:
		return lipgloss.NewStyle().Foreground(colorGreen).Render("●●")
	case domain.AccuracyMedium:
		return lipgloss.NewStyle().Foreground(colorYellow).Render("●")
	default:
		return lipgloss.NewStyle().Foreground(colorRed).Render("○")
	}
}

// ─── Dashboard ──────────────────────────────────────────────────────────────

type renderOptions struct {
	Fahrenheit bool
	BarWidth   int
	GraphWidth int
	MinSamples int
}

func defaultRenderOptions() renderOptions {
	return renderOptions{BarWidth: 40, GraphWidth: 60, MinSamples: 3}
}

// renderHuman writes the dashboard for one snapshot. power is the recent
// power history, oldest first.
func renderHuman(w io.Writer, info *domain.BatteryInfo, power []float64, o renderOptions) {
	title := titleStyle.Render("batfi") + dimStyle.Render(" · "+info.Name)
	if info.Model != "" && info.Model != "Unknown" {
		title += dimStyle.Render(" · " + info.Manufacturer + " " + info.Model)
	}
	fmt.Fprintln(w, lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Render(title))

	fmt.Fprintf(w, " %s [%s] %s\n",
		boldStyle.Render(fmt.Sprintf("%d%%", info.CapacityPercent)),
		batteryBar(info.CapacityPercent, o.BarWidth),
		capacityArrow(info.CapacityTrend))
	fmt.Fprintf(w, " Status: %s\n",
		lipgloss.NewStyle().Bold(true).Foreground(statusColor(info.Status)).Render(string(info.Status)))

	if info.TimeRemainingMinutes != nil {
		what := "remaining"
		if info.Status == domain.StatusCharging {
			what = "to full (" + chargePhase(info.CapacityPercent) + ")"
		}
		fmt.Fprintf(w, " Time:   %s %s %s\n",
			boldStyle.Render(formatMinutes(*info.TimeRemainingMinutes)), what, accuracyDots(info.Accuracy))
	} else {
		fmt.Fprintf(w, " Time:   %s\n", dimStyle.Render("Calculating..."))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, boldStyle.Render(" Power"))
	if info.PowerW != nil {
		fmt.Fprintf(w, " ├─ Now:       %s\n", lipgloss.NewStyle().Foreground(statusColor(info.Status)).Render(fmt.Sprintf("%.2fW", *info.PowerW)))
	}
	if info.SmoothedPowerW != nil {
		fmt.Fprintf(w, " ├─ Smoothed:  %s (trend: %s)\n", boldStyle.Render(fmt.Sprintf("%.2fW", *info.SmoothedPowerW)), trendArrow(info.PowerTrend))
	}
	if info.RollingPowerW != nil {
		fmt.Fprintf(w, " ├─ Rolling:   %s\n", boldStyle.Render(fmt.Sprintf("%.2fW", *info.RollingPowerW)))
	}
	if info.VoltageV != nil {
		fmt.Fprintf(w, " ├─ Voltage:   %s\n", boldStyle.Render(fmt.Sprintf("%.2fV", *info.VoltageV)))
	}
	if info.CurrentMA != nil {
		c := *info.CurrentMA
		style := lipgloss.NewStyle().Foreground(colorRed)
		text := fmt.Sprintf("%d mA", c)
		if c >= 0 {
			style = lipgloss.NewStyle().Foreground(colorGreen)
			text = "+" + text
		}
		fmt.Fprintf(w, " └─ Current:   %s\n", style.Render(text))
	}
	fmt.Fprintln(w)

	if info.EnergyNowWh != nil || info.EnergyFullWh != nil || info.HealthKnown() {
		fmt.Fprintln(w, boldStyle.Render(" Energy"))
		if info.EnergyNowWh != nil {
			fmt.Fprintf(w, " ├─ Now:       %s\n", boldStyle.Render(fmt.Sprintf("%.1f Wh", *info.EnergyNowWh)))
		}
		if info.EnergyFullWh != nil {
			fmt.Fprintf(w, " ├─ Full:      %s\n", boldStyle.Render(fmt.Sprintf("%.1f Wh", *info.EnergyFullWh)))
		}
		health := "unknown"
		if info.HealthKnown() {
			health = fmt.Sprintf("%.0f%%", info.HealthPercent)
		}
		cycles := ""
		if info.Cycles != nil {
			cycles = fmt.Sprintf(", %d cycles", *info.Cycles)
		}
		fmt.Fprintf(w, " └─ Health:    %s%s\n", boldStyle.Render(health), dimStyle.Render(cycles))
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, boldStyle.Render(" Temperature"))
	fmt.Fprintf(w, " ├─ Battery:   %s\n", tempLine(info.TemperatureC, batteryTempColor, o.Fahrenheit))
	fmt.Fprintf(w, " └─ CPU:       %s\n", tempLine(info.CPUTemperatureC, cpuTempColor, o.Fahrenheit))
	fmt.Fprintln(w)

	if len(power) > 1 {
		fmt.Fprintln(w, boldStyle.Render(fmt.Sprintf(" Power history (last %d samples)", len(power))))
		fmt.Fprintf(w, " %s\n\n", sparkline(power, o.GraphWidth))
	}

	footer := fmt.Sprintf("%s (%d samples)", accuracyLabel(info.Accuracy), info.Samples)
	if info.Accuracy == domain.AccuracyCalibrating {
		footer = fmt.Sprintf("%s (%d/%d samples)", accuracyLabel(info.Accuracy), info.Samples, o.MinSamples)
	}
	fmt.Fprintf(w, " %s %s\n", footer, dimStyle.Render("• updated "+info.Timestamp.Format("15:04:05")))
}

func tempLine(c *float64, color func(float64) lipgloss.Color, fahrenheit bool) string {
	if c == nil {
		return dimStyle.Render("—") + " (no sensor found)"
	}
	return lipgloss.NewStyle().Foreground(color(*c)).Render(formatTemp(*c, fahrenheit))
}

func powerValues(samples []domain.PowerSample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.PowerW
	}
	return out
}
