package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/batfi/batfi/internal/domain"
	"github.com/batfi/batfi/internal/infra/sysfs"
	"github.com/batfi/batfi/internal/infra/thermal"
)

func init() {
	rootCmd.AddCommand(sensorsCmd)
}

var sensorsCmd = &cobra.Command{
	Use:   "sensors",
	Short: "Show discovered temperature sensors with a fresh reading",
	RunE:  runSensors,
}

func runSensors(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	catalog := thermal.Discover(sysfs.New(cfg.Battery.SysfsRoot), thermal.WithLogger(debugLogger(cfg)))
	catalog.QueryCPU()
	catalog.QueryBattery()
	report := catalog.Report()

	out := cmd.OutOrStdout()
	switch cfg.Battery.Format {
	case formatJSON:
		return writeJSON(out, report)
	case formatYAML:
		enc := newYAMLEncoder(out)
		defer enc.Close()
		return enc.Encode(report)
	}

	printSensors(out, report, cfg.Battery.Fahrenheit)
	return nil
}

func printSensors(out io.Writer, r domain.SensorReport, fahrenheit bool) {
	fmt.Fprintln(out, boldStyle.Render("CPU sensors (priority order)"))
	if len(r.CPU) == 0 {
		fmt.Fprintln(out, "  none found")
	}
	for i, s := range r.CPU {
		fmt.Fprintf(out, "  %d. %-24s %s\n", i+1, s.DisplayName(), dimStyle.Render(s.Path))
	}

	fmt.Fprintln(out, boldStyle.Render("Battery sensors"))
	if len(r.Battery) == 0 {
		fmt.Fprintln(out, "  none found")
	}
	for i, s := range r.Battery {
		fmt.Fprintf(out, "  %d. %-24s %s\n", i+1, s.Kind+" "+s.Name, dimStyle.Render(s.Path))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "CPU:     %s\n", readingLine(r.LastCPU, fahrenheit))
	fmt.Fprintf(out, "Battery: %s\n", readingLine(r.LastBattery, fahrenheit))
}

func readingLine(r *domain.TemperatureReading, fahrenheit bool) string {
	if r == nil {
		return fmt.Sprintf("— (no valid reading in %.0f-%.0f°C)", thermal.MinValidCelsius, thermal.MaxValidCelsius)
	}
	return formatTemp(r.Celsius, fahrenheit) + " from " + r.Sensor.DisplayName()
}
