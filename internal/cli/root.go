// Package cli implements the batfi command-line interface using Cobra.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/batfi/batfi/internal/daemon"
	"github.com/batfi/batfi/internal/domain"
)

// errReported marks a failure whose message was already printed.
var errReported = errors.New("reported")

var (
	flagConfig     string
	flagVerbose    bool
	flagJSON       bool
	flagFormat     string
	flagBattery    string
	flagInterval   time.Duration
	flagFahrenheit bool
	flagOnce       bool
	flagDuration   time.Duration
)

var version = "dev"

// logOut is where log and debug output go once the config is loaded.
var (
	logOut   io.Writer = os.Stderr
	logClose           = func() error { return nil }
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (default $BATFI_HOME/config.toml)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Log sensor discovery and sink activity")
	pf.BoolVarP(&flagJSON, "json", "j", false, "Shorthand for --format json")
	pf.StringVar(&flagFormat, "format", "", "Output format: human, json or yaml")
	pf.StringVarP(&flagBattery, "battery", "b", "", "Battery to monitor (default: first found)")
	pf.DurationVar(&flagInterval, "interval", 0, "Poll interval (default 2s)")
	pf.BoolVarP(&flagFahrenheit, "fahrenheit", "f", false, "Show Fahrenheit first")

	rootCmd.Flags().BoolVarP(&flagOnce, "once", "o", false, "Print one snapshot and exit")
	rootCmd.Flags().DurationVar(&flagDuration, "duration", 0, "Stop after this long (0 = until interrupted)")
}

var rootCmd = &cobra.Command{
	Use:   "batfi",
	Short: "Battery runtime estimation for Linux",
	Long: `batfi reads battery state from sysfs, smooths the power draw and
estimates time until empty or full. It can print snapshots, run a live
terminal view, record history and serve an HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMonitor,
}

// Execute runs the root command. Called from main.go.
func Execute(v string) {
	version = v
	rootCmd.Version = v

	err := rootCmd.Execute()
	_ = logClose()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// ─── Shared Setup ───────────────────────────────────────────────────────────

// loadConfig reads the config file and applies flags that were set.
func loadConfig(cmd *cobra.Command) (daemon.Config, error) {
	path := flagConfig
	if path == "" {
		path = daemon.ConfigPath()
	}
	cfg, err := daemon.LoadConfigFrom(path)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("battery") {
		cfg.Battery.Name = flagBattery
	}
	if flags.Changed("format") {
		cfg.Battery.Format = flagFormat
	}
	if flagJSON {
		cfg.Battery.Format = formatJSON
	}
	if flags.Changed("interval") {
		cfg.Battery.Interval = flagInterval.String()
	}
	if flags.Changed("duration") {
		cfg.Battery.Duration = flagDuration.String()
	}
	if flags.Changed("fahrenheit") {
		cfg.Battery.Fahrenheit = flagFahrenheit
	}
	if flagVerbose {
		cfg.Logging.Level = "debug"
	}
	if err := validFormat(cfg.Battery.Format); err != nil {
		return cfg, err
	}
	if err := setupLogging(cfg.Logging); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// setupLogging points the standard logger at logging.file, or stderr.
func setupLogging(c daemon.LoggingConfig) error {
	w, closeFn, err := c.OpenOutput()
	if err != nil {
		return err
	}
	_ = logClose()
	logOut, logClose = w, closeFn
	log.SetOutput(w)
	return nil
}

// debugLogger returns a logger on the log output when debug logging is on.
func debugLogger(cfg daemon.Config) *log.Logger {
	if cfg.Debug() {
		return log.New(logOut, "", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

func newDaemon(cfg daemon.Config) (*daemon.Daemon, error) {
	return daemon.New(cfg, daemon.WithVersion(version), daemon.WithDebugLog(debugLogger(cfg)))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(f.Fd())
}

// ─── Monitor ────────────────────────────────────────────────────────────────

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	format := cfg.Battery.Format

	d, err := newDaemon(cfg)
	if err != nil {
		if format == formatJSON {
			fmt.Fprintln(errOut, jsonReadError)
			return errReported
		}
		return err
	}
	defer d.Close()

	duration := cfg.RunDuration()
	if format == formatHuman && !flagOnce {
		fmt.Fprintf(out, "Starting batfi %s\n", version)
		fmt.Fprintf(out, "  Found battery: %s\n", d.BatteryName())
		if duration > 0 {
			fmt.Fprintf(out, "  Will run for %s with %s updates\n", duration, cfg.PollInterval())
		}
	}

	opts := defaultRenderOptions()
	opts.Fahrenheit = cfg.Battery.Fahrenheit
	opts.MinSamples = cfg.Estimator.MinSamples
	redraw := format == formatHuman && !flagOnce && isTerminal(os.Stdout)
	var yamlEnc *yaml.Encoder
	if format == formatYAML {
		yamlEnc = newYAMLEncoder(out)
		defer yamlEnc.Close()
	}

	handle := func(info *domain.BatteryInfo, err error) {
		if err != nil {
			if format == formatJSON {
				fmt.Fprintln(errOut, jsonReadError)
				return
			}
			fmt.Fprintf(errOut, "Could not read battery information: %v\n", err)
			fmt.Fprintf(errOut, "  Make sure %s exists and is readable\n", d.Source.Path("class/power_supply/"+d.BatteryName()))
			return
		}
		switch format {
		case formatJSON:
			writeJSON(out, info)
		case formatYAML:
			yamlEnc.Encode(info)
		default:
			if redraw {
				fmt.Fprint(out, "\x1b[2J\x1b[H")
			}
			renderHuman(out, info, powerValues(d.PowerHistory()), opts)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	err = d.Run(ctx, daemon.RunOptions{
		Once:        flagOnce,
		Interval:    cfg.PollInterval(),
		Duration:    duration,
		StopOnError: true,
	}, handle)
	switch {
	case errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, domain.ErrBatteryNotFound):
		return errReported
	case err != nil:
		return err
	}

	if duration > 0 && format == formatHuman {
		fmt.Fprintf(out, "Completed after %s\n", time.Since(start).Round(time.Second))
	}
	return nil
}
