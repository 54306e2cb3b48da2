package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/batfi/batfi/internal/infra/sysfs"
)

func init() {
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "Include AC adapters and peripheral batteries")
	rootCmd.AddCommand(listCmd)
}

var listAll bool

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List batteries found in sysfs",
	RunE:    runList,
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	src := sysfs.New(cfg.Battery.SysfsRoot)

	var supplies []sysfs.Supply
	if listAll {
		supplies, err = src.PowerSupplies()
	} else {
		supplies, err = src.Batteries()
	}
	if err != nil {
		return err
	}
	return printSupplies(cmd, supplies, cfg.Battery.Format)
}

func printSupplies(cmd *cobra.Command, supplies []sysfs.Supply, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case formatJSON:
		if supplies == nil {
			supplies = []sysfs.Supply{}
		}
		return writeJSON(out, supplies)
	case formatYAML:
		enc := newYAMLEncoder(out)
		defer enc.Close()
		return enc.Encode(supplies)
	}

	if len(supplies) == 0 {
		fmt.Fprintln(out, "No batteries found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tSTATUS\tCAPACITY\tMODEL")
	for _, s := range supplies {
		capacity := "-"
		if s.Capacity != nil {
			capacity = fmt.Sprintf("%d%%", *s.Capacity)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.Name,
			orDash(s.Type),
			orDash(s.Status),
			capacity,
			orDash(joinNonEmpty(s.Manufacturer, s.Model)),
		)
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}
