package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/batfi/batfi/internal/domain"
	"github.com/batfi/batfi/internal/infra/sqlite"
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of snapshots to show (0 = all)")
	historyCmd.Flags().StringVar(&historySession, "session", "", "Show every snapshot of one session")
	historyCmd.Flags().BoolVar(&historySessions, "sessions", false, "List monitoring sessions instead of snapshots")
	rootCmd.AddCommand(historyCmd)
}

var (
	historyLimit    int
	historySession  string
	historySessions bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded battery snapshots",
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.Store.Enabled {
		return domain.ErrStoreDisabled
	}

	db, err := sqlite.Open(cfg.Store.Dir)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	format := cfg.Battery.Format

	if historySessions {
		sessions, err := db.ListSessions(historyLimit)
		if err != nil {
			return err
		}
		if format != formatHuman {
			return encode(out, format, sessions)
		}
		return printSessions(out, sessions)
	}

	var snaps []domain.BatteryInfo
	if historySession != "" {
		snaps, err = db.SessionSnapshots(historySession)
	} else {
		snaps, err = db.RecentSnapshots(cfg.Battery.Name, historyLimit)
	}
	if err != nil {
		return err
	}
	if format != formatHuman {
		if snaps == nil {
			snaps = []domain.BatteryInfo{}
		}
		return encode(out, format, snaps)
	}
	return printSnapshots(out, snaps)
}

func encode(out io.Writer, format string, v interface{}) error {
	if format == formatJSON {
		return writeJSON(out, v)
	}
	enc := newYAMLEncoder(out)
	defer enc.Close()
	return enc.Encode(v)
}

func printSnapshots(out io.Writer, snaps []domain.BatteryInfo) error {
	if len(snaps) == 0 {
		fmt.Fprintln(out, "No snapshots recorded yet. Run 'batfi' or 'batfi serve' to start recording.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tBATTERY\tSTATUS\tCAPACITY\tPOWER\tREMAINING\tACCURACY")
	for _, s := range snaps {
		power := "-"
		if s.PowerW != nil {
			power = fmt.Sprintf("%.2fW", *s.PowerW)
		}
		remaining := "-"
		if s.TimeRemainingMinutes != nil {
			remaining = formatMinutes(*s.TimeRemainingMinutes)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\t%s\t%s\n",
			s.Timestamp.Format("2006-01-02 15:04:05"),
			s.Name,
			s.Status,
			s.CapacityPercent,
			power,
			remaining,
			s.Accuracy,
		)
	}
	return w.Flush()
}

func printSessions(out io.Writer, sessions []domain.Session) error {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tBATTERY\tHOST\tSTARTED\tENDED\tSNAPSHOTS")
	for _, s := range sessions {
		ended := "running"
		if s.EndedAt != nil {
			ended = s.EndedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			s.ID,
			s.Battery,
			orDash(s.Host),
			s.StartedAt.Format("2006-01-02 15:04"),
			ended,
			s.Snapshots,
		)
	}
	return w.Flush()
}
