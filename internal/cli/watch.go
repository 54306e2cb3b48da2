package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/batfi/batfi/internal/daemon"
	"github.com/batfi/batfi/internal/domain"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live terminal view (q quits, p pauses)",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	d, err := newDaemon(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	opts := defaultRenderOptions()
	opts.Fahrenheit = cfg.Battery.Fahrenheit
	opts.MinSamples = cfg.Estimator.MinSamples

	p := tea.NewProgram(newWatchModel(d, cfg.PollInterval(), opts), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// ── Messages ─────────────────────────────────────────────────────────

type tickMsg time.Time

// pollMsg carries one poll result. The power history is copied inside the
// poll command so View never touches the estimator.
type pollMsg struct {
	info  *domain.BatteryInfo
	power []float64
	err   error
}

// poller is the part of the daemon the watch view drives.
type poller interface {
	Poll() (*domain.BatteryInfo, error)
	PowerHistory() []domain.PowerSample
	BatteryName() string
}

var _ poller = (*daemon.Daemon)(nil)

// ── Model ────────────────────────────────────────────────────────────

type watchModel struct {
	d        poller
	interval time.Duration
	opts     renderOptions
	info     *domain.BatteryInfo
	power    []float64
	err      error
	paused   bool
	polls    int
	width    int
	height   int
	started  time.Time
}

func newWatchModel(d poller, interval time.Duration, opts renderOptions) watchModel {
	return watchModel{d: d, interval: interval, opts: opts, started: time.Now()}
}

// ── Commands ─────────────────────────────────────────────────────────

func (m watchModel) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m watchModel) pollCmd() tea.Cmd {
	d := m.d
	return func() tea.Msg {
		info, err := d.Poll()
		return pollMsg{info: info, power: powerValues(d.PowerHistory()), err: err}
	}
}

// ── Init / Update ────────────────────────────────────────────────────

func (m watchModel) Init() tea.Cmd {
	return m.pollCmd()
}

// Update schedules the next tick only after a poll returns, so polls never
// overlap.
func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ", "p":
			m.paused = !m.paused
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		if m.paused {
			return m, m.tickCmd()
		}
		return m, m.pollCmd()

	case pollMsg:
		m.polls++
		m.err = msg.err
		if msg.err == nil {
			m.info = msg.info
			m.power = msg.power
		}
		return m, m.tickCmd()
	}

	return m, nil
}

// ── View ─────────────────────────────────────────────────────────────

func (m watchModel) View() string {
	var sb strings.Builder

	if m.err != nil {
		sb.WriteString(lipgloss.NewStyle().Foreground(colorRed).Bold(true).
			Render(fmt.Sprintf(" ERROR: %v", m.err)))
		sb.WriteString("\n")
	}

	if m.info == nil {
		sb.WriteString(dimStyle.Render(" Waiting for " + m.d.BatteryName() + "..."))
		sb.WriteString("\n")
	} else {
		opts := m.opts
		if m.width > 0 && m.width-4 < opts.GraphWidth {
			opts.GraphWidth = max(10, m.width-4)
		}
		renderHuman(&sb, m.info, m.power, opts)
	}

	status := fmt.Sprintf(" update #%d • up %s • every %s", m.polls, time.Since(m.started).Round(time.Second), m.interval)
	if m.paused {
		status += " • " + lipgloss.NewStyle().Foreground(colorRed).Bold(true).Render("PAUSED")
	}
	sb.WriteString(dimStyle.Render(status))
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render(" q quit • p pause"))
	return sb.String()
}
