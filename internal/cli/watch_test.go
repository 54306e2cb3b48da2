package cli

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/batfi/batfi/internal/domain"
)

type fakePoller struct {
	info  *domain.BatteryInfo
	err   error
	polls int
}

func (f *fakePoller) Poll() (*domain.BatteryInfo, error) {
	f.polls++
	return f.info, f.err
}

func (f *fakePoller) PowerHistory() []domain.PowerSample {
	return []domain.PowerSample{{PowerW: 8}, {PowerW: 9}}
}

func (f *fakePoller) BatteryName() string { return "BAT0" }

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestWatchModel_InitPolls(t *testing.T) {
	p := &fakePoller{info: &domain.BatteryInfo{Name: "BAT0", CapacityPercent: 64}}
	m := newWatchModel(p, time.Second, defaultRenderOptions())

	cmd := m.Init()
	if cmd == nil {
		t.Fatal("Init() returned nil cmd")
	}
	raw := cmd()
	msg, ok := raw.(pollMsg)
	if !ok {
		t.Fatalf("Init cmd produced %T, want pollMsg", raw)
	}
	if p.polls != 1 {
		t.Errorf("polls = %d, want 1", p.polls)
	}
	if len(msg.power) != 2 || msg.power[1] != 9 {
		t.Errorf("power = %v, want [8 9]", msg.power)
	}
}

func TestWatchModel_PollResult(t *testing.T) {
	p := &fakePoller{}
	m := newWatchModel(p, time.Second, defaultRenderOptions())

	if !strings.Contains(m.View(), "Waiting for BAT0") {
		t.Errorf("View() before first poll:\n%s", m.View())
	}

	info := &domain.BatteryInfo{Name: "BAT0", CapacityPercent: 64, Status: domain.StatusDischarging}
	next, cmd := m.Update(pollMsg{info: info, power: []float64{8, 9}})
	if cmd == nil {
		t.Error("pollMsg did not schedule the next tick")
	}
	wm := next.(watchModel)
	if wm.info != info || wm.polls != 1 {
		t.Errorf("info = %v, polls = %d", wm.info, wm.polls)
	}
	if !strings.Contains(wm.View(), "64%") {
		t.Errorf("View() missing capacity:\n%s", wm.View())
	}

	// A failed poll keeps the last good snapshot on screen.
	next, _ = wm.Update(pollMsg{err: errors.New("read failed")})
	wm = next.(watchModel)
	if wm.info != info {
		t.Error("failed poll dropped the previous snapshot")
	}
	if !strings.Contains(wm.View(), "ERROR: read failed") {
		t.Errorf("View() missing error:\n%s", wm.View())
	}
}

func TestWatchModel_Pause(t *testing.T) {
	p := &fakePoller{}
	m := newWatchModel(p, time.Second, defaultRenderOptions())

	next, _ := m.Update(keyMsg("p"))
	wm := next.(watchModel)
	if !wm.paused {
		t.Fatal("p did not pause")
	}
	if !strings.Contains(wm.View(), "PAUSED") {
		t.Error("View() missing PAUSED")
	}

	next, _ = wm.Update(keyMsg("p"))
	if next.(watchModel).paused {
		t.Error("second p did not resume")
	}
}

func TestWatchModel_Quit(t *testing.T) {
	m := newWatchModel(&fakePoller{}, time.Second, defaultRenderOptions())
	for _, k := range []string{"q", "esc"} {
		var msg tea.KeyMsg
		if k == "esc" {
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		} else {
			msg = keyMsg(k)
		}
		_, cmd := m.Update(msg)
		if cmd == nil {
			t.Fatalf("%s returned nil cmd", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s did not quit", k)
		}
	}
}

func TestWatchModel_WindowSize(t *testing.T) {
	m := newWatchModel(&fakePoller{}, time.Second, defaultRenderOptions())
	next, cmd := m.Update(tea.WindowSizeMsg{Width: 50, Height: 20})
	if cmd != nil {
		t.Error("WindowSizeMsg returned a cmd")
	}
	wm := next.(watchModel)
	if wm.width != 50 || wm.height != 20 {
		t.Errorf("size = %dx%d, want 50x20", wm.width, wm.height)
	}
}
