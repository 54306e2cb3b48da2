package daemon

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/batfi/batfi/internal/domain"
	"github.com/batfi/batfi/internal/infra/sysfs"
)

const bat0 = "class/power_supply/BAT0/"

func file(s string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(s)}
}

func laptopTree() fstest.MapFS {
	return fstest.MapFS{
		bat0 + "type":        file("Battery\n"),
		bat0 + "status":      file("Discharging\n"),
		bat0 + "capacity":    file("50\n"),
		bat0 + "energy_now":  file("30000000\n"),
		bat0 + "energy_full": file("60000000\n"),
		bat0 + "power_now":   file("10000000\n"),
		bat0 + "voltage_now": file("12000000\n"),

		"class/power_supply/BAT1/type":     file("Battery\n"),
		"class/power_supply/BAT1/capacity": file("90\n"),
		"class/power_supply/AC/type":       file("Mains\n"),
		"class/power_supply/AC/online":     file("1\n"),

		"class/hwmon/hwmon0/name":        file("coretemp\n"),
		"class/hwmon/hwmon0/temp1_input": file("47000\n"),
	}
}

func testClock() func() time.Time {
	var mu sync.Mutex
	tick := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(2 * time.Second)
		return tick
	}
}

func testConfig(t *testing.T) Config {
	t.Helper()
	t.Setenv("BATFI_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.Store.Enabled = false
	return cfg
}

func newTestDaemon(t *testing.T, cfg Config, tree fstest.MapFS) *Daemon {
	t.Helper()
	d, err := New(cfg, WithSource(sysfs.NewFS(tree)), WithClock(testClock()), WithVersion("test"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

// ─── Battery Resolution ─────────────────────────────────────────────────────

func TestResolveBattery(t *testing.T) {
	src := sysfs.NewFS(laptopTree())

	got, err := ResolveBattery(src, "")
	if err != nil || got != "BAT0" {
		t.Errorf("ResolveBattery(\"\") = %q, %v; want BAT0", got, err)
	}

	got, err = ResolveBattery(src, "BAT1")
	if err != nil || got != "BAT1" {
		t.Errorf("ResolveBattery(BAT1) = %q, %v", got, err)
	}

	_, err = ResolveBattery(src, "BAT9")
	if !errors.Is(err, domain.ErrBatteryNotFound) {
		t.Fatalf("ResolveBattery(BAT9) error = %v, want ErrBatteryNotFound", err)
	}
	if !strings.Contains(err.Error(), "available: BAT0, BAT1") {
		t.Errorf("error %q does not list available batteries", err)
	}
}

func TestResolveBattery_None(t *testing.T) {
	src := sysfs.NewFS(fstest.MapFS{
		"class/power_supply/AC/type": file("Mains\n"),
	})
	if _, err := ResolveBattery(src, ""); !errors.Is(err, domain.ErrNoBatteries) {
		t.Errorf("error = %v, want ErrNoBatteries", err)
	}
	_, err := ResolveBattery(src, "BAT0")
	if err == nil || !strings.Contains(err.Error(), "available: none") {
		t.Errorf("error = %v, want available: none", err)
	}
}

func TestNew_NoBattery(t *testing.T) {
	_, err := New(testConfig(t), WithSource(sysfs.NewFS(fstest.MapFS{})))
	if !errors.Is(err, domain.ErrNoBatteries) {
		t.Errorf("New() error = %v, want ErrNoBatteries", err)
	}
}

// ─── Polling ────────────────────────────────────────────────────────────────

func TestPoll_PublishesLatest(t *testing.T) {
	d := newTestDaemon(t, testConfig(t), laptopTree())

	if _, ok := d.Latest(); ok {
		t.Error("Latest() ok before first poll")
	}

	var info *domain.BatteryInfo
	for i := 0; i < 3; i++ {
		var err error
		if info, err = d.Poll(); err != nil {
			t.Fatalf("Poll() error: %v", err)
		}
	}
	if info.TimeRemainingMinutes == nil || *info.TimeRemainingMinutes != 180 {
		t.Errorf("minutes = %v, want 180", info.TimeRemainingMinutes)
	}

	latest, ok := d.Latest()
	if !ok || latest.CapacityPercent != 50 || latest.Samples != 3 {
		t.Errorf("Latest() = %+v, %v", latest, ok)
	}
	latest.CapacityPercent = 1
	if again, _ := d.Latest(); again.CapacityPercent != 50 {
		t.Error("Latest() returned shared state")
	}

	sensors := d.Sensors()
	if len(sensors.CPU) != 1 || sensors.LastCPU == nil || sensors.LastCPU.Celsius != 47 {
		t.Errorf("Sensors() = %+v", sensors)
	}
	if len(d.PowerHistory()) != 3 {
		t.Errorf("PowerHistory() = %d samples, want 3", len(d.PowerHistory()))
	}
}

func TestPoll_StoresSnapshotsInSession(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Enabled = true
	cfg.Store.Dir = t.TempDir()
	d := newTestDaemon(t, cfg, laptopTree())

	if d.DB == nil || d.SessionID() == "" {
		t.Fatal("store not opened")
	}
	for i := 0; i < 4; i++ {
		if _, err := d.Poll(); err != nil {
			t.Fatal(err)
		}
	}

	snaps, err := d.DB.RecentSnapshots("BAT0", 0)
	if err != nil {
		t.Fatalf("RecentSnapshots() error: %v", err)
	}
	if len(snaps) != 4 {
		t.Fatalf("stored %d snapshots, want 4", len(snaps))
	}
	if snaps[0].SessionID != d.SessionID() {
		t.Errorf("session = %q, want %q", snaps[0].SessionID, d.SessionID())
	}
	if len(d.Health.Checks) != 2 {
		t.Errorf("health checks = %d, want battery and store", len(d.Health.Checks))
	}
}

func TestPoll_BatteryRemoved(t *testing.T) {
	tree := laptopTree()
	d := newTestDaemon(t, testConfig(t), tree)

	for name := range tree {
		if strings.HasPrefix(name, bat0) {
			delete(tree, name)
		}
	}
	if _, err := d.Poll(); !errors.Is(err, domain.ErrBatteryNotFound) {
		t.Errorf("Poll() error = %v, want ErrBatteryNotFound", err)
	}
}

// ─── Run Loop ───────────────────────────────────────────────────────────────

func TestRun_Once(t *testing.T) {
	d := newTestDaemon(t, testConfig(t), laptopTree())

	calls := 0
	err := d.Run(context.Background(), RunOptions{Once: true}, func(info *domain.BatteryInfo, err error) {
		calls++
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
}

func TestRun_StopsAfterDuration(t *testing.T) {
	d := newTestDaemon(t, testConfig(t), laptopTree())

	calls := 0
	start := time.Now()
	err := d.Run(context.Background(), RunOptions{Interval: 10 * time.Millisecond, Duration: 80 * time.Millisecond},
		func(*domain.BatteryInfo, error) { calls++ })
	if err != nil {
		t.Fatalf("Run() error: %v, want nil after duration", err)
	}
	if calls < 2 {
		t.Errorf("handler calls = %d, want >= 2", calls)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Run() overran its duration")
	}
}

func TestRun_Cancelled(t *testing.T) {
	d := newTestDaemon(t, testConfig(t), laptopTree())

	ctx, cancel := context.WithCancel(context.Background())
	err := d.Run(ctx, RunOptions{Interval: time.Hour}, func(*domain.BatteryInfo, error) { cancel() })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRun_StopOnError(t *testing.T) {
	tree := laptopTree()
	d := newTestDaemon(t, testConfig(t), tree)
	for name := range tree {
		if strings.HasPrefix(name, bat0) {
			delete(tree, name)
		}
	}

	var gotErr error
	err := d.Run(context.Background(), RunOptions{StopOnError: true, Interval: time.Hour},
		func(_ *domain.BatteryInfo, err error) { gotErr = err })
	if !errors.Is(err, domain.ErrBatteryNotFound) {
		t.Errorf("Run() error = %v, want ErrBatteryNotFound", err)
	}
	if gotErr == nil {
		t.Error("handler did not see the error")
	}
}
