package sysfs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

func file(s string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(s)}
}

// ─── Attribute Reads ────────────────────────────────────────────────────────

func TestReadString_TrimsFirstLine(t *testing.T) {
	src := NewFS(fstest.MapFS{
		"class/power_supply/BAT0/status": file("Discharging\n"),
		"multi":                          file("  first  \nsecond\n"),
		"empty":                          file(""),
	})

	tests := []struct {
		name string
		want string
	}{
		{"class/power_supply/BAT0/status", "Discharging"},
		{"multi", "first"},
		{"empty", ""},
	}
	for _, tt := range tests {
		got, err := src.ReadString(tt.name)
		if err != nil {
			t.Fatalf("ReadString(%q) error: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("ReadString(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestReadString_Missing(t *testing.T) {
	src := NewFS(fstest.MapFS{})
	_, err := src.ReadString("class/power_supply/BAT0/status")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestReadInt(t *testing.T) {
	src := NewFS(fstest.MapFS{
		"current_now": file("-1500000\n"),
		"bad":         file("n/a\n"),
		"float":       file("12.5\n"),
	})

	n, err := src.ReadInt("current_now")
	if err != nil || n != -1500000 {
		t.Errorf("ReadInt(current_now) = %d, %v; want -1500000, nil", n, err)
	}
	if _, err := src.ReadInt("bad"); !errors.Is(err, ErrMalformed) {
		t.Errorf("ReadInt(bad) err = %v, want ErrMalformed", err)
	}
	if _, err := src.ReadInt("missing"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("ReadInt(missing) err = %v, want ErrUnavailable", err)
	}
	f, err := src.ReadFloat("float")
	if err != nil || f != 12.5 {
		t.Errorf("ReadFloat(float) = %v, %v; want 12.5, nil", f, err)
	}
	if _, err := src.ReadFloat("bad"); !errors.Is(err, ErrMalformed) {
		t.Errorf("ReadFloat(bad) err = %v, want ErrMalformed", err)
	}
}

func TestExistsAndGlob(t *testing.T) {
	src := NewFS(fstest.MapFS{
		"class/hwmon/hwmon0/name":        file("coretemp"),
		"class/hwmon/hwmon1/name":        file("nvme"),
		"class/hwmon/hwmon1/temp1_input": file("40000"),
	})
	if !src.Exists("class/hwmon/hwmon0") {
		t.Error("Exists(hwmon0) = false")
	}
	if src.Exists("class/hwmon/hwmon9") {
		t.Error("Exists(hwmon9) = true")
	}
	got, err := src.Glob("class/hwmon/hwmon*/name")
	if err != nil {
		t.Fatalf("Glob() error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Glob() = %v, want 2 names", got)
	}
}

func TestPath(t *testing.T) {
	if got := NewFS(fstest.MapFS{}).Path("class/x"); got != "class/x" {
		t.Errorf("synthetic Path() = %q", got)
	}
	src := New("/sys")
	if got := src.Path("class/power_supply/BAT0"); got != filepath.Join("/sys", "class", "power_supply", "BAT0") {
		t.Errorf("host Path() = %q", got)
	}
	if New("").Root() != DefaultRoot {
		t.Errorf("New(\"\").Root() = %q, want %q", New("").Root(), DefaultRoot)
	}
}

// ─── Power Supplies ─────────────────────────────────────────────────────────

func TestSupply_IsBattery(t *testing.T) {
	tests := []struct {
		s    Supply
		want bool
	}{
		{Supply{Name: "BAT0", Type: "Battery"}, true},
		{Supply{Name: "BAT1"}, true},
		{Supply{Name: "battery"}, true},
		{Supply{Name: "CMB0", Type: "Battery"}, true},
		{Supply{Name: "AC", Type: "Mains"}, false},
		{Supply{Name: "hidpp_battery_0", Type: "Battery", Scope: "Device"}, false},
		{Supply{Name: "ucsi-source-psy-USBC000:001", Type: "USB"}, false},
	}
	for _, tt := range tests {
		if got := tt.s.IsBattery(); got != tt.want {
			t.Errorf("IsBattery(%s) = %v, want %v", tt.s.Name, got, tt.want)
		}
	}
}

func TestBatteries_Synthetic(t *testing.T) {
	src := NewFS(fstest.MapFS{
		"class/power_supply/BAT1/type":              file("Battery\n"),
		"class/power_supply/BAT1/capacity":          file("64\n"),
		"class/power_supply/BAT0/type":              file("Battery\n"),
		"class/power_supply/BAT0/status":            file("Charging\n"),
		"class/power_supply/BAT0/model_name":        file("5B10W13975\n"),
		"class/power_supply/BAT0/capacity":          file("80\n"),
		"class/power_supply/AC/type":                file("Mains\n"),
		"class/power_supply/hidpp_battery_0/type":   file("Battery\n"),
		"class/power_supply/hidpp_battery_0/scope":  file("Device\n"),
	})

	bats, err := src.Batteries()
	if err != nil {
		t.Fatalf("Batteries() error: %v", err)
	}
	if len(bats) != 2 {
		t.Fatalf("Batteries() = %d, want 2", len(bats))
	}
	if bats[0].Name != "BAT0" || bats[1].Name != "BAT1" {
		t.Errorf("order = %s, %s; want BAT0, BAT1", bats[0].Name, bats[1].Name)
	}
	if bats[0].Status != "Charging" || bats[0].Model != "5B10W13975" {
		t.Errorf("BAT0 = %+v", bats[0])
	}
	if bats[0].Capacity == nil || *bats[0].Capacity != 80 {
		t.Errorf("BAT0 capacity = %v, want 80", bats[0].Capacity)
	}
}

func TestBatteries_HostDirectory(t *testing.T) {
	root := t.TempDir()
	write := func(rel, data string) {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("class/power_supply/BAT0/type", "Battery\n")
	write("class/power_supply/BAT0/status", "Discharging\n")
	write("class/power_supply/BAT0/capacity", "55\n")
	write("class/power_supply/AC/type", "Mains\n")
	write("class/power_supply/AC/online", "0\n")

	bats, err := New(root).Batteries()
	if err != nil {
		t.Fatalf("Batteries() error: %v", err)
	}
	if len(bats) != 1 || bats[0].Name != "BAT0" {
		t.Fatalf("Batteries() = %+v, want [BAT0]", bats)
	}
	if !strings.EqualFold(bats[0].Status, "Discharging") {
		t.Errorf("status = %q, want Discharging", bats[0].Status)
	}
}

func TestBatteries_NoClass(t *testing.T) {
	bats, err := NewFS(fstest.MapFS{}).Batteries()
	if err != nil {
		t.Fatalf("Batteries() error: %v", err)
	}
	if len(bats) != 0 {
		t.Errorf("Batteries() = %v, want none", bats)
	}
}
