package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/batfi/batfi/internal/domain"
	"github.com/batfi/batfi/internal/infra/sysfs"
)

func testCmd() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func testSupplies() []sysfs.Supply {
	capacity := int64(87)
	return []sysfs.Supply{
		{Name: "BAT0", Type: "Battery", Status: "Discharging", Manufacturer: "SMP", Model: "5B10W13975", Capacity: &capacity},
		{Name: "AC", Type: "Mains"},
	}
}

// ─── List ───────────────────────────────────────────────────────────────────

func TestPrintSupplies_Table(t *testing.T) {
	cmd, buf := testCmd()
	if err := printSupplies(cmd, testSupplies(), formatHuman); err != nil {
		t.Fatalf("printSupplies() error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	for _, want := range []string{"NAME", "CAPACITY", "MODEL"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("header missing %q: %s", want, lines[0])
		}
	}
	if !strings.Contains(lines[1], "87%") || !strings.Contains(lines[1], "SMP 5B10W13975") {
		t.Errorf("battery row = %q", lines[1])
	}
	if !strings.Contains(lines[2], "Mains") || !strings.Contains(lines[2], "-") {
		t.Errorf("adapter row = %q", lines[2])
	}
}

func TestPrintSupplies_JSON(t *testing.T) {
	cmd, buf := testCmd()
	if err := printSupplies(cmd, testSupplies(), formatJSON); err != nil {
		t.Fatalf("printSupplies() error: %v", err)
	}
	var got []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if len(got) != 2 || got[0]["name"] != "BAT0" || got[0]["capacity"] != float64(87) {
		t.Errorf("json = %v", got)
	}
}

func TestPrintSupplies_Empty(t *testing.T) {
	cmd, buf := testCmd()
	if err := printSupplies(cmd, nil, formatHuman); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No batteries found") {
		t.Errorf("output = %q", buf.String())
	}

	cmd, buf = testCmd()
	if err := printSupplies(cmd, nil, formatJSON); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("json = %q, want []", buf.String())
	}
}

func TestJoinNonEmpty(t *testing.T) {
	tests := []struct{ a, b, want string }{
		{"", "", ""},
		{"SMP", "", "SMP"},
		{"", "X1", "X1"},
		{"SMP", "X1", "SMP X1"},
	}
	for _, tt := range tests {
		if got := joinNonEmpty(tt.a, tt.b); got != tt.want {
			t.Errorf("joinNonEmpty(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}

// ─── History ────────────────────────────────────────────────────────────────

func TestPrintSnapshots(t *testing.T) {
	minutes := uint32(125)
	snaps := []domain.BatteryInfo{
		{
			Name:                 "BAT0",
			Status:               domain.StatusDischarging,
			CapacityPercent:      70,
			PowerW:               f64(9.5),
			TimeRemainingMinutes: &minutes,
			Accuracy:             domain.AccuracyHigh,
			Timestamp:            time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
		},
		{Name: "BAT0", Status: domain.StatusFull, CapacityPercent: 100, Accuracy: domain.AccuracyCalibrating},
	}

	var buf bytes.Buffer
	if err := printSnapshots(&buf, snaps); err != nil {
		t.Fatalf("printSnapshots() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"REMAINING", "2026-05-01 09:30:00", "9.50W", "2h 05m", "high", "100%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printSnapshots(&buf, nil)
	if !strings.Contains(buf.String(), "No snapshots recorded yet") {
		t.Errorf("empty output = %q", buf.String())
	}
}

func TestPrintSessions(t *testing.T) {
	ended := time.Date(2026, 5, 1, 11, 0, 0, 0, time.UTC)
	sessions := []domain.Session{
		{ID: "a", Battery: "BAT0", StartedAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC), Snapshots: 12},
		{ID: "b", Battery: "BAT0", Host: "x1", StartedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC), EndedAt: &ended, Snapshots: 4},
	}
	var buf bytes.Buffer
	if err := printSessions(&buf, sessions); err != nil {
		t.Fatalf("printSessions() error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "running") || !strings.Contains(out, "2026-05-01 11:00") {
		t.Errorf("output = %s", out)
	}
}

func TestEncode_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := encode(&buf, formatYAML, []domain.Session{{ID: "a", Battery: "BAT0"}}); err != nil {
		t.Fatalf("encode() error: %v", err)
	}
	if !strings.Contains(buf.String(), "battery: BAT0") {
		t.Errorf("yaml = %s", buf.String())
	}
}
