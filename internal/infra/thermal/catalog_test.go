package thermal

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/batfi/batfi/internal/infra/sysfs"
)

func file(s string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(s)}
}

// ─── Normalization & Validation ─────────────────────────────────────────────

func TestNormalizeBatteryTemp(t *testing.T) {
	tests := []struct {
		raw  float64
		want float64
	}{
		{25000, 25.0},
		{350, 35.0},
		{42, 42.0},
		{1000, 100.0},
		{200, 200.0},
		{1001, 1.001},
	}
	for _, tt := range tests {
		if got := NormalizeBatteryTemp(tt.raw); got != tt.want {
			t.Errorf("NormalizeBatteryTemp(%v) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestValidTemperature(t *testing.T) {
	tests := []struct {
		c    float64
		want bool
	}{
		{9.9, false},
		{10, true},
		{55, true},
		{110, true},
		{110.1, false},
		{-5, false},
	}
	for _, tt := range tests {
		if got := ValidTemperature(tt.c); got != tt.want {
			t.Errorf("ValidTemperature(%v) = %v, want %v", tt.c, got, tt.want)
		}
	}
}

func TestIsCPUSensor(t *testing.T) {
	if !IsCPUSensor("coretemp", "Package id 0") {
		t.Error("coretemp package should be accepted")
	}
	if IsCPUSensor("coretemp", "Core 3") {
		t.Error("coretemp core should be rejected")
	}
	if IsCPUSensor("amdgpu", "") {
		t.Error("amdgpu without label should be rejected")
	}
	if IsCPUSensor("nvme", "Composite") {
		t.Error("unknown family should be rejected")
	}
}

// ─── Discovery ──────────────────────────────────────────────────────────────

func mixedTree() fstest.MapFS {
	return fstest.MapFS{
		// amdgpu listed first by group number, must still rank last
		"class/hwmon/hwmon0/name":        file("amdgpu\n"),
		"class/hwmon/hwmon0/temp1_input": file("48000\n"),
		"class/hwmon/hwmon0/temp1_label": file("edge\n"),
		"class/hwmon/hwmon0/temp2_input": file("52000\n"),
		"class/hwmon/hwmon0/temp2_label": file("junction\n"),

		"class/hwmon/hwmon1/name":        file("acpitz\n"),
		"class/hwmon/hwmon1/temp1_input": file("45000\n"),

		"class/hwmon/hwmon2/name":        file("k10temp\n"),
		"class/hwmon/hwmon2/temp1_input": file("61000\n"),
		"class/hwmon/hwmon2/temp1_label": file("Tctl\n"),
		"class/hwmon/hwmon2/temp3_input": file("59000\n"),
		"class/hwmon/hwmon2/temp3_label": file("Tccd1\n"),

		"class/hwmon/hwmon3/name":        file("coretemp\n"),
		"class/hwmon/hwmon3/temp1_input": file("200000\n"), // out of band
		"class/hwmon/hwmon3/temp1_label": file("Package id 0\n"),

		"class/hwmon/hwmon10/name":        file("coretemp\n"),
		"class/hwmon/hwmon10/temp1_input": file("55000\n"),
		"class/hwmon/hwmon10/temp1_label": file("Package id 1\n"),
		"class/hwmon/hwmon10/temp2_input": file("53000\n"),
		"class/hwmon/hwmon10/temp2_label": file("Core 0\n"),

		"class/hwmon/hwmon4/name":        file("virtual_thermal\n"),
		"class/hwmon/hwmon4/temp1_input": file("40000\n"),

		"class/power_supply/BAT0/temp":   file("305\n"),
		"class/power_supply/BAT1/status": file("Unknown\n"), // no temp file
		"class/power_supply/AC/temp":     file("300\n"),

		"class/thermal/thermal_zone0/type": file("x86_pkg_temp\n"),
		"class/thermal/thermal_zone0/temp": file("50000\n"),
		"class/thermal/thermal_zone1/type": file("battery\n"),
		"class/thermal/thermal_zone1/temp": file("29000\n"),
		"class/thermal/thermal_zone2/type": file("battery\n"),
		"class/thermal/thermal_zone2/temp": file("9000\n"), // 9°C, out of band
	}
}

func TestDiscover_CPUFilteringAndPriority(t *testing.T) {
	c := Discover(sysfs.NewFS(mixedTree()))
	cpu := c.CPUSensors()

	want := []string{
		"class/hwmon/hwmon10/temp1_input", // coretemp
		"class/hwmon/hwmon2/temp1_input",  // k10temp
		"class/hwmon/hwmon0/temp1_input",  // amdgpu edge
	}
	if len(cpu) != len(want) {
		t.Fatalf("CPUSensors() = %d sensors (%v), want %d", len(cpu), cpu, len(want))
	}
	for i, p := range want {
		if cpu[i].Path != p {
			t.Errorf("cpu[%d].Path = %s, want %s", i, cpu[i].Path, p)
		}
	}
	if cpu[0].Label != "Package id 1" || cpu[0].Kind != "coretemp" {
		t.Errorf("cpu[0] = %+v", cpu[0])
	}
}

func TestDiscover_BatterySources(t *testing.T) {
	c := Discover(sysfs.NewFS(mixedTree()))
	bat := c.BatterySensors()
	if len(bat) != 2 {
		t.Fatalf("BatterySensors() = %v, want 2", bat)
	}
	if bat[0].Kind != "battery" || bat[0].Name != "BAT0" {
		t.Errorf("bat[0] = %+v, want BAT0 battery", bat[0])
	}
	if bat[1].Kind != "thermal_zone" || bat[1].Name != "thermal_zone1" {
		t.Errorf("bat[1] = %+v, want thermal_zone1", bat[1])
	}
}

func TestDiscover_EmptyTree(t *testing.T) {
	c := Discover(sysfs.NewFS(fstest.MapFS{}))
	if !c.Empty() {
		t.Error("Empty() = false for empty tree")
	}
	if _, ok := c.QueryCPU(); ok {
		t.Error("QueryCPU() ok on empty catalog")
	}
	if _, ok := c.QueryBattery(); ok {
		t.Error("QueryBattery() ok on empty catalog")
	}
}

func TestDiscover_LogsDecisions(t *testing.T) {
	var buf bytes.Buffer
	Discover(sysfs.NewFS(mixedTree()), WithLogger(log.New(&buf, "", 0)))
	out := buf.String()
	if !strings.Contains(out, "[sensors] skip class/hwmon/hwmon1 (acpitz)") {
		t.Errorf("log missing acpitz skip:\n%s", out)
	}
	if !strings.Contains(out, "[sensors] catalog: 3 cpu, 2 battery") {
		t.Errorf("log missing summary:\n%s", out)
	}
}

func TestDiscover_NumericChannelOrder(t *testing.T) {
	tree := fstest.MapFS{
		"class/hwmon/hwmon0/name":         file("zenpower\n"),
		"class/hwmon/hwmon0/temp10_input": file("70000\n"),
		"class/hwmon/hwmon0/temp10_label": file("Tdie\n"),
		"class/hwmon/hwmon0/temp2_input":  file("60000\n"),
		"class/hwmon/hwmon0/temp2_label":  file("Tctl\n"),
	}
	cpu := Discover(sysfs.NewFS(tree)).CPUSensors()
	if len(cpu) != 2 {
		t.Fatalf("CPUSensors() = %v", cpu)
	}
	if cpu[0].Label != "Tctl" || cpu[1].Label != "Tdie" {
		t.Errorf("order = %s, %s; want Tctl, Tdie", cpu[0].Label, cpu[1].Label)
	}
}

// ─── Queries ────────────────────────────────────────────────────────────────

func TestQueryCPU_FirstValidAndCache(t *testing.T) {
	tree := mixedTree()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := Discover(sysfs.NewFS(tree), WithClock(func() time.Time { return fixed }))

	r, ok := c.QueryCPU()
	if !ok {
		t.Fatal("QueryCPU() not ok")
	}
	if r.Celsius != 55 || r.Sensor.Label != "Package id 1" {
		t.Errorf("QueryCPU() = %+v, want 55°C from Package id 1", r)
	}
	if !r.SampledAt.Equal(fixed) {
		t.Errorf("SampledAt = %v, want %v", r.SampledAt, fixed)
	}

	// Top-priority sensor goes out of band; next one answers.
	tree["class/hwmon/hwmon10/temp1_input"] = file("150000\n")
	r, ok = c.QueryCPU()
	if !ok || r.Sensor.Kind != "k10temp" || r.Celsius != 61 {
		t.Errorf("QueryCPU() fallback = %+v, %v; want k10temp 61°C", r, ok)
	}

	last, ok := c.LastCPU()
	if !ok || last.Celsius != 61 {
		t.Errorf("LastCPU() = %+v, %v", last, ok)
	}
}

func TestQueryCPU_StaleCacheNotReturned(t *testing.T) {
	tree := fstest.MapFS{
		"class/hwmon/hwmon0/name":        file("coretemp\n"),
		"class/hwmon/hwmon0/temp1_input": file("50000\n"),
	}
	c := Discover(sysfs.NewFS(tree))
	if _, ok := c.QueryCPU(); !ok {
		t.Fatal("first QueryCPU() not ok")
	}

	tree["class/hwmon/hwmon0/temp1_input"] = file("garbage\n")
	if _, ok := c.QueryCPU(); ok {
		t.Error("QueryCPU() ok with malformed value")
	}
	last, ok := c.LastCPU()
	if !ok || last.Celsius != 50 {
		t.Errorf("LastCPU() = %+v, %v; want cached 50°C", last, ok)
	}
	if len(c.CPUSensors()) != 1 {
		t.Error("sensor dropped from catalog after a bad reading")
	}
}

func TestQueryBattery_Normalizes(t *testing.T) {
	c := Discover(sysfs.NewFS(mixedTree()))
	r, ok := c.QueryBattery()
	if !ok {
		t.Fatal("QueryBattery() not ok")
	}
	if r.Celsius != 30.5 || r.Sensor.Name != "BAT0" {
		t.Errorf("QueryBattery() = %+v, want 30.5°C from BAT0", r)
	}
	if _, ok := c.LastBattery(); !ok {
		t.Error("LastBattery() not cached")
	}
}

func TestReport_CopiesState(t *testing.T) {
	c := Discover(sysfs.NewFS(mixedTree()))

	r := c.Report()
	if len(r.CPU) != 3 || len(r.Battery) != 2 {
		t.Errorf("Report() = %d cpu, %d battery; want 3, 2", len(r.CPU), len(r.Battery))
	}
	if r.LastCPU != nil || r.LastBattery != nil {
		t.Error("Report() has readings before any query")
	}

	c.QueryCPU()
	r = c.Report()
	if r.LastCPU == nil || r.LastCPU.Celsius != 55 {
		t.Errorf("LastCPU = %+v, want 55°C", r.LastCPU)
	}

	r.CPU[0].Label = "mutated"
	if c.CPUSensors()[0].Label == "mutated" {
		t.Error("Report() shares the sensor slice")
	}
}
