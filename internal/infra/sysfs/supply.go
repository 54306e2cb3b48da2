package sysfs

import (
	"path"
	"sort"
	"strings"

	procsysfs "github.com/prometheus/procfs/sysfs"
)

const powerSupplyDir = "class/power_supply"

// Supply is one entry of the power_supply class.
type Supply struct {
	Name         string `json:"name" yaml:"name"`
	Type         string `json:"type" yaml:"type"`
	Scope        string `json:"scope,omitempty" yaml:"scope,omitempty"`
	Status       string `json:"status,omitempty" yaml:"status,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty" yaml:"model,omitempty"`
	Capacity     *int64 `json:"capacity,omitempty" yaml:"capacity,omitempty"`
}

// IsBattery reports whether the supply is a system battery. Peripheral
// batteries (scope "Device", e.g. wireless mice) are excluded.
func (s Supply) IsBattery() bool {
	if strings.EqualFold(s.Scope, "Device") {
		return false
	}
	if strings.HasPrefix(s.Name, "BAT") || strings.HasPrefix(s.Name, "battery") {
		return true
	}
	return s.Type == "Battery"
}

// SupplyDir returns the source name of a supply's attribute directory.
func SupplyDir(name string) string {
	return path.Join(powerSupplyDir, name)
}

// PowerSupplies lists every power_supply entry, sorted by name. Host trees
// go through procfs; when procfs cannot parse the class (or the source is
// synthetic) the directory is scanned attribute by attribute.
func (s *Source) PowerSupplies() ([]Supply, error) {
	if s.root != "" {
		if supplies, err := s.procfsSupplies(); err == nil {
			return supplies, nil
		}
	}
	return s.scanSupplies()
}

// Batteries returns the system batteries among PowerSupplies.
func (s *Source) Batteries() ([]Supply, error) {
	all, err := s.PowerSupplies()
	if err != nil {
		return nil, err
	}
	var out []Supply
	for _, sup := range all {
		if sup.IsBattery() {
			out = append(out, sup)
		}
	}
	return out, nil
}

func (s *Source) procfsSupplies() ([]Supply, error) {
	pfs, err := procsysfs.NewFS(s.root)
	if err != nil {
		return nil, err
	}
	class, err := pfs.PowerSupplyClass()
	if err != nil {
		return nil, err
	}
	out := make([]Supply, 0, len(class))
	for name, ps := range class {
		out = append(out, Supply{
			Name:         name,
			Type:         ps.Type,
			Scope:        ps.Scope,
			Status:       ps.Status,
			Manufacturer: ps.Manufacturer,
			Model:        ps.ModelName,
			Capacity:     ps.Capacity,
		})
	}
	sortSupplies(out)
	return out, nil
}

func (s *Source) scanSupplies() ([]Supply, error) {
	dirs, err := s.Glob(powerSupplyDir + "/*")
	if err != nil {
		return nil, err
	}
	out := make([]Supply, 0, len(dirs))
	for _, dir := range dirs {
		sup := Supply{Name: path.Base(dir)}
		sup.Type, _ = s.ReadString(path.Join(dir, "type"))
		sup.Scope, _ = s.ReadString(path.Join(dir, "scope"))
		sup.Status, _ = s.ReadString(path.Join(dir, "status"))
		sup.Manufacturer, _ = s.ReadString(path.Join(dir, "manufacturer"))
		sup.Model, _ = s.ReadString(path.Join(dir, "model_name"))
		if c, err := s.ReadInt(path.Join(dir, "capacity")); err == nil {
			sup.Capacity = &c
		}
		out = append(out, sup)
	}
	sortSupplies(out)
	return out, nil
}

func sortSupplies(s []Supply) {
	sort.Slice(s, func(i, j int) bool { return s[i].Name < s[j].Name })
}
