package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sewstat/analysis"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SOURCE_API_TOKEN", "test-token")
	t.Setenv("LABELS_PATH", filepath.Join(dir, "labels.json"))
	return path
}

func TestLoadMergesSectionDefaults(t *testing.T) {
	path := writeConfig(t, `
report:
  total_hours_modes:
    operators: fixed10
  shift:
    start: "08:00"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.TotalHoursMode("operators", analysis.TotalSumCategories); got != analysis.TotalFixed10 {
		t.Errorf("operators mode = %s, want fixed10 from file", got)
	}
	if got := cfg.TotalHoursMode("machines", analysis.TotalSumCategories); got != analysis.TotalFixed10 {
		t.Errorf("machines mode = %s, want fixed10 default", got)
	}
	if cfg.Report.Shift.Start != "08:00" || cfg.Report.Shift.End != "19:35" {
		t.Errorf("shift = %+v", cfg.Report.Shift)
	}
	if len(cfg.Report.Shift.Breaks) != 3 {
		t.Errorf("breaks = %+v, want three defaults", cfg.Report.Shift.Breaks)
	}
	if cfg.Source.Mode != "lake" || cfg.Source.Token != "test-token" {
		t.Errorf("source = %+v", cfg.Source)
	}
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	path := writeConfig(t, `
report:
  total_hours_modes:
    lines: weekly
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "lines") {
		t.Fatalf("Load error = %v, want unknown mode for lines", err)
	}
}

func TestLoadRequiresAPIBaseURL(t *testing.T) {
	path := writeConfig(t, "source:\n  mode: api\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for api mode without base url")
	}
}

func TestUpdateReportSettingsPersists(t *testing.T) {
	path := writeConfig(t, "report:\n  apply_shift_filter: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := cfg.UpdateReportSettings(map[string]string{"operators": "fixed10"}, false); err != nil {
		t.Fatalf("UpdateReportSettings: %v", err)
	}
	if cfg.ShiftFilterEnabled() {
		t.Error("shift filter should be disabled in memory")
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Report.ApplyShiftFilter {
		t.Error("shift filter flag was not written to file")
	}
	if reloaded.Report.TotalHoursModes["operators"] != "fixed10" {
		t.Errorf("modes after reload = %v", reloaded.Report.TotalHoursModes)
	}

	if err := cfg.UpdateReportSettings(map[string]string{"lines": "bogus"}, true); err == nil {
		t.Error("expected validation error")
	}
}

func TestLabelSetManager(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.json")
	m := NewLabelSetManager(path)
	if err := m.Load(); err != nil {
		t.Fatalf("Load missing file: %v", err)
	}

	sets := map[string]LabelSet{"machines": {"no_feeding": "Needle Break Hours"}}
	if err := m.Save(sets); err != nil {
		t.Fatalf("Save: %v", err)
	}

	other := NewLabelSetManager(path)
	if err := other.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, ok := other.Get("machines")
	if !ok || got["no_feeding"] != "Needle Break Hours" {
		t.Fatalf("Get = %v %v", got, ok)
	}
	got["no_feeding"] = "mutated"
	if again, _ := other.Get("machines"); again["no_feeding"] != "Needle Break Hours" {
		t.Error("Get must return a copy")
	}
}
