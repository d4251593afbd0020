package config

import (
	"fmt"
	"sync"

	"sewstat/analysis"
)

var configMutex sync.Mutex

// UpdateReportSettings updates the per-kind total hours modes and the shift
// filter flag, then writes them back to config.yaml
func (c *Config) UpdateReportSettings(modes map[string]string, applyShift bool) error {
	for kind, mode := range modes {
		if _, err := analysis.ParseTotalHoursMode(mode); err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	merged := make(map[string]string, len(c.Report.TotalHoursModes)+len(modes))
	for k, v := range c.Report.TotalHoursModes {
		merged[k] = v
	}
	for k, v := range modes {
		merged[k] = v
	}
	c.Report.TotalHoursModes = merged
	c.Report.ApplyShiftFilter = applyShift

	if c.v == nil {
		return nil
	}
	c.v.Set("report.total_hours_modes", merged)
	c.v.Set("report.apply_shift_filter", applyShift)
	return c.v.WriteConfig()
}

// UpdateAnalysisSettings updates paging settings and saves to file
func (c *Config) UpdateAnalysisSettings(defaultPage, maxPage int) error {
	if defaultPage <= 0 || maxPage < defaultPage {
		return fmt.Errorf("invalid page sizes %d/%d", defaultPage, maxPage)
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	c.Analysis.DefaultPageSize = defaultPage
	c.Analysis.MaxPageSize = maxPage

	if c.v == nil {
		return nil
	}
	c.v.Set("analysis.default_page_size", defaultPage)
	c.v.Set("analysis.max_page_size", maxPage)
	return c.v.WriteConfig()
}

// TotalHoursMode returns the configured mode for a report kind, or def
func (c *Config) TotalHoursMode(kind string, def analysis.TotalHoursMode) analysis.TotalHoursMode {
	configMutex.Lock()
	defer configMutex.Unlock()

	if m, err := analysis.ParseTotalHoursMode(c.Report.TotalHoursModes[kind]); err == nil {
		return m
	}
	return def
}

// ShiftFilterEnabled reports whether report rows are clipped to the shift window
func (c *Config) ShiftFilterEnabled() bool {
	configMutex.Lock()
	defer configMutex.Unlock()
	return c.Report.ApplyShiftFilter
}
