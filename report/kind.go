package report

import (
	"errors"
	"fmt"

	"sewstat/analysis"
)

// ErrUnknownKind is returned for report kinds other than operators, machines and lines
var ErrUnknownKind = errors.New("unknown report kind")

// LabelSet maps each category to the column label a report shows for it
type LabelSet map[analysis.Category]string

// Kind parameterizes one family of report views. The three instances
// differ only in how rows are grouped, what things are called and which
// total-hours baseline applies.
type Kind struct {
	Name        string
	Title       string
	EntityLabel string
	AllLabel    string
	Key         analysis.KeySelector
	Labels      LabelSet
	TotalHours  analysis.TotalHoursMode
}

var defaultLabels = LabelSet{
	analysis.CategorySewing:      "Sewing Hours",
	analysis.CategoryIdle:        "Idle Hours",
	analysis.CategoryMeeting:     "Meeting Hours",
	analysis.CategoryNoFeeding:   "No Feeding Hours",
	analysis.CategoryMaintenance: "Maintenance Hours",
	analysis.CategoryRework:      "Rework Hours",
	analysis.CategoryNeedleBreak: "Needle Break Hours",
}

var (
	Operators = Kind{
		Name:        "operators",
		Title:       "Operator Report",
		EntityLabel: "Operator",
		AllLabel:    "All Operators",
		Key:         analysis.ByOperator,
		Labels:      defaultLabels,
		TotalHours:  analysis.TotalSumCategories,
	}
	Machines = Kind{
		Name:        "machines",
		Title:       "Machine Report",
		EntityLabel: "Machine",
		AllLabel:    "All Machines",
		Key:         analysis.ByMachine,
		Labels:      defaultLabels,
		TotalHours:  analysis.TotalFixed10,
	}
	Lines = Kind{
		Name:        "lines",
		Title:       "Line Report",
		EntityLabel: "Line",
		AllLabel:    "All Lines",
		Key:         analysis.ByLine,
		Labels:      defaultLabels.with(map[string]string{"sewing": "Sewing Hours (PT)"}),
		TotalHours:  analysis.TotalFixed10,
	}
)

// Kinds lists the built-in kinds in display order
var Kinds = []Kind{Operators, Machines, Lines}

// KindByName resolves a kind from its URL/CLI name
func KindByName(name string) (Kind, error) {
	for _, k := range Kinds {
		if k.Name == name {
			return k, nil
		}
	}
	return Kind{}, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Label returns the column label for c
func (k Kind) Label(c analysis.Category) string {
	if l, ok := k.Labels[c]; ok && l != "" {
		return l
	}
	return defaultLabels[c]
}

// WithLabels returns a copy of k with category labels overridden by
// name. Unknown category names are ignored.
func (k Kind) WithLabels(overrides map[string]string) Kind {
	k.Labels = k.Labels.with(overrides)
	return k
}

// WithTotalHours returns a copy of k using mode
func (k Kind) WithTotalHours(mode analysis.TotalHoursMode) Kind {
	if mode != "" {
		k.TotalHours = mode
	}
	return k
}

func (l LabelSet) with(overrides map[string]string) LabelSet {
	out := make(LabelSet, len(analysis.Categories))
	for c, v := range l {
		out[c] = v
	}
	for _, c := range analysis.Categories {
		if v, ok := overrides[string(c)]; ok && v != "" {
			out[c] = v
		}
	}
	return out
}
