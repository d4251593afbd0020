package analysis

// Mode is the activity code reported by the machine firmware.
// The mapping is shared with upstream devices and must not change.
type Mode int

const (
	ModeSewing      Mode = 1
	ModeIdle        Mode = 2
	ModeMeeting     Mode = 3
	ModeNoFeeding   Mode = 4
	ModeMaintenance Mode = 5
	ModeRework      Mode = 6
	ModeNeedleBreak Mode = 7
)

// Category identifies one of the seven hour buckets of a breakdown
type Category string

const (
	CategorySewing      Category = "sewing"
	CategoryIdle        Category = "idle"
	CategoryMeeting     Category = "meeting"
	CategoryNoFeeding   Category = "no_feeding"
	CategoryMaintenance Category = "maintenance"
	CategoryRework      Category = "rework"
	CategoryNeedleBreak Category = "needle_break"
)

// Categories lists every category in mode order
var Categories = []Category{
	CategorySewing,
	CategoryIdle,
	CategoryMeeting,
	CategoryNoFeeding,
	CategoryMaintenance,
	CategoryRework,
	CategoryNeedleBreak,
}

var modeCategories = map[Mode]Category{
	ModeSewing:      CategorySewing,
	ModeIdle:        CategoryIdle,
	ModeMeeting:     CategoryMeeting,
	ModeNoFeeding:   CategoryNoFeeding,
	ModeMaintenance: CategoryMaintenance,
	ModeRework:      CategoryRework,
	ModeNeedleBreak: CategoryNeedleBreak,
}

var modeDescriptions = map[Mode]string{
	ModeSewing:      "Sewing",
	ModeIdle:        "Idle",
	ModeMeeting:     "Meeting",
	ModeNoFeeding:   "No Feeding",
	ModeMaintenance: "Maintenance",
	ModeRework:      "Rework",
	ModeNeedleBreak: "Needle Break",
}

// Category returns the bucket for a mode. ok is false for unknown codes.
func (m Mode) Category() (Category, bool) {
	c, ok := modeCategories[m]
	return c, ok
}

// Known reports whether m is one of the seven firmware codes
func (m Mode) Known() bool {
	_, ok := modeCategories[m]
	return ok
}

// ModeDescription returns the human label used in detailed tables
func ModeDescription(m Mode) string {
	if d, ok := modeDescriptions[m]; ok {
		return d
	}
	return "Unknown"
}

// Productive reports whether the category counts as productive time (PT)
func (c Category) Productive() bool {
	return c == CategorySewing
}
