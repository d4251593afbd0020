package etl

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"sewstat/analysis"
	"sewstat/config"
)

// Shift bounds used for generated logs, seconds after midnight
const (
	mockShiftStart = 8*3600 + 25*60
	mockShiftEnd   = 19*3600 + 35*60
)

// modeWeights sets how often each activity shows up in generated logs
var modeWeights = []struct {
	mode   analysis.Mode
	weight int
}{
	{analysis.ModeSewing, 60},
	{analysis.ModeIdle, 15},
	{analysis.ModeMeeting, 4},
	{analysis.ModeNoFeeding, 8},
	{analysis.ModeMaintenance, 5},
	{analysis.ModeRework, 5},
	{analysis.ModeNeedleBreak, 3},
}

// MockDataGenerator generates realistic shift logs for testing
type MockDataGenerator struct {
	config *config.MockDataConfig
	rand   *rand.Rand
}

// NewMockDataGenerator creates a new mock data generator. A zero seed
// uses the clock.
func NewMockDataGenerator(cfg *config.MockDataConfig) *MockDataGenerator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MockDataGenerator{
		config: cfg,
		rand:   rand.New(rand.NewSource(seed)),
	}
}

func (m *MockDataGenerator) lines() []string {
	if len(m.config.Lines) > 0 {
		return m.config.Lines
	}
	return []string{"1", "2", "3"}
}

func (m *MockDataGenerator) operators() []string {
	if len(m.config.Operators) > 0 {
		return m.config.Operators
	}
	n := len(m.lines()) * m.machinesPerLine()
	ops := make([]string, n)
	for i := range ops {
		ops[i] = fmt.Sprintf("%d", 101+i)
	}
	return ops
}

func (m *MockDataGenerator) machinesPerLine() int {
	if m.config.MachinesPerLine > 0 {
		return m.config.MachinesPerLine
	}
	return 4
}

func (m *MockDataGenerator) rowsPerShift() int {
	if m.config.RowsPerShift > 0 {
		return m.config.RowsPerShift
	}
	return 24
}

// GenerateLogs produces TimeRangeDays days of logs ending on end
func (m *MockDataGenerator) GenerateLogs(end time.Time) []analysis.RawLogRow {
	days := m.config.TimeRangeDays
	if days <= 0 {
		days = 1
	}
	start := end.AddDate(0, 0, -(days - 1))
	return m.GenerateRange(start, end)
}

// GenerateRange produces logs for every day in [from, to]
func (m *MockDataGenerator) GenerateRange(from, to time.Time) []analysis.RawLogRow {
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)

	var rows []analysis.RawLogRow
	ops := m.operators()
	logID := 1

	for day, d := 0, from; !d.After(to); day, d = day+1, d.AddDate(0, 0, 1) {
		// Sine wave over the days so trend charts have a shape
		trend := 0.1 * math.Sin(float64(day)*0.4)

		for li, line := range m.lines() {
			for mi := 0; mi < m.machinesPerLine(); mi++ {
				machine := fmt.Sprintf("L%s-M%02d", line, mi+1)
				operator := ops[(li*m.machinesPerLine()+mi+day)%len(ops)]
				if m.rand.Float64() < 0.05 {
					operator = analysis.UnassignedOperator
				}
				for _, row := range m.shift(d, line, machine, operator, trend) {
					row.TxLogID = logID
					row.StrLogID = logID
					logID++
					rows = append(rows, row)
				}
			}
		}
	}
	return rows
}

// shift splits one machine's working window into consecutive segments
func (m *MockDataGenerator) shift(day time.Time, line, machine, operator string, trend float64) []analysis.RawLogRow {
	segments := m.rowsPerShift()
	slot := (mockShiftEnd - mockShiftStart) / segments
	rows := make([]analysis.RawLogRow, 0, segments)

	for i := 0; i < segments; i++ {
		start := mockShiftStart + i*slot
		duration := slot/2 + m.rand.Intn(slot/2+1)
		mode := m.pickMode(trend)

		row := analysis.RawLogRow{
			MachineID:    machine,
			LineNumber:   line,
			OperatorID:   operator,
			OperatorName: operatorName(operator),
			Date:         day.Format(analysis.DateLayout),
			StartTime:    clock(start),
			EndTime:      clock(start + duration),
			Mode:         mode,
			DurationRaw:  m.encodeDuration(duration),
			CreatedAt:    day.Add(time.Duration(start+duration) * time.Second).Format(time.RFC3339),
		}

		if mode == analysis.ModeSewing {
			runtime := int(float64(duration) * (0.4 + m.rand.Float64()*0.3))
			speed := 1800 + m.rand.Intn(1400)
			row.NeedleRuntimeRaw = fmt.Sprintf("%d:%02d", runtime/3600, (runtime%3600)/60)
			row.NeedleStoptime = float64(duration - runtime)
			row.SewingSpeed = float64(speed)
			row.StitchCount = float64(speed * runtime / 60)
		}
		rows = append(rows, row)
	}
	return rows
}

func (m *MockDataGenerator) pickMode(trend float64) analysis.Mode {
	total := 0
	for _, w := range modeWeights {
		total += w.weight
	}
	// Shift weight from sewing to idle as the trend dips
	bias := int(trend * 100)
	n := m.rand.Intn(total)
	for _, w := range modeWeights {
		weight := w.weight
		switch w.mode {
		case analysis.ModeSewing:
			weight += bias
		case analysis.ModeIdle:
			weight -= bias
		}
		if n < weight {
			return w.mode
		}
		n -= weight
	}
	return analysis.ModeSewing
}

// encodeDuration mimics the mixed encodings firmware sends: "H:MM",
// decimal hours, or plain seconds for long segments.
func (m *MockDataGenerator) encodeDuration(seconds int) any {
	if seconds > analysis.SecondsThreshold {
		return seconds
	}
	minutes := seconds / 60
	if m.rand.Intn(2) == 0 {
		return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
	}
	return math.Round(float64(minutes)/60*10000) / 10000
}

func operatorName(id string) string {
	if analysis.IsUnassignedOperator(id) {
		return ""
	}
	return "Operator " + id
}

func clock(seconds int) string {
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
