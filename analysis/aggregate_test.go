package analysis

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func TestAggregateOperatorScenario(t *testing.T) {
	rows := []RawLogRow{
		{OperatorID: "5", MachineID: "M1", Date: "2024-03-01", Mode: ModeSewing, DurationRaw: "2:00"},
		{OperatorID: "5", MachineID: "M1", Date: "2024-03-01", Mode: ModeIdle, DurationRaw: 0.5},
	}

	agg := Aggregate(rows, ByOperator)
	b, ok := agg.Breakdowns["5"]
	if !ok {
		t.Fatalf("operator 5 missing from %v", agg.Keys)
	}
	if b.SewingHours != 2.0 {
		t.Errorf("SewingHours = %v, want 2", b.SewingHours)
	}
	if b.IdleHours != 0.5 {
		t.Errorf("IdleHours = %v, want 0.5", b.IdleHours)
	}
	for _, c := range []Category{CategoryMeeting, CategoryNoFeeding, CategoryMaintenance, CategoryRework, CategoryNeedleBreak} {
		if b.Hours(c) != 0 {
			t.Errorf("%s hours = %v, want 0", c, b.Hours(c))
		}
	}
}

func TestAggregateUnassignedOperator(t *testing.T) {
	rows := []RawLogRow{
		{OperatorID: "0", MachineID: "M1", Mode: ModeIdle, DurationRaw: 1.0},
		{OperatorID: "7", MachineID: "M1", Mode: ModeSewing, DurationRaw: 2.0},
	}

	ops := Aggregate(rows, ByOperator)
	if _, ok := ops.Breakdowns["0"]; ok {
		t.Fatal("operator 0 should be excluded from operator aggregation")
	}
	if ops.ExcludedRows != 1 {
		t.Errorf("ExcludedRows = %d, want 1", ops.ExcludedRows)
	}

	machines := Aggregate(rows, ByMachine)
	m := machines.Breakdowns["M1"]
	if m.IdleHours != 1.0 || m.SewingHours != 2.0 {
		t.Errorf("machine breakdown = %+v, want idle 1 and sewing 2", m)
	}
}

func TestAggregateNumericZeroOperators(t *testing.T) {
	payload := `[
		{"OPERATOR_ID": 0, "MACHINE_ID": "M1", "MODE": 2, "DEVICE_ID": "1:00"},
		{"OPERATOR_ID": "0", "MACHINE_ID": "M1", "MODE": 2, "DEVICE_ID": "1:00"},
		{"OPERATOR_ID": 0.0, "MACHINE_ID": "M1", "MODE": 2, "DEVICE_ID": "1:00"},
		{"OPERATOR_ID": "00", "MACHINE_ID": "M1", "MODE": 2, "DEVICE_ID": "1:00"},
		{"OPERATOR_ID": "0.0", "MACHINE_ID": "M1", "MODE": 2, "DEVICE_ID": "1:00"}
	]`
	var rows []RawLogRow
	if err := json.Unmarshal([]byte(payload), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}

	for _, r := range rows {
		if r.HasOperator() {
			t.Errorf("operator %q should be unassigned", r.OperatorID)
		}
	}
	agg := Aggregate(rows, ByOperator)
	if len(agg.Keys) != 0 {
		t.Errorf("Keys = %v, want none", agg.Keys)
	}
	if agg.ExcludedRows != len(rows) {
		t.Errorf("ExcludedRows = %d, want %d", agg.ExcludedRows, len(rows))
	}
}

func TestIsUnassignedOperator(t *testing.T) {
	cases := map[string]bool{
		"0":    true,
		"00":   true,
		"0.0":  true,
		"-0":   true,
		"7":    false,
		"007":  false,
		"0A":   false,
		"NaN":  false,
		"0e0":  false,
		"":     false,
		"OP-0": false,
	}
	for id, want := range cases {
		if got := IsUnassignedOperator(id); got != want {
			t.Errorf("IsUnassignedOperator(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestSortKeysPlainDecimalOnly(t *testing.T) {
	keys := []string{"10", "9", "1.5"}
	SortKeys(keys)
	if want := []string{"1.5", "9", "10"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("numeric keys = %v, want %v", keys, want)
	}

	keys = []string{"NaN", "2", "Inf", "1e3", "10"}
	SortKeys(keys)
	if want := []string{"10", "1e3", "2", "Inf", "NaN"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("mixed keys = %v, want %v", keys, want)
	}

	keys = []string{"1e3", "5"}
	SortKeys(keys)
	if want := []string{"1e3", "5"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("exponent keys = %v, want %v", keys, want)
	}
}

func TestAggregateUnknownMode(t *testing.T) {
	rows := []RawLogRow{
		{MachineID: "1", Mode: ModeSewing, DurationRaw: 1.0},
		{MachineID: "1", Mode: 9, DurationRaw: 4.0},
		{MachineID: "1", Mode: 9, DurationRaw: 4.0},
	}

	agg := Aggregate(rows, ByMachine)
	b := agg.Breakdowns["1"]
	if b.TotalHours != 1.0 {
		t.Errorf("TotalHours = %v, want 1 (unknown modes excluded)", b.TotalHours)
	}
	if b.Rows != 3 || b.UncategorizedRows != 2 {
		t.Errorf("Rows = %d, Uncategorized = %d, want 3 and 2", b.Rows, b.UncategorizedRows)
	}
	if agg.TotalRows != 3 || agg.UncategorizedRows != 2 {
		t.Errorf("aggregation counts = %d/%d, want 3/2", agg.TotalRows, agg.UncategorizedRows)
	}
	if len(agg.Warnings) != 1 || agg.Warnings[0].Code != WarnUnknownMode || agg.Warnings[0].Count != 2 {
		t.Fatalf("warnings = %+v, want one unknown_mode warning with count 2", agg.Warnings)
	}
}

func TestAggregateSumCategoriesReconciles(t *testing.T) {
	rows := []RawLogRow{
		{LineNumber: "L1", Mode: ModeSewing, DurationRaw: "1:10"},
		{LineNumber: "L1", Mode: ModeIdle, DurationRaw: 0.3333},
		{LineNumber: "L1", Mode: ModeMeeting, DurationRaw: 12001},
		{LineNumber: "L1", Mode: ModeNoFeeding, DurationRaw: "0:07"},
		{LineNumber: "L1", Mode: ModeMaintenance, DurationRaw: 0.1},
		{LineNumber: "L1", Mode: ModeRework, DurationRaw: 0.2},
		{LineNumber: "L1", Mode: ModeNeedleBreak, DurationRaw: "0:01"},
	}

	b := Aggregate(rows, ByLine).Breakdowns["L1"].WithTotal(TotalSumCategories)
	sum := b.SewingHours + b.IdleHours + b.MeetingHours + b.NoFeedingHours + b.MaintenanceHours + b.ReworkHours + b.NeedleBreakHours
	if math.Abs(sum-b.TotalHours) > 1e-6 {
		t.Fatalf("category sum %v != total %v", sum, b.TotalHours)
	}
}

func TestAggregateNaturalOrder(t *testing.T) {
	rows := []RawLogRow{
		{MachineID: "10", Mode: ModeSewing},
		{MachineID: "2", Mode: ModeSewing},
		{MachineID: "1", Mode: ModeSewing},
	}
	if got := Aggregate(rows, ByMachine).Keys; !reflect.DeepEqual(got, []string{"1", "2", "10"}) {
		t.Errorf("numeric keys = %v", got)
	}

	rows = append(rows, RawLogRow{MachineID: "A7", Mode: ModeSewing})
	if got := Aggregate(rows, ByMachine).Keys; !reflect.DeepEqual(got, []string{"1", "10", "2", "A7"}) {
		t.Errorf("mixed keys = %v", got)
	}
}

func TestAggregateByDate(t *testing.T) {
	rows := []RawLogRow{
		{MachineID: "2", Date: "02-03-2024", Mode: ModeSewing, DurationRaw: 1.0},
		{MachineID: "1", Date: "2024-03-02", Mode: ModeIdle, DurationRaw: 1.0},
		{MachineID: "1", Date: "2024-03-01", Mode: ModeSewing, DurationRaw: 2.0},
		{MachineID: "1", Date: "2024-03-01", Mode: ModeSewing, DurationRaw: 1.0},
	}

	daily := AggregateByDate(rows, ByMachine)
	if len(daily) != 3 {
		t.Fatalf("got %d daily rows, want 3", len(daily))
	}
	if daily[0].Key != "1" || daily[0].Day != "2024-03-01" || daily[0].Breakdown.SewingHours != 3 {
		t.Errorf("first daily row = %+v", daily[0])
	}
	if daily[2].Key != "2" || daily[2].Day != "2024-03-02" {
		t.Errorf("DD-MM-YYYY date not normalized: %+v", daily[2])
	}
}

func TestAggregateCounters(t *testing.T) {
	rows := []RawLogRow{
		{MachineID: "1", Date: "2024-03-01", Mode: ModeSewing, DurationRaw: 1.0, NeedleRuntimeRaw: 0.5, StitchCount: 100, SewingSpeed: 2000},
		{MachineID: "1", Date: "2024-03-02", Mode: ModeSewing, DurationRaw: 1.0, NeedleRuntimeRaw: 0.5, StitchCount: 50, SewingSpeed: 0},
	}
	b := Aggregate(rows, ByMachine).Breakdowns["1"]
	if b.NeedleRuntimeSeconds != 3600 {
		t.Errorf("NeedleRuntimeSeconds = %d, want 3600", b.NeedleRuntimeSeconds)
	}
	if b.StitchCount != 150 {
		t.Errorf("StitchCount = %v, want 150", b.StitchCount)
	}
	if b.AvgSewingSpeed != 2000 || b.SpeedSamples != 1 {
		t.Errorf("speed = %v over %d samples, want 2000 over 1", b.AvgSewingSpeed, b.SpeedSamples)
	}
	if b.WorkingDays != 2 {
		t.Errorf("WorkingDays = %d, want 2", b.WorkingDays)
	}
	if b.AvgNeedleRuntime() != 1800 {
		t.Errorf("AvgNeedleRuntime = %v, want 1800", b.AvgNeedleRuntime())
	}
}

func TestRawLogRowUnmarshal(t *testing.T) {
	payload := `{"MACHINE_ID": 101, "LINE_NUMB": "L2", "OPERATOR_ID": 0, "DATE": "2024-03-01",
		"START_TIME": "08:30:00", "END_TIME": "09:00:00", "MODE": "1", "DEVICE_ID": "0:30",
		"STITCH_COUNT": null, "NEEDLE_RUNTIME": 0.25, "RESERVE": "1800", "Tx_LOGID": 1004}`

	var row RawLogRow
	if err := json.Unmarshal([]byte(payload), &row); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if row.MachineID != "101" || row.OperatorID != "0" || row.LineNumber != "L2" {
		t.Errorf("identifiers = %q %q %q", row.MachineID, row.OperatorID, row.LineNumber)
	}
	if row.Mode != ModeSewing {
		t.Errorf("Mode = %d, want 1", row.Mode)
	}
	if row.DurationSeconds() != 1800 || row.NeedleRuntimeSeconds() != 900 {
		t.Errorf("durations = %d/%d, want 1800/900", row.DurationSeconds(), row.NeedleRuntimeSeconds())
	}
	if row.StitchCount != 0 || row.SewingSpeed != 1800 || row.TxLogID != 1004 {
		t.Errorf("counters = %v %v %v", row.StitchCount, row.SewingSpeed, row.TxLogID)
	}
	if row.HasOperator() {
		t.Error("operator 0 should be unassigned")
	}
}

func TestLogQueryMatch(t *testing.T) {
	q := LogQuery{From: "2024-03-01", To: "2024-03-31", MachineID: "7"}

	cases := []struct {
		row  RawLogRow
		want bool
	}{
		{RawLogRow{MachineID: "7", Date: "2024-03-15"}, true},
		{RawLogRow{MachineID: "7", Date: "31-03-2024"}, true},
		{RawLogRow{MachineID: "7", Date: "2024-04-01"}, false},
		{RawLogRow{MachineID: "8", Date: "2024-03-15"}, false},
		{RawLogRow{MachineID: "7", Date: "someday"}, false},
	}
	for _, c := range cases {
		if got := q.Match(c.row); got != c.want {
			t.Errorf("Match(%+v) = %v, want %v", c.row, got, c.want)
		}
	}

	if !(LogQuery{}).Match(RawLogRow{Date: "someday"}) {
		t.Error("unbounded query should match rows without a date")
	}
}
