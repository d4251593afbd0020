package analysis

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestDeriveSumCategories(t *testing.T) {
	b := CategoryBreakdown{SewingHours: 3, IdleHours: 1, NeedleRuntimeSeconds: 5400, Rows: 2, WorkingDays: 1}

	p := Derive(b, TotalSumCategories)
	if !almostEqual(p.ProductivePct, 75) {
		t.Errorf("ProductivePct = %v, want 75", p.ProductivePct)
	}
	if !almostEqual(p.NonProductivePct, 25) {
		t.Errorf("NonProductivePct = %v, want 25", p.NonProductivePct)
	}
	if !almostEqual(p.NeedleRuntimePct, 50) {
		t.Errorf("NeedleRuntimePct = %v, want 50", p.NeedleRuntimePct)
	}
}

func TestDeriveFixed10(t *testing.T) {
	b := CategoryBreakdown{SewingHours: 5, IdleHours: 1, Rows: 3, WorkingDays: 2}

	if got := b.WithTotal(TotalFixed10).TotalHours; got != 20 {
		t.Fatalf("TotalHours = %v, want 20 for two shifts", got)
	}
	p := Derive(b, TotalFixed10)
	if !almostEqual(p.ProductivePct, 25) || !almostEqual(p.NonProductivePct, 5) {
		t.Errorf("percentages = %+v, want 25/5", p)
	}
}

func TestDeriveFixed10NeverBelowCategories(t *testing.T) {
	b := CategoryBreakdown{SewingHours: 9, IdleHours: 3, Rows: 2, WorkingDays: 1}
	if !b.ExceedsBaseline() {
		t.Fatal("12 recorded hours should exceed one 10 hour shift")
	}
	withTotal := b.WithTotal(TotalFixed10)
	if withTotal.CategorySum() > withTotal.TotalHours {
		t.Fatalf("category sum %v exceeds total %v", withTotal.CategorySum(), withTotal.TotalHours)
	}
}

func TestDeriveShiftOvertime(t *testing.T) {
	b := CategoryBreakdown{SewingHours: 9, IdleHours: 3, Rows: 2, WorkingDays: 1}

	clamped := Derive(b, TotalFixed10)
	if !almostEqual(clamped.ProductivePct, 75) || !almostEqual(clamped.NonProductivePct, 25) {
		t.Errorf("clamped = %+v, want 75/25", clamped)
	}
	shift := DeriveShift(b)
	if !almostEqual(shift.ProductivePct, 90) || !almostEqual(shift.NonProductivePct, 30) {
		t.Errorf("shift = %+v, want 90/30", shift)
	}
	if DeriveShift(CategoryBreakdown{}) != (Percentages{}) {
		t.Error("empty breakdown should give zeros")
	}
}

func TestDeriveZeroGuards(t *testing.T) {
	p := Derive(CategoryBreakdown{NeedleRuntimeSeconds: 100}, TotalSumCategories)
	if p != (Percentages{}) {
		t.Fatalf("empty breakdown gave %+v, want zeros", p)
	}
	for _, v := range []float64{p.ProductivePct, p.NonProductivePct, p.NeedleRuntimePct} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("got non-finite percentage %v", v)
		}
	}
}

func TestRollupAveragesPercentages(t *testing.T) {
	small := CategoryBreakdown{Key: "1", SewingHours: 1, IdleHours: 1, Rows: 2, WorkingDays: 1}
	large := CategoryBreakdown{Key: "2", SewingHours: 9, IdleHours: 1, Rows: 2, WorkingDays: 1}

	entities := []EntityMetrics{
		{Breakdown: small.WithTotal(TotalSumCategories), Percentages: Derive(small, TotalSumCategories)},
		{Breakdown: large.WithTotal(TotalSumCategories), Percentages: Derive(large, TotalSumCategories)},
	}
	s := Rollup(entities)

	// (50 + 90) / 2, not 10/12.
	if !almostEqual(s.Percentages.ProductivePct, 70) {
		t.Errorf("ProductivePct = %v, want 70", s.Percentages.ProductivePct)
	}
	sumThenRatio := (small.SewingHours + large.SewingHours) / (small.CategorySum() + large.CategorySum()) * 100
	if almostEqual(s.Percentages.ProductivePct, sumThenRatio) {
		t.Error("rollup must not be computed as a ratio of sums")
	}
	if s.Totals.SewingHours != 10 || s.Totals.TotalHours != 12 {
		t.Errorf("totals = %+v", s.Totals)
	}
	if s.EntityCount != 2 {
		t.Errorf("EntityCount = %d", s.EntityCount)
	}
}

func TestRollupEmpty(t *testing.T) {
	s := Rollup(nil)
	if s.EntityCount != 0 || s.Percentages != (Percentages{}) {
		t.Fatalf("empty rollup = %+v", s)
	}
}

func TestMeasureKeepsOrder(t *testing.T) {
	rows := []RawLogRow{
		{MachineID: "3", Date: "2024-01-01", Mode: ModeSewing, DurationRaw: 5.0},
		{MachineID: "1", Date: "2024-01-01", Mode: ModeSewing, DurationRaw: 2.0},
	}
	m := Measure(Aggregate(rows, ByMachine), TotalFixed10)
	if len(m) != 2 || m[0].Breakdown.Key != "1" || m[1].Breakdown.Key != "3" {
		t.Fatalf("Measure order = %+v", m)
	}
	if m[1].Breakdown.TotalHours != 10 || !almostEqual(m[1].Percentages.ProductivePct, 50) {
		t.Errorf("machine 3 = %+v", m[1])
	}
}

func TestParseTotalHoursMode(t *testing.T) {
	if _, err := ParseTotalHoursMode("fixed10"); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseTotalHoursMode("weekly"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
