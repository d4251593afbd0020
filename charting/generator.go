package charting

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"sewstat/analysis"
	"sewstat/report"
)

// ErrNoData is returned when a view has nothing to plot
var ErrNoData = errors.New("no data to chart")

// Chart names accepted by Render
const (
	ChartCategories = "categories"
	ChartProductive = "productive"
	ChartTrend      = "trend"
)

// Names lists every chart kind in bundle order
var Names = []string{ChartCategories, ChartProductive, ChartTrend}

var categoryColors = map[analysis.Category]drawing.Color{
	analysis.CategorySewing:      drawing.ColorFromHex("27ae60"),
	analysis.CategoryIdle:        drawing.ColorFromHex("95a5a6"),
	analysis.CategoryMeeting:     drawing.ColorFromHex("3498db"),
	analysis.CategoryNoFeeding:   drawing.ColorFromHex("f39c12"),
	analysis.CategoryMaintenance: drawing.ColorFromHex("e74c3c"),
	analysis.CategoryRework:      drawing.ColorFromHex("9b59b6"),
	analysis.CategoryNeedleBreak: drawing.ColorFromHex("34495e"),
}

var seriesColors = []drawing.Color{
	chart.ColorBlue,
	chart.ColorRed,
	chart.ColorGreen,
	chart.ColorOrange,
	drawing.ColorFromHex("9b59b6"),
	drawing.ColorFromHex("16a085"),
}

// Generator renders report views to PNG
type Generator struct {
	Width  int
	Height int
	// MaxSeries caps the entities drawn on the trend chart
	MaxSeries int
}

func NewGenerator() *Generator {
	return &Generator{Width: 800, Height: 400, MaxSeries: 6}
}

// Render draws the named chart
func (g *Generator) Render(name string, vm *report.ViewModel) ([]byte, error) {
	switch name {
	case ChartCategories:
		return g.CategoryPie(vm)
	case ChartProductive:
		return g.ProductiveBar(vm)
	case ChartTrend:
		return g.DailyTrend(vm)
	}
	return nil, fmt.Errorf("unknown chart %q", name)
}

// CategoryPie shows how the rollup hours split across the seven categories
func (g *Generator) CategoryPie(vm *report.ViewModel) ([]byte, error) {
	var values []chart.Value
	totals := vm.Rollup.Totals
	for _, c := range analysis.Categories {
		h := totals.Hours(c)
		if h <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %s", vm.Label(c), analysis.FormatHours(h)),
			Value: h,
			Style: chart.Style{FillColor: categoryColors[c]},
		})
	}
	if len(values) == 0 {
		return nil, ErrNoData
	}

	pie := chart.PieChart{
		Title:  vm.AllLabel,
		Width:  g.Height,
		Height: g.Height,
		Values: values,
	}
	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render pie chart: %w", err)
	}
	return buf.Bytes(), nil
}

// ProductiveBar shows the productive percentage of every entity
func (g *Generator) ProductiveBar(vm *report.ViewModel) ([]byte, error) {
	if len(vm.Entities) == 0 {
		return nil, ErrNoData
	}

	top := 100.0
	bars := make([]chart.Value, 0, len(vm.Entities))
	for _, e := range vm.Entities {
		pct := e.Percentages.ProductivePct
		top = max(top, pct)
		bars = append(bars, chart.Value{
			Label: e.Key,
			Value: pct,
			Style: chart.Style{FillColor: categoryColors[analysis.CategorySewing], StrokeColor: categoryColors[analysis.CategorySewing]},
		})
	}

	bar := chart.BarChart{
		Title:  vm.Title + " - Productive %",
		Width:  g.Width,
		Height: g.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		BarWidth: barWidth(g.Width, len(bars)),
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top},
		},
		Bars: bars,
	}
	var buf bytes.Buffer
	if err := bar.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render bar chart: %w", err)
	}
	return buf.Bytes(), nil
}

func barWidth(width, n int) int {
	w := (width - 80) / (n * 2)
	return min(max(w, 4), 60)
}

// DailyTrend plots productive % per day for the top entities
func (g *Generator) DailyTrend(vm *report.ViewModel) ([]byte, error) {
	days := make(map[string]struct{})
	for _, e := range vm.Entities {
		for _, d := range e.Daily {
			days[d.Day] = struct{}{}
		}
	}
	if len(days) < 2 {
		return nil, fmt.Errorf("%w: trend needs at least two days", ErrNoData)
	}

	var series []chart.Series
	for i, e := range vm.TopProductive(g.MaxSeries) {
		daily := append([]report.DailyRow(nil), e.Daily...)
		sort.Slice(daily, func(a, b int) bool { return daily[a].Day < daily[b].Day })

		var xValues []time.Time
		var yValues []float64
		for _, d := range daily {
			t, err := time.Parse(analysis.DateLayout, d.Day)
			if err != nil {
				continue
			}
			xValues = append(xValues, t)
			yValues = append(yValues, d.Percentages.ProductivePct)
		}
		if len(xValues) == 0 {
			continue
		}
		series = append(series, chart.TimeSeries{
			Name:    e.Key,
			XValues: xValues,
			YValues: yValues,
			Style: chart.Style{
				StrokeColor: seriesColors[i%len(seriesColors)],
				StrokeWidth: 2,
				DotWidth:    3,
				DotColor:    seriesColors[i%len(seriesColors)],
			},
		})
	}
	if len(series) == 0 {
		return nil, ErrNoData
	}

	graph := chart.Chart{
		Title:  vm.Title + " - Daily Productive %",
		Width:  g.Width,
		Height: g.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:  "Productive %",
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render trend chart: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveChart renders the named chart into outputDir and returns the file path
func (g *Generator) SaveChart(name string, vm *report.ViewModel, filename, outputDir string) (string, error) {
	png, err := g.Render(name, vm)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create dir: %w", err)
	}
	fullPath := filepath.Join(outputDir, filename)
	if err := os.WriteFile(fullPath, png, 0644); err != nil {
		return "", fmt.Errorf("failed to write chart: %w", err)
	}
	return fullPath, nil
}
