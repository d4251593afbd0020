package export

import (
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"sewstat/analysis"
	"sewstat/report"
)

var pageTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"cell": htmlCell,
	"when": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.View.Title}}</title>
<style>
body { font-family: sans-serif; margin: 24px; }
table { border-collapse: collapse; margin-bottom: 32px; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: right; }
th { background: #f0f0f0; }
td:first-child, th:first-child { text-align: left; }
tr.rollup td { font-weight: bold; }
</style>
</head>
<body>
<h1>{{.View.Title}}</h1>
<p>{{.Range}} &middot; total hours: {{.View.TotalHoursMode}} &middot; generated {{when .View.GeneratedAt}}</p>
{{- with .View.Warnings}}
<ul>{{range .}}<li>{{.Message}} ({{.Count}} rows)</li>{{end}}</ul>
{{- end}}
{{- range .Sections}}
{{- $rollup := .RollupRow}}
<h2>{{.Table.Title}}</h2>
<table>
<tr>{{range .Table.Header}}<th>{{.}}</th>{{end}}</tr>
{{- range $i, $row := .Table.Rows}}
<tr{{if eq $i $rollup}} class="rollup"{{end}}>{{range $row}}<td>{{cell .}}</td>{{end}}</tr>
{{- end}}
</table>
{{- end}}
</body>
</html>
`))

type page struct {
	View     *report.ViewModel
	Range    string
	Sections []section
}

// section is one table; RollupRow is the index of the "All" row or -1
type section struct {
	Table     Table
	RollupRow int
}

// htmlCell adds thousands separators to numeric cells
func htmlCell(v any) string {
	switch x := v.(type) {
	case int64:
		return humanize.Comma(x)
	case float64:
		return humanize.FormatFloat("#,###.##", x)
	}
	return cellString(v)
}

// WriteHTML renders the summary table and, when rows is not nil, the
// detailed table as a standalone page
func WriteHTML(w io.Writer, vm *report.ViewModel, rows []analysis.RawLogRow) error {
	summary := Summary(vm)
	rollup := -1
	if len(vm.Entities) > 0 {
		rollup = len(summary.Rows) - 1
	}
	p := page{
		View:     vm,
		Range:    rangeLabel(vm.Query),
		Sections: []section{{Table: summary, RollupRow: rollup}},
	}
	if rows != nil {
		p.Sections = append(p.Sections, section{Table: Detailed(rows), RollupRow: -1})
	}
	return pageTemplate.Execute(w, p)
}

func rangeLabel(q analysis.LogQuery) string {
	from, to := q.From, q.To
	if from == "" {
		from = "start"
	}
	if to == "" {
		to = "now"
	}
	return from + " to " + to
}
