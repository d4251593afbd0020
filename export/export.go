package export

import (
	"fmt"
	"io"

	"sewstat/analysis"
	"sewstat/charting"
	"sewstat/report"
)

// Format is an export file type
type Format string

const (
	FormatCSV      Format = "csv"
	FormatDetailed Format = "detailed"
	FormatHTML     Format = "html"
	FormatXLSX     Format = "xlsx"
	FormatZIP      Format = "zip"
)

// ParseFormat validates a format name; empty means csv
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatDetailed, FormatHTML, FormatXLSX, FormatZIP:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ContentType is the MIME type served for f
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatZIP:
		return "application/zip"
	}
	return "text/csv; charset=utf-8"
}

// Ext is the file extension of f
func (f Format) Ext() string {
	if f == FormatDetailed {
		return "csv"
	}
	return string(f)
}

// Filename names an export of vm, e.g. machines_2024-03-01_2024-03-07.xlsx
func Filename(vm *report.ViewModel, f Format) string {
	name := baseName(vm)
	if f == FormatDetailed {
		name += "_detailed"
	}
	return name + "." + f.Ext()
}

func baseName(vm *report.ViewModel) string {
	from, to := vm.Query.From, vm.Query.To
	if from == "" {
		from = "all"
	}
	if to == "" {
		to = "latest"
	}
	return fmt.Sprintf("%s_%s_%s", vm.Kind, from, to)
}

// Write renders vm (and rows for detailed formats) in format f
func Write(w io.Writer, f Format, vm *report.ViewModel, rows []analysis.RawLogRow, gen *charting.Generator) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, Summary(vm))
	case FormatDetailed:
		return WriteCSV(w, Detailed(rows))
	case FormatHTML:
		return WriteHTML(w, vm, rows)
	case FormatXLSX:
		return WriteXLSX(w, vm, rows)
	case FormatZIP:
		return WriteBundle(w, vm, rows, gen)
	}
	return fmt.Errorf("unknown export format %q", f)
}
