package export

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"

	"sewstat/analysis"
	"sewstat/charting"
	"sewstat/logger"
	"sewstat/report"
)

// WriteBundle zips every export format plus the charts of the view.
// Charts without enough data are left out.
func WriteBundle(w io.Writer, vm *report.ViewModel, rows []analysis.RawLogRow, gen *charting.Generator) error {
	zw := zip.NewWriter(w)
	base := baseName(vm)

	entries := []struct {
		name  string
		write func(io.Writer) error
	}{
		{base + "_summary.csv", func(w io.Writer) error { return WriteCSV(w, Summary(vm)) }},
		{base + "_detailed.csv", func(w io.Writer) error { return WriteCSV(w, Detailed(rows)) }},
		{base + ".html", func(w io.Writer) error { return WriteHTML(w, vm, rows) }},
		{base + ".xlsx", func(w io.Writer) error { return WriteXLSX(w, vm, rows) }},
	}
	for _, e := range entries {
		fw, err := zw.Create(e.name)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", e.name, err)
		}
		if err := e.write(fw); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.name, err)
		}
	}

	if gen != nil {
		for _, name := range charting.Names {
			png, err := gen.Render(name, vm)
			if errors.Is(err, charting.ErrNoData) {
				logger.Debug("skipping chart without data", "chart", name, "kind", vm.Kind)
				continue
			}
			if err != nil {
				return err
			}
			fw, err := zw.Create(fmt.Sprintf("charts/%s_%s.png", vm.Kind, name))
			if err != nil {
				return err
			}
			if _, err := io.Copy(fw, bytes.NewReader(png)); err != nil {
				return err
			}
		}
	}

	return zw.Close()
}
