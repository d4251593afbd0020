package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"sewstat/charting"
	"sewstat/export"
)

// ExportReport downloads a report as csv, detailed csv, html, xlsx or a
// zip bundle of all of them plus charts
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := parseReportRequest(r, mux.Vars(r)["kind"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	vm, rows, err := h.reports.Detail(r.Context(), req)
	if err != nil {
		respondReportError(w, err)
		return
	}

	// Render fully before writing headers so failures still get a JSON error
	var buf bytes.Buffer
	if err := export.Write(&buf, format, vm, rows, h.charts); err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("export failed: %v", err))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(vm, format)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// GetChart renders one chart of a report as PNG
func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	req, err := parseReportRequest(r, vars["kind"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	vm, err := h.reports.Build(r.Context(), req)
	if err != nil {
		respondReportError(w, err)
		return
	}

	png, err := h.charts.Render(vars["chart"], vm)
	switch {
	case errors.Is(err, charting.ErrNoData):
		respondError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
