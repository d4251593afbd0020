package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"sewstat/analysis"
	"sewstat/report"
)

// parseReportRequest reads a report request from the path and query string
func parseReportRequest(r *http.Request, kind string) (report.Request, error) {
	req := report.Request{Kind: kind, LogQuery: parseLogQuery(r)}
	v := r.URL.Query()
	if m := v.Get("total_hours_mode"); m != "" {
		mode, err := analysis.ParseTotalHoursMode(m)
		if err != nil {
			return req, err
		}
		req.TotalHours = mode
	}
	if s := v.Get("apply_shift_filter"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return req, fmt.Errorf("invalid apply_shift_filter %q", s)
		}
		req.ApplyShift = &b
	}
	return req, nil
}

// respondReportError maps service errors to status codes
func respondReportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, report.ErrUnknownKind), errors.Is(err, report.ErrJobNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, report.ErrJobNotReady), errors.Is(err, report.ErrStaleResult):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// GetReport builds the report view of one kind
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	req, err := parseReportRequest(r, mux.Vars(r)["kind"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	vm, err := h.reports.Build(r.Context(), req)
	if err != nil {
		respondReportError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, vm)
}

// GetReportEntity returns a single operator, machine or line of a report
func (h *Handler) GetReportEntity(w http.ResponseWriter, r *http.Request) {
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
	entity, ok := vm.Entity(vars["id"])
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("%s %q not found", vm.EntityLabel, vars["id"]))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"kind":             vm.Kind,
		"entity_label":     vm.EntityLabel,
		"labels":           vm.Labels,
		"total_hours_mode": vm.TotalHoursMode,
		"entity":           entity,
	})
}

// RequestReport queues an async report job
func (h *Handler) RequestReport(w http.ResponseWriter, r *http.Request) {
	var req report.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TotalHours != "" {
		if _, err := analysis.ParseTotalHoursMode(string(req.TotalHours)); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	jobID, err := h.reports.RequestReport(r.Context(), req)
	if err != nil {
		respondReportError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": jobID,
		"status": "accepted",
	})
}

// GetReportStatus returns the status of a report job
func (h *Handler) GetReportStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.reports.JobStatus(r.Context(), mux.Vars(r)["jobId"])
	if err != nil {
		respondReportError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// GetReportResults returns the view of a completed report job
func (h *Handler) GetReportResults(w http.ResponseWriter, r *http.Request) {
	vm, err := h.reports.JobResult(r.Context(), mux.Vars(r)["jobId"])
	if err != nil {
		respondReportError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, vm)
}

// GetReportHistory lists the most recent report requests
func (h *Handler) GetReportHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = min(l, 500)
	}
	logs, err := h.repo.GetRecentReportLogs(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":  logs,
		"count": len(logs),
	})
}

// GetView returns the latest snapshot of a live view
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	if _, err := report.KindByName(kind); err != nil {
		respondReportError(w, err)
		return
	}
	snap, ok := h.reports.Current(kind)
	if !ok {
		respondError(w, http.StatusNotFound, "view has not been loaded yet")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// UpdateView changes the filters of a live view. The newest update wins:
// a superseded update answers 409 with the snapshot that replaced it.
// async=true returns the loading snapshot right away.
func (h *Handler) UpdateView(w http.ResponseWriter, r *http.Request) {
	var req report.Request
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	req.Kind = mux.Vars(r)["kind"]

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		snap, err := h.reports.RefreshAsync(r.Context(), req)
		if err != nil {
			respondReportError(w, err)
			return
		}
		respondJSON(w, http.StatusAccepted, snap)
		return
	}

	snap, err := h.reports.Refresh(r.Context(), req)
	switch {
	case errors.Is(err, report.ErrStaleResult):
		respondJSON(w, http.StatusConflict, snap)
	case errors.Is(err, report.ErrUnknownKind):
		respondReportError(w, err)
	case err != nil:
		respondJSON(w, http.StatusBadGateway, snap)
	default:
		respondJSON(w, http.StatusOK, snap)
	}
}

// GetUnderperforming lists operators seen in meeting, no-feeding or
// maintenance
func (h *Handler) GetUnderperforming(w http.ResponseWriter, r *http.Request) {
	req, err := parseReportRequest(r, report.Operators.Name)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	vm, err := h.reports.Build(r.Context(), req)
	if err != nil {
		respondReportError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"operators": vm.Underperforming,
		"count":     len(vm.Underperforming),
	})
}

// LineEfficiency is one row of the line efficiency table
type LineEfficiency struct {
	Line        string  `json:"line"`
	Efficiency  float64 `json:"efficiency"`
	Utilization float64 `json:"utilization"`
	IdealHours  float64 `json:"ideal_hours"`
	Machines    int     `json:"machines"`
	AvgMachines float64 `json:"avg_machines"`
}

// GetLineEfficiency returns efficiency and utilization per line
func (h *Handler) GetLineEfficiency(w http.ResponseWriter, r *http.Request) {
	req, err := parseReportRequest(r, report.Lines.Name)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	vm, err := h.reports.Build(r.Context(), req)
	if err != nil {
		respondReportError(w, err)
		return
	}
	lines := make([]LineEfficiency, 0, len(vm.Entities))
	for _, e := range vm.Entities {
		lines = append(lines, LineEfficiency{
			Line:        e.Key,
			Efficiency:  e.Efficiency,
			Utilization: e.Utilization,
			IdealHours:  e.IdealHours,
			Machines:    e.Machines,
			AvgMachines: e.AvgMachines,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"lines": lines,
		"count": len(lines),
	})
}
