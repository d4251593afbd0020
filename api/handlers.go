package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"sewstat/analysis"
	"sewstat/charting"
	"sewstat/config"
	"sewstat/database"
	"sewstat/etl"
	"sewstat/logger"
	"sewstat/mart"
	"sewstat/report"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db          *database.DB
	repo        *database.Repository
	cfg         *config.Config
	martBuilder *mart.MartBuilder
	ingestor    *etl.DataIngestor
	reports     *report.Service
	charts      *charting.Generator
}

// NewHandler creates a new handler instance
func NewHandler(db *database.DB, repo *database.Repository, cfg *config.Config, martBuilder *mart.MartBuilder, ingestor *etl.DataIngestor, reports *report.Service) *Handler {
	return &Handler{
		db:          db,
		repo:        repo,
		cfg:         cfg,
		martBuilder: martBuilder,
		ingestor:    ingestor,
		reports:     reports,
		charts:      charting.NewGenerator(),
	}
}

// HealthCheck returns API health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.db.Analytics.PingContext(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "analytics database health check failed")
		return
	}
	if err := h.db.App.PingContext(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "app database health check failed")
		return
	}

	lake, err := h.repo.Stats(ctx)
	if err != nil {
		logger.Warn("failed to read lake stats", "error", err)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"source_mode":  h.cfg.Source.Mode,
		"mock_data":    h.cfg.MockData.Enabled,
		"lake":         lake,
		"pending_jobs": h.reports.PendingJobs(),
	})
}

// IngestData handles data ingestion requests. An empty body ingests the
// scheduler lookback window.
func (h *Handler) IngestData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From string `json:"from_date"`
		To   string `json:"to_date"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var (
		res etl.IngestResult
		err error
	)
	if req.From == "" && req.To == "" {
		res, err = h.ingestor.IngestRecent(r.Context(), h.cfg.Scheduler.LookbackDays)
	} else {
		from, ok1 := analysis.ParseDate(req.From)
		to, ok2 := analysis.ParseDate(req.To)
		if !ok1 || !ok2 || to.Before(from) {
			respondError(w, http.StatusBadRequest, "from_date and to_date must be valid dates (YYYY-MM-DD) with from_date <= to_date")
			return
		}
		res, err = h.ingestor.Ingest(r.Context(), from, to)
	}
	if errors.Is(err, etl.ErrNoUpstream) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("ingestion failed: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"result": res,
	})
}

// RefreshMart rebuilds the daily mode stats mart
func (h *Handler) RefreshMart(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	stats, err := h.martBuilder.Refresh(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("mart refresh failed: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "success",
		"duration_ms":  time.Since(start).Milliseconds(),
		"rows_created": stats.TotalRows,
		"stats":        stats,
	})
}

// GetMartDaily returns mart cells for a date range
func (h *Handler) GetMartDaily(w http.ResponseWriter, r *http.Request) {
	q := parseLogQuery(r)
	stats, err := h.martBuilder.Daily(r.Context(), q.From, q.To)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":  stats,
		"count": len(stats),
	})
}

// CleanupData handles old data cleanup requests
func (h *Handler) CleanupData(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.repo.CleanupOldData(r.Context(), h.cfg.Retention.DataDays, h.cfg.Retention.ReportDays)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("cleanup failed: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"deleted": deleted,
	})
}

// GetLogs pages through raw lake rows
func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	q := parseLogQuery(r)

	pageSize := h.cfg.Analysis.DefaultPageSize
	if ps, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && ps > 0 {
		pageSize = ps
	}
	if maxSize := h.cfg.Analysis.MaxPageSize; maxSize > 0 && pageSize > maxSize {
		pageSize = maxSize
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}

	total, err := h.repo.CountLogs(r.Context(), q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
		return
	}
	rows, err := h.repo.ListLogs(r.Context(), q, pageSize, (page-1)*pageSize)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":      rows,
		"page":      page,
		"page_size": pageSize,
		"total":     total,
	})
}

// parseLogQuery reads the shared filter parameters
func parseLogQuery(r *http.Request) analysis.LogQuery {
	v := r.URL.Query()
	return analysis.LogQuery{
		From:       v.Get("from_date"),
		To:         v.Get("to_date"),
		MachineID:  v.Get("machine_id"),
		LineNumber: v.Get("line_number"),
		OperatorID: v.Get("operator_id"),
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// ConfigUpdateRequest represents the body for config updates
type ConfigUpdateRequest struct {
	Report *struct {
		TotalHoursModes  map[string]string `json:"total_hours_modes"`
		ApplyShiftFilter bool              `json:"apply_shift_filter"`
	} `json:"report"`
	Analysis *struct {
		DefaultPageSize int `json:"default_page_size"`
		MaxPageSize     int `json:"max_page_size"`
	} `json:"analysis"`
}

// configView is the public part of the configuration
type configView struct {
	Source struct {
		Mode       string `json:"mode"`
		APIBaseURL string `json:"api_base_url,omitempty"`
		SQLDriver  string `json:"sql_driver,omitempty"`
	} `json:"source"`
	Report        config.ReportConfig    `json:"report"`
	Analysis      config.AnalysisConfig  `json:"analysis"`
	Scheduler     config.SchedulerConfig `json:"scheduler"`
	Retention     config.RetentionConfig `json:"retention"`
	MockData      bool                   `json:"mock_data"`
	CacheTTLHours int                    `json:"cache_ttl_hours"`
	AdminEnabled  bool                   `json:"admin_enabled"`
}

// GetConfig returns the current configuration without secrets
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	var v configView
	v.Source.Mode = h.cfg.Source.Mode
	v.Source.APIBaseURL = h.cfg.Source.APIBaseURL
	v.Source.SQLDriver = h.cfg.Source.SQLDriver
	v.Report = h.cfg.Report
	v.Analysis = h.cfg.Analysis
	v.Scheduler = h.cfg.Scheduler
	v.Retention = h.cfg.Retention
	v.MockData = h.cfg.MockData.Enabled
	v.CacheTTLHours = h.cfg.CacheTTLHours
	v.AdminEnabled = h.cfg.AdminJWTSecret != ""
	respondJSON(w, http.StatusOK, v)
}

// UpdateConfig updates report and paging settings
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Report != nil {
		for kind, mode := range req.Report.TotalHoursModes {
			if _, err := report.KindByName(kind); err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			if _, err := analysis.ParseTotalHoursMode(mode); err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		if err := h.cfg.UpdateReportSettings(req.Report.TotalHoursModes, req.Report.ApplyShiftFilter); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to update report settings")
			return
		}
	}
	if req.Analysis != nil {
		if err := h.cfg.UpdateAnalysisSettings(req.Analysis.DefaultPageSize, req.Analysis.MaxPageSize); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to update analysis settings")
			return
		}
	}

	// Cached views were built under the old settings
	if _, err := h.repo.InvalidateReportCache(r.Context()); err != nil {
		logger.Warn("failed to invalidate report cache", "error", err)
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// GetLabels returns the category label overrides per kind
func (h *Handler) GetLabels(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.cfg.Labels.GetAll())
}

// UpdateLabels replaces the category label overrides
func (h *Handler) UpdateLabels(w http.ResponseWriter, r *http.Request) {
	var sets map[string]config.LabelSet
	if err := json.NewDecoder(r.Body).Decode(&sets); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	for kind := range sets {
		if _, err := report.KindByName(kind); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := h.cfg.Labels.Save(sets); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save labels")
		return
	}
	if _, err := h.repo.InvalidateReportCache(r.Context()); err != nil {
		logger.Warn("failed to invalidate report cache", "error", err)
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
