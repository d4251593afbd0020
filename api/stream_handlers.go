package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"sewstat/analysis"
	"sewstat/logger"
	"sewstat/report"
)

// StreamResult represents a single line in the NDJSON stream
type StreamResult struct {
	Key    string                  `json:"key,omitempty"`
	Entity *report.EntityView      `json:"entity,omitempty"`
	Rollup *analysis.RollupSummary `json:"rollup,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// StreamReport fetches once and streams one NDJSON line per entity as
// workers finish it, followed by a rollup line
func (h *Handler) StreamReport(w http.ResponseWriter, r *http.Request) {
	var req report.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	kind, err := h.reports.Kind(req.Kind)
	if err != nil {
		respondReportError(w, err)
		return
	}
	opts, err := h.reports.Options(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	rows, err := h.reports.Fetch(r.Context(), req.LogQuery)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	// Set Streaming Headers
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	groups := make(map[string][]analysis.RawLogRow)
	for _, row := range rows {
		if k, ok := kind.Key(row); ok {
			groups[k] = append(groups[k], row)
		}
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	analysis.SortKeys(keys)

	numWorkers := h.cfg.Analysis.StreamWorkers
	if numWorkers <= 0 {
		numWorkers = 5
	}
	numWorkers = min(numWorkers, max(len(keys), 1))

	jobs := make(chan string, len(keys))
	results := make(chan StreamResult, len(keys))
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range jobs {
				vm := report.Build(groups[key], kind, opts)
				entity, ok := vm.Entity(key)
				if !ok {
					// Every row of the group was outside the shift
					results <- StreamResult{Key: key, Error: "no rows left after filtering"}
					continue
				}
				results <- StreamResult{Key: key, Entity: &entity}
			}
		}()
	}

	go func() {
		for _, k := range keys {
			jobs <- k
		}
		close(jobs)
		wg.Wait()
		close(results) // Close results only when workers are done
	}()

	encoder := json.NewEncoder(w)
	for res := range results {
		if err := encoder.Encode(res); err != nil {
			logger.Warn("stream encode error", "error", err, "request_id", requestID(r))
			return // Client likely disconnected
		}
		flusher.Flush()
	}

	full := report.Build(rows, kind, opts)
	if err := encoder.Encode(StreamResult{Rollup: &full.Rollup}); err != nil {
		logger.Warn("stream encode error", "error", err, "request_id", requestID(r))
		return
	}
	flusher.Flush()
}
