package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"sewstat/logger"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// SetupRouter creates and configures the HTTP router
func SetupRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/api/health", h.HealthCheck).Methods("GET")

	// Data management endpoints
	r.HandleFunc("/api/ingest", h.IngestData).Methods("POST")
	r.HandleFunc("/api/mart/refresh", h.RefreshMart).Methods("POST")
	r.HandleFunc("/api/mart/daily", h.GetMartDaily).Methods("GET")
	r.HandleFunc("/api/logs", h.GetLogs).Methods("GET")

	// Reports
	reports := r.PathPrefix("/api/reports").Subrouter()
	reports.HandleFunc("", h.RequestReport).Methods("POST")
	reports.HandleFunc("/stream", h.StreamReport).Methods("POST")
	reports.HandleFunc("/jobs/{jobId}/status", h.GetReportStatus).Methods("GET")
	reports.HandleFunc("/jobs/{jobId}/results", h.GetReportResults).Methods("GET")
	reports.HandleFunc("/history", h.GetReportHistory).Methods("GET")
	reports.HandleFunc("/{kind}", h.GetReport).Methods("GET")
	reports.HandleFunc("/{kind}/{id}", h.GetReportEntity).Methods("GET")

	// Live views
	r.HandleFunc("/api/views/{kind}", h.GetView).Methods("GET")
	r.HandleFunc("/api/views/{kind}", h.UpdateView).Methods("PUT")

	// Exports and charts
	r.HandleFunc("/api/export/{kind}", h.ExportReport).Methods("GET")
	r.HandleFunc("/api/charts/{kind}/{chart}", h.GetChart).Methods("GET")

	r.HandleFunc("/api/operators/underperforming", h.GetUnderperforming).Methods("GET")
	r.HandleFunc("/api/lines/efficiency", h.GetLineEfficiency).Methods("GET")

	// Config Management
	r.HandleFunc("/api/config", h.GetConfig).Methods("GET")
	r.HandleFunc("/api/labels", h.GetLabels).Methods("GET")

	admin := r.NewRoute().Subrouter()
	admin.Use(AdminJWTAuth(h.cfg.AdminJWTSecret))
	admin.HandleFunc("/api/config", h.UpdateConfig).Methods("PUT")
	admin.HandleFunc("/api/labels", h.UpdateLabels).Methods("PUT")
	admin.HandleFunc("/api/cleanup", h.CleanupData).Methods("POST")

	return r
}

// CORSMiddleware adds CORS headers
func CORSMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return handlers.CORS(
			handlers.AllowedOrigins([]string{"*"}),
			handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
			handlers.ExposedHeaders([]string{"X-Request-ID", "Content-Disposition"}),
		)(next)
	}
}

// RequestIDMiddleware tags every request with an X-Request-ID
func RequestIDMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
		})
	}
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info("http request",
				"method", r.Method,
				"uri", r.RequestURI,
				"status", wrapped.statusCode,
				"duration", time.Since(start).String(),
				"request_id", requestID(r),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
