package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sewstat/analysis"
	"sewstat/config"
	"sewstat/database"
	"sewstat/etl"
	"sewstat/jobs"
	"sewstat/mart"
	"sewstat/report"
)

const testSecret = "test-secret"

type staticSource struct {
	rows []analysis.RawLogRow
}

func (s staticSource) FetchRows(ctx context.Context, q analysis.LogQuery) ([]analysis.RawLogRow, error) {
	return q.Filter(s.rows), nil
}

func seedRows() []analysis.RawLogRow {
	return []analysis.RawLogRow{
		{MachineID: "M1", LineNumber: "1", OperatorID: "7", Date: "2024-03-01", StartTime: "08:30", EndTime: "10:30", Mode: analysis.ModeSewing, DurationRaw: "2:00", TxLogID: 1},
		{MachineID: "M1", LineNumber: "1", OperatorID: "7", Date: "2024-03-02", StartTime: "11:00", EndTime: "12:00", Mode: analysis.ModeMeeting, DurationRaw: "1:00", TxLogID: 2},
		{MachineID: "M2", LineNumber: "2", OperatorID: "8", Date: "2024-03-01", StartTime: "09:00", EndTime: "12:00", Mode: analysis.ModeIdle, DurationRaw: 10800, TxLogID: 3},
	}
}

type testEnv struct {
	router http.Handler
	cfg    *config.Config
	repo   *database.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Initialize("", "")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(db.Close)
	repo := database.NewRepository(db)
	if err := repo.CreateSchema(); err != nil {
		t.Fatalf("CreateSchema: %v", err)
	}
	if _, err := repo.BulkInsertLogs(context.Background(), seedRows()); err != nil {
		t.Fatalf("BulkInsertLogs: %v", err)
	}

	cfg := &config.Config{
		CacheTTLHours:  1,
		AdminJWTSecret: testSecret,
		Source:         config.SourceConfig{Mode: "api"},
		Analysis:       config.AnalysisConfig{DefaultPageSize: 2, MaxPageSize: 10, StreamWorkers: 2},
		Retention:      config.RetentionConfig{DataDays: 30, ReportDays: 7},
		Labels:         config.NewLabelSetManager(filepath.Join(t.TempDir(), "labels.json")),
	}

	pool := jobs.NewWorkerPool(2)
	t.Cleanup(pool.Stop)

	upstream := staticSource{rows: []analysis.RawLogRow{
		{MachineID: "M3", LineNumber: "2", OperatorID: "9", Date: "2024-03-03", StartTime: "08:30", EndTime: "09:30", Mode: analysis.ModeSewing, DurationRaw: 1, TxLogID: 50},
	}}
	ingestor := etl.NewDataIngestor(cfg, repo, upstream)
	reports := report.NewService(repo, repo, cfg, pool)
	h := NewHandler(db, repo, cfg, mart.NewMartBuilder(db), ingestor, reports)

	return &testEnv{router: SetupRouter(h), cfg: cfg, repo: repo}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestGetReport(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/reports/machines?from_date=2024-03-01&to_date=2024-03-02", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	vm := decode[report.ViewModel](t, rec)
	if len(vm.Entities) != 2 || vm.TotalHoursMode != analysis.TotalFixed10 {
		t.Errorf("entities=%d mode=%s", len(vm.Entities), vm.TotalHoursMode)
	}

	if rec := env.do(t, "GET", "/api/reports/shifts", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown kind status = %d", rec.Code)
	}
	if rec := env.do(t, "GET", "/api/reports/machines?total_hours_mode=weekly", nil, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad mode status = %d", rec.Code)
	}

	rec = env.do(t, "GET", "/api/reports/history", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d, body %s", rec.Code, rec.Body)
	}
	history := decode[struct {
		Data []database.ReportLog `json:"data"`
	}](t, rec)
	if len(history.Data) != 2 {
		t.Fatalf("history = %+v", history.Data)
	}
	if history.Data[0].Status != database.JobFailed || history.Data[1].Kind != "machines" {
		t.Errorf("history = %+v", history.Data)
	}
}

func TestGetReportEntity(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/reports/operators/7", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	body := decode[struct {
		Entity report.EntityView `json:"entity"`
	}](t, rec)
	if body.Entity.Key != "7" || body.Entity.Breakdown.MeetingHours != 1 {
		t.Errorf("entity = %+v", body.Entity)
	}

	if rec := env.do(t, "GET", "/api/reports/operators/99", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing entity status = %d", rec.Code)
	}
}

func TestAsyncReport(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/reports", map[string]string{"kind": "lines"}, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	jobID := decode[map[string]string](t, rec)["job_id"]

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = env.do(t, "GET", "/api/reports/jobs/"+jobID+"/status", nil, "")
		status := decode[database.JobStatus](t, rec)
		if status.Status == database.JobCompleted {
			break
		}
		if status.Status == database.JobFailed || time.Now().After(deadline) {
			t.Fatalf("job did not complete: %+v", status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec = env.do(t, "GET", "/api/reports/jobs/"+jobID+"/results", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("results status = %d", rec.Code)
	}
	if vm := decode[report.ViewModel](t, rec); len(vm.Entities) != 2 {
		t.Errorf("got %d lines, want 2", len(vm.Entities))
	}

	if rec := env.do(t, "GET", "/api/reports/jobs/nope/status", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown job status = %d", rec.Code)
	}
}

func TestStreamReport(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/reports/stream", map[string]string{"kind": "machines"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("content type = %q", ct)
	}

	var entities, rollups int
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		var res StreamResult
		if err := json.Unmarshal(sc.Bytes(), &res); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		switch {
		case res.Entity != nil:
			entities++
		case res.Rollup != nil:
			rollups++
			if res.Rollup.EntityCount != 2 {
				t.Errorf("rollup entity count = %d", res.Rollup.EntityCount)
			}
		}
	}
	if entities != 2 || rollups != 1 {
		t.Errorf("entities=%d rollups=%d", entities, rollups)
	}
}

func TestLiveView(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, "GET", "/api/views/machines", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unloaded view status = %d", rec.Code)
	}

	rec := env.do(t, "PUT", "/api/views/machines", map[string]string{"machine_id": "M2"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	rec = env.do(t, "GET", "/api/views/machines", nil, "")
	snap := decode[report.Snapshot](t, rec)
	if snap.View == nil || len(snap.View.Entities) != 1 || snap.View.Entities[0].Key != "M2" {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Request.Kind != "machines" || snap.Loading {
		t.Errorf("request=%+v loading=%v", snap.Request, snap.Loading)
	}
}

func TestUnderperformingAndEfficiency(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/operators/underperforming", nil, "")
	body := decode[struct {
		Operators []string `json:"operators"`
	}](t, rec)
	if len(body.Operators) != 1 || body.Operators[0] != "7" {
		t.Errorf("underperforming = %v", body.Operators)
	}

	rec = env.do(t, "GET", "/api/lines/efficiency", nil, "")
	lines := decode[struct {
		Lines []LineEfficiency `json:"lines"`
	}](t, rec)
	if len(lines.Lines) != 2 || lines.Lines[1].Line != "2" || lines.Lines[1].IdealHours != 3 {
		t.Errorf("lines = %+v", lines.Lines)
	}
}

func TestExportAndCharts(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/export/machines?format=csv&from_date=2024-03-01&to_date=2024-03-02", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "machines_2024-03-01_2024-03-02.csv") {
		t.Errorf("disposition = %q", cd)
	}
	if !strings.HasPrefix(rec.Body.String(), "Machine,") {
		t.Errorf("csv starts with %q", rec.Body.String()[:20])
	}

	if rec := env.do(t, "GET", "/api/export/machines?format=pdf", nil, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("pdf status = %d", rec.Code)
	}

	rec = env.do(t, "GET", "/api/charts/machines/productive", nil, "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("chart status = %d type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if rec := env.do(t, "GET", "/api/charts/machines/radar", nil, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown chart status = %d", rec.Code)
	}
}

func TestIngestAndLogs(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/ingest", map[string]string{"from_date": "2024-03-03", "to_date": "2024-03-03"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest status = %d, body %s", rec.Code, rec.Body)
	}
	res := decode[struct {
		Result etl.IngestResult `json:"result"`
	}](t, rec)
	if res.Result.Inserted != 1 {
		t.Errorf("inserted = %d, want 1", res.Result.Inserted)
	}

	// the same day again replaces rather than duplicates
	rec = env.do(t, "POST", "/api/ingest", map[string]string{"from_date": "2024-03-03", "to_date": "2024-03-03"}, "")
	again := decode[struct {
		Result etl.IngestResult `json:"result"`
	}](t, rec)
	if again.Result.Inserted != 1 || again.Result.Replaced != 1 {
		t.Errorf("re-ingest inserted=%d replaced=%d, want 1/1", again.Result.Inserted, again.Result.Replaced)
	}

	if rec := env.do(t, "POST", "/api/ingest", map[string]string{"from_date": "2024-03-05", "to_date": "2024-03-01"}, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("inverted range status = %d", rec.Code)
	}

	rec = env.do(t, "GET", "/api/logs?page=2", nil, "")
	logs := decode[struct {
		Data     []json.RawMessage `json:"data"`
		Total    int64             `json:"total"`
		PageSize int               `json:"page_size"`
	}](t, rec)
	if logs.Total != 4 || logs.PageSize != 2 || len(logs.Data) != 2 {
		t.Errorf("total=%d page_size=%d rows=%d", logs.Total, logs.PageSize, len(logs.Data))
	}
}

func TestAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)
	update := map[string]any{
		"report": map[string]any{
			"total_hours_modes":  map[string]string{"operators": "fixed10"},
			"apply_shift_filter": true,
		},
	}

	if rec := env.do(t, "PUT", "/api/config", update, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token status = %d", rec.Code)
	}
	if rec := env.do(t, "PUT", "/api/config", update, "garbage"); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d", rec.Code)
	}

	token, _, err := GenerateAdminToken(testSecret, "admin")
	if err != nil {
		t.Fatalf("GenerateAdminToken: %v", err)
	}
	if rec := env.do(t, "PUT", "/api/config", update, token); rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body)
	}
	if env.cfg.TotalHoursMode("operators", analysis.TotalSumCategories) != analysis.TotalFixed10 || !env.cfg.ShiftFilterEnabled() {
		t.Errorf("config not updated: %+v", env.cfg.Report)
	}

	labels := map[string]map[string]string{"machines": {"idle": "Waiting"}}
	if rec := env.do(t, "PUT", "/api/labels", labels, token); rec.Code != http.StatusOK {
		t.Fatalf("labels status = %d, body %s", rec.Code, rec.Body)
	}
	rec := env.do(t, "GET", "/api/reports/machines", nil, "")
	if vm := decode[report.ViewModel](t, rec); vm.Labels["idle"] != "Waiting" {
		t.Errorf("idle label = %q", vm.Labels["idle"])
	}

	if rec := env.do(t, "POST", "/api/cleanup", nil, token); rec.Code != http.StatusOK {
		t.Errorf("cleanup status = %d, body %s", rec.Code, rec.Body)
	}

	// GET stays public
	if rec := env.do(t, "GET", "/api/config", nil, ""); rec.Code != http.StatusOK {
		t.Errorf("get config status = %d", rec.Code)
	}
}
