package etl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sewstat/analysis"
)

const sampleLog = `{"MACHINE_ID": 101, "LINE_NUMB": "2", "OPERATOR_ID": "7", "DATE": "2024-03-01", "START_TIME": "08:30:00", "END_TIME": "10:00:00", "MODE": 1, "DEVICE_ID": "1:30", "NEEDLE_RUNTIME": 3600, "RESERVE": "2400"}`

func TestFetchRowsBareArray(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/user-machine-logs/" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("from_date") != "2024-03-01" || r.URL.Query().Get("to_date") != "2024-03-02" {
			t.Fatalf("unexpected query: %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Fatalf("missing bearer token")
		}
		_, _ = w.Write([]byte("[" + sampleLog + "]"))
	}))
	defer ts.Close()

	client := NewClient(ts.URL+"/", "", "secret", 2*time.Second, false)
	rows, err := client.FetchRows(context.Background(), analysis.LogQuery{From: "2024-03-01", To: "2024-03-02"})
	if err != nil {
		t.Fatalf("FetchRows failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.MachineID != "101" || row.DurationSeconds() != 5400 || row.SewingSpeed != 2400 {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.NeedleRuntimeSeconds() != 3600*3600 {
		t.Fatalf("unexpected needle runtime: %d", row.NeedleRuntimeSeconds())
	}
}

func TestFetchRowsEnvelopes(t *testing.T) {
	for _, body := range []string{
		`{"tableData": [` + sampleLog + `]}`,
		`{"logs": [` + sampleLog + `]}`,
	} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))

		client := NewClient(ts.URL, "/custom/logs", "", 2*time.Second, false)
		rows, err := client.FetchRows(context.Background(), analysis.LogQuery{})
		ts.Close()
		if err != nil {
			t.Fatalf("FetchRows(%s) failed: %v", body[:12], err)
		}
		if len(rows) != 1 || rows[0].Mode != analysis.ModeSewing {
			t.Fatalf("unexpected rows for %s: %+v", body[:12], rows)
		}
	}
}

func TestFetchRowsAppliesEntityFilter(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[" + sampleLog + "]"))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "", "", 2*time.Second, false)
	rows, err := client.FetchRows(context.Background(), analysis.LogQuery{MachineID: "999"})
	if err != nil {
		t.Fatalf("FetchRows failed: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected machine filter to drop rows, got %d", len(rows))
	}
}

func TestFetchRowsStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "", "", 2*time.Second, false)
	_, err := client.FetchRows(context.Background(), analysis.LogQuery{})
	if err == nil {
		t.Fatalf("expected error for 502")
	}
	if !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "upstream exploded") {
		t.Fatalf("expected status and body snippet, got %v", err)
	}
}

func TestFetchRowsHonoursContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(ts.URL, "", "", 5*time.Second, false)
	if _, err := client.FetchRows(ctx, analysis.LogQuery{}); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
