package etl

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sewstat/analysis"
	"sewstat/config"
)

// Client fetches raw machine logs from the upstream REST service
type Client struct {
	baseURL string
	path    string
	token   string
	http    *http.Client
}

func NewClient(baseURL, path, token string, timeout time.Duration, insecureSkipVerify bool) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if path == "" {
		path = "/api/user-machine-logs/"
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    "/" + strings.TrimLeft(path, "/"),
		token:   token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// NewClientFromConfig builds a client from the source section
func NewClientFromConfig(cfg config.SourceConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewClient(cfg.APIBaseURL, cfg.APIPath, cfg.Token, timeout, cfg.InsecureTLS)
}

// logsEnvelope covers the wrapped response shapes
type logsEnvelope struct {
	TableData []analysis.RawLogRow `json:"tableData"`
	Logs      []analysis.RawLogRow `json:"logs"`
}

// FetchRows requests logs for the date range of q. Entity filters in q are
// applied locally since the upstream endpoint only understands dates.
func (c *Client) FetchRows(ctx context.Context, q analysis.LogQuery) ([]analysis.RawLogRow, error) {
	query := url.Values{}
	if q.From != "" {
		query.Set("from_date", q.From)
	}
	if q.To != "" {
		query.Set("to_date", q.To)
	}

	var raw json.RawMessage
	if err := c.getJSON(ctx, c.path, query, &raw); err != nil {
		return nil, err
	}

	rows, err := decodeLogs(raw)
	if err != nil {
		return nil, fmt.Errorf("decode response %s: %w", c.path, err)
	}
	return q.Filter(rows), nil
}

func decodeLogs(raw json.RawMessage) ([]analysis.RawLogRow, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var rows []analysis.RawLogRow
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}

	var env logsEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, err
	}
	if env.TableData != nil {
		return env.TableData, nil
	}
	return env.Logs, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint = endpoint + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request %s failed with status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response %s: %w", path, err)
	}
	return nil
}
