package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/synaptica-ai/warehouse-etl/pkg/common/httpclient"
)

// RESTWriter inserts records through a PostgREST style API. Error responses
// are expected to carry {"code": ..., "message": ...}.
type RESTWriter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewRESTWriter(baseURL, apiKey string, client *http.Client) *RESTWriter {
	if client == nil {
		client = httpclient.New(30*time.Second, apiKey)
	}
	return &RESTWriter{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (w *RESTWriter) Upsert(ctx context.Context, table string, record map[string]interface{}) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", table, err)
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s", w.baseURL, url.PathEscape(table))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")
	if w.apiKey != "" {
		req.Header.Set("apikey", w.apiKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var apiErr restError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Code == "" && resp.StatusCode == http.StatusConflict {
		apiErr.Code = uniqueViolation
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return &UpsertError{Table: table, Code: apiErr.Code, Message: apiErr.Message}
}
