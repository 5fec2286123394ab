package extraction

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

const maxErrorBody = 4 << 10

// RESTSource reads tables through a PostgREST style API:
// GET {baseURL}/rest/v1/{table}?select=*
type RESTSource struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	attempts int
	backoff  time.Duration
}

type RESTOption func(*RESTSource)

func WithRetry(attempts int, backoff time.Duration) RESTOption {
	return func(s *RESTSource) {
		s.attempts = attempts
		s.backoff = backoff
	}
}

func NewRESTSource(baseURL, apiKey string, client *http.Client, opts ...RESTOption) *RESTSource {
	if client == nil {
		client = httpclient.New(30*time.Second, apiKey)
	}
	s := &RESTSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		client:   client,
		attempts: 3,
		backoff:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RESTSource) FetchTable(ctx context.Context, name string) ([]map[string]interface{}, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?select=*", s.baseURL, url.PathEscape(name))

	var rows []map[string]interface{}
	err := httpclient.Retry(ctx, s.attempts, s.backoff, func() error {
		var err error
		rows, err = s.fetch(ctx, endpoint)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	return rows, nil
}

func (s *RESTSource) fetch(ctx context.Context, endpoint string) ([]map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &httpclient.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	// keep ids and prices as json.Number so the normalizer sees exact values
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var rows []map[string]interface{}
	if err := decoder.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return rows, nil
}
