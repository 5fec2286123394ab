package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/warehouse-etl/pkg/common/httpclient"
)

func TestRESTSourceFetchTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/test_cost", r.URL.Path)
		assert.Equal(t, "*", r.URL.Query().Get("select"))
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"test_code": 3, "price": 49.90, "price_date_from": "2021-01-01"}]`))
	}))
	defer server.Close()

	src := NewRESTSource(server.URL+"/", "secret", httpclient.New(time.Second, "secret"))
	rows, err := src.FetchTable(context.Background(), "test_cost")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, json.Number("3"), rows[0]["test_code"])
	assert.Equal(t, json.Number("49.90"), rows[0]["price"])
	assert.Equal(t, "2021-01-01", rows[0]["price_date_from"])
}

func TestRESTSourceRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	src := NewRESTSource(server.URL, "", server.Client(), WithRetry(3, time.Millisecond))
	rows, err := src.FetchTable(context.Background(), "patient")
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRESTSourceDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"code":"42P01","message":"relation does not exist"}`, http.StatusNotFound)
	}))
	defer server.Close()

	src := NewRESTSource(server.URL, "", server.Client(), WithRetry(3, time.Millisecond))
	_, err := src.FetchTable(context.Background(), "missing")
	require.Error(t, err)

	var statusErr *httpclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRESTSourceRejectsNonArrayBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rows": []}`))
	}))
	defer server.Close()

	src := NewRESTSource(server.URL, "", server.Client(), WithRetry(1, 0))
	_, err := src.FetchTable(context.Background(), "patient")
	assert.Error(t, err)
}
