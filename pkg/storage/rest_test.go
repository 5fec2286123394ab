package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRESTWriterPostsRecord(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/dim_patient", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("apikey"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	writer := NewRESTWriter(server.URL, "key", server.Client())
	err := writer.Upsert(context.Background(), "dim_patient", map[string]interface{}{
		"patient_code": 1,
		"patient_name": "Ana",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana", got["patient_name"])
	assert.Equal(t, float64(1), got["patient_code"])
}

func TestRESTWriterErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		conflict bool
		code     string
	}{
		{"unique violation code", http.StatusConflict, `{"code":"23505","message":"duplicate key"}`, true, "23505"},
		{"bare conflict status", http.StatusConflict, ``, true, "23505"},
		{"foreign key violation", http.StatusConflict, `{"code":"23503","message":"fk"}`, false, "23503"},
		{"server error", http.StatusInternalServerError, `oops`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := NewRESTWriter(server.URL, "", server.Client()).
				Upsert(context.Background(), "dim_date", map[string]interface{}{"date": "2021-01-01"})
			require.Error(t, err)
			assert.Equal(t, tt.conflict, IsConflict(err))

			var upsertErr *UpsertError
			require.ErrorAs(t, err, &upsertErr)
			assert.Equal(t, tt.code, upsertErr.Code)
			assert.NotEmpty(t, upsertErr.Message)
		})
	}
}
