package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Model: "text-embedding-004"})
	assert.Error(t, err)

	_, err = New(Config{APIKey: "key"})
	assert.Error(t, err)

	e, err := New(Config{APIKey: "key", Model: "text-embedding-004"})
	require.NoError(t, err)
	assert.Equal(t, defaultBaseURL, e.baseURL)
}

func TestExecute_BatchEmbeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/text-embedding-004:batchEmbedContents", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-goog-api-key"))

		var req batchEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Requests, 2)
		assert.Equal(t, "models/text-embedding-004", req.Requests[0].Model)
		require.NotNil(t, req.Requests[0].Content)
		require.Len(t, req.Requests[0].Content.Parts, 1)
		assert.Equal(t, "hello", req.Requests[0].Content.Parts[0].Text)

		out := map[string]any{
			"embeddings": []map[string]any{
				{"values": []float64{0.1, 0.2}},
				{"values": []float64{0.3, 0.4}},
			},
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	e, err := New(Config{APIKey: "key", Model: "text-embedding-004", BaseURL: srv.URL})
	require.NoError(t, err)

	vectors, err := e.Execute(context.Background(), []string{"hello", "world"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float64{0.1, 0.2}, vectors[0])
	assert.Equal(t, []float64{0.3, 0.4}, vectors[1])
}

func TestExecute_ShapeMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := map[string]any{
			"embeddings": []map[string]any{{"values": []float64{0.1}}},
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	e, err := New(Config{APIKey: "key", Model: "text-embedding-004", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 embeddings for 2 texts")
}

func TestExecute_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	e, err := New(Config{APIKey: "key", Model: "text-embedding-004", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
