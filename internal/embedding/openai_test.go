package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openreceipts/shelfmatch/internal/common"
)

func TestNewOpenAIClient(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid config",
			config:  Config{APIKey: "test-key"},
			wantErr: false,
		},
		{
			name:    "missing API key",
			config:  Config{APIKey: ""},
			wantErr: true,
		},
		{
			name: "custom model and base URL",
			config: Config{
				APIKey:  "test-key",
				Model:   "text-embedding-3-large",
				BaseURL: "https://example.test/v1",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := newOpenAIClient(tt.config)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, client)
			}
		})
	}
}

func TestOpenAIEmbed(t *testing.T) {
	t.Run("successful embedding", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/embeddings", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var reqBody map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
			assert.Equal(t, "text-embedding-3-small", reqBody["model"])
			assert.Equal(t, "organic fuji apples", reqBody["input"])

			_ = json.NewEncoder(w).Encode(map[string]any{
				"object": "list",
				"model":  "text-embedding-3-small",
				"data": []map[string]any{
					{"object": "embedding", "index": 0, "embedding": []float64{0.1, 0.2, 0.3}},
				},
			})
		}))
		defer server.Close()

		client, err := newOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL})
		require.NoError(t, err)

		vector, err := client.Embed(context.Background(), "organic fuji apples")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
	})

	t.Run("API error surfaces status and body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
		}))
		defer server.Close()

		client, err := newOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL})
		require.NoError(t, err)

		_, err = client.Embed(context.Background(), "anything")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})

	t.Run("rate limiting maps to the sentinel", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client, err := newOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL})
		require.NoError(t, err)

		_, err = client.Embed(context.Background(), "anything")
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrRateLimit)
	})

	t.Run("empty data is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": []any{}})
		}))
		defer server.Close()

		client, err := newOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL})
		require.NoError(t, err)

		_, err = client.Embed(context.Background(), "anything")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no embedding returned")
	})
}
