package usage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiten-app/core/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.UsageConfig{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		TimeoutSec: 2,
	})
}

func TestCanUse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/usage/check", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user-1", body["userId"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"allowed":true,"remainingCount":3,"usageCount":7,"usageLimit":10,"planName":"basic"}`))
	})

	result, err := client.CanUse(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	require.NotNil(t, result.RemainingCount)
	assert.Equal(t, 3, *result.RemainingCount)
	assert.Equal(t, 7, result.UsageCount)
	assert.Equal(t, "basic", result.PlanName)
}

func TestCanUseUnlimitedPlan(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"allowed":true,"remainingCount":null,"usageCount":42,"usageLimit":null,"planName":"pro"}`))
	})

	result, err := client.CanUse(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Nil(t, result.RemainingCount)
	assert.Nil(t, result.UsageLimit)
}

func TestIncrementUsage(t *testing.T) {
	var gotMetadata map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/usage/increment", r.URL.Path)
		var body struct {
			UserID   string            `json:"userId"`
			Metadata map[string]string `json:"metadata"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotMetadata = body.Metadata
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.IncrementUsage(context.Background(), "user-1", map[string]string{"label": "Q1"})
	require.NoError(t, err)
	assert.Equal(t, "Q1", gotMetadata["label"])
}

func TestErrorStatusSurfaced(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "subscription service down", http.StatusBadGateway)
	})

	_, err := client.CanUse(context.Background(), "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	err = client.IncrementUsage(context.Background(), "user-1", nil)
	assert.Error(t, err)
}

func TestInfoFrom(t *testing.T) {
	assert.Nil(t, InfoFrom(nil))

	remaining := 1
	info := InfoFrom(&CheckResult{Allowed: true, RemainingCount: &remaining, UsageCount: 9, PlanName: "basic"})
	require.NotNil(t, info)
	assert.Equal(t, 9, info.UsageCount)
	assert.Equal(t, &remaining, info.RemainingCount)
}
