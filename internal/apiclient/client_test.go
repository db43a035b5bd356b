package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Andres1439/verify-cod-orders/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiate_SendsTokenAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/calls/initiate", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "o-1", body["orderId"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"call_uuid":"c-1","order_id":"o-1","status":"started"}`))
	}))
	defer srv.Close()

	res, err := New(Options{BaseURL: srv.URL, Token: "tok"}).Initiate(context.Background(), "o-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "c-1", res.CallUUID)
}

func TestCandidates_PassesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "", r.URL.Query().Get("hoursAgo"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"count":1,"orders":[{"id":"o-1","shop_domain":"s.myshopify.com"}]}`))
	}))
	defer srv.Close()

	res, err := New(Options{BaseURL: srv.URL}).Candidates(context.Background(), retry.Query{Limit: 5})
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	assert.Equal(t, "o-1", res.Orders[0].ID)
}

func TestAct_ReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"order_not_found","message":"nope"}`))
	}))
	defer srv.Close()

	_, err := New(Options{BaseURL: srv.URL}).Act(context.Background(), "o-1", retry.ActionRetryAttempted)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "order_not_found", apiErr.Code)
}
